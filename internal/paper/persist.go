package paper

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/phenomenon0/market-analytics/internal/logger"
	"github.com/shopspring/decimal"
)

// persistLocked writes the full state to disk atomically: a temp file in
// the same directory, then os.Rename. Failures are logged and swallowed —
// the in-memory state stays authoritative for the running process.
func (e *Engine) persistLocked() {
	if e.path == "" {
		return
	}

	e.state.TradedMarketIDsList = e.state.TradedMarketIDsList[:0]
	for id := range e.state.TradedMarketIDs {
		e.state.TradedMarketIDsList = append(e.state.TradedMarketIDsList, id)
	}

	data, err := json.MarshalIndent(e.state, "", "  ")
	if err != nil {
		logger.Error("paper: marshal state: %v", err)
		return
	}

	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("paper: create state dir: %v", err)
		return
	}

	tmp, err := os.CreateTemp(dir, ".paper-state-*.tmp")
	if err != nil {
		logger.Error("paper: create temp state file: %v", err)
		return
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		logger.Error("paper: write temp state file: %v", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		logger.Error("paper: close temp state file: %v", err)
		return
	}

	if err := os.Rename(tmpPath, e.path); err != nil {
		os.Remove(tmpPath)
		logger.Error("paper: rename state file: %v", err)
	}
}

// Load reads persisted state from disk, if present, and rebuilds the
// traded-markets set and applies the historical-bug balance migration.
func (e *Engine) Load() error {
	if e.path == "" {
		return nil
	}

	data, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	if loaded.Positions == nil {
		loaded.Positions = make(map[string]*Position)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = &loaded
	e.state.TradedMarketIDs = make(map[string]struct{})
	for _, id := range loaded.TradedMarketIDsList {
		e.state.TradedMarketIDs[id] = struct{}{}
	}
	for _, t := range e.state.ClosedTrades {
		e.state.TradedMarketIDs[t.MarketID] = struct{}{}
	}
	for id := range e.state.Positions {
		e.state.TradedMarketIDs[id] = struct{}{}
	}

	e.applyBalanceMigration()

	return nil
}

// applyBalanceMigration fixes a historical bug where TryEnter did not
// deduct the reserved position size from the balance: if there are no open
// positions and the persisted balance exceeds what the closed-trade ledger
// implies, the balance is recomputed from the ledger and re-persisted. It
// also backfills StartingBalance on state files from before that field was
// persisted, since a zero starting balance would otherwise collapse the
// migration's derived balance and TryEnter's drawdown ratio to zero.
func (e *Engine) applyBalanceMigration() {
	if e.state.StartingBalance.IsZero() {
		e.state.StartingBalance = decimal.NewFromFloat(StartingBalance)
	}

	if len(e.state.Positions) != 0 {
		return
	}

	var totalPnL decimal.Decimal
	for _, t := range e.state.ClosedTrades {
		totalPnL = totalPnL.Add(t.PnL)
	}

	derived := e.state.StartingBalance.Add(totalPnL)
	drift := e.state.Balance.Sub(derived)

	if drift.GreaterThan(decimal.NewFromFloat(0.01)) {
		logger.Warn("paper: correcting drifted balance %s -> %s", e.state.Balance.String(), derived.String())
		e.state.Balance = derived
		e.persistLocked()
	}
}
