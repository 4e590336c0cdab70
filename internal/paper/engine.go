package paper

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxOpenPositions     = 3
	MaxRiskPercent       = 0.15
	MaxLossStreak        = 5
	PauseDrawdownPercent = 0.20
	StartingBalance      = 1000.0

	stopLossPercent   = -0.40
	takeProfitPercent = 0.50

	lossStreakPauseDuration = 24 * time.Hour
	drawdownPauseDuration   = 72 * time.Hour

	minPositionSize = 5.0
	maxPositionSize = 50.0
)

// Engine is the risk-managed paper trading engine described by TryEnter,
// CheckAndClose, and CloseAtResolution. It is safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	state *State
	path  string
}

// NewEngine constructs an engine with a fresh StartingBalance account. Load
// should be called afterward to recover persisted state, if any.
func NewEngine(persistPath string) *Engine {
	return &Engine{
		path: persistPath,
		state: &State{
			Balance:         decimal.NewFromFloat(StartingBalance),
			StartingBalance: decimal.NewFromFloat(StartingBalance),
			Positions:       make(map[string]*Position),
			TradedMarketIDs: make(map[string]struct{}),
		},
	}
}

// TryEnter attempts to open a position for a qualified signal, returning nil
// if any gate rejects it.
func (e *Engine) TryEnter(marketID, question string, direction Direction, entryPrice decimal.Decimal, qualityScore int, catalyst string, hoursToResolution *float64, now time.Time) *Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Paused {
		if e.state.PausedUntil != nil && now.Before(*e.state.PausedUntil) {
			return nil
		}
		e.state.Paused = false
		e.state.PausedUntil = nil
	}

	if len(e.state.Positions) >= MaxOpenPositions {
		return nil
	}
	if _, open := e.state.Positions[marketID]; open {
		return nil
	}
	if _, traded := e.state.TradedMarketIDs[marketID]; traded {
		return nil
	}

	if e.state.LossStreak >= MaxLossStreak {
		e.pauseFor(lossStreakPauseDuration, now)
		return nil
	}

	balanceF, _ := e.state.Balance.Float64()
	startingF, _ := e.state.StartingBalance.Float64()
	drawdown := (startingF - balanceF) / startingF
	if drawdown >= PauseDrawdownPercent {
		e.pauseFor(drawdownPauseDuration, now)
		return nil
	}

	sizePercent := sizePercentFor(qualityScore)
	positionSize := clampF(roundTo(balanceF*sizePercent, 2), minPositionSize, maxPositionSize)

	var openSize float64
	for _, p := range e.state.Positions {
		s, _ := p.Size.Float64()
		openSize += s
	}

	if (openSize+positionSize)/balanceF > MaxRiskPercent {
		positionSize = roundTo(balanceF*MaxRiskPercent-openSize, 2)
		if positionSize < minPositionSize {
			return nil
		}
	}

	entryF, _ := entryPrice.Float64()
	shares := roundTo(positionSize/entryF, 2)

	position := &Position{
		ID:                newID(),
		MarketID:          marketID,
		Question:          question,
		Direction:         direction,
		EntryPrice:        entryPrice,
		Size:              decimal.NewFromFloat(positionSize),
		Shares:            decimal.NewFromFloat(shares),
		QualityScore:      qualityScore,
		Catalyst:          catalyst,
		HoursToResolution: hoursToResolution,
		EntryTime:         now,
	}

	e.state.Balance = e.state.Balance.Sub(decimal.NewFromFloat(positionSize))
	e.state.Positions[marketID] = position
	e.state.TradedMarketIDs[marketID] = struct{}{}

	e.persistLocked()

	return position
}

// CheckAndClose closes marketId's position if the current price has crossed
// the stop-loss or take-profit threshold, or if a forced reason is given.
func (e *Engine) CheckAndClose(marketID string, currentPrice decimal.Decimal, forcedReason *CloseReason, now time.Time) *ClosedTrade {
	e.mu.Lock()
	defer e.mu.Unlock()

	position, ok := e.state.Positions[marketID]
	if !ok {
		return nil
	}

	reason := forcedReason
	if reason == nil {
		shares, _ := position.Shares.Float64()
		size, _ := position.Size.Float64()
		current, _ := currentPrice.Float64()
		pnlPct := (shares*current - size) / size

		switch {
		case pnlPct <= stopLossPercent:
			r := ReasonStopLoss
			reason = &r
		case pnlPct >= takeProfitPercent:
			r := ReasonTakeProfit
			reason = &r
		default:
			return nil
		}
	}

	return e.closeLocked(position, currentPrice, *reason, now)
}

// CloseAtResolution closes marketId's position at the resolved outcome
// price: 1.0 if wonBet, else 0.0.
func (e *Engine) CloseAtResolution(marketID string, wonBet bool, now time.Time) *ClosedTrade {
	e.mu.Lock()
	defer e.mu.Unlock()

	position, ok := e.state.Positions[marketID]
	if !ok {
		return nil
	}

	exit := decimal.Zero
	if wonBet {
		exit = decimal.NewFromInt(1)
	}

	return e.closeLocked(position, exit, ReasonResolution, now)
}

func (e *Engine) closeLocked(position *Position, exitPrice decimal.Decimal, reason CloseReason, now time.Time) *ClosedTrade {
	size, _ := position.Size.Float64()
	shares, _ := position.Shares.Float64()
	exit, _ := exitPrice.Float64()

	pnl := shares*exit - size
	pnlPercent := pnl / size

	trade := ClosedTrade{
		ID:           newID(),
		MarketID:     position.MarketID,
		Question:     position.Question,
		Direction:    position.Direction,
		EntryPrice:   position.EntryPrice,
		ExitPrice:    exitPrice,
		Size:         position.Size,
		Shares:       position.Shares,
		PnL:          decimal.NewFromFloat(pnl),
		PnLPercent:   pnlPercent,
		Reason:       reason,
		QualityScore: position.QualityScore,
		EntryTime:    position.EntryTime,
		ExitTime:     now,
	}

	e.state.Balance = e.state.Balance.Add(position.Size).Add(decimal.NewFromFloat(pnl))
	if pnl > 0 {
		e.state.LossStreak = 0
	} else {
		e.state.LossStreak++
	}

	delete(e.state.Positions, position.MarketID)
	e.state.ClosedTrades = append(e.state.ClosedTrades, trade)

	e.persistLocked()

	return &trade
}

func (e *Engine) pauseFor(d time.Duration, now time.Time) {
	until := now.Add(d)
	e.state.Paused = true
	e.state.PausedUntil = &until
	e.persistLocked()
}

// GetDailyReport aggregates the account's current status and today's
// closed trades, grouped by the UTC calendar date of exit.
func (e *Engine) GetDailyReport(now time.Time) DailyReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := now.UTC().Format("2006-01-02")

	var todayTrades []ClosedTrade
	var winCount int
	var winSum, lossSum float64
	var winN, lossN int

	for _, t := range e.state.ClosedTrades {
		if t.ExitTime.UTC().Format("2006-01-02") != today {
			continue
		}
		todayTrades = append(todayTrades, t)
		if t.PnLPercent > 0 {
			winCount++
			winSum += t.PnLPercent
			winN++
		} else {
			lossSum += t.PnLPercent
			lossN++
		}
	}

	var winRate, avgWin, avgLoss float64
	if len(todayTrades) > 0 {
		winRate = float64(winCount) / float64(len(todayTrades))
	}
	if winN > 0 {
		avgWin = winSum / float64(winN)
	}
	if lossN > 0 {
		avgLoss = lossSum / float64(lossN)
	}

	var totalPnL decimal.Decimal
	for _, t := range e.state.ClosedTrades {
		totalPnL = totalPnL.Add(t.PnL)
	}

	open := make([]*Position, 0, len(e.state.Positions))
	for _, p := range e.state.Positions {
		open = append(open, p)
	}

	return DailyReport{
		Balance:         e.state.Balance,
		StartingBalance: e.state.StartingBalance,
		TotalPnL:        totalPnL,
		TodayTrades:     todayTrades,
		TodayWinCount:   winCount,
		TodayWinRate:    winRate,
		AvgWinPercent:   avgWin,
		AvgLossPercent:  avgLoss,
		OpenPositions:   open,
		LossStreak:      e.state.LossStreak,
		Paused:          e.state.Paused,
	}
}

func sizePercentFor(score int) float64 {
	switch {
	case score >= 85:
		return 0.05
	case score >= 70:
		return 0.03
	default:
		return 0.02
	}
}

func roundTo(v float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	return float64(int64(v*scale+0.5)) / scale
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
