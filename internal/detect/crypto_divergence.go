package detect

import (
	"fmt"
	"sync"
	"time"

	"github.com/phenomenon0/market-analytics/internal/events"
	"github.com/phenomenon0/market-analytics/internal/fairvalue"
)

// cachedMarket is one entry of the crypto-market cache: a market snapshot
// joined with its parsed crypto question match.
type cachedMarket struct {
	snapshot events.MarketSnapshot
	match    fairvalue.Match
}

// CryptoMarketCache holds, per market, the most recent snapshot plus its
// parsed crypto-question match. It is populated by the snapshot consumer and
// read by the crypto-price consumer; entries are overwritten on every
// snapshot, as required by the ownership model.
type CryptoMarketCache struct {
	mu      sync.RWMutex
	byID    map[string]cachedMarket
	bySym   map[string]map[string]struct{} // symbol -> set of marketIds
}

func NewCryptoMarketCache() *CryptoMarketCache {
	return &CryptoMarketCache{
		byID:  make(map[string]cachedMarket),
		bySym: make(map[string]map[string]struct{}),
	}
}

// Put parses the snapshot's question and stores (or refreshes) the cache
// entry if it references a known crypto symbol.
func (c *CryptoMarketCache) Put(s events.MarketSnapshot, now time.Time) {
	match := fairvalue.ParseQuestion(s.Question, now)
	if match == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byID[s.MarketID]; ok && old.match.Symbol != match.Symbol {
		if set, ok := c.bySym[old.match.Symbol]; ok {
			delete(set, s.MarketID)
		}
	}

	c.byID[s.MarketID] = cachedMarket{snapshot: s, match: *match}
	if c.bySym[match.Symbol] == nil {
		c.bySym[match.Symbol] = make(map[string]struct{})
	}
	c.bySym[match.Symbol][s.MarketID] = struct{}{}
}

// BySymbol returns a snapshot copy of every cached market referencing symbol.
func (c *CryptoMarketCache) BySymbol(symbol string) []cachedMarket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.bySym[symbol]
	out := make([]cachedMarket, 0, len(ids))
	for id := range ids {
		out = append(out, c.byID[id])
	}
	return out
}

// CryptoDivergenceDetector joins live crypto spot prices against the
// crypto-market cache and flags markets whose YES price diverges from the
// fair-value model's implied probability.
type CryptoDivergenceDetector struct {
	mu    sync.Mutex
	cache *CryptoMarketCache
	calc  *fairvalue.Calculator
}

func NewCryptoDivergenceDetector(cache *CryptoMarketCache) *CryptoDivergenceDetector {
	return &CryptoDivergenceDetector{cache: cache, calc: fairvalue.NewCalculator()}
}

// Process evaluates every cached market referencing p.Symbol and returns the
// anomalies (at most one per market) that clear the edge and ROI gates.
func (d *CryptoDivergenceDetector) Process(p events.CryptoPrice, now time.Time) ([]*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*events.Anomaly
	for _, cm := range d.cache.BySymbol(p.Symbol) {
		anomaly := d.evaluate(cm, p, now)
		if anomaly != nil {
			out = append(out, anomaly)
		}
	}
	return out, nil
}

func (d *CryptoDivergenceDetector) evaluate(cm cachedMarket, p events.CryptoPrice, now time.Time) *events.Anomaly {
	if cm.match.ExpiryDate == nil {
		return nil
	}

	yes, _ := cm.snapshot.YesPrice.Float64()
	if yes < cryptoMinYes || yes > cryptoMaxYes {
		return nil
	}

	daysLeft := cm.match.ExpiryDate.Sub(now).Hours() / 24
	if daysLeft < cryptoMinDaysLeft {
		return nil
	}

	volatility := p.AnnualVolatility
	if volatility < cryptoMinVol {
		volatility = cryptoMinVol
	}
	if volatility > cryptoMaxVol {
		volatility = cryptoMaxVol
	}

	years := fairvalue.YearsUntil(daysLeft)

	var fair float64
	if cm.match.IsAbove {
		fair = d.calc.ProbAbove(p.CurrentPrice, cm.match.TargetPrice, volatility, years)
	} else {
		fair = d.calc.ProbBelow(p.CurrentPrice, cm.match.TargetPrice, volatility, years)
	}

	edge := fair - yes
	if absF(edge) < cryptoEdgeThreshold {
		return nil
	}

	var signal events.Signal
	var buyPrice float64
	if edge > 0 {
		signal = events.SignalBuyYes
		buyPrice = yes
	} else {
		signal = events.SignalBuyNo
		buyPrice = 1 - yes
	}

	expectedROI := absF(edge) / buyPrice
	if expectedROI < cryptoMinROI {
		return nil
	}

	strongEdge := absF(edge) >= cryptoStrongEdge

	anomalyType := events.AnomalyCryptoDivergence
	if strongEdge {
		anomalyType = events.AnomalyArbitrageOpportunity
	}

	return &events.Anomaly{
		Type:        anomalyType,
		MarketID:    cm.snapshot.MarketID,
		Description: fmt.Sprintf("%s fair=%.3f market=%.3f edge=%.3f", p.Symbol, fair, yes, edge),
		Severity:    clampSeverity(absF(edge), cryptoSeverityScale),
		Details: events.Details{
			Signal:       signal,
			BuyPrice:     buyPrice,
			ROI:          expectedROI,
			Symbol:       p.Symbol,
			FairValue:    fair,
			MarketPrice:  yes,
			Edge:         edge,
			Volatility:   volatility,
			DaysToExpiry: daysLeft,
			StrongEdge:   strongEdge,
		},
		TS: p.TS,
	}
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
