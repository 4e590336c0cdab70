package detect

import (
	"fmt"
	"math"
	"sync"

	"github.com/phenomenon0/market-analytics/internal/events"
)

// PriceSpikeDetector flags large single-step YES-price moves and classifies
// them as a reversal (down move) or momentum (up move) strategy.
type PriceSpikeDetector struct {
	mu sync.Mutex
}

// NewPriceSpikeDetector constructs a detector with no per-market state: the
// trigger depends only on the incoming delta, not on any running baseline.
func NewPriceSpikeDetector() *PriceSpikeDetector {
	return &PriceSpikeDetector{}
}

// Process evaluates a single price change and returns an anomaly if the
// configured reversal or momentum strategy fires.
func (d *PriceSpikeDetector) Process(pc events.PriceChange) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if math.Abs(pc.ChangePercent) < priceSpikeThresholdPct {
		return nil, nil
	}

	oldYes, newYes := pc.OldPrice, pc.NewPrice
	severity := clampSeverity(math.Abs(pc.ChangePercent), priceSpikeSeverityScale)

	if newYes < oldYes && newYes >= reversalZoneLo && newYes <= reversalZoneHi {
		drop := oldYes - newYes
		expectedBounce := 0.5 * drop
		roi := expectedBounce / newYes
		if roi < reversalMinROI {
			return nil, nil
		}
		return &events.Anomaly{
			Type:        events.AnomalyPriceSpike,
			MarketID:    pc.MarketID,
			Description: fmt.Sprintf("reversal: YES dropped %.1f%% to %.2f, expected bounce to %.2f", pc.ChangePercent, newYes, newYes+expectedBounce),
			Severity:    severity,
			Details: events.Details{
				Signal:      events.SignalBuyYes,
				BuyPrice:    newYes,
				TargetPrice: newYes + expectedBounce,
				ROI:         roi,
				Extra:       map[string]any{"strategy": "reversal"},
			},
			TS: pc.TS,
		}, nil
	}

	if newYes > oldYes && newYes >= momentumZoneLo && newYes <= momentumZoneHi {
		roi := (1 - newYes) / newYes
		if roi < momentumMinROI {
			return nil, nil
		}
		return &events.Anomaly{
			Type:        events.AnomalyPriceSpike,
			MarketID:    pc.MarketID,
			Description: fmt.Sprintf("momentum: YES rose %.1f%% to %.2f", pc.ChangePercent, newYes),
			Severity:    severity,
			Details: events.Details{
				Signal:   events.SignalBuyYes,
				BuyPrice: newYes,
				ROI:      roi,
				Extra:    map[string]any{"strategy": "momentum"},
			},
			TS: pc.TS,
		}, nil
	}

	return nil, nil
}
