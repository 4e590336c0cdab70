package detect

import (
	"fmt"
	"math"
	"sync"

	"github.com/phenomenon0/market-analytics/internal/events"
)

// MarketDivergenceDetector groups three related checks: a market drifting
// into a near-certain resolution, a YES+NO sum that no longer tracks 1.0,
// and (optionally) two related markets whose YES prices have pulled apart.
type MarketDivergenceDetector struct {
	mu sync.Mutex
}

func NewMarketDivergenceDetector() *MarketDivergenceDetector {
	return &MarketDivergenceDetector{}
}

// NearResolution emits when the market's YES price has drifted near 0 or 1.
func (d *MarketDivergenceDetector) NearResolution(s events.MarketSnapshot) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	yes, _ := s.YesPrice.Float64()
	if yes <= nearResolutionLo || yes >= nearResolutionHi {
		extremity := maxF(yes, 1-yes)
		severity := maxF(nearResolutionMinSev, extremity)
		return &events.Anomaly{
			Type:        events.AnomalyNearResolution,
			MarketID:    s.MarketID,
			Description: fmt.Sprintf("market near resolution, YES=%.3f", yes),
			Severity:    severity,
			Details:     events.Details{Extra: map[string]any{"yesPrice": yes}},
			TS:          s.TS,
		}, nil
	}
	return nil, nil
}

// PriceSumDivergence emits when yes+no drifts away from 1.0 beyond tolerance.
func (d *MarketDivergenceDetector) PriceSumDivergence(s events.MarketSnapshot) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	yes, _ := s.YesPrice.Float64()
	no, _ := s.NoPrice.Float64()
	deviation := math.Abs(yes + no - 1)
	if deviation >= priceSumDeviation {
		return &events.Anomaly{
			Type:        events.AnomalyMarketDivergence,
			MarketID:    s.MarketID,
			Description: fmt.Sprintf("yes+no sums to %.3f, deviation %.3f", yes+no, deviation),
			Severity:    clampSeverity(deviation, priceSumScale),
			Details:     events.Details{Extra: map[string]any{"deviation": deviation}},
			TS:          s.TS,
		}, nil
	}
	return nil, nil
}

// CrossMarket emits when two related markets' YES prices have pulled apart
// by at least the configured deviation. The caller supplies both snapshots;
// this detector carries no internal state because the relationship between
// markets is externally driven (e.g. by an event grouping upstream).
func (d *MarketDivergenceDetector) CrossMarket(a, b events.MarketSnapshot) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	yesA, _ := a.YesPrice.Float64()
	yesB, _ := b.YesPrice.Float64()
	deviation := math.Abs(yesA - yesB)
	if deviation >= crossMarketDeviation {
		return &events.Anomaly{
			Type:        events.AnomalyMarketDivergence,
			MarketID:    a.MarketID,
			Description: fmt.Sprintf("related market %s diverges by %.3f", b.MarketID, deviation),
			Severity:    clampSeverity(deviation, priceSumScale),
			Details:     events.Details{Extra: map[string]any{"deviation": deviation, "otherMarketId": b.MarketID}},
			TS:          a.TS,
		}, nil
	}
	return nil, nil
}
