package detect

import (
	"fmt"
	"sync"

	"github.com/phenomenon0/market-analytics/internal/events"
)

type spreadState struct {
	ewma float64
	obs  int
}

// SpreadDetector flags bid/ask spreads that are either chronically wide or
// spiking relative to the market's own running baseline.
type SpreadDetector struct {
	mu     sync.Mutex
	states map[string]*spreadState
}

func NewSpreadDetector() *SpreadDetector {
	return &SpreadDetector{states: make(map[string]*spreadState)}
}

func (d *SpreadDetector) Process(ob events.OrderBook) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	spread := ob.Spread()

	st, exists := d.states[ob.MarketID]
	if !exists {
		st = &spreadState{ewma: spread, obs: 1}
		d.states[ob.MarketID] = st
		return nil, nil
	}

	var anomaly *events.Anomaly
	if st.obs >= spreadMinObs {
		switch {
		case spread >= spreadWideTrigger:
			anomaly = &events.Anomaly{
				Type:        events.AnomalySpread,
				MarketID:    ob.MarketID,
				Description: fmt.Sprintf("wide spread %.3f", spread),
				Severity:    clampSeverity(spread, spreadWideScale),
				Details:     events.Details{Extra: map[string]any{"spread": spread, "kind": "wide"}},
				TS:          ob.TS,
			}
		case st.ewma > 0 && spread/st.ewma >= spreadSpikeRatio:
			ratio := spread / st.ewma
			anomaly = &events.Anomaly{
				Type:        events.AnomalySpread,
				MarketID:    ob.MarketID,
				Description: fmt.Sprintf("spread spiked %.1fx the running average", ratio),
				Severity:    clampSeverity(ratio, spreadSpikeScale),
				Details:     events.Details{Extra: map[string]any{"spread": spread, "ratio": ratio, "kind": "spike"}},
				TS:          ob.TS,
			}
		}
	}

	st.obs++
	st.ewma = (1-spreadAlpha)*st.ewma + spreadAlpha*spread
	return anomaly, nil
}
