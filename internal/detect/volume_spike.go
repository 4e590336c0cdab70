package detect

import (
	"fmt"
	"sync"

	"github.com/phenomenon0/market-analytics/internal/events"
)

type volumeState struct {
	avg float64
}

// VolumeSpikeDetector maintains a per-market EWMA of 24h volume and flags
// readings that spike well above the running baseline.
type VolumeSpikeDetector struct {
	mu     sync.Mutex
	states map[string]*volumeState
}

func NewVolumeSpikeDetector() *VolumeSpikeDetector {
	return &VolumeSpikeDetector{states: make(map[string]*volumeState)}
}

// Process compares the incoming volume against the pre-update EWMA (detect
// before observe, per the EWMA-coupling design note) then updates the EWMA.
func (d *VolumeSpikeDetector) Process(s events.MarketSnapshot) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	x, _ := s.Volume24h.Float64()

	st, exists := d.states[s.MarketID]
	if !exists {
		st = &volumeState{avg: x}
		d.states[s.MarketID] = st
		return nil, nil
	}

	var anomaly *events.Anomaly
	if st.avg > 0 {
		multiplier := x / st.avg
		if multiplier >= volumeSpikeRatio {
			anomaly = &events.Anomaly{
				Type:        events.AnomalyVolumeSpike,
				MarketID:    s.MarketID,
				Description: fmt.Sprintf("24h volume %.0f is %.1fx the running average %.0f", x, multiplier, st.avg),
				Severity:    clampSeverity(multiplier, volumeSpikeScale),
				Details:     events.Details{Extra: map[string]any{"multiplier": multiplier, "avg": st.avg}},
				TS:          s.TS,
			}
		}
	}

	st.avg = (1-volumeSpikeAlpha)*st.avg + volumeSpikeAlpha*x
	return anomaly, nil
}
