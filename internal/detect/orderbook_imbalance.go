package detect

import (
	"fmt"
	"math"
	"sync"

	"github.com/phenomenon0/market-analytics/internal/events"
)

type imbalanceState struct {
	ewma float64
	obs  int
}

// OrderBookImbalanceDetector flags persistent one-sided order-book pressure
// that has not already become the chronic norm for the market.
type OrderBookImbalanceDetector struct {
	mu     sync.Mutex
	states map[string]*imbalanceState
}

func NewOrderBookImbalanceDetector() *OrderBookImbalanceDetector {
	return &OrderBookImbalanceDetector{states: make(map[string]*imbalanceState)}
}

func (d *OrderBookImbalanceDetector) Process(ob events.OrderBook) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	imbalance := ob.ImbalanceRatio()
	absImb := math.Abs(imbalance)

	st, exists := d.states[ob.MarketID]
	if !exists {
		st = &imbalanceState{ewma: absImb, obs: 1}
		d.states[ob.MarketID] = st
		return nil, nil
	}

	var anomaly *events.Anomaly
	totalDepth := ob.BidDepth + ob.AskDepth
	if absImb >= obImbalanceThreshold && totalDepth >= obImbalanceMinDepth &&
		st.obs >= obImbalanceMinObs && st.ewma <= obImbalanceMaxEWMA {

		yes := (ob.BestBid + ob.BestAsk) / 2

		if imbalance > 0 { // more bid depth than ask depth: BUY pressure
			if yes >= buyZoneLo && yes <= buyZoneHi {
				maxROI := (1 - yes) / yes
				if maxROI >= obImbalanceMinROI {
					anomaly = d.buildAnomaly(ob, events.SignalBuyYes, yes, maxROI, absImb)
				}
			}
		} else { // more ask depth: SELL pressure, NO attractive
			no := 1 - yes
			if no >= buyZoneLo && no <= buyZoneHi {
				maxROI := (1 - no) / no
				if maxROI >= obImbalanceMinROI {
					anomaly = d.buildAnomaly(ob, events.SignalBuyNo, no, maxROI, absImb)
				}
			}
		}
	}

	st.obs++
	st.ewma = (1-obImbalanceAlpha)*st.ewma + obImbalanceAlpha*absImb
	return anomaly, nil
}

func (d *OrderBookImbalanceDetector) buildAnomaly(ob events.OrderBook, signal events.Signal, buyPrice, roi, absImb float64) *events.Anomaly {
	return &events.Anomaly{
		Type:        events.AnomalyOrderBookImbalance,
		MarketID:    ob.MarketID,
		Description: fmt.Sprintf("order book imbalance %.2f, implied ROI %.0f%%", absImb, roi*100),
		Severity:    clamp01(absImb),
		Details: events.Details{
			Signal:   signal,
			BuyPrice: buyPrice,
			ROI:      roi,
		},
		TS: ob.TS,
	}
}
