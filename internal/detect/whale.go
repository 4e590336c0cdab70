package detect

import (
	"fmt"
	"sync"

	"github.com/phenomenon0/market-analytics/internal/events"
)

// WhaleDetector flags large single trades whose implied buy price lands in
// an attractive value zone.
type WhaleDetector struct {
	mu sync.Mutex
}

func NewWhaleDetector() *WhaleDetector {
	return &WhaleDetector{}
}

func (d *WhaleDetector) Process(t events.Trade) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	value := t.Value()
	if value < whaleValueThreshold {
		return nil, nil
	}

	isBigWhale := value >= whaleBigThreshold
	minROI := whaleMinROISmall
	if isBigWhale {
		minROI = whaleMinROIBig
	}

	price, _ := t.Price.Float64()

	var signal events.Signal
	var buyPrice, maxROI float64

	switch t.Side {
	case events.SideBuy:
		signal = events.SignalBuyYes
		buyPrice = price
		if price > 0 {
			maxROI = (1 - price) / price
		}
	case events.SideSell:
		// SELL pressure implies NO is attractive; NO price approx 1-price.
		signal = events.SignalBuyNo
		buyPrice = 1 - price
		if buyPrice > 0 {
			maxROI = price / buyPrice
		}
	default:
		return nil, nil
	}

	if maxROI < minROI {
		return nil, nil
	}
	if buyPrice < buyZoneLo || buyPrice > buyZoneHi {
		return nil, nil
	}

	return &events.Anomaly{
		Type:        events.AnomalyWhaleTrade,
		MarketID:    t.MarketID,
		Description: fmt.Sprintf("whale %s trade worth $%.0f at %.2f", t.Side, value, price),
		Severity:    clampSeverity(value, whaleSeverityScale),
		Details: events.Details{
			Signal:     signal,
			BuyPrice:   buyPrice,
			ROI:        maxROI,
			IsBigWhale: isBigWhale,
		},
		TS: t.TS,
	}, nil
}
