package detect

import (
	"testing"
	"time"

	"github.com/phenomenon0/market-analytics/internal/events"
)

func TestOrderBookImbalanceFiresAfterWarmup(t *testing.T) {
	d := NewOrderBookImbalanceDetector()
	now := time.Now()

	balanced := events.OrderBook{MarketID: "M1", BestBid: 0.18, BestAsk: 0.22, BidDepth: 1000, AskDepth: 1000, TS: now}
	ob := events.OrderBook{MarketID: "M1", BestBid: 0.18, BestAsk: 0.22, BidDepth: 5000, AskDepth: 200, TS: now}

	// First few observations only seed the per-market EWMA baseline; a
	// balanced book keeps that baseline low so the later skew is not the norm.
	for i := 0; i < obImbalanceMinObs; i++ {
		a, err := d.Process(balanced)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a != nil {
			t.Fatalf("did not expect an anomaly during warmup, got %+v", a)
		}
	}

	a, err := d.Process(ob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected an imbalance anomaly once warmed up")
	}
	if a.Details.Signal != events.SignalBuyYes {
		t.Fatalf("expected BUY YES for bid-heavy pressure, got %s", a.Details.Signal)
	}
}

func TestOrderBookImbalanceInsufficientDepthIsSilent(t *testing.T) {
	d := NewOrderBookImbalanceDetector()
	now := time.Now()
	ob := events.OrderBook{MarketID: "M1", BestBid: 0.18, BestAsk: 0.22, BidDepth: 50, AskDepth: 2, TS: now}

	for i := 0; i < obImbalanceMinObs+1; i++ {
		a, err := d.Process(ob)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a != nil {
			t.Fatalf("did not expect an anomaly below the min-depth floor, got %+v", a)
		}
	}
}
