package events

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTradeValue(t *testing.T) {
	tr := Trade{Size: decimal.NewFromFloat(10), Price: decimal.NewFromFloat(0.4)}
	if got := tr.Value(); got != 4 {
		t.Fatalf("expected 4, got %v", got)
	}
}

func TestOrderBookSpread(t *testing.T) {
	ob := OrderBook{BestBid: 0.45, BestAsk: 0.52}
	if got := ob.Spread(); got < 0.0699 || got > 0.0701 {
		t.Fatalf("expected spread ~0.07, got %v", got)
	}
}

func TestOrderBookImbalanceRatio(t *testing.T) {
	ob := OrderBook{BidDepth: 300, AskDepth: 100}
	if got := ob.ImbalanceRatio(); got < 0.49 || got > 0.51 {
		t.Fatalf("expected imbalance ~0.5, got %v", got)
	}
}

func TestOrderBookImbalanceRatioEmptyBook(t *testing.T) {
	ob := OrderBook{}
	if got := ob.ImbalanceRatio(); got != 0 {
		t.Fatalf("expected 0 for an empty book, got %v", got)
	}
}

func TestDetailsFlattenIncludesExtra(t *testing.T) {
	d := Details{Signal: SignalBuyYes, BuyPrice: 0.6, Extra: map[string]any{"whaleAddress": "0xabc"}}
	flat := d.Flatten()
	if flat["signal"] != "BUY YES" {
		t.Fatalf("expected signal BUY YES, got %v", flat["signal"])
	}
	if flat["whaleAddress"] != "0xabc" {
		t.Fatalf("expected extra field to be merged in, got %v", flat["whaleAddress"])
	}
}
