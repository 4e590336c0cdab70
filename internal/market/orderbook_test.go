package market

import "testing"

func TestOrderBookSnapshotBestBidAsk(t *testing.T) {
	snap := OrderBookSnapshot{
		Bids: []OrderBookLevel{{Price: 0.48, Size: 100}, {Price: 0.50, Size: 50}, {Price: 0.49, Size: 10}},
		Asks: []OrderBookLevel{{Price: 0.55, Size: 20}, {Price: 0.52, Size: 30}},
	}

	bid, ok := snap.BestBid()
	if !ok || bid.Price != 0.50 {
		t.Fatalf("expected best bid 0.50, got %v (ok=%v)", bid, ok)
	}

	ask, ok := snap.BestAsk()
	if !ok || ask.Price != 0.52 {
		t.Fatalf("expected best ask 0.52, got %v (ok=%v)", ask, ok)
	}
}

func TestOrderBookSnapshotEmptySides(t *testing.T) {
	snap := OrderBookSnapshot{}

	if _, ok := snap.BestBid(); ok {
		t.Fatal("expected no best bid on an empty book")
	}
	if _, ok := snap.BestAsk(); ok {
		t.Fatal("expected no best ask on an empty book")
	}
}

func TestToLevelsParsesDecimalStrings(t *testing.T) {
	raw := []clobBookLevel{{Price: "0.345", Size: "120.5"}, {Price: "not-a-number", Size: "10"}}
	levels := toLevels(raw)

	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price != 0.345 || levels[0].Size != 120.5 {
		t.Fatalf("unexpected first level: %+v", levels[0])
	}
	if levels[1].Price != 0 {
		t.Fatalf("expected unparsable price to default to 0, got %v", levels[1].Price)
	}
}
