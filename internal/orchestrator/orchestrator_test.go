package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/market-analytics/internal/alert"
	"github.com/phenomenon0/market-analytics/internal/bus"
	"github.com/phenomenon0/market-analytics/internal/events"
	"github.com/phenomenon0/market-analytics/internal/market"
	"github.com/phenomenon0/market-analytics/internal/paper"
)

type fakeMetadata struct {
	markets []events.MarketSnapshot
}

func (f *fakeMetadata) GetMarket(ctx context.Context, marketID string) (events.MarketSnapshot, error) {
	for _, m := range f.markets {
		if m.MarketID == marketID {
			return m, nil
		}
	}
	return events.MarketSnapshot{}, nil
}

func (f *fakeMetadata) ListActiveMarkets(ctx context.Context, limit, offset int) ([]events.MarketSnapshot, error) {
	return f.markets, nil
}

type fakeTransport struct {
	sent []string
}

func (f *fakeTransport) Send(text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeTransport) {
	t.Helper()
	dir := t.TempDir()

	b := bus.New(32)
	limiter := alert.NewRateLimiter(filepath.Join(dir, "rate_limit.json"), 50, time.Minute)
	deduper := alert.NewDeduper(15*time.Minute, 500, 10, time.Minute)
	tr := &fakeTransport{}
	dispatcher := alert.NewDispatcher(tr, limiter, deduper)
	paperEng := paper.NewEngine(filepath.Join(dir, "paper_state.json"))

	o := New(DefaultConfig(), b, nil, nil, &fakeMetadata{}, nil, nil, nil, nil, paperEng, dispatcher)
	return o, tr
}

func TestHandleTradeEmitsWhaleAnomaly(t *testing.T) {
	o, tr := newTestOrchestrator(t)

	o.mu.Lock()
	o.activeMarkets["M1"] = events.MarketSnapshot{
		MarketID: "M1",
		Question: "Will it rain tomorrow?",
		YesPrice: decimal.NewFromFloat(0.5),
		Category: "weather",
		Volume24h: decimal.NewFromFloat(200000),
	}
	o.mu.Unlock()

	trade := events.Trade{
		MarketID: "M1",
		Side:     events.SideBuy,
		Size:     decimal.NewFromFloat(100000),
		Price:    decimal.NewFromFloat(0.5),
		TS:       time.Now().UTC(),
	}

	if err := o.handleTrade(trade); err != nil {
		t.Fatalf("handleTrade returned error: %v", err)
	}

	o.signalMu.Lock()
	_, fired := o.recentSignals["M1"][events.AnomalyWhaleTrade]
	o.signalMu.Unlock()
	if !fired {
		t.Fatal("expected handleTrade to emit a whale anomaly for a $50k trade")
	}

	// A single whale signal alone won't clear the quality scorer's
	// "insufficient corroborating signals" block, so no alert should fire.
	if len(tr.sent) != 0 {
		t.Fatalf("expected no alert sent for a single uncorroborated signal, got %d", len(tr.sent))
	}
}

func TestTwoDistinctSignalsWithinWindowUnblockAlert(t *testing.T) {
	o, tr := newTestOrchestrator(t)

	end := time.Now().UTC().Add(12 * time.Hour)
	snap := events.MarketSnapshot{
		MarketID:  "M1",
		Question:  "Will the Lakers win tonight?",
		Category:  "sports",
		EndDate:   &end,
		Volume24h: decimal.NewFromFloat(2000000),
	}
	o.mu.Lock()
	o.activeMarkets["M1"] = snap
	o.mu.Unlock()

	first := &events.Anomaly{
		Type:     events.AnomalyWhaleTrade,
		MarketID: "M1",
		Details:  events.Details{Signal: events.SignalBuyYes, BuyPrice: 0.5},
	}
	o.emit(first, snap)
	if len(tr.sent) != 0 {
		t.Fatalf("expected the first, uncorroborated signal to stay gated, got %d sends", len(tr.sent))
	}

	second := &events.Anomaly{
		Type:     events.AnomalyOrderBookImbalance,
		MarketID: "M1",
		Details:  events.Details{Signal: events.SignalBuyYes, BuyPrice: 0.5},
	}
	o.emit(second, snap)
	if len(tr.sent) != 1 {
		t.Fatalf("expected a second, distinct corroborating signal to clear the block and dispatch an alert, got %d sends", len(tr.sent))
	}
}

func TestEmitThreadsMarketQuestionIntoAlertExtra(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	end := time.Now().UTC().Add(12 * time.Hour)
	snap := events.MarketSnapshot{
		MarketID:  "M1",
		Question:  "Will the Lakers win tonight?",
		Category:  "sports",
		EndDate:   &end,
		Volume24h: decimal.NewFromFloat(2000000),
	}

	a := &events.Anomaly{
		Type:        events.AnomalyWhaleTrade,
		MarketID:    "M1",
		Description: "whale buy: $500000 at 0.50",
		Details:     events.Details{Signal: events.SignalBuyYes, BuyPrice: 0.5},
	}
	o.emit(a, snap)

	got, ok := a.Details.Extra["question"].(string)
	if !ok {
		t.Fatal("expected emit to set Details.Extra[\"question\"]")
	}
	if got != snap.Question {
		t.Fatalf("expected Extra[\"question\"] to be the market question %q, got %q", snap.Question, got)
	}
}

func TestRecordSignalCountIgnoresSignalsOutsideWindow(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.cfg.SignalCorroborationWindow = time.Minute

	start := time.Now().UTC()
	if got := o.recordSignalCount("M1", events.AnomalyWhaleTrade, start); got != 1 {
		t.Fatalf("expected count 1 after the first signal, got %d", got)
	}

	later := start.Add(5 * time.Minute)
	if got := o.recordSignalCount("M1", events.AnomalyOrderBookImbalance, later); got != 1 {
		t.Fatalf("expected the stale whale signal to have expired, got %d", got)
	}
}

func TestRecordSignalCountCapsAtFive(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	now := time.Now().UTC()

	types := []events.AnomalyType{
		events.AnomalyWhaleTrade,
		events.AnomalyOrderBookImbalance,
		events.AnomalySpread,
		events.AnomalyVolumeSpike,
		events.AnomalyNewsImpact,
		events.AnomalyNearResolution,
	}
	var last int
	for _, at := range types {
		last = o.recordSignalCount("M1", at, now)
	}
	if last != 5 {
		t.Fatalf("expected the signal count to cap at 5, got %d", last)
	}
}

func TestHandleTradeRejectsWrongPayloadType(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	if err := o.handleTrade("not-a-trade"); err == nil {
		t.Fatal("expected an error for a mistyped payload")
	}
}

func TestConsumeDispatchesBusMessagesToHandler(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan events.Trade, 1)
	go o.consume(ctx, bus.TopicTrade, StreamTrade, func(raw interface{}) error {
		t, ok := raw.(events.Trade)
		if !ok {
			return nil
		}
		seen <- t
		return nil
	})

	// consume subscribes from inside its goroutine, and a publish made before
	// that subscription exists is not delivered, so wait for it first.
	deadline := time.Now().Add(time.Second)
	for o.bus.SubscriberCount(bus.TopicTrade) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	trade := events.Trade{MarketID: "M2", TS: time.Now().UTC()}
	o.bus.Publish(bus.TopicTrade, trade)

	select {
	case got := <-seen:
		if got.MarketID != "M2" {
			t.Fatalf("expected M2, got %s", got.MarketID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the handler to observe the published trade within 1s")
	}
}

func TestStartAndStopDoNotPanicWithNilOptionalDeps(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !o.IsRunning() {
		t.Fatal("expected orchestrator to report running after Start")
	}

	time.Sleep(20 * time.Millisecond)
	o.Stop()

	if o.IsRunning() {
		t.Fatal("expected orchestrator to report stopped after Stop")
	}
}

func TestActiveMarketCountReflectsSyncedMarkets(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.mu.Lock()
	o.activeMarkets["A"] = events.MarketSnapshot{MarketID: "A"}
	o.activeMarkets["B"] = events.MarketSnapshot{MarketID: "B"}
	o.mu.Unlock()

	if got := o.ActiveMarketCount(); got != 2 {
		t.Fatalf("expected 2 active markets, got %d", got)
	}
}

var _ market.MetadataService = (*fakeMetadata)(nil)
