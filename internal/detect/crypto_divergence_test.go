package detect

import (
	"testing"
	"time"

	"github.com/phenomenon0/market-analytics/internal/events"
	"github.com/shopspring/decimal"
)

func TestCryptoDivergenceArbitrageScenario(t *testing.T) {
	cache := NewCryptoMarketCache()
	now := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)

	// With BTC at 108000, 65% volatility and 60 days to expiry the model puts
	// fair value near 0.42, so YES at 0.30 leaves an edge of about 0.12,
	// above cryptoStrongEdge, and an ROI of about 0.40.
	snapshot := events.MarketSnapshot{
		MarketID:  "M1",
		Question:  "Will Bitcoin be above $110,000 on March 31, 2026?",
		YesPrice:  decimal.NewFromFloat(0.30),
		NoPrice:   decimal.NewFromFloat(0.70),
		Volume24h: decimal.NewFromFloat(800000),
		Category:  "crypto",
		TS:        now,
	}
	cache.Put(snapshot, now)

	d := NewCryptoDivergenceDetector(cache)
	tick := events.CryptoPrice{
		Symbol:           "BTC",
		CurrentPrice:     108000,
		AnnualVolatility: 0.65,
		TS:               now,
	}

	anomalies, err := d.Process(tick, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly 1 anomaly, got %d", len(anomalies))
	}

	a := anomalies[0]
	if a.Type != events.AnomalyArbitrageOpportunity {
		t.Fatalf("expected AnomalyArbitrageOpportunity for a strong edge, got %s", a.Type)
	}
	if !a.Details.StrongEdge {
		t.Fatalf("expected StrongEdge to be true for this scenario")
	}
	if a.Details.Signal != events.SignalBuyYes {
		t.Fatalf("expected BUY YES signal, got %s", a.Details.Signal)
	}
	if a.Details.ROI < cryptoMinROI {
		t.Fatalf("expected ROI >= %.2f, got %.4f", cryptoMinROI, a.Details.ROI)
	}
}

func TestCryptoDivergenceNoMatchBelowEdgeThreshold(t *testing.T) {
	cache := NewCryptoMarketCache()
	now := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)

	snapshot := events.MarketSnapshot{
		MarketID: "M2",
		Question: "Will Bitcoin be above $110,000 on March 31, 2026?",
		YesPrice: decimal.NewFromFloat(0.44),
		NoPrice:  decimal.NewFromFloat(0.56),
		TS:       now,
	}
	cache.Put(snapshot, now)

	d := NewCryptoDivergenceDetector(cache)
	tick := events.CryptoPrice{Symbol: "BTC", CurrentPrice: 110000, AnnualVolatility: 0.65, TS: now}

	anomalies, _ := d.Process(tick, now)
	if len(anomalies) != 0 {
		t.Fatalf("expected no anomalies when price is already near fair value, got %d", len(anomalies))
	}
}

func TestCryptoDivergenceSkipsUnrelatedSymbol(t *testing.T) {
	cache := NewCryptoMarketCache()
	now := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)

	snapshot := events.MarketSnapshot{
		MarketID: "M3",
		Question: "Will Bitcoin be above $110,000 on March 31, 2026?",
		YesPrice: decimal.NewFromFloat(0.35),
		TS:       now,
	}
	cache.Put(snapshot, now)

	d := NewCryptoDivergenceDetector(cache)
	tick := events.CryptoPrice{Symbol: "ETH", CurrentPrice: 4000, AnnualVolatility: 0.7, TS: now}

	anomalies, _ := d.Process(tick, now)
	if len(anomalies) != 0 {
		t.Fatalf("expected no anomalies for an unrelated symbol, got %d", len(anomalies))
	}
}
