package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetMarketParsesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"condition_id":"0xabc","question":"Will BTC hit $110k?","category":"Crypto","end_date_iso":"2026-03-31T00:00:00Z","slug":"btc-110k"}`))
	}))
	defer server.Close()

	c := NewGammaClient(server.URL, 5*time.Second, 10, 5)
	snap, err := c.GetMarket(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.MarketID != "0xabc" || snap.Question != "Will BTC hit $110k?" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.EndDate == nil || snap.EndDate.Year() != 2026 {
		t.Fatalf("expected parsed end date, got %v", snap.EndDate)
	}
	if snap.URL != "https://polymarket.com/event/btc-110k" {
		t.Fatalf("unexpected URL: %s", snap.URL)
	}
}

func TestGetMarketParsesPricesVolumeAndLiquidity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"condition_id":"0xabc","question":"Will BTC hit $110k?","slug":"btc-110k","outcomePrices":"[\"0.35\",\"0.65\"]","volume24hr":"842193.50","liquidity":"120044.10"}`))
	}))
	defer server.Close()

	c := NewGammaClient(server.URL, 5*time.Second, 10, 5)
	snap, err := c.GetMarket(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	yes, _ := snap.YesPrice.Float64()
	no, _ := snap.NoPrice.Float64()
	vol, _ := snap.Volume24h.Float64()
	liq, _ := snap.Liquidity.Float64()

	if yes != 0.35 {
		t.Fatalf("expected YesPrice 0.35, got %v", yes)
	}
	if no != 0.65 {
		t.Fatalf("expected NoPrice 0.65, got %v", no)
	}
	if vol != 842193.50 {
		t.Fatalf("expected Volume24h 842193.50, got %v", vol)
	}
	if liq != 120044.10 {
		t.Fatalf("expected Liquidity 120044.10, got %v", liq)
	}
}

func TestGetMarketPropagatesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := NewGammaClient(server.URL, 5*time.Second, 10, 5)
	if _, err := c.GetMarket(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestListActiveMarketsParsesMultiple(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"condition_id":"a","question":"Q1","slug":"q1"},{"condition_id":"b","question":"Q2","slug":"q2"}]`))
	}))
	defer server.Close()

	c := NewGammaClient(server.URL, 5*time.Second, 10, 5)
	snaps, err := c.ListActiveMarkets(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
}
