package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListRecentTradesParsesFills(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"market":"0xabc","asset_id":"tok1","price":"0.42","size":"150.5","side":"BUY","taker_order_maker_address":"0xdef","match_time":1700000000}]`))
	}))
	defer server.Close()

	c := NewCLOBTradeClient(server.URL, 5*time.Second, 10, 5)
	trades, err := c.ListRecentTrades(context.Background(), "tok1", time.Unix(1699999000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.MarketID != "0xabc" || tr.TokenID != "tok1" || tr.Side != "BUY" {
		t.Fatalf("unexpected trade: %+v", tr)
	}
	if tr.Price != 0.42 || tr.Size != 150.5 {
		t.Fatalf("unexpected parsed price/size: %+v", tr)
	}
}

func TestListRecentTradesPropagatesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewCLOBTradeClient(server.URL, 5*time.Second, 10, 5)
	if _, err := c.ListRecentTrades(context.Background(), "tok1", time.Now()); err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}

func TestListRecentTradesEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewCLOBTradeClient(server.URL, 5*time.Second, 10, 5)
	trades, err := c.ListRecentTrades(context.Background(), "tok1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades, got %d", len(trades))
	}
}
