package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phenomenon0/market-analytics/internal/events"
	"github.com/phenomenon0/market-analytics/internal/logger"
)

// CryptoTickerStream delivers live spot-price ticks for a set of crypto
// symbols. Implementations are expected to reconnect on their own; callers
// just read from the channel Start returns until the context passed to
// Start is cancelled.
type CryptoTickerStream interface {
	Start(ctx context.Context, symbols []string) (<-chan events.CryptoPrice, error)
}

// WSCryptoStream is a CryptoTickerStream backed by a single WebSocket
// connection that resubscribes to every symbol after each reconnect.
type WSCryptoStream struct {
	url          string
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// NewWSCryptoStream constructs a stream pointed at a ticker WebSocket URL
// (e.g. a Binance- or Coinbase-style combined-stream endpoint).
func NewWSCryptoStream(url string, reconnectMin, reconnectMax time.Duration) *WSCryptoStream {
	return &WSCryptoStream{
		url:          url,
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
	}
}

type tickerMessage struct {
	Symbol      string  `json:"s"`
	LastPrice   string  `json:"c"`
	PriceChange string  `json:"P"` // 24h percent change, e.g. "1.23"
}

// Start connects, subscribes to symbols, and emits a events.CryptoPrice per
// tick. The returned channel is closed when ctx is cancelled. Reconnection
// uses the same doubling backoff, capped at reconnectMax, that the rest of
// the pack's WebSocket clients use, and resubscribes to every symbol on
// every successful reconnect.
func (s *WSCryptoStream) Start(ctx context.Context, symbols []string) (<-chan events.CryptoPrice, error) {
	out := make(chan events.CryptoPrice, 256)

	go func() {
		defer close(out)
		attempt := 0
		for {
			if ctx.Err() != nil {
				return
			}

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
			if err != nil {
				attempt++
				delay := backoff(s.reconnectMin, s.reconnectMax, attempt)
				logger.Warn("crypto ticker stream dial failed, retrying in %s: %v", delay, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
					continue
				}
			}
			attempt = 0

			if err := s.subscribe(conn, symbols); err != nil {
				logger.Error("crypto ticker stream subscribe failed: %v", err)
				conn.Close()
				continue
			}

			s.readUntilError(ctx, conn, out)
			conn.Close()

			if ctx.Err() != nil {
				return
			}
		}
	}()

	return out, nil
}

func (s *WSCryptoStream) subscribe(conn *websocket.Conn, symbols []string) error {
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, fmt.Sprintf("%s@ticker", sym))
	}
	sub := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     1,
	}
	return conn.WriteJSON(sub)
}

func (s *WSCryptoStream) readUntilError(ctx context.Context, conn *websocket.Conn, out chan<- events.CryptoPrice) {
	for {
		if ctx.Err() != nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("crypto ticker stream read error: %v", err)
			return
		}

		var msg tickerMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Symbol == "" {
			continue
		}

		price, ok := parseFloat(msg.LastPrice)
		if !ok {
			continue
		}
		pctChange, _ := parseFloat(msg.PriceChange)
		price24hAgo := price
		if pctChange != 0 {
			price24hAgo = price / (1 + pctChange/100)
		}

		tick := events.CryptoPrice{
			Symbol:           msg.Symbol,
			CurrentPrice:     price,
			Price24hAgo:      price24hAgo,
			AnnualVolatility: s.estimateVolatility(msg.Symbol, price, price24hAgo),
			TS:               time.Now().UTC(),
		}

		select {
		case out <- tick:
		case <-ctx.Done():
			return
		default:
			// consumer backed up, drop the tick rather than block the reader
		}
	}
}

// estimateVolatility annualizes the 24h move as a crude proxy for implied
// volatility. It is intentionally simple: a real feed would source this
// from an options surface, which is out of scope here.
func (s *WSCryptoStream) estimateVolatility(symbol string, price, price24hAgo float64) float64 {
	if price24hAgo <= 0 {
		return 0.5
	}
	dailyMove := (price - price24hAgo) / price24hAgo
	if dailyMove < 0 {
		dailyMove = -dailyMove
	}
	annualized := dailyMove * 19.1 // sqrt(365)
	if annualized < 0.10 {
		annualized = 0.10
	}
	if annualized > 2.0 {
		annualized = 2.0
	}
	return annualized
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func backoff(min, max time.Duration, attempt int) time.Duration {
	d := min * time.Duration(1<<uint(attempt-1))
	if d > max || d <= 0 {
		return max
	}
	return d
}
