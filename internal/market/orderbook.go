package market

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// OrderBookLevel is a single price/size rung of a CLOB order book.
type OrderBookLevel struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot is the top-of-book view used by the orderbook-imbalance
// and spread detectors.
type OrderBookSnapshot struct {
	MarketID string
	Bids     []OrderBookLevel
	Asks     []OrderBookLevel
	TS       time.Time
}

// BestBid returns the highest bid level, or false if the book is empty.
func (s OrderBookSnapshot) BestBid() (OrderBookLevel, bool) {
	if len(s.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	best := s.Bids[0]
	for _, b := range s.Bids[1:] {
		if b.Price > best.Price {
			best = b
		}
	}
	return best, true
}

// BestAsk returns the lowest ask level, or false if the book is empty.
func (s OrderBookSnapshot) BestAsk() (OrderBookLevel, bool) {
	if len(s.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	best := s.Asks[0]
	for _, a := range s.Asks[1:] {
		if a.Price < best.Price {
			best = a
		}
	}
	return best, true
}

// OrderBookService fetches a point-in-time order book for a market's token.
type OrderBookService interface {
	GetOrderBook(ctx context.Context, tokenID string) (OrderBookSnapshot, error)
}

// CLOBBookClient is an OrderBookService backed by the Polymarket CLOB REST
// endpoint. It has its own HTTP client and rate limiter and follows the same
// rate-limited request shape as the gamma client's get(), since both hit
// the same family of JSON APIs.
type CLOBBookClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewCLOBBookClient(baseURL string, timeout time.Duration, rps float64, burst int) *CLOBBookClient {
	return &CLOBBookClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type clobBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type clobBookResponse struct {
	Market string          `json:"market"`
	Bids   []clobBookLevel `json:"bids"`
	Asks   []clobBookLevel `json:"asks"`
}

func (c *CLOBBookClient) GetOrderBook(ctx context.Context, tokenID string) (OrderBookSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return OrderBookSnapshot{}, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/book?token_id="+tokenID, nil)
	if err != nil {
		return OrderBookSnapshot{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OrderBookSnapshot{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OrderBookSnapshot{}, fmt.Errorf("clob book api error %d", resp.StatusCode)
	}

	var raw clobBookResponse
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return OrderBookSnapshot{}, fmt.Errorf("decode book: %w", err)
	}

	return OrderBookSnapshot{
		MarketID: raw.Market,
		Bids:     toLevels(raw.Bids),
		Asks:     toLevels(raw.Asks),
		TS:       time.Now().UTC(),
	}, nil
}

func toLevels(raw []clobBookLevel) []OrderBookLevel {
	levels := make([]OrderBookLevel, 0, len(raw))
	for _, r := range raw {
		levels = append(levels, OrderBookLevel{
			Price: parseFloatOrZero(r.Price),
			Size:  parseFloatOrZero(r.Size),
		})
	}
	return levels
}
