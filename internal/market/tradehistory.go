package market

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Trade is a single executed fill reported by the CLOB trade-history feed.
type Trade struct {
	MarketID  string
	TokenID   string
	Price     float64
	Size      float64
	Side      string
	Taker     string
	TS        time.Time
}

// TradeHistoryService lists recent trades for a market's token, used by the
// whale detector.
type TradeHistoryService interface {
	ListRecentTrades(ctx context.Context, tokenID string, since time.Time) ([]Trade, error)
}

// CLOBTradeClient is a TradeHistoryService backed by the Polymarket CLOB
// REST trade-history endpoint, sharing the gamma client's rate-limit shape.
type CLOBTradeClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewCLOBTradeClient(baseURL string, timeout time.Duration, rps float64, burst int) *CLOBTradeClient {
	return &CLOBTradeClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type clobTrade struct {
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	TakerAddr string `json:"taker_order_maker_address"`
	Timestamp int64  `json:"match_time"`
}

func (c *CLOBTradeClient) ListRecentTrades(ctx context.Context, tokenID string, since time.Time) ([]Trade, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := fmt.Sprintf("%s/trades?asset_id=%s&after=%d", c.baseURL, tokenID, since.Unix())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clob trades api error %d", resp.StatusCode)
	}

	var raw []clobTrade
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}

	trades := make([]Trade, 0, len(raw))
	for _, t := range raw {
		trades = append(trades, Trade{
			MarketID: t.Market,
			TokenID:  t.AssetID,
			Price:    parseFloatOrZero(t.Price),
			Size:     parseFloatOrZero(t.Size),
			Side:     t.Side,
			Taker:    t.TakerAddr,
			TS:       time.Unix(t.Timestamp, 0).UTC(),
		})
	}
	return trades, nil
}
