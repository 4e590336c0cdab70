// Package market defines the external market-data interfaces the
// orchestrator depends on, plus thin HTTP/WS client implementations of
// each; the Gamma and CLOB REST clients are rate-limited, the RSS and
// WebSocket clients are not. Every concrete client here is a stub: it wires
// the real transport and request shape but the bodies it parses are
// intentionally minimal, since on-chain order placement and live data
// ingestion are out of this repository's scope.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/phenomenon0/market-analytics/internal/events"
)

// MetadataService looks up market metadata (question, category, end date,
// URL) needed to build a MarketSnapshot and to score its quality.
type MetadataService interface {
	GetMarket(ctx context.Context, marketID string) (events.MarketSnapshot, error)
	ListActiveMarkets(ctx context.Context, limit, offset int) ([]events.MarketSnapshot, error)
}

// GammaClient is a MetadataService backed by the Polymarket Gamma REST API.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGammaClient constructs a client rate-limited to rps requests/second
// with the given burst, matching the Gamma API's documented limits.
func NewGammaClient(baseURL string, timeout time.Duration, rps float64, burst int) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type gammaMarket struct {
	ConditionID string `json:"condition_id"`
	Question    string `json:"question"`
	Category    string `json:"category"`
	EndDate     string `json:"end_date_iso"`
	Slug        string `json:"slug"`
	OutcomePrices string `json:"outcomePrices"`
	Volume24hr  string `json:"volume24hr"`
	Liquidity   string `json:"liquidity"`
}

func (c *GammaClient) GetMarket(ctx context.Context, marketID string) (events.MarketSnapshot, error) {
	var m gammaMarket
	if err := c.get(ctx, "/markets/"+marketID, nil, &m); err != nil {
		return events.MarketSnapshot{}, err
	}
	return toSnapshot(m), nil
}

func (c *GammaClient) ListActiveMarkets(ctx context.Context, limit, offset int) ([]events.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("offset", fmt.Sprintf("%d", offset))

	var raw []gammaMarket
	if err := c.get(ctx, "/markets", params, &raw); err != nil {
		return nil, err
	}

	snapshots := make([]events.MarketSnapshot, 0, len(raw))
	for _, m := range raw {
		snapshots = append(snapshots, toSnapshot(m))
	}
	return snapshots, nil
}

func toSnapshot(m gammaMarket) events.MarketSnapshot {
	snap := events.MarketSnapshot{
		MarketID:  m.ConditionID,
		Question:  m.Question,
		Category:  m.Category,
		URL:       "https://polymarket.com/event/" + m.Slug,
		Volume24h: decimal.NewFromFloat(parseFloatOrZero(m.Volume24hr)),
		Liquidity: decimal.NewFromFloat(parseFloatOrZero(m.Liquidity)),
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		snap.EndDate = &t
	}

	if yes, no := outcomePrices(m.OutcomePrices); yes != "" {
		snap.YesPrice = decimal.NewFromFloat(parseFloatOrZero(yes))
		snap.NoPrice = decimal.NewFromFloat(parseFloatOrZero(no))
	}

	return snap
}

// outcomePrices parses the Gamma API's outcomePrices field, a JSON-encoded
// array of stringified floats (e.g. `["0.35","0.65"]`), returning the YES
// and NO prices by position. Polymarket's binary markets always list YES
// first.
func outcomePrices(raw string) (yes, no string) {
	var prices []string
	if err := json.Unmarshal([]byte(raw), &prices); err != nil || len(prices) < 2 {
		return "", ""
	}
	return prices[0], prices[1]
}

func (c *GammaClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gamma api error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
