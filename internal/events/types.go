// Package events defines the wire-level data model shared by every stream
// producer and consumer in the analytics pipeline.
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal is a detector's recommended paper-trading action.
type Signal string

const (
	SignalNone    Signal = ""
	SignalBuyYes  Signal = "BUY YES"
	SignalBuyNo   Signal = "BUY NO"
)

// AnomalyType enumerates every kind of anomaly the detector suite can emit.
type AnomalyType string

const (
	AnomalyPriceSpike          AnomalyType = "PriceSpike"
	AnomalyVolumeSpike         AnomalyType = "VolumeSpike"
	AnomalyWhaleTrade          AnomalyType = "WhaleTrade"
	AnomalyMarketDivergence    AnomalyType = "MarketDivergence"
	AnomalyNearResolution      AnomalyType = "NearResolution"
	AnomalyOrderBookImbalance  AnomalyType = "OrderBookImbalance"
	AnomalySpread              AnomalyType = "SpreadAnomaly"
	AnomalyNewsImpact          AnomalyType = "NewsImpact"
	AnomalyCryptoDivergence    AnomalyType = "CryptoDivergence"
	AnomalyArbitrageOpportunity AnomalyType = "ArbitrageOpportunity"
)

// MarketSnapshot is a periodic full-state read of one market.
type MarketSnapshot struct {
	MarketID  string
	Question  string
	YesPrice  decimal.Decimal
	NoPrice   decimal.Decimal
	Volume24h decimal.Decimal
	Liquidity decimal.Decimal
	EndDate   *time.Time
	Category  string
	URL       string
	TS        time.Time
}

// PriceChange is a delta notification for one market's YES price.
type PriceChange struct {
	MarketID      string
	Question      string
	OldPrice      float64
	NewPrice      float64
	ChangePercent float64
	TS            time.Time
}

// Trade is a single executed trade on a market.
type Trade struct {
	MarketID      string
	TraderAddress string
	Side          Side
	Size          decimal.Decimal
	Price         decimal.Decimal
	TS            time.Time
}

// Value returns size*price as a plain float64, used for threshold checks.
func (t Trade) Value() float64 {
	v, _ := t.Size.Mul(t.Price).Float64()
	return v
}

// OrderBook is a top-of-book snapshot for one market's YES token.
type OrderBook struct {
	MarketID  string
	BestBid   float64
	BestAsk   float64
	BidDepth  float64
	AskDepth  float64
	TS        time.Time
}

// Spread returns ask-bid.
func (b OrderBook) Spread() float64 { return b.BestAsk - b.BestBid }

// ImbalanceRatio returns (bidDepth-askDepth)/(bidDepth+askDepth), 0 when both are 0.
func (b OrderBook) ImbalanceRatio() float64 {
	total := b.BidDepth + b.AskDepth
	if total == 0 {
		return 0
	}
	return (b.BidDepth - b.AskDepth) / total
}

// NewsItem is a single news article matched to a market.
type NewsItem struct {
	MarketID  string
	Headline  string
	Source    string
	URL       string
	Relevance float64
	TS        time.Time
}

// CryptoPrice is a spot-price tick for one crypto asset.
type CryptoPrice struct {
	Symbol           string
	CurrentPrice     float64
	Price24hAgo      float64
	AnnualVolatility float64
	TS               time.Time
}

// CryptoMarketMatch is the question-parser's structured read of a market question.
type CryptoMarketMatch struct {
	Symbol      string
	TargetPrice float64
	IsAbove     bool
	ExpiryDate  *time.Time
}

// Anomaly is the unified event the detector suite publishes. Details carries
// the per-type typed payload; String-keyed rendering only happens at the
// formatting/metrics boundary via Details.Flatten().
type Anomaly struct {
	Type        AnomalyType
	MarketID    string
	Description string
	Severity    float64
	Details     Details
	TS          time.Time
}

// Details is the tagged-union payload carried by an Anomaly. Exactly the
// fields relevant to Type are populated; everything else is zero.
type Details struct {
	Signal        Signal
	QualityScore  int
	ROI           float64
	BuyPrice      float64
	TargetPrice   float64
	Symbol        string
	FairValue     float64
	MarketPrice   float64
	Edge          float64
	Volatility    float64
	DaysToExpiry  float64
	StrongEdge    bool
	IsBigWhale    bool
	Catalyst      string
	HoursToExpiry float64
	Extra         map[string]any
}

// Flatten renders Details into a string-keyed map for serialisation or
// metrics labels, the one place the tagged union is allowed to decay into
// the historical dynamic shape.
func (d Details) Flatten() map[string]any {
	m := map[string]any{
		"signal":        string(d.Signal),
		"qualityScore":  d.QualityScore,
		"roi":           d.ROI,
		"buyPrice":      d.BuyPrice,
		"targetPrice":   d.TargetPrice,
		"symbol":        d.Symbol,
		"fairValue":     d.FairValue,
		"marketPrice":   d.MarketPrice,
		"edge":          d.Edge,
		"volatility":    d.Volatility,
		"daysToExpiry":  d.DaysToExpiry,
		"strongEdge":    d.StrongEdge,
		"isBigWhale":    d.IsBigWhale,
		"catalyst":      d.Catalyst,
		"hoursToExpiry": d.HoursToExpiry,
	}
	for k, v := range d.Extra {
		m[k] = v
	}
	return m
}

// BetPlaced summarises the outcome of transporting a signal to the outbound
// chat transport.
type BetPlaced struct {
	MarketID  string
	Anomaly   AnomalyType
	Signal    Signal
	Sent      bool
	Err       error
	TS        time.Time
}
