// Package quality implements the rule-based 0-100 anomaly quality scorer
// that gates which anomalies become actionable paper-trading signals.
package quality

import (
	"strings"
	"time"
)

// MarketType classifies a question for the market-type score component.
type MarketType string

const (
	TypeLiveSports        MarketType = "LiveSports"
	TypePriceBinary        MarketType = "PriceBinary"
	TypeObjectiveMeasurable MarketType = "ObjectiveMeasurable"
	TypeUnknown            MarketType = "Unknown"
)

const (
	hardBlockMinVolume = 50000.0
	softBlockMinVolume = 100000.0
	maxHoursNoNews      = 168.0

	scoreTime24h  = 30
	scoreTime72h  = 20
	scoreTime168h = 10
	scoreTimeNoEnd = 5

	scoreTypeLiveSports        = 25
	scoreTypePriceBinary        = 20
	scoreTypeObjectiveMeasurable = 15

	scoreVolume1M   = 15
	scoreVolume500k = 10
	scoreVolume100k = 5

	scoreSignals3Plus = 30
	scoreSignals2     = 15

	actionableThreshold = 60
)

var subjectiveCategories = map[string]struct{}{
	"awards":    {},
	"rankings":  {},
	"ai":        {},
	"politics":  {},
}

var subjectiveKeywords = []string{
	"mvp", "dpoy", "best", "oscar", "grammy", "emmy", "approval rating",
	"ranking", "model arena", "roty", "roy", "all-star", "pro bowl", "hall of fame",
}

var sportsKeywords = []string{
	"win", "beat", "score", "spread", "vs", "match", "game", "fight",
	"serie a", "premier league", "nba", "nfl", "mlb", "nhl", "ufc",
	"champions league", "la liga", "bundesliga",
}

var priceKeywords = []string{
	"above", "below", "reach", "dip", "price", "bitcoin", "btc", "eth",
	"ethereum", "sol", "s&p", "nasdaq", "dow", "gold", "oil", "cpi",
	"jobs report", "unemployment", "fed", "rate",
}

// Input bundles everything the scorer needs to evaluate one anomaly.
type Input struct {
	Question          string
	Category          string
	EndDate            *time.Time
	Volume             float64
	AnomalySignalCount int
	HasNewsCatalyst    bool
	Now                time.Time
}

// Result is the scorer's verdict.
type Result struct {
	Score             int
	Type              MarketType
	HoursToResolution *float64
	Reasons           []string
	Blocks            []string
}

// IsActionable reports whether the result clears the score threshold with no
// hard blocks.
func (r Result) IsActionable() bool {
	return r.Score >= actionableThreshold && len(r.Blocks) == 0
}

// Calculator scores anomalies. It is stateless and safe for concurrent use.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Score evaluates in, applying hard blocks before accumulating score
// components, matching the reference scorer's short-circuit-but-keep-score
// behaviour.
func (c *Calculator) Score(in Input) Result {
	lower := strings.ToLower(in.Question)
	mtype := classifyType(in.Category, lower)

	var hours *float64
	if in.EndDate != nil {
		h := in.EndDate.Sub(in.Now).Hours()
		hours = &h
	}

	res := Result{Type: mtype, HoursToResolution: hours}

	// Hard blocks short-circuit with the score accumulated so far (zero,
	// since no component has been added yet) rather than falling through
	// to the additive components below.
	if isSubjective(in.Category, lower) {
		res.Blocks = append(res.Blocks, "subjective market")
		return res
	}
	if in.Volume < hardBlockMinVolume {
		res.Blocks = append(res.Blocks, "volume below hard floor")
		return res
	}
	if hours != nil && *hours < 0 {
		res.Blocks = append(res.Blocks, "market already past end date")
		return res
	}
	if hours != nil && *hours > maxHoursNoNews && !in.HasNewsCatalyst {
		res.Blocks = append(res.Blocks, "resolution too far out without a news catalyst")
		return res
	}
	if mtype == TypeUnknown {
		res.Blocks = append(res.Blocks, "unrecognised market type")
		return res
	}
	if in.Volume < softBlockMinVolume {
		res.Blocks = append(res.Blocks, "volume below actionable floor")
		return res
	}
	if in.AnomalySignalCount < 2 {
		res.Blocks = append(res.Blocks, "insufficient corroborating signals")
		return res
	}

	res.Score += scoreForTime(hours)
	res.Score += scoreForType(mtype)
	res.Score += scoreForVolume(in.Volume)
	res.Score += scoreForSignals(in.AnomalySignalCount)

	if res.Score > 100 {
		res.Score = 100
	}

	res.Reasons = buildReasons(mtype, hours, in.Volume, in.AnomalySignalCount)

	return res
}

func scoreForTime(hours *float64) int {
	if hours == nil {
		return scoreTimeNoEnd
	}
	h := *hours
	switch {
	case h <= 24:
		return scoreTime24h
	case h <= 72:
		return scoreTime72h
	case h <= 168:
		return scoreTime168h
	default:
		return 0
	}
}

func scoreForType(t MarketType) int {
	switch t {
	case TypeLiveSports:
		return scoreTypeLiveSports
	case TypePriceBinary:
		return scoreTypePriceBinary
	case TypeObjectiveMeasurable:
		return scoreTypeObjectiveMeasurable
	default:
		return 0
	}
}

func scoreForVolume(v float64) int {
	switch {
	case v >= 1_000_000:
		return scoreVolume1M
	case v >= 500_000:
		return scoreVolume500k
	case v >= 100_000:
		return scoreVolume100k
	default:
		return 0
	}
}

func scoreForSignals(n int) int {
	switch {
	case n >= 3:
		return scoreSignals3Plus
	case n == 2:
		return scoreSignals2
	default:
		return 0
	}
}

func isSubjective(category, lowerQuestion string) bool {
	if _, ok := subjectiveCategories[strings.ToLower(category)]; ok {
		return true
	}
	for _, kw := range subjectiveKeywords {
		if strings.Contains(lowerQuestion, kw) {
			return true
		}
	}
	return false
}

func classifyType(category, lowerQuestion string) MarketType {
	if strings.ToLower(category) == "sports" || containsAny(lowerQuestion, sportsKeywords) {
		return TypeLiveSports
	}
	if containsAny(lowerQuestion, priceKeywords) {
		return TypePriceBinary
	}
	if strings.HasPrefix(lowerQuestion, "will ") {
		return TypeObjectiveMeasurable
	}
	return TypeUnknown
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func buildReasons(t MarketType, hours *float64, volume float64, signals int) []string {
	reasons := []string{string(t)}
	if hours != nil {
		reasons = append(reasons, timeReason(*hours))
	} else {
		reasons = append(reasons, "no end date")
	}
	reasons = append(reasons, volumeReason(volume))
	reasons = append(reasons, signalsReason(signals))
	return reasons
}

func timeReason(hours float64) string {
	switch {
	case hours <= 24:
		return "resolves within 24h"
	case hours <= 72:
		return "resolves within 72h"
	case hours <= 168:
		return "resolves within 168h"
	default:
		return "resolves beyond 168h"
	}
}

func volumeReason(v float64) string {
	switch {
	case v >= 1_000_000:
		return "volume >= 1M"
	case v >= 500_000:
		return "volume >= 500k"
	case v >= 100_000:
		return "volume >= 100k"
	default:
		return "volume below 100k"
	}
}

func signalsReason(n int) string {
	switch {
	case n >= 3:
		return "3+ corroborating signals"
	case n == 2:
		return "2 corroborating signals"
	default:
		return "fewer than 2 corroborating signals"
	}
}
