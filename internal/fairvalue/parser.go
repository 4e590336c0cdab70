package fairvalue

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// symbolAliases maps free-text tokens to canonical ticker symbols. Lookup is
// whole-word and case-insensitive, the same shape the reference soccer slug
// parser uses for team abbreviation lookups, generalised from a fixed-grammar
// slug to free text.
var symbolAliases = map[string]string{
	"bitcoin":  "BTC",
	"btc":      "BTC",
	"ethereum": "ETH",
	"eth":      "ETH",
	"ether":    "ETH",
	"solana":   "SOL",
	"sol":      "SOL",
	"dogecoin": "DOGE",
	"doge":     "DOGE",
	"xrp":      "XRP",
	"ripple":   "XRP",
	"polygon":  "MATIC",
	"matic":    "MATIC",
	"sui":      "SUI",
}

var wordPattern = regexp.MustCompile(`[A-Za-z]+`)

var targetPricePattern = regexp.MustCompile(`\$([0-9][0-9,]*(?:\.[0-9]+)?)\s*([kKmM]?)`)

var belowKeywords = []string{"below", "under", "less than", "lower than", "drop to", "fall to", "dip to", "beneath", "crash to"}
var aboveKeywords = []string{"above", "over", "exceed", "hit", "reach", "surpass", "higher than", "more than", "at least"}

var monthNames = "January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec"

var expiryPattern = regexp.MustCompile(`(?:on|by|before)?\s*(` + monthNames + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?`)

var dateLayouts = []string{"January 2 2006", "Jan 2 2006", "January 2", "Jan 2"}

// Match is the result of parsing a market question for a crypto price
// reference.
type Match struct {
	Symbol      string
	TargetPrice float64
	IsAbove     bool
	ExpiryDate  *time.Time
}

// ParseQuestion extracts (symbol, targetPrice, isAbove, expiryDate) from a
// market question, applying the extraction rules in order: symbol, target
// price, direction, expiry. Returns nil if no symbol match is found.
func ParseQuestion(question string, now time.Time) *Match {
	symbol := findSymbol(question)
	if symbol == "" {
		return nil
	}

	target, ok := findTargetPrice(question)
	if !ok {
		return nil
	}

	m := &Match{
		Symbol:      symbol,
		TargetPrice: target,
		IsAbove:     findDirection(question),
	}
	m.ExpiryDate = findExpiry(question, now)

	return m
}

func findSymbol(question string) string {
	for _, word := range wordPattern.FindAllString(question, -1) {
		if sym, ok := symbolAliases[strings.ToLower(word)]; ok {
			return sym
		}
	}
	return ""
}

func findTargetPrice(question string) (float64, bool) {
	match := targetPricePattern.FindStringSubmatch(question)
	if match == nil {
		return 0, false
	}

	numStr := strings.ReplaceAll(match[1], ",", "")
	value, err := strconv.ParseFloat(numStr, 64)
	if err != nil || value <= 0 {
		return 0, false
	}

	switch strings.ToLower(match[2]) {
	case "k":
		value *= 1e3
	case "m":
		value *= 1e6
	}

	return value, true
}

func findDirection(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range belowKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, kw := range aboveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return true
}

func findExpiry(question string, now time.Time) *time.Time {
	match := expiryPattern.FindStringSubmatch(question)
	if match == nil {
		return nil
	}

	month, day, year := match[1], match[2], match[3]
	if year == "" {
		year = strconv.Itoa(now.Year())
	}

	candidate := month + " " + day + " " + year
	var parsed time.Time
	var err error
	for _, layout := range dateLayouts {
		parsed, err = time.Parse(layout, candidate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()

	if parsed.Before(now) {
		parsed = parsed.AddDate(1, 0, 0)
	}

	return &parsed
}
