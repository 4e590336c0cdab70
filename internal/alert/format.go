package alert

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/phenomenon0/market-analytics/internal/events"
	"github.com/phenomenon0/market-analytics/internal/paper"
	"github.com/phenomenon0/market-analytics/internal/quality"
)

const (
	emojiStrong = "⚡" // ⚡
	emojiGood   = "\U0001F7E2" // 🟢
	emojiOK     = "\U0001F7E1" // 🟡
)

func qualityEmoji(score int) string {
	switch {
	case score >= 85:
		return emojiStrong
	case score >= 70:
		return emojiGood
	default:
		return emojiOK
	}
}

// FormatAlert renders the full structured alert message: header, question,
// market type, context block, score breakdown, catalyst, signal line, an
// optional paper-trade block, and the market URL.
func FormatAlert(a events.Anomaly, q quality.Result, position *paper.Position, openCount int, balance float64, url string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s [%d/100]\n", qualityEmoji(q.Score), q.Score)
	fmt.Fprintf(&b, "%s\n", html.EscapeString(questionFor(a)))
	fmt.Fprintf(&b, "%s", string(q.Type))
	if q.HoursToResolution != nil {
		fmt.Fprintf(&b, " · resolves in %.1fh", *q.HoursToResolution)
	}
	b.WriteString("\n")

	if ctx := contextBlock(a); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\n")
	}

	if len(q.Reasons) > 0 {
		fmt.Fprintf(&b, "%s\n", strings.Join(q.Reasons, " | "))
	}

	if a.Details.Catalyst != "" {
		fmt.Fprintf(&b, "catalyst: %s\n", html.EscapeString(a.Details.Catalyst))
	}

	fmt.Fprintf(&b, "%s", string(a.Details.Signal))
	if a.Details.ROI > 0 {
		fmt.Fprintf(&b, " (ROI: +%.0f%%)", a.Details.ROI*100)
	}
	b.WriteString("\n")

	if position != nil {
		size, _ := position.Size.Float64()
		entry, _ := position.EntryPrice.Float64()
		pct := 0.0
		if balance > 0 {
			pct = size / balance * 100
		}
		fmt.Fprintf(&b, "paper: %s @ %.3f, $%.2f (%.1f%% of portfolio), balance $%.2f, %d open\n",
			position.Direction, entry, size, pct, balance, openCount)
	}

	if url != "" {
		fmt.Fprintf(&b, "%s\n", url)
	}

	return b.String()
}

func questionFor(a events.Anomaly) string {
	if q, ok := a.Details.Extra["question"].(string); ok {
		return q
	}
	return a.Description
}

func contextBlock(a events.Anomaly) string {
	d := a.Details
	switch a.Type {
	case events.AnomalyCryptoDivergence, events.AnomalyArbitrageOpportunity:
		return fmt.Sprintf("%s price=%.2f fair=%.3f market=%.3f |edge|=%.3f vol=%.2f days=%.1f",
			d.Symbol, d.TargetPrice, d.FairValue, d.MarketPrice, math.Abs(d.Edge), d.Volatility, d.DaysToExpiry)
	default:
		return ""
	}
}
