// Package alert dispatches qualified anomalies: it enforces the hard
// quality gate, a persistent daily rate limit, in-memory per-market
// deduplication, and a rolling per-minute throttle, then formats and hands
// the result to an outbound transport.
package alert

import (
	"fmt"
	"time"

	"github.com/phenomenon0/market-analytics/internal/events"
	"github.com/phenomenon0/market-analytics/internal/logger"
	"github.com/phenomenon0/market-analytics/internal/paper"
	"github.com/phenomenon0/market-analytics/internal/quality"
)

const qualifiedScoreThreshold = 60

// Transport is the outbound chat interface the dispatcher sends formatted
// alerts through.
type Transport interface {
	Send(text string) error
}

// Dispatcher wires the gate, rate limiter, and deduper together around a
// Transport.
type Dispatcher struct {
	transport Transport
	limiter   *RateLimiter
	deduper   *Deduper
}

func NewDispatcher(transport Transport, limiter *RateLimiter, deduper *Deduper) *Dispatcher {
	return &Dispatcher{transport: transport, limiter: limiter, deduper: deduper}
}

// Dispatch runs the gate chain in order and, if every gate passes, formats
// and sends the alert. It reports whether the alert was sent.
func (d *Dispatcher) Dispatch(a events.Anomaly, q quality.Result, position *paper.Position, openCount int, balance float64, url string, now time.Time) events.BetPlaced {
	result := events.BetPlaced{MarketID: a.MarketID, Anomaly: a.Type, Signal: a.Details.Signal, TS: now}

	if !isQualified(a, q) {
		return result
	}

	if !d.limiter.Check(now) {
		logger.Debug("alert: dropped %s/%s: daily rate limit or minimum gap", a.MarketID, a.Type)
		return result
	}

	key := fmt.Sprintf("%s:%s", a.MarketID, a.Type)
	if !d.deduper.Allow(key, now) {
		logger.Debug("alert: dropped %s/%s: dedup cooldown or per-minute throttle", a.MarketID, a.Type)
		return result
	}

	text := FormatAlert(a, q, position, openCount, balance, url)
	if err := d.transport.Send(text); err != nil {
		result.Err = err
		logger.Error("alert: send failed for %s/%s: %v", a.MarketID, a.Type, err)
		return result
	}

	d.limiter.Commit(now)
	result.Sent = true
	return result
}

func isQualified(a events.Anomaly, q quality.Result) bool {
	if q.Score < qualifiedScoreThreshold || len(q.Blocks) != 0 {
		return false
	}
	return a.Details.Signal == events.SignalBuyYes || a.Details.Signal == events.SignalBuyNo
}
