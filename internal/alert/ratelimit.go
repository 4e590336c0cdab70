package alert

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phenomenon0/market-analytics/internal/logger"
)

// RateLimitState is the durable daily-quota record, persisted as JSON so a
// restart does not reset the day's alert budget.
type RateLimitState struct {
	Date           string     `json:"date"` // YYYY-MM-DD, UTC
	TodayCount     int        `json:"todayCount"`
	LastSignalTime *time.Time `json:"lastSignalTime,omitempty"`
}

// RateLimiter enforces the daily-quota and minimum-gap gates against the
// persisted RateLimitState.
type RateLimiter struct {
	mu          sync.Mutex
	path        string
	maxPerDay   int
	minGap      time.Duration
	state       RateLimitState
}

func NewRateLimiter(path string, maxPerDay int, minGap time.Duration) *RateLimiter {
	r := &RateLimiter{path: path, maxPerDay: maxPerDay, minGap: minGap}
	r.load()
	return r
}

func (r *RateLimiter) load() {
	if r.path == "" {
		return
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return
	}
	var s RateLimitState
	if err := json.Unmarshal(data, &s); err == nil {
		r.state = s
	}
}

// Check reports whether an alert is currently permitted by the daily quota
// and minimum-gap gates, without committing anything. It does not mutate
// state even across a UTC day rollover, since a day with no alerts yet
// always has quota available regardless of what the stale persisted date
// says.
func (r *RateLimiter) Check(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := now.UTC().Format("2006-01-02")
	if r.state.Date != today {
		return true
	}

	if r.state.TodayCount >= r.maxPerDay {
		return false
	}
	if r.state.LastSignalTime != nil && now.Sub(*r.state.LastSignalTime) < r.minGap {
		return false
	}
	return true
}

// Commit records one alert against the daily quota and minimum-gap gates,
// resetting the day's counter if the persisted date has rolled over. Callers
// must call this only after the alert has actually been transported: a
// transport failure must not burn a rate-limit slot.
func (r *RateLimiter) Commit(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := now.UTC().Format("2006-01-02")
	if r.state.Date != today {
		r.state = RateLimitState{Date: today}
	}

	r.state.TodayCount++
	r.state.LastSignalTime = &now
	r.persist()
}

// Allow checks and, if permitted, commits in one call. Kept for callers that
// do not need to gate a side effect (like transport) between the check and
// the commit.
func (r *RateLimiter) Allow(now time.Time) bool {
	if !r.Check(now) {
		return false
	}
	r.Commit(now)
	return true
}

func (r *RateLimiter) persist() {
	if r.path == "" {
		return
	}

	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		logger.Error("alert: marshal rate limit state: %v", err)
		return
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("alert: create rate limit dir: %v", err)
		return
	}

	tmp, err := os.CreateTemp(dir, ".rate-limit-*.tmp")
	if err != nil {
		logger.Error("alert: create temp rate limit file: %v", err)
		return
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		logger.Error("alert: write temp rate limit file: %v", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		logger.Error("alert: close temp rate limit file: %v", err)
		return
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		logger.Error("alert: rename rate limit file: %v", err)
	}
}

// dedupRecord is one in-memory per-(marketId,type) cooldown entry.
type dedupRecord struct {
	sentAt time.Time
}

// Deduper drops repeat alerts for the same (marketId, anomaly type) within a
// configurable cooldown, and a per-minute throttle across all alerts.
type Deduper struct {
	mu           sync.Mutex
	cooldown     time.Duration
	evictAbove   int
	sent         map[string]dedupRecord
	throttle     []time.Time
	throttleMax  int
	throttleWindow time.Duration
}

func NewDeduper(cooldown time.Duration, evictAbove, throttleMax int, throttleWindow time.Duration) *Deduper {
	return &Deduper{
		cooldown:       cooldown,
		evictAbove:     evictAbove,
		sent:           make(map[string]dedupRecord),
		throttleMax:    throttleMax,
		throttleWindow: throttleWindow,
	}
}

// Allow reports whether key (marketId+type) may be sent now, and records it
// if so. It also enforces the rolling per-minute throttle.
func (d *Deduper) Allow(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.sent[key]; ok && now.Sub(rec.sentAt) < d.cooldown {
		return false
	}

	cutoff := now.Add(-d.throttleWindow)
	kept := d.throttle[:0]
	for _, ts := range d.throttle {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	d.throttle = kept
	if len(d.throttle) >= d.throttleMax {
		return false
	}

	d.sent[key] = dedupRecord{sentAt: now}
	d.throttle = append(d.throttle, now)

	if len(d.sent) > d.evictAbove {
		d.evictStale(now)
	}

	return true
}

func (d *Deduper) evictStale(now time.Time) {
	for k, rec := range d.sent {
		if now.Sub(rec.sentAt) >= d.cooldown {
			delete(d.sent, k)
		}
	}
}
