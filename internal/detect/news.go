package detect

import (
	"fmt"
	"sync"

	"github.com/phenomenon0/market-analytics/internal/events"
)

// NewsImpactDetector flags news items whose keyword-match relevance to a
// market is high enough to be worth surfacing.
type NewsImpactDetector struct {
	mu sync.Mutex
}

func NewNewsImpactDetector() *NewsImpactDetector {
	return &NewsImpactDetector{}
}

func (d *NewsImpactDetector) Process(n events.NewsItem) (*events.Anomaly, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n.Relevance < newsRelevanceThreshold {
		return nil, nil
	}

	headline := n.Headline
	if len(headline) > newsHeadlineClipLen {
		headline = headline[:newsHeadlineClipLen]
	}

	return &events.Anomaly{
		Type:        events.AnomalyNewsImpact,
		MarketID:    n.MarketID,
		Description: fmt.Sprintf("news (relevance %.2f): %s", n.Relevance, headline),
		Severity:    minF(n.Relevance, 1),
		Details:     events.Details{Catalyst: headline, Extra: map[string]any{"source": n.Source, "url": n.URL}},
		TS:          n.TS,
	}, nil
}
