package detect

import (
	"strings"
	"testing"

	"github.com/phenomenon0/market-analytics/internal/events"
)

func TestNewsImpactAboveThresholdFires(t *testing.T) {
	d := NewNewsImpactDetector()
	n := events.NewsItem{
		MarketID:  "M1",
		Headline:  "Central bank signals surprise rate decision ahead of schedule",
		Source:    "wire",
		Relevance: 0.8,
	}

	a, err := d.Process(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected a news impact anomaly")
	}
	if a.Details.Catalyst == "" {
		t.Fatal("expected the catalyst headline to be set")
	}
}

func TestNewsImpactBelowThresholdIsSilent(t *testing.T) {
	d := NewNewsImpactDetector()
	n := events.NewsItem{MarketID: "M1", Headline: "unrelated local weather update", Relevance: 0.1}

	a, err := d.Process(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Fatalf("expected no anomaly below the relevance threshold, got %+v", a)
	}
}

func TestNewsImpactClipsLongHeadlines(t *testing.T) {
	d := NewNewsImpactDetector()
	headline := strings.Repeat("x", newsHeadlineClipLen+40)
	n := events.NewsItem{MarketID: "M1", Headline: headline, Relevance: 0.9}

	a, err := d.Process(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected an anomaly")
	}
	if len(a.Details.Catalyst) != newsHeadlineClipLen {
		t.Fatalf("expected catalyst to be clipped to %d chars, got %d", newsHeadlineClipLen, len(a.Details.Catalyst))
	}
}
