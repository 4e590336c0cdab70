package market

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NewsHeadline is a single item pulled from a news source, used by the
// news-catalyst detector to find coverage near a market's expiry.
type NewsHeadline struct {
	Title     string
	Link      string
	Published time.Time
	Source    string
}

// NewsFeed lists recent headlines matching a free-text query, used to
// detect a catalyst article published shortly before a market resolves.
type NewsFeed interface {
	SearchRecent(ctx context.Context, query string, since time.Time) ([]NewsHeadline, error)
}

// RSSNewsFeed is a NewsFeed backed by a fixed list of RSS feed URLs. It has
// no query-side filtering server-side, so SearchRecent fetches every feed
// and filters client-side by substring match and recency.
type RSSNewsFeed struct {
	feedURLs   []string
	httpClient *http.Client
}

func NewRSSNewsFeed(feedURLs []string, timeout time.Duration) *RSSNewsFeed {
	return &RSSNewsFeed{
		feedURLs:   feedURLs,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

func (f *RSSNewsFeed) SearchRecent(ctx context.Context, query string, since time.Time) ([]NewsHeadline, error) {
	var matches []NewsHeadline
	needle := strings.ToLower(query)

	for _, feedURL := range f.feedURLs {
		items, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			continue
		}

		for _, item := range items {
			if item.Published.Before(since) {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(item.Title), needle) {
				continue
			}
			matches = append(matches, item)
		}
	}

	return matches, nil
}

func (f *RSSNewsFeed) fetchFeed(ctx context.Context, feedURL string) ([]NewsHeadline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %d", feedURL, resp.StatusCode)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	headlines := make([]NewsHeadline, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		pub, _ := time.Parse(time.RFC1123Z, item.PubDate)
		headlines = append(headlines, NewsHeadline{
			Title:     item.Title,
			Link:      item.Link,
			Published: pub,
			Source:    doc.Channel.Title,
		})
	}
	return headlines, nil
}
