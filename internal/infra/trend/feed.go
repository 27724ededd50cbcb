package trend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/resilience/circuitbreaker"
	"rust-trends/internal/resilience/retry"
)

// FeedSource reads a trending RSS or Atom feed. Entries linking to a GitHub
// repository are identified by "owner/name"; other entries by their link.
type FeedSource struct {
	URL string

	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	now            func() time.Time
}

// NewFeedSource creates a FeedSource for feedURL.
func NewFeedSource(client *http.Client, feedURL string) *FeedSource {
	return &FeedSource{
		URL:            feedURL,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.TrendSourceConfig("feed")),
		retryConfig:    retry.TrendSourceConfig(),
		now:            time.Now,
	}
}

// Name implements announce.TrendSource.
func (f *FeedSource) Name() string { return "feed" }

// Fetch implements announce.TrendSource.
func (f *FeedSource) Fetch(ctx context.Context) ([]entity.Candidate, error) {
	return resilient(ctx, f.Name(), f.circuitBreaker, f.retryConfig, func() ([]entity.Candidate, error) {
		return f.doFetch(ctx)
	})
}

func (f *FeedSource) doFetch(ctx context.Context) ([]entity.Candidate, error) {
	header := http.Header{}
	header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := get(ctx, f.client, f.Name(), f.URL, header)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := f.now()
	out := make([]entity.Candidate, 0, len(feed.Items))
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		identity, ok := identityFromGitHubURL(link)
		if !ok {
			identity = link
		}
		if c, ok := buildCandidate(f.Name(), identity, link, plainText(it.Description), false, now); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// plainText strips markup from feed descriptions and collapses whitespace.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
