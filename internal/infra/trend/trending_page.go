package trend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/resilience/circuitbreaker"
	"rust-trends/internal/resilience/retry"
)

// DefaultTrendingURL is the GitHub trending page root.
const DefaultTrendingURL = "https://github.com/trending"

// Trending periods accepted by the trending page.
const (
	SinceDaily   = "daily"
	SinceWeekly  = "weekly"
	SinceMonthly = "monthly"
)

// TrendingPageSource scrapes the GitHub trending page for one language.
type TrendingPageSource struct {
	BaseURL  string
	Language string
	Since    string

	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	now            func() time.Time
}

// NewTrendingPageSource creates a scraper for language and period.
// An unknown period falls back to daily.
func NewTrendingPageSource(client *http.Client, baseURL, language, since string) *TrendingPageSource {
	if baseURL == "" {
		baseURL = DefaultTrendingURL
	}
	if language == "" {
		language = "rust"
	}
	switch since {
	case SinceDaily, SinceWeekly, SinceMonthly:
	default:
		since = SinceDaily
	}
	return &TrendingPageSource{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		Language:       language,
		Since:          since,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.TrendingPageConfig()),
		retryConfig:    retry.TrendSourceConfig(),
		now:            time.Now,
	}
}

// Name implements announce.TrendSource.
func (s *TrendingPageSource) Name() string { return "trending" }

// PageURL returns the page scraped by Fetch.
func (s *TrendingPageSource) PageURL() string {
	return s.BaseURL + "/" + url.PathEscape(s.Language) + "?since=" + url.QueryEscape(s.Since)
}

// Fetch implements announce.TrendSource.
func (s *TrendingPageSource) Fetch(ctx context.Context) ([]entity.Candidate, error) {
	return resilient(ctx, s.Name(), s.circuitBreaker, s.retryConfig, func() ([]entity.Candidate, error) {
		return s.doFetch(ctx)
	})
}

func (s *TrendingPageSource) doFetch(ctx context.Context) ([]entity.Candidate, error) {
	header := http.Header{}
	header.Set("Accept", "text/html")

	resp, err := get(ctx, s.client, s.Name(), s.PageURL(), header)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	now := s.now()
	var out []entity.Candidate
	doc.Find("article.Box-row").Each(func(_ int, row *goquery.Selection) {
		href, _ := row.Find("h2 a").First().Attr("href")
		href = strings.TrimSpace(href)
		identity := strings.Trim(href, "/")
		if identity == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		link := base.ResolveReference(ref).String()
		desc := strings.Join(strings.Fields(row.Find("p").First().Text()), " ")

		if c, ok := buildCandidate(s.Name(), identity, link, desc, true, now); ok {
			out = append(out, c)
		}
	})
	return out, nil
}
