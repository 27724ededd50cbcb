package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/resilience/circuitbreaker"
	"rust-trends/internal/resilience/retry"
)

const (
	// DefaultGitHubAPIURL is the public GitHub REST endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"

	// DefaultGitHubQuery selects Rust repositories.
	DefaultGitHubQuery = "language:rust"

	defaultPerPage = 30
	maxPerPage     = 100
)

// GitHubSearchSource lists repositories from the GitHub search API ordered by stars.
type GitHubSearchSource struct {
	BaseURL string
	Token   string
	Query   string
	PerPage int
	// CreatedWithin restricts results to repositories created in this period.
	// Zero disables the filter.
	CreatedWithin time.Duration

	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	now            func() time.Time
}

// GitHubOption customizes a GitHubSearchSource.
type GitHubOption func(*GitHubSearchSource)

// WithGitHubToken authenticates requests, which raises the rate limit.
func WithGitHubToken(token string) GitHubOption {
	return func(s *GitHubSearchSource) { s.Token = token }
}

// WithQuery replaces the search query.
func WithQuery(q string) GitHubOption {
	return func(s *GitHubSearchSource) {
		if q != "" {
			s.Query = q
		}
	}
}

// WithPerPage sets the page size (1-100).
func WithPerPage(n int) GitHubOption {
	return func(s *GitHubSearchSource) {
		if n > 0 && n <= maxPerPage {
			s.PerPage = n
		}
	}
}

// WithCreatedWithin adds a created:>date filter to the query.
func WithCreatedWithin(d time.Duration) GitHubOption {
	return func(s *GitHubSearchSource) { s.CreatedWithin = d }
}

// WithGitHubClock overrides the clock used for discovery time and the created filter.
func WithGitHubClock(now func() time.Time) GitHubOption {
	return func(s *GitHubSearchSource) { s.now = now }
}

// WithGitHubRetry overrides the retry policy.
func WithGitHubRetry(cfg retry.Config) GitHubOption {
	return func(s *GitHubSearchSource) { s.retryConfig = cfg }
}

// NewGitHubSearchSource creates a source against baseURL (empty means the public API).
func NewGitHubSearchSource(client *http.Client, baseURL string, opts ...GitHubOption) *GitHubSearchSource {
	if baseURL == "" {
		baseURL = DefaultGitHubAPIURL
	}
	s := &GitHubSearchSource{
		BaseURL:        baseURL,
		Query:          DefaultGitHubQuery,
		PerPage:        defaultPerPage,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.TrendSourceConfig("github")),
		retryConfig:    retry.TrendSourceConfig(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements announce.TrendSource.
func (s *GitHubSearchSource) Name() string { return "github" }

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	FullName    string  `json:"full_name"`
	HTMLURL     string  `json:"html_url"`
	Description *string `json:"description"`
}

// Fetch implements announce.TrendSource. Items missing full_name or html_url
// are dropped; a null description becomes empty.
func (s *GitHubSearchSource) Fetch(ctx context.Context) ([]entity.Candidate, error) {
	return resilient(ctx, s.Name(), s.circuitBreaker, s.retryConfig, func() ([]entity.Candidate, error) {
		return s.doFetch(ctx)
	})
}

// SearchURL returns the request URL for the current configuration.
func (s *GitHubSearchSource) SearchURL() string {
	q := s.Query
	if s.CreatedWithin > 0 {
		since := s.now().UTC().Add(-s.CreatedWithin).Format("2006-01-02")
		q += " created:>" + since
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("sort", "stars")
	v.Set("order", "desc")
	v.Set("per_page", strconv.Itoa(s.PerPage))
	return s.BaseURL + "/search/repositories?" + v.Encode()
}

func (s *GitHubSearchSource) doFetch(ctx context.Context) ([]entity.Candidate, error) {
	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	header.Set("X-GitHub-Api-Version", "2022-11-28")
	if s.Token != "" {
		header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := get(ctx, s.client, s.Name(), s.SearchURL(), header)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	now := s.now()
	out := make([]entity.Candidate, 0, len(body.Items))
	for _, it := range body.Items {
		desc := ""
		if it.Description != nil {
			desc = *it.Description
		}
		if c, ok := buildCandidate(s.Name(), it.FullName, it.HTMLURL, desc, true, now); ok {
			out = append(out, c)
		}
	}
	return out, nil
}
