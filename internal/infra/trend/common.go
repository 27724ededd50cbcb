// Package trend provides the trend sources that feed announcement runs:
// the GitHub search API, trending RSS/Atom feeds, and the GitHub trending page.
// Every source validates items at its boundary and reports unreachable or
// malformed upstreams as entity.ErrFetchFailed.
package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/observability/metrics"
	"rust-trends/internal/observability/tracing"
	"rust-trends/internal/resilience/circuitbreaker"
	"rust-trends/internal/resilience/retry"
)

const (
	// UserAgent identifies the bot to upstream services.
	UserAgent = "rust-trends-bot"

	maxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 15 * time.Second
)

// NewHTTPClient returns a client with a bounded timeout whose requests are traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: tracing.NewTransport(http.DefaultTransport),
	}
}

// resilient runs fn through the circuit breaker with one retry on transient
// failures. Whatever error survives is classified as entity.ErrFetchFailed.
func resilient(ctx context.Context, source string, cb *circuitbreaker.CircuitBreaker, cfg retry.Config, fn func() ([]entity.Candidate, error)) ([]entity.Candidate, error) {
	var items []entity.Candidate

	retryErr := retry.WithBackoff(ctx, cfg, func() error {
		cbResult, err := cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			if circuitbreaker.IsOpenError(err) {
				slog.Warn("trend source circuit breaker open, request rejected",
					slog.String("source", source),
					slog.String("state", cb.State().String()))
			}
			return err
		}
		items = cbResult.([]entity.Candidate)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("%s: %w: %w", source, entity.ErrFetchFailed, retryErr)
	}
	return items, nil
}

// get performs a GET and returns the response when the status is 200.
// Other statuses become *retry.HTTPError so 5xx and 429 are retried.
func get(ctx context.Context, client *http.Client, target, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordHTTPClientRequest(target, 0, time.Since(start))
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	metrics.RecordHTTPClientRequest(target, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return resp, nil
}

// parseRetryAfter reads a Retry-After header given in seconds. HTTP dates
// and malformed values yield zero, which leaves the backoff to the retry config.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// identityFromGitHubURL extracts "owner/name" from a github.com repository link.
func identityFromGitHubURL(link string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "github.com" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "/" + parts[1], true
}

// buildCandidate validates one upstream item. Invalid items are logged,
// counted, and dropped so the core only ever sees well-formed candidates.
func buildCandidate(source, identity, link, description string, strictIdentity bool, now time.Time) (entity.Candidate, bool) {
	c := entity.NewCandidate(strings.TrimSpace(identity), strings.TrimSpace(link), description, now)

	err := c.Validate()
	if err == nil {
		err = entity.ValidateURL(c.URL)
	}
	if err == nil && strictIdentity {
		err = entity.ValidateIdentity(c.Identity)
	}
	if err != nil {
		var verr *entity.ValidationError
		field := ""
		if errors.As(err, &verr) {
			field = verr.Field
		}
		slog.Warn("dropping invalid trend item",
			slog.String("source", source),
			slog.String("identity", identity),
			slog.String("field", field),
			slog.Any("error", err))
		metrics.RecordCandidateDropped(source)
		return entity.Candidate{}, false
	}
	return c, true
}
