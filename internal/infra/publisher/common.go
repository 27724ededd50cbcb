package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/observability/logging"
	"rust-trends/internal/observability/metrics"
)

const (
	maxAttempts = 2

	defaultRetryDelay = 5 * time.Second
	defaultRetryAfter = 5 * time.Second

	// A 429 asking for a longer wait than this fails the post instead of
	// stalling the run; the candidate is retried on the next run.
	maxRetryAfter = time.Minute

	maxResponseBody = 64 * 1024

	truncationSuffix = "…"
)

// RateLimitError represents a 429 rate limit error from a platform.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from a platform.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a platform.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// is429Error checks if the error is a rate limit error and extracts retry_after.
func is429Error(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// isRetryableError checks if the error is worth retrying (5xx server errors, network errors).
// Client errors (4xx) are not retryable except for rate limits (429).
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}

	// Rate limit errors are handled separately
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return false
	}

	// Network errors are retryable
	return true
}

// attempt carries per-message state shared by every delivery attempt.
type attempt struct {
	// requestID is stable across attempts so platforms that support
	// idempotency keys can drop a duplicate.
	requestID string
	number    int
}

// deliver runs send at most maxAttempts times. A 429 consumes an attempt and
// its retry_after is honored once; 5xx and network errors back off linearly;
// other 4xx fail at once. The returned error wraps entity.ErrPublishFailed.
func deliver(ctx context.Context, name, requestID string, retryDelay time.Duration, send func(context.Context, attempt) error) error {
	logger := logging.FromContext(ctx).With(
		slog.String("publisher", name),
		slog.String("request_id", requestID))

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		err := send(ctx, attempt{requestID: requestID, number: n})
		if err == nil {
			logger.Debug("post delivered", slog.Int("attempt", n))
			return nil
		}
		lastErr = err

		if n == maxAttempts {
			break
		}

		var delay time.Duration
		if rateLimitErr, ok := is429Error(err); ok {
			if rateLimitErr.RetryAfter > maxRetryAfter {
				logger.Warn("rate limit backoff too long, giving up",
					slog.Duration("retry_after", rateLimitErr.RetryAfter))
				break
			}
			delay = rateLimitErr.RetryAfter
			logger.Warn("rate limit hit, backing off",
				slog.Duration("retry_after", delay),
				slog.Int("attempt", n))
		} else if isRetryableError(err) {
			delay = retryDelay * time.Duration(n)
			logger.Warn("delivery failed, retrying",
				slog.String("error", logging.SanitizeError(err)),
				slog.Int("attempt", n),
				slog.Duration("delay", delay))
		} else {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w: context canceled during backoff: %w", name, entity.ErrPublishFailed, ctx.Err())
		}
	}

	logger.Error("post delivery failed",
		slog.String("error", logging.SanitizeError(lastErr)))
	return fmt.Errorf("%s: %w: %w", name, entity.ErrPublishFailed, lastErr)
}

// do executes req and classifies the response. Transport errors drop the
// request URL because webhook URLs embed their token.
func do(client *http.Client, name string, req *http.Request) error {
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordHTTPClientRequest(name, 0, time.Since(start))
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordHTTPClientRequest(name, resp.StatusCode, time.Since(start))

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return classifyResponse(name, resp, body)
}

// classifyResponse maps a response status to nil or a typed error.
func classifyResponse(name string, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    name + " rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error %d: %s", name, resp.StatusCode, snippet(body)),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error %d: %s", name, resp.StatusCode, snippet(body)),
		}
	default:
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet(body))
	}
}

// extractRetryAfter reads retry_after (seconds) from a JSON body, falling
// back to the Retry-After header and then to a fixed default.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
		if at, err := http.ParseTime(header); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
			return 0
		}
	}

	return defaultRetryAfter
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	return truncateRunes(s, 200, truncationSuffix)
}

// truncateRunes cuts text to at most maxRunes runes including suffix.
func truncateRunes(text string, maxRunes int, suffix string) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	keep := maxRunes - utf8.RuneCountInString(suffix)
	if keep <= 0 {
		return string([]rune(suffix)[:maxRunes])
	}
	return string([]rune(text)[:keep]) + suffix
}

// fitMessage shortens a post to the platform limit. When the post ends in a
// link, the description in front of it is shortened and the link is kept whole.
func fitMessage(msg string, maxRunes int) string {
	if utf8.RuneCountInString(msg) <= maxRunes {
		return msg
	}
	i := strings.LastIndexByte(msg, ' ')
	if i > 0 {
		head, tail := msg[:i], msg[i:]
		if strings.HasPrefix(tail, " http") {
			room := maxRunes - utf8.RuneCountInString(tail)
			if room > utf8.RuneCountInString(truncationSuffix) {
				return truncateRunes(head, room, truncationSuffix) + tail
			}
		}
	}
	return truncateRunes(msg, maxRunes, truncationSuffix)
}
