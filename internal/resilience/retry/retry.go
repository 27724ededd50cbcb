// Package retry re-runs transient failures with capped exponential backoff.
// Only errors that IsRetryable accepts are retried; everything else returns
// after the first attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"rust-trends/internal/observability/logging"
)

// Config controls the attempt count and the delays between attempts.
type Config struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Multiplier grows the delay after every retry.
	Multiplier float64

	// JitterFraction adds up to this fraction of the delay at random, 0 to 1.
	JitterFraction float64
}

// TrendSourceConfig gives a fetch exactly one retry. A failed run is cheap
// to repeat on the next schedule.
func TrendSourceConfig() Config {
	return Config{
		MaxAttempts:    2,
		InitialDelay:   time.Second,
		MaxDelay:       5 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.1,
	}
}

// HTTPError is a non-success HTTP response. RetryAfter carries the server's
// Retry-After hint when one was sent.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the status is worth another attempt.
func (e *HTTPError) Temporary() bool {
	switch {
	case e.StatusCode >= 500 && e.StatusCode < 600:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

// WithBackoff calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. A Retry-After hint replaces the computed delay but
// never exceeds MaxDelay. The logger is taken from ctx.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	logger := logging.FromContext(ctx)
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		delay := cfg.delay(attempt, err)
		logger.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", logging.SanitizeError(err)))

		if werr := sleep(ctx, delay); werr != nil {
			return fmt.Errorf("retry aborted: %w", werr)
		}
	}
}

// delay returns the wait before attempt+1.
func (c Config) delay(attempt int, err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return capDelay(httpErr.RetryAfter, c.MaxDelay)
	}

	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= max(c.Multiplier, 1)
	}
	return addJitter(capDelay(time.Duration(d), c.MaxDelay), c.JitterFraction)
}

func capDelay(d, limit time.Duration) time.Duration {
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRetryable reports whether err is transient: a network timeout, a refused
// or reset connection, or an HTTPError with a temporary status. Context
// cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.ENETUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func addJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	fraction = min(fraction, 1)
	// #nosec G404 -- backoff jitter needs no cryptographic randomness.
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}
