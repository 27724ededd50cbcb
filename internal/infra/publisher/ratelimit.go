package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/observability/logging"
)

// RateLimiter paces posts to one platform with a token bucket: burst posts go
// out at once, the rest at perSecond.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns a limiter refilling at perSecond tokens with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until publisher may post. A context that ends first fails the
// post with entity.ErrPublishFailed.
func (r *RateLimiter) Wait(ctx context.Context, publisher, requestID string) error {
	start := time.Now()
	err := r.limiter.Wait(ctx)
	logger := logging.FromContext(ctx)
	if err != nil {
		logger.Error("rate limiter wait aborted",
			slog.String("publisher", publisher),
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return fmt.Errorf("%s: %w: rate limiter: %w", publisher, entity.ErrPublishFailed, err)
	}
	if waited := time.Since(start); waited > time.Second {
		logger.Debug("post delayed by rate limiter",
			slog.String("publisher", publisher),
			slog.Duration("waited", waited))
	}
	return nil
}
