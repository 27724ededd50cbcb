package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/observability/logging"
	"rust-trends/internal/resilience/circuitbreaker"
	"rust-trends/internal/usecase/announce"
)

// BreakerPublisher guards a publisher with a circuit breaker. Once the
// platform keeps failing, the remaining posts of a run fail fast and stay
// unrecorded for the next run.
type BreakerPublisher struct {
	next announce.Publisher
	cb   *circuitbreaker.CircuitBreaker
}

// WithCircuitBreaker wraps p with circuitbreaker.PublisherConfig.
func WithCircuitBreaker(p announce.Publisher) *BreakerPublisher {
	return WithCircuitBreakerConfig(p, circuitbreaker.PublisherConfig(p.Name()))
}

// WithCircuitBreakerConfig wraps p with an explicit breaker configuration.
func WithCircuitBreakerConfig(p announce.Publisher, cfg circuitbreaker.Config) *BreakerPublisher {
	return &BreakerPublisher{next: p, cb: circuitbreaker.New(cfg)}
}

// Name implements announce.Publisher.
func (b *BreakerPublisher) Name() string { return b.next.Name() }

// Publish implements announce.Publisher.
func (b *BreakerPublisher) Publish(ctx context.Context, message string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, message)
	})
	if err == nil {
		return nil
	}
	if circuitbreaker.IsOpenError(err) {
		logging.FromContext(ctx).Warn("publisher circuit breaker open, post rejected",
			slog.String("publisher", b.Name()),
			slog.String("state", b.cb.State().String()))
		return fmt.Errorf("%s: %w: %w", b.Name(), entity.ErrPublishFailed, err)
	}
	if !errors.Is(err, entity.ErrPublishFailed) {
		return fmt.Errorf("%s: %w: %w", b.Name(), entity.ErrPublishFailed, err)
	}
	return err
}

// CircuitOpen reports whether posts are currently rejected without being sent.
func (b *BreakerPublisher) CircuitOpen() bool { return b.cb.IsOpen() }
