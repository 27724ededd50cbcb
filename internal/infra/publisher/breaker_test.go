package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/resilience/circuitbreaker"
)

type flakyPublisher struct {
	err   error
	calls int
}

func (f *flakyPublisher) Name() string { return "flaky" }

func (f *flakyPublisher) Publish(context.Context, string) error {
	f.calls++
	return f.err
}

func TestWithCircuitBreaker_OpensAfterFailures(t *testing.T) {
	inner := &flakyPublisher{err: errors.New("platform down")}
	p := WithCircuitBreakerConfig(inner, circuitbreaker.Config{
		Name:             "publisher-flaky",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.6,
		MinRequests:      3,
	})

	for i := 0; i < 3; i++ {
		err := p.Publish(context.Background(), "msg")
		assert.ErrorIs(t, err, entity.ErrPublishFailed, "plain errors are classified")
	}
	require.Equal(t, 3, inner.calls)
	assert.True(t, p.CircuitOpen())

	err := p.Publish(context.Background(), "msg")
	assert.ErrorIs(t, err, entity.ErrPublishFailed)
	assert.True(t, circuitbreaker.IsOpenError(err))
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the platform")
}

func TestWithCircuitBreaker_PassesThrough(t *testing.T) {
	inner := &flakyPublisher{}
	p := WithCircuitBreaker(inner)

	require.NoError(t, p.Publish(context.Background(), "msg"))
	assert.Equal(t, "flaky", p.Name())
	assert.Equal(t, 1, inner.calls)
	assert.False(t, p.CircuitOpen())
}
