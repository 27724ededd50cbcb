// Package circuitbreaker guards calls to trend sources and publishers with
// github.com/sony/gobreaker. A breaker trips on a failure ratio rather than
// consecutive failures, so one slow upstream does not silence a run.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"rust-trends/internal/observability/metrics"
)

// Config describes when a breaker trips and how it recovers.
type Config struct {
	// Name labels log lines and the circuit_breaker_state metric.
	Name string

	// MaxRequests is how many probe calls pass while half-open.
	MaxRequests uint32

	// Interval clears the counts while closed. Zero keeps them until a trip.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold trips the breaker once failures/requests reaches it.
	FailureThreshold float64

	// MinRequests is the sample size below which the ratio is ignored.
	MinRequests uint32
}

// TrendSourceConfig is used by the API and feed sources. It tolerates a
// high error rate because a run only needs one source to answer.
func TrendSourceConfig(name string) Config {
	return Config{
		Name:             "trend-" + name,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          2 * time.Minute,
		FailureThreshold: 0.7,
		MinRequests:      5,
	}
}

// TrendingPageConfig is used by the trending page scraper. Markup changes
// break every request at once, so the breaker stays open for an hour.
func TrendingPageConfig() Config {
	return Config{
		Name:             "trend-trending-page",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          time.Hour,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// PublisherConfig trips early: once a platform rejects most posts, the rest
// of the run fails fast and stays unrecorded.
func PublisherConfig(name string) Config {
	return Config{
		Name:             "publisher-" + name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          5 * time.Minute,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// CircuitBreaker is a named gobreaker.CircuitBreaker whose transitions are
// logged and exported.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a closed breaker.
func New(cfg Config) *CircuitBreaker {
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &CircuitBreaker{
		name: cfg.Name,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:          cfg.Name,
			MaxRequests:   cfg.MaxRequests,
			Interval:      cfg.Interval,
			Timeout:       cfg.Timeout,
			ReadyToTrip:   tripOnRatio(cfg.MinRequests, cfg.FailureThreshold),
			OnStateChange: onStateChange,
		}),
	}
}

func tripOnRatio(minRequests uint32, threshold float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 || counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= threshold
	}
}

func onStateChange(name string, from, to gobreaker.State) {
	level := slog.LevelInfo
	if to == gobreaker.StateOpen {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state changed",
		slog.String("circuit", name),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	metrics.SetCircuitBreakerState(name, int(to), to.String())
}

// Execute runs fn unless the breaker is open or its half-open probes are used up.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// State returns the current state.
func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }

// Name returns the configured name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// IsOpen reports whether calls are currently rejected outright.
func (cb *CircuitBreaker) IsOpen() bool { return cb.State() == gobreaker.StateOpen }

// IsOpenError reports whether err was returned because the breaker rejected the call.
func IsOpenError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
