// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outbound HTTP metrics track calls to trend sources and publishers
var (
	// HTTPClientRequestsTotal counts outbound HTTP requests by target and status class
	HTTPClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_client_requests_total",
			Help: "Total number of outbound HTTP requests",
		},
		[]string{"target", "status"},
	)

	// HTTPClientRequestDuration measures outbound HTTP request duration in seconds
	HTTPClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_client_request_duration_seconds",
			Help:    "Outbound HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)
)

// Business metrics track the announcement pipeline
var (
	// CandidatesFetchedTotal counts candidates returned by each trend source
	CandidatesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidates_fetched_total",
			Help: "Total number of candidates fetched from trend sources",
		},
		[]string{"source"},
	)

	// CandidatesDroppedTotal counts source items rejected at the boundary
	CandidatesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidates_dropped_total",
			Help: "Total number of source items dropped as invalid",
		},
		[]string{"source"},
	)

	// SelectionOutcomesTotal counts candidates by selection outcome
	SelectionOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_outcomes_total",
			Help: "Total number of candidates by selection outcome",
		},
		[]string{"outcome"}, // outcome: eligible, suppressed
	)

	// PostsTotal counts post attempts by publisher and result
	PostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_total",
			Help: "Total number of post attempts",
		},
		[]string{"publisher", "result"}, // result: published, invalid, failed, dry_run
	)

	// PublishDuration measures time to deliver one post
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publish_duration_seconds",
			Help:    "Time taken to deliver a post",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"publisher"},
	)

	// LedgerEntriesPrunedTotal counts ledger entries removed by pruning
	LedgerEntriesPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_entries_pruned_total",
			Help: "Total number of ledger entries removed by pruning",
		},
	)
)

// Store metrics track the embedded database
var (
	// StoreQueryDuration measures store query duration
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Store query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)

	// StoreQueryErrorsTotal counts failed store queries
	StoreQueryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of failed store queries",
		},
		[]string{"operation"},
	)

	// StoreSchemaVersion exposes the schema version of the opened store
	StoreSchemaVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_schema_version",
			Help: "Schema version of the opened store",
		},
	)
)

// Resilience metrics track circuit breakers around sources and publishers
var (
	// CircuitBreakerState exposes each breaker's state: 0 closed, 1 half-open, 2 open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// CircuitBreakerTransitionsTotal counts state transitions by target state
	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "to"},
	)
)
