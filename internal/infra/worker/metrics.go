package worker

import (
	"rust-trends/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the worker component.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// run-level metrics.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total
//   - worker_config_fallbacks_total
//   - worker_config_fallback_active
//
// Worker-specific metrics:
//   - worker_runs_total: runs by status (success/failure/skipped)
//   - worker_run_duration_seconds: run duration histogram
//   - worker_posts_published_total: posts delivered across runs
//   - worker_last_success_timestamp: Unix timestamp of last successful run
type WorkerMetrics struct {
	*config.ConfigMetrics

	// RunsTotal counts runs by status (success, failure, skipped).
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures the duration of a run.
	// Buckets: 1s, 5s, 15s, 30s, 1m, 2m, 5m, 10m
	RunDurationSeconds prometheus.Histogram

	// PostsPublishedTotal counts posts delivered across all runs.
	PostsPublishedTotal prometheus.Counter

	// LastSuccessTimestamp records the Unix timestamp of the last successful run.
	LastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a new WorkerMetrics instance.
// Metrics are registered with the default registry via promauto, so call it once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Total number of announcement runs by status (success/failure/skipped)",
		}, []string{"status"}),

		RunDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_run_duration_seconds",
			Help:    "Duration of announcement runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		PostsPublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_posts_published_total",
			Help: "Total number of posts delivered across all runs",
		}),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_last_success_timestamp",
			Help: "Unix timestamp of the last successful run",
		}),
	}
}

// RecordRun increments the run counter for the given status.
func (m *WorkerMetrics) RecordRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordRunDuration observes the duration of a run in seconds.
func (m *WorkerMetrics) RecordRunDuration(seconds float64) {
	m.RunDurationSeconds.Observe(seconds)
}

// RecordPostsPublished adds the posts delivered by one run.
func (m *WorkerMetrics) RecordPostsPublished(count int) {
	m.PostsPublishedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}
