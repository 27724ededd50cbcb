// Package slo tracks service level objectives of announcement runs.
package slo

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives for the worker.
const (
	// RunSuccessSLO is the target ratio of runs that finish without a fatal error.
	RunSuccessSLO = 0.99

	// PublishSuccessSLO is the target ratio of publish attempts that are delivered.
	PublishSuccessSLO = 0.95

	// RunDurationSLO is the target upper bound for one run in seconds.
	RunDurationSLO = 120.0
)

// windowSize is the number of recent runs the ratios are computed over.
const windowSize = 50

// SLO tracking metrics
// These gauges are recomputed after every run from the most recent runs.
var (
	// SLORunSuccess tracks the ratio of recent runs without a fatal error (0-1)
	SLORunSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_run_success_ratio",
			Help: "Ratio of recent runs without a fatal error (0-1), target: 0.99",
		},
	)

	// SLOPublishSuccess tracks the ratio of delivered posts among recent attempts (0-1)
	SLOPublishSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_publish_success_ratio",
			Help: "Ratio of delivered posts among recent publish attempts (0-1), target: 0.95",
		},
	)

	// SLOLastRunDuration tracks the duration of the latest run in seconds
	SLOLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_last_run_duration_seconds",
			Help: "Duration of the latest run in seconds, target: 120",
		},
	)
)

// RunOutcome is what the tracker needs to know about one finished run.
type RunOutcome struct {
	Failed        bool
	Published     int
	PublishFailed int
	Duration      time.Duration
}

// Tracker keeps a bounded history of runs and updates the SLO gauges.
// It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	runs []RunOutcome
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{runs: make([]RunOutcome, 0, windowSize)}
}

// Observe records a run and refreshes the gauges.
func (t *Tracker) Observe(o RunOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.runs) == windowSize {
		t.runs = t.runs[1:]
	}
	t.runs = append(t.runs, o)

	runRatio, publishRatio := t.ratios()
	UpdateRunSuccess(runRatio)
	UpdatePublishSuccess(publishRatio)
	UpdateLastRunDuration(o.Duration.Seconds())
}

// Ratios returns the run success and publish success ratios over the window.
func (t *Tracker) Ratios() (run, publish float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ratios()
}

func (t *Tracker) ratios() (float64, float64) {
	if len(t.runs) == 0 {
		return 1, 1
	}
	ok, delivered, attempted := 0, 0, 0
	for _, r := range t.runs {
		if !r.Failed {
			ok++
		}
		delivered += r.Published
		attempted += r.Published + r.PublishFailed
	}
	publish := 1.0
	if attempted > 0 {
		publish = float64(delivered) / float64(attempted)
	}
	return float64(ok) / float64(len(t.runs)), publish
}

// UpdateRunSuccess updates the run success SLO metric.
func UpdateRunSuccess(ratio float64) {
	SLORunSuccess.Set(ratio)
}

// UpdatePublishSuccess updates the publish success SLO metric.
func UpdatePublishSuccess(ratio float64) {
	SLOPublishSuccess.Set(ratio)
}

// UpdateLastRunDuration updates the run duration SLO metric.
func UpdateLastRunDuration(seconds float64) {
	SLOLastRunDuration.Set(seconds)
}
