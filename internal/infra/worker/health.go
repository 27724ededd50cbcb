package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"rust-trends/internal/observability/logging"
	"rust-trends/internal/observability/tracing"
)

// HealthServer answers the liveness and readiness probes of the scheduled
// worker. Both endpoints report the outcome of the last run and, once the
// schedule is known, when the next run is due.
//
//   - GET /health: always 200 while the process serves
//   - GET /health/ready: 200 once the schedule is running, 503 otherwise
type HealthServer struct {
	addr   string
	logger *slog.Logger
	ready  atomic.Bool

	mu      sync.RWMutex
	lastRun *RunStatus
	nextRun func() time.Time
}

// RunStatus is the outcome of a finished run as exposed by the probes.
type RunStatus struct {
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

type healthResponse struct {
	Status  string     `json:"status"`
	LastRun *RunStatus `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// NewHealthServer returns a server for addr that reports not ready until SetReady(true).
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	return &HealthServer{addr: addr, logger: logger}
}

// Handler returns the traced probe endpoints.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			h.write(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		h.write(w, http.StatusOK, "ok")
	})
	return tracing.Middleware(mux)
}

// Start serves the probes until ctx is cancelled. See Serve.
func (h *HealthServer) Start(ctx context.Context) error {
	return Serve(ctx, h.logger, "health", &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	})
}

// SetReady flips the readiness probe.
func (h *HealthServer) SetReady(ready bool) {
	if h.ready.Swap(ready) != ready {
		h.logger.Info("readiness changed", slog.Bool("ready", ready))
	}
}

// SetNextRun installs the source of the next scheduled run time. A zero
// time from next is left out of the response.
func (h *HealthServer) SetNextRun(next func() time.Time) {
	h.mu.Lock()
	h.nextRun = next
	h.mu.Unlock()
}

// RecordRun stores the outcome of a finished run. The probes may be reachable
// from outside the host, so error text is sanitized.
func (h *HealthServer) RecordRun(finishedAt time.Time, err error) {
	status := &RunStatus{FinishedAt: finishedAt.UTC(), OK: err == nil}
	if err != nil {
		status.Error = logging.SanitizeError(err)
	}
	h.mu.Lock()
	h.lastRun = status
	h.mu.Unlock()
}

func (h *HealthServer) write(w http.ResponseWriter, code int, status string) {
	resp := healthResponse{Status: status}

	h.mu.RLock()
	if h.lastRun != nil {
		last := *h.lastRun
		resp.LastRun = &last
	}
	next := h.nextRun
	h.mu.RUnlock()

	if next != nil {
		if t := next(); !t.IsZero() {
			t = t.UTC()
			resp.NextRun = &t
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
