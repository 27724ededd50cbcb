package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	workerPkg "rust-trends/internal/infra/worker"
	"rust-trends/internal/observability/tracing"
	"rust-trends/internal/usecase/announce"
)

// HealthResponse is the body of the metrics server's liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// PublisherHealthResponse reports whether posts currently reach the platform.
type PublisherHealthResponse struct {
	Healthy            bool   `json:"healthy"`
	Publisher          string `json:"publisher"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
}

// circuitReporter is implemented by publishers guarded by a circuit breaker.
type circuitReporter interface {
	CircuitOpen() bool
}

// startMetricsServer serves until ctx is cancelled and returns
// http.ErrServerClosed after a graceful shutdown.
//
//   - GET /metrics: Prometheus metrics
//   - GET /health: liveness, always 200
//   - GET /health/publisher: 503 while the publisher's circuit breaker is open
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int, pub announce.Publisher) error {
	return workerPkg.Serve(ctx, logger, "metrics", &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      metricsHandler(pub),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	})
}

func metricsHandler(pub announce.Publisher) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/publisher", publisherHealthHandler(pub))
	return tracing.Middleware(mux)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// publisherHealthHandler returns 503 while the publisher's circuit breaker is
// open, 200 otherwise. Publishers without a breaker are always healthy.
func publisherHealthHandler(pub announce.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := PublisherHealthResponse{Healthy: true, Publisher: pub.Name()}
		if cr, ok := pub.(circuitReporter); ok && cr.CircuitOpen() {
			resp.Healthy = false
			resp.CircuitBreakerOpen = true
		}

		code := http.StatusOK
		if !resp.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
