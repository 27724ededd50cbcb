// Package observability is the parent of the worker's logging, metrics,
// tracing and SLO packages. It has no code of its own.
//
// A run carries its logger in the context (logging.WithLogger), opens spans
// through tracing.GetTracer, and reports counters through the metrics package.
// The worker process exposes the Prometheus registry on METRICS_PORT.
package observability
