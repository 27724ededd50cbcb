// Package tracing provides OpenTelemetry tracing integration.
//
// Spans are created through the global tracer provider, so the worker decides
// which exporter (if any) receives them. Without a configured provider every
// span is a no-op.
//
// Features:
//   - Spans around announcement runs and their phases
//   - Client spans for outbound HTTP calls with W3C trace context propagation
//   - Server spans for the health endpoints
//
// Example usage:
//
//	import "rust-trends/internal/observability/tracing"
//
//	func run(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "announce.run")
//	    defer span.End()
//	    // ... run ...
//	}
//
//	client := &http.Client{Transport: tracing.NewTransport(http.DefaultTransport)}
package tracing
