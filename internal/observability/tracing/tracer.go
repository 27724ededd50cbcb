package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of every span the worker creates.
const TracerName = "rust-trends"

// GetTracer resolves the tracer from the global provider on each call, so a
// provider installed after package init is honored.
func GetTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Fail marks span as failed with err. A nil err leaves the span untouched.
func Fail(span trace.Span, err error, description string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}
