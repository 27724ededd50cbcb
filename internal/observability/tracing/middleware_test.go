package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func testMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return mux
}

func serveOne(t *testing.T, tp *sdktrace.TracerProvider, exporter *tracetest.InMemoryExporter, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, tracetest.SpanStub) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	return rr, spans[0]
}

func attrs(span tracetest.SpanStub) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(span.Attributes))
	for _, kv := range span.Attributes {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestMiddleware_Routes(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantSpan   string
		wantRoute  string
		wantStatus int
		wantError  bool
	}{
		{name: "liveness", path: "/health", wantSpan: "GET /health", wantRoute: "/health", wantStatus: http.StatusOK},
		{name: "not ready", path: "/ready", wantSpan: "GET /ready", wantRoute: "/ready", wantStatus: http.StatusServiceUnavailable, wantError: true},
		{name: "unknown path", path: "/wp-admin/login.php", wantSpan: "GET unmatched", wantRoute: "unmatched", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, tp := setupExporter(t)

			rr, span := serveOne(t, tp, exporter, Middleware(testMux()), httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantSpan, span.Name)
			assert.Equal(t, trace.SpanKindServer, span.SpanKind)

			a := attrs(span)
			assert.Equal(t, tt.wantRoute, a["http.route"].AsString())
			assert.Equal(t, "GET", a["http.method"].AsString())
			assert.Equal(t, int64(tt.wantStatus), a["http.status_code"].AsInt64())

			if tt.wantError {
				assert.Equal(t, codes.Error, span.Status.Code)
			} else {
				assert.NotEqual(t, codes.Error, span.Status.Code)
			}
		})
	}
}

func TestMiddleware_PlainHandlerUsesPath(t *testing.T) {
	exporter, tp := setupExporter(t)
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, span := serveOne(t, tp, exporter, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "GET /metrics", span.Name)
}

func TestMiddleware_TraceIDHeader(t *testing.T) {
	exporter, tp := setupExporter(t)

	rr, span := serveOne(t, tp, exporter, Middleware(testMux()), httptest.NewRequest(http.MethodGet, "/health", nil))

	got := rr.Header().Get(TraceIDHeader)
	assert.Len(t, got, 32)
	assert.Equal(t, span.SpanContext.TraceID().String(), got)
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	exporter, tp := setupExporter(t)

	const parentTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-"+parentTraceID+"-00f067aa0ba902b7-01")

	var handlerSpan trace.SpanContext
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerSpan = trace.SpanContextFromContext(r.Context())
	}))

	_, span := serveOne(t, tp, exporter, h, req)
	assert.Equal(t, parentTraceID, span.SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent.SpanID().String())
	assert.Equal(t, span.SpanContext.SpanID(), handlerSpan.SpanID(), "handler sees the server span")
}

func TestFail(t *testing.T) {
	exporter, tp := setupExporter(t)

	_, ok := GetTracer().Start(context.Background(), "ok")
	Fail(ok, nil, "unused")
	ok.End()

	_, bad := GetTracer().Start(context.Background(), "bad")
	Fail(bad, errors.New("boom"), "fetch failed")
	bad.End()

	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Empty(t, spans[0].Events)

	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "fetch failed", spans[1].Status.Description)
	require.Len(t, spans[1].Events, 1)
	assert.Equal(t, "exception", spans[1].Events[0].Name)
}
