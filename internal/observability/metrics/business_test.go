package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCandidatesFetched(t *testing.T) {
	before := testutil.ToFloat64(CandidatesFetchedTotal.WithLabelValues("test-github"))

	RecordCandidatesFetched("test-github", 25)
	RecordCandidatesFetched("test-github", 0)

	after := testutil.ToFloat64(CandidatesFetchedTotal.WithLabelValues("test-github"))
	assert.Equal(t, 25.0, after-before)
}

func TestRecordCandidateDropped(t *testing.T) {
	before := testutil.ToFloat64(CandidatesDroppedTotal.WithLabelValues("test-feed"))
	RecordCandidateDropped("test-feed")
	assert.Equal(t, 1.0, testutil.ToFloat64(CandidatesDroppedTotal.WithLabelValues("test-feed"))-before)
}

func TestRecordSelection(t *testing.T) {
	eligible := testutil.ToFloat64(SelectionOutcomesTotal.WithLabelValues("eligible"))
	suppressed := testutil.ToFloat64(SelectionOutcomesTotal.WithLabelValues("suppressed"))

	RecordSelection(3, 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(SelectionOutcomesTotal.WithLabelValues("eligible"))-eligible)
	assert.Equal(t, 2.0, testutil.ToFloat64(SelectionOutcomesTotal.WithLabelValues("suppressed"))-suppressed)
}

func TestRecordPost(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{name: "published", result: "published"},
		{name: "invalid", result: "invalid"},
		{name: "failed", result: "failed"},
		{name: "dry run", result: "dry_run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := PostsTotal.WithLabelValues("test-publisher", tt.result)
			before := testutil.ToFloat64(c)
			RecordPost("test-publisher", tt.result)
			assert.Equal(t, 1.0, testutil.ToFloat64(c)-before)
		})
	}
}

func TestRecordPublishDuration(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordPublishDuration("test-publisher", 120*time.Millisecond)
	})
}

func TestRecordPruned(t *testing.T) {
	before := testutil.ToFloat64(LedgerEntriesPrunedTotal)

	RecordPruned(0)
	RecordPruned(-1)
	RecordPruned(4)

	assert.Equal(t, 4.0, testutil.ToFloat64(LedgerEntriesPrunedTotal)-before)
}

func TestRecordStoreQuery(t *testing.T) {
	errs := StoreQueryErrorsTotal.WithLabelValues("test_op")
	before := testutil.ToFloat64(errs)

	RecordStoreQuery("test_op", time.Millisecond, nil)
	RecordStoreQuery("test_op", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(errs)-before)
}

func TestSetSchemaVersion(t *testing.T) {
	SetSchemaVersion(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(StoreSchemaVersion))
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{status: 0, want: "error"},
		{status: 200, want: "2xx"},
		{status: 204, want: "2xx"},
		{status: 429, want: "4xx"},
		{status: 503, want: "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, statusClass(tt.status))
		})
	}
}

func TestRecordHTTPClientRequest(t *testing.T) {
	c := HTTPClientRequestsTotal.WithLabelValues("test-target", "5xx")
	before := testutil.ToFloat64(c)

	RecordHTTPClientRequest("test-target", 502, 30*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c)-before)
}

func TestSetCircuitBreakerState(t *testing.T) {
	transitions := CircuitBreakerTransitionsTotal.WithLabelValues("test-breaker", "open")
	before := testutil.ToFloat64(transitions)

	SetCircuitBreakerState("test-breaker", 2, "open")
	assert.Equal(t, 2.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(transitions)-before)

	SetCircuitBreakerState("test-breaker", 0, "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")))
}
