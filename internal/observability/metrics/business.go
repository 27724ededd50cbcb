package metrics

import (
	"strconv"
	"time"
)

// RecordCandidatesFetched records the number of candidates a trend source returned.
func RecordCandidatesFetched(source string, count int) {
	CandidatesFetchedTotal.WithLabelValues(source).Add(float64(count))
}

// RecordCandidateDropped records one source item rejected by boundary validation.
func RecordCandidateDropped(source string) {
	CandidatesDroppedTotal.WithLabelValues(source).Inc()
}

// RecordSelection records the outcome counts of one selection pass.
func RecordSelection(eligible, suppressed int) {
	SelectionOutcomesTotal.WithLabelValues("eligible").Add(float64(eligible))
	SelectionOutcomesTotal.WithLabelValues("suppressed").Add(float64(suppressed))
}

// RecordPost records the result of one post attempt.
// Result should be one of "published", "invalid", "failed" or "dry_run".
func RecordPost(publisher, result string) {
	PostsTotal.WithLabelValues(publisher, result).Inc()
}

// RecordPublishDuration records the time taken to deliver one post.
func RecordPublishDuration(publisher string, duration time.Duration) {
	PublishDuration.WithLabelValues(publisher).Observe(duration.Seconds())
}

// RecordPruned records ledger entries removed by pruning.
func RecordPruned(count int64) {
	if count > 0 {
		LedgerEntriesPrunedTotal.Add(float64(count))
	}
}

// RecordStoreQuery records the duration of a store query operation.
// Operation should describe the query (e.g., "latest_announcement", "record").
func RecordStoreQuery(operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// SetSchemaVersion exposes the schema version of the opened store.
func SetSchemaVersion(version int) {
	StoreSchemaVersion.Set(float64(version))
}

// RecordHTTPClientRequest records one outbound HTTP request. A status of 0
// means the request failed before a response arrived.
func RecordHTTPClientRequest(target string, status int, duration time.Duration) {
	HTTPClientRequestsTotal.WithLabelValues(target, statusClass(status)).Inc()
	HTTPClientRequestDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// SetCircuitBreakerState records a transition of breaker into state.
// State follows gobreaker's numbering: 0 closed, 1 half-open, 2 open.
func SetCircuitBreakerState(breaker string, state int, name string) {
	CircuitBreakerState.WithLabelValues(breaker).Set(float64(state))
	CircuitBreakerTransitionsTotal.WithLabelValues(breaker, name).Inc()
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
