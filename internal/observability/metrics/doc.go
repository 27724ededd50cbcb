// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the metrics of the announcement pipeline including:
//   - Candidates fetched per trend source
//   - Selection outcomes (eligible, suppressed)
//   - Post outcomes per publisher
//   - Ledger and schema store query durations
//   - Outbound HTTP requests to sources and publishers
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint of the worker.
//
// Example usage:
//
//	import "rust-trends/internal/observability/metrics"
//
//	func fetch(ctx context.Context) {
//	    candidates, err := source.Fetch(ctx)
//	    if err == nil {
//	        metrics.RecordCandidatesFetched(source.Name(), len(candidates))
//	    }
//	}
package metrics
