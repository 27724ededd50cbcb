// Package resilience groups the failure handling shared by trend sources and
// publishers.
//
// Trend sources run each fetch through a circuit breaker inside a retry loop:
//
//	err := retry.WithBackoff(ctx, retry.TrendSourceConfig(), func() error {
//	    _, err := cb.Execute(fetch)
//	    return err
//	})
//
// Publishers retry on their own (a duplicate post is worse than a missed
// one) and only borrow the breaker, see publisher.WithCircuitBreaker.
package resilience
