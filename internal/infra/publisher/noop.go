package publisher

import "context"

// NoOpPublisher accepts every post and does nothing with it.
// This follows the Null Object pattern.
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new NoOpPublisher instance.
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

// Name implements announce.Publisher.
func (n *NoOpPublisher) Name() string { return "noop" }

// Publish does nothing and returns nil immediately.
func (n *NoOpPublisher) Publish(ctx context.Context, message string) error {
	return nil
}
