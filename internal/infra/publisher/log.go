package publisher

import (
	"context"
	"log/slog"

	"rust-trends/internal/observability/logging"
)

// LogPublisher writes posts to the log instead of a platform.
// It suits local runs and deployments that only want the ledger filled.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher. A nil logger means the logger
// carried by each Publish context.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Name implements announce.Publisher.
func (l *LogPublisher) Name() string { return "log" }

// Publish implements announce.Publisher. It never fails.
func (l *LogPublisher) Publish(ctx context.Context, message string) error {
	logger := l.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger.InfoContext(ctx, "post", slog.String("message", message))
	return nil
}
