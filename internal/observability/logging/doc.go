// Package logging builds the process slog.Logger and carries it through
// contexts.
//
// Output is JSON on stdout unless LOG_FORMAT=text. Every line of a run carries
// run_id:
//
//	logger := logging.WithRunID(logging.NewLogger(), runID)
//	ctx = logging.WithLogger(ctx, logger)
//	logging.FromContext(ctx).Warn("publish failed",
//	    slog.String("error", logging.SanitizeError(err)))
//
// Errors that may embed webhook URLs or API tokens go through SanitizeError
// before they are logged or served.
package logging
