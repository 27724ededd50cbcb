package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ShutdownTimeout bounds the graceful shutdown of the worker's HTTP servers.
const ShutdownTimeout = 5 * time.Second

// Serve runs srv until ctx is cancelled and then shuts it down gracefully.
// It returns http.ErrServerClosed after a clean shutdown, or the error that
// stopped the listener.
func Serve(ctx context.Context, logger *slog.Logger, name string, srv *http.Server) error {
	logger = logger.With(slog.String("server", name), slog.String("addr", srv.Addr))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
		return err
	}
	logger.Info("server stopped")
	return http.ErrServerClosed
}
