package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/observability/logging"
	"rust-trends/internal/usecase/announce"
)

// MultiSource concatenates the candidates of several sources in order.
// A failing source is skipped; the run fails only when every source fails.
// Duplicates across sources are left for the selection step to suppress.
type MultiSource struct {
	sources []announce.TrendSource
}

// NewMultiSource combines sources in the given order.
func NewMultiSource(sources ...announce.TrendSource) *MultiSource {
	return &MultiSource{sources: sources}
}

// Name implements announce.TrendSource.
func (m *MultiSource) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, s := range m.sources {
		names = append(names, s.Name())
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Fetch implements announce.TrendSource.
func (m *MultiSource) Fetch(ctx context.Context) ([]entity.Candidate, error) {
	if len(m.sources) == 0 {
		return nil, fmt.Errorf("multi: %w: no sources configured", entity.ErrFetchFailed)
	}

	logger := logging.FromContext(ctx)
	var (
		out  []entity.Candidate
		errs []error
	)
	for _, s := range m.sources {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("multi: %w: %w", entity.ErrFetchFailed, err)
		}
		items, err := s.Fetch(ctx)
		if err != nil {
			logger.Warn("trend source failed, skipping",
				slog.String("source", s.Name()),
				slog.String("error", logging.SanitizeError(err)))
			errs = append(errs, err)
			continue
		}
		out = append(out, items...)
	}

	if len(errs) == len(m.sources) {
		return nil, fmt.Errorf("multi: %w: all sources failed: %w", entity.ErrFetchFailed, errors.Join(errs...))
	}
	return out, nil
}
