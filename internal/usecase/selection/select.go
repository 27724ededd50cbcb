// Package selection decides which fetched candidates may be announced in a run.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"rust-trends/internal/domain/entity"
)

// Ledger is the read side of the dedup ledger that selection needs.
type Ledger interface {
	WasAnnouncedRecently(ctx context.Context, identity string, windowDays int, now time.Time) (bool, error)
}

// Result is the outcome of one selection pass.
type Result struct {
	// Eligible keeps the relative order of the input batch.
	Eligible []entity.Candidate
	// Suppressed holds every identity that was dropped, either because it was
	// announced inside the window or because it appeared earlier in the batch.
	Suppressed map[string]struct{}
}

// IsSuppressed reports whether identity was dropped by the pass.
func (r Result) IsSuppressed(identity string) bool {
	_, ok := r.Suppressed[identity]
	return ok
}

// SuppressedIdentities returns the suppressed identities in lexical order.
func (r Result) SuppressedIdentities() []string {
	out := make([]string, 0, len(r.Suppressed))
	for id := range r.Suppressed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Select filters candidates against the ledger. An identity already seen
// earlier in the batch is suppressed without asking the ledger again, so the
// result holds at most one candidate per identity. Select never writes.
//
// A ledger failure aborts the pass with entity.ErrStoreUnavailable.
func Select(ctx context.Context, candidates []entity.Candidate, ledger Ledger, windowDays int, now time.Time) (Result, error) {
	res := Result{
		Eligible:   make([]entity.Candidate, 0, len(candidates)),
		Suppressed: make(map[string]struct{}),
	}
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if _, dup := seen[c.Identity]; dup {
			res.Suppressed[c.Identity] = struct{}{}
			slog.Debug("candidate repeated in batch",
				slog.String("identity", c.Identity))
			continue
		}
		seen[c.Identity] = struct{}{}

		recent, err := ledger.WasAnnouncedRecently(ctx, c.Identity, windowDays, now)
		if err != nil {
			return Result{}, fmt.Errorf("select %q: %w", c.Identity, asStoreUnavailable(err))
		}
		if recent {
			res.Suppressed[c.Identity] = struct{}{}
			slog.Debug("candidate announced inside window",
				slog.String("identity", c.Identity),
				slog.Int("window_days", windowDays))
			continue
		}
		res.Eligible = append(res.Eligible, c)
	}

	return res, nil
}

func asStoreUnavailable(err error) error {
	if errors.Is(err, entity.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
}
