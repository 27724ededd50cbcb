package repository

import (
	"context"
	"time"

	"rust-trends/internal/domain/entity"
)

// LedgerRepository is the append-only record of past announcements.
// Every implementation wraps backing-store failures with entity.ErrStoreUnavailable.
type LedgerRepository interface {
	WasAnnouncedRecently(ctx context.Context, identity string, windowDays int, now time.Time) (bool, error)
	Record(ctx context.Context, identity string, now time.Time) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	LatestAnnouncement(ctx context.Context, identity string) (*entity.Announcement, error)
}
