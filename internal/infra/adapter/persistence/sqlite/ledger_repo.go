// Package sqlite provides SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/infra/db"
	"rust-trends/internal/observability/metrics"
	"rust-trends/internal/repository"
)

// LedgerRepo implements the LedgerRepository interface on the announcements table.
type LedgerRepo struct{ db *sql.DB }

// NewLedgerRepo creates a new SQLite-backed ledger repository.
func NewLedgerRepo(db *sql.DB) repository.LedgerRepository {
	return &LedgerRepo{db: db}
}

// WasAnnouncedRecently reports whether the latest announcement of identity is
// still inside the window ending at now.
func (repo *LedgerRepo) WasAnnouncedRecently(ctx context.Context, identity string, windowDays int, now time.Time) (bool, error) {
	latest, err := repo.LatestAnnouncement(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("WasAnnouncedRecently: %w", err)
	}
	if latest == nil {
		return false, nil
	}
	return entity.WithinWindow(latest.AnnouncedAt, windowDays, now), nil
}

// LatestAnnouncement returns the most recent entry for identity, or nil if it was never announced.
func (repo *LedgerRepo) LatestAnnouncement(ctx context.Context, identity string) (*entity.Announcement, error) {
	const query = `
SELECT id, identity, announced_at
FROM announcements
WHERE identity = ?
ORDER BY announced_at DESC, id DESC
LIMIT 1`

	var (
		a           entity.Announcement
		announcedAt int64
	)
	start := time.Now()
	err := repo.db.QueryRowContext(ctx, query, identity).Scan(&a.ID, &a.Identity, &announcedAt)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordStoreQuery("latest_announcement", time.Since(start), nil)
		return nil, nil
	}
	metrics.RecordStoreQuery("latest_announcement", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("LatestAnnouncement: QueryRowContext: %w: %w", entity.ErrStoreUnavailable, err)
	}
	a.AnnouncedAt = db.FromStoreTime(announcedAt)
	return &a, nil
}

// Record appends a new entry. Recording the same identity again adds another row.
func (repo *LedgerRepo) Record(ctx context.Context, identity string, now time.Time) error {
	const query = `
INSERT INTO announcements
(identity, announced_at)
VALUES (?, ?)
`
	start := time.Now()
	_, err := repo.db.ExecContext(ctx, query, identity, db.ToStoreTime(now))
	metrics.RecordStoreQuery("record", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("Record: ExecContext: %w: %w", entity.ErrStoreUnavailable, err)
	}
	return nil
}

// PruneOlderThan deletes entries strictly older than cutoff and returns how many were removed.
func (repo *LedgerRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM announcements WHERE announced_at < ?`

	start := time.Now()
	res, err := repo.db.ExecContext(ctx, query, db.ToStoreTime(cutoff))
	metrics.RecordStoreQuery("prune", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("PruneOlderThan: ExecContext: %w: %w", entity.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PruneOlderThan: RowsAffected: %w: %w", entity.ErrStoreUnavailable, err)
	}
	return n, nil
}
