package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rust-trends/internal/domain/entity"
)

// Migration is one ordered, idempotent schema step. Up runs inside the
// transaction that also bumps the schema record, so a step commits fully or not at all.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
}

// Migrations returns the schema history known to this binary, oldest first.
func Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_announcements",
			Up: execAll(
				`CREATE TABLE IF NOT EXISTS announcements (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    identity     TEXT    NOT NULL,
    announced_at INTEGER NOT NULL
)`,
				`CREATE INDEX IF NOT EXISTS idx_announcements_announced_at ON announcements(announced_at)`,
			),
		},
		{
			Version: 2,
			Name:    "index_identity_announced_at",
			// window lookups read MAX(announced_at) per identity
			Up: execAll(
				`CREATE INDEX IF NOT EXISTS idx_announcements_identity_announced_at ON announcements(identity, announced_at DESC)`,
			),
		},
	}
}

func execAll(statements ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

const createSchemaInfo = `
CREATE TABLE IF NOT EXISTS schema_info (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    version     INTEGER NOT NULL,
    created_at  INTEGER NOT NULL,
    last_run_at INTEGER
)`

func validateMigrations(ms []Migration) error {
	if len(ms) == 0 {
		return errors.New("no migrations defined")
	}
	for i, m := range ms {
		if m.Version != i+1 {
			return fmt.Errorf("migration %q has version %d, want %d", m.Name, m.Version, i+1)
		}
		if m.Up == nil {
			return fmt.Errorf("migration %q has no Up step", m.Name)
		}
	}
	return nil
}

// ExpectedVersion is the schema version this binary writes.
func (s *Store) ExpectedVersion() int {
	return s.migrations[len(s.migrations)-1].Version
}

// ensureInitialized creates the schema record at the expected version when it is absent.
// A fresh store gets every migration applied in the same transaction.
func (s *Store) ensureInitialized(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin init: %w: %w", entity.ErrIOFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createSchemaInfo); err != nil {
		return fmt.Errorf("create schema_info: %w", classifyOpenError("", err))
	}

	var rows int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_info`).Scan(&rows); err != nil {
		return fmt.Errorf("count schema_info: %w", classifyOpenError("", err))
	}

	switch {
	case rows == 1:
		return nil
	case rows > 1:
		return fmt.Errorf("schema_info holds %d rows: %w", rows, entity.ErrCorrupt)
	}

	if err := checkAnnouncementsColumns(ctx, tx); err != nil {
		return err
	}

	for _, m := range s.migrations {
		if err := m.Up(ctx, tx); err != nil {
			return fmt.Errorf("init migration %d (%s): %w: %w", m.Version, m.Name, entity.ErrIOFailure, err)
		}
	}

	const insert = `INSERT INTO schema_info (id, version, created_at, last_run_at) VALUES (1, ?, ?, NULL)`
	if _, err := tx.ExecContext(ctx, insert, s.ExpectedVersion(), ToStoreTime(s.now())); err != nil {
		return fmt.Errorf("insert schema_info: %w: %w", entity.ErrIOFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit init: %w: %w", entity.ErrIOFailure, err)
	}

	slog.Info("store initialized", slog.Int("schema_version", s.ExpectedVersion()))
	return nil
}

// announcementsColumns are the columns every schema version relies on.
var announcementsColumns = []string{"id", "identity", "announced_at"}

// checkAnnouncementsColumns rejects an announcements table left by something
// other than this store. A missing table is fine: the migrations create it.
func checkAnnouncementsColumns(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info('announcements')`)
	if err != nil {
		return fmt.Errorf("inspect announcements: %w", classifyOpenError("", err))
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspect announcements: %w: %w", entity.ErrIOFailure, err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect announcements: %w: %w", entity.ErrIOFailure, err)
	}
	if len(found) == 0 {
		return nil
	}

	for _, col := range announcementsColumns {
		if !found[col] {
			return fmt.Errorf("announcements table lacks column %q: %w", col, entity.ErrCorrupt)
		}
	}
	return nil
}

// checkSchemaRecord verifies, without writing, that the store holds exactly one schema record.
func (s *Store) checkSchemaRecord(ctx context.Context) error {
	var tables int
	const lookup = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_info'`
	if err := s.db.QueryRowContext(ctx, lookup).Scan(&tables); err != nil {
		return fmt.Errorf("lookup schema_info: %w", classifyOpenError("", err))
	}
	if tables == 0 {
		return fmt.Errorf("schema_info missing: %w", entity.ErrCorrupt)
	}

	var rows int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_info`).Scan(&rows); err != nil {
		return fmt.Errorf("count schema_info: %w", classifyOpenError("", err))
	}
	if rows != 1 {
		return fmt.Errorf("schema_info holds %d rows: %w", rows, entity.ErrCorrupt)
	}
	return nil
}

// CurrentVersion returns the version stored in the schema record.
func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info WHERE id = 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("CurrentVersion: schema record missing: %w", entity.ErrCorrupt)
	}
	if err != nil {
		return 0, fmt.Errorf("CurrentVersion: %w: %w", entity.ErrStoreUnavailable, err)
	}
	return version, nil
}

// SchemaRecord returns the full schema record.
func (s *Store) SchemaRecord(ctx context.Context) (*entity.SchemaRecord, error) {
	const query = `SELECT version, created_at, last_run_at FROM schema_info WHERE id = 1`

	var (
		version   int
		createdAt int64
		lastRunAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&version, &createdAt, &lastRunAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("SchemaRecord: schema record missing: %w", entity.ErrCorrupt)
	}
	if err != nil {
		return nil, fmt.Errorf("SchemaRecord: %w: %w", entity.ErrStoreUnavailable, err)
	}

	rec := &entity.SchemaRecord{
		Version:   version,
		CreatedAt: FromStoreTime(createdAt),
	}
	if lastRunAt.Valid {
		t := FromStoreTime(lastRunAt.Int64)
		rec.LastRunAt = &t
	}
	return rec, nil
}

// MigrateIfNeeded brings an older store up to ExpectedVersion and returns how
// many steps ran. A newer store fails with entity.ErrUnsupportedSchema; there is
// no downgrade path.
func (s *Store) MigrateIfNeeded(ctx context.Context) (int, error) {
	current, err := s.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}

	expected := s.ExpectedVersion()
	if current > expected {
		return 0, fmt.Errorf("store is at version %d, this binary supports up to %d: %w",
			current, expected, entity.ErrUnsupportedSchema)
	}

	applied := 0
	for _, m := range s.migrations {
		if m.Version <= current {
			continue
		}

		start := time.Now()
		if err := s.applyMigration(ctx, m); err != nil {
			return applied, err
		}
		applied++

		slog.Info("schema migration applied",
			slog.Int("version", m.Version),
			slog.String("name", m.Name),
			slog.Duration("duration", time.Since(start)))
	}

	return applied, nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w: %w", m.Version, entity.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Up(ctx, tx); err != nil {
		return fmt.Errorf("migration %d (%s): %w: %w", m.Version, m.Name, entity.ErrStoreUnavailable, err)
	}

	const bump = `UPDATE schema_info SET version = ? WHERE id = 1 AND version = ?`
	res, err := tx.ExecContext(ctx, bump, m.Version, m.Version-1)
	if err != nil {
		return fmt.Errorf("migration %d: update schema_info: %w: %w", m.Version, entity.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("migration %d: RowsAffected: %w: %w", m.Version, entity.ErrStoreUnavailable, err)
	}
	if n != 1 {
		return fmt.Errorf("migration %d: schema record changed concurrently: %w", m.Version, entity.ErrStoreUnavailable)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w: %w", m.Version, entity.ErrStoreUnavailable, err)
	}
	return nil
}

// TouchLastRun stamps the schema record with the end of a run.
func (s *Store) TouchLastRun(ctx context.Context, at time.Time) error {
	const query = `UPDATE schema_info SET last_run_at = ? WHERE id = 1`
	res, err := s.db.ExecContext(ctx, query, ToStoreTime(at))
	if err != nil {
		return fmt.Errorf("TouchLastRun: %w: %w", entity.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("TouchLastRun: RowsAffected: %w: %w", entity.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("TouchLastRun: schema record missing: %w", entity.ErrStoreUnavailable)
	}
	return nil
}
