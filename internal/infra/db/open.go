package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rust-trends/internal/domain/entity"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ConnectionConfig holds the pragmas applied to every connection of the store.
type ConnectionConfig struct {
	BusyTimeout time.Duration
	JournalMode string
}

// DefaultConnectionConfig returns the default connection configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		BusyTimeout: 5 * time.Second,
		JournalMode: "WAL",
	}
}

// getConnectionConfigFromEnv reads connection configuration from environment variables.
// Falls back to default values if not set or invalid.
func getConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()

	if busy := os.Getenv("STORE_BUSY_TIMEOUT"); busy != "" {
		if val, err := time.ParseDuration(busy); err == nil && val > 0 {
			cfg.BusyTimeout = val
		}
	}

	switch mode := os.Getenv("STORE_JOURNAL_MODE"); mode {
	case "WAL", "DELETE", "TRUNCATE":
		cfg.JournalMode = mode
	}

	return cfg
}

func (c ConnectionConfig) dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_txlock=immediate",
		path, c.BusyTimeout.Milliseconds(), c.JournalMode)
}

// readOnlyDSN leaves the journal mode as the file has it and keeps transactions deferred.
func (c ConnectionConfig) readOnlyDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)", path, c.BusyTimeout.Milliseconds())
}

// Store is the handle on the backing file. It owns the schema record and hands
// its connection to the ledger repository.
type Store struct {
	db         *sql.DB
	migrations []Migration
	now        func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithMigrations replaces the migration list. The last entry defines the expected version.
func WithMigrations(ms []Migration) Option {
	return func(s *Store) { s.migrations = ms }
}

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates the store file at path and initializes the schema record
// when it is missing. It does not migrate an existing store; call MigrateIfNeeded.
//
// Errors:
//   - entity.ErrNotFound: path is empty or its directory does not exist
//   - entity.ErrCorrupt: the file is not a database or the schema record is malformed
//   - entity.ErrIOFailure: path is a directory, or any other failure
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open store: empty path: %w", entity.ErrNotFound)
	}

	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open store %q: %w", path, entity.ErrNotFound)
		}
		return nil, fmt.Errorf("open store %q: %w: %w", path, entity.ErrIOFailure, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("open store %q: %s is not a directory: %w", path, dir, entity.ErrNotFound)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("open store %q: is a directory: %w", path, entity.ErrIOFailure)
	}

	cfg := getConnectionConfigFromEnv()
	sqlDB, err := openDB("sqlite", cfg.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w: %w", path, entity.ErrIOFailure, err)
	}

	// One writer per store: a single connection serializes every statement.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open store %q: %w", path, classifyOpenError(path, err))
	}

	store, err := FromDB(ctx, sqlDB, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}

	slog.Info("store opened",
		slog.String("path", path),
		slog.Duration("busy_timeout", cfg.BusyTimeout),
		slog.String("journal_mode", cfg.JournalMode))
	return store, nil
}

// OpenReadOnly opens an existing store without ever writing to it: the file is
// not created, the schema record is not initialized and the journal mode is
// left as found. Statements that write fail at the driver.
//
// Errors:
//   - entity.ErrNotFound: path is empty or the file does not exist
//   - entity.ErrCorrupt: the file is not a database or has no single schema record
//   - entity.ErrIOFailure: path is a directory, or any other failure
func OpenReadOnly(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open store read-only: empty path: %w", entity.ErrNotFound)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open store %q read-only: %w", path, entity.ErrNotFound)
		}
		return nil, fmt.Errorf("open store %q read-only: %w: %w", path, entity.ErrIOFailure, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open store %q read-only: is a directory: %w", path, entity.ErrIOFailure)
	}

	cfg := getConnectionConfigFromEnv()
	sqlDB, err := openDB("sqlite", cfg.readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open store %q read-only: %w: %w", path, entity.ErrIOFailure, err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open store %q read-only: %w", path, classifyOpenError(path, err))
	}

	store, err := newStore(sqlDB, opts)
	if err == nil {
		err = store.checkSchemaRecord(ctx)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open store %q read-only: %w", path, err)
	}

	slog.Info("store opened read-only", slog.String("path", path))
	return store, nil
}

// FromDB wraps an already opened connection and initializes the schema record
// when it is missing.
func FromDB(ctx context.Context, sqlDB *sql.DB, opts ...Option) (*Store, error) {
	s, err := newStore(sqlDB, opts)
	if err != nil {
		return nil, err
	}
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(sqlDB *sql.DB, opts []Option) (*Store, error) {
	s := &Store{
		db:         sqlDB,
		migrations: Migrations(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := validateMigrations(s.migrations); err != nil {
		return nil, err
	}
	return s, nil
}

// DB returns the underlying connection for repositories built on this store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// classifyOpenError maps driver errors to the store error kinds. A file that
// cannot be opened is only "not found" when path is actually missing.
func classifyOpenError(path string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
			return fmt.Errorf("%w: %w", entity.ErrCorrupt, err)
		case sqlite3.SQLITE_CANTOPEN:
			if pathMissing(path) {
				return fmt.Errorf("%w: %w", entity.ErrNotFound, err)
			}
			return fmt.Errorf("%w: %w", entity.ErrIOFailure, err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "not a database") || strings.Contains(msg, "malformed") {
		return fmt.Errorf("%w: %w", entity.ErrCorrupt, err)
	}
	return fmt.Errorf("%w: %w", entity.ErrIOFailure, err)
}

func pathMissing(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return errors.Is(err, os.ErrNotExist)
}

// ToStoreTime encodes an instant as UTC Unix nanoseconds.
func ToStoreTime(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// FromStoreTime decodes UTC Unix nanoseconds.
func FromStoreTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
