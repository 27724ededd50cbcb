package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rust-trends/internal/domain/entity"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "trends.db")
}

func tableExists(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`, kind, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestOpen_FreshStoreInitializedAtExpectedVersion(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	store, err := Open(ctx, tempStorePath(t), WithClock(func() time.Time { return created }))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	version, err := store.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Migrations()), version)
	assert.Equal(t, version, store.ExpectedVersion())

	rec, err := store.SchemaRecord(ctx)
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(created))
	assert.Nil(t, rec.LastRunAt)

	assert.True(t, tableExists(t, store.DB(), "table", "announcements"))
	assert.True(t, tableExists(t, store.DB(), "index", "idx_announcements_identity_announced_at"))

	applied, err := store.MigrateIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "fresh store must not need migration")
}

func TestOpen_ReopenKeepsSchemaRecord(t *testing.T) {
	ctx := context.Background()
	path := tempStorePath(t)
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	store, err := Open(ctx, path, WithClock(func() time.Time { return first }))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path, WithClock(func() time.Time { return first.Add(time.Hour) }))
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	rec, err := reopened.SchemaRecord(ctx)
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(first), "created_at must survive reopen")
}

func TestMigrateIfNeeded_FromVersion1(t *testing.T) {
	ctx := context.Background()
	path := tempStorePath(t)

	v1, err := Open(ctx, path, WithMigrations(Migrations()[:1]))
	require.NoError(t, err)
	version, err := v1.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, version)
	assert.False(t, tableExists(t, v1.DB(), "index", "idx_announcements_identity_announced_at"))
	require.NoError(t, v1.Close())

	v2, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = v2.Close() }()

	applied, err := v2.MigrateIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	version, err = v2.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.True(t, tableExists(t, v2.DB(), "index", "idx_announcements_identity_announced_at"))

	applied, err = v2.MigrateIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "second migration pass must be a no-op")
}

func TestMigrateIfNeeded_NewerStoreIsUnsupported(t *testing.T) {
	ctx := context.Background()
	path := tempStorePath(t)

	future := append(Migrations(), Migration{
		Version: 3,
		Name:    "future_step",
		Up:      execAll(`CREATE TABLE IF NOT EXISTS future (id INTEGER)`),
	})
	newer, err := Open(ctx, path, WithMigrations(future))
	require.NoError(t, err)
	require.NoError(t, newer.Close())

	older, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = older.Close() }()

	applied, err := older.MigrateIfNeeded(ctx)
	assert.ErrorIs(t, err, entity.ErrUnsupportedSchema)
	assert.Equal(t, 0, applied)

	version, err := older.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version, "no downgrade may happen")
}

func TestMigrateIfNeeded_FailedStepLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	path := tempStorePath(t)

	v1, err := Open(ctx, path, WithMigrations(Migrations()[:1]))
	require.NoError(t, err)
	require.NoError(t, v1.Close())

	broken := []Migration{
		Migrations()[0],
		{
			Version: 2,
			Name:    "half_done",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				if _, err := tx.ExecContext(ctx, `CREATE TABLE partial (id INTEGER)`); err != nil {
					return err
				}
				return errors.New("boom")
			},
		},
	}
	store, err := Open(ctx, path, WithMigrations(broken))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	applied, err := store.MigrateIfNeeded(ctx)
	assert.ErrorIs(t, err, entity.ErrStoreUnavailable)
	assert.Equal(t, 0, applied)

	version, err := store.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.False(t, tableExists(t, store.DB(), "table", "partial"), "failed step must roll back")
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty path", func(t *testing.T) {
		_, err := Open(ctx, "")
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Open(ctx, filepath.Join(t.TempDir(), "nope", "trends.db"))
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("not a database", func(t *testing.T) {
		path := tempStorePath(t)
		garbage := strings.Repeat("this is certainly not an sqlite file\n", 200)
		require.NoError(t, os.WriteFile(path, []byte(garbage), 0o600))

		_, err := Open(ctx, path)
		assert.ErrorIs(t, err, entity.ErrCorrupt)
	})

	t.Run("path is a directory", func(t *testing.T) {
		_, err := Open(ctx, t.TempDir())
		assert.ErrorIs(t, err, entity.ErrIOFailure)
		assert.NotErrorIs(t, err, entity.ErrNotFound)
	})
}

func TestOpen_ExistingAnnouncementsTable(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		table   string
		wantErr error
	}{
		{
			name:    "foreign column set is corrupt",
			table:   `CREATE TABLE announcements (name TEXT, posted TEXT)`,
			wantErr: entity.ErrCorrupt,
		},
		{
			name:    "missing announced_at is corrupt",
			table:   `CREATE TABLE announcements (id INTEGER PRIMARY KEY, identity TEXT)`,
			wantErr: entity.ErrCorrupt,
		},
		{
			name:  "compatible table is adopted",
			table: `CREATE TABLE announcements (id INTEGER PRIMARY KEY AUTOINCREMENT, identity TEXT NOT NULL, announced_at INTEGER NOT NULL)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tempStorePath(t)
			raw, err := sql.Open("sqlite", path)
			require.NoError(t, err)
			_, err = raw.Exec(tt.table)
			require.NoError(t, err)
			require.NoError(t, raw.Close())

			store, err := Open(ctx, path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				raw, err := sql.Open("sqlite", path)
				require.NoError(t, err)
				defer func() { _ = raw.Close() }()
				assert.False(t, tableExists(t, raw, "table", "schema_info"), "rejected store must not be initialized")
				return
			}
			require.NoError(t, err)
			defer func() { _ = store.Close() }()

			version, err := store.CurrentVersion(ctx)
			require.NoError(t, err)
			assert.Equal(t, store.ExpectedVersion(), version)
		})
	}
}

func TestTouchLastRun(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, tempStorePath(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	at := time.Date(2025, 6, 1, 8, 30, 0, 123, time.UTC)
	require.NoError(t, store.TouchLastRun(ctx, at))

	rec, err := store.SchemaRecord(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec.LastRunAt)
	assert.True(t, rec.LastRunAt.Equal(at))
}

func TestValidateMigrations(t *testing.T) {
	noop := func(context.Context, *sql.Tx) error { return nil }

	assert.NoError(t, validateMigrations(Migrations()))
	assert.Error(t, validateMigrations(nil))
	assert.Error(t, validateMigrations([]Migration{{Version: 2, Name: "gap", Up: noop}}))
	assert.Error(t, validateMigrations([]Migration{{Version: 1, Name: "no-up"}}))
}

func TestFromDB_ExistingRecordSkipsInit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_info").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schema_info")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err = FromDB(context.Background(), db)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFromDB_DuplicateSchemaRowsIsCorrupt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_info").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schema_info")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	_, err = FromDB(context.Background(), db)
	assert.ErrorIs(t, err, entity.ErrCorrupt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateIfNeeded_DriverFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_info").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schema_info")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	store, err := FromDB(context.Background(), db)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_info")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_announcements_identity_announced_at").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	applied, err := store.MigrateIfNeeded(context.Background())
	assert.ErrorIs(t, err, entity.ErrStoreUnavailable)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, 0, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrentVersion_DriverFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := &Store{db: db, migrations: Migrations(), now: time.Now}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_info")).
		WillReturnError(sql.ErrConnDone)

	_, err = store.CurrentVersion(context.Background())
	assert.ErrorIs(t, err, entity.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
