package migrate

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/ebean/internal/orm/migrate/platform"
)

var appliedColumns = []string{"version", "name", "checksum", "applied_at", "breaking", "data_loss", "up_sql", "down_sql"}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func selectApplied() string {
	return regexp.QuoteMeta("select " + migrationColumns + " from db_migration")
}

func TestTracker_CreateTableSQL(t *testing.T) {
	db, _ := setupMockDB(t)

	pg := NewTracker(db, platform.NewPostgresDdl()).CreateTableSQL()
	assert.Contains(t, pg, "create table db_migration (")
	assert.Contains(t, pg, "version varchar(50) not null")
	assert.Contains(t, pg, "applied_at timestamptz not null")
	assert.Contains(t, pg, "up_sql text")
	assert.Contains(t, pg, "constraint pk_db_migration primary key (version)")

	mssql := NewTracker(db, platform.NewSQLServerDdl()).CreateTableSQL()
	assert.Contains(t, mssql, "version nvarchar(50) not null")
	assert.Contains(t, mssql, "breaking bit not null")
	assert.Contains(t, mssql, "up_sql nvarchar(max)")
}

func TestTracker_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("table exists", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("select version from db_migration where 1=0")).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))

		require.NoError(t, NewTracker(db, platform.NewPostgresDdl()).Initialize(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates table", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("select version from db_migration where 1=0")).
			WillReturnError(errors.New(`relation "db_migration" does not exist`))
		mock.ExpectExec("create table db_migration").WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, NewTracker(db, platform.NewPostgresDdl()).Initialize(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTracker_GetAppliedOrdersNumerically(t *testing.T) {
	db, mock := setupMockDB(t)
	now := time.Now()
	mock.ExpectQuery(selectApplied()).WillReturnRows(sqlmock.NewRows(appliedColumns).
		AddRow("1.10", "tenth", int64(10), now, false, false, "up10", "down10").
		AddRow("1.9", "ninth", int64(9), now, true, false, "up9", nil))

	applied, err := NewTracker(db, platform.NewPostgresDdl()).GetApplied(context.Background())
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "1.9", applied[0].Version)
	assert.True(t, applied[0].Breaking)
	assert.Empty(t, applied[0].Down)
	assert.Equal(t, "1.10", applied[1].Version)
	assert.True(t, applied[1].Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracker_IsAppliedUsesPlatformBindVars(t *testing.T) {
	ctx := context.Background()

	db, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("select count(*) from db_migration where version = $1")).
		WithArgs("1.0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	applied, err := NewTracker(db, platform.NewPostgresDdl()).IsApplied(ctx, "1.0")
	require.NoError(t, err)
	assert.True(t, applied)

	mock.ExpectQuery(regexp.QuoteMeta("select count(*) from db_migration where version = ?")).
		WithArgs("1.1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	applied, err = NewTracker(db, platform.NewMySQLDdl()).IsApplied(ctx, "1.1")
	require.NoError(t, err)
	assert.False(t, applied)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracker_RecordAndRemove(t *testing.T) {
	ctx := context.Background()
	db, mock := setupMockDB(t)
	tracker := NewTracker(db, platform.NewSQLServerDdl())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	m := &Migration{Version: "1.0", Name: "init", Up: "create table a (id bigint);", Checksum: 42}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("insert into db_migration ("+migrationColumns+") values (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8)")).
		WithArgs("1.0", "init", int64(42), fixed, false, false, m.Up, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("delete from db_migration where version = @p1")).
		WithArgs("1.0").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tracker.Record(ctx, tx, m))

	err = tracker.Remove(ctx, tx, "1.0")
	assert.ErrorIs(t, err, ErrMigrationNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracker_GetPending(t *testing.T) {
	ctx := context.Background()
	all := []*Migration{
		{Version: "1.0", Name: "init", Checksum: 1},
		{Version: "1.1", Name: "orders", Checksum: 2},
	}

	t.Run("filters applied", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(selectApplied()).WillReturnRows(sqlmock.NewRows(appliedColumns).
			AddRow("1.0", "init", int64(1), time.Now(), false, false, "", ""))

		pending, err := NewTracker(db, platform.NewPostgresDdl()).GetPending(ctx, all)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "1.1", pending[0].Version)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(selectApplied()).WillReturnRows(sqlmock.NewRows(appliedColumns).
			AddRow("1.0", "init", int64(99), time.Now(), false, false, "", ""))

		_, err := NewTracker(db, platform.NewPostgresDdl()).GetPending(ctx, all)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})
}

func TestTracker_GetCount(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("select count(*) from db_migration")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := NewTracker(db, platform.NewH2Ddl()).GetCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
