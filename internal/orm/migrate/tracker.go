package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/conduit-lang/ebean/internal/orm/dialect"
	"github.com/conduit-lang/ebean/internal/orm/migrate/ddl"
	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
	"github.com/conduit-lang/ebean/internal/orm/migrate/platform"
)

// MigrationTable is the table recording applied migrations
const MigrationTable = "db_migration"

const migrationColumns = "version, name, checksum, applied_at, breaking, data_loss, up_sql, down_sql"

// Tracker manages migration history in the database
type Tracker struct {
	db       *sql.DB
	platform *platform.PlatformDdl
	dialect  dialect.Dialect
	now      func() time.Time
}

// NewTracker creates a new migration tracker
func NewTracker(db *sql.DB, p *platform.PlatformDdl) *Tracker {
	return &Tracker{
		db:       db,
		platform: p,
		dialect:  dialect.ForPlatform(p.Name()),
		now:      time.Now,
	}
}

// migrationTableModel describes the db_migration table so it is created with the
// platform's own DDL
func migrationTableModel() *model.MTable {
	t := model.NewMTable(MigrationTable)
	t.AddColumn(&model.MColumn{Name: "version", Type: "varchar(50)", NotNull: true, Primary: true})
	t.AddColumn(&model.MColumn{Name: "name", Type: "varchar(255)", NotNull: true})
	t.AddColumn(&model.MColumn{Name: "checksum", Type: "bigint", NotNull: true})
	t.AddColumn(&model.MColumn{Name: "applied_at", Type: "timestamp", NotNull: true})
	t.AddColumn(&model.MColumn{Name: "breaking", Type: "boolean", NotNull: true})
	t.AddColumn(&model.MColumn{Name: "data_loss", Type: "boolean", NotNull: true})
	t.AddColumn(&model.MColumn{Name: "up_sql", Type: "clob"})
	t.AddColumn(&model.MColumn{Name: "down_sql", Type: "clob"})
	return t
}

// CreateTableSQL returns the create table statement for the migration table
func (t *Tracker) CreateTableSQL() string {
	cfg := model.NewMConfiguration()
	cfg.Platform = t.platform.Name()
	w := ddl.NewWrite(cfg, nil)
	t.platform.CreateTable(w, migrationTableModel())
	return w.Apply().String()
}

// Initialize creates the db_migration table when it does not exist
func (t *Tracker) Initialize(ctx context.Context) error {
	rows, err := t.db.QueryContext(ctx, "select version from "+MigrationTable+" where 1=0")
	if err == nil {
		return rows.Close()
	}

	if _, err := t.db.ExecContext(ctx, t.CreateTableSQL()); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}
	return nil
}

func scanMigration(scan func(dest ...any) error) (*Migration, error) {
	m := &Migration{Applied: true}
	var upSQL, downSQL sql.NullString
	if err := scan(&m.Version, &m.Name, &m.Checksum, &m.AppliedAt, &m.Breaking, &m.DataLoss, &upSQL, &downSQL); err != nil {
		return nil, err
	}
	m.Up = upSQL.String
	m.Down = downSQL.String
	return m, nil
}

// GetApplied returns all applied migrations sorted by version
func (t *Tracker) GetApplied(ctx context.Context) ([]*Migration, error) {
	rows, err := t.db.QueryContext(ctx, "select "+migrationColumns+" from "+MigrationTable)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []*Migration
	for rows.Next() {
		m, err := scanMigration(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		migrations = append(migrations, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	// versions are text, so order numerically here
	sort.SliceStable(migrations, func(i, j int) bool {
		return CompareVersions(migrations[i].Version, migrations[j].Version) < 0
	})
	return migrations, nil
}

// GetLast returns the most recently applied migration, or nil if none exist
func (t *Tracker) GetLast(ctx context.Context) (*Migration, error) {
	applied, err := t.GetApplied(ctx)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}
	return applied[len(applied)-1], nil
}

// IsApplied checks if a migration version has been applied
func (t *Tracker) IsApplied(ctx context.Context, version string) (bool, error) {
	query := t.dialect.Rebind("select count(*) from " + MigrationTable + " where version = ?")
	var count int
	if err := t.db.QueryRowContext(ctx, query, version).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return count > 0, nil
}

// Record marks a migration as applied in a transaction
func (t *Tracker) Record(ctx context.Context, tx *sql.Tx, m *Migration) error {
	query := t.dialect.Rebind("insert into " + MigrationTable + " (" + migrationColumns + ") values (?, ?, ?, ?, ?, ?, ?, ?)")
	_, err := tx.ExecContext(ctx, query, m.Version, m.Name, m.Checksum, t.now(), m.Breaking, m.DataLoss, m.Up, m.Down)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

// Remove removes a migration record in a transaction
func (t *Tracker) Remove(ctx context.Context, tx *sql.Tx, version string) error {
	query := t.dialect.Rebind("delete from " + MigrationTable + " where version = ?")
	result, err := tx.ExecContext(ctx, query, version)
	if err != nil {
		return fmt.Errorf("failed to remove migration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: version %s", ErrMigrationNotFound, version)
	}
	return nil
}

// GetPending returns migrations that haven't been applied yet. An applied
// migration whose script changed since it ran fails with ErrChecksumMismatch.
func (t *Tracker) GetPending(ctx context.Context, all []*Migration) ([]*Migration, error) {
	applied, err := t.GetApplied(ctx)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[string]*Migration, len(applied))
	for _, m := range applied {
		appliedSet[m.Version] = m
	}

	var pending []*Migration
	for _, m := range all {
		done, ok := appliedSet[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if m.Checksum != 0 && done.Checksum != 0 && m.Checksum != done.Checksum {
			return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, m.FileName())
		}
	}
	return pending, nil
}

// GetCount returns the total number of applied migrations
func (t *Tracker) GetCount(ctx context.Context) (int, error) {
	var count int
	err := t.db.QueryRowContext(ctx, "select count(*) from "+MigrationTable).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get migration count: %w", err)
	}
	return count, nil
}
