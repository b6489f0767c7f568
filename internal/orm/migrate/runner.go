package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/orm/migrate/platform"
)

// Runner executes migrations with transaction support. Each script runs in its
// own transaction together with its db_migration bookkeeping.
type Runner struct {
	db      *sql.DB
	tracker *Tracker
	logger  *zap.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger
func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new migration runner
func NewRunner(db *sql.DB, p *platform.PlatformDdl, opts ...RunnerOption) *Runner {
	r := &Runner{
		db:      db,
		tracker: NewTracker(db, p),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tracker returns the tracker used by the runner
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// Initialize sets up the migration tracking table
func (r *Runner) Initialize(ctx context.Context) error {
	return r.tracker.Initialize(ctx)
}

// MigrateUp applies all pending migrations in version order and returns how
// many were applied
func (r *Runner) MigrateUp(ctx context.Context, migrations []*Migration) (int, error) {
	pending, err := r.tracker.GetPending(ctx, migrations)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return 0, nil
	}

	r.logger.Info("found pending migrations", zap.Int("count", len(pending)))

	for i, migration := range pending {
		if err := r.applyMigration(ctx, migration); err != nil {
			return i, fmt.Errorf("migration %s failed: %w", migration.FileName(), err)
		}
		r.logger.Info("applied migration", zap.String("version", migration.Version), zap.String("name", migration.Name))
	}

	return len(pending), nil
}

// MigrateDown rolls back the last migration using the rollback script recorded
// when it was applied
func (r *Runner) MigrateDown(ctx context.Context) (*Migration, error) {
	last, err := r.tracker.GetLast(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last migration: %w", err)
	}
	if last == nil {
		return nil, ErrNoMigrations
	}
	if last.Down == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRollback, last.FileName())
	}

	if err := r.rollbackMigration(ctx, last); err != nil {
		return nil, fmt.Errorf("rollback failed: %w", err)
	}

	r.logger.Info("rolled back migration", zap.String("version", last.Version), zap.String("name", last.Name))
	return last, nil
}

// MigrateDownTo rolls back migrations newer than the target version, newest first
func (r *Runner) MigrateDownTo(ctx context.Context, targetVersion string) (int, error) {
	if _, err := ParseVersion(targetVersion); err != nil {
		return 0, err
	}

	applied, err := r.tracker.GetApplied(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var toRollback []*Migration
	for i := len(applied) - 1; i >= 0; i-- {
		if CompareVersions(applied[i].Version, targetVersion) > 0 {
			toRollback = append(toRollback, applied[i])
		}
	}

	if len(toRollback) == 0 {
		r.logger.Info("no migrations to rollback")
		return 0, nil
	}

	for i, migration := range toRollback {
		if migration.Down == "" {
			return i, fmt.Errorf("%w: %s", ErrNoRollback, migration.FileName())
		}
		if err := r.rollbackMigration(ctx, migration); err != nil {
			return i, fmt.Errorf("rollback of %s failed: %w", migration.FileName(), err)
		}
		r.logger.Info("rolled back migration", zap.String("version", migration.Version), zap.String("name", migration.Name))
	}

	return len(toRollback), nil
}

// RunDrop executes the pending drops of an applied migration
func (r *Runner) RunDrop(ctx context.Context, migration *Migration) error {
	if migration.Drop == "" {
		return nil
	}
	applied, err := r.tracker.IsApplied(ctx, migration.Version)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("migration %s must be applied before its drops", migration.FileName())
	}

	r.logger.Warn("running drop script", zap.String("version", migration.Version), zap.String("name", migration.Name))
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return execScript(ctx, tx, migration.Drop)
	})
}

func (r *Runner) applyMigration(ctx context.Context, migration *Migration) error {
	start := time.Now()

	if migration.Up == "" {
		return fmt.Errorf("migration has no apply script")
	}
	if migration.Breaking {
		r.logger.Warn("migration contains breaking changes", zap.String("name", migration.Name))
	}
	if migration.DataLoss {
		r.logger.Warn("migration may cause data loss", zap.String("name", migration.Name))
	}
	if migration.Checksum == 0 {
		migration.Checksum = Checksum(migration.Up)
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := execScript(ctx, tx, migration.Up); err != nil {
			return err
		}
		return r.tracker.Record(ctx, tx, migration)
	})
	if err != nil {
		return err
	}

	r.logger.Debug("migration took", zap.Duration("duration", time.Since(start)))
	return nil
}

func (r *Runner) rollbackMigration(ctx context.Context, migration *Migration) error {
	start := time.Now()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := execScript(ctx, tx, migration.Down); err != nil {
			return err
		}
		return r.tracker.Remove(ctx, tx, migration.Version)
	})
	if err != nil {
		return err
	}

	r.logger.Debug("rollback took", zap.Duration("duration", time.Since(start)))
	return nil
}

func (r *Runner) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func execScript(ctx context.Context, tx *sql.Tx, script string) error {
	for _, stmt := range SplitStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// Status returns the current migration status
func (r *Runner) Status(ctx context.Context, allMigrations []*Migration) (*MigrationStatus, error) {
	applied, err := r.tracker.GetApplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending, err := r.tracker.GetPending(ctx, allMigrations)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	var lastApplied *Migration
	if len(applied) > 0 {
		lastApplied = applied[len(applied)-1]
	}

	return &MigrationStatus{
		Total:       len(allMigrations),
		Applied:     applied,
		Pending:     pending,
		LastApplied: lastApplied,
	}, nil
}

// MigrationStatus represents the current state of migrations
type MigrationStatus struct {
	Total       int
	Applied     []*Migration
	Pending     []*Migration
	LastApplied *Migration
}

// Summary returns a human-readable summary
func (s *MigrationStatus) Summary() string {
	return fmt.Sprintf("Total: %d migrations (%d applied, %d pending)",
		s.Total,
		len(s.Applied),
		len(s.Pending))
}
