package persist

import (
	"context"
	"database/sql"
	"fmt"
)

// IsolationLevel is the transaction isolation level
type IsolationLevel int

const (
	ReadCommitted IsolationLevel = iota
	ReadUncommitted
	RepeatableRead
	Serializable
)

// String returns the SQL name of the isolation level
func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "READ UNCOMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "READ COMMITTED"
	}
}

// ToSQLOptions converts the level to sql.TxOptions
func (l IsolationLevel) ToSQLOptions() *sql.TxOptions {
	level := sql.LevelReadCommitted
	switch l {
	case ReadUncommitted:
		level = sql.LevelReadUncommitted
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	}
	return &sql.TxOptions{Isolation: level}
}

type contextKey string

const contextKeyTx contextKey = "ebean:tx"

// ContextWithTx returns a context carrying tx. Persist operations run with
// that context join tx instead of starting their own.
func ContextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, contextKeyTx, tx)
}

// TxFromContext returns the transaction carried by ctx
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(contextKeyTx).(*sql.Tx)
	return tx, ok && tx != nil
}

// TxManager runs functions in transactions
type TxManager struct {
	db    *sql.DB
	level IsolationLevel
}

// NewTxManager creates a manager using the given isolation level for new transactions
func NewTxManager(db *sql.DB, level IsolationLevel) *TxManager {
	return &TxManager{db: db, level: level}
}

// WithTransaction runs fn in the transaction of ctx, or in a new one that is
// committed when fn succeeds and rolled back when it fails or panics
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(ctx, tx)
	}

	tx, err := m.db.BeginTx(ctx, m.level.ToSQLOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ContextWithTx(ctx, tx), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
