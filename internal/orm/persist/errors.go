package persist

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"
)

var (
	// ErrVetoed is returned when a persist controller vetoes the operation
	ErrVetoed = errors.New("persist vetoed by controller")

	// ErrNotFound is returned when the row to update or delete does not exist
	ErrNotFound = errors.New("row not found")

	// ErrOptimisticLock is returned when the version column no longer matches
	ErrOptimisticLock = errors.New("bean was modified by another transaction")

	// ErrUnresolvedAssociation is returned when an associated bean cannot be mapped to its id
	ErrUnresolvedAssociation = errors.New("cannot resolve associated bean id")

	// ErrNoID is returned when updating or deleting a bean without an id
	ErrNoID = errors.New("bean has no id")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")
)

// ConvertDBError maps driver specific constraint errors to the sentinel errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.Detail)
		case "23503":
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pgErr.Detail)
		case "23514":
			return fmt.Errorf("%w: %s", ErrCheckViolation, pgErr.Detail)
		case "23502":
			return fmt.Errorf("%w: column %s", ErrNotNullViolation, pgErr.ColumnName)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, liteErr.Error())
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %s", ErrCheckViolation, liteErr.Error())
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrNotNullViolation, liteErr.Error())
		}
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case 2601, 2627:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, msErr.Message)
		case 547:
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, msErr.Message)
		case 515:
			return fmt.Errorf("%w: %s", ErrNotNullViolation, msErr.Message)
		}
	}

	return err
}

// IsVetoed reports whether err is a controller veto
func IsVetoed(err error) bool {
	return errors.Is(err, ErrVetoed)
}

// IsOptimisticLock reports whether err is an optimistic lock failure
func IsOptimisticLock(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}
