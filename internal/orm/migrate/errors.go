package migrate

import "errors"

var (
	// ErrInvalidVersion is returned for a migration version that is not dotted numbers
	ErrInvalidVersion = errors.New("invalid migration version")

	// ErrNoMigrations is returned when there is nothing to roll back
	ErrNoMigrations = errors.New("no migrations to rollback")

	// ErrNoRollback is returned when a migration has no rollback script
	ErrNoRollback = errors.New("migration has no rollback script")

	// ErrChecksumMismatch is returned when an applied script was modified afterwards
	ErrChecksumMismatch = errors.New("migration checksum mismatch")

	// ErrMigrationNotFound is returned when removing an unknown version
	ErrMigrationNotFound = errors.New("migration not found")
)
