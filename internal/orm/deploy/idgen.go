package deploy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AutoUUID is the name of the standard UUID generator
const AutoUUID = "auto.uuid"

// IdGenerator produces id values for new beans
type IdGenerator interface {
	Name() string
	IsDbSequence() bool
	NextID(ctx context.Context) (interface{}, error)
}

// UUIDGenerator generates random (version 4) UUIDs
type UUIDGenerator struct{}

// Name returns AutoUUID
func (UUIDGenerator) Name() string { return AutoUUID }

// IsDbSequence returns false
func (UUIDGenerator) IsDbSequence() bool { return false }

// NextID returns a new random UUID
func (UUIDGenerator) NextID(context.Context) (interface{}, error) {
	return uuid.New(), nil
}

// RowQuerier runs a query returning a single row
type RowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SequenceGenerator reads ids from a database sequence
type SequenceGenerator struct {
	name     string
	platform string
	db       RowQuerier
}

// NewSequenceGenerator creates a generator for the named sequence
func NewSequenceGenerator(db RowQuerier, platform, name string) *SequenceGenerator {
	return &SequenceGenerator{name: name, platform: strings.ToLower(platform), db: db}
}

// Name returns the sequence name
func (g *SequenceGenerator) Name() string { return g.name }

// IsDbSequence returns true
func (g *SequenceGenerator) IsDbSequence() bool { return true }

// NextValueSQL returns the statement that reads the next sequence value
func (g *SequenceGenerator) NextValueSQL() (string, error) {
	switch g.platform {
	case "postgres", "postgresql":
		return fmt.Sprintf("select nextval('%s')", g.name), nil
	case "h2", "sqlserver":
		return fmt.Sprintf("select next value for %s", g.name), nil
	case "db2":
		return fmt.Sprintf("values nextval for %s", g.name), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrSequenceNotSupported, g.platform)
	}
}

// NextID reads the next value from the sequence
func (g *SequenceGenerator) NextID(ctx context.Context) (interface{}, error) {
	query, err := g.NextValueSQL()
	if err != nil {
		return nil, err
	}
	var id int64
	if err := g.db.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to read sequence %s: %w", g.name, err)
	}
	return id, nil
}
