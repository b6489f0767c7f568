// Package ddl provides the buffers DDL generation writes apply, rollback and drop
// statements to.
package ddl

import (
	"strings"

	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

// Buffer accumulates DDL statements. It is append only.
type Buffer interface {
	// Append adds raw text
	Append(s string) Buffer
	// AppendWithSpace adds a space followed by the text
	AppendWithSpace(s string) Buffer
	// NewLine adds a newline
	NewLine() Buffer
	// EndOfStatement adds the statement terminator and a newline
	EndOfStatement() Buffer
	// End adds the configured separator between statements
	End() Buffer
	// AppendStatement appends a complete statement
	AppendStatement(sql string) Buffer
	// String returns the buffer content
	String() string
	// IsEmpty returns true if nothing has been written
	IsEmpty() bool
}

type baseBuffer struct {
	cfg *model.MConfiguration
	sb  strings.Builder
}

// NewBuffer creates a buffer using the given configuration
func NewBuffer(cfg *model.MConfiguration) Buffer {
	if cfg == nil {
		cfg = model.NewMConfiguration()
	}
	return &baseBuffer{cfg: cfg}
}

func (b *baseBuffer) Append(s string) Buffer {
	b.sb.WriteString(s)
	return b
}

func (b *baseBuffer) AppendWithSpace(s string) Buffer {
	if s == "" {
		return b
	}
	b.sb.WriteByte(' ')
	b.sb.WriteString(s)
	return b
}

func (b *baseBuffer) NewLine() Buffer {
	b.sb.WriteByte('\n')
	return b
}

func (b *baseBuffer) EndOfStatement() Buffer {
	b.sb.WriteString(b.cfg.Terminator)
	b.sb.WriteByte('\n')
	return b
}

func (b *baseBuffer) End() Buffer {
	if b.cfg.BlankLineAfterStatement {
		b.sb.WriteByte('\n')
	}
	return b
}

func (b *baseBuffer) AppendStatement(sql string) Buffer {
	return b.Append(strings.TrimRight(sql, "; \n")).EndOfStatement().End()
}

func (b *baseBuffer) String() string {
	return b.sb.String()
}

func (b *baseBuffer) IsEmpty() bool {
	return b.sb.Len() == 0
}
