package ddl

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

// Mode selects the apply, rollback or drop family of buffers
type Mode int

const (
	Apply Mode = iota
	Rollback
	Drop
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case Apply:
		return "apply"
	case Rollback:
		return "rollback"
	case Drop:
		return "drop"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Write holds the buffers for apply, rollback and drop DDL of one migration.
//
// Buffers are split by category so a script can be assembled in a fixed order
// regardless of the order entities were visited: drop dependencies first, then
// the main statements, then foreign keys, then history. Foreign keys often
// reference tables created later in visitation order.
type Write struct {
	currentModel *model.ModelContainer

	applyDropDependencies Buffer
	apply                 Buffer
	applyForeignKeys      Buffer
	applyHistory          Buffer

	rollbackDropDependencies Buffer
	rollbackForeignKeys      Buffer
	rollback                 Buffer

	// drop holds destructive DDL (drop table, drop column). It usually runs manually
	// after every server has moved onto code that no longer uses the dropped objects.
	drop Buffer
	// dropHistory is used when history is turned off for a table or columns.
	dropHistory Buffer
	// dropDropDependencies executes early in the drop script.
	dropDropDependencies Buffer
}

// NewDefaultWrite creates a Write with the default configuration and an empty current
// model (no history support).
func NewDefaultWrite() *Write {
	return NewWrite(model.NewMConfiguration(), model.NewModelContainer())
}

// NewWrite creates a Write for the given configuration and current model
func NewWrite(cfg *model.MConfiguration, currentModel *model.ModelContainer) *Write {
	if currentModel == nil {
		currentModel = model.NewModelContainer()
	}
	return &Write{
		currentModel:             currentModel,
		applyDropDependencies:    NewBuffer(cfg),
		apply:                    NewBuffer(cfg),
		applyForeignKeys:         NewBuffer(cfg),
		applyHistory:             NewBuffer(cfg),
		rollbackDropDependencies: NewBuffer(cfg),
		rollbackForeignKeys:      NewBuffer(cfg),
		rollback:                 NewBuffer(cfg),
		drop:                     NewBuffer(cfg),
		dropHistory:              NewBuffer(cfg),
		dropDropDependencies:     NewBuffer(cfg),
	}
}

// Table returns the table from the current model.
//
// History support uses this to determine the columns included in the history when
// creating or recreating the associated trigger.
func (w *Write) Table(name string) *model.MTable {
	return w.currentModel.Table(name)
}

// IsApplyEmpty returns true if all the apply buffers are empty
func (w *Write) IsApplyEmpty() bool {
	return w.apply.IsEmpty() &&
		w.applyForeignKeys.IsEmpty() &&
		w.applyHistory.IsEmpty() &&
		w.applyDropDependencies.IsEmpty()
}

// IsApplyRollbackEmpty returns true if all the rollback buffers are empty
func (w *Write) IsApplyRollbackEmpty() bool {
	return w.rollback.IsEmpty() &&
		w.rollbackForeignKeys.IsEmpty() &&
		w.rollbackDropDependencies.IsEmpty()
}

// IsDropEmpty returns true if the drop buffers are empty
func (w *Write) IsDropEmpty() bool {
	return w.drop.IsEmpty() && w.dropHistory.IsEmpty()
}

// Buffer returns the main buffer for the mode
func (w *Write) Buffer(mode Mode) Buffer {
	switch mode {
	case Apply:
		return w.apply
	case Rollback:
		return w.rollback
	case Drop:
		return w.drop
	default:
		panic("invalid mode " + mode.String())
	}
}

// HistoryBuffer returns the history buffer for the mode. Rollback has no separate
// history buffer and shares the main rollback buffer.
func (w *Write) HistoryBuffer(mode Mode) Buffer {
	switch mode {
	case Apply:
		return w.applyHistory
	case Rollback:
		return w.rollback
	case Drop:
		return w.dropHistory
	default:
		panic("invalid mode " + mode.String())
	}
}

// DropDependencies returns the drop dependencies buffer for the mode
func (w *Write) DropDependencies(mode Mode) Buffer {
	switch mode {
	case Apply:
		return w.applyDropDependencies
	case Rollback:
		return w.rollbackDropDependencies
	case Drop:
		return w.dropDropDependencies
	default:
		panic("invalid mode " + mode.String())
	}
}

// Apply returns the buffer apply DDL is written to
func (w *Write) Apply() Buffer {
	return w.apply
}

// ApplyDropDependencies returns the buffer that executes early to drop dependencies like views
func (w *Write) ApplyDropDependencies() Buffer {
	return w.applyDropDependencies
}

// ApplyForeignKeys returns the buffer for foreign keys and their indexes. It executes
// after all the normal apply statements.
func (w *Write) ApplyForeignKeys() Buffer {
	return w.applyForeignKeys
}

// ApplyHistory returns the buffer apply history DDL is written to
func (w *Write) ApplyHistory() Buffer {
	return w.applyHistory
}

// RollbackDropDependencies returns the buffer rollback executes early to drop dependencies
func (w *Write) RollbackDropDependencies() Buffer {
	return w.rollbackDropDependencies
}

// RollbackForeignKeys returns the buffer rollback DDL for foreign keys is written to
func (w *Write) RollbackForeignKeys() Buffer {
	return w.rollbackForeignKeys
}

// Rollback returns the buffer that reverses the apply changes. Statements in it
// execute after the foreign key rollback.
func (w *Write) Rollback() Buffer {
	return w.rollback
}

// Drop returns the buffer destructive changes are written to
func (w *Write) Drop() Buffer {
	return w.drop
}

// DropHistory returns the buffer used when history is no longer required
func (w *Write) DropHistory() Buffer {
	return w.dropHistory
}

// DropDropDependencies returns the buffer that executes early in the drop script
func (w *Write) DropDropDependencies() Buffer {
	return w.dropDropDependencies
}

// ApplyScript returns the apply script: drop dependencies, apply, foreign keys, history
func (w *Write) ApplyScript() string {
	return join(w.applyDropDependencies, w.apply, w.applyForeignKeys, w.applyHistory)
}

// RollbackScript returns the rollback script: drop dependencies, foreign keys, rollback
func (w *Write) RollbackScript() string {
	return join(w.rollbackDropDependencies, w.rollbackForeignKeys, w.rollback)
}

// DropScript returns the drop script: drop dependencies, drop, drop history
func (w *Write) DropScript() string {
	return join(w.dropDropDependencies, w.drop, w.dropHistory)
}

func join(buffers ...Buffer) string {
	var sb strings.Builder
	for _, b := range buffers {
		sb.WriteString(b.String())
	}
	return sb.String()
}
