package migrate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

// ChangeType represents the type of schema change
type ChangeType int

const (
	ChangeAddTable ChangeType = iota
	ChangeDropTable
	ChangeAddColumn
	ChangeDropColumn
	ChangeAlterColumn
	ChangeAddHistory
	ChangeDropHistory
)

// String returns the string representation of the change type
func (c ChangeType) String() string {
	switch c {
	case ChangeAddTable:
		return "add_table"
	case ChangeDropTable:
		return "drop_table"
	case ChangeAddColumn:
		return "add_column"
	case ChangeDropColumn:
		return "drop_column"
	case ChangeAlterColumn:
		return "alter_column"
	case ChangeAddHistory:
		return "add_history"
	case ChangeDropHistory:
		return "drop_history"
	default:
		return "unknown"
	}
}

// SchemaChange represents a detected change between two models.
// Table is the table after the change, or the dropped table.
type SchemaChange struct {
	Type      ChangeType
	Table     *model.MTable
	OldColumn *model.MColumn
	NewColumn *model.MColumn
	Breaking  bool
	DataLoss  bool
}

// TableName returns the name of the changed table
func (c SchemaChange) TableName() string {
	return c.Table.Name
}

// ColumnName returns the name of the changed column, if any
func (c SchemaChange) ColumnName() string {
	if c.NewColumn != nil {
		return c.NewColumn.Name
	}
	if c.OldColumn != nil {
		return c.OldColumn.Name
	}
	return ""
}

// Differ compares the current model with the target model built from the entities
type Differ struct {
	current *model.ModelContainer
	target  *model.ModelContainer
}

// NewDiffer creates a new model differ
func NewDiffer(current, target *model.ModelContainer) *Differ {
	if current == nil {
		current = model.NewModelContainer()
	}
	if target == nil {
		target = model.NewModelContainer()
	}
	return &Differ{current: current, target: target}
}

// ComputeDiff computes all changes between the current and target models. The result
// is deterministic: tables and columns are visited in sorted order.
func (d *Differ) ComputeDiff() []SchemaChange {
	var changes []SchemaChange

	oldNames := sortedTableNames(d.current)
	newNames := sortedTableNames(d.target)

	for _, name := range setDifference(newNames, oldNames) {
		changes = append(changes, SchemaChange{
			Type:  ChangeAddTable,
			Table: d.target.Table(name),
		})
	}

	for _, name := range setDifference(oldNames, newNames) {
		changes = append(changes, SchemaChange{
			Type:     ChangeDropTable,
			Table:    d.current.Table(name),
			Breaking: true,
			DataLoss: true,
		})
	}

	for _, name := range setIntersection(oldNames, newNames) {
		changes = append(changes, d.diffTable(d.current.Table(name), d.target.Table(name))...)
	}

	return changes
}

// diffTable compares the columns and history setting of a table
func (d *Differ) diffTable(oldTable, newTable *model.MTable) []SchemaChange {
	var changes []SchemaChange

	// history goes off before columns change and on after
	if oldTable.WithHistory && !newTable.WithHistory {
		changes = append(changes, SchemaChange{Type: ChangeDropHistory, Table: oldTable, DataLoss: true})
	}

	oldCols := sortedColumnNames(oldTable)
	newCols := sortedColumnNames(newTable)

	for _, name := range setDifference(newCols, oldCols) {
		col := newTable.Column(name)
		changes = append(changes, SchemaChange{
			Type:      ChangeAddColumn,
			Table:     newTable,
			NewColumn: col,
			Breaking:  col.NotNull && col.DefaultValue == "",
		})
	}

	for _, name := range setDifference(oldCols, newCols) {
		changes = append(changes, SchemaChange{
			Type:      ChangeDropColumn,
			Table:     newTable,
			OldColumn: oldTable.Column(name),
			Breaking:  true,
			DataLoss:  true,
		})
	}

	for _, name := range setIntersection(oldCols, newCols) {
		oldCol, newCol := oldTable.Column(name), newTable.Column(name)
		if oldCol.SameDefinition(newCol) {
			continue
		}
		changes = append(changes, SchemaChange{
			Type:      ChangeAlterColumn,
			Table:     newTable,
			OldColumn: oldCol,
			NewColumn: newCol,
			Breaking:  isBreakingColumnChange(oldCol, newCol),
			DataLoss:  causesDataLoss(oldCol, newCol),
		})
	}

	if !oldTable.WithHistory && newTable.WithHistory {
		changes = append(changes, SchemaChange{Type: ChangeAddHistory, Table: newTable})
	}

	return changes
}

// isBreakingColumnChange determines if a column change is breaking
func isBreakingColumnChange(oldCol, newCol *model.MColumn) bool {
	if !oldCol.NotNull && newCol.NotNull {
		return true
	}
	if !oldCol.Unique && newCol.Unique {
		return true
	}
	return baseType(oldCol.Type) != baseType(newCol.Type)
}

// causesDataLoss determines if a column change may cause data loss
func causesDataLoss(oldCol, newCol *model.MColumn) bool {
	if baseType(oldCol.Type) != baseType(newCol.Type) {
		return true
	}
	oldLen, newLen := typeLength(oldCol.Type), typeLength(newCol.Type)
	return newLen > 0 && (oldLen == 0 || newLen < oldLen)
}

func baseType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i > 0 {
		return t[:i]
	}
	return t
}

// typeLength returns the first type argument, "varchar(100)" gives 100
func typeLength(t string) int {
	open := strings.IndexByte(t, '(')
	if open < 0 {
		return 0
	}
	var n int
	for _, r := range t[open+1:] {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// Set operations
func setDifference(a, b []string) []string {
	mb := make(map[string]bool)
	for _, x := range b {
		mb[x] = true
	}

	var diff []string
	for _, x := range a {
		if !mb[x] {
			diff = append(diff, x)
		}
	}
	return diff
}

func setIntersection(a, b []string) []string {
	mb := make(map[string]bool)
	for _, x := range b {
		mb[x] = true
	}

	var inter []string
	for _, x := range a {
		if mb[x] {
			inter = append(inter, x)
		}
	}
	return inter
}

func sortedTableNames(m *model.ModelContainer) []string {
	names := make([]string, 0, m.Len())
	for _, t := range m.Tables() {
		names = append(names, strings.ToLower(t.Name))
	}
	sort.Strings(names)
	return names
}

func sortedColumnNames(t *model.MTable) []string {
	names := make([]string, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		names = append(names, strings.ToLower(c.Name))
	}
	sort.Strings(names)
	return names
}

// GenerateMigrationName creates a descriptive name for the migration
func GenerateMigrationName(changes []SchemaChange) string {
	if len(changes) == 0 {
		return "no_changes"
	}

	var added, dropped, modified []string
	var tables, columns int

	for _, change := range changes {
		switch change.Type {
		case ChangeAddTable:
			added = append(added, change.TableName())
			tables++
		case ChangeDropTable:
			dropped = append(dropped, change.TableName())
			tables++
		case ChangeAddColumn:
			added = append(added, change.TableName()+"_"+change.ColumnName())
			columns++
		case ChangeDropColumn:
			dropped = append(dropped, change.TableName()+"_"+change.ColumnName())
			columns++
		case ChangeAlterColumn:
			modified = append(modified, change.TableName()+"_"+change.ColumnName())
			columns++
		case ChangeAddHistory:
			added = append(added, change.TableName()+"_history")
		case ChangeDropHistory:
			dropped = append(dropped, change.TableName()+"_history")
		}
	}

	var parts []string

	if len(added) > 0 {
		if len(added) <= 3 {
			parts = append(parts, "add_"+strings.Join(added, "_"))
		} else {
			parts = append(parts, fmt.Sprintf("add_%d_items", len(added)))
		}
	}

	if len(dropped) > 0 {
		if len(dropped) <= 3 {
			parts = append(parts, "drop_"+strings.Join(dropped, "_"))
		} else {
			parts = append(parts, fmt.Sprintf("drop_%d_items", len(dropped)))
		}
	}

	if len(modified) > 0 {
		if len(modified) <= 3 {
			parts = append(parts, "alter_"+strings.Join(modified, "_"))
		} else {
			parts = append(parts, fmt.Sprintf("alter_%d_columns", len(modified)))
		}
	}

	if len(parts) == 0 {
		return "schema_changes"
	}

	name := strings.Join(parts, "_and_")

	if len(name) > 200 {
		return fmt.Sprintf("schema_changes_%d_tables_%d_columns", tables, columns)
	}

	return name
}
