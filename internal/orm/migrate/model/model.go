// Package model holds the logical schema model used during migration generation.
// A ModelContainer is the "current" schema: the state the database is in after all
// previously generated migrations, read by DDL generation but never mutated by it.
package model

import "strings"

// MConfiguration holds the formatting options used by DDL buffers
type MConfiguration struct {
	// Terminator ends each statement (defaults to ";")
	Terminator string
	// BlankLineAfterStatement separates statements with an empty line
	BlankLineAfterStatement bool
	// Platform is the target database platform name
	Platform string
}

// NewMConfiguration returns the default configuration
func NewMConfiguration() *MConfiguration {
	return &MConfiguration{
		Terminator:              ";",
		BlankLineAfterStatement: true,
	}
}

// MColumn is a column of a table in the logical model
type MColumn struct {
	Name            string
	Type            string
	NotNull         bool
	Primary         bool
	Identity        bool
	Unique          bool
	DefaultValue    string
	References      string // "table.column" for foreign keys
	ForeignKeyName  string
	ForeignKeyIndex string
	HistoryExclude  bool
	Comment         string
}

// ReferenceTable returns the table part of References
func (c *MColumn) ReferenceTable() string {
	if i := strings.LastIndex(c.References, "."); i > 0 {
		return c.References[:i]
	}
	return ""
}

// ReferenceColumn returns the column part of References
func (c *MColumn) ReferenceColumn() string {
	if i := strings.LastIndex(c.References, "."); i > 0 {
		return c.References[i+1:]
	}
	return ""
}

// SameDefinition reports whether two columns have the same DDL definition
func (c *MColumn) SameDefinition(o *MColumn) bool {
	return strings.EqualFold(c.Type, o.Type) &&
		c.NotNull == o.NotNull &&
		c.DefaultValue == o.DefaultValue &&
		c.Unique == o.Unique
}

// Copy returns a shallow copy of the column
func (c *MColumn) Copy() *MColumn {
	cp := *c
	return &cp
}

// IdentityType describes how a table assigns primary key values
type IdentityType int

const (
	IdentityNone IdentityType = iota
	IdentityColumn
	IdentitySequence
)

// MTable is a table in the logical model
type MTable struct {
	Name         string
	PkName       string
	Comment      string
	WithHistory  bool
	Draft        bool
	IdentityType IdentityType
	SequenceName string

	columns []*MColumn
}

// NewMTable creates an empty table
func NewMTable(name string) *MTable {
	return &MTable{Name: name}
}

// AddColumn appends a column, replacing an existing column of the same name in place
func (t *MTable) AddColumn(col *MColumn) {
	for i, c := range t.columns {
		if strings.EqualFold(c.Name, col.Name) {
			t.columns[i] = col
			return
		}
	}
	t.columns = append(t.columns, col)
}

// DropColumn removes a column by name
func (t *MTable) DropColumn(name string) {
	for i, c := range t.columns {
		if strings.EqualFold(c.Name, name) {
			t.columns = append(t.columns[:i], t.columns[i+1:]...)
			return
		}
	}
}

// Column returns the named column or nil
func (t *MTable) Column(name string) *MColumn {
	for _, c := range t.columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// Columns returns the columns in definition order
func (t *MTable) Columns() []*MColumn {
	return t.columns
}

// PrimaryKeyColumns returns the columns making up the primary key
func (t *MTable) PrimaryKeyColumns() []*MColumn {
	var pk []*MColumn
	for _, c := range t.columns {
		if c.Primary {
			pk = append(pk, c)
		}
	}
	return pk
}

// ForeignKeyColumns returns the columns that reference another table
func (t *MTable) ForeignKeyColumns() []*MColumn {
	var fks []*MColumn
	for _, c := range t.columns {
		if c.References != "" {
			fks = append(fks, c)
		}
	}
	return fks
}

// HistoryColumns returns the columns included in the history table and triggers
func (t *MTable) HistoryColumns() []*MColumn {
	var cols []*MColumn
	for _, c := range t.columns {
		if !c.HistoryExclude {
			cols = append(cols, c)
		}
	}
	return cols
}

// HistoryTableName returns the name of the associated history table
func (t *MTable) HistoryTableName() string {
	return t.Name + "_history"
}

// Copy returns a deep copy of the table
func (t *MTable) Copy() *MTable {
	cp := *t
	cp.columns = make([]*MColumn, len(t.columns))
	for i, c := range t.columns {
		cp.columns[i] = c.Copy()
	}
	return &cp
}

// ModelContainer holds the tables of a schema, preserving insertion order
type ModelContainer struct {
	tables map[string]*MTable
	order  []string
}

// NewModelContainer creates an empty model
func NewModelContainer() *ModelContainer {
	return &ModelContainer{tables: make(map[string]*MTable)}
}

// AddTable adds or replaces a table
func (m *ModelContainer) AddTable(t *MTable) {
	key := strings.ToLower(t.Name)
	if _, exists := m.tables[key]; !exists {
		m.order = append(m.order, key)
	}
	m.tables[key] = t
}

// RemoveTable removes a table by name
func (m *ModelContainer) RemoveTable(name string) {
	key := strings.ToLower(name)
	if _, exists := m.tables[key]; !exists {
		return
	}
	delete(m.tables, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Table returns the table with the given name, or nil
func (m *ModelContainer) Table(name string) *MTable {
	if m == nil {
		return nil
	}
	return m.tables[strings.ToLower(name)]
}

// Tables returns the tables in insertion order
func (m *ModelContainer) Tables() []*MTable {
	tables := make([]*MTable, 0, len(m.order))
	for _, k := range m.order {
		tables = append(tables, m.tables[k])
	}
	return tables
}

// Len returns the number of tables
func (m *ModelContainer) Len() int {
	return len(m.order)
}

// Clone returns a deep copy of the model
func (m *ModelContainer) Clone() *ModelContainer {
	cp := NewModelContainer()
	for _, t := range m.Tables() {
		cp.AddTable(t.Copy())
	}
	return cp
}
