// Package platform provides the database specific DDL used by migration generation.
// Each PlatformDdl writes apply, rollback and drop statements into a ddl.Write so the
// resulting scripts can be assembled in a fixed order.
package platform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

type alterStyle int

const (
	// alter column c type T / set not null / drop not null
	alterStandard alterStyle = iota
	// alter column c set data type T
	alterSetDataType
	// modify c <full definition>
	alterModify
	// alter column c T null|not null
	alterRedefine
	// no alter column support
	alterNone
)

// PlatformDdl holds the DDL dialect of one database platform
type PlatformDdl struct {
	name string

	// identitySuffix follows the column type of an identity column
	identitySuffix string
	// inlineIdentity renders identity primary keys as "integer primary key autoincrement"
	inlineIdentity bool
	// inlineForeignKeys renders foreign keys in the column definition. Constraints
	// cannot be added or dropped later.
	inlineForeignKeys bool
	sequences         bool
	tableComments     bool
	namedDefaults     bool
	reorgAfterAlter   bool

	addColumn        string
	dropTable        string
	dropTableCascade string
	dropSequence     string
	dropConstraint   func(table, name string) string
	dropIndex        func(table, name string) string
	alter            alterStyle

	types map[string]string
	quote func(string) string

	history HistoryDdl
}

// Name returns the platform name
func (p *PlatformDdl) Name() string {
	return p.name
}

// IdentitySuffix returns the text appended to identity column types
func (p *PlatformDdl) IdentitySuffix() string {
	return p.identitySuffix
}

// History returns the history DDL of the platform
func (p *PlatformDdl) History() HistoryDdl {
	return p.history
}

// ColumnType maps a logical column type such as "varchar(100)" to the platform type
func (p *PlatformDdl) ColumnType(logical string) string {
	t := strings.ToLower(strings.TrimSpace(logical))
	base, args := t, ""
	if i := strings.IndexByte(t, '('); i > 0 {
		base, args = t[:i], t[i:]
	}
	mapped, ok := p.types[base]
	if !ok {
		return t
	}
	if strings.Contains(mapped, "(") {
		return mapped
	}
	return mapped + args
}

// Quote quotes an identifier when it is a reserved word or not a plain lower case name
func (p *PlatformDdl) Quote(name string) string {
	if strings.Contains(name, ".") {
		parts := strings.Split(name, ".")
		for i := range parts {
			parts[i] = p.Quote(parts[i])
		}
		return strings.Join(parts, ".")
	}
	if !needsQuote(name) {
		return name
	}
	return p.quote(name)
}

var reserved = map[string]bool{
	"all": true, "and": true, "as": true, "by": true, "case": true, "check": true,
	"column": true, "constraint": true, "create": true, "default": true, "desc": true,
	"distinct": true, "drop": true, "end": true, "from": true, "group": true,
	"index": true, "key": true, "limit": true, "not": true, "null": true, "order": true,
	"primary": true, "references": true, "select": true, "table": true, "to": true,
	"union": true, "unique": true, "user": true, "value": true, "where": true,
}

func needsQuote(name string) bool {
	if name == "" || reserved[name] {
		return true
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return true
		}
	}
	return false
}

func doubleQuote(name string) string {
	return pq.QuoteIdentifier(name)
}

// PrimaryKeyName returns the primary key constraint name for a table
func PrimaryKeyName(table *model.MTable) string {
	if table.PkName != "" {
		return table.PkName
	}
	return "pk_" + table.Name
}

// ForeignKeyName returns the foreign key constraint name for a column
func ForeignKeyName(table *model.MTable, col *model.MColumn) string {
	if col.ForeignKeyName != "" {
		return col.ForeignKeyName
	}
	return "fk_" + table.Name + "_" + col.Name
}

// ForeignKeyIndexName returns the name of the index supporting a foreign key
func ForeignKeyIndexName(table *model.MTable, col *model.MColumn) string {
	if col.ForeignKeyIndex != "" {
		return col.ForeignKeyIndex
	}
	return "ix_" + table.Name + "_" + col.Name
}

func uniqueName(table *model.MTable, col *model.MColumn) string {
	return "uq_" + table.Name + "_" + col.Name
}

func defaultName(table *model.MTable, col *model.MColumn) string {
	return "df_" + table.Name + "_" + col.Name
}

func (p *PlatformDdl) isIdentity(table *model.MTable, col *model.MColumn) bool {
	return col.Identity && table.IdentityType == model.IdentityColumn
}

// columnDefinition renders "name type [identity] [default] [not null]"
func (p *PlatformDdl) columnDefinition(table *model.MTable, col *model.MColumn) string {
	var b strings.Builder
	b.WriteString(p.Quote(col.Name))
	b.WriteByte(' ')

	identity := p.isIdentity(table, col)
	if identity && p.inlineIdentity {
		b.WriteString("integer primary key autoincrement")
		return b.String()
	}

	b.WriteString(p.ColumnType(col.Type))
	if identity {
		b.WriteString(p.identitySuffix)
	}
	if col.DefaultValue != "" && !identity {
		if p.namedDefaults {
			b.WriteString(" constraint " + defaultName(table, col))
		}
		b.WriteString(" default " + col.DefaultValue)
	}
	if col.NotNull || col.Primary {
		b.WriteString(" not null")
	}
	if p.inlineForeignKeys && col.References != "" {
		fmt.Fprintf(&b, " references %s (%s)", p.Quote(col.ReferenceTable()), p.Quote(col.ReferenceColumn()))
	}
	return b.String()
}

// inlinePrimaryKey is true when the primary key is declared in the column definition
func (p *PlatformDdl) inlinePrimaryKey(table *model.MTable) bool {
	if !p.inlineIdentity {
		return false
	}
	for _, col := range table.PrimaryKeyColumns() {
		if p.isIdentity(table, col) {
			return true
		}
	}
	return false
}

func (p *PlatformDdl) quoteColumns(cols []*model.MColumn) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = p.Quote(c.Name)
	}
	return strings.Join(names, ",")
}

// Lookup returns the platform registered under the given name
func Lookup(name string) (*PlatformDdl, error) {
	ctor, ok := platforms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
	}
	return ctor(), nil
}

// Names returns the canonical names of the supported platforms
func Names() []string {
	names := []string{Postgres, DB2, H2, MySQL, SQLServer, SQLite}
	sort.Strings(names)
	return names
}
