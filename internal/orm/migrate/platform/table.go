package platform

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/ebean/internal/orm/migrate/ddl"
	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

// CreateTable writes the create table DDL. Foreign keys go to the apply foreign key
// buffer so they run after every table exists. The reverse goes to rollback.
func (p *PlatformDdl) CreateTable(w *ddl.Write, table *model.MTable) {
	name := p.Quote(table.Name)
	apply := w.Apply()

	seq := p.sequences && table.IdentityType == model.IdentitySequence && table.SequenceName != ""
	if seq {
		apply.AppendStatement("create sequence " + p.Quote(table.SequenceName))
	}

	lines := make([]string, 0, len(table.Columns())+2)
	for _, col := range table.Columns() {
		lines = append(lines, "  "+p.columnDefinition(table, col))
	}
	for _, col := range table.Columns() {
		if col.Unique && !col.Primary {
			lines = append(lines, fmt.Sprintf("  constraint %s unique (%s)", uniqueName(table, col), p.Quote(col.Name)))
		}
	}
	if pk := table.PrimaryKeyColumns(); len(pk) > 0 && !p.inlinePrimaryKey(table) {
		lines = append(lines, fmt.Sprintf("  constraint %s primary key (%s)", PrimaryKeyName(table), p.quoteColumns(pk)))
	}

	apply.Append("create table ").Append(name).Append(" (").NewLine()
	apply.Append(strings.Join(lines, ",\n")).NewLine()
	apply.Append(")").EndOfStatement().End()

	if p.tableComments && table.Comment != "" {
		apply.AppendStatement(fmt.Sprintf("comment on table %s is '%s'", name, escapeLiteral(table.Comment)))
	}

	for _, col := range table.ForeignKeyColumns() {
		p.addForeignKey(w.ApplyForeignKeys(), table, col)
		p.dropForeignKey(w.RollbackForeignKeys(), table, col)
	}

	if table.WithHistory {
		p.history.CreateWithHistory(w, table)
	}

	w.Rollback().AppendStatement(p.dropTable + name + p.dropTableCascade)
	if seq {
		w.Rollback().AppendStatement(p.dropSequence + p.Quote(table.SequenceName))
	}
}

// DropTable writes the drop table DDL to the drop buffers
func (p *PlatformDdl) DropTable(w *ddl.Write, table *model.MTable) {
	deps := w.DropDependencies(ddl.Drop)
	for _, col := range table.ForeignKeyColumns() {
		p.dropForeignKey(deps, table, col)
	}
	if table.WithHistory {
		p.history.DropHistory(w, table, true)
	}

	drop := w.Drop()
	drop.AppendStatement(p.dropTable + p.Quote(table.Name) + p.dropTableCascade)
	if p.sequences && table.IdentityType == model.IdentitySequence && table.SequenceName != "" {
		drop.AppendStatement(p.dropSequence + p.Quote(table.SequenceName))
	}
}

// AddColumn writes the add column DDL. The table is the table after the column was added.
func (p *PlatformDdl) AddColumn(w *ddl.Write, table *model.MTable, col *model.MColumn) {
	name := p.Quote(table.Name)
	w.Apply().AppendStatement(fmt.Sprintf("alter table %s %s %s", name, p.addColumn, p.columnDefinition(table, col)))
	if col.References != "" {
		p.addForeignKey(w.ApplyForeignKeys(), table, col)
		p.dropForeignKey(w.RollbackForeignKeys(), table, col)
	}
	w.Rollback().AppendStatement(fmt.Sprintf("alter table %s drop column %s", name, p.Quote(col.Name)))

	if table.WithHistory && !col.HistoryExclude {
		p.history.AddColumn(w, table, col)
	}
}

// DropColumn writes the drop column DDL to the drop buffers. The table is the table
// after the column was removed.
func (p *PlatformDdl) DropColumn(w *ddl.Write, table *model.MTable, col *model.MColumn) {
	if col.References != "" {
		p.dropForeignKey(w.DropDependencies(ddl.Drop), table, col)
	}
	w.Drop().AppendStatement(fmt.Sprintf("alter table %s drop column %s", p.Quote(table.Name), p.Quote(col.Name)))

	if table.WithHistory && !col.HistoryExclude {
		p.history.DropColumn(w, table, col)
	}
}

// AlterColumn writes the DDL changing a column from the old to the new definition
// and the reverse change to rollback.
func (p *PlatformDdl) AlterColumn(w *ddl.Write, table *model.MTable, oldCol, newCol *model.MColumn) error {
	if p.alter == alterNone {
		return fmt.Errorf("%w: %s alter column %s.%s", ErrNotSupported, p.name, table.Name, newCol.Name)
	}
	p.alterColumn(w.Apply(), table, table.Name, oldCol, newCol)
	p.alterColumn(w.Rollback(), table, table.Name, newCol, oldCol)

	if table.WithHistory && !newCol.HistoryExclude && !strings.EqualFold(oldCol.Type, newCol.Type) {
		p.history.AlterColumn(w, table, oldCol, newCol)
	}
	return nil
}

// AddHistory turns history on for an existing table
func (p *PlatformDdl) AddHistory(w *ddl.Write, table *model.MTable) {
	p.history.CreateWithHistory(w, table)
}

// DropHistory turns history off for a table
func (p *PlatformDdl) DropHistory(w *ddl.Write, table *model.MTable) {
	p.history.DropHistory(w, table, false)
}

func (p *PlatformDdl) alterColumn(buf ddl.Buffer, table *model.MTable, tableName string, from, to *model.MColumn) {
	t := p.Quote(tableName)
	c := p.Quote(to.Name)
	typeChange := !strings.EqualFold(from.Type, to.Type)
	nullChange := from.NotNull != to.NotNull
	defaultChange := from.DefaultValue != to.DefaultValue

	switch p.alter {
	case alterModify:
		if typeChange || nullChange || defaultChange {
			buf.AppendStatement(fmt.Sprintf("alter table %s modify %s", t, p.columnDefinition(table, to)))
		}
		return

	case alterRedefine:
		if typeChange || nullChange {
			null := " null"
			if to.NotNull {
				null = " not null"
			}
			buf.AppendStatement(fmt.Sprintf("alter table %s alter column %s %s%s", t, c, p.ColumnType(to.Type), null))
		}
		if defaultChange {
			if from.DefaultValue != "" {
				buf.AppendStatement(fmt.Sprintf("alter table %s drop constraint %s", t, defaultName(table, to)))
			}
			if to.DefaultValue != "" {
				buf.AppendStatement(fmt.Sprintf("alter table %s add constraint %s default %s for %s", t, defaultName(table, to), to.DefaultValue, c))
			}
		}
		return
	}

	if typeChange {
		if p.alter == alterSetDataType {
			buf.AppendStatement(fmt.Sprintf("alter table %s alter column %s set data type %s", t, c, p.ColumnType(to.Type)))
		} else {
			buf.AppendStatement(fmt.Sprintf("alter table %s alter column %s type %s", t, c, p.ColumnType(to.Type)))
		}
	}
	if nullChange {
		if to.NotNull {
			buf.AppendStatement(fmt.Sprintf("alter table %s alter column %s set not null", t, c))
		} else {
			buf.AppendStatement(fmt.Sprintf("alter table %s alter column %s drop not null", t, c))
		}
	}
	if defaultChange {
		if to.DefaultValue != "" {
			buf.AppendStatement(fmt.Sprintf("alter table %s alter column %s set default %s", t, c, to.DefaultValue))
		} else {
			buf.AppendStatement(fmt.Sprintf("alter table %s alter column %s drop default", t, c))
		}
	}
	if p.reorgAfterAlter && (typeChange || nullChange) {
		buf.AppendStatement(fmt.Sprintf("call sysproc.admin_cmd('reorg table %s')", tableName))
	}
}

func (p *PlatformDdl) addForeignKey(buf ddl.Buffer, table *model.MTable, col *model.MColumn) {
	t := p.Quote(table.Name)
	if !p.inlineForeignKeys {
		buf.AppendStatement(fmt.Sprintf("alter table %s add constraint %s foreign key (%s) references %s (%s) on delete restrict on update restrict",
			t, ForeignKeyName(table, col), p.Quote(col.Name), p.Quote(col.ReferenceTable()), p.Quote(col.ReferenceColumn())))
	}
	buf.AppendStatement(fmt.Sprintf("create index %s on %s (%s)", ForeignKeyIndexName(table, col), t, p.Quote(col.Name)))
}

func (p *PlatformDdl) dropForeignKey(buf ddl.Buffer, table *model.MTable, col *model.MColumn) {
	t := p.Quote(table.Name)
	if !p.inlineForeignKeys {
		buf.AppendStatement(p.dropConstraint(t, ForeignKeyName(table, col)))
	}
	buf.AppendStatement(p.dropIndex(t, ForeignKeyIndexName(table, col)))
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
