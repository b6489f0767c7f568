package platform

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/ebean/internal/orm/migrate/ddl"
	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

// HistoryDdl writes the DDL maintaining a history table, its triggers and the
// <table>_with_history view.
type HistoryDdl interface {
	// CreateWithHistory adds history to a table, reversed in rollback
	CreateWithHistory(w *ddl.Write, table *model.MTable)
	// DropHistory removes history. tableDropped is set when the base table is dropped
	// in the same drop script.
	DropHistory(w *ddl.Write, table *model.MTable, tableDropped bool)
	// AddColumn adds a column to the history table. table includes the new column.
	AddColumn(w *ddl.Write, table *model.MTable, col *model.MColumn)
	// DropColumn removes a column from history. table no longer includes the column.
	DropColumn(w *ddl.Write, table *model.MTable, col *model.MColumn)
	// AlterColumn changes the type of a history table column
	AlterColumn(w *ddl.Write, table *model.MTable, oldCol, newCol *model.MColumn)
	// RegenerateHistoryTriggers recreates the triggers and view from the columns of the
	// table in the current model. It does nothing when the table is unknown.
	RegenerateHistoryTriggers(w *ddl.Write, mode ddl.Mode, tableName string)
}

func withHistoryView(table *model.MTable) string {
	return table.Name + "_with_history"
}

func columnNames(cols []*model.MColumn, prefix string) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = prefix + c.Name
	}
	return strings.Join(names, ", ")
}

func withoutColumn(table *model.MTable, col *model.MColumn) *model.MTable {
	t := table.Copy()
	t.DropColumn(col.Name)
	return t
}

func withColumn(table *model.MTable, col *model.MColumn) *model.MTable {
	t := table.Copy()
	t.AddColumn(col.Copy())
	return t
}

// postgresHistory uses a sys_period tstzrange column, a history table created with
// "like" and a plpgsql trigger inserting the old row on update and delete.
type postgresHistory struct {
	p *PlatformDdl
}

func (h *postgresHistory) names(table *model.MTable) (base, history, view, fn, trigger string) {
	return h.p.Quote(table.Name), h.p.Quote(table.HistoryTableName()), h.p.Quote(withHistoryView(table)),
		table.Name + "_history_version", table.Name + "_history_upd"
}

func (h *postgresHistory) CreateWithHistory(w *ddl.Write, table *model.MTable) {
	base, history, view, _, _ := h.names(table)

	apply := w.HistoryBuffer(ddl.Apply)
	apply.AppendStatement(fmt.Sprintf("alter table %s add column sys_period tstzrange not null default tstzrange(current_timestamp, null)", base))
	apply.AppendStatement(fmt.Sprintf("create table %s(like %s)", history, base))
	h.createView(apply, table)
	h.createFunction(apply, table)
	h.createTrigger(apply, table)

	rollback := w.HistoryBuffer(ddl.Rollback)
	h.dropTriggerAndFunction(rollback, table)
	rollback.AppendStatement("drop view if exists " + view)
	rollback.AppendStatement("drop table if exists " + history)
	rollback.AppendStatement(fmt.Sprintf("alter table %s drop column if exists sys_period", base))
}

func (h *postgresHistory) DropHistory(w *ddl.Write, table *model.MTable, tableDropped bool) {
	base, history, view, fn, _ := h.names(table)
	drop := w.HistoryBuffer(ddl.Drop)

	if tableDropped {
		w.DropDependencies(ddl.Drop).AppendStatement("drop view if exists " + view)
		drop.AppendStatement(fmt.Sprintf("drop function if exists %s()", fn))
		drop.AppendStatement("drop table if exists " + history)
		return
	}

	apply := w.HistoryBuffer(ddl.Apply)
	h.dropTriggerAndFunction(apply, table)
	apply.AppendStatement("drop view if exists " + view)

	rollback := w.HistoryBuffer(ddl.Rollback)
	h.createView(rollback, table)
	h.createFunction(rollback, table)
	h.createTrigger(rollback, table)

	drop.AppendStatement("drop table if exists " + history)
	drop.AppendStatement(fmt.Sprintf("alter table %s drop column if exists sys_period", base))
}

func (h *postgresHistory) AddColumn(w *ddl.Write, table *model.MTable, col *model.MColumn) {
	_, history, _, _, _ := h.names(table)
	c := h.p.Quote(col.Name)

	w.HistoryBuffer(ddl.Apply).AppendStatement(fmt.Sprintf("alter table %s add column %s %s", history, c, h.p.ColumnType(col.Type)))
	h.RegenerateHistoryTriggers(w, ddl.Apply, table.Name)

	w.HistoryBuffer(ddl.Rollback).AppendStatement(fmt.Sprintf("alter table %s drop column %s", history, c))
	h.regenerate(w, ddl.Rollback, withoutColumn(table, col))
}

func (h *postgresHistory) DropColumn(w *ddl.Write, table *model.MTable, col *model.MColumn) {
	_, history, view, _, _ := h.names(table)

	// stop recording the column now, drop it with the drop script
	h.createFunction(w.HistoryBuffer(ddl.Apply), table)
	h.createFunction(w.HistoryBuffer(ddl.Rollback), withColumn(table, col))

	// the view selects every column so it must go before the base column is dropped
	w.DropDependencies(ddl.Drop).AppendStatement("drop view if exists " + view)
	drop := w.HistoryBuffer(ddl.Drop)
	drop.AppendStatement(fmt.Sprintf("alter table %s drop column %s", history, h.p.Quote(col.Name)))
	h.createView(drop, table)
}

func (h *postgresHistory) AlterColumn(w *ddl.Write, table *model.MTable, oldCol, newCol *model.MColumn) {
	_, history, view, _, _ := h.names(table)
	c := h.p.Quote(newCol.Name)

	w.DropDependencies(ddl.Apply).AppendStatement("drop view if exists " + view)
	apply := w.HistoryBuffer(ddl.Apply)
	apply.AppendStatement(fmt.Sprintf("alter table %s alter column %s type %s", history, c, h.p.ColumnType(newCol.Type)))
	h.createView(apply, table)

	w.DropDependencies(ddl.Rollback).AppendStatement("drop view if exists " + view)
	rollback := w.HistoryBuffer(ddl.Rollback)
	rollback.AppendStatement(fmt.Sprintf("alter table %s alter column %s type %s", history, c, h.p.ColumnType(oldCol.Type)))
	h.createView(rollback, table)
}

func (h *postgresHistory) RegenerateHistoryTriggers(w *ddl.Write, mode ddl.Mode, tableName string) {
	table := w.Table(tableName)
	if table == nil || !table.WithHistory {
		return
	}
	h.regenerate(w, mode, table)
}

func (h *postgresHistory) regenerate(w *ddl.Write, mode ddl.Mode, table *model.MTable) {
	_, _, view, _, _ := h.names(table)
	w.DropDependencies(mode).AppendStatement("drop view if exists " + view)
	buf := w.HistoryBuffer(mode)
	h.createFunction(buf, table)
	h.createView(buf, table)
}

func (h *postgresHistory) createView(buf ddl.Buffer, table *model.MTable) {
	base, history, view, _, _ := h.names(table)
	buf.AppendStatement(fmt.Sprintf("create view %s as select * from %s union all select * from %s", view, base, history))
}

func (h *postgresHistory) createFunction(buf ddl.Buffer, table *model.MTable) {
	_, history, _, fn, _ := h.names(table)
	cols := table.HistoryColumns()
	insert := fmt.Sprintf("insert into %s (sys_period,%s) values (tstzrange(lower_ts,upper_ts), %s);",
		history, columnNames(cols, ""), columnNames(cols, "OLD."))

	var b strings.Builder
	fmt.Fprintf(&b, "create or replace function %s() returns trigger as $$\n", fn)
	b.WriteString("declare\n")
	b.WriteString("  upper_ts timestamptz;\n")
	b.WriteString("  lower_ts timestamptz;\n")
	b.WriteString("begin\n")
	b.WriteString("  upper_ts = now();\n")
	b.WriteString("  lower_ts = lower(OLD.sys_period);\n")
	b.WriteString("  if (upper_ts <= lower_ts) then\n")
	b.WriteString("    upper_ts = lower_ts + interval '1 microsecond';\n")
	b.WriteString("  end if;\n")
	b.WriteString("  if (TG_OP = 'UPDATE') then\n")
	b.WriteString("    " + insert + "\n")
	b.WriteString("    NEW.sys_period = tstzrange(upper_ts,null);\n")
	b.WriteString("  elsif (TG_OP = 'DELETE') then\n")
	b.WriteString("    " + insert + "\n")
	b.WriteString("  end if;\n")
	b.WriteString("  return new;\n")
	b.WriteString("end;\n")
	b.WriteString("$$ LANGUAGE plpgsql")
	buf.AppendStatement(b.String())
}

func (h *postgresHistory) createTrigger(buf ddl.Buffer, table *model.MTable) {
	base, _, _, fn, trigger := h.names(table)
	buf.AppendStatement(fmt.Sprintf("create trigger %s\n  before update or delete on %s\n  for each row execute procedure %s()", trigger, base, fn))
}

func (h *postgresHistory) dropTriggerAndFunction(buf ddl.Buffer, table *model.MTable) {
	base, _, _, fn, trigger := h.names(table)
	buf.AppendStatement(fmt.Sprintf("drop trigger if exists %s on %s", trigger, base))
	buf.AppendStatement(fmt.Sprintf("drop function if exists %s()", fn))
}

// triggerHistory maintains history with update and delete triggers and explicit
// sys_period_start/sys_period_end columns.
type triggerHistory struct {
	p         *PlatformDdl
	now       string
	timestamp string
}

func (h *triggerHistory) CreateWithHistory(w *ddl.Write, table *model.MTable) {
	base := h.p.Quote(table.Name)

	apply := w.HistoryBuffer(ddl.Apply)
	apply.AppendStatement(fmt.Sprintf("alter table %s add sys_period_start %s default %s", base, h.timestamp, h.now))
	apply.AppendStatement(fmt.Sprintf("alter table %s add sys_period_end %s", base, h.timestamp))
	h.createHistoryTable(apply, table)
	h.createView(apply, table)
	h.createTriggers(apply, table)

	rollback := w.HistoryBuffer(ddl.Rollback)
	h.dropTriggers(rollback, table)
	rollback.AppendStatement("drop view if exists " + h.p.Quote(withHistoryView(table)))
	rollback.AppendStatement("drop table if exists " + h.p.Quote(table.HistoryTableName()))
	rollback.AppendStatement(fmt.Sprintf("alter table %s drop column sys_period_start", base))
	rollback.AppendStatement(fmt.Sprintf("alter table %s drop column sys_period_end", base))
}

func (h *triggerHistory) DropHistory(w *ddl.Write, table *model.MTable, tableDropped bool) {
	base := h.p.Quote(table.Name)
	view := h.p.Quote(withHistoryView(table))
	drop := w.HistoryBuffer(ddl.Drop)

	if tableDropped {
		w.DropDependencies(ddl.Drop).AppendStatement("drop view if exists " + view)
		drop.AppendStatement("drop table if exists " + h.p.Quote(table.HistoryTableName()))
		return
	}

	apply := w.HistoryBuffer(ddl.Apply)
	h.dropTriggers(apply, table)
	apply.AppendStatement("drop view if exists " + view)

	rollback := w.HistoryBuffer(ddl.Rollback)
	h.createView(rollback, table)
	h.createTriggers(rollback, table)

	drop.AppendStatement("drop table if exists " + h.p.Quote(table.HistoryTableName()))
	drop.AppendStatement(fmt.Sprintf("alter table %s drop column sys_period_start", base))
	drop.AppendStatement(fmt.Sprintf("alter table %s drop column sys_period_end", base))
}

func (h *triggerHistory) AddColumn(w *ddl.Write, table *model.MTable, col *model.MColumn) {
	history := h.p.Quote(table.HistoryTableName())
	c := h.p.Quote(col.Name)

	w.HistoryBuffer(ddl.Apply).AppendStatement(fmt.Sprintf("alter table %s add %s %s", history, c, h.p.ColumnType(col.Type)))
	h.RegenerateHistoryTriggers(w, ddl.Apply, table.Name)

	w.HistoryBuffer(ddl.Rollback).AppendStatement(fmt.Sprintf("alter table %s drop column %s", history, c))
	h.regenerate(w, ddl.Rollback, withoutColumn(table, col))
}

func (h *triggerHistory) DropColumn(w *ddl.Write, table *model.MTable, col *model.MColumn) {
	h.RegenerateHistoryTriggers(w, ddl.Apply, table.Name)
	h.regenerate(w, ddl.Rollback, withColumn(table, col))

	w.HistoryBuffer(ddl.Drop).AppendStatement(fmt.Sprintf("alter table %s drop column %s",
		h.p.Quote(table.HistoryTableName()), h.p.Quote(col.Name)))
}

func (h *triggerHistory) AlterColumn(w *ddl.Write, table *model.MTable, oldCol, newCol *model.MColumn) {
	history := h.p.Quote(table.HistoryTableName())
	c := h.p.Quote(newCol.Name)
	w.HistoryBuffer(ddl.Apply).AppendStatement(fmt.Sprintf("alter table %s modify %s %s", history, c, h.p.ColumnType(newCol.Type)))
	w.HistoryBuffer(ddl.Rollback).AppendStatement(fmt.Sprintf("alter table %s modify %s %s", history, c, h.p.ColumnType(oldCol.Type)))
}

func (h *triggerHistory) RegenerateHistoryTriggers(w *ddl.Write, mode ddl.Mode, tableName string) {
	table := w.Table(tableName)
	if table == nil || !table.WithHistory {
		return
	}
	h.regenerate(w, mode, table)
}

func (h *triggerHistory) regenerate(w *ddl.Write, mode ddl.Mode, table *model.MTable) {
	w.DropDependencies(mode).AppendStatement("drop view if exists " + h.p.Quote(withHistoryView(table)))
	buf := w.HistoryBuffer(mode)
	h.dropTriggers(buf, table)
	h.createTriggers(buf, table)
	h.createView(buf, table)
}

func (h *triggerHistory) createHistoryTable(buf ddl.Buffer, table *model.MTable) {
	lines := make([]string, 0, len(table.Columns())+2)
	for _, col := range table.HistoryColumns() {
		lines = append(lines, fmt.Sprintf("  %s %s", h.p.Quote(col.Name), h.p.ColumnType(col.Type)))
	}
	lines = append(lines, "  sys_period_start "+h.timestamp, "  sys_period_end "+h.timestamp)

	buf.Append("create table ").Append(h.p.Quote(table.HistoryTableName())).Append(" (").NewLine()
	buf.Append(strings.Join(lines, ",\n")).NewLine()
	buf.Append(")").EndOfStatement().End()
}

func (h *triggerHistory) createView(buf ddl.Buffer, table *model.MTable) {
	cols := columnNames(table.HistoryColumns(), "") + ", sys_period_start, sys_period_end"
	buf.AppendStatement(fmt.Sprintf("create view %s as select %s from %s union all select %s from %s",
		h.p.Quote(withHistoryView(table)), cols, h.p.Quote(table.Name), cols, h.p.Quote(table.HistoryTableName())))
}

func (h *triggerHistory) createTriggers(buf ddl.Buffer, table *model.MTable) {
	cols := table.HistoryColumns()
	insert := fmt.Sprintf("insert into %s (sys_period_start,sys_period_end,%s) values (OLD.sys_period_start, %s,%s);",
		h.p.Quote(table.HistoryTableName()), columnNames(cols, ""), h.now, columnNames(cols, "OLD."))
	base := h.p.Quote(table.Name)

	buf.AppendStatement(fmt.Sprintf("create trigger %s_history_upd before update on %s for each row begin\n    %s\n    set NEW.sys_period_start = %s;\nend",
		table.Name, base, insert, h.now))
	buf.AppendStatement(fmt.Sprintf("create trigger %s_history_del before delete on %s for each row begin\n    %s\nend",
		table.Name, base, insert))
}

func (h *triggerHistory) dropTriggers(buf ddl.Buffer, table *model.MTable) {
	buf.AppendStatement(fmt.Sprintf("drop trigger if exists %s_history_upd", table.Name))
	buf.AppendStatement(fmt.Sprintf("drop trigger if exists %s_history_del", table.Name))
}

// systemVersionedHistory uses the database's system versioned tables. Column changes
// propagate to the history table so only enabling and disabling produce DDL.
type systemVersionedHistory struct {
	p       *PlatformDdl
	enable  func(table, history string) []string
	disable func(table string) string
}

func (h *systemVersionedHistory) CreateWithHistory(w *ddl.Write, table *model.MTable) {
	base, history := h.p.Quote(table.Name), h.p.Quote(table.HistoryTableName())
	apply := w.HistoryBuffer(ddl.Apply)
	for _, stmt := range h.enable(base, history) {
		apply.AppendStatement(stmt)
	}
	rollback := w.HistoryBuffer(ddl.Rollback)
	rollback.AppendStatement(h.disable(base))
	rollback.AppendStatement("drop table " + history)
}

func (h *systemVersionedHistory) DropHistory(w *ddl.Write, table *model.MTable, _ bool) {
	w.DropDependencies(ddl.Drop).AppendStatement(h.disable(h.p.Quote(table.Name)))
	w.HistoryBuffer(ddl.Drop).AppendStatement("drop table " + h.p.Quote(table.HistoryTableName()))
}

func (h *systemVersionedHistory) AddColumn(*ddl.Write, *model.MTable, *model.MColumn)  {}
func (h *systemVersionedHistory) DropColumn(*ddl.Write, *model.MTable, *model.MColumn) {}
func (h *systemVersionedHistory) AlterColumn(*ddl.Write, *model.MTable, *model.MColumn, *model.MColumn) {
}
func (h *systemVersionedHistory) RegenerateHistoryTriggers(*ddl.Write, ddl.Mode, string) {}

// noHistory is used by platforms without history support
type noHistory struct{}

func (noHistory) CreateWithHistory(*ddl.Write, *model.MTable)                           {}
func (noHistory) DropHistory(*ddl.Write, *model.MTable, bool)                           {}
func (noHistory) AddColumn(*ddl.Write, *model.MTable, *model.MColumn)                   {}
func (noHistory) DropColumn(*ddl.Write, *model.MTable, *model.MColumn)                  {}
func (noHistory) AlterColumn(*ddl.Write, *model.MTable, *model.MColumn, *model.MColumn) {}
func (noHistory) RegenerateHistoryTriggers(*ddl.Write, ddl.Mode, string)                {}
