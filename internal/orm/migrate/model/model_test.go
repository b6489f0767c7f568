package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderTable() *MTable {
	t := NewMTable("o_order")
	t.AddColumn(&MColumn{Name: "id", Type: "bigint", Primary: true, NotNull: true, Identity: true})
	t.AddColumn(&MColumn{Name: "customer_id", Type: "bigint", References: "o_customer.id", ForeignKeyName: "fk_o_order_customer_id"})
	t.AddColumn(&MColumn{Name: "notes", Type: "varchar(255)", HistoryExclude: true})
	return t
}

func TestMTable_Columns(t *testing.T) {
	table := orderTable()

	require.Len(t, table.Columns(), 3)
	assert.Equal(t, "id", table.PrimaryKeyColumns()[0].Name)
	assert.Len(t, table.ForeignKeyColumns(), 1)
	assert.NotNil(t, table.Column("CUSTOMER_ID"))
	assert.Nil(t, table.Column("missing"))
	assert.Equal(t, "o_order_history", table.HistoryTableName())

	history := table.HistoryColumns()
	require.Len(t, history, 2)
	assert.Equal(t, "customer_id", history[1].Name)
}

func TestMTable_AddColumnReplacesInPlace(t *testing.T) {
	table := orderTable()
	table.AddColumn(&MColumn{Name: "customer_id", Type: "integer"})

	require.Len(t, table.Columns(), 3)
	assert.Equal(t, "integer", table.Columns()[1].Type)

	table.DropColumn("customer_id")
	assert.Len(t, table.Columns(), 2)
}

func TestMColumn_References(t *testing.T) {
	col := &MColumn{References: "o_customer.id"}
	assert.Equal(t, "o_customer", col.ReferenceTable())
	assert.Equal(t, "id", col.ReferenceColumn())

	none := &MColumn{}
	assert.Empty(t, none.ReferenceTable())
	assert.Empty(t, none.ReferenceColumn())
}

func TestModelContainer_Order(t *testing.T) {
	m := NewModelContainer()
	m.AddTable(NewMTable("b"))
	m.AddTable(NewMTable("a"))
	m.AddTable(NewMTable("c"))
	m.RemoveTable("a")

	names := []string{}
	for _, table := range m.Tables() {
		names = append(names, table.Name)
	}
	assert.Equal(t, []string{"b", "c"}, names)
	assert.Equal(t, 2, m.Len())
	assert.Nil(t, m.Table("a"))
}

func TestModelContainer_Clone(t *testing.T) {
	m := NewModelContainer()
	m.AddTable(orderTable())

	cp := m.Clone()
	cp.Table("o_order").Column("id").Type = "integer"

	assert.Equal(t, "bigint", m.Table("o_order").Column("id").Type)
}

func TestModelContainer_NilTable(t *testing.T) {
	var m *ModelContainer
	assert.Nil(t, m.Table("anything"))
}
