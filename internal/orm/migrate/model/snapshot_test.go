package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	m := NewModelContainer()
	table := orderTable()
	table.WithHistory = true
	table.IdentityType = IdentitySequence
	table.SequenceName = "o_order_seq"
	m.AddTable(table)
	m.AddTable(NewMTable("o_customer"))

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, SaveSnapshot(path, m, "1.2"))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, "o_order", loaded.Tables()[0].Name)

	order := loaded.Table("o_order")
	assert.True(t, order.WithHistory)
	assert.Equal(t, IdentitySequence, order.IdentityType)
	assert.Equal(t, "o_order_seq", order.SequenceName)
	require.Len(t, order.Columns(), 3)
	assert.Equal(t, "o_customer.id", order.Column("customer_id").References)
	assert.True(t, order.Column("notes").HistoryExclude)
}

func TestSnapshot_Version(t *testing.T) {
	data, err := MarshalSnapshot(NewModelContainer(), "1.4")
	require.NoError(t, err)

	m, version, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "1.4", version)
	assert.Equal(t, 0, m.Len())
}

func TestLoadSnapshot_Missing(t *testing.T) {
	m, err := LoadSnapshot(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}
