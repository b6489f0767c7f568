package deploy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func registerOrderModel(t *testing.T, m *Manager) {
	t.Helper()

	customer := m.NewDescriptor(&BeanClass{Name: "Customer", Kind: ClassEntity})
	customer.AddBeanProperty(&DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	customer.AddBeanProperty(&DeployBeanProperty{Name: "firstName", DbType: "varchar(50)"})
	customer.AddBeanProperty(&DeployBeanProperty{Name: "orders", Kind: KindAssocMany, TargetType: "Order", MappedBy: "customer"})

	order := m.NewDescriptor(&BeanClass{Name: "Order", Kind: ClassEntity})
	order.AddBeanProperty(&DeployBeanProperty{Name: "id", DbType: "uuid", ID: true})
	order.AddBeanProperty(&DeployBeanProperty{Name: "customer", Kind: KindAssocOne, TargetType: "Customer", NotNull: true})
	order.AddBeanProperty(&DeployBeanProperty{Name: "shipTo", Kind: KindAssocOne, TargetType: "Customer"})
	order.SetUUIDGenerator()

	require.NoError(t, m.Register(customer))
	require.NoError(t, m.Register(order))
}

func TestManager_BuildAppliesDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewManager(nil, WithLogger(zap.New(core)))
	registerOrderModel(t, m)

	require.NoError(t, m.Build())
	assert.True(t, m.IsBuilt())
	assert.Equal(t, []string{"Customer", "Order"}, m.List())
	assert.Equal(t, 2, m.Count())

	customer, err := m.Lookup("Customer")
	require.NoError(t, err)
	assert.Equal(t, "customer", customer.BaseTable())
	assert.Equal(t, "customer_with_history", customer.BaseTableAsOf())
	assert.Equal(t, "first_name", customer.Property("firstName").DbColumn())
	assert.Equal(t, IdTypeIdentity, customer.IdType())

	order, ok := m.Get("Order")
	require.True(t, ok)
	assert.Equal(t, IdTypeExternal, order.IdType())
	assert.Equal(t, "customer_id", order.Property("customer").DbColumn())
	assert.Equal(t, "bigint", order.Property("customer").DbType())

	deployed, _ := m.Deploy("Order")
	assert.Equal(t, JoinInner, deployed.BeanProperty("customer").TableJoin.Type)
	assert.Equal(t, JoinOuter, deployed.BeanProperty("shipTo").TableJoin.Type)
	assert.Equal(t, "ship_to_id", deployed.BeanProperty("shipTo").DbColumn)
	assert.Equal(t, "customer", deployed.FindJoinToTable("CUSTOMER").Name)

	assert.Len(t, m.Descriptors(), 2)
	assert.Equal(t, 2, logs.FilterMessage("bean descriptor built").Len())
	require.Equal(t, 1, logs.FilterMessage("deployed beans").Len())
	assert.Equal(t, int64(2), logs.FilterMessage("deployed beans").All()[0].ContextMap()["count"])
}

func TestManager_PluralizedTables(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PluralizeTables = true
	m := NewManager(cfg)
	registerOrderModel(t, m)
	require.NoError(t, m.Build())

	customer, _ := m.Get("Customer")
	assert.Equal(t, "customers", customer.BaseTable())
	order, _ := m.Get("Order")
	assert.Equal(t, "orders", order.BaseTable())
}

func TestManager_SequenceDefaults(t *testing.T) {
	m := NewManager(nil)
	d := m.NewDescriptor(&BeanClass{Name: "Invoice", Kind: ClassEntity})
	d.AddBeanProperty(&DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	d.SetIdType(IdTypeSequence)
	require.NoError(t, m.Register(d))
	require.NoError(t, m.Build())

	built, _ := m.Get("Invoice")
	assert.Equal(t, "invoice_seq", built.SequenceName())
}

func TestManager_DuplicateBean(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(m.NewDescriptor(&BeanClass{Name: "Customer"})))
	err := m.Register(m.NewDescriptor(&BeanClass{Name: "Customer"}))
	assert.True(t, errors.Is(err, ErrDuplicateBean))
}

func TestManager_UnknownTarget(t *testing.T) {
	m := NewManager(nil)
	d := m.NewDescriptor(&BeanClass{Name: "Order", Kind: ClassEntity})
	d.AddBeanProperty(&DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	d.AddBeanProperty(&DeployBeanProperty{Name: "customer", Kind: KindAssocOne, TargetType: "Customer"})
	require.NoError(t, m.Register(d))

	err := m.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTarget))
	assert.False(t, m.IsBuilt())
}

func TestManager_InheritanceErrorAbortsBuild(t *testing.T) {
	m := NewManager(nil)
	party := &BeanClass{Name: "Party", Kind: ClassEntity}
	d := m.NewDescriptor(&BeanClass{Name: "Customer", Kind: ClassEntity, Super: party})
	d.AddBeanProperty(&DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	require.NoError(t, m.Register(d))

	err := m.Build()
	assert.True(t, errors.Is(err, ErrInheritance))
	_, ok := m.Get("Customer")
	assert.False(t, ok)
}

func TestManager_CompoundTarget(t *testing.T) {
	m := NewManager(nil)
	line := m.NewDescriptor(&BeanClass{Name: "Line", Kind: ClassEntity})
	line.AddBeanProperty(&DeployBeanProperty{Name: "orderId", DbType: "bigint", ID: true})
	line.AddBeanProperty(&DeployBeanProperty{Name: "lineNo", DbType: "integer", ID: true})
	note := m.NewDescriptor(&BeanClass{Name: "Note", Kind: ClassEntity})
	note.AddBeanProperty(&DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	note.AddBeanProperty(&DeployBeanProperty{Name: "line", Kind: KindAssocOne, TargetType: "Line"})
	require.NoError(t, m.Register(line))
	require.NoError(t, m.Register(note))
	require.NoError(t, m.Build())

	deployed, _ := m.Deploy("Note")
	assert.True(t, deployed.BeanProperty("line").Compound)
	assert.Nil(t, deployed.BeanProperty("line").TableJoin)

	built, _ := m.Get("Line")
	assert.Nil(t, built.IDProperty())
	assert.Equal(t, IdTypeAuto, built.IdType())
}

func TestManager_LookupUnknown(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Lookup("Missing")
	assert.True(t, errors.Is(err, ErrUnknownBean))
}
