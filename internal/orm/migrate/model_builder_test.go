package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

func buildDescriptors(t *testing.T) []*deploy.BeanDescriptor {
	t.Helper()
	m := deploy.NewManager(nil)

	customer := m.NewDescriptor(&deploy.BeanClass{Name: "Customer", Kind: deploy.ClassEntity})
	customer.AddBeanProperty(&deploy.DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	customer.AddBeanProperty(&deploy.DeployBeanProperty{Name: "name", DbType: "varchar(100)", NotNull: true, DbComment: "display name"})
	customer.AddBeanProperty(&deploy.DeployBeanProperty{Name: "email"})
	customer.AddBeanProperty(&deploy.DeployBeanProperty{Name: "cached", Transient: true})
	customer.AddBeanProperty(&deploy.DeployBeanProperty{Name: "orders", Kind: deploy.KindAssocMany, TargetType: "Order"})
	customer.SetHistorySupport()
	customer.SetDraftable()
	customer.SetBaseTable(deploy.TableName{Name: "o_customer"}, "_with_history", "_with_history")
	customer.AddIndex(deploy.IndexDefinition{Name: "uq_customer_email", Columns: []string{"email"}, Unique: true})

	order := m.NewDescriptor(&deploy.BeanClass{Name: "Order", Kind: deploy.ClassEntity})
	order.AddBeanProperty(&deploy.DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	order.AddBeanProperty(&deploy.DeployBeanProperty{Name: "customer", Kind: deploy.KindAssocOne, TargetType: "Customer", NotNull: true})
	order.SetIdType(deploy.IdTypeSequence)
	order.SetBaseTable(deploy.TableName{Name: "o_order"}, "", "")

	address := m.NewDescriptor(&deploy.BeanClass{Name: "Address", Kind: deploy.ClassEntity})
	address.SetEntityType(deploy.EntityEmbedded)
	address.AddBeanProperty(&deploy.DeployBeanProperty{Name: "city", DbType: "varchar(50)"})

	totals := m.NewDescriptor(&deploy.BeanClass{Name: "Totals", Kind: deploy.ClassEntity})
	totals.SetView("v_totals", []string{"o_order"})
	totals.AddBeanProperty(&deploy.DeployBeanProperty{Name: "customerId", DbType: "bigint", ID: true})

	for _, d := range []*deploy.DeployBeanDescriptor{customer, order, address, totals} {
		require.NoError(t, m.Register(d))
	}
	require.NoError(t, m.Build())
	return m.Descriptors()
}

func TestModelBuilder_Build(t *testing.T) {
	container := NewModelBuilder(nil).Build(buildDescriptors(t))

	var names []string
	for _, table := range container.Tables() {
		names = append(names, table.Name)
	}
	assert.Equal(t, []string{"o_customer", "o_customer_draft", "o_order"}, names)

	customer := container.Table("o_customer")
	require.NotNil(t, customer)
	assert.True(t, customer.WithHistory)
	assert.Equal(t, model.IdentityColumn, customer.IdentityType)
	require.Len(t, customer.Columns(), 3, "transient and many properties have no column")

	id := customer.Column("id")
	assert.True(t, id.Primary)
	assert.True(t, id.Identity)
	assert.True(t, id.NotNull)
	assert.Equal(t, "display name", customer.Column("name").Comment)
	assert.Equal(t, DefaultColumnType, customer.Column("email").Type)
	assert.True(t, customer.Column("email").Unique)

	draft := container.Table("o_customer_draft")
	require.NotNil(t, draft)
	assert.True(t, draft.Draft)
	assert.False(t, draft.WithHistory)

	order := container.Table("o_order")
	require.NotNil(t, order)
	assert.Equal(t, model.IdentitySequence, order.IdentityType)
	assert.Equal(t, "o_order_seq", order.SequenceName)
	assert.False(t, order.Column("id").Identity)

	fk := order.Column("customer_id")
	require.NotNil(t, fk)
	assert.Equal(t, "o_customer.id", fk.References)
	assert.Equal(t, "bigint", fk.Type)
	assert.True(t, fk.NotNull)
}

func TestModelBuilder_FeedsGenerator(t *testing.T) {
	target := NewModelBuilder(nil).Build(buildDescriptors(t))
	changes := NewDiffer(nil, target).ComputeDiff()
	assert.Len(t, changes, 3)
}
