package deploy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDeployment = `
superclasses:
  - name: BaseModel
    full_name: app.model.BaseModel
    properties:
      - name: id
        type: bigint
        id: true
      - name: version
        type: bigint
        version: true

entities:
  - name: Customer
    full_name: app.model.Customer
    extends: BaseModel
    table: sales.o_customer
    draftable: true
    history: true
    comment: Customers of the shop
    cache:
      natural_key: email
      ttl: 10m
    doc_store:
      queue_id: customers
      doc: "name,email,orders(id,status)"
      update: ignore
    indexes:
      - name: ix_customer_email
        columns: [email]
        unique: true
    named_queries:
      - name: byEmail
        query: "where email = :email"
    properties:
      - name: name
        type: varchar(100)
        not_null: true
      - name: email
        column: email_address
        type: varchar(200)
      - name: notes
        type: text
        lazy: true
      - name: orders
        kind: one_to_many
        target: Order
        mapped_by: customer

  - name: Order
    table: o_order
    id_generator: auto.uuid
    concurrency: all
    raw_sql:
      - name: totals
        sql: "select customer_id, sum(total) from o_order group by customer_id"
        columns:
          - column: customer_id
            property: customer.id
    properties:
      - name: id
        type: uuid
        id: true
      - name: customer
        kind: many_to_one
        target: Customer
        not_null: true

  - name: CustomerTotals
    type: view
    view:
      name: v_customer_totals
      depends_on: [o_customer, o_order]
    properties:
      - name: customerId
        type: bigint
        id: true
`

func TestParseDeploymentReader(t *testing.T) {
	descs, err := ParseDeploymentReader(strings.NewReader(sampleDeployment), nil)
	require.NoError(t, err)
	require.Len(t, descs, 3)

	customer := descs[0]
	assert.Equal(t, "Customer", customer.Name())
	assert.Equal(t, "app.model.Customer", customer.FullName())
	require.NotNil(t, customer.BeanType().Super)
	assert.Equal(t, ClassMappedSuperclass, customer.BeanType().Super.Kind)
	assert.NoError(t, customer.CheckInheritanceMapping())

	var names []string
	for _, p := range customer.PropertiesAll() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"id", "version", "name", "email", "notes", "orders"}, names)
	assert.True(t, customer.BeanProperty("id").NotNull)
	assert.Equal(t, "email_address", customer.BeanProperty("email").DbColumn)
	assert.Equal(t, KindAssocMany, customer.BeanProperty("orders").Kind)

	assert.Equal(t, "sales.o_customer", customer.BaseTable())
	assert.Equal(t, "sales.o_customer_draft", customer.DraftTable())
	assert.Equal(t, "sales.o_customer_with_history", customer.BaseTableAsOf())
	assert.True(t, customer.IsHistorySupport())
	assert.Equal(t, "Customers of the shop", customer.DbComment())

	assert.True(t, customer.CacheOptions().UseCache)
	assert.Equal(t, "email", customer.CacheOptions().NaturalKey)
	assert.Equal(t, 10*time.Minute, customer.CacheOptions().TTL)
	assert.True(t, customer.BeanProperty("email").NaturalKey)

	assert.Equal(t, "customers", customer.DocStoreQueueID())
	assert.Equal(t, DocStoreIgnore, customer.DocStoreUpdateEvent())
	assert.Equal(t, DocStoreUpdate, customer.DocStoreInsertEvent())
	assert.Equal(t, []string{"id", "status"}, customer.DocStorePathProperties().Properties("orders"))

	require.Len(t, customer.IndexDefinitions(), 1)
	assert.True(t, customer.IndexDefinitions()[0].Unique)
	assert.Equal(t, "where email = :email", customer.NamedQuery()["byEmail"])

	order := descs[1]
	assert.Equal(t, IdTypeExternal, order.IdType())
	assert.Equal(t, AutoUUID, order.IdGeneratorName())
	assert.Equal(t, ConcurrencyAll, order.ConcurrencyMode())
	assert.Equal(t, KindAssocOne, order.BeanProperty("customer").Kind)
	assert.Equal(t, "customer.id", order.NamedRawSQL()["totals"].ColumnMapping["customer_id"])

	view := descs[2]
	assert.Equal(t, EntityView, view.EntityType())
	assert.Equal(t, "v_customer_totals", view.BaseTable())
	assert.Equal(t, []string{"o_customer", "o_order"}, view.DependentTables())
}

func TestParseDeployment_BuildsWithManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ebean.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDeployment), 0o644))

	m := NewManager(nil)
	require.NoError(t, LoadDeployment(m, path))
	require.NoError(t, m.Build())

	order, err := m.Lookup("Order")
	require.NoError(t, err)
	assert.Equal(t, "customer_id", order.Property("customer").DbColumn())

	customer, _ := m.Get("Customer")
	assert.Equal(t, ConcurrencyVersion, customer.ConcurrencyMode())
	clause, ok := customer.DefaultSelectClause()
	assert.True(t, ok)
	assert.Equal(t, "id,version,name,email", clause)
}

func TestParseDeployment_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown superclass",
			yaml: "entities:\n  - name: A\n    extends: Missing\n",
		},
		{
			name: "duplicate class",
			yaml: "entities:\n  - name: A\n  - name: A\n",
		},
		{
			name: "assoc without target",
			yaml: "entities:\n  - name: A\n    properties:\n      - name: b\n        kind: assoc_one\n",
		},
		{
			name: "unknown id type",
			yaml: "entities:\n  - name: A\n    id_type: magic\n",
		},
		{
			name: "unbalanced doc paths",
			yaml: "entities:\n  - name: A\n    doc_store:\n      doc: \"a(b\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeploymentReader(strings.NewReader(tt.yaml), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDeployment), "got %v", err)
		})
	}
}

func TestParseDeployment_MissingFile(t *testing.T) {
	_, err := ParseDeployment(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
