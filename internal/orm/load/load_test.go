package load

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/cache"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/dialect"
	"github.com/conduit-lang/ebean/internal/orm/query"
)

func customerDescriptor(caching bool) *deploy.BeanDescriptor {
	d := deploy.NewDeployBeanDescriptor(&deploy.BeanClass{Name: "Customer", Kind: deploy.ClassEntity}, nil)
	d.SetBaseTable(deploy.TableName{Name: "customer"}, "", "")
	d.AddBeanProperty(&deploy.DeployBeanProperty{Name: "id", DbColumn: "id", DbType: "bigint", ID: true})
	d.AddBeanProperty(&deploy.DeployBeanProperty{Name: "name", DbColumn: "name", DbType: "varchar(100)"})
	d.AddBeanProperty(&deploy.DeployBeanProperty{Name: "notes", DbColumn: "notes", DbType: "text", Lazy: true})
	if caching {
		d.SetCache(deploy.Cache{Enabled: true, TTL: time.Minute})
	}
	return d.Build()
}

func references(desc *deploy.BeanDescriptor, pc *bean.PersistenceContext, ids ...int64) []bean.EntityBean {
	var beans []bean.EntityBean
	for _, id := range ids {
		ref := desc.CreateReference(id)
		pc.Put(desc.Name(), id, ref)
		beans = append(beans, ref)
	}
	return beans
}

func newBuffer(desc *deploy.BeanDescriptor, batchSize int, ids ...int64) *LoadBeanBuffer {
	pc := bean.NewPersistenceContext()
	buf := NewLoadBeanBuffer(desc, "order.customer", batchSize, pc)
	for _, b := range references(desc, pc, ids...) {
		buf.Add(b.EbeanIntercept())
	}
	return buf
}

func newMockDB(t *testing.T) (sqlmock.Sqlmock, query.Querier) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, db
}

func TestLoadBeanRequest_IDList(t *testing.T) {
	desc := customerDescriptor(false)

	req := NewLazyLoadBeanRequest(newBuffer(desc, 5, 11, 12), "name", false)
	assert.Equal(t, []interface{}{int64(11), int64(12), int64(11), int64(11), int64(11)}, req.IDList(5))
	assert.Equal(t, []interface{}{int64(11), int64(12)}, req.IDList(0))
	assert.Equal(t, []interface{}{int64(11), int64(12)}, req.IDList(1), "never truncates the batch")

	empty := NewLazyLoadBeanRequest(newBuffer(desc, 5), "name", false)
	assert.Empty(t, empty.IDList(5))
}

func TestLoadBeanRequest_Description(t *testing.T) {
	desc := customerDescriptor(false)
	req := NewLazyLoadBeanRequest(newBuffer(desc, 10, 1, 2, 3), "name", false)

	assert.Equal(t, "path:order.customer batch:3", req.Description())
	assert.True(t, req.IsLazy())
	assert.Equal(t, 10, req.BatchSize())
	assert.Len(t, req.Batch(), 3)
}

func TestLoadBeanRequest_ConfigureQuery(t *testing.T) {
	desc := customerDescriptor(false)

	t.Run("lazy", func(t *testing.T) {
		buf := newBuffer(desc, 4, 1, 2)
		req := NewLazyLoadBeanRequest(buf, "notes", false)
		q := query.New(desc, nil, dialect.Common)
		req.ConfigureQuery(q, req.IDList(4))

		assert.Equal(t, query.ModeLazyLoadBean, q.Mode())
		assert.Same(t, buf.PersistenceContext(), q.PersistenceContext())
		assert.Equal(t, query.LoadModeLazy, q.LoadMode())
		assert.Equal(t, "path:order.customer batch:2", q.LoadDescription())
		assert.Equal(t, 4, q.LazyLoadBatchSize())
		assert.Equal(t, "notes", q.LazyLoadProperty())

		sql, args, err := q.ToSQL()
		require.NoError(t, err)
		assert.Equal(t, "select t0.id, t0.name, t0.notes from customer t0 where t0.id in (?,?,?,?)", sql)
		assert.Equal(t, []interface{}{int64(1), int64(2), int64(1), int64(1)}, args)
	})

	t.Run("secondary single id", func(t *testing.T) {
		buf := newBuffer(desc, 4, 9)
		parent := query.New(desc, nil, dialect.Common)
		req := NewSecondaryLoadBeanRequest(buf, parent)
		q := query.New(desc, nil, dialect.Postgres)
		req.ConfigureQuery(q, req.IDList(0))

		assert.False(t, req.IsLazy())
		assert.Same(t, parent, req.Parent())
		assert.Equal(t, query.LoadModeQuery, q.LoadMode())
		assert.Equal(t, 0, q.LazyLoadBatchSize())

		sql, args, err := q.ToSQL()
		require.NoError(t, err)
		assert.Equal(t, "select t0.id, t0.name from customer t0 where t0.id = $1", sql)
		assert.Equal(t, []interface{}{int64(9)}, args)
	})
}

func TestLoader_LazyLoadMarksMissingBeans(t *testing.T) {
	desc := customerDescriptor(false)
	mock, db := newMockDB(t)
	core, logs := observer.New(zapcore.InfoLevel)

	mock.ExpectQuery("select t0.id, t0.name from customer t0 where t0.id in (?,?,?)").
		WithArgs(int64(1), int64(2), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Rob"))

	loader := NewLoader(db, dialect.Common, WithBatchSize(3), WithLogger(zap.New(core)))
	pc := bean.NewPersistenceContext()
	beans := references(desc, pc, 1, 2)
	buffers := loader.Attach(desc, "order.customer", pc, beans)
	require.Len(t, buffers, 1)

	ctx := context.Background()
	name, err := beans[0].EbeanIntercept().Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Rob", name)
	assert.Equal(t, bean.StateLoaded, beans[0].EbeanIntercept().State())
	assert.Equal(t, 0, buffers[0].Size())

	missing := beans[1].EbeanIntercept()
	assert.True(t, missing.IsLazyLoadFailure())
	assert.Equal(t, int64(2), missing.LazyLoadFailureID())

	// a failed bean reports the miss and does not trigger another query
	v, err := missing.Get(ctx, "name")
	assert.ErrorIs(t, err, bean.ErrLazyLoadFailure)
	assert.Nil(t, v)

	entries := logs.FilterMessage("lazy loading unsuccessful, bean has probably been deleted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Customer", entries[0].ContextMap()["bean"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func customerWithAddress(t *testing.T) (*deploy.Manager, *deploy.BeanDescriptor) {
	t.Helper()
	m := deploy.NewManager(nil)
	address := m.NewDescriptor(&deploy.BeanClass{Name: "Address", Kind: deploy.ClassEntity})
	address.AddBeanProperty(&deploy.DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	address.AddBeanProperty(&deploy.DeployBeanProperty{Name: "city", DbType: "varchar(50)"})

	customer := m.NewDescriptor(&deploy.BeanClass{Name: "Customer", Kind: deploy.ClassEntity})
	customer.AddBeanProperty(&deploy.DeployBeanProperty{Name: "id", DbType: "bigint", ID: true})
	customer.AddBeanProperty(&deploy.DeployBeanProperty{Name: "name", DbType: "varchar(100)"})
	customer.AddBeanProperty(&deploy.DeployBeanProperty{Name: "address", Kind: deploy.KindAssocOne, TargetType: "Address"})

	require.NoError(t, m.Register(address))
	require.NoError(t, m.Register(customer))
	require.NoError(t, m.Build())
	desc, _ := m.Get("Customer")
	return m, desc
}

func TestLoader_NestedLazyLoadInheritsBatchSize(t *testing.T) {
	m, desc := customerWithAddress(t)
	mock, db := newMockDB(t)

	mock.ExpectQuery("select t0.id, t0.name, t0.address_id from customer t0 where t0.id in (?,?,?)").
		WithArgs(int64(1), int64(2), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address_id"}).
			AddRow(int64(1), "Rob", int64(10)).
			AddRow(int64(2), "Jim", int64(11)))
	mock.ExpectQuery("select t0.id, t0.city from address t0 where t0.id in (?,?,?)").
		WithArgs(int64(10), int64(11), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "city"}).
			AddRow(int64(10), "Auckland").
			AddRow(int64(11), "Sydney"))

	loader := NewLoader(db, dialect.Common, WithBatchSize(5), WithLookup(m))
	pc := bean.NewPersistenceContext()
	buf := NewLoadBeanBuffer(desc, "order.customer", 3, pc)
	buf.loader = loader
	beans := references(desc, pc, 1, 2)
	for _, b := range beans {
		buf.Add(b.EbeanIntercept())
	}

	ctx := context.Background()
	v, err := beans[0].EbeanIntercept().Get(ctx, "address")
	require.NoError(t, err)
	address, ok := v.(bean.EntityBean)
	require.True(t, ok)

	ebi := address.EbeanIntercept()
	assert.True(t, ebi.IsReference())
	nested, ok := ebi.BeanLoader().(*LoadBeanBuffer)
	require.True(t, ok, "address reference has no loader")
	assert.Equal(t, "order.customer.address", nested.FullPath())
	assert.Equal(t, 3, nested.BatchSize())
	assert.Equal(t, 2, nested.Size())

	city, err := ebi.Get(ctx, "city")
	require.NoError(t, err)
	assert.Equal(t, "Auckland", city)

	other := beans[1].EbeanIntercept().Value("address").(bean.EntityBean)
	assert.Equal(t, "Sydney", other.EbeanIntercept().Value("city"))
	assert.Equal(t, bean.StateLoaded, other.EbeanIntercept().State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_QueryAttachesReferences(t *testing.T) {
	m, desc := customerWithAddress(t)
	mock, db := newMockDB(t)

	mock.ExpectQuery("select t0.id, t0.name, t0.address_id from customer t0 where t0.id = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address_id"}).AddRow(int64(1), "Rob", int64(10)))

	loader := NewLoader(db, dialect.Common, WithBatchSize(4), WithLookup(m))
	pc := bean.NewPersistenceContext()
	q := loader.Query(desc, pc)
	q.Where().IdEq(int64(1))

	c, err := q.FindOne(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c)

	address := c.EbeanIntercept().Value("address").(bean.EntityBean)
	nested, ok := address.EbeanIntercept().BeanLoader().(*LoadBeanBuffer)
	require.True(t, ok)
	assert.Equal(t, "address", nested.FullPath())
	assert.Equal(t, 4, nested.BatchSize())
	assert.Same(t, address, pc.Get("Address", int64(10)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_WithoutPadding(t *testing.T) {
	desc := customerDescriptor(false)
	mock, db := newMockDB(t)

	mock.ExpectQuery("select t0.id, t0.name, t0.notes from customer t0 where t0.id in (?,?)").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "notes"}).
			AddRow(int64(1), "Rob", "first").
			AddRow(int64(2), "Jim", "second"))

	loader := NewLoader(db, dialect.Common, WithPadIDList(false))
	pc := bean.NewPersistenceContext()
	beans := references(desc, pc, 1, 2)
	loader.Attach(desc, "customer", pc, beans)

	notes, err := beans[1].EbeanIntercept().Get(context.Background(), "notes")
	require.NoError(t, err)
	assert.Equal(t, "second", notes)
	assert.Equal(t, "first", beans[0].EbeanIntercept().Value("notes"))
	assert.False(t, beans[0].EbeanIntercept().IsLazyLoadFailure())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_LoadCache(t *testing.T) {
	desc := customerDescriptor(true)
	mock, db := newMockDB(t)

	mock.ExpectQuery("select t0.id, t0.name from customer t0 where t0.id = ?").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(4), "Ann"))

	mc := cache.NewMemoryCacheWithConfig(cache.Config{DefaultTTL: time.Minute, Prefix: "ebean:"})
	defer mc.Close()
	bc := cache.NewBeanCache(mc, nil)

	loader := NewLoader(db, dialect.Common, WithBeanCache(bc), WithPadIDList(false))
	pc := bean.NewPersistenceContext()
	beans := references(desc, pc, 4)
	loader.Attach(desc, "customer", pc, beans)

	ctx := context.Background()
	_, err := beans[0].EbeanIntercept().Get(ctx, "name")
	require.NoError(t, err)

	cached, ok, err := bc.Get(ctx, desc, int64(4))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ann", cached.EbeanIntercept().Value("name"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_LoadSecondary(t *testing.T) {
	desc := customerDescriptor(false)
	mock, db := newMockDB(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("select t0.id, t0.name from customer t0 where t0.id in (?,?)").
		WithArgs(int64(1), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Rob"))
	mock.ExpectQuery("select t0.id, t0.name from customer t0 where t0.id in (?,?)").
		WithArgs(int64(3), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	loader := NewLoader(db, dialect.Common, WithBatchSize(2))
	pc := bean.NewPersistenceContext()
	first := loader.NewBuffer(desc, "customer", pc)
	second := loader.NewBuffer(desc, "shipTo", pc)
	for i, b := range references(desc, pc, 1, 3) {
		if i == 0 {
			first.Add(b.EbeanIntercept())
		} else {
			second.Add(b.EbeanIntercept())
		}
	}

	parent := query.New(desc, db, dialect.Common)
	reqs := []*LoadBeanRequest{
		NewSecondaryLoadBeanRequest(first, parent),
		NewSecondaryLoadBeanRequest(second, parent),
	}
	require.NoError(t, loader.LoadSecondary(context.Background(), reqs))

	assert.Equal(t, "Rob", pc.Get("Customer", int64(1)).EbeanIntercept().Value("name"))
	// secondary loads do not mark missing beans
	assert.False(t, pc.Get("Customer", int64(3)).EbeanIntercept().IsLazyLoadFailure())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_LoadError(t *testing.T) {
	desc := customerDescriptor(false)
	mock, db := newMockDB(t)
	boom := errors.New("connection refused")
	mock.ExpectQuery("select t0.id, t0.name from customer t0 where t0.id = ?").WillReturnError(boom)

	loader := NewLoader(db, dialect.Common, WithPadIDList(false))
	pc := bean.NewPersistenceContext()
	beans := references(desc, pc, 1)
	loader.Attach(desc, "customer", pc, beans)

	_, err := beans[0].EbeanIntercept().Get(context.Background(), "name")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "path:customer batch:1")
}

func TestLoadBeanBuffer(t *testing.T) {
	desc := customerDescriptor(false)

	t.Run("without loader", func(t *testing.T) {
		buf := newBuffer(desc, 2, 1)
		err := buf.LoadBean(context.Background(), buf.Batch()[0], "name")
		assert.ErrorIs(t, err, bean.ErrNoBeanLoader)
	})

	t.Run("attach splits by batch size", func(t *testing.T) {
		loader := NewLoader(nil, dialect.Common, WithBatchSize(2))
		pc := bean.NewPersistenceContext()
		buffers := loader.Attach(desc, "customer", pc, references(desc, pc, 1, 2, 3, 4, 5))
		require.Len(t, buffers, 3)
		assert.Equal(t, 2, buffers[0].Size())
		assert.Equal(t, 1, buffers[2].Size())
		assert.Same(t, buffers[1], buffers[1].Batch()[0].BeanLoader())
	})

	t.Run("take detaches the batch", func(t *testing.T) {
		buf := newBuffer(desc, 3, 1, 2)
		ebi := buf.Batch()[1]

		detached := buf.take(ebi)
		assert.Equal(t, 2, detached.Size())
		assert.Equal(t, 0, buf.Size())

		single := buf.take(ebi)
		assert.Equal(t, 1, single.Size())
		assert.Equal(t, "order.customer", single.FullPath())
	})

	t.Run("default batch size", func(t *testing.T) {
		buf := NewLoadBeanBuffer(desc, "customer", 0, nil)
		assert.Equal(t, DefaultBatchSize, buf.BatchSize())
	})
}
