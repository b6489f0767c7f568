package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
)

func customerDescriptor(caching bool) *deploy.BeanDescriptor {
	d := deploy.NewDeployBeanDescriptor(&deploy.BeanClass{Name: "Customer", Kind: deploy.ClassEntity}, nil)
	d.AddBeanProperty(&deploy.DeployBeanProperty{Name: "id", DbColumn: "id", DbType: "bigint", ID: true})
	d.AddBeanProperty(&deploy.DeployBeanProperty{Name: "email", DbColumn: "email", DbType: "varchar(100)"})
	d.AddBeanProperty(&deploy.DeployBeanProperty{Name: "rating", DbColumn: "rating", DbType: "decimal(5,2)"})
	d.AddBeanProperty(&deploy.DeployBeanProperty{Name: "group", Kind: deploy.KindAssocOne, TargetType: "Group"})
	if caching {
		d.SetCache(deploy.Cache{Enabled: true, NaturalKey: "email", TTL: time.Minute})
	}
	return d.Build()
}

func loadedCustomer(desc *deploy.BeanDescriptor) bean.EntityBean {
	b := desc.CreateBean()
	ebi := b.EbeanIntercept()
	ebi.SetLoadedProperty("id", int64(7))
	ebi.SetLoadedProperty("email", "a@example.com")
	ebi.SetLoadedProperty("rating", 4.5)
	ebi.SetLoaded()
	return b
}

func TestBeanKey(t *testing.T) {
	assert.Equal(t, "bean:Customer:7", BeanKey("Customer", int32(7)))
	assert.Equal(t, "bean:Customer:nk:a@example.com", NaturalKey("Customer", "a@example.com"))
}

func TestBeanCache_PutGet(t *testing.T) {
	desc := customerDescriptor(true)
	bc := NewBeanCache(newTestMemoryCache(t), nil)
	ctx := context.Background()

	require.NoError(t, bc.Put(ctx, desc, loadedCustomer(desc)))

	got, ok, err := bc.Get(ctx, desc, int64(7))
	require.NoError(t, err)
	require.True(t, ok)
	ebi := got.EbeanIntercept()
	assert.Equal(t, bean.StateLoaded, ebi.State())
	assert.Equal(t, int64(7), ebi.Value("id"))
	assert.Equal(t, "a@example.com", ebi.Value("email"))
	assert.Equal(t, 4.5, ebi.Value("rating"))
	assert.False(t, ebi.IsLoadedProperty("group"))
	assert.False(t, ebi.IsDirty())

	id, ok, err := bc.IDByNaturalKey(ctx, desc, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestBeanCache_RedisBackend(t *testing.T) {
	desc := customerDescriptor(true)
	rc, mr := setupTestRedis(t)
	bc := NewBeanCache(rc, nil)
	ctx := context.Background()

	require.NoError(t, bc.Put(ctx, desc, loadedCustomer(desc)))
	assert.True(t, mr.Exists("ebean:bean:Customer:7"))
	assert.Equal(t, time.Minute, mr.TTL("ebean:bean:Customer:7"))

	require.NoError(t, bc.Remove(ctx, desc, int64(7)))
	_, ok, err := bc.Get(ctx, desc, int64(7))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBeanCache_SkipsWhenNotCaching(t *testing.T) {
	desc := customerDescriptor(false)
	mc := newTestMemoryCache(t)
	bc := NewBeanCache(mc, nil)

	require.NoError(t, bc.Put(context.Background(), desc, loadedCustomer(desc)))
	assert.Equal(t, 0, mc.Len())

	_, ok, err := bc.Get(context.Background(), desc, int64(7))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBeanCache_PutAllSkipsBeansWithoutID(t *testing.T) {
	desc := customerDescriptor(true)
	mc := newTestMemoryCache(t)
	bc := NewBeanCache(mc, nil)

	require.NoError(t, bc.PutAll(context.Background(), desc, []bean.EntityBean{loadedCustomer(desc), desc.CreateBean()}))
	ok, err := mc.Exists(context.Background(), BeanKey("Customer", 7))
	require.NoError(t, err)
	assert.True(t, ok)
}
