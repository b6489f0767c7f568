package bean

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLoader struct {
	calls []string
	load  func(ebi *Intercept)
}

func (l *recordingLoader) LoadBean(_ context.Context, ebi *Intercept, property string) error {
	l.calls = append(l.calls, property)
	if l.load != nil {
		l.load(ebi)
	}
	return nil
}

func TestIntercept_LoadedValuesAreNotDirty(t *testing.T) {
	b := New("Customer")
	ebi := b.EbeanIntercept()
	ebi.SetLoadedProperty("id", int64(1))
	ebi.SetLoadedProperty("name", "Rob")
	ebi.SetLoaded()

	assert.Equal(t, StateLoaded, ebi.State())
	assert.False(t, ebi.IsDirty())
	assert.True(t, ebi.IsLoadedProperty("name"))
	assert.ElementsMatch(t, []string{"id", "name"}, ebi.LoadedProperties())

	b.Set("name", "Robin")
	assert.Equal(t, []string{"name"}, ebi.DirtyProperties())
	assert.Equal(t, "Rob", ebi.OriginalValue("name"))
	assert.Equal(t, "Robin", b.Value("name"))
}

func TestIntercept_GetTriggersLazyLoad(t *testing.T) {
	b := New("Customer")
	ebi := b.EbeanIntercept()
	ebi.SetLoadedProperty("id", int64(1))
	ebi.SetReference()

	loader := &recordingLoader{load: func(ebi *Intercept) {
		ebi.SetLoadedProperty("name", "Rob")
	}}
	ebi.SetBeanLoader(loader)

	v, err := ebi.Get(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, "Rob", v)
	assert.Equal(t, "name", ebi.LazyLoadProperty())

	// loaded now, no second load
	_, err = ebi.Get(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, loader.calls)
}

func TestIntercept_NoLazyLoadForNewBeansOrFailures(t *testing.T) {
	loader := &recordingLoader{}

	fresh := New("Customer").EbeanIntercept()
	fresh.SetBeanLoader(loader)
	v, err := fresh.Get(context.Background(), "name")
	require.NoError(t, err)
	assert.Nil(t, v)

	failed := New("Customer").EbeanIntercept()
	failed.SetReference()
	failed.SetBeanLoader(loader)
	failed.SetLoadedProperty("id", int64(42))
	failed.SetLazyLoadFailure(int64(42))
	_, err = failed.Get(context.Background(), "name")
	require.Error(t, err)

	assert.Empty(t, loader.calls)
	assert.True(t, failed.IsLazyLoadFailure())
	assert.Equal(t, int64(42), failed.LazyLoadFailureID())
}

func TestIntercept_GetOnLazyLoadFailure(t *testing.T) {
	ctx := context.Background()
	ebi := New("Customer").EbeanIntercept()
	ebi.SetLoadedProperty("id", int64(42))
	ebi.SetReference()
	ebi.SetBeanLoader(&recordingLoader{load: func(ebi *Intercept) {
		ebi.SetLazyLoadFailure(int64(42))
	}})

	_, err := ebi.Get(ctx, "name")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLazyLoadFailure)
	assert.Contains(t, err.Error(), "Customer id 42 reading name")

	// the id stays readable
	id, err := ebi.Get(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestIntercept_LoadBeanWithoutLoader(t *testing.T) {
	err := New("Customer").EbeanIntercept().LoadBean(context.Background(), "name")
	assert.True(t, errors.Is(err, ErrNoBeanLoader))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "new", StateNew.String())
	assert.Equal(t, "reference", StateReference.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "deleted", StateDeleted.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestPersistenceContext_PutIfAbsent(t *testing.T) {
	pc := NewPersistenceContext()
	first := New("Customer")
	second := New("Customer")

	assert.Nil(t, pc.PutIfAbsent("Customer", int64(1), first))
	assert.Same(t, first, pc.PutIfAbsent("Customer", 1, second))
	assert.Same(t, first, pc.Get("Customer", int64(1)))
	assert.Nil(t, pc.Get("Customer", int64(2)))
}

func TestPersistenceContext_NormalizesIDs(t *testing.T) {
	pc := NewPersistenceContext()
	b := New("Order")
	pc.Put("Order", int32(7), b)

	assert.Same(t, b, pc.Get("Order", int64(7)))
	assert.Same(t, pc, b.EbeanIntercept().PersistenceContext())

	id := uuid.New()
	u := New("Doc")
	pc.Put("Doc", id, u)
	assert.Same(t, u, pc.Get("Doc", id.String()))

	pc.Remove("Order", 7)
	assert.Nil(t, pc.Get("Order", int64(7)))
	assert.Equal(t, 1, pc.Size("Doc"))
	pc.Clear("Doc")
	assert.Equal(t, 0, pc.Size("Doc"))
}

func TestPersistenceContext_ConcurrentPut(t *testing.T) {
	pc := NewPersistenceContext()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pc.PutIfAbsent("Customer", int64(i%10), New("Customer"))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, pc.Size("Customer"))
}
