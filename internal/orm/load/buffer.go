package load

import (
	"context"
	"sync"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/query"
)

// LoadBeanBuffer collects beans of one type and path awaiting a lazy load.
// It is the BeanLoader of every bean added to it.
type LoadBeanBuffer struct {
	desc      *deploy.BeanDescriptor
	fullPath  string
	batchSize int
	pc        *bean.PersistenceContext
	loader    *Loader

	mu    sync.Mutex
	batch []*bean.Intercept
}

// NewLoadBeanBuffer creates an empty buffer
func NewLoadBeanBuffer(desc *deploy.BeanDescriptor, fullPath string, batchSize int, pc *bean.PersistenceContext) *LoadBeanBuffer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &LoadBeanBuffer{
		desc:      desc,
		fullPath:  fullPath,
		batchSize: batchSize,
		pc:        pc,
	}
}

func (b *LoadBeanBuffer) Descriptor() *deploy.BeanDescriptor           { return b.desc }
func (b *LoadBeanBuffer) FullPath() string                             { return b.fullPath }
func (b *LoadBeanBuffer) BatchSize() int                               { return b.batchSize }
func (b *LoadBeanBuffer) PersistenceContext() *bean.PersistenceContext { return b.pc }

// Add appends a bean to the batch and makes the buffer its loader
func (b *LoadBeanBuffer) Add(ebi *bean.Intercept) {
	b.mu.Lock()
	b.batch = append(b.batch, ebi)
	b.mu.Unlock()

	ebi.SetBeanLoader(b)
	if b.pc != nil && ebi.PersistenceContext() == nil {
		ebi.SetPersistenceContext(b.pc)
	}
}

// Size returns the number of beans in the batch
func (b *LoadBeanBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batch)
}

// Batch returns a copy of the batch
func (b *LoadBeanBuffer) Batch() []*bean.Intercept {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*bean.Intercept(nil), b.batch...)
}

// ConfigureQuery applies the buffer settings to a query
func (b *LoadBeanBuffer) ConfigureQuery(q query.SpiQuery, lazyLoadProperty string) {
	if lazyLoadProperty != "" {
		q.SetLazyLoadProperty(lazyLoadProperty)
	}
	q.SetBeanLoader(b)
}

// take removes the batch containing ebi from the buffer and returns it as a
// detached buffer. A bean no longer in the batch is loaded on its own.
func (b *LoadBeanBuffer) take(ebi *bean.Intercept) *LoadBeanBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()

	detached := &LoadBeanBuffer{
		desc:      b.desc,
		fullPath:  b.fullPath,
		batchSize: b.batchSize,
		pc:        b.pc,
		loader:    b.loader,
	}
	for _, e := range b.batch {
		if e == ebi {
			detached.batch = b.batch
			b.batch = nil
			return detached
		}
	}
	detached.batch = []*bean.Intercept{ebi}
	return detached
}

// LoadBean lazy loads the batch holding ebi
func (b *LoadBeanBuffer) LoadBean(ctx context.Context, ebi *bean.Intercept, property string) error {
	if b.loader == nil {
		return bean.ErrNoBeanLoader
	}
	loadCache := b.desc.IsBeanCaching() && b.loader.cache != nil
	req := NewLazyLoadBeanRequest(b.take(ebi), property, loadCache)
	return b.loader.LoadBean(ctx, req)
}
