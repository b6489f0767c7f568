// Package load provides batched lazy loading of beans. Beans loaded together
// share a LoadBeanBuffer; touching an unloaded property of any of them loads
// the whole batch in one query.
package load

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/cache"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/dialect"
	"github.com/conduit-lang/ebean/internal/orm/query"
)

// DefaultBatchSize is the lazy load batch size when none is configured
const DefaultBatchSize = 10

// Loader executes load bean requests
type Loader struct {
	db        query.Querier
	dialect   dialect.Dialect
	lookup    query.DescriptorLookup
	cache     *cache.BeanCache
	logger    *zap.Logger
	batchSize int
	padIDList bool
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLookup resolves association targets of loaded beans
func WithLookup(lookup query.DescriptorLookup) Option {
	return func(l *Loader) {
		l.lookup = lookup
	}
}

// WithBeanCache puts lazily loaded beans of caching types into the bean cache
func WithBeanCache(bc *cache.BeanCache) Option {
	return func(l *Loader) {
		l.cache = bc
	}
}

// WithBatchSize sets the default batch size of new buffers
func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithPadIDList controls whether id lists are padded to the batch size so that
// every batch binds the same number of parameters. Padding is on by default.
func WithPadIDList(pad bool) Option {
	return func(l *Loader) {
		l.padIDList = pad
	}
}

// NewLoader creates a loader executing against db
func NewLoader(db query.Querier, d dialect.Dialect, opts ...Option) *Loader {
	l := &Loader{
		db:        db,
		dialect:   d,
		logger:    zap.NewNop(),
		batchSize: DefaultBatchSize,
		padIDList: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BatchSize returns the default batch size
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// NewBuffer creates a buffer for beans of desc reached through fullPath
func (l *Loader) NewBuffer(desc *deploy.BeanDescriptor, fullPath string, pc *bean.PersistenceContext) *LoadBeanBuffer {
	return l.newBuffer(desc, fullPath, pc, l.batchSize)
}

func (l *Loader) newBuffer(desc *deploy.BeanDescriptor, fullPath string, pc *bean.PersistenceContext, batchSize int) *LoadBeanBuffer {
	buf := NewLoadBeanBuffer(desc, fullPath, batchSize, pc)
	buf.loader = l
	return buf
}

// Attach registers beans for batched lazy loading, filling buffers of the
// loader's batch size in order
func (l *Loader) Attach(desc *deploy.BeanDescriptor, fullPath string, pc *bean.PersistenceContext, beans []bean.EntityBean) []*LoadBeanBuffer {
	return l.attach(desc, fullPath, pc, l.batchSize, beans)
}

func (l *Loader) attach(desc *deploy.BeanDescriptor, fullPath string, pc *bean.PersistenceContext, batchSize int, beans []bean.EntityBean) []*LoadBeanBuffer {
	if batchSize <= 0 {
		batchSize = l.batchSize
	}
	var buffers []*LoadBeanBuffer
	var buf *LoadBeanBuffer
	for _, b := range beans {
		if buf == nil || buf.Size() >= buf.BatchSize() {
			buf = l.newBuffer(desc, fullPath, pc, batchSize)
			buffers = append(buffers, buf)
		}
		buf.Add(b.EbeanIntercept())
	}
	return buffers
}

// References returns the reference loader for queries loading beans at path.
// Association references those queries create lazy load in batches at
// path.property.
func (l *Loader) References(path string) query.ReferenceLoader {
	return &nestedReferences{loader: l, path: path}
}

type nestedReferences struct {
	loader *Loader
	path   string
}

func (n *nestedReferences) AttachReferences(target *deploy.BeanDescriptor, property string, pc *bean.PersistenceContext, batchSize int, refs []bean.EntityBean) {
	fullPath := property
	if n.path != "" {
		fullPath = n.path + "." + property
	}
	buffers := n.loader.attach(target, fullPath, pc, batchSize, refs)
	n.loader.logger.Debug("registered references for lazy loading",
		zap.String("bean", target.Name()),
		zap.String("path", fullPath),
		zap.Int("references", len(refs)),
		zap.Int("buffers", len(buffers)),
	)
}

// Query creates a query of desc whose association references lazy load
// through the loader
func (l *Loader) Query(desc *deploy.BeanDescriptor, pc *bean.PersistenceContext) *query.Query {
	q := query.New(desc, l.db, l.dialect, query.WithLogger(l.logger), query.WithLookup(l.lookup))
	q.SetPersistenceContext(pc)
	q.SetReferenceLoader(l.References(""))
	return q
}

// LoadBean executes one request: builds the query for the batch ids, runs it
// and reconciles the batch with the loaded beans
func (l *Loader) LoadBean(ctx context.Context, req *LoadBeanRequest) error {
	batchSize := 0
	if l.padIDList {
		batchSize = req.BatchSize()
	}
	ids := req.IDList(batchSize)
	if len(ids) == 0 {
		return nil
	}

	desc := req.Descriptor()
	q := query.New(desc, l.db, l.dialect, query.WithLogger(l.logger), query.WithLookup(l.lookup))
	req.ConfigureQuery(q, ids)
	q.SetReferenceLoader(l.References(req.Buffer().FullPath()))

	list, err := q.FindList(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s [%s]: %w", desc.Name(), req.Description(), err)
	}
	req.PostLoad(ctx, list)
	return nil
}

// LoadSecondary executes independent requests concurrently. Each request
// owns its own buffer so no batch is shared between goroutines.
func (l *Loader) LoadSecondary(ctx context.Context, reqs []*LoadBeanRequest) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, req := range reqs {
		req := req
		g.Go(func() error {
			return l.LoadBean(ctx, req)
		})
	}
	return g.Wait()
}
