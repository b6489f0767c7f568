package load

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/query"
)

// LoadBeanRequest loads one batch of beans of a buffer, either lazily when an
// unloaded property is touched or as a secondary query of a parent query
type LoadBeanRequest struct {
	buf              *LoadBeanBuffer
	batch            []*bean.Intercept
	parent           query.SpiQuery
	lazy             bool
	lazyLoadProperty string
	loadCache        bool
}

// NewLazyLoadBeanRequest creates a request triggered by access to lazyLoadProperty
func NewLazyLoadBeanRequest(buf *LoadBeanBuffer, lazyLoadProperty string, loadCache bool) *LoadBeanRequest {
	return &LoadBeanRequest{
		buf:              buf,
		batch:            buf.Batch(),
		lazy:             true,
		lazyLoadProperty: lazyLoadProperty,
		loadCache:        loadCache,
	}
}

// NewSecondaryLoadBeanRequest creates a request executed as a secondary query of parent
func NewSecondaryLoadBeanRequest(buf *LoadBeanBuffer, parent query.SpiQuery) *LoadBeanRequest {
	return &LoadBeanRequest{
		buf:    buf,
		batch:  buf.Batch(),
		parent: parent,
	}
}

func (r *LoadBeanRequest) IsLazy() bool                       { return r.lazy }
func (r *LoadBeanRequest) IsLoadCache() bool                  { return r.loadCache }
func (r *LoadBeanRequest) LazyLoadProperty() string           { return r.lazyLoadProperty }
func (r *LoadBeanRequest) Parent() query.SpiQuery             { return r.parent }
func (r *LoadBeanRequest) Buffer() *LoadBeanBuffer            { return r.buf }
func (r *LoadBeanRequest) Batch() []*bean.Intercept           { return r.batch }
func (r *LoadBeanRequest) BatchSize() int                     { return r.buf.BatchSize() }
func (r *LoadBeanRequest) Descriptor() *deploy.BeanDescriptor { return r.buf.Descriptor() }

// Description identifies the load in logs, e.g. "path:order.customer batch:3"
func (r *LoadBeanRequest) Description() string {
	return fmt.Sprintf("path:%s batch:%d", r.buf.FullPath(), len(r.batch))
}

// IDList returns the ids of the batch. When batchSize exceeds the batch the
// list is padded with the first id so the query binds a constant number of
// parameters.
func (r *LoadBeanRequest) IDList(batchSize int) []interface{} {
	desc := r.Descriptor()
	size := batchSize
	if size < len(r.batch) {
		size = len(r.batch)
	}
	ids := make([]interface{}, 0, size)
	for _, ebi := range r.batch {
		ids = append(ids, desc.ID(ebi.Owner()))
	}
	if len(ids) == 0 {
		return ids
	}
	first := ids[0]
	for len(ids) < batchSize {
		ids = append(ids, first)
	}
	return ids
}

// ConfigureQuery prepares q to load the given ids
func (r *LoadBeanRequest) ConfigureQuery(q query.SpiQuery, ids []interface{}) {
	q.SetMode(query.ModeLazyLoadBean)
	q.SetPersistenceContext(r.buf.PersistenceContext())

	mode := query.LoadModeQuery
	if r.lazy {
		mode = query.LoadModeLazy
	}
	q.SetLoadDescription(mode, r.Description())

	if r.lazy {
		// nested lazy loads use the same batch size
		q.SetLazyLoadBatchSize(r.BatchSize())
	}

	r.buf.ConfigureQuery(q, r.lazyLoadProperty)

	if len(ids) == 1 {
		q.Where().IdEq(ids[0])
	} else {
		q.Where().IdIn(ids...)
	}
}

// PostLoad puts loaded beans in the bean cache when requested and, for lazy
// loads, marks each batch bean that was not found. A missing row usually means
// a concurrent delete, so the failure is deferred until the bean is used.
func (r *LoadBeanRequest) PostLoad(ctx context.Context, list []bean.EntityBean) {
	desc := r.Descriptor()
	logger := zap.NewNop()
	if r.buf.loader != nil {
		logger = r.buf.loader.logger
	}

	loaded := make(map[interface{}]bool, len(list))
	for _, b := range list {
		loaded[bean.NormalizeID(desc.ID(b))] = true
		if r.loadCache && r.buf.loader != nil && r.buf.loader.cache != nil {
			if err := r.buf.loader.cache.Put(ctx, desc, b); err != nil {
				logger.Warn("failed to cache bean",
					zap.String("bean", desc.Name()),
					zap.Any("id", desc.ID(b)),
					zap.Error(err),
				)
			}
		}
	}

	if r.lazyLoadProperty == "" {
		return
	}
	for _, ebi := range r.batch {
		id := desc.ID(ebi.Owner())
		if loaded[bean.NormalizeID(id)] {
			continue
		}
		logger.Info("lazy loading unsuccessful, bean has probably been deleted",
			zap.String("bean", desc.Name()),
			zap.Any("id", id),
		)
		ebi.SetLazyLoadFailure(id)
	}
}
