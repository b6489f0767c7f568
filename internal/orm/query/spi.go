// Package query builds, renders and executes bean queries. The SpiQuery
// interface is the part lazy loading configures.
package query

import (
	"context"
	"database/sql"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/expr"
)

// Mode is the purpose a query is executed for
type Mode int

const (
	ModeNormal Mode = iota
	ModeLazyLoadBean
	ModeLazyLoadMany
	ModeRefresh
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeLazyLoadBean:
		return "LAZYLOAD_BEAN"
	case ModeLazyLoadMany:
		return "LAZYLOAD_MANY"
	case ModeRefresh:
		return "REFRESH"
	default:
		return "UNKNOWN"
	}
}

// Load modes recorded with the load description
const (
	LoadModeLazy  = "+lazy"
	LoadModeQuery = "+query"
)

// Querier executes a query. *sql.DB, *sql.Tx and *sql.Conn satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// DescriptorLookup resolves association targets. *deploy.Manager satisfies it.
type DescriptorLookup interface {
	Get(name string) (*deploy.BeanDescriptor, bool)
}

// ReferenceLoader registers the association references a query creates for
// batched lazy loading. property is the association the references were read from.
type ReferenceLoader interface {
	AttachReferences(target *deploy.BeanDescriptor, property string, pc *bean.PersistenceContext, batchSize int, refs []bean.EntityBean)
}

// SpiQuery is the query API used internally by lazy and secondary loading
type SpiQuery interface {
	deploy.AdaptableQuery

	Descriptor() *deploy.BeanDescriptor

	SetMode(m Mode)
	Mode() Mode

	SetPersistenceContext(pc *bean.PersistenceContext)
	PersistenceContext() *bean.PersistenceContext

	// SetLoadDescription records why the query runs, e.g. "+lazy" and "path:customer batch:10"
	SetLoadDescription(mode, description string)
	LoadMode() string
	LoadDescription() string

	// SetLazyLoadBatchSize is the batch size cascaded to beans this query loads
	SetLazyLoadBatchSize(n int)
	LazyLoadBatchSize() int

	SetLazyLoadProperty(property string)
	LazyLoadProperty() string

	// SetBeanLoader attaches a loader to every bean the query loads
	SetBeanLoader(loader bean.BeanLoader)

	// SetReferenceLoader receives the association references the query creates
	SetReferenceLoader(rl ReferenceLoader)

	Select(properties string) SpiQuery
	Where() *expr.List

	FindList(ctx context.Context) ([]bean.EntityBean, error)
}
