package deploy

import (
	"context"

	"github.com/conduit-lang/ebean/internal/orm/bean"
)

// PersistController intercepts inserts, updates and deletes of a bean type.
// Returning false from a Pre method vetoes the operation.
type PersistController interface {
	PreInsert(ctx context.Context, b bean.EntityBean) bool
	PreUpdate(ctx context.Context, b bean.EntityBean) bool
	PreDelete(ctx context.Context, b bean.EntityBean) bool
	PostInsert(ctx context.Context, b bean.EntityBean)
	PostUpdate(ctx context.Context, b bean.EntityBean)
	PostDelete(ctx context.Context, b bean.EntityBean)
}

// PersistListener is notified after a persist has completed
type PersistListener interface {
	Inserted(b bean.EntityBean)
	Updated(b bean.EntityBean, changed []string)
	Deleted(b bean.EntityBean)
}

// AdaptableQuery is the part of a query a QueryAdapter may modify
type AdaptableQuery interface {
	BeanType() string
	AddWhere(sql string, args ...interface{})
}

// QueryAdapter modifies queries of a bean type before they execute
type QueryAdapter interface {
	PreQuery(ctx context.Context, q AdaptableQuery)
}

// PostLoad is called on each bean after it has been loaded
type PostLoad interface {
	PostLoad(b bean.EntityBean)
}

// BeanFinder can satisfy find by id requests without a query
type BeanFinder interface {
	Find(ctx context.Context, id interface{}) (bean.EntityBean, bool, error)
}

// ChangeLogFilter selects which persist events are written to the change log
type ChangeLogFilter interface {
	IncludeInsert(b bean.EntityBean) bool
	IncludeUpdate(b bean.EntityBean, changed []string) bool
	IncludeDelete(b bean.EntityBean) bool
}

// ChainPersistController calls each controller in registration order
type ChainPersistController []PersistController

func (c ChainPersistController) PreInsert(ctx context.Context, b bean.EntityBean) bool {
	for _, pc := range c {
		if !pc.PreInsert(ctx, b) {
			return false
		}
	}
	return true
}

func (c ChainPersistController) PreUpdate(ctx context.Context, b bean.EntityBean) bool {
	for _, pc := range c {
		if !pc.PreUpdate(ctx, b) {
			return false
		}
	}
	return true
}

func (c ChainPersistController) PreDelete(ctx context.Context, b bean.EntityBean) bool {
	for _, pc := range c {
		if !pc.PreDelete(ctx, b) {
			return false
		}
	}
	return true
}

func (c ChainPersistController) PostInsert(ctx context.Context, b bean.EntityBean) {
	for _, pc := range c {
		pc.PostInsert(ctx, b)
	}
}

func (c ChainPersistController) PostUpdate(ctx context.Context, b bean.EntityBean) {
	for _, pc := range c {
		pc.PostUpdate(ctx, b)
	}
}

func (c ChainPersistController) PostDelete(ctx context.Context, b bean.EntityBean) {
	for _, pc := range c {
		pc.PostDelete(ctx, b)
	}
}

// ChainPersistListener notifies each listener in registration order
type ChainPersistListener []PersistListener

func (c ChainPersistListener) Inserted(b bean.EntityBean) {
	for _, l := range c {
		l.Inserted(b)
	}
}

func (c ChainPersistListener) Updated(b bean.EntityBean, changed []string) {
	for _, l := range c {
		l.Updated(b, changed)
	}
}

func (c ChainPersistListener) Deleted(b bean.EntityBean) {
	for _, l := range c {
		l.Deleted(b)
	}
}

// ChainQueryAdapter applies each adapter in registration order
type ChainQueryAdapter []QueryAdapter

func (c ChainQueryAdapter) PreQuery(ctx context.Context, q AdaptableQuery) {
	for _, a := range c {
		a.PreQuery(ctx, q)
	}
}

// ChainPostLoad calls each post load hook in registration order
type ChainPostLoad []PostLoad

func (c ChainPostLoad) PostLoad(b bean.EntityBean) {
	for _, p := range c {
		p.PostLoad(b)
	}
}

// PostLoadFunc adapts a function to PostLoad
type PostLoadFunc func(b bean.EntityBean)

// PostLoad calls f(b)
func (f PostLoadFunc) PostLoad(b bean.EntityBean) {
	f(b)
}

// QueryAdapterFunc adapts a function to QueryAdapter
type QueryAdapterFunc func(ctx context.Context, q AdaptableQuery)

// PreQuery calls f(ctx, q)
func (f QueryAdapterFunc) PreQuery(ctx context.Context, q AdaptableQuery) {
	f(ctx, q)
}
