// Package expr holds the where clause expressions of a query. Each expression
// renders SQL and bind values into a Request and contributes to the query
// plan hash, which identifies queries that differ only by bind values.
package expr

import (
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/dialect"
)

// Request collects the SQL and bind values of a where clause
type Request struct {
	desc    *deploy.BeanDescriptor
	alias   string
	dialect dialect.Dialect
	sql     strings.Builder
	binds   []interface{}
}

// NewRequest creates a request rendering columns of desc under the table alias
func NewRequest(desc *deploy.BeanDescriptor, alias string, d dialect.Dialect) *Request {
	return &Request{desc: desc, alias: alias, dialect: d}
}

// Append adds SQL text
func (r *Request) Append(s string) *Request {
	r.sql.WriteString(s)
	return r
}

// AddBindValue adds a bind value for the next ? placeholder
func (r *Request) AddBindValue(v interface{}) {
	r.binds = append(r.binds, v)
}

// Column returns the aliased column of a property. Unknown names are
// returned unchanged so raw columns can be used.
func (r *Request) Column(property string) string {
	if r.desc != nil {
		if p := r.desc.Property(property); p != nil && p.DbColumn() != "" {
			if r.alias == "" {
				return p.DbColumn()
			}
			return r.alias + "." + p.DbColumn()
		}
	}
	return property
}

// IDColumn returns the aliased column of the single id property
func (r *Request) IDColumn() string {
	if r.desc == nil || r.desc.IDProperty() == nil {
		return r.Column("id")
	}
	return r.Column(r.desc.IDProperty().Name())
}

// Dialect returns the dialect the request renders for
func (r *Request) Dialect() dialect.Dialect {
	return r.dialect
}

// SQL returns the rendered SQL with ? placeholders
func (r *Request) SQL() string {
	return r.sql.String()
}

// BindValues returns the bind values in placeholder order
func (r *Request) BindValues() []interface{} {
	return r.binds
}

// PlanBuilder accumulates the parts of a query plan hash
type PlanBuilder struct {
	buf       []byte
	bindCount int
}

// NewPlanBuilder creates an empty builder
func NewPlanBuilder() *PlanBuilder {
	return &PlanBuilder{}
}

// Add adds a plan element, e.g. an expression kind or a property name
func (b *PlanBuilder) Add(s string) *PlanBuilder {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	return b
}

// Bind records n bind positions
func (b *PlanBuilder) Bind(n int) *PlanBuilder {
	b.bindCount += n
	b.buf = append(b.buf, '?', byte(n))
	return b
}

// BindCount returns the number of recorded bind positions
func (b *PlanBuilder) BindCount() int {
	return b.bindCount
}

// Hash returns the plan hash
func (b *PlanBuilder) Hash() uint64 {
	return xxh3.Hash(b.buf)
}
