package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/dialect"
	"github.com/conduit-lang/ebean/internal/orm/expr"
)

// ErrNoSelectProperties is returned when a query selects no persistable property
var ErrNoSelectProperties = errors.New("query selects no properties")

// TableAlias is the alias of the base table
const TableAlias = "t0"

// Query is a query of one bean type
type Query struct {
	desc    *deploy.BeanDescriptor
	db      Querier
	dialect dialect.Dialect
	lookup  DescriptorLookup
	logger  *zap.Logger

	mode              Mode
	pc                *bean.PersistenceContext
	loadMode          string
	loadDescription   string
	lazyLoadBatchSize int
	lazyLoadProperty  string
	beanLoader        bean.BeanLoader
	refLoader         ReferenceLoader
	refs              []*referenceGroup

	selectProps []string
	where       *expr.List
	orderBy     []string
}

// Option configures a Query
type Option func(*Query)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(q *Query) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithLookup resolves association targets so assoc one columns load as reference beans
func WithLookup(lookup DescriptorLookup) Option {
	return func(q *Query) {
		q.lookup = lookup
	}
}

// New creates a query of the bean type described by desc
func New(desc *deploy.BeanDescriptor, db Querier, d dialect.Dialect, opts ...Option) *Query {
	q := &Query{
		desc:    desc,
		db:      db,
		dialect: d,
		logger:  zap.NewNop(),
		where:   expr.NewList(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Query) BeanType() string                   { return q.desc.Name() }
func (q *Query) Descriptor() *deploy.BeanDescriptor { return q.desc }
func (q *Query) SetMode(m Mode)                     { q.mode = m }
func (q *Query) Mode() Mode                         { return q.mode }

func (q *Query) SetPersistenceContext(pc *bean.PersistenceContext) { q.pc = pc }
func (q *Query) PersistenceContext() *bean.PersistenceContext      { return q.pc }

// SetLoadDescription records the load mode and description
func (q *Query) SetLoadDescription(mode, description string) {
	q.loadMode = mode
	q.loadDescription = description
}

func (q *Query) LoadMode() string        { return q.loadMode }
func (q *Query) LoadDescription() string { return q.loadDescription }

func (q *Query) SetLazyLoadBatchSize(n int) { q.lazyLoadBatchSize = n }
func (q *Query) LazyLoadBatchSize() int     { return q.lazyLoadBatchSize }

func (q *Query) SetLazyLoadProperty(property string) { q.lazyLoadProperty = property }
func (q *Query) LazyLoadProperty() string            { return q.lazyLoadProperty }

func (q *Query) SetBeanLoader(loader bean.BeanLoader) { q.beanLoader = loader }

func (q *Query) SetReferenceLoader(rl ReferenceLoader) { q.refLoader = rl }

// Select sets the comma separated properties to load. The id is always selected.
func (q *Query) Select(properties string) SpiQuery {
	q.selectProps = q.selectProps[:0]
	for _, p := range strings.Split(properties, ",") {
		if p = strings.TrimSpace(p); p != "" {
			q.selectProps = append(q.selectProps, p)
		}
	}
	return q
}

// Where returns the where expressions
func (q *Query) Where() *expr.List {
	return q.where
}

// AddWhere adds raw SQL to the where clause
func (q *Query) AddWhere(sql string, args ...interface{}) {
	q.where.Raw(sql, args...)
}

// OrderBy adds an order by property, optionally followed by "desc"
func (q *Query) OrderBy(clause string) *Query {
	q.orderBy = append(q.orderBy, clause)
	return q
}

// selected returns the properties with a column on the base table
func (q *Query) selected() []*deploy.BeanProperty {
	var candidates []*deploy.BeanProperty
	switch {
	case len(q.selectProps) > 0:
		for _, name := range q.selectProps {
			if p := q.desc.Property(name); p != nil {
				candidates = append(candidates, p)
			}
		}
	default:
		candidates = append(candidates, q.desc.DefaultSelectProperties()...)
	}
	if q.lazyLoadProperty != "" {
		if p := q.desc.Property(q.lazyLoadProperty); p != nil {
			candidates = append(candidates, p)
		}
	}

	var props []*deploy.BeanProperty
	seen := make(map[string]bool)
	add := func(p *deploy.BeanProperty) {
		if seen[p.Name()] || !p.IsPersistable() || p.IsEmbedded() {
			return
		}
		seen[p.Name()] = true
		props = append(props, p)
	}
	for _, id := range q.desc.IDProperties() {
		add(id)
	}
	for _, p := range candidates {
		add(p)
	}
	return props
}

// ToSQL renders the query for the dialect
func (q *Query) ToSQL() (string, []interface{}, error) {
	props := q.selected()
	if len(props) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrNoSelectProperties, q.desc.Name())
	}
	return q.render(props)
}

func (q *Query) render(props []*deploy.BeanProperty) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString("select ")
	for i, p := range props {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(TableAlias + "." + p.DbColumn())
	}
	sb.WriteString(" from ")
	sb.WriteString(q.desc.BaseTable())
	sb.WriteString(" " + TableAlias)

	req := expr.NewRequest(q.desc, TableAlias, q.dialect)
	if !q.where.IsEmpty() {
		q.where.AddSQL(req)
		q.where.AddBindValues(req)
		sb.WriteString(" where ")
		sb.WriteString(req.SQL())
	}

	if len(q.orderBy) > 0 {
		sb.WriteString(" order by ")
		for i, clause := range q.orderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			fields := strings.Fields(clause)
			if len(fields) == 0 {
				return "", nil, fmt.Errorf("empty order by clause on %s", q.desc.Name())
			}
			sb.WriteString(req.Column(fields[0]))
			if len(fields) > 1 {
				sb.WriteString(" " + strings.ToLower(fields[1]))
			}
		}
	}

	return q.dialect.Rebind(sb.String()), req.BindValues(), nil
}

// PlanHash identifies queries rendering the same SQL regardless of bind values
func (q *Query) PlanHash() uint64 {
	b := expr.NewPlanBuilder()
	b.Add(q.desc.Name()).Add(q.mode.String())
	for _, p := range q.selected() {
		b.Add(p.Name())
	}
	q.where.QueryPlanHash(b)
	for _, o := range q.orderBy {
		b.Add(o)
	}
	return b.Hash()
}

// FindList runs the query adapter chain, executes the query and returns the
// loaded beans, reusing instances already in the persistence context
func (q *Query) FindList(ctx context.Context) ([]bean.EntityBean, error) {
	if adapter := q.desc.QueryAdapter(); adapter != nil {
		adapter.PreQuery(ctx, q)
	}

	props := q.selected()
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSelectProperties, q.desc.Name())
	}
	sqlStr, args, err := q.render(props)
	if err != nil {
		return nil, err
	}

	q.logger.Debug("executing query",
		zap.String("bean", q.desc.Name()),
		zap.String("mode", q.mode.String()),
		zap.String("load", q.loadDescription),
		zap.String("sql", sqlStr),
	)

	rows, err := q.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query on %s: %w", q.desc.Name(), err)
	}
	defer rows.Close()

	q.refs = nil
	var list []bean.EntityBean
	for rows.Next() {
		values := make([]interface{}, len(props))
		ptrs := make([]interface{}, len(props))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", q.desc.Name(), err)
		}
		list = append(list, q.materialise(props, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", q.desc.Name(), err)
	}

	if postLoad := q.desc.PostLoad(); postLoad != nil {
		for _, b := range list {
			postLoad.PostLoad(b)
		}
	}
	q.attachReferences()
	return list, nil
}

// referenceGroup is the references read from one association property
type referenceGroup struct {
	property string
	target   *deploy.BeanDescriptor
	refs     []bean.EntityBean
	seen     map[*bean.Intercept]bool
}

// collectReference queues a reference without a loader for the reference loader
func (q *Query) collectReference(p *deploy.BeanProperty, target *deploy.BeanDescriptor, ref bean.EntityBean) {
	if q.refLoader == nil {
		return
	}
	ebi := ref.EbeanIntercept()
	if !ebi.IsReference() || ebi.BeanLoader() != nil {
		return
	}
	var g *referenceGroup
	for _, existing := range q.refs {
		if existing.property == p.Name() {
			g = existing
			break
		}
	}
	if g == nil {
		g = &referenceGroup{property: p.Name(), target: target, seen: make(map[*bean.Intercept]bool)}
		q.refs = append(q.refs, g)
	}
	if g.seen[ebi] {
		return
	}
	g.seen[ebi] = true
	g.refs = append(g.refs, ref)
}

// attachReferences hands the collected references to the reference loader.
// Nested lazy loads use the batch size of the query that loaded them.
func (q *Query) attachReferences() {
	if q.refLoader == nil {
		return
	}
	for _, g := range q.refs {
		q.refLoader.AttachReferences(g.target, g.property, q.pc, q.lazyLoadBatchSize, g.refs)
	}
	q.refs = nil
}

// FindCount returns the number of rows matching the where clause
func (q *Query) FindCount(ctx context.Context) (int64, error) {
	req := expr.NewRequest(q.desc, TableAlias, q.dialect)
	sqlStr := "select count(*) from " + q.desc.BaseTable() + " " + TableAlias
	if !q.where.IsEmpty() {
		q.where.AddSQL(req)
		q.where.AddBindValues(req)
		sqlStr += " where " + req.SQL()
	}
	sqlStr = q.dialect.Rebind(sqlStr)

	rows, err := q.db.QueryContext(ctx, sqlStr, req.BindValues()...)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.desc.Name(), err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan %s count: %w", q.desc.Name(), err)
		}
	}
	return count, rows.Err()
}

// FindOne returns the single bean matching the query, or nil
func (q *Query) FindOne(ctx context.Context) (bean.EntityBean, error) {
	list, err := q.FindList(ctx)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	default:
		return nil, fmt.Errorf("expected one %s but found %d", q.desc.Name(), len(list))
	}
}

// materialise builds or fills the bean for one row
func (q *Query) materialise(props []*deploy.BeanProperty, values []interface{}) bean.EntityBean {
	var id interface{}
	if idProp := q.desc.IDProperty(); idProp != nil {
		for i, p := range props {
			if p == idProp {
				id = normalise(p, values[i])
			}
		}
	}

	var b bean.EntityBean
	if q.pc != nil && id != nil {
		b = q.pc.Get(q.desc.Name(), id)
	}
	fresh := b == nil
	if fresh {
		b = q.desc.CreateBean()
	}

	ebi := b.EbeanIntercept()
	overwrite := fresh || q.mode == ModeRefresh
	for i, p := range props {
		if !overwrite && ebi.IsLoadedProperty(p.Name()) && !ebi.IsReference() {
			continue
		}
		ebi.SetLoadedProperty(p.Name(), q.value(p, values[i]))
	}
	if fresh || ebi.IsReference() || q.mode == ModeRefresh {
		ebi.SetLoaded()
	}
	if q.beanLoader != nil && ebi.BeanLoader() == nil {
		ebi.SetBeanLoader(q.beanLoader)
	}
	if q.pc != nil {
		ebi.SetPersistenceContext(q.pc)
	}
	if fresh && q.pc != nil && id != nil {
		if existing := q.pc.PutIfAbsent(q.desc.Name(), id, b); existing != nil {
			return existing
		}
	}
	return b
}

// value converts a scanned column to the property value. Assoc one columns
// become reference beans when the target descriptor is known.
func (q *Query) value(p *deploy.BeanProperty, raw interface{}) interface{} {
	v := normalise(p, raw)
	if !p.IsAssocOne() || v == nil || q.lookup == nil {
		return v
	}
	target, ok := q.lookup.Get(p.TargetType())
	if !ok {
		return v
	}
	if q.pc != nil {
		if existing := q.pc.Get(target.Name(), v); existing != nil {
			q.collectReference(p, target, existing)
			return existing
		}
	}
	ref := target.CreateReference(v)
	if q.pc != nil {
		ref.EbeanIntercept().SetPersistenceContext(q.pc)
		if existing := q.pc.PutIfAbsent(target.Name(), v, ref); existing != nil {
			q.collectReference(p, target, existing)
			return existing
		}
	}
	q.collectReference(p, target, ref)
	return ref
}

// normalise converts driver text values to strings, keeping binary columns as bytes
func normalise(p *deploy.BeanProperty, raw interface{}) interface{} {
	b, ok := raw.([]byte)
	if !ok {
		return raw
	}
	switch t := strings.ToLower(p.DbType()); {
	case strings.HasPrefix(t, "bytea"), strings.HasPrefix(t, "blob"),
		strings.HasPrefix(t, "binary"), strings.HasPrefix(t, "varbinary"):
		return append([]byte(nil), b...)
	}
	return string(b)
}
