package deploy

import (
	"strings"

	"github.com/conduit-lang/ebean/internal/orm/bean"
)

// BeanProperty is the immutable runtime form of a DeployBeanProperty
type BeanProperty struct {
	p DeployBeanProperty
}

func (p *BeanProperty) Name() string           { return p.p.Name }
func (p *BeanProperty) DbColumn() string       { return p.p.DbColumn }
func (p *BeanProperty) DbType() string         { return p.p.DbType }
func (p *BeanProperty) Kind() PropertyKind     { return p.p.Kind }
func (p *BeanProperty) IsID() bool             { return p.p.ID }
func (p *BeanProperty) IsVersion() bool        { return p.p.Version }
func (p *BeanProperty) IsEmbedded() bool       { return p.p.Embedded }
func (p *BeanProperty) IsTransient() bool      { return p.p.Transient }
func (p *BeanProperty) IsLazy() bool           { return p.p.Lazy }
func (p *BeanProperty) IsNotNull() bool        { return p.p.NotNull }
func (p *BeanProperty) IsUnique() bool         { return p.p.Unique }
func (p *BeanProperty) IsNaturalKey() bool     { return p.p.NaturalKey }
func (p *BeanProperty) IsHistoryExclude() bool { return p.p.HistoryExclude }
func (p *BeanProperty) DefaultValue() string   { return p.p.DefaultValue }
func (p *BeanProperty) DbComment() string      { return p.p.DbComment }
func (p *BeanProperty) TargetType() string     { return p.p.TargetType }
func (p *BeanProperty) MappedBy() string       { return p.p.MappedBy }
func (p *BeanProperty) IsAssocOne() bool       { return p.p.IsAssocOne() }
func (p *BeanProperty) IsAssocMany() bool      { return p.p.IsAssocMany() }
func (p *BeanProperty) IsPersistable() bool    { return p.p.IsPersistable() }
func (p *BeanProperty) IsDbNumberType() bool   { return p.p.IsDbNumberType() }

// BeanDescriptor is the immutable deployment information of a bean type,
// safe for concurrent use once built
type BeanDescriptor struct {
	name       string
	fullName   string
	entityType EntityType
	factory    func() bean.EntityBean

	baseTable                string
	baseTableAsOf            string
	baseTableVersionsBetween string
	draftTable               string
	dependentTables          []string
	historySupport           bool
	readAuditing             bool
	draftable                bool
	dbComment                string

	properties    []*BeanProperty
	propMap       map[string]*BeanProperty
	ids           []*BeanProperty
	version       *BeanProperty
	defaultSelect []*BeanProperty
	selectClause  string

	idType               IdType
	idGenerator          IdGenerator
	sequenceName         string
	sequenceInitialValue int
	sequenceAllocation   int
	selectLastInsertedID string

	concurrencyMode   ConcurrencyMode
	updateChangesOnly bool
	indexDefinitions  []IndexDefinition
	inheritInfo       *InheritInfo
	cacheOptions      CacheOptions

	persistController PersistController
	persistListener   PersistListener
	queryAdapter      QueryAdapter
	postLoad          PostLoad
	beanFinder        BeanFinder
	changeLogFilter   ChangeLogFilter

	docStoreMapped  bool
	docStoreQueueID string
	docStorePaths   *PathProperties
	docStoreInsert  DocStoreMode
	docStoreUpdate  DocStoreMode
	docStoreDelete  DocStoreMode
	docStoreIndex   string
	docStoreIdxType string
	namedQuery      map[string]string
	namedRawSQL     map[string]RawSQL
}

// Build freezes the deploy descriptor and returns its runtime form.
// Adding properties after Build panics.
func (d *DeployBeanDescriptor) Build() *BeanDescriptor {
	d.frozen = true

	bd := &BeanDescriptor{
		name:                     d.name,
		fullName:                 d.FullName(),
		entityType:               d.entityType,
		factory:                  d.factory,
		baseTable:                d.baseTable,
		baseTableAsOf:            d.baseTableAsOf,
		baseTableVersionsBetween: d.baseTableVersionsBetween,
		draftTable:               d.draftTable,
		dependentTables:          append([]string(nil), d.dependentTables...),
		historySupport:           d.historySupport,
		readAuditing:             d.readAuditing,
		draftable:                d.draftable,
		dbComment:                d.dbComment,
		propMap:                  make(map[string]*BeanProperty, len(d.props)),
		idType:                   d.idType,
		idGenerator:              d.idGenerator,
		sequenceName:             d.sequenceName,
		sequenceInitialValue:     d.sequenceInitialValue,
		sequenceAllocation:       d.sequenceAllocation,
		selectLastInsertedID:     d.selectLastInsertedID,
		concurrencyMode:          d.concurrencyMode,
		updateChangesOnly:        d.updateChangesOnly,
		indexDefinitions:         append([]IndexDefinition(nil), d.indexDefinitions...),
		inheritInfo:              d.inheritInfo,
		cacheOptions:             d.cacheOptions,
		persistController:        d.PersistController(),
		persistListener:          d.PersistListener(),
		queryAdapter:             d.QueryAdapter(),
		postLoad:                 d.PostLoad(),
		beanFinder:               d.beanFinder,
		changeLogFilter:          d.changeLogFilter,
		docStoreMapped:           d.docStoreMapped,
		docStoreQueueID:          d.DocStoreQueueID(),
		docStorePaths:            d.docStorePathProperties,
		docStoreInsert:           d.DocStoreInsertEvent(),
		docStoreUpdate:           d.DocStoreUpdateEvent(),
		docStoreDelete:           d.DocStoreDeleteEvent(),
		docStoreIndex:            d.docStoreIndexName,
		docStoreIdxType:          d.docStoreIndexType,
		namedQuery:               make(map[string]string, len(d.namedQuery)),
		namedRawSQL:              make(map[string]RawSQL, len(d.namedRawSQL)),
	}

	// ids are computed eagerly here, independent of the memoized PropertiesID
	for _, dp := range d.PropertiesAll() {
		p := &BeanProperty{p: *dp}
		bd.properties = append(bd.properties, p)
		bd.propMap[p.Name()] = p
		if p.IsID() {
			bd.ids = append(bd.ids, p)
		}
		if p.IsVersion() && bd.version == nil {
			bd.version = p
		}
	}
	if bd.concurrencyMode == ConcurrencyNone && bd.version != nil {
		bd.concurrencyMode = ConcurrencyVersion
	}

	if clause, ok := d.DefaultSelectClause(); ok {
		bd.selectClause = clause
		for _, name := range strings.Split(clause, ",") {
			bd.defaultSelect = append(bd.defaultSelect, bd.propMap[name])
		}
	} else {
		for _, p := range bd.properties {
			if !p.IsTransient() && !p.IsAssocMany() {
				bd.defaultSelect = append(bd.defaultSelect, p)
			}
		}
	}

	for k, v := range d.namedQuery {
		bd.namedQuery[k] = v
	}
	for k, v := range d.namedRawSQL {
		bd.namedRawSQL[k] = v
	}
	return bd
}

func (bd *BeanDescriptor) Name() string                     { return bd.name }
func (bd *BeanDescriptor) FullName() string                 { return bd.fullName }
func (bd *BeanDescriptor) EntityType() EntityType           { return bd.entityType }
func (bd *BeanDescriptor) BaseTable() string                { return bd.baseTable }
func (bd *BeanDescriptor) BaseTableAsOf() string            { return bd.baseTableAsOf }
func (bd *BeanDescriptor) BaseTableVersionsBetween() string { return bd.baseTableVersionsBetween }
func (bd *BeanDescriptor) DraftTable() string               { return bd.draftTable }
func (bd *BeanDescriptor) DependentTables() []string        { return bd.dependentTables }
func (bd *BeanDescriptor) IsHistorySupport() bool           { return bd.historySupport }
func (bd *BeanDescriptor) IsReadAuditing() bool             { return bd.readAuditing }
func (bd *BeanDescriptor) IsDraftable() bool                { return bd.draftable }
func (bd *BeanDescriptor) DbComment() string                { return bd.dbComment }
func (bd *BeanDescriptor) IdType() IdType                   { return bd.idType }
func (bd *BeanDescriptor) IdGenerator() IdGenerator         { return bd.idGenerator }
func (bd *BeanDescriptor) SequenceName() string             { return bd.sequenceName }
func (bd *BeanDescriptor) SequenceInitialValue() int        { return bd.sequenceInitialValue }
func (bd *BeanDescriptor) SequenceAllocationSize() int      { return bd.sequenceAllocation }
func (bd *BeanDescriptor) SelectLastInsertedID() string     { return bd.selectLastInsertedID }
func (bd *BeanDescriptor) ConcurrencyMode() ConcurrencyMode { return bd.concurrencyMode }
func (bd *BeanDescriptor) IsUpdateChangesOnly() bool        { return bd.updateChangesOnly }
func (bd *BeanDescriptor) IndexDefinitions() []IndexDefinition {
	return bd.indexDefinitions
}
func (bd *BeanDescriptor) InheritInfo() *InheritInfo               { return bd.inheritInfo }
func (bd *BeanDescriptor) CacheOptions() CacheOptions              { return bd.cacheOptions }
func (bd *BeanDescriptor) IsBeanCaching() bool                     { return bd.cacheOptions.UseCache }
func (bd *BeanDescriptor) PersistController() PersistController    { return bd.persistController }
func (bd *BeanDescriptor) PersistListener() PersistListener        { return bd.persistListener }
func (bd *BeanDescriptor) QueryAdapter() QueryAdapter              { return bd.queryAdapter }
func (bd *BeanDescriptor) PostLoad() PostLoad                      { return bd.postLoad }
func (bd *BeanDescriptor) BeanFinder() BeanFinder                  { return bd.beanFinder }
func (bd *BeanDescriptor) ChangeLogFilter() ChangeLogFilter        { return bd.changeLogFilter }
func (bd *BeanDescriptor) IsDocStoreMapped() bool                  { return bd.docStoreMapped }
func (bd *BeanDescriptor) DocStoreQueueID() string                 { return bd.docStoreQueueID }
func (bd *BeanDescriptor) DocStorePathProperties() *PathProperties { return bd.docStorePaths }
func (bd *BeanDescriptor) DocStoreIndexName() string               { return bd.docStoreIndex }
func (bd *BeanDescriptor) DocStoreIndexType() string               { return bd.docStoreIdxType }
func (bd *BeanDescriptor) DocStoreInsertEvent() DocStoreMode       { return bd.docStoreInsert }
func (bd *BeanDescriptor) DocStoreUpdateEvent() DocStoreMode       { return bd.docStoreUpdate }
func (bd *BeanDescriptor) DocStoreDeleteEvent() DocStoreMode       { return bd.docStoreDelete }

// Properties returns all properties in deployment order
func (bd *BeanDescriptor) Properties() []*BeanProperty {
	return bd.properties
}

// Property returns the property of the given name, or nil
func (bd *BeanDescriptor) Property(name string) *BeanProperty {
	return bd.propMap[name]
}

// IDProperties returns the id properties
func (bd *BeanDescriptor) IDProperties() []*BeanProperty {
	return bd.ids
}

// IDProperty returns the single id property, or nil for compound or missing ids
func (bd *BeanDescriptor) IDProperty() *BeanProperty {
	if len(bd.ids) == 1 {
		return bd.ids[0]
	}
	return nil
}

// VersionProperty returns the optimistic locking version property, or nil
func (bd *BeanDescriptor) VersionProperty() *BeanProperty {
	return bd.version
}

// DefaultSelectClause returns the eager property names when some are lazy
func (bd *BeanDescriptor) DefaultSelectClause() (string, bool) {
	return bd.selectClause, bd.selectClause != ""
}

// DefaultSelectProperties returns the properties selected when a query has no select clause
func (bd *BeanDescriptor) DefaultSelectProperties() []*BeanProperty {
	return bd.defaultSelect
}

// NamedQuery returns a named ORM query
func (bd *BeanDescriptor) NamedQuery(name string) (string, bool) {
	q, ok := bd.namedQuery[name]
	return q, ok
}

// NamedRawSQL returns a named raw SQL query
func (bd *BeanDescriptor) NamedRawSQL(name string) (RawSQL, bool) {
	r, ok := bd.namedRawSQL[name]
	return r, ok
}

// CreateBean creates a new bean instance
func (bd *BeanDescriptor) CreateBean() bean.EntityBean {
	if bd.factory != nil {
		return bd.factory()
	}
	return bean.New(bd.name)
}

// CreateReference creates a reference bean holding only its id
func (bd *BeanDescriptor) CreateReference(id interface{}) bean.EntityBean {
	b := bd.CreateBean()
	ebi := b.EbeanIntercept()
	if idProp := bd.IDProperty(); idProp != nil {
		ebi.SetLoadedProperty(idProp.Name(), id)
	}
	ebi.SetReference()
	return b
}

// ID returns the id value of a bean, or nil
func (bd *BeanDescriptor) ID(b bean.EntityBean) interface{} {
	idProp := bd.IDProperty()
	if idProp == nil {
		return nil
	}
	return b.EbeanIntercept().Value(idProp.Name())
}

// SetID assigns the id value of a bean
func (bd *BeanDescriptor) SetID(b bean.EntityBean, id interface{}) {
	if idProp := bd.IDProperty(); idProp != nil {
		b.EbeanIntercept().Set(idProp.Name(), id)
	}
}

// String returns the full name
func (bd *BeanDescriptor) String() string {
	return bd.fullName
}
