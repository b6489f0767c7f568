// Package deploy holds the deployment metadata of entity beans.
//
// A DeployBeanDescriptor is built up at startup, one per bean type, by a single
// goroutine reading the deployment file. Build converts it into an immutable
// BeanDescriptor that queries, lazy loading, persisting and the bean cache read
// concurrently.
package deploy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/ebean/internal/orm/bean"
)

// Config holds the server wide deployment settings
type Config struct {
	AsOfSuffix            string
	VersionsBetweenSuffix string
	DocStorePersist       DocStoreMode
	PluralizeTables       bool
}

// DefaultConfig returns the default deployment settings
func DefaultConfig() *Config {
	return &Config{
		AsOfSuffix:            "_with_history",
		VersionsBetweenSuffix: "_with_history",
		DocStorePersist:       DocStoreUpdate,
	}
}

// DeployBeanDescriptor is the mutable deployment information of a bean type
type DeployBeanDescriptor struct {
	config   *Config
	beanType *BeanClass
	name     string
	factory  func() bean.EntityBean
	frozen   bool

	props     map[string]*DeployBeanProperty
	propOrder []string

	// memoized on first call, later additions are not reflected
	idProperties []*DeployBeanProperty

	entityType     EntityType
	unidirectional *DeployBeanProperty

	idType                IdType
	idTypePlatformDefault bool
	idGeneratorName       string
	idGenerator           IdGenerator
	sequenceName          string
	sequenceInitialValue  int
	sequenceAllocation    int
	selectLastInsertedID  string

	concurrencyMode   ConcurrencyMode
	updateChangesOnly bool
	indexDefinitions  []IndexDefinition

	baseTable                string
	baseTableAsOf            string
	baseTableVersionsBetween string
	draftTable               string
	baseTableFull            TableName
	dependentTables          []string

	historySupport   bool
	readAuditing     bool
	draftable        bool
	draftableElement bool
	dbComment        string

	inheritInfo     *InheritInfo
	cacheOptions    CacheOptions
	beanFinder      BeanFinder
	changeLogFilter ChangeLogFilter
	tableJoins      []*TableJoin

	docStoreMapped         bool
	docStore               *DocStore
	docStorePathProperties *PathProperties
	docStoreQueueID        string
	docStoreIndexName      string
	docStoreIndexType      string
	docStorePersist        DocStoreMode
	docStoreInsert         DocStoreMode
	docStoreUpdate         DocStoreMode
	docStoreDelete         DocStoreMode

	namedQuery  map[string]string
	namedRawSQL map[string]RawSQL

	persistControllers []PersistController
	persistListeners   []PersistListener
	queryAdapters      []QueryAdapter
	postLoaders        []PostLoad
}

// NewDeployBeanDescriptor creates the descriptor for a bean type
func NewDeployBeanDescriptor(beanType *BeanClass, config *Config) *DeployBeanDescriptor {
	if config == nil {
		config = DefaultConfig()
	}
	return &DeployBeanDescriptor{
		config:       config,
		beanType:     beanType,
		name:         beanType.Name,
		props:        make(map[string]*DeployBeanProperty),
		cacheOptions: NoCaching,
	}
}

// BeanType returns the bean class
func (d *DeployBeanDescriptor) BeanType() *BeanClass {
	return d.beanType
}

// FullName returns the full name of the bean class
func (d *DeployBeanDescriptor) FullName() string {
	return d.beanType.String()
}

// Name returns the bean short name
func (d *DeployBeanDescriptor) Name() string {
	return d.name
}

// SetName sets the bean short name
func (d *DeployBeanDescriptor) SetName(name string) {
	d.name = name
}

// String returns the full name
func (d *DeployBeanDescriptor) String() string {
	return d.FullName()
}

// IsAbstract reports whether the bean class is abstract
func (d *DeployBeanDescriptor) IsAbstract() bool {
	return d.beanType.Abstract
}

// SetFactory sets the function creating new bean instances
func (d *DeployBeanDescriptor) SetFactory(factory func() bean.EntityBean) {
	d.factory = factory
}

func (d *DeployBeanDescriptor) SetEntityType(t EntityType) { d.entityType = t }
func (d *DeployBeanDescriptor) EntityType() EntityType     { return d.entityType }

// IsEmbedded reports whether the bean is embedded in other beans
func (d *DeployBeanDescriptor) IsEmbedded() bool {
	return d.entityType == EntityEmbedded
}

// IsBaseTableType reports whether the bean maps to a table of its own
func (d *DeployBeanDescriptor) IsBaseTableType() bool {
	return d.entityType == EntityORM
}

func (d *DeployBeanDescriptor) SetHistorySupport()     { d.historySupport = true }
func (d *DeployBeanDescriptor) IsHistorySupport() bool { return d.historySupport }
func (d *DeployBeanDescriptor) SetReadAuditing()       { d.readAuditing = true }
func (d *DeployBeanDescriptor) IsReadAuditing() bool   { return d.readAuditing }
func (d *DeployBeanDescriptor) SetDbComment(c string)  { d.dbComment = c }
func (d *DeployBeanDescriptor) DbComment() string      { return d.dbComment }

// SetDraftable marks the bean as draftable. Must be called before SetBaseTable
// for the draft table to be derived.
func (d *DeployBeanDescriptor) SetDraftable() {
	d.draftable = true
}

func (d *DeployBeanDescriptor) IsDraftable() bool { return d.draftable }

// SetDraftableElement marks the bean as an element of a draftable graph, which makes it draftable too
func (d *DeployBeanDescriptor) SetDraftableElement() {
	d.draftable = true
	d.draftableElement = true
}

func (d *DeployBeanDescriptor) IsDraftableElement() bool { return d.draftableElement }

func (d *DeployBeanDescriptor) SetSequenceInitialValue(v int)   { d.sequenceInitialValue = v }
func (d *DeployBeanDescriptor) SetSequenceAllocationSize(v int) { d.sequenceAllocation = v }
func (d *DeployBeanDescriptor) SequenceInitialValue() int       { return d.sequenceInitialValue }
func (d *DeployBeanDescriptor) SequenceAllocationSize() int     { return d.sequenceAllocation }
func (d *DeployBeanDescriptor) SequenceName() string            { return d.sequenceName }

func (d *DeployBeanDescriptor) SetChangeLogFilter(f ChangeLogFilter) { d.changeLogFilter = f }
func (d *DeployBeanDescriptor) ChangeLogFilter() ChangeLogFilter     { return d.changeLogFilter }
func (d *DeployBeanDescriptor) SetInheritInfo(info *InheritInfo)     { d.inheritInfo = info }
func (d *DeployBeanDescriptor) InheritInfo() *InheritInfo            { return d.inheritInfo }
func (d *DeployBeanDescriptor) SetBeanFinder(f BeanFinder)           { d.beanFinder = f }
func (d *DeployBeanDescriptor) BeanFinder() BeanFinder               { return d.beanFinder }

func (d *DeployBeanDescriptor) SetUnidirectional(p *DeployBeanProperty) { d.unidirectional = p }
func (d *DeployBeanDescriptor) Unidirectional() *DeployBeanProperty     { return d.unidirectional }

func (d *DeployBeanDescriptor) SetConcurrencyMode(m ConcurrencyMode) { d.concurrencyMode = m }
func (d *DeployBeanDescriptor) ConcurrencyMode() ConcurrencyMode     { return d.concurrencyMode }
func (d *DeployBeanDescriptor) SetUpdateChangesOnly(b bool)          { d.updateChangesOnly = b }
func (d *DeployBeanDescriptor) IsUpdateChangesOnly() bool            { return d.updateChangesOnly }

// SetCache enables the L2 cache, marking the natural key property when one is named
func (d *DeployBeanDescriptor) SetCache(c Cache) {
	naturalKey := ""
	if name := strings.TrimSpace(c.NaturalKey); name != "" {
		if p := d.BeanProperty(name); p != nil {
			p.SetNaturalKey()
			naturalKey = name
		}
	}
	d.cacheOptions = CacheOptions{
		UseCache:   c.Enabled,
		ReadOnly:   c.ReadOnly,
		NaturalKey: naturalKey,
		TTL:        c.TTL,
	}
}

func (d *DeployBeanDescriptor) CacheOptions() CacheOptions { return d.cacheOptions }

// AddIndex adds a compound index
func (d *DeployBeanDescriptor) AddIndex(idx IndexDefinition) {
	d.indexDefinitions = append(d.indexDefinitions, idx)
}

// IndexDefinitions returns the compound indexes, or nil
func (d *DeployBeanDescriptor) IndexDefinitions() []IndexDefinition {
	return d.indexDefinitions
}

// AddPersistController registers a persist controller
func (d *DeployBeanDescriptor) AddPersistController(c PersistController) {
	d.persistControllers = append(d.persistControllers, c)
}

// AddPersistListener registers a persist listener
func (d *DeployBeanDescriptor) AddPersistListener(l PersistListener) {
	d.persistListeners = append(d.persistListeners, l)
}

// AddQueryAdapter registers a query adapter
func (d *DeployBeanDescriptor) AddQueryAdapter(a QueryAdapter) {
	d.queryAdapters = append(d.queryAdapters, a)
}

// AddPostLoad registers a post load hook
func (d *DeployBeanDescriptor) AddPostLoad(p PostLoad) {
	d.postLoaders = append(d.postLoaders, p)
}

// PersistController returns nil, the single controller, or a chain of them
func (d *DeployBeanDescriptor) PersistController() PersistController {
	switch len(d.persistControllers) {
	case 0:
		return nil
	case 1:
		return d.persistControllers[0]
	default:
		return ChainPersistController(append([]PersistController(nil), d.persistControllers...))
	}
}

// PersistListener returns nil, the single listener, or a chain of them
func (d *DeployBeanDescriptor) PersistListener() PersistListener {
	switch len(d.persistListeners) {
	case 0:
		return nil
	case 1:
		return d.persistListeners[0]
	default:
		return ChainPersistListener(append([]PersistListener(nil), d.persistListeners...))
	}
}

// QueryAdapter returns nil, the single adapter, or a chain of them
func (d *DeployBeanDescriptor) QueryAdapter() QueryAdapter {
	switch len(d.queryAdapters) {
	case 0:
		return nil
	case 1:
		return d.queryAdapters[0]
	default:
		return ChainQueryAdapter(append([]QueryAdapter(nil), d.queryAdapters...))
	}
}

// PostLoad returns nil, the single hook, or a chain of them
func (d *DeployBeanDescriptor) PostLoad() PostLoad {
	switch len(d.postLoaders) {
	case 0:
		return nil
	case 1:
		return d.postLoaders[0]
	default:
		return ChainPostLoad(append([]PostLoad(nil), d.postLoaders...))
	}
}

func (d *DeployBeanDescriptor) DraftTable() string               { return d.draftTable }
func (d *DeployBeanDescriptor) DependentTables() []string        { return d.dependentTables }
func (d *DeployBeanDescriptor) BaseTable() string                { return d.baseTable }
func (d *DeployBeanDescriptor) BaseTableAsOf() string            { return d.baseTableAsOf }
func (d *DeployBeanDescriptor) BaseTableVersionsBetween() string { return d.baseTableVersionsBetween }
func (d *DeployBeanDescriptor) BaseTableFull() TableName         { return d.baseTableFull }

// SetView maps the bean to a view that depends on the given tables
func (d *DeployBeanDescriptor) SetView(viewName string, dependentTables []string) {
	d.entityType = EntityView
	d.dependentTables = dependentTables
	d.SetBaseTable(ParseTableName(viewName), "", "")
}

// SetBaseTable sets the base table and derives the as of, versions between and draft tables.
// The draft table is only distinct when the bean was marked draftable beforehand.
func (d *DeployBeanDescriptor) SetBaseTable(table TableName, asOfSuffix, versionsBetweenSuffix string) {
	d.baseTableFull = table
	d.baseTable = ""
	if !table.IsEmpty() {
		d.baseTable = table.QualifiedName()
	}
	d.baseTableAsOf = d.baseTable + asOfSuffix
	d.baseTableVersionsBetween = d.baseTable + versionsBetweenSuffix
	if d.draftable {
		d.draftTable = d.baseTable + "_draft"
	} else {
		d.draftTable = d.baseTable
	}
}

// AddBeanProperty adds a property, replacing one of the same name in place.
// Returns the replaced property, or nil. Panics once the descriptor is built.
func (d *DeployBeanDescriptor) AddBeanProperty(p *DeployBeanProperty) *DeployBeanProperty {
	if d.frozen {
		panic(fmt.Sprintf("deploy: property %s added to %s after Build", p.Name, d.FullName()))
	}
	prev, exists := d.props[p.Name]
	if !exists {
		d.propOrder = append(d.propOrder, p.Name)
	}
	d.props[p.Name] = p
	return prev
}

// BeanProperty returns the property of the given name, or nil
func (d *DeployBeanDescriptor) BeanProperty(name string) *DeployBeanProperty {
	return d.props[name]
}

// PropertiesAll returns all properties in map order
func (d *DeployBeanDescriptor) PropertiesAll() []*DeployBeanProperty {
	all := make([]*DeployBeanProperty, 0, len(d.propOrder))
	for _, name := range d.propOrder {
		all = append(all, d.props[name])
	}
	return all
}

// SortProperties reorders the properties by descending sort order.
// Properties of equal sort order keep their relative order.
func (d *DeployBeanDescriptor) SortProperties() {
	all := d.PropertiesAll()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].SortOrder > all[j].SortOrder
	})
	d.propOrder = d.propOrder[:0]
	for _, p := range all {
		d.propOrder = append(d.propOrder, p.Name)
	}
}

// FindMatch finds a property by name, then by the camel case form of the
// column, then by scanning for the column
func (d *DeployBeanDescriptor) FindMatch(propertyName, dbColumn string) *DeployBeanProperty {
	if p := d.props[propertyName]; p != nil {
		return p
	}
	if dbColumn == "" {
		return nil
	}
	if p := d.props[CamelFromUnderscore(dbColumn)]; p != nil {
		return p
	}
	for _, name := range d.propOrder {
		if p := d.props[name]; p.DbColumn == dbColumn {
			return p
		}
	}
	return nil
}

// SetIdType sets the id generation strategy
func (d *DeployBeanDescriptor) SetIdType(t IdType) { d.idType = t }
func (d *DeployBeanDescriptor) IdType() IdType     { return d.idType }

// SetIdTypePlatformDefault marks the id type as chosen by the platform
func (d *DeployBeanDescriptor) SetIdTypePlatformDefault()     { d.idTypePlatformDefault = true }
func (d *DeployBeanDescriptor) IsIdTypePlatformDefault() bool { return d.idTypePlatformDefault }

func (d *DeployBeanDescriptor) SetIdGeneratorName(name string) { d.idGeneratorName = name }
func (d *DeployBeanDescriptor) IdGeneratorName() string        { return d.idGeneratorName }
func (d *DeployBeanDescriptor) IdGenerator() IdGenerator       { return d.idGenerator }

// SetIdGenerator sets the generator, taking the sequence name from db sequence generators
func (d *DeployBeanDescriptor) SetIdGenerator(gen IdGenerator) {
	d.idGenerator = gen
	if gen != nil && gen.IsDbSequence() {
		d.sequenceName = gen.Name()
	}
}

// SetUUIDGenerator assigns the standard UUID generator
func (d *DeployBeanDescriptor) SetUUIDGenerator() {
	d.idType = IdTypeExternal
	d.idGeneratorName = AutoUUID
	d.idGenerator = UUIDGenerator{}
}

// SetCustomIdGenerator assigns an application supplied generator
func (d *DeployBeanDescriptor) SetCustomIdGenerator(gen IdGenerator) {
	d.idType = IdTypeExternal
	d.idGeneratorName = gen.Name()
	d.idGenerator = gen
}

// SetSelectLastInsertedID sets the SQL reading an identity value where generated keys are unavailable
func (d *DeployBeanDescriptor) SetSelectLastInsertedID(sql string) { d.selectLastInsertedID = sql }
func (d *DeployBeanDescriptor) SelectLastInsertedID() string       { return d.selectLastInsertedID }

// AddTableJoin adds a join for secondary table properties
func (d *DeployBeanDescriptor) AddTableJoin(join *TableJoin) {
	d.tableJoins = append(d.tableJoins, join)
}

func (d *DeployBeanDescriptor) TableJoins() []*TableJoin { return d.tableJoins }

// DefaultSelectClause returns the comma separated eager properties when at
// least one property is lazy. ok is false when every property is eager and
// the default is to select all. Panics when lazy properties exist but none are eager.
func (d *DeployBeanDescriptor) DefaultSelectClause() (clause string, ok bool) {
	var eager []string
	hasLazy := false
	for _, p := range d.PropertiesAll() {
		if p.Transient || p.IsAssocMany() {
			continue
		}
		if p.Lazy {
			hasLazy = true
		} else {
			eager = append(eager, p.Name)
		}
	}
	if !hasLazy {
		return "", false
	}
	if len(eager) == 0 {
		panic(fmt.Sprintf("Bean %s has no properties?", d.FullName()))
	}
	return strings.Join(eager, ","), true
}

// IsPrimaryKeyCompoundOrNonNumeric reports whether the id is unsuitable for
// identity or sequence generation
func (d *DeployBeanDescriptor) IsPrimaryKeyCompoundOrNonNumeric() bool {
	ids := d.PropertiesID()
	if len(ids) != 1 {
		return true
	}
	p := ids[0]
	if p.IsAssocOne() {
		return p.Compound
	}
	return !p.IsDbNumberType()
}

// SinglePrimaryKeyColumn returns the id column when the id is a single
// scalar property, otherwise ""
func (d *DeployBeanDescriptor) SinglePrimaryKeyColumn() string {
	ids := d.PropertiesID()
	if len(ids) == 1 && !ids[0].IsAssoc() {
		return ids[0].DbColumn
	}
	return ""
}

// PropertiesID returns the id properties. The list is computed on the first
// call and reused, so ids added afterwards are not included.
func (d *DeployBeanDescriptor) PropertiesID() []*DeployBeanProperty {
	if d.idProperties == nil {
		d.idProperties = make([]*DeployBeanProperty, 0, 2)
		for _, p := range d.PropertiesAll() {
			if p.ID {
				d.idProperties = append(d.idProperties, p)
			}
		}
	}
	return d.idProperties
}

// FindJoinToTable returns the assoc one property joining to the table
func (d *DeployBeanDescriptor) FindJoinToTable(tableName string) *DeployBeanProperty {
	for _, p := range d.PropertiesAssocOne() {
		if p.TableJoin != nil && strings.EqualFold(p.TableJoin.Table, tableName) {
			return p
		}
	}
	return nil
}

// PropertiesAssocOne returns the non embedded assoc one properties
func (d *DeployBeanDescriptor) PropertiesAssocOne() []*DeployBeanProperty {
	var list []*DeployBeanProperty
	for _, p := range d.PropertiesAll() {
		if p.IsAssocOne() && !p.Embedded {
			list = append(list, p)
		}
	}
	return list
}

// PropertiesAssocMany returns the assoc many properties
func (d *DeployBeanDescriptor) PropertiesAssocMany() []*DeployBeanProperty {
	var list []*DeployBeanProperty
	for _, p := range d.PropertiesAll() {
		if p.IsAssocMany() {
			list = append(list, p)
		}
	}
	return list
}

// PropertiesBase returns the scalar properties other than the id
func (d *DeployBeanDescriptor) PropertiesBase() []*DeployBeanProperty {
	var list []*DeployBeanProperty
	for _, p := range d.PropertiesAll() {
		if !p.IsAssoc() && !p.ID {
			list = append(list, p)
		}
	}
	return list
}

// CreateDeployBeanTable returns the table and id information used by other
// descriptors joining to this one
func (d *DeployBeanDescriptor) CreateDeployBeanTable() *DeployBeanTable {
	return &DeployBeanTable{
		BeanType:     d.beanType,
		BaseTable:    d.baseTable,
		IDProperties: d.PropertiesID(),
	}
}

// CheckInheritanceMapping validates the superclass chain when the bean does
// not use inheritance mapping
func (d *DeployBeanDescriptor) CheckInheritanceMapping() error {
	if d.inheritInfo != nil {
		return nil
	}
	return d.checkInheritance(d.beanType)
}

func (d *DeployBeanDescriptor) checkInheritance(class *BeanClass) error {
	parent := class.Super
	if parent == nil {
		return nil
	}
	switch parent.Kind {
	case ClassEntity:
		return fmt.Errorf("%w: checking %s and found %s that is an entity rather than a mapped superclass",
			ErrInheritance, d.FullName(), parent)
	case ClassMappedSuperclass:
		return d.checkInheritance(parent)
	default:
		return nil
	}
}

// ReadDocStore reads the doc store declaration
func (d *DeployBeanDescriptor) ReadDocStore(ds DocStore) error {
	d.docStore = &ds
	d.docStoreMapped = true
	d.docStoreQueueID = ds.QueueID
	d.docStoreIndexName = ds.IndexName
	d.docStoreIndexType = ds.IndexType
	d.docStorePersist = ds.Persist
	d.docStoreInsert = ds.Insert
	d.docStoreUpdate = ds.Update
	d.docStoreDelete = ds.Delete
	if ds.Doc != "" {
		pp, err := ParsePathProperties(ds.Doc)
		if err != nil {
			return fmt.Errorf("doc store paths of %s: %w", d.FullName(), err)
		}
		d.docStorePathProperties = pp
	}
	return nil
}

func (d *DeployBeanDescriptor) IsDocStoreMapped() bool { return d.docStoreMapped }
func (d *DeployBeanDescriptor) DocStore() *DocStore    { return d.docStore }
func (d *DeployBeanDescriptor) DocStorePathProperties() *PathProperties {
	return d.docStorePathProperties
}
func (d *DeployBeanDescriptor) DocStoreIndexName() string { return d.docStoreIndexName }
func (d *DeployBeanDescriptor) DocStoreIndexType() string { return d.docStoreIndexType }

// DocStoreQueueID returns the queue id, defaulting to the bean name
func (d *DeployBeanDescriptor) DocStoreQueueID() string {
	if d.docStoreQueueID == "" {
		return d.name
	}
	return d.docStoreQueueID
}

// DocStoreInsertEvent returns the doc store behaviour for inserts
func (d *DeployBeanDescriptor) DocStoreInsertEvent() DocStoreMode {
	return d.docStoreIndexEvent(d.docStoreInsert)
}

// DocStoreUpdateEvent returns the doc store behaviour for updates
func (d *DeployBeanDescriptor) DocStoreUpdateEvent() DocStoreMode {
	return d.docStoreIndexEvent(d.docStoreUpdate)
}

// DocStoreDeleteEvent returns the doc store behaviour for deletes
func (d *DeployBeanDescriptor) DocStoreDeleteEvent() DocStoreMode {
	return d.docStoreIndexEvent(d.docStoreDelete)
}

func (d *DeployBeanDescriptor) docStoreIndexEvent(mostSpecific DocStoreMode) DocStoreMode {
	if !d.docStoreMapped {
		return DocStoreIgnore
	}
	if mostSpecific != DocStoreDefault {
		return mostSpecific
	}
	if d.docStorePersist != DocStoreDefault {
		return d.docStorePersist
	}
	return d.config.DocStorePersist
}

// AddNamedQuery adds a named ORM query
func (d *DeployBeanDescriptor) AddNamedQuery(name, query string) {
	if d.namedQuery == nil {
		d.namedQuery = make(map[string]string)
	}
	d.namedQuery[name] = query
}

// NamedQuery returns the named ORM queries
func (d *DeployBeanDescriptor) NamedQuery() map[string]string {
	return d.namedQuery
}

// AddRawSQL adds a named raw SQL query
func (d *DeployBeanDescriptor) AddRawSQL(name string, raw RawSQL) {
	if d.namedRawSQL == nil {
		d.namedRawSQL = make(map[string]RawSQL)
	}
	d.namedRawSQL[name] = raw
}

// NamedRawSQL returns the named raw SQL queries
func (d *DeployBeanDescriptor) NamedRawSQL() map[string]RawSQL {
	return d.namedRawSQL
}

// IsBuilt reports whether Build has been called
func (d *DeployBeanDescriptor) IsBuilt() bool {
	return d.frozen
}
