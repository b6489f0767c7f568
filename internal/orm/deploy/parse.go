package deploy

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Deployment file layout. Lists are used rather than maps for anything keyed
// by name because viper lower cases map keys.

type classDef struct {
	Name       string        `mapstructure:"name"`
	FullName   string        `mapstructure:"full_name"`
	Kind       string        `mapstructure:"kind"`
	Abstract   bool          `mapstructure:"abstract"`
	Extends    string        `mapstructure:"extends"`
	Properties []propertyDef `mapstructure:"properties"`
}

type propertyDef struct {
	Name           string `mapstructure:"name"`
	Column         string `mapstructure:"column"`
	Type           string `mapstructure:"type"`
	Kind           string `mapstructure:"kind"`
	Target         string `mapstructure:"target"`
	MappedBy       string `mapstructure:"mapped_by"`
	SortOrder      int    `mapstructure:"sort_order"`
	ID             bool   `mapstructure:"id"`
	Version        bool   `mapstructure:"version"`
	Embedded       bool   `mapstructure:"embedded"`
	Transient      bool   `mapstructure:"transient"`
	Lazy           bool   `mapstructure:"lazy"`
	NotNull        bool   `mapstructure:"not_null"`
	Unique         bool   `mapstructure:"unique"`
	HistoryExclude bool   `mapstructure:"history_exclude"`
	Default        string `mapstructure:"default"`
	Comment        string `mapstructure:"comment"`
}

type entityDef struct {
	Class classDef `mapstructure:",squash"`

	Type              string       `mapstructure:"type"`
	Table             string       `mapstructure:"table"`
	View              *viewDef     `mapstructure:"view"`
	IDType            string       `mapstructure:"id_type"`
	IDGenerator       string       `mapstructure:"id_generator"`
	Sequence          *sequenceDef `mapstructure:"sequence"`
	Concurrency       string       `mapstructure:"concurrency"`
	UpdateChangesOnly bool         `mapstructure:"update_changes_only"`
	History           bool         `mapstructure:"history"`
	ReadAuditing      bool         `mapstructure:"read_auditing"`
	Draftable         bool         `mapstructure:"draftable"`
	DraftableElement  bool         `mapstructure:"draftable_element"`
	Comment           string       `mapstructure:"comment"`
	Cache             *cacheDef    `mapstructure:"cache"`
	DocStore          *docStoreDef `mapstructure:"doc_store"`
	Inherit           *inheritDef  `mapstructure:"inherit"`
	Indexes           []indexDef   `mapstructure:"indexes"`
	NamedQueries      []namedDef   `mapstructure:"named_queries"`
	RawSQL            []rawSQLDef  `mapstructure:"raw_sql"`
}

type viewDef struct {
	Name      string   `mapstructure:"name"`
	DependsOn []string `mapstructure:"depends_on"`
}

type sequenceDef struct {
	Name           string `mapstructure:"name"`
	InitialValue   int    `mapstructure:"initial_value"`
	AllocationSize int    `mapstructure:"allocation_size"`
}

type cacheDef struct {
	Enabled    *bool         `mapstructure:"enabled"`
	ReadOnly   bool          `mapstructure:"read_only"`
	NaturalKey string        `mapstructure:"natural_key"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type docStoreDef struct {
	QueueID   string `mapstructure:"queue_id"`
	IndexName string `mapstructure:"index_name"`
	IndexType string `mapstructure:"index_type"`
	Doc       string `mapstructure:"doc"`
	Persist   string `mapstructure:"persist"`
	Insert    string `mapstructure:"insert"`
	Update    string `mapstructure:"update"`
	Delete    string `mapstructure:"delete"`
}

type inheritDef struct {
	Root   string `mapstructure:"root"`
	Column string `mapstructure:"column"`
	Value  string `mapstructure:"value"`
}

type indexDef struct {
	Name    string   `mapstructure:"name"`
	Columns []string `mapstructure:"columns"`
	Unique  bool     `mapstructure:"unique"`
}

type namedDef struct {
	Name  string `mapstructure:"name"`
	Query string `mapstructure:"query"`
}

type columnMappingDef struct {
	Column   string `mapstructure:"column"`
	Property string `mapstructure:"property"`
}

type rawSQLDef struct {
	Name    string             `mapstructure:"name"`
	SQL     string             `mapstructure:"sql"`
	Columns []columnMappingDef `mapstructure:"columns"`
}

type deploymentDef struct {
	Superclasses []classDef  `mapstructure:"superclasses"`
	Entities     []entityDef `mapstructure:"entities"`
}

// ParseDeployment reads a YAML deployment file into deploy descriptors
func ParseDeployment(path string, config *Config) ([]*DeployBeanDescriptor, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read deployment %s: %w", path, err)
	}
	return decodeDeployment(v, config)
}

// ParseDeploymentReader reads YAML deployment from r
func ParseDeploymentReader(r io.Reader, config *Config) ([]*DeployBeanDescriptor, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to read deployment: %w", err)
	}
	return decodeDeployment(v, config)
}

// LoadDeployment parses the deployment file and registers every descriptor with the manager
func LoadDeployment(m *Manager, path string) error {
	descriptors, err := ParseDeployment(path, m.Config())
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		if err := m.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func decodeDeployment(v *viper.Viper, config *Config) ([]*DeployBeanDescriptor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	var def deploymentDef
	if err := v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployment: %w", err)
	}

	p := &parser{
		config:  config,
		classes: make(map[string]*BeanClass),
		defs:    make(map[string]*classDef),
	}
	for i := range def.Superclasses {
		if err := p.declare(&def.Superclasses[i], ClassMappedSuperclass); err != nil {
			return nil, err
		}
	}
	for i := range def.Entities {
		if err := p.declare(&def.Entities[i].Class, ClassEntity); err != nil {
			return nil, err
		}
	}
	for name, cd := range p.defs {
		if cd.Extends == "" {
			continue
		}
		parent, ok := p.classes[cd.Extends]
		if !ok {
			return nil, fmt.Errorf("%w: %s extends unknown class %s", ErrInvalidDeployment, name, cd.Extends)
		}
		p.classes[name].Super = parent
	}

	descriptors := make([]*DeployBeanDescriptor, 0, len(def.Entities))
	for i := range def.Entities {
		d, err := p.entity(&def.Entities[i])
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

type parser struct {
	config  *Config
	classes map[string]*BeanClass
	defs    map[string]*classDef
}

func (p *parser) declare(cd *classDef, defaultKind ClassKind) error {
	if cd.Name == "" {
		return fmt.Errorf("%w: class without a name", ErrInvalidDeployment)
	}
	if _, exists := p.classes[cd.Name]; exists {
		return fmt.Errorf("%w: %s is declared twice", ErrInvalidDeployment, cd.Name)
	}
	kind := defaultKind
	switch strings.ToLower(cd.Kind) {
	case "":
	case "entity":
		kind = ClassEntity
	case "mapped_superclass":
		kind = ClassMappedSuperclass
	case "plain":
		kind = ClassPlain
	default:
		return fmt.Errorf("%w: unknown class kind %q on %s", ErrInvalidDeployment, cd.Kind, cd.Name)
	}
	p.classes[cd.Name] = &BeanClass{
		Name:     cd.Name,
		FullName: cd.FullName,
		Abstract: cd.Abstract,
		Kind:     kind,
	}
	p.defs[cd.Name] = cd
	return nil
}

// inherited returns the properties declared on mapped superclasses, root first
func (p *parser) inherited(class *BeanClass) []propertyDef {
	var chain []*BeanClass
	for c := class.Super; c != nil && c.Kind == ClassMappedSuperclass; c = c.Super {
		chain = append([]*BeanClass{c}, chain...)
	}
	var props []propertyDef
	for _, c := range chain {
		props = append(props, p.defs[c.Name].Properties...)
	}
	return props
}

func (p *parser) entity(ed *entityDef) (*DeployBeanDescriptor, error) {
	class := p.classes[ed.Class.Name]
	d := NewDeployBeanDescriptor(class, p.config)
	wrap := func(err error) error {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDeployment, ed.Class.Name, err)
	}

	entityType, err := ParseEntityType(ed.Type)
	if err != nil {
		return nil, wrap(err)
	}
	d.SetEntityType(entityType)

	for _, pd := range append(p.inherited(class), ed.Class.Properties...) {
		prop, err := property(pd)
		if err != nil {
			return nil, wrap(err)
		}
		d.AddBeanProperty(prop)
	}

	// draftable before the base table so the draft table is derived
	if ed.Draftable {
		d.SetDraftable()
	}
	if ed.DraftableElement {
		d.SetDraftableElement()
	}
	if ed.View != nil {
		d.SetView(ed.View.Name, ed.View.DependsOn)
	} else if ed.Table != "" {
		d.SetBaseTable(ParseTableName(ed.Table), p.config.AsOfSuffix, p.config.VersionsBetweenSuffix)
	}

	if ed.History {
		d.SetHistorySupport()
	}
	if ed.ReadAuditing {
		d.SetReadAuditing()
	}
	d.SetDbComment(ed.Comment)
	d.SetUpdateChangesOnly(ed.UpdateChangesOnly)

	switch strings.ToLower(ed.Concurrency) {
	case "":
	case "none":
		d.SetConcurrencyMode(ConcurrencyNone)
	case "version":
		d.SetConcurrencyMode(ConcurrencyVersion)
	case "all":
		d.SetConcurrencyMode(ConcurrencyAll)
	default:
		return nil, wrap(fmt.Errorf("unknown concurrency mode %q", ed.Concurrency))
	}

	idType, err := ParseIdType(ed.IDType)
	if err != nil {
		return nil, wrap(err)
	}
	d.SetIdType(idType)
	if ed.Sequence != nil {
		d.sequenceName = ed.Sequence.Name
		d.SetSequenceInitialValue(ed.Sequence.InitialValue)
		d.SetSequenceAllocationSize(ed.Sequence.AllocationSize)
	}
	switch ed.IDGenerator {
	case "":
	case AutoUUID, "uuid":
		d.SetUUIDGenerator()
	default:
		d.SetIdGeneratorName(ed.IDGenerator)
	}

	if ed.Cache != nil {
		enabled := ed.Cache.Enabled == nil || *ed.Cache.Enabled
		d.SetCache(Cache{
			Enabled:    enabled,
			ReadOnly:   ed.Cache.ReadOnly,
			NaturalKey: ed.Cache.NaturalKey,
			TTL:        ed.Cache.TTL,
		})
	}

	if ed.DocStore != nil {
		ds, err := docStore(ed.DocStore)
		if err != nil {
			return nil, wrap(err)
		}
		if err := d.ReadDocStore(ds); err != nil {
			return nil, wrap(err)
		}
	}

	if ed.Inherit != nil {
		d.SetInheritInfo(&InheritInfo{
			Root:                ed.Inherit.Root,
			DiscriminatorColumn: ed.Inherit.Column,
			DiscriminatorValue:  ed.Inherit.Value,
		})
	}
	for _, idx := range ed.Indexes {
		d.AddIndex(IndexDefinition{Name: idx.Name, Columns: idx.Columns, Unique: idx.Unique})
	}
	for _, nq := range ed.NamedQueries {
		d.AddNamedQuery(nq.Name, nq.Query)
	}
	for _, raw := range ed.RawSQL {
		mapping := make(map[string]string, len(raw.Columns))
		for _, c := range raw.Columns {
			mapping[c.Column] = c.Property
		}
		d.AddRawSQL(raw.Name, RawSQL{SQL: raw.SQL, ColumnMapping: mapping})
	}
	return d, nil
}

func property(pd propertyDef) (*DeployBeanProperty, error) {
	if pd.Name == "" {
		return nil, fmt.Errorf("property without a name")
	}
	prop := &DeployBeanProperty{
		Name:           pd.Name,
		DbColumn:       pd.Column,
		DbType:         pd.Type,
		SortOrder:      pd.SortOrder,
		ID:             pd.ID,
		Version:        pd.Version,
		Embedded:       pd.Embedded,
		Transient:      pd.Transient,
		Lazy:           pd.Lazy,
		NotNull:        pd.NotNull || pd.ID,
		Unique:         pd.Unique,
		HistoryExclude: pd.HistoryExclude,
		DefaultValue:   pd.Default,
		DbComment:      pd.Comment,
		TargetType:     pd.Target,
		MappedBy:       pd.MappedBy,
	}
	switch strings.ToLower(pd.Kind) {
	case "", "scalar":
		prop.Kind = KindScalar
	case "assoc_one", "many_to_one", "one_to_one":
		prop.Kind = KindAssocOne
	case "assoc_many", "one_to_many", "many_to_many":
		prop.Kind = KindAssocMany
	default:
		return nil, fmt.Errorf("unknown property kind %q on %s", pd.Kind, pd.Name)
	}
	if prop.IsAssoc() && prop.TargetType == "" {
		return nil, fmt.Errorf("association %s has no target", pd.Name)
	}
	return prop, nil
}

func docStore(def *docStoreDef) (DocStore, error) {
	ds := DocStore{
		QueueID:   def.QueueID,
		IndexName: def.IndexName,
		IndexType: def.IndexType,
		Doc:       def.Doc,
	}
	var err error
	if ds.Persist, err = ParseDocStoreMode(def.Persist); err != nil {
		return ds, err
	}
	if ds.Insert, err = ParseDocStoreMode(def.Insert); err != nil {
		return ds, err
	}
	if ds.Update, err = ParseDocStoreMode(def.Update); err != nil {
		return ds, err
	}
	if ds.Delete, err = ParseDocStoreMode(def.Delete); err != nil {
		return ds, err
	}
	return ds, nil
}
