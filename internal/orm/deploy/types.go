package deploy

import (
	"fmt"
	"strings"
	"time"
)

// EntityType is the kind of mapping a bean type has
type EntityType int

const (
	EntityORM EntityType = iota
	EntityEmbedded
	EntityView
	EntitySQL
)

// String returns the string representation of the entity type
func (e EntityType) String() string {
	switch e {
	case EntityORM:
		return "orm"
	case EntityEmbedded:
		return "embedded"
	case EntityView:
		return "view"
	case EntitySQL:
		return "sql"
	default:
		return "unknown"
	}
}

// ParseEntityType converts a string to an EntityType
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(s) {
	case "", "orm", "entity":
		return EntityORM, nil
	case "embedded":
		return EntityEmbedded, nil
	case "view":
		return EntityView, nil
	case "sql":
		return EntitySQL, nil
	default:
		return 0, fmt.Errorf("unknown entity type: %s", s)
	}
}

// IdType is the strategy used to assign id values
type IdType int

const (
	IdTypeAuto IdType = iota
	IdTypeIdentity
	IdTypeSequence
	IdTypeGenerator
	IdTypeExternal
)

// String returns the string representation of the id type
func (t IdType) String() string {
	switch t {
	case IdTypeAuto:
		return "auto"
	case IdTypeIdentity:
		return "identity"
	case IdTypeSequence:
		return "sequence"
	case IdTypeGenerator:
		return "generator"
	case IdTypeExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ParseIdType converts a string to an IdType
func ParseIdType(s string) (IdType, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return IdTypeAuto, nil
	case "identity":
		return IdTypeIdentity, nil
	case "sequence":
		return IdTypeSequence, nil
	case "generator":
		return IdTypeGenerator, nil
	case "external":
		return IdTypeExternal, nil
	default:
		return 0, fmt.Errorf("unknown id type: %s", s)
	}
}

// ConcurrencyMode is the optimistic locking strategy
type ConcurrencyMode int

const (
	ConcurrencyNone ConcurrencyMode = iota
	ConcurrencyVersion
	ConcurrencyAll
)

// String returns the string representation of the concurrency mode
func (c ConcurrencyMode) String() string {
	switch c {
	case ConcurrencyNone:
		return "none"
	case ConcurrencyVersion:
		return "version"
	case ConcurrencyAll:
		return "all"
	default:
		return "unknown"
	}
}

// DocStoreMode is the doc store indexing behaviour for a persist event
type DocStoreMode int

const (
	DocStoreDefault DocStoreMode = iota
	DocStoreIgnore
	DocStoreQueue
	DocStoreUpdate
)

// String returns the string representation of the doc store mode
func (m DocStoreMode) String() string {
	switch m {
	case DocStoreDefault:
		return "default"
	case DocStoreIgnore:
		return "ignore"
	case DocStoreQueue:
		return "queue"
	case DocStoreUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// ParseDocStoreMode converts a string to a DocStoreMode
func ParseDocStoreMode(s string) (DocStoreMode, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return DocStoreDefault, nil
	case "ignore":
		return DocStoreIgnore, nil
	case "queue":
		return DocStoreQueue, nil
	case "update":
		return DocStoreUpdate, nil
	default:
		return 0, fmt.Errorf("unknown doc store mode: %s", s)
	}
}

// ClassKind is the mapping marker on a bean class
type ClassKind int

const (
	ClassPlain ClassKind = iota
	ClassEntity
	ClassMappedSuperclass
)

// BeanClass describes a bean type and its superclass chain
type BeanClass struct {
	Name     string // short name, e.g. "Customer"
	FullName string // qualified name, e.g. "app.model.Customer"
	Abstract bool
	Kind     ClassKind
	Super    *BeanClass
}

// String returns the full name of the class
func (c *BeanClass) String() string {
	if c.FullName != "" {
		return c.FullName
	}
	return c.Name
}

// TableName is a possibly qualified table name
type TableName struct {
	Catalog string
	Schema  string
	Name    string
}

// ParseTableName splits "catalog.schema.table" into its parts
func ParseTableName(qualified string) TableName {
	parts := strings.Split(qualified, ".")
	switch len(parts) {
	case 3:
		return TableName{Catalog: parts[0], Schema: parts[1], Name: parts[2]}
	case 2:
		return TableName{Schema: parts[0], Name: parts[1]}
	default:
		return TableName{Name: qualified}
	}
}

// QualifiedName returns the table name with its schema and catalog
func (t TableName) QualifiedName() string {
	var parts []string
	if t.Catalog != "" {
		parts = append(parts, t.Catalog)
	}
	if t.Schema != "" {
		parts = append(parts, t.Schema)
	}
	return strings.Join(append(parts, t.Name), ".")
}

// IsEmpty reports whether no table name is set
func (t TableName) IsEmpty() bool {
	return t.Name == ""
}

// Cache is the L2 cache declaration for a bean type
type Cache struct {
	Enabled    bool
	ReadOnly   bool
	NaturalKey string
	TTL        time.Duration
}

// CacheOptions are the resolved L2 cache settings
type CacheOptions struct {
	UseCache   bool
	ReadOnly   bool
	NaturalKey string
	TTL        time.Duration
}

// NoCaching disables the L2 cache
var NoCaching = CacheOptions{}

// IndexDefinition is a table index declared on a bean type
type IndexDefinition struct {
	Name    string
	Columns []string
	Unique  bool
}

// InheritInfo holds single table inheritance mapping
type InheritInfo struct {
	Root                string
	DiscriminatorColumn string
	DiscriminatorValue  string
}

// DocStore is the doc store declaration for a bean type
type DocStore struct {
	QueueID   string
	IndexName string
	IndexType string
	Doc       string // path properties to include, e.g. "name,customer(id,name)"
	Persist   DocStoreMode
	Insert    DocStoreMode
	Update    DocStoreMode
	Delete    DocStoreMode
}

// RawSQL is a named raw SQL query with its column to property mapping
type RawSQL struct {
	SQL           string
	ColumnMapping map[string]string
}

// JoinType is the SQL join used for a table join
type JoinType int

const (
	JoinInner JoinType = iota
	JoinOuter
)

// JoinColumn pairs a local and foreign column
type JoinColumn struct {
	Local   string
	Foreign string
}

// TableJoin is a join from the base table to another table
type TableJoin struct {
	Table   string
	Type    JoinType
	Columns []JoinColumn
}

// DeployBeanTable is the id and table information other descriptors need
// to join to this bean type
type DeployBeanTable struct {
	BeanType     *BeanClass
	BaseTable    string
	IDProperties []*DeployBeanProperty
}
