package deploy

import "strings"

// PropertyKind distinguishes scalar properties from associations
type PropertyKind int

const (
	KindScalar PropertyKind = iota
	KindAssocOne
	KindAssocMany
)

// String returns the string representation of the property kind
func (k PropertyKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindAssocOne:
		return "assoc_one"
	case KindAssocMany:
		return "assoc_many"
	default:
		return "unknown"
	}
}

// DeployBeanProperty is the deployment information of one bean property
type DeployBeanProperty struct {
	Name      string
	DbColumn  string
	DbType    string // logical SQL type, e.g. "bigint", "varchar(255)"
	Kind      PropertyKind
	SortOrder int

	ID             bool
	Version        bool
	Embedded       bool
	Transient      bool
	Lazy           bool // excluded from the default select clause
	NotNull        bool
	Unique         bool
	NaturalKey     bool
	HistoryExclude bool
	DefaultValue   string
	DbComment      string

	// associations
	TargetType string // bean type name of the other side
	MappedBy   string // property on the target that owns an assoc-many
	Compound   bool   // assoc-one id that imports a compound key
	TableJoin  *TableJoin
}

var numberTypes = map[string]bool{
	"bigint":   true,
	"integer":  true,
	"int":      true,
	"smallint": true,
	"tinyint":  true,
	"decimal":  true,
	"numeric":  true,
	"float":    true,
	"double":   true,
	"real":     true,
}

// IsAssoc reports whether the property is an association
func (p *DeployBeanProperty) IsAssoc() bool {
	return p.Kind == KindAssocOne || p.Kind == KindAssocMany
}

// IsAssocOne reports whether the property is a ManyToOne or OneToOne association
func (p *DeployBeanProperty) IsAssocOne() bool {
	return p.Kind == KindAssocOne
}

// IsAssocMany reports whether the property is a OneToMany or ManyToMany association
func (p *DeployBeanProperty) IsAssocMany() bool {
	return p.Kind == KindAssocMany
}

// IsDbNumberType reports whether the column holds a numeric type
func (p *DeployBeanProperty) IsDbNumberType() bool {
	t := strings.ToLower(strings.TrimSpace(p.DbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return numberTypes[t]
}

// IsPersistable reports whether the property maps to a column of the base table
func (p *DeployBeanProperty) IsPersistable() bool {
	return !p.Transient && !p.IsAssocMany() && p.DbColumn != ""
}

// SetNaturalKey marks the property as the natural key used by the bean cache
func (p *DeployBeanProperty) SetNaturalKey() {
	p.NaturalKey = true
}
