package deploy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager registers deploy descriptors at startup and serves the built
// descriptors concurrently afterwards
type Manager struct {
	mu      sync.RWMutex
	config  *Config
	naming  NamingConvention
	logger  *zap.Logger
	deploy  map[string]*DeployBeanDescriptor
	order   []string
	built   map[string]*BeanDescriptor
	isBuilt bool
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNamingConvention replaces the underscore naming convention
func WithNamingConvention(n NamingConvention) ManagerOption {
	return func(m *Manager) {
		m.naming = n
	}
}

// NewManager creates an empty manager
func NewManager(config *Config, opts ...ManagerOption) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	m := &Manager{
		config: config,
		naming: UnderscoreNamingConvention{Pluralize: config.PluralizeTables},
		logger: zap.NewNop(),
		deploy: make(map[string]*DeployBeanDescriptor),
		built:  make(map[string]*BeanDescriptor),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the deployment settings
func (m *Manager) Config() *Config {
	return m.config
}

// Naming returns the naming convention
func (m *Manager) Naming() NamingConvention {
	return m.naming
}

// NewDescriptor creates a descriptor using the manager's settings. It is not registered.
func (m *Manager) NewDescriptor(beanType *BeanClass) *DeployBeanDescriptor {
	return NewDeployBeanDescriptor(beanType, m.config)
}

// Register adds a deploy descriptor
func (m *Manager) Register(d *DeployBeanDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.deploy[d.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBean, d.Name())
	}
	m.deploy[d.Name()] = d
	m.order = append(m.order, d.Name())
	return nil
}

// Deploy returns the registered deploy descriptor
func (m *Manager) Deploy(name string) (*DeployBeanDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deploy[name]
	return d, ok
}

// Build checks inheritance, applies naming defaults, resolves association
// columns and builds every descriptor. An error aborts startup.
func (m *Manager) Build() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		d := m.deploy[name]
		if err := d.CheckInheritanceMapping(); err != nil {
			return err
		}
		m.applyDefaults(d)
	}
	for _, name := range m.order {
		if err := m.resolveAssociations(m.deploy[name]); err != nil {
			return err
		}
	}

	built := make(map[string]*BeanDescriptor, len(m.order))
	for _, name := range m.order {
		d := m.deploy[name]
		built[name] = d.Build()
		m.logger.Debug("bean descriptor built",
			zap.String("bean", name),
			zap.String("table", d.BaseTable()),
			zap.Int("properties", len(d.props)),
		)
	}
	m.built = built
	m.isBuilt = true

	m.logger.Info("deployed beans", zap.Int("count", len(built)))
	return nil
}

func (m *Manager) applyDefaults(d *DeployBeanDescriptor) {
	if d.IsBaseTableType() && d.BaseTable() == "" && !d.IsAbstract() {
		d.SetBaseTable(m.naming.TableName(d.Name()), m.config.AsOfSuffix, m.config.VersionsBetweenSuffix)
	}
	for _, p := range d.PropertiesAll() {
		if p.DbColumn == "" && !p.Transient && p.Kind == KindScalar {
			p.DbColumn = m.naming.ColumnName(p.Name)
		}
	}
	if d.IdType() == IdTypeSequence && d.SequenceName() == "" && d.idGenerator == nil {
		if col := d.SinglePrimaryKeyColumn(); col != "" {
			d.sequenceName = m.naming.SequenceName(d.BaseTable(), col)
		}
	}
	if d.IdType() == IdTypeAuto && d.SinglePrimaryKeyColumn() != "" && !d.IsPrimaryKeyCompoundOrNonNumeric() {
		d.SetIdType(IdTypeIdentity)
		d.SetIdTypePlatformDefault()
	}
}

func (m *Manager) resolveAssociations(d *DeployBeanDescriptor) error {
	for _, p := range d.PropertiesAll() {
		if !p.IsAssoc() {
			continue
		}
		target, ok := m.deploy[p.TargetType]
		if !ok {
			return fmt.Errorf("%w: %s.%s targets %s", ErrUnknownTarget, d.Name(), p.Name, p.TargetType)
		}
		if !p.IsAssocOne() || p.Embedded {
			continue
		}
		table := target.CreateDeployBeanTable()
		if len(table.IDProperties) != 1 {
			p.Compound = true
			continue
		}
		targetID := table.IDProperties[0]
		if p.DbColumn == "" {
			p.DbColumn = m.naming.ForeignKeyColumn(p.Name, targetID.DbColumn)
		}
		if p.DbType == "" {
			p.DbType = targetID.DbType
		}
		if p.TableJoin == nil {
			p.TableJoin = &TableJoin{
				Table:   table.BaseTable,
				Type:    joinTypeFor(p),
				Columns: []JoinColumn{{Local: p.DbColumn, Foreign: targetID.DbColumn}},
			}
		}
	}
	return nil
}

func joinTypeFor(p *DeployBeanProperty) JoinType {
	if p.NotNull {
		return JoinInner
	}
	return JoinOuter
}

// Get returns the built descriptor of a bean
func (m *Manager) Get(name string) (*BeanDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.built[name]
	return d, ok
}

// Lookup returns the built descriptor or an ErrUnknownBean error
func (m *Manager) Lookup(name string) (*BeanDescriptor, error) {
	if d, ok := m.Get(name); ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBean, name)
}

// Descriptors returns the built descriptors in registration order
func (m *Manager) Descriptors() []*BeanDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*BeanDescriptor, 0, len(m.order))
	for _, name := range m.order {
		if d, ok := m.built[name]; ok {
			result = append(result, d)
		}
	}
	return result
}

// List returns the registered bean names in registration order
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Count returns the number of registered beans
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// IsBuilt reports whether Build has completed
func (m *Manager) IsBuilt() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isBuilt
}
