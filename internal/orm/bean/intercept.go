// Package bean defines entity beans and the intercept that tracks their
// loaded state, property changes and lazy loading.
package bean

import (
	"context"
	"fmt"
	"sync"

	"github.com/conduit-lang/ebean/internal/orm/tracking"
)

// EntityBean is implemented by every bean managed by the ORM
type EntityBean interface {
	EbeanIntercept() *Intercept
}

// BeanLoader lazy loads the unloaded properties of a bean.
// The batch buffer a bean was loaded into acts as its loader.
type BeanLoader interface {
	LoadBean(ctx context.Context, ebi *Intercept, property string) error
}

// State is the persistence state of a bean
type State int

const (
	StateNew State = iota
	StateReference
	StateLoaded
	StateDeleted
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReference:
		return "reference"
	case StateLoaded:
		return "loaded"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Intercept holds the ORM state of one bean
type Intercept struct {
	mu       sync.RWMutex
	owner    EntityBean
	beanType string
	state    State
	loaded   map[string]bool
	values   *tracking.ChangeTracker

	loader           BeanLoader
	lazyLoadProperty string
	lazyLoadFailure  bool
	failureID        interface{}

	pc *PersistenceContext
}

// NewIntercept creates the intercept for a new bean of the given type
func NewIntercept(owner EntityBean, beanType string) *Intercept {
	return &Intercept{
		owner:    owner,
		beanType: beanType,
		loaded:   make(map[string]bool),
		values:   tracking.NewChangeTracker(),
	}
}

// Owner returns the bean this intercept belongs to
func (ebi *Intercept) Owner() EntityBean {
	return ebi.owner
}

// BeanType returns the bean type name
func (ebi *Intercept) BeanType() string {
	return ebi.beanType
}

// State returns the persistence state
func (ebi *Intercept) State() State {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	return ebi.state
}

// IsNew reports whether the bean has not been inserted or loaded
func (ebi *Intercept) IsNew() bool {
	return ebi.State() == StateNew
}

// IsReference reports whether only the id of the bean is loaded
func (ebi *Intercept) IsReference() bool {
	return ebi.State() == StateReference
}

// SetReference marks the bean as a reference holding only its id
func (ebi *Intercept) SetReference() {
	ebi.mu.Lock()
	defer ebi.mu.Unlock()
	ebi.state = StateReference
}

// SetLoaded marks the bean as loaded and makes the current values the change baseline
func (ebi *Intercept) SetLoaded() {
	ebi.mu.Lock()
	ebi.state = StateLoaded
	ebi.mu.Unlock()
	ebi.values.Reset()
}

// SetDeleted marks the bean as deleted
func (ebi *Intercept) SetDeleted() {
	ebi.mu.Lock()
	defer ebi.mu.Unlock()
	ebi.state = StateDeleted
}

// SetLoadedProperty sets a value read from the database
func (ebi *Intercept) SetLoadedProperty(property string, value interface{}) {
	ebi.mu.Lock()
	ebi.loaded[property] = true
	ebi.mu.Unlock()
	ebi.values.Load(property, value)
}

// IsLoadedProperty reports whether the property holds a value
func (ebi *Intercept) IsLoadedProperty(property string) bool {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	return ebi.loaded[property]
}

// LoadedProperties returns the names of the loaded properties
func (ebi *Intercept) LoadedProperties() []string {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	props := make([]string, 0, len(ebi.loaded))
	for p := range ebi.loaded {
		props = append(props, p)
	}
	return props
}

// Value returns the in-memory value of a property without lazy loading
func (ebi *Intercept) Value(property string) interface{} {
	v, _ := ebi.values.Value(property)
	return v
}

// Get returns a property value, lazy loading the bean first when the property
// has not been loaded and a loader is attached
func (ebi *Intercept) Get(ctx context.Context, property string) (interface{}, error) {
	if err := ebi.preGetter(ctx, property); err != nil {
		return nil, err
	}
	return ebi.Value(property), nil
}

func (ebi *Intercept) preGetter(ctx context.Context, property string) error {
	ebi.mu.RLock()
	loaded := ebi.loaded[property]
	needsLoad := !loaded &&
		ebi.loader != nil &&
		!ebi.lazyLoadFailure &&
		ebi.state != StateNew
	ebi.mu.RUnlock()

	if loaded {
		return nil
	}
	if needsLoad {
		if err := ebi.LoadBean(ctx, property); err != nil {
			return err
		}
	}
	return ebi.lazyLoadError(property)
}

// lazyLoadError reports a property left unloaded by a failed lazy load
func (ebi *Intercept) lazyLoadError(property string) error {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	if !ebi.lazyLoadFailure || ebi.loaded[property] {
		return nil
	}
	return fmt.Errorf("%w: %s id %v reading %s", ErrLazyLoadFailure, ebi.beanType, ebi.failureID, property)
}

// LoadBean invokes the attached loader for the given property
func (ebi *Intercept) LoadBean(ctx context.Context, property string) error {
	ebi.mu.Lock()
	loader := ebi.loader
	ebi.lazyLoadProperty = property
	ebi.mu.Unlock()

	if loader == nil {
		return ErrNoBeanLoader
	}
	return loader.LoadBean(ctx, ebi, property)
}

// Set assigns a property value, recording the change against the loaded value
func (ebi *Intercept) Set(property string, value interface{}) {
	ebi.mu.Lock()
	ebi.loaded[property] = true
	ebi.mu.Unlock()
	ebi.values.Set(property, value)
}

// DirtyProperties returns the properties changed since the bean was loaded
func (ebi *Intercept) DirtyProperties() []string {
	return ebi.values.ChangedProperties()
}

// IsDirty reports whether any property has changed
func (ebi *Intercept) IsDirty() bool {
	return ebi.values.HasChanges()
}

// OriginalValue returns the loaded value of a property
func (ebi *Intercept) OriginalValue(property string) interface{} {
	return ebi.values.PreviousValue(property)
}

// Values returns a copy of the current property values
func (ebi *Intercept) Values() map[string]interface{} {
	return ebi.values.Snapshot()
}

// SetBeanLoader attaches the loader used for lazy loading
func (ebi *Intercept) SetBeanLoader(loader BeanLoader) {
	ebi.mu.Lock()
	defer ebi.mu.Unlock()
	ebi.loader = loader
}

// BeanLoader returns the attached loader, or nil
func (ebi *Intercept) BeanLoader() BeanLoader {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	return ebi.loader
}

// LazyLoadProperty returns the property that last triggered a lazy load
func (ebi *Intercept) LazyLoadProperty() string {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	return ebi.lazyLoadProperty
}

// SetLazyLoadFailure marks the bean as not found when lazy loading by id.
// Further getters on unloaded properties do not attempt another load.
func (ebi *Intercept) SetLazyLoadFailure(id interface{}) {
	ebi.mu.Lock()
	defer ebi.mu.Unlock()
	ebi.lazyLoadFailure = true
	ebi.failureID = id
}

// IsLazyLoadFailure reports whether a lazy load failed to find the bean
func (ebi *Intercept) IsLazyLoadFailure() bool {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	return ebi.lazyLoadFailure
}

// LazyLoadFailureID returns the id that failed to lazy load
func (ebi *Intercept) LazyLoadFailureID() interface{} {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	return ebi.failureID
}

// SetPersistenceContext sets the persistence context the bean was loaded into
func (ebi *Intercept) SetPersistenceContext(pc *PersistenceContext) {
	ebi.mu.Lock()
	defer ebi.mu.Unlock()
	ebi.pc = pc
}

// PersistenceContext returns the persistence context, or nil
func (ebi *Intercept) PersistenceContext() *PersistenceContext {
	ebi.mu.RLock()
	defer ebi.mu.RUnlock()
	return ebi.pc
}
