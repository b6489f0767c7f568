// Package tracking records property changes on entity beans.
// It backs the bean intercept so updates can be limited to the changed properties.
package tracking

import (
	"reflect"
	"sort"
	"sync"
)

// PropertyChange represents a change to a single bean property
type PropertyChange struct {
	Property string
	OldValue interface{}
	NewValue interface{}
}

// ChangeTracker holds the loaded (original) and current property values of a bean
type ChangeTracker struct {
	mu       sync.RWMutex
	original map[string]interface{}
	current  map[string]interface{}
	changes  map[string]*PropertyChange
}

// NewChangeTracker creates an empty tracker
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		original: make(map[string]interface{}),
		current:  make(map[string]interface{}),
		changes:  make(map[string]*PropertyChange),
	}
}

// deepCopyValue copies slices and maps so later mutation of the caller's value
// does not alter the recorded original
func deepCopyValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Slice:
		if b, ok := v.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			return cp
		}
		cp := reflect.MakeSlice(val.Type(), val.Len(), val.Len())
		reflect.Copy(cp, val)
		return cp.Interface()
	case reflect.Map:
		cp := reflect.MakeMapWithSize(val.Type(), val.Len())
		for _, key := range val.MapKeys() {
			cp.SetMapIndex(key, val.MapIndex(key))
		}
		return cp.Interface()
	default:
		return v
	}
}

// deepEqual compares two values for equality, handling nil
func deepEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Load records a value read from the database. Loaded values are the baseline
// for change detection and never count as changes themselves.
func (ct *ChangeTracker) Load(property string, value interface{}) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.original[property] = deepCopyValue(value)
	ct.current[property] = value
	delete(ct.changes, property)
}

// Set updates a property value and recomputes its change status
func (ct *ChangeTracker) Set(property string, value interface{}) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.current[property] = value

	oldValue, hadOldValue := ct.original[property]
	if !hadOldValue || !deepEqual(oldValue, value) {
		ct.changes[property] = &PropertyChange{
			Property: property,
			OldValue: oldValue,
			NewValue: value,
		}
	} else {
		// reverted to the loaded value
		delete(ct.changes, property)
	}
}

// Value returns the current value of a property and whether it has one
func (ct *ChangeTracker) Value(property string) (interface{}, bool) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	v, ok := ct.current[property]
	return v, ok
}

// PreviousValue returns the loaded value of a property.
// Returns nil if the property was never loaded.
func (ct *ChangeTracker) PreviousValue(property string) interface{} {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.original[property]
}

// Changed returns true if the property has changed since it was loaded
func (ct *ChangeTracker) Changed(property string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.changes[property]
	return ok
}

// ChangedProperties returns the changed property names in sorted order
func (ct *ChangeTracker) ChangedProperties() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	props := make([]string, 0, len(ct.changes))
	for p := range ct.changes {
		props = append(props, p)
	}
	sort.Strings(props)
	return props
}

// GetChange returns the change for a property, or nil if unchanged
func (ct *ChangeTracker) GetChange(property string) *PropertyChange {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.changes[property]
}

// HasChanges returns true if any property has changed
func (ct *ChangeTracker) HasChanges() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.changes) > 0
}

// Reset makes the current values the new baseline.
// Called after a successful insert or update.
func (ct *ChangeTracker) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.original = make(map[string]interface{}, len(ct.current))
	for k, v := range ct.current {
		ct.original[k] = deepCopyValue(v)
	}
	ct.changes = make(map[string]*PropertyChange)
}

// Snapshot returns a copy of the current values
func (ct *ChangeTracker) Snapshot() map[string]interface{} {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make(map[string]interface{}, len(ct.current))
	for k, v := range ct.current {
		result[k] = v
	}
	return result
}
