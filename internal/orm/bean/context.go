package bean

import (
	"fmt"
	"sync"
)

// PersistenceContext holds at most one bean instance per type and id.
// Loading the same row twice within a context yields the same instance.
type PersistenceContext struct {
	mu    sync.RWMutex
	beans map[string]map[interface{}]EntityBean
}

// NewPersistenceContext creates an empty persistence context
func NewPersistenceContext() *PersistenceContext {
	return &PersistenceContext{beans: make(map[string]map[interface{}]EntityBean)}
}

// NormalizeID converts driver specific id representations to a comparable key
func NormalizeID(id interface{}) interface{} {
	switch v := id.(type) {
	case []byte:
		return string(v)
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	case uint32:
		return int64(v)
	case uint16:
		return int64(v)
	case uint8:
		return int64(v)
	case fmt.Stringer:
		return v.String()
	default:
		return id
	}
}

// Get returns the bean of the given type and id, or nil
func (pc *PersistenceContext) Get(beanType string, id interface{}) EntityBean {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.beans[beanType][NormalizeID(id)]
}

// Put stores a bean, replacing any existing instance
func (pc *PersistenceContext) Put(beanType string, id interface{}, b EntityBean) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.typeMap(beanType)[NormalizeID(id)] = b
	b.EbeanIntercept().SetPersistenceContext(pc)
}

// PutIfAbsent stores the bean unless one is already present.
// Returns the existing instance, or nil when b was stored.
func (pc *PersistenceContext) PutIfAbsent(beanType string, id interface{}, b EntityBean) EntityBean {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	m := pc.typeMap(beanType)
	key := NormalizeID(id)
	if existing, ok := m[key]; ok {
		return existing
	}
	m[key] = b
	b.EbeanIntercept().SetPersistenceContext(pc)
	return nil
}

// Remove deletes the bean of the given type and id
func (pc *PersistenceContext) Remove(beanType string, id interface{}) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	delete(pc.beans[beanType], NormalizeID(id))
}

// Size returns the number of beans held for a type
func (pc *PersistenceContext) Size(beanType string) int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.beans[beanType])
}

// Clear removes all beans of a type
func (pc *PersistenceContext) Clear(beanType string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	delete(pc.beans, beanType)
}

func (pc *PersistenceContext) typeMap(beanType string) map[interface{}]EntityBean {
	m, ok := pc.beans[beanType]
	if !ok {
		m = make(map[interface{}]EntityBean)
		pc.beans[beanType] = m
	}
	return m
}
