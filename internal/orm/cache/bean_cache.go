package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
)

// BeanCache stores loaded bean property values for bean types with caching enabled
type BeanCache struct {
	cache  Cache
	logger *zap.Logger
}

// NewBeanCache creates a bean cache over a backend
func NewBeanCache(c Cache, logger *zap.Logger) *BeanCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BeanCache{cache: c, logger: logger}
}

// BeanKey returns "bean:<BeanName>:<id>"
func BeanKey(beanName string, id interface{}) string {
	return fmt.Sprintf("bean:%s:%v", beanName, bean.NormalizeID(id))
}

// NaturalKey returns "bean:<BeanName>:nk:<value>"
func NaturalKey(beanName string, value interface{}) string {
	return fmt.Sprintf("bean:%s:nk:%v", beanName, value)
}

// Put stores the loaded scalar properties of a bean. Beans of types without
// caching, and beans without an id, are skipped.
func (bc *BeanCache) Put(ctx context.Context, desc *deploy.BeanDescriptor, b bean.EntityBean) error {
	if !desc.IsBeanCaching() {
		return nil
	}
	id := desc.ID(b)
	if id == nil {
		return nil
	}
	ebi := b.EbeanIntercept()
	values := make(map[string]interface{})
	for _, p := range desc.Properties() {
		if p.IsAssocOne() || p.IsAssocMany() || p.IsTransient() {
			continue
		}
		if ebi.IsLoadedProperty(p.Name()) {
			values[p.Name()] = ebi.Value(p.Name())
		}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode %s %v for cache: %w", desc.Name(), id, err)
	}

	ttl := desc.CacheOptions().TTL
	if err := bc.cache.Set(ctx, BeanKey(desc.Name(), id), data, ttl); err != nil {
		return fmt.Errorf("failed to cache %s %v: %w", desc.Name(), id, err)
	}
	if nk := desc.CacheOptions().NaturalKey; nk != "" {
		if v, ok := values[nk]; ok && v != nil {
			idData, _ := json.Marshal(bean.NormalizeID(id))
			if err := bc.cache.Set(ctx, NaturalKey(desc.Name(), v), idData, ttl); err != nil {
				return fmt.Errorf("failed to cache natural key of %s %v: %w", desc.Name(), id, err)
			}
		}
	}
	return nil
}

// PutAll stores each bean, stopping at the first error
func (bc *BeanCache) PutAll(ctx context.Context, desc *deploy.BeanDescriptor, beans []bean.EntityBean) error {
	for _, b := range beans {
		if err := bc.Put(ctx, desc, b); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a loaded bean built from the cached values
func (bc *BeanCache) Get(ctx context.Context, desc *deploy.BeanDescriptor, id interface{}) (bean.EntityBean, bool, error) {
	if !desc.IsBeanCaching() {
		return nil, false, nil
	}
	data, err := bc.cache.Get(ctx, BeanKey(desc.Name(), id))
	if err != nil {
		if IsCacheMiss(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	values, err := decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cached %s %v: %w", desc.Name(), id, err)
	}
	b := desc.CreateBean()
	ebi := b.EbeanIntercept()
	for name, raw := range values {
		p := desc.Property(name)
		if p == nil {
			continue
		}
		ebi.SetLoadedProperty(name, convert(p, raw))
	}
	ebi.SetLoaded()
	bc.logger.Debug("bean cache hit", zap.String("bean", desc.Name()), zap.Any("id", id))
	return b, true, nil
}

// IDByNaturalKey returns the id cached for a natural key value
func (bc *BeanCache) IDByNaturalKey(ctx context.Context, desc *deploy.BeanDescriptor, value interface{}) (interface{}, bool, error) {
	nk := desc.CacheOptions().NaturalKey
	if nk == "" {
		return nil, false, nil
	}
	data, err := bc.cache.Get(ctx, NaturalKey(desc.Name(), value))
	if err != nil {
		if IsCacheMiss(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var id interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&id); err != nil {
		return nil, false, err
	}
	if idProp := desc.IDProperty(); idProp != nil {
		id = convert(idProp, id)
	}
	return id, true, nil
}

// Remove evicts a bean
func (bc *BeanCache) Remove(ctx context.Context, desc *deploy.BeanDescriptor, id interface{}) error {
	return bc.cache.Delete(ctx, BeanKey(desc.Name(), id))
}

func decode(data []byte) (map[string]interface{}, error) {
	var values map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

// convert turns JSON numbers back into int64 or float64 by the property db type
func convert(p *deploy.BeanProperty, raw interface{}) interface{} {
	n, ok := raw.(json.Number)
	if !ok {
		return raw
	}
	if isIntegerType(p.DbType()) || !p.IsDbNumberType() {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func isIntegerType(dbType string) bool {
	base := strings.ToLower(dbType)
	if i := strings.Index(base, "("); i >= 0 {
		base = base[:i]
	}
	switch strings.TrimSpace(base) {
	case "bigint", "integer", "int", "smallint", "tinyint":
		return true
	}
	return false
}
