package cache

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/contractflow/pkg/core"
)

// Typed is a type-safe view of the cache: values of T are stored as JSON and
// read back as core.CacheEntry[T].
type Typed[T any] struct {
	cache *Cache
}

// NewTyped wraps c.
func NewTyped[T any](c *Cache) *Typed[T] {
	return &Typed[T]{cache: c}
}

// Get returns the entry under key. A value that no longer decodes into T is
// reported as an error rather than a miss.
func (t *Typed[T]) Get(key string) (core.CacheEntry[T], bool, error) {
	r, ok := t.cache.Get(key)
	if !ok {
		return core.CacheEntry[T]{}, false, nil
	}
	var v T
	if err := json.Unmarshal(r.Value, &v); err != nil {
		return core.CacheEntry[T]{}, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return core.CacheEntry[T]{Value: v, LastUpdated: r.LastUpdated, Source: r.Source}, true, nil
}

// Set stores entry under key.
func (t *Typed[T]) Set(key string, entry core.CacheEntry[T]) error {
	data, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return t.cache.Set(key, Record{Value: data, LastUpdated: entry.LastUpdated, Source: entry.Source})
}

// Delete removes key.
func (t *Typed[T]) Delete(key string) error {
	return t.cache.Delete(key)
}
