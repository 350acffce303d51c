// Package cache is the local, session-scoped cache that sits in front of the
// remote store. It keeps a JSON index of keyed records in memory and, when
// opened on a path, writes it through to disk atomically on every change so
// other processes sharing the file can observe it.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/contractflow/pkg/core"
)

const indexVersion = 1

// Record is one cached value with its write time and origin.
type Record struct {
	Value       json.RawMessage `json:"value"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Source      core.Source     `json:"source"`
}

func (r Record) equal(other Record) bool {
	return r.LastUpdated.Equal(other.LastUpdated) &&
		r.Source == other.Source &&
		bytes.Equal(r.Value, other.Value)
}

// index is the persisted cache state.
type index struct {
	Version int                `json:"version"`
	Entries map[string]*Record `json:"entries"`
}

// Cache is safe for concurrent use.
type Cache struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	index index

	watcherActive bool
	lastReload    *time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// NewMemory creates a cache that is never persisted.
func NewMemory(opts ...Option) *Cache {
	c := &Cache{
		logger: slog.Default(),
		index:  index{Version: indexVersion, Entries: make(map[string]*Record)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open loads the cache persisted at path. A missing file starts empty and a
// corrupted one is discarded so the cache heals itself.
func Open(path string, opts ...Option) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	c := NewMemory(opts...)
	c.path = filepath.Clean(path)

	loaded, err := c.readIndex()
	if err != nil {
		return nil, err
	}
	c.index = loaded
	return c, nil
}

// Path returns the backing file, or "" for a memory cache.
func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) readIndex() (index, error) {
	fresh := index{Version: indexVersion, Entries: make(map[string]*Record)}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return fresh, nil
	}
	if err != nil {
		return index{}, fmt.Errorf("failed to read cache: %w", err)
	}

	var loaded index
	if err := json.Unmarshal(data, &loaded); err != nil {
		c.logger.Warn("discarding corrupted cache", "path", c.path, "error", err)
		return fresh, nil
	}
	if loaded.Entries == nil {
		loaded.Entries = make(map[string]*Record)
	}
	return loaded, nil
}

// persist writes the index to disk. c.mu must be held for writing so a
// concurrent Reload never observes memory ahead of the file.
func (c *Cache) persist() error {
	if c.path == "" {
		return nil
	}
	data, err := json.Marshal(c.index)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return writeFileAtomic(c.path, data, 0644)
}

// Get returns the record stored under key.
func (c *Cache) Get(key string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.index.Entries[key]
	if !ok {
		return Record{}, false
	}
	out := *r
	out.Value = bytes.Clone(r.Value)
	return out, true
}

// Set stores r under key. The write is visible to the next Get immediately;
// the returned error only concerns persistence.
func (c *Cache) Set(key string, r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := r
	stored.Value = bytes.Clone(r.Value)
	c.index.Entries[key] = &stored
	if err := c.persist(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index.Entries[key]; !ok {
		return nil
	}
	delete(c.index.Entries, key)
	if err := c.persist(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys returns every key with the given prefix in lexical order.
func (c *Cache) Keys(prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var keys []string
	for k := range c.index.Entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index.Entries)
}

// Reload re-reads the backing file and returns the keys whose records were
// added, changed or removed by someone else. A memory cache never changes.
func (c *Cache) Reload() ([]string, error) {
	if c.path == "" {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded, err := c.readIndex()
	if err != nil {
		return nil, err
	}

	var changed []string
	for k, r := range loaded.Entries {
		if old, ok := c.index.Entries[k]; !ok || !old.equal(*r) {
			changed = append(changed, k)
		}
	}
	for k := range c.index.Entries {
		if _, ok := loaded.Entries[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)

	c.index = loaded
	now := time.Now()
	c.lastReload = &now
	return changed, nil
}
