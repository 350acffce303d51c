package cache

import (
	"time"

	"github.com/aretw0/introspection"
)

// State exposes the cache internals for observability.
type State struct {
	Path          string     `json:"path,omitempty"`
	Entries       int        `json:"entries"`
	WatcherActive bool       `json:"watcher_active"`
	LastReload    *time.Time `json:"last_reload,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Cache) State() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{
		Path:          c.path,
		Entries:       len(c.index.Entries),
		WatcherActive: c.watcherActive,
		LastReload:    c.lastReload,
	}
}

// ComponentType implements introspection.Component.
func (c *Cache) ComponentType() string {
	return "local-cache"
}

var _ introspection.Introspectable = (*Cache)(nil)
var _ introspection.Component = (*Cache)(nil)

func (c *Cache) setWatcherActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watcherActive = active
}
