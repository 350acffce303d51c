package platform

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/introspection"

	"github.com/aretw0/contractflow/pkg/cache"
	"github.com/aretw0/contractflow/pkg/core"
	"github.com/aretw0/contractflow/pkg/session"
)

// Workspace is a data directory opened for one user.
type Workspace struct {
	dir      string
	adapter  string
	opts     *options
	store    core.Store
	closer   io.Closer
	cache    *cache.Cache
	identity core.Identity
	repo     *core.ContractRepository
}

// Dir returns the resolved data directory.
func (w *Workspace) Dir() string { return w.dir }

// Store returns the remote store.
func (w *Workspace) Store() core.Store { return w.store }

// Cache returns the local cache.
func (w *Workspace) Cache() *cache.Cache { return w.cache }

// User returns the user the workspace acts as.
func (w *Workspace) User() string { return w.opts.user }

// Repository returns the contract repository acting as the workspace user.
func (w *Workspace) Repository() *core.ContractRepository { return w.repo }

// Create saves a new draft owned by the workspace user and returns its id.
func (w *Workspace) Create(ctx context.Context, content []byte) (string, error) {
	id, err := w.repo.Save(ctx, core.Contract{OwnerID: w.opts.user, Content: content})
	if err != nil {
		return "", fmt.Errorf("create contract: %w", err)
	}
	return id, nil
}

// Open starts a session on contract id. A nil editor gets an in-memory
// buffer holding the stored content. extra options are applied after the
// workspace defaults.
func (w *Workspace) Open(ctx context.Context, id string, editor session.Editor, extra ...session.Option) (*session.Session, error) {
	opts := []session.Option{
		session.WithClock(w.opts.clock),
		session.WithLogger(w.opts.logger),
		session.WithCacheWatch(w.opts.watchCache),
	}
	if w.opts.autosaveDelay > 0 {
		opts = append(opts, session.WithAutosaveDelay(w.opts.autosaveDelay))
	}
	opts = append(opts, extra...)
	return session.Open(ctx, id, session.Deps{
		Store:    w.store,
		Identity: w.identity,
		Cache:    w.cache,
		Editor:   editor,
	}, opts...)
}

// Close releases the store.
func (w *Workspace) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// WorkspaceState exposes the workspace internals for observability.
type WorkspaceState struct {
	Dir     string      `json:"dir"`
	Adapter string      `json:"adapter"`
	User    string      `json:"user,omitempty"`
	Cache   cache.State `json:"cache"`
}

// State implements introspection.Introspectable.
func (w *Workspace) State() any {
	cs, _ := w.cache.State().(cache.State)
	return WorkspaceState{Dir: w.dir, Adapter: w.adapter, User: w.opts.user, Cache: cs}
}

// ComponentType implements introspection.Component.
func (w *Workspace) ComponentType() string {
	return "workspace"
}

var _ introspection.Introspectable = (*Workspace)(nil)
var _ introspection.Component = (*Workspace)(nil)
