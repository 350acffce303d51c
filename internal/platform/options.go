package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/contractflow/pkg/clock"
	"github.com/aretw0/contractflow/pkg/core"
)

// options holds the internal configuration of a Workspace.
type options struct {
	store         core.Store
	logger        *slog.Logger
	clock         clock.Clock
	adapter       string
	user          string
	autosaveDelay time.Duration
	watchCache    bool
	mustExist     bool
	devSafety     bool
}

// Option defines a functional option for configuring a Workspace.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:   "sqlite",
		clock:     clock.Real(),
		devSafety: true,
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a remote store. If provided, the adapter is skipped.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the remote store by name ("sqlite" or "memory").
// Defaults to "sqlite".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithUser sets the user the workspace acts as.
func WithUser(user string) Option {
	return func(o *options) {
		o.user = user
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithAutosaveDelay sets how long editor content must settle before it is
// saved. Zero keeps the session default.
func WithAutosaveDelay(d time.Duration) Option {
	return func(o *options) {
		o.autosaveDelay = d
	}
}

// WithCacheWatch makes sessions follow cache changes made by other
// processes sharing the data directory.
func WithCacheWatch(enabled bool) Option {
	return func(o *options) {
		o.watchCache = enabled
	}
}

// WithMustExist fails instead of creating a missing data directory.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
// By default data directories outside the temp dir are re-rooted into a
// temporary one for such runs.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}
