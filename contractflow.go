package contractflow

import (
	"log/slog"
	"time"

	"github.com/aretw0/contractflow/internal/platform"
	"github.com/aretw0/contractflow/pkg/core"
	"github.com/aretw0/contractflow/pkg/session"
)

// --- Types ---

// Workspace is a data directory opened for one user.
type Workspace = platform.Workspace

// Session is one open contract.
type Session = session.Session

// Config is the file and environment configuration.
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for configuring a Workspace.
type Option = platform.Option

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a remote store instead of opening one.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAdapter selects the remote store by name ("sqlite" or "memory").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithUser sets the user the workspace acts as.
func WithUser(user string) Option {
	return platform.WithUser(user)
}

// WithAutosaveDelay sets the editor autosave debounce.
func WithAutosaveDelay(d time.Duration) Option {
	return platform.WithAutosaveDelay(d)
}

// WithCacheWatch follows cache changes made by other processes.
func WithCacheWatch(enabled bool) Option {
	return platform.WithCacheWatch(enabled)
}

// WithMustExist fails instead of creating a missing data directory.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithDevSafety controls the temp-dir sandbox used under `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Factory ---

// New opens the workspace rooted at dataDir.
func New(dataDir string, opts ...Option) (*Workspace, error) {
	return platform.New(dataDir, opts...)
}

// LoadConfig reads a YAML configuration file and applies the environment.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// --- Safety & Utils ---

// ResolveDataDir determines the actual data directory based on safety rules.
func ResolveDataDir(userPath string, forceTemp bool) string {
	return platform.ResolveDataDir(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for a workspace root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
