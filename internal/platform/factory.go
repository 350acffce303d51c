package platform

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/contractflow/pkg/adapters/memory"
	"github.com/aretw0/contractflow/pkg/adapters/sqlite"
	"github.com/aretw0/contractflow/pkg/cache"
	"github.com/aretw0/contractflow/pkg/core"
)

// File names inside the data directory.
const (
	StoreFile = "contracts.db"
	CacheFile = "cache.json"
)

// New opens the workspace rooted at dataDir: the remote store selected by
// the adapter and the local cache file.
//
//	ws, err := platform.New("./.contractflow", platform.WithUser("owner"))
func New(dataDir string, opts ...Option) (*Workspace, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	dir := o.resolveDir(dataDir)
	if err := ensureDir(dir, o.mustExist); err != nil {
		return nil, err
	}

	ws := &Workspace{dir: dir, opts: o, adapter: o.adapter}
	switch {
	case o.store != nil:
		ws.store = o.store
		ws.adapter = "injected"
	case o.adapter == "sqlite":
		db, err := sqlite.Open(filepath.Join(dir, StoreFile))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		ws.store = db
		ws.closer = db
	case o.adapter == "memory":
		ws.store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}

	c, err := cache.Open(filepath.Join(dir, CacheFile), cache.WithLogger(o.logger))
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	ws.cache = c
	ws.identity = core.StaticIdentity(o.user)
	ws.repo = core.NewContractRepository(ws.store, ws.identity, core.WithClock(o.clock), core.WithLogger(o.logger))

	o.logger.Debug("workspace opened", "dir", dir, "adapter", ws.adapter, "user", o.user)
	return ws, nil
}

func (o *options) resolveDir(dataDir string) string {
	useTemp := o.devSafety && IsDevRun()
	dir := ResolveDataDir(dataDir, useTemp)
	if useTemp && dir != filepath.Clean(dataDir) {
		o.logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", dataDir, "resolved_path", dir)
	}
	return dir
}

func ensureDir(dir string, mustExist bool) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("data dir %s is not a directory", dir)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("stat data dir: %w", err)
	case mustExist:
		return fmt.Errorf("data dir %s does not exist", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}
