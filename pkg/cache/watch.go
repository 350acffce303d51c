package cache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/contractflow/pkg/debounce"
)

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Pattern is a doublestar pattern over cache keys. Empty matches all.
	Pattern string
	// Debounce coalesces bursts of file events. Zero means 50ms.
	Debounce time.Duration
	// OnChange is called once per changed key that matches Pattern.
	OnChange func(key string)
	// OnError receives runtime watcher failures. They are logged either way.
	OnError func(error)
}

// Watcher reloads the cache when another process rewrites its file and
// reports the keys that changed.
type Watcher struct {
	*worker.BaseWorker
	cache     *Cache
	config    WatchConfig
	watcher   *fsnotify.Watcher
	debouncer *debounce.Debouncer[struct{}]
	cancel    context.CancelFunc
}

// NewWatcher creates a watcher for c. It does nothing until Start.
func NewWatcher(c *Cache, config WatchConfig) (*Watcher, error) {
	if c.path == "" {
		return nil, fmt.Errorf("cannot watch a memory cache")
	}
	if config.Pattern == "" {
		config.Pattern = "**"
	}
	if !doublestar.ValidatePattern(config.Pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", config.Pattern)
	}
	if config.Debounce <= 0 {
		config.Debounce = 50 * time.Millisecond
	}
	return &Watcher{
		BaseWorker: worker.NewBaseWorker("cache-watcher"),
		cache:      c,
		config:     config,
	}, nil
}

// Start begins watching the cache directory.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// The file is replaced by rename on every write, so watch its directory.
	if err := watcher.Add(filepath.Dir(w.cache.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch cache directory: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.watcher = watcher
	w.debouncer = debounce.New(w.config.Debounce, func(struct{}) { w.reload(runCtx) })
	w.cache.setWatcherActive(true)

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

// State implements worker.Worker.
func (w *Watcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"pattern":           w.config.Pattern,
		}
	})
}

func (w *Watcher) logger() *slog.Logger {
	return w.cache.logger
}

func (w *Watcher) fail(err error) {
	w.logger().Error("cache watcher error", "path", w.cache.path, "error", err)
	if w.config.OnError != nil {
		w.config.OnError(err)
	}
}

// reload runs on its own tracked goroutine so a slow OnChange never stalls
// the event loop.
func (w *Watcher) reload(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		changed, err := w.cache.Reload()
		if err != nil {
			w.fail(fmt.Errorf("reload: %w", err))
			return err
		}
		for _, key := range changed {
			if ctx.Err() != nil {
				return nil
			}
			if ok, _ := doublestar.Match(w.config.Pattern, key); !ok {
				continue
			}
			w.logger().Debug("cache key changed externally", "key", key)
			if w.config.OnChange != nil {
				w.config.OnChange(key)
			}
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		w.fail(fmt.Errorf("reload panic: %w", err))
	}))
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if isTempFile(event.Name) {
		return false
	}
	if filepath.Clean(event.Name) != w.cache.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}

func (w *Watcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("cache watcher panic: %v", recovered)
			if w.logger().Enabled(ctx, slog.LevelDebug) {
				w.logger().Error("cache watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				w.logger().Error("cache watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.cache.setWatcherActive(false)
	defer w.watcher.Close()
	defer w.debouncer.Cancel()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if w.relevant(event) {
				w.debouncer.Trigger(struct{}{})
			}

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.fail(wErr)
		}
	}
}
