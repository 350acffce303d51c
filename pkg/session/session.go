// Package session binds one contract's collaborators together: the
// repository, signatures, status reconciliation, the stage machine, the
// editor and its autosave. A Session owns every subscription and background
// task it starts and releases them on Close.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/contractflow/pkg/cache"
	"github.com/aretw0/contractflow/pkg/clock"
	"github.com/aretw0/contractflow/pkg/core"
	"github.com/aretw0/contractflow/pkg/debounce"
	"github.com/aretw0/contractflow/pkg/events"
	"github.com/aretw0/contractflow/pkg/reconcile"
	"github.com/aretw0/contractflow/pkg/signature"
	"github.com/aretw0/contractflow/pkg/stage"
)

// DefaultAutosaveDelay is how long content must stay unchanged before it is
// saved.
const DefaultAutosaveDelay = time.Second

// Deps are the external collaborators of a session.
type Deps struct {
	Store    core.Store
	Identity core.Identity
	Cache    *cache.Cache
	// Editor shows the contract content. Nil creates a Buffer loaded with
	// the stored content.
	Editor Editor
}

// Option configures a Session.
type Option func(*options)

type options struct {
	clock         clock.Clock
	logger        *slog.Logger
	autosaveDelay time.Duration
	watchCache    bool
	bus           *events.Bus
}

// WithClock sets the time source of every component in the session.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger of every component in the session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAutosaveDelay sets the autosave debounce.
func WithAutosaveDelay(d time.Duration) Option {
	return func(o *options) { o.autosaveDelay = d }
}

// WithCacheWatch follows changes other processes make to a file-backed
// cache.
func WithCacheWatch(enabled bool) Option {
	return func(o *options) { o.watchCache = enabled }
}

// WithBus shares an existing bus instead of creating one.
func WithBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// Session is an open contract.
type Session struct {
	id     string
	logger *slog.Logger

	repo       *core.ContractRepository
	signatures *signature.Store
	status     *reconcile.Reconciler
	stages     *stage.Controller
	bus        *events.Bus
	editor     Editor
	cache      *cache.Cache
	autosave   *debounce.Debouncer[[]byte]
	watcher    *cache.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	unsubs []func()

	mu        sync.Mutex
	readOnly  bool
	saveErr   error
	closeOnce sync.Once
	closeErr  error
}

// Open loads contractID and wires its session.
func Open(ctx context.Context, contractID string, deps Deps, opts ...Option) (*Session, error) {
	o := options{clock: clock.Real(), logger: slog.Default(), autosaveDelay: DefaultAutosaveDelay}
	for _, opt := range opts {
		opt(&o)
	}
	if deps.Store == nil || deps.Identity == nil || deps.Cache == nil {
		return nil, fmt.Errorf("open session %s: store, identity and cache are required: %w", contractID, core.ErrValidation)
	}
	if o.bus == nil {
		o.bus = events.New(o.logger)
	}

	repo := core.NewContractRepository(deps.Store, deps.Identity, core.WithClock(o.clock), core.WithLogger(o.logger))
	contract, err := repo.Get(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		id:     contractID,
		logger: o.logger.With("contract", contractID),
		repo:   repo,
		bus:    o.bus,
		editor: deps.Editor,
		cache:  deps.Cache,
		ctx:    sessionCtx,
		cancel: cancel,
	}
	if s.editor == nil {
		s.editor = NewBuffer(contract.Content)
	}

	s.signatures = signature.New(deps.Store, repo, deps.Cache, o.bus, signature.WithClock(o.clock), signature.WithLogger(o.logger))
	s.status = reconcile.New(sessionCtx, repo, deps.Cache, reconcile.WithClock(o.clock), reconcile.WithLogger(o.logger))
	s.stages = stage.New(contractID, s.signatures, s.editor.Content, deps.Cache, o.bus, stage.WithClock(o.clock), stage.WithLogger(o.logger))
	s.autosave = debounce.New(o.autosaveDelay, s.save, debounce.WithClock(o.clock))

	s.unsubs = append(s.unsubs,
		events.On(o.bus, events.TopicStageChanged, func(e events.StageChanged) {
			if e.ContractID == s.id {
				s.refreshLock()
			}
		}),
		events.On(o.bus, events.TopicSignatureChanged, func(e events.SignatureChanged) {
			if e.ContractID == s.id {
				s.refreshLock()
			}
		}),
		s.editor.OnChange(func(content []byte) {
			s.autosave.Trigger(bytes.Clone(content))
		}),
	)

	if err := s.stages.Load(ctx); err != nil {
		s.teardown()
		return nil, fmt.Errorf("open session: %w", err)
	}
	s.refreshLock()

	if o.watchCache && deps.Cache.Path() != "" {
		w, err := cache.NewWatcher(deps.Cache, cache.WatchConfig{
			Pattern:  cache.ContractKeys(contractID),
			OnChange: s.onCacheChanged,
		})
		if err == nil {
			err = w.Start(sessionCtx)
		}
		if err != nil {
			s.teardown()
			return nil, fmt.Errorf("open session %s: watch cache: %w", contractID, err)
		}
		s.watcher = w
	}

	s.logger.Debug("session opened", "stage", s.stages.Stage(), "read_only", s.ReadOnly())
	return s, nil
}

// ID returns the contract id.
func (s *Session) ID() string { return s.id }

// Bus returns the session's event bus.
func (s *Session) Bus() *events.Bus { return s.bus }

// Editor returns the editor bound to the session.
func (s *Session) Editor() Editor { return s.editor }

// Repository returns the contract repository.
func (s *Session) Repository() *core.ContractRepository { return s.repo }

// Stage returns the current stage.
func (s *Session) Stage() core.Stage { return s.stages.Stage() }

// ReadOnly reports whether the editor is locked.
func (s *Session) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// refreshLock recomputes editability and pushes it to the editor. An
// unknown signature state locks the editor.
func (s *Session) refreshLock() {
	editable := false
	sigs, err := s.signatures.Signatures(s.ctx, s.id)
	if err != nil {
		s.logger.Warn("cannot resolve signatures, locking editor", "error", err)
	} else {
		editable = stage.CanEdit(s.stages.Stage(), sigs.HasDesigner(), s.stages.Unlocking())
	}

	s.mu.Lock()
	changed := s.readOnly == editable
	s.readOnly = !editable
	s.mu.Unlock()

	s.editor.SetReadOnly(!editable)
	if changed {
		s.logger.Debug("editor lock changed", "read_only", !editable)
	}
}

func (s *Session) save(content []byte) {
	err := s.saveContent(s.ctx, content)
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("autosave failed", "error", err)
	}
}

func (s *Session) saveContent(ctx context.Context, content []byte) error {
	c, err := s.repo.Get(ctx, s.id)
	if err != nil {
		return err
	}
	if bytes.Equal(c.Content, content) {
		return nil
	}
	c.Content = content
	if _, err := s.repo.Save(ctx, c); err != nil {
		return err
	}
	s.logger.Debug("content saved", "bytes", len(content))
	return nil
}

// Flush saves pending editor changes now. It returns the save error, or
// nil when nothing was pending.
func (s *Session) Flush() error {
	if !s.autosave.Flush() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveErr
}

// Transition saves pending content and moves the stage machine.
func (s *Session) Transition(ctx context.Context, target core.Stage, intent stage.Intent) error {
	if err := s.Flush(); err != nil {
		return fmt.Errorf("transition %s: %w", s.id, err)
	}
	return s.stages.Transition(ctx, target, intent)
}

// Sign records role's signature.
func (s *Session) Sign(ctx context.Context, role core.Role, data signature.Data) error {
	if err := s.Flush(); err != nil {
		return fmt.Errorf("sign %s: %w", s.id, err)
	}
	return s.signatures.Sign(ctx, s.id, role, data)
}

// Unsign removes role's signature. Removing the designer signature reopens
// the contract and needs confirm.
func (s *Session) Unsign(ctx context.Context, role core.Role, confirm bool) error {
	if role == core.RoleDesigner && !confirm {
		return fmt.Errorf("unsign %s as %s: %w", s.id, role, core.ErrConfirmationRequired)
	}
	return s.signatures.Unsign(ctx, s.id, role)
}

// Signatures returns both roles' signatures.
func (s *Session) Signatures(ctx context.Context) (core.Signatures, error) {
	return s.signatures.Signatures(ctx, s.id)
}

// Status returns the reconciled status.
func (s *Session) Status(ctx context.Context) (reconcile.StatusView, error) {
	return s.status.GetStatus(ctx, s.id)
}

// UpdateStatus writes the status locally and then remotely.
func (s *Session) UpdateStatus(ctx context.Context, status core.Status, metadata core.Metadata) (reconcile.UpdateResult, error) {
	return s.status.UpdateStatus(ctx, s.id, status, metadata)
}

// Contract returns the stored contract.
func (s *Session) Contract(ctx context.Context) (core.Contract, error) {
	return s.repo.Get(ctx, s.id)
}

func (s *Session) onCacheChanged(key string) {
	s.bus.Publish(events.TopicCacheChanged, events.CacheChanged{Key: key})

	_, kind, ok := cache.SplitKey(key)
	if !ok {
		return
	}
	switch kind {
	case "signatures":
		s.signatures.Invalidate(s.id)
		s.refreshLock()
	case "stage":
		s.stages.Reload(s.ctx)
	}
}

// Close flushes pending content, waits for background pushes and releases
// every subscription. It is safe to call more than once. If ctx ends first,
// background work is cancelled and ctx's error returned.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.autosave.Close()

		done := make(chan struct{})
		go func() {
			s.status.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.closeErr = ctx.Err()
		}

		s.teardown()
		s.mu.Lock()
		if s.closeErr == nil {
			s.closeErr = s.saveErr
		}
		s.mu.Unlock()
		s.logger.Debug("session closed", "error", s.closeErr)
	})
	return s.closeErr
}

func (s *Session) teardown() {
	s.autosave.Close()
	for _, unsubscribe := range s.unsubs {
		unsubscribe()
	}
	s.unsubs = nil
	s.stages.Close()
	if s.watcher != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := s.watcher.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("cache watcher did not stop cleanly", "error", err)
		}
		cancel()
	}
	s.cancel()
	s.status.Close()
}
