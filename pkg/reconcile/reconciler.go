package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/contractflow/pkg/cache"
	"github.com/aretw0/contractflow/pkg/clock"
	"github.com/aretw0/contractflow/pkg/core"
)

// ContractStatuses is the part of core.ContractRepository the reconciler
// reads and writes.
type ContractStatuses interface {
	Get(ctx context.Context, id string) (core.Contract, error)
	UpdateStatus(ctx context.Context, id string, patch core.StatusPatch) error
}

// StatusView is the reconciled status of a contract.
type StatusView struct {
	Status      core.Status
	Source      core.Source
	LastUpdated time.Time
	// Stale reports that the local value was older than the remote one and
	// has been replaced (core.ErrStaleWrite).
	Stale bool
}

// UpdateResult reports the remote half of an optimistic status update. The
// local value is written regardless of Success.
type UpdateResult struct {
	Success bool
	Err     error
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the time source for local timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// Reconciler merges the local status record with the remote contract.
// Background pushes run on the context given to New and stop when it is
// cancelled or Close is called.
type Reconciler struct {
	repo    ContractStatuses
	records *cache.Typed[core.StatusRecord]
	clock   clock.Clock
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	pushes errgroup.Group

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a Reconciler over repo and the local cache c.
func New(ctx context.Context, repo ContractStatuses, c *cache.Cache, opts ...Option) *Reconciler {
	ctx, cancel := context.WithCancel(ctx)
	r := &Reconciler{
		repo:     repo,
		records:  cache.NewTyped[core.StatusRecord](c),
		clock:    clock.Real(),
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetStatus reads the local and remote status concurrently and returns
// the winner. A newer local value is pushed to the remote store in the
// background; a newer remote value replaces the local one.
func (r *Reconciler) GetStatus(ctx context.Context, id string) (StatusView, error) {
	key := cache.StatusKey(id)

	var (
		local     *core.CacheEntry[core.StatusRecord]
		remote    *core.CacheEntry[core.StatusRecord]
		remoteErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entry, ok, err := r.records.Get(key)
		if err != nil {
			r.logger.Warn("ignoring unreadable local status", "contract", id, "error", err)
			return nil
		}
		if ok {
			local = &entry
		}
		return nil
	})
	g.Go(func() error {
		c, err := r.repo.Get(gctx, id)
		if err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				remoteErr = err
			}
			return nil
		}
		remote = &core.CacheEntry[core.StatusRecord]{
			Value:       core.StatusRecord{Status: c.Status, LastUpdated: c.UpdatedAt},
			LastUpdated: c.UpdatedAt,
			Source:      core.SourceRemote,
		}
		return nil
	})
	_ = g.Wait()

	if remoteErr != nil {
		if local == nil || errors.Is(remoteErr, core.ErrPermissionDenied) {
			return StatusView{}, fmt.Errorf("get status %s: %w", id, remoteErr)
		}
		r.logger.Warn("remote status unreadable, serving local value", "contract", id, "error", remoteErr)
		return view(local, core.SourceLocal, false), nil
	}

	d := Decide(local, remote)
	switch d.Action {
	case ActionPush:
		if remote == nil || remote.Value.Status != local.Value.Status {
			r.push(id, *local)
		}
		return view(d.Winner, core.SourceLocal, false), nil

	case ActionPull:
		if local == nil || !local.LastUpdated.Equal(remote.LastUpdated) || local.Value.Status != remote.Value.Status {
			if err := r.records.Set(key, *remote); err != nil {
				r.logger.Warn("failed to cache remote status", "contract", id, "error", err)
			}
		}
		if d.Stale {
			r.logger.Debug("local status replaced by newer remote", "contract", id,
				"local", local.Value.Status, "remote", remote.Value.Status, "reason", core.ErrStaleWrite)
		}
		return view(d.Winner, core.SourceRemote, d.Stale), nil
	}

	return StatusView{Status: core.StatusDraft, Source: core.SourceDefault}, nil
}

func view(e *core.CacheEntry[core.StatusRecord], source core.Source, stale bool) StatusView {
	return StatusView{Status: e.Value.Status, Source: source, LastUpdated: e.LastUpdated, Stale: stale}
}

// push writes a winning local status to the remote store under the local
// timestamp, so the next read sees both sides as equal. One push per
// contract is in flight at a time.
func (r *Reconciler) push(id string, local core.CacheEntry[core.StatusRecord]) {
	rec := local.Value
	if r.ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	if r.inFlight[id] {
		r.mu.Unlock()
		return
	}
	r.inFlight[id] = true
	r.mu.Unlock()

	r.pushes.Go(func() error {
		defer func() {
			r.mu.Lock()
			delete(r.inFlight, id)
			r.mu.Unlock()
		}()
		if err := r.repo.UpdateStatus(r.ctx, id, core.StatusPatch{Status: rec.Status, At: local.LastUpdated}); err != nil {
			r.logger.Warn("status sync-forward failed", "contract", id, "status", rec.Status, "error", err)
			return nil
		}
		r.logger.Debug("status synced forward", "contract", id, "status", rec.Status)
		return nil
	})
}

// UpdateStatus writes the local status first, then the remote one. The
// local value stands for readers even when the remote write fails; only a
// local write failure or a permission error is returned as an error.
func (r *Reconciler) UpdateStatus(ctx context.Context, id string, status core.Status, metadata core.Metadata) (UpdateResult, error) {
	if !status.Valid() {
		err := fmt.Errorf("update status %s: unknown status %q: %w", id, status, core.ErrValidation)
		return UpdateResult{Err: err}, err
	}

	now := r.stamp()
	entry := core.CacheEntry[core.StatusRecord]{
		Value:       core.StatusRecord{Status: status, LastUpdated: now},
		LastUpdated: now,
		Source:      core.SourceLocal,
	}
	if err := r.records.Set(cache.StatusKey(id), entry); err != nil {
		err = fmt.Errorf("update status %s: local write: %w", id, err)
		return UpdateResult{Err: err}, err
	}

	err := r.repo.UpdateStatus(ctx, id, core.StatusPatch{Status: status, Metadata: metadata, At: now})
	switch {
	case err == nil:
		return UpdateResult{Success: true}, nil
	case errors.Is(err, core.ErrPermissionDenied):
		r.logger.Error("remote status write denied", "contract", id, "error", err)
		return UpdateResult{Err: err}, err
	default:
		r.logger.Warn("remote status write failed, local value stands", "contract", id, "status", status, "error", err)
		return UpdateResult{Err: err}, nil
	}
}

// stamp is the current time at the millisecond resolution the stores keep.
func (r *Reconciler) stamp() time.Time {
	return r.clock.Now().UTC().Truncate(time.Millisecond)
}

// Wait blocks until every background push has finished.
func (r *Reconciler) Wait() {
	_ = r.pushes.Wait()
}

// Close cancels background pushes and waits for them to return.
func (r *Reconciler) Close() {
	r.cancel()
	r.Wait()
}
