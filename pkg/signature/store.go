// Package signature manages the per-role signatures of a contract and keeps
// the contract status in step with them.
package signature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/contractflow/pkg/cache"
	"github.com/aretw0/contractflow/pkg/clock"
	"github.com/aretw0/contractflow/pkg/core"
	"github.com/aretw0/contractflow/pkg/events"
)

// StatusUpdater is the part of core.ContractRepository that signing drives.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, patch core.StatusPatch) error
}

// Data is what a signer submits.
type Data struct {
	SignerUserID string
	Name         string
	Image        []byte
	IPAddress    string
	UserAgent    string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for signing timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store reads and writes signatures through the remote store and caches the
// per-contract view locally until it is invalidated.
type Store struct {
	remote core.Store
	status StatusUpdater
	cached *cache.Typed[core.Signatures]
	bus    *events.Bus
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a signature store.
func New(remote core.Store, status StatusUpdater, c *cache.Cache, bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		status: status,
		cached: cache.NewTyped[core.Signatures](c),
		bus:    bus,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signatures returns both roles' signatures, from the cache when present.
// A role that has not signed is nil.
func (s *Store) Signatures(ctx context.Context, contractID string) (core.Signatures, error) {
	key := cache.SignaturesKey(contractID)
	entry, ok, err := s.cached.Get(key)
	if err != nil {
		s.logger.Warn("ignoring unreadable cached signatures", "contract", contractID, "error", err)
	}
	if ok {
		return entry.Value, nil
	}

	sigs, err := s.fetch(ctx, contractID)
	if err != nil {
		return core.Signatures{}, err
	}
	if err := s.cached.Set(key, core.CacheEntry[core.Signatures]{
		Value:       sigs,
		LastUpdated: s.clock.Now(),
		Source:      core.SourceRemote,
	}); err != nil {
		s.logger.Warn("failed to cache signatures", "contract", contractID, "error", err)
	}
	return sigs, nil
}

func (s *Store) fetch(ctx context.Context, contractID string) (core.Signatures, error) {
	found := make([]*core.Signature, len(core.Roles))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range core.Roles {
		g.Go(func() error {
			sig, err := s.remote.GetSignature(gctx, contractID, role)
			if errors.Is(err, core.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("get %s signature of %s: %w", role, contractID, err)
			}
			found[i] = &sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.Signatures{}, err
	}

	var sigs core.Signatures
	for i, role := range core.Roles {
		sigs = sigs.With(role, found[i])
	}
	return sigs, nil
}

// Invalidate drops the cached signatures of a contract.
func (s *Store) Invalidate(contractID string) {
	if err := s.cached.Delete(cache.SignaturesKey(contractID)); err != nil {
		s.logger.Warn("failed to invalidate cached signatures", "contract", contractID, "error", err)
	}
}

// Sign records role's signature. The contract becomes signed once every
// role has signed and pending until then.
func (s *Store) Sign(ctx context.Context, contractID string, role core.Role, data Data) error {
	if !role.Valid() {
		return fmt.Errorf("sign %s: unknown role %q: %w", contractID, role, core.ErrValidation)
	}
	if strings.TrimSpace(data.Name) == "" {
		return fmt.Errorf("sign %s as %s: signer name is required: %w", contractID, role, core.ErrValidation)
	}

	sigs, err := s.Signatures(ctx, contractID)
	if err != nil {
		return fmt.Errorf("sign %s: %w", contractID, err)
	}
	if sigs.For(role) != nil {
		return fmt.Errorf("sign %s as %s: %w", contractID, role, core.ErrAlreadySigned)
	}

	now := s.clock.Now()
	sig := core.Signature{
		ContractID:     contractID,
		Role:           role,
		SignerUserID:   data.SignerUserID,
		Name:           data.Name,
		SignatureImage: data.Image,
		SignedAt:       now,
	}
	if err := s.remote.PutSignature(ctx, sig); err != nil {
		return fmt.Errorf("sign %s as %s: %w", contractID, role, err)
	}
	s.Invalidate(contractID)
	sigs = sigs.With(role, &sig)

	status := core.StatusPending
	if sigs.Complete() {
		status = core.StatusSigned
	}
	statusErr := s.status.UpdateStatus(ctx, contractID, core.StatusPatch{
		Status: status,
		Metadata: core.Metadata{
			IPAddress: data.IPAddress,
			UserAgent: data.UserAgent,
			SignedBy:  signer(data),
			SignedAt:  now,
		},
	})
	s.logger.Info("contract signed", "contract", contractID, "role", role, "status", status)

	s.bus.Publish(events.TopicSignatureChanged, events.SignatureChanged{
		ContractID:           contractID,
		Role:                 role,
		HasDesignerSignature: sigs.HasDesigner(),
		Source:               events.SourceUser,
	})
	if statusErr != nil {
		s.logger.Warn("signature stored but status update failed", "contract", contractID, "role", role, "status", status, "error", statusErr)
		return fmt.Errorf("sign %s: %w", contractID, statusErr)
	}
	return nil
}

// Unsign removes role's signature and returns the contract to draft.
func (s *Store) Unsign(ctx context.Context, contractID string, role core.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unsign %s: unknown role %q: %w", contractID, role, core.ErrValidation)
	}

	sigs, err := s.Signatures(ctx, contractID)
	if err != nil {
		return fmt.Errorf("unsign %s: %w", contractID, err)
	}
	if err := s.remote.DeleteSignature(ctx, contractID, role); err != nil {
		return fmt.Errorf("unsign %s as %s: %w", contractID, role, err)
	}
	sigs = sigs.With(role, nil)

	statusErr := s.status.UpdateStatus(ctx, contractID, core.StatusPatch{Status: core.StatusDraft})
	s.Invalidate(contractID)
	s.logger.Info("contract unsigned", "contract", contractID, "role", role)

	s.bus.Publish(events.TopicSignatureChanged, events.SignatureChanged{
		ContractID:           contractID,
		Role:                 role,
		HasDesignerSignature: sigs.HasDesigner(),
		Source:               events.SourceUser,
	})
	if statusErr != nil {
		s.logger.Warn("signature removed but status reset failed", "contract", contractID, "role", role, "error", statusErr)
		return fmt.Errorf("unsign %s: %w", contractID, statusErr)
	}
	return nil
}

func signer(d Data) string {
	if d.SignerUserID != "" {
		return d.SignerUserID
	}
	return d.Name
}
