package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/contractflow/pkg/clock"
)

// StatusPatch is a partial status update. Zero fields are left untouched.
type StatusPatch struct {
	Status   Status
	Metadata Metadata
	// At stamps UpdatedAt. Zero means now.
	At time.Time
}

// ContractRepository applies the contract document rules (ownership,
// versioning, signature-derived metadata) on top of a Store.
type ContractRepository struct {
	store    Store
	identity Identity
	clock    clock.Clock
	logger   *slog.Logger
	newID    func() string
}

// RepositoryOption configures a ContractRepository.
type RepositoryOption func(*ContractRepository)

// WithClock sets the time source used for timestamps.
func WithClock(c clock.Clock) RepositoryOption {
	return func(r *ContractRepository) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(r *ContractRepository) { r.logger = logger }
}

// WithIDGenerator replaces the uuid generator used on first save.
func WithIDGenerator(fn func() string) RepositoryOption {
	return func(r *ContractRepository) { r.newID = fn }
}

// NewContractRepository creates a repository over store. The identity
// decides who may save.
func NewContractRepository(store Store, identity Identity, opts ...RepositoryOption) *ContractRepository {
	r := &ContractRepository{
		store:    store,
		identity: identity,
		clock:    clock.Real(),
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get retrieves a contract.
func (r *ContractRepository) Get(ctx context.Context, id string) (Contract, error) {
	if strings.TrimSpace(id) == "" {
		return Contract{}, fmt.Errorf("contract id is required: %w", ErrValidation)
	}
	c, err := r.store.GetContract(ctx, id)
	if err != nil {
		return Contract{}, fmt.Errorf("get contract %s: %w", id, err)
	}
	return c, nil
}

// Save writes content, status and metadata in one store call and returns
// the contract id. The caller must own the contract. A contract without an
// id is created as a draft at version 1.
func (r *ContractRepository) Save(ctx context.Context, c Contract) (string, error) {
	caller, err := r.identity.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("save contract: resolve user: %w", err)
	}
	if c.OwnerID != caller {
		return "", fmt.Errorf("save contract %s: owner %q is not the current user: %w", c.ID, c.OwnerID, ErrPermissionDenied)
	}

	now := r.clock.Now()
	created := false
	if c.ID == "" {
		c.ID = r.newID()
		created = true
	} else {
		existing, err := r.store.GetContract(ctx, c.ID)
		switch {
		case err == nil:
			if existing.OwnerID != caller {
				return "", fmt.Errorf("save contract %s: stored owner differs: %w", c.ID, ErrPermissionDenied)
			}
			c.CreatedAt = existing.CreatedAt
			c.Version = existing.Version
			c.PreviousVersions = existing.PreviousVersions
		case errors.Is(err, ErrNotFound):
			created = true
		default:
			return "", fmt.Errorf("save contract %s: %w", c.ID, err)
		}
	}

	if created {
		c.CreatedAt = now
		c.Version = 1
		c.PreviousVersions = nil
		if c.Status == "" {
			c.Status = StatusDraft
		}
	}
	if !c.Status.Valid() {
		return "", fmt.Errorf("save contract %s: unknown status %q: %w", c.ID, c.Status, ErrValidation)
	}
	c.UpdatedAt = now
	c.Metadata.LastActivity = now

	if err := r.store.PutContract(ctx, c); err != nil {
		return "", fmt.Errorf("save contract %s: %w", c.ID, err)
	}
	r.logger.Debug("contract saved", "contract", c.ID, "created", created, "bytes", len(c.Content))
	return c.ID, nil
}

// UpdateStatus merges patch into the stored contract.
//
// Entering signed archives the current content and bumps the version.
// Going back to draft drops the signature-derived metadata and refreshes
// the last activity. A patch that changes nothing but timestamps is not
// written, so repeating an update leaves the stored document as it was.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id string, patch StatusPatch) error {
	if patch.Status != "" && !patch.Status.Valid() {
		return fmt.Errorf("update status %s: unknown status %q: %w", id, patch.Status, ErrValidation)
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	now := r.clock.Now()
	next := current.Clone()
	mergeMetadata(&next.Metadata, patch.Metadata)

	switch patch.Status {
	case StatusSigned:
		if current.Status != StatusSigned {
			next.PreviousVersions = append(next.PreviousVersions, Revision{
				Content:   bytes.Clone(current.Content),
				UpdatedAt: current.UpdatedAt,
				Version:   current.Version,
			})
			next.Version = current.Version + 1
		}
	case StatusDraft:
		next.Metadata.SignedBy = ""
		next.Metadata.SignedAt = time.Time{}
		next.Metadata.LastActivity = now
	}
	if patch.Status != "" {
		next.Status = patch.Status
	}
	if unchanged(current, next, patch) {
		r.logger.Debug("contract status unchanged", "contract", id, "status", current.Status)
		return nil
	}
	next.UpdatedAt = now
	if !patch.At.IsZero() {
		next.UpdatedAt = patch.At
	}

	if err := r.store.PutContract(ctx, next); err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	r.logger.Debug("contract status updated", "contract", id, "from", current.Status, "to", next.Status, "version", next.Version)
	return nil
}

// RecordView counts one view of the contract.
func (r *ContractRepository) RecordView(ctx context.Context, id string) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	current.Metadata.ViewCount++
	current.Metadata.LastActivity = r.clock.Now()
	if err := r.store.PutContract(ctx, current); err != nil {
		return fmt.Errorf("record view %s: %w", id, err)
	}
	return nil
}

// unchanged reports whether next differs from current only in the
// timestamps UpdateStatus refreshes on its own.
func unchanged(current, next Contract, patch StatusPatch) bool {
	a, b := current.Metadata, next.Metadata
	if !patch.Metadata.LastActivity.IsZero() && !a.LastActivity.Equal(b.LastActivity) {
		return false
	}
	return current.Status == next.Status &&
		current.Version == next.Version &&
		a.IPAddress == b.IPAddress &&
		a.UserAgent == b.UserAgent &&
		a.ViewCount == b.ViewCount &&
		a.SignedBy == b.SignedBy &&
		a.SignedAt.Equal(b.SignedAt)
}

func mergeMetadata(dst *Metadata, src Metadata) {
	if src.IPAddress != "" {
		dst.IPAddress = src.IPAddress
	}
	if src.UserAgent != "" {
		dst.UserAgent = src.UserAgent
	}
	if !src.LastActivity.IsZero() {
		dst.LastActivity = src.LastActivity
	}
	if src.ViewCount > 0 {
		dst.ViewCount = src.ViewCount
	}
	if src.SignedBy != "" {
		dst.SignedBy = src.SignedBy
	}
	if !src.SignedAt.IsZero() {
		dst.SignedAt = src.SignedAt
	}
}
