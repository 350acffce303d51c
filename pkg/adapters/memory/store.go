// Package memory provides an in-process core.Store. It is the store used in
// tests and by sessions that do not need durability.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/contractflow/pkg/core"
)

type signatureKey struct {
	contractID string
	role       core.Role
}

// Store keeps contracts and signatures in maps. Values are copied on the way
// in and out so callers never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	contracts   map[string]core.Contract
	signatures  map[signatureKey]core.Signature
	unavailable bool
	writes      int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		contracts:  make(map[string]core.Contract),
		signatures: make(map[signatureKey]core.Signature),
	}
}

// SetUnavailable simulates a remote outage. While set, every call fails with
// core.ErrUnavailable.
func (s *Store) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

// Writes returns the number of successful write calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrUnavailable, err)
	}
	if s.unavailable {
		return core.ErrUnavailable
	}
	return nil
}

// GetContract implements core.Store.
func (s *Store) GetContract(ctx context.Context, id string) (core.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return core.Contract{}, err
	}
	c, ok := s.contracts[id]
	if !ok {
		return core.Contract{}, core.ErrNotFound
	}
	return c.Clone(), nil
}

// PutContract implements core.Store.
func (s *Store) PutContract(ctx context.Context, c core.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.contracts[c.ID] = c.Clone()
	s.writes++
	return nil
}

// GetSignature implements core.Store.
func (s *Store) GetSignature(ctx context.Context, contractID string, role core.Role) (core.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return core.Signature{}, err
	}
	sig, ok := s.signatures[signatureKey{contractID, role}]
	if !ok {
		return core.Signature{}, core.ErrNotFound
	}
	sig.SignatureImage = bytes.Clone(sig.SignatureImage)
	return sig, nil
}

// PutSignature implements core.Store.
func (s *Store) PutSignature(ctx context.Context, sig core.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	sig.SignatureImage = bytes.Clone(sig.SignatureImage)
	s.signatures[signatureKey{sig.ContractID, sig.Role}] = sig
	s.writes++
	return nil
}

// DeleteSignature implements core.Store.
func (s *Store) DeleteSignature(ctx context.Context, contractID string, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	key := signatureKey{contractID, role}
	if _, ok := s.signatures[key]; !ok {
		return core.ErrNotFound
	}
	delete(s.signatures, key)
	s.writes++
	return nil
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string { return "memory" }

var _ core.Store = (*Store)(nil)
