package core

import (
	"context"
)

// Store is the authoritative remote document store. Adapters return
// ErrNotFound for missing documents and ErrUnavailable when the backend
// cannot be reached.
type Store interface {
	// GetContract loads contracts/{id}.
	GetContract(ctx context.Context, id string) (Contract, error)

	// PutContract writes the whole contract document, version history included.
	PutContract(ctx context.Context, c Contract) error

	// GetSignature loads contracts/{id}/signatures/{role}.
	GetSignature(ctx context.Context, contractID string, role Role) (Signature, error)

	// PutSignature writes one signature document.
	PutSignature(ctx context.Context, s Signature) error

	// DeleteSignature removes one signature document. Deleting an absent
	// signature returns ErrNotFound.
	DeleteSignature(ctx context.Context, contractID string, role Role) error
}

// Identity is the boundary to the auth provider. It only reports who the
// current user is.
type Identity interface {
	CurrentUser(ctx context.Context) (string, error)
}

// StaticIdentity is an Identity that always reports the same user.
type StaticIdentity string

// CurrentUser implements Identity.
func (s StaticIdentity) CurrentUser(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrPermissionDenied
	}
	return string(s), nil
}
