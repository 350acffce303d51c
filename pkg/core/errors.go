package core

import "errors"

// Error kinds shared by every component. Callers match them with errors.Is;
// components wrap them with context.
var (
	// ErrNotFound reports a missing contract or signature.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied reports an ownership mismatch.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnavailable reports that the remote store could not be reached.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrValidation reports input that blocks the operation, such as leaving
	// the edit stage with empty content.
	ErrValidation = errors.New("validation failed")
	// ErrStaleWrite is informational: a local value was older than the remote
	// one during reconciliation and was overwritten.
	ErrStaleWrite = errors.New("stale local write")
	// ErrInvalidTransition reports a stage transition whose guard failed.
	ErrInvalidTransition = errors.New("stage transition not allowed")
	// ErrAlreadySigned reports a second signature for a role.
	ErrAlreadySigned = errors.New("role already signed")
	// ErrConfirmationRequired reports removal of a designer signature without
	// explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrReadOnly reports a content write while the editor is locked.
	ErrReadOnly = errors.New("contract is read-only")
)
