package store

import "errors"

// Sentinel errors returned by Repository methods. Handlers translate these
// into the wire-level apierr taxonomy; the repository itself knows nothing
// about HTTP status codes or "__type" strings.
var (
	// ErrNotFound is returned when a named secret or version does not exist,
	// or a secret's recovery window has elapsed (treated as not-found).
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned when creating a secret whose name is
	// already in use by a non-deleted secret.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrAlreadyDeleted is returned when a mutating operation (other than
	// RestoreSecret) targets a soft-deleted secret.
	ErrAlreadyDeleted = errors.New("store: secret marked for deletion")

	// ErrNotDeleted is returned by RestoreSecret against a secret that is
	// not currently soft-deleted.
	ErrNotDeleted = errors.New("store: secret is not scheduled for deletion")

	// ErrTokenConflict is returned when a client request token collides with
	// an existing version whose payload differs.
	ErrTokenConflict = errors.New("store: client request token collision")

	// ErrInvalidStage is returned for a stage-move that would violate a
	// data-model invariant (e.g. removing AWSCURRENT without a destination).
	ErrInvalidStage = errors.New("store: invalid stage operation")

	// ErrInvalidNextToken is returned when a pagination token does not
	// decode, or does not match the filter set it was bound to.
	ErrInvalidNextToken = errors.New("store: invalid next token")
)
