package models

import "errors"

// Sentinel errors shared by repositories and services. Callers match them
// with errors.Is; the controllers map them to HTTP statuses in one place.
var (
	// ErrNotFound covers a missing subject as well as a missing history
	// entry (including one already consumed by a concurrent rollback).
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks a rejected request payload (form validation).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidEntry marks a history entry that violates the
	// action/snapshot invariant at append time.
	ErrInvalidEntry = errors.New("invalid history entry")

	// ErrCorruptHistory marks a stored snapshot that cannot be decoded, or
	// whose schema tag does not match the expected subject kind.
	ErrCorruptHistory = errors.New("corrupt history snapshot")

	// ErrUnknownAction marks an action value outside the closed set. It is
	// unreachable when entries go through Validate at append time.
	ErrUnknownAction = errors.New("unknown history action")
)
