package repositories

import "errors"

// Sentinel errors returned (wrapped) by every repository implementation.
// Services translate them into domain errors with errors.Is.
var (
	// ErrNotFound is returned when no row/document matches the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConflict is returned when a conditional update matched no row because
	// the record changed underneath the caller.
	ErrConflict = errors.New("record changed concurrently")

	// ErrStoreUnavailable is returned when a backing store cannot be reached or
	// times out. It is an infrastructure failure, never an authorization one.
	ErrStoreUnavailable = errors.New("store unavailable")
)
