// Package store defines the errors every storage adapter reports. The
// adapters live in the memory and postgres subpackages; the interfaces they
// satisfy are declared by the services that consume them.
package store

import "errors"

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("store: conflict")

	// ErrStale is returned by compare-and-set updates when the row is no
	// longer in the expected state.
	ErrStale = errors.New("store: stale state")
)
