// Package apperr holds the error taxonomy shared by the services and the
// HTTP layer. Services wrap these with %w; handlers match them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrSelfRequest        = errors.New("cannot send a friend request to yourself")
	ErrDuplicateRequest   = errors.New("an active friend request already exists between these users")
	ErrInvalidTransition  = errors.New("friendship is not in a state that allows this action")
	ErrNotAuthorized      = errors.New("not allowed to perform this action")
	ErrNotFound           = errors.New("not found")
	ErrNotMember          = errors.New("not a member of this conversation")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrTransportFailure is a store or network failure. Callers may retry.
	ErrTransportFailure = errors.New("backend unavailable, please retry")
)

// Transport wraps a store error that is not a domain conflict.
func Transport(err error) error {
	return fmt.Errorf("%w: %v", ErrTransportFailure, err)
}

// Invalid wraps a validation message as ErrInvalidInput.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
