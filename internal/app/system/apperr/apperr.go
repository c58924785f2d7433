// internal/app/system/apperr/apperr.go

// Package apperr defines the typed failures surfaced by the stores.
//
// Callers (the feature handlers) branch on these with errors.Is to pick a
// response; none of them may be collapsed into a generic failure, because
// the UI renders different states for not-found vs. not-authorized vs.
// duplicate. Store I/O errors that are none of these are wrapped as
// Transient so idempotent operations can be retried.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated: no caller identity where one is required.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNotFound: a referenced entity id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized: the caller is not the addressed party
	// (e.g. accepting someone else's friend request).
	ErrNotAuthorized = errors.New("not authorized")

	// ErrDuplicateRequest: a pending friend request already exists for the
	// exact ordered (from, to) pair.
	ErrDuplicateRequest = errors.New("friend request already sent")

	// ErrAlreadyMember: a membership row already exists for (group, user).
	ErrAlreadyMember = errors.New("user is already a member of this group")

	// ErrTransient marks store I/O failures. Safe to retry idempotent
	// operations; non-idempotent inserts need a dedupe check first.
	ErrTransient = errors.New("transient store error")
)

// Transient wraps a store I/O error so errors.Is(err, ErrTransient) holds
// while the cause stays reachable through Unwrap.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
