package models

import (
	"errors"
	"fmt"
)

// Local guard failures. These are produced before any network call is made.
var (
	// ErrNotPermitted means the current identity fails the capability guard
	// for the attempted action.
	ErrNotPermitted = errors.New("action not permitted for current user")

	// ErrEmptyMessage means a send was attempted with no text and no image.
	ErrEmptyMessage = errors.New("message has no content or attachment")
)

// AuthError reports a missing, invalid or expired credential. It is never
// retried automatically; the caller should re-authenticate.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a failed read (refresh, get, list). The previous
// snapshot stays valid; the next poll tick retries naturally.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed (status %d)", e.Op, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError reports a failed write (send message, claim, close). Conflict is
// set for 409 responses, e.g. claiming an already-claimed session.
type SendError struct {
	Op       string
	Status   int
	Conflict bool
	Err      error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed (status %d)", e.Op, e.Status)
}

func (e *SendError) Unwrap() error { return e.Err }
