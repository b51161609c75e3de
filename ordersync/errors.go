package ordersync

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload marks a push event whose order payload carries no
// id. The reconciler treats it as "unknown, re-sync" and falls back to
// a full refresh instead of dropping the update.
var ErrMalformedPayload = errors.New("push payload missing order id")

// NetworkError wraps a transport failure (request failed or timed out).
// Retryable; the caller keeps its refresh action enabled.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError is raised locally before any request is sent: bad
// quantity, illegal transition, empty selection.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ConflictError means the server rejected a command because the order
// changed concurrently (e.g. an item was served in the meantime). The
// dispatcher forces a full refresh when it sees one.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// NotFoundError means the order or item no longer exists server-side
// (a race with another actor).
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}
