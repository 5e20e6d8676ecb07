/*
errors.go - Error taxonomy shared by every layer

PURPOSE:
  All error kinds in one place. Every failure the core returns is one of
  five kinds, each with a sentinel for errors.Is and a structured type that
  carries context for messages and API payloads.

ERROR KINDS:
  NotFound       - referenced session/actor/task/client does not exist
  InvalidState   - operation not valid for the session's current status
  Conflict       - one-active-session rule or a uniqueness constraint
  Validation     - malformed input
  TransientStore - datastore unavailable or transaction aborted (retryable)

Only TransientStore should be retried automatically. The other kinds need
a changed request first.

USAGE:
  if errors.Is(err, ledger.ErrConflict) { ... }

  var inv *ledger.InvalidStateError
  if errors.As(err, &inv) { ... inv.Status ... }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrConflict       = errors.New("conflict")
	ErrValidation     = errors.New("validation failed")
	ErrTransientStore = errors.New("transient store failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity kind ("session", "actor", ...).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStateError is returned when Op is not allowed in Status.
type InvalidStateError struct {
	SessionID SessionID
	Status    Status
	Op        string
}

func (e *InvalidStateError) Error() string {
	switch e.Status {
	case StatusFinished:
		return fmt.Sprintf("cannot %s session %s: session is already finished", e.Op, e.SessionID)
	case StatusPaused:
		return fmt.Sprintf("cannot %s session %s: session is paused", e.Op, e.SessionID)
	case StatusInProgress:
		return fmt.Sprintf("cannot %s session %s: session is not paused", e.Op, e.SessionID)
	}
	return fmt.Sprintf("cannot %s session %s in status %s", e.Op, e.SessionID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ConflictError covers the one-active-session rule and store uniqueness
// constraints. Constraint names the violated rule.
type ConflictError struct {
	Constraint string
	ActorID    ActorID
	SessionID  SessionID
	Detail     string
}

const (
	ConstraintActiveSession = "active_session"
	ConstraintOpenPause     = "open_pause"
	ConstraintUnique        = "unique"
	ConstraintReferenced    = "referenced"
)

func (e *ConflictError) Error() string {
	switch e.Constraint {
	case ConstraintActiveSession:
		if e.SessionID != "" {
			return fmt.Sprintf("actor %s already has an active session (%s)", e.ActorID, e.SessionID)
		}
		return fmt.Sprintf("actor %s already has an active session", e.ActorID)
	case ConstraintOpenPause:
		return fmt.Sprintf("session %s already has an open pause", e.SessionID)
	}
	if e.Detail != "" {
		return "conflict: " + e.Detail
	}
	return "conflict: " + e.Constraint
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransientStoreError wraps a datastore failure. Nothing was committed.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() []error { return []error{ErrTransientStore, e.Err} }

// Transient wraps err as a TransientStoreError unless it already belongs to
// one of the five kinds.
func Transient(op string, err error) error {
	if err == nil || IsKnown(err) {
		return err
	}
	return &TransientStoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

// IsClientError returns true if the request must change before a retry helps.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsKnown reports whether err carries one of the five kinds.
func IsKnown(err error) bool {
	return IsClientError(err) || IsRetryable(err)
}
