/*
Package ledger holds the time-tracking data model and its storage contracts.

PURPOSE:
  Everything else in the module reads and writes these types. The ledger
  itself has no behavior beyond the data model, the error taxonomy, and the
  Store interfaces that durable and in-memory implementations satisfy.

KEY CONCEPTS IN THIS FILE (types.go):
  - WorkSession: one start→finish cycle of one actor on one task
  - PauseInterval: a sub-period of a session during which work is suspended
  - Status: in_progress, paused, finished (finished is terminal)
  - Typed IDs so session, pause, actor and task IDs cannot be mixed up

PRECISION:
  Durations are kept as time.Duration (nanoseconds) everywhere. Hours are
  derived on demand as decimal.Decimal rounded to two places, so rounded
  values are never fed back into sums.

SEE ALSO:
  - actor.go: Actor and the closed Role enumeration
  - store.go: Store / TxStore contracts
  - errors.go: NotFound, InvalidState, Conflict, Validation, TransientStore
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SessionID string
type PauseID string

// ActorID is the actor's login.
type ActorID string

// ClientID is the client's normalized tax id (CPF or CNPJ digits).
type ClientID string

type TaskID string

// =============================================================================
// STATUS - Session state machine discriminant
// =============================================================================

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusFinished   Status = "finished"
)

// Active reports whether the status counts toward the one-active-session rule.
func (s Status) Active() bool {
	return s == StatusInProgress || s == StatusPaused
}

func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusPaused, StatusFinished:
		return true
	}
	return false
}

// =============================================================================
// WORK SESSION
// =============================================================================

// WorkSession is one continuous, possibly pause-interrupted, period of work.
// ActorID, ClientID, TaskID, StartedAt and Note never change after creation.
// FinishedAt and the three durations are set exactly once, on finish.
type WorkSession struct {
	ID         SessionID
	ActorID    ActorID
	ClientID   ClientID
	TaskID     TaskID
	Status     Status
	StartedAt  time.Time
	FinishedAt *time.Time
	Note       string

	// Derived on finish.
	Total  time.Duration
	Paused time.Duration
	Worked time.Duration

	// Backdated sessions were registered already finished, outside the
	// live state machine.
	Backdated bool
}

func (s WorkSession) IsFinished() bool { return s.Status == StatusFinished }

func (s WorkSession) TotalHours() decimal.Decimal  { return Hours(s.Total) }
func (s WorkSession) PausedHours() decimal.Decimal { return Hours(s.Paused) }
func (s WorkSession) WorkedHours() decimal.Decimal { return Hours(s.Worked) }

// =============================================================================
// PAUSE INTERVAL
// =============================================================================

// PauseInterval is open while ResumedAt is nil.
type PauseInterval struct {
	ID        PauseID
	SessionID SessionID
	PausedAt  time.Time
	ResumedAt *time.Time
}

func (p PauseInterval) Open() bool { return p.ResumedAt == nil }

// Duration returns the length of the pause. An open pause is measured up to
// end.
func (p PauseInterval) Duration(end time.Time) time.Duration {
	stop := end
	if p.ResumedAt != nil {
		stop = *p.ResumedAt
	}
	return stop.Sub(p.PausedAt)
}

// =============================================================================
// HOURS
// =============================================================================

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// Hours converts d to hours rounded half-up to two decimals.
func Hours(d time.Duration) decimal.Decimal {
	return ExactHours(d).Round(2)
}

// ExactHours converts d to hours without rounding.
func ExactHours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Div(nanosPerHour)
}

// DurationFromHours is the inverse of ExactHours, truncated to the nanosecond.
func DurationFromHours(h decimal.Decimal) time.Duration {
	return time.Duration(h.Mul(nanosPerHour).IntPart())
}
