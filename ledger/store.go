/*
store.go - Persistence contracts for sessions, pauses, actors and tasks

PURPOSE:
  Defines the interface between the domain logic and the database.
  Implementations: store/sqlite (durable) and ledger/store (in-memory, tests).

KEY INTERFACES:
  Store:      Session and pause persistence
  TxStore:    Store plus WithTx for atomic read-check-write sequences
  Directory:  Actor snapshot read by the scope resolver and the machine
  TaskLookup: Task catalog lookups used when a session starts

INVARIANTS DELEGATED TO THE STORE:
  - at most one session per actor with status in_progress or paused
  - at most one open pause per session
  Both surface as *ConflictError. A durable store enforces them with unique
  indexes so that concurrent processes cannot both pass a check.

NOT-FOUND CONTRACT:
  Getters return *NotFoundError when the row is missing. ActiveSession and
  OpenPause return (nil, nil) when there is nothing active/open.
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Sessions and pauses
// =============================================================================

type Store interface {
	CreateSession(ctx context.Context, s WorkSession) error
	GetSession(ctx context.Context, id SessionID) (WorkSession, error)
	ActiveSession(ctx context.Context, actor ActorID) (*WorkSession, error)

	// UpdateSession persists status, finished_at and the derived durations.
	// Immutable fields are ignored.
	UpdateSession(ctx context.Context, s WorkSession) error

	AddPause(ctx context.Context, p PauseInterval) error
	OpenPause(ctx context.Context, session SessionID) (*PauseInterval, error)
	ClosePause(ctx context.Context, id PauseID, resumedAt time.Time) error

	// Pauses returns the session's pauses ordered by PausedAt.
	Pauses(ctx context.Context, session SessionID) ([]PauseInterval, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// DIRECTORY AND TASK LOOKUP
// =============================================================================

type Directory interface {
	GetActor(ctx context.Context, login ActorID) (Actor, error)
	ListActors(ctx context.Context) ([]Actor, error)
}

type TaskLookup interface {
	GetTask(ctx context.Context, id TaskID) (Task, error)
}
