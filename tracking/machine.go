/*
Package tracking implements the work-session state machine and the duration
calculator.

STATES:
  in_progress ──pause──▶ paused ──resume──▶ in_progress
       │                   │
       └──────finish───────┴──▶ finished (terminal)

  start creates a session directly in in_progress.

TRANSACTIONS:
  Every transition runs its precondition check and its writes inside one
  TxStore.WithTx call. The store's unique indexes back the one-active-session
  and one-open-pause rules, so two processes racing on the same actor or
  session cannot both commit.

TIMESTAMPS:
  Taken from the Machine's Clock inside the transaction. Callers never
  supply transition times.

RETRIES:
  A transition that returned a TransientStoreError committed nothing and may
  be retried as-is. A retried transition re-checks its preconditions, so a
  second finish after a successful one returns InvalidStateError.
*/
package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// MACHINE
// =============================================================================

type Machine struct {
	store     ledger.TxStore
	directory ledger.Directory
	tasks     ledger.TaskLookup
	clock     ledger.Clock
	logger    *zap.Logger
	newID     func() string
}

type Option func(*Machine)

func WithClock(c ledger.Clock) Option { return func(m *Machine) { m.clock = c } }

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithIDs overrides the session/pause ID generator.
func WithIDs(fn func() string) Option { return func(m *Machine) { m.newID = fn } }

func NewMachine(store ledger.TxStore, directory ledger.Directory, tasks ledger.TaskLookup, opts ...Option) *Machine {
	m := &Machine{
		store:     store,
		directory: directory,
		tasks:     tasks,
		clock:     ledger.SystemClock{},
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// INPUTS AND VIEWS
// =============================================================================

type StartInput struct {
	Actor  ledger.ActorID
	Client ledger.ClientID
	Task   ledger.TaskID
	Note   string
}

type BackdatedInput struct {
	Actor  ledger.ActorID
	Client ledger.ClientID
	Task   ledger.TaskID
	Start  time.Time
	End    time.Time
	Note   string
}

// ActiveView is an actor's live session with provisional totals.
type ActiveView struct {
	Session   ledger.WorkSession
	OpenPause *ledger.PauseInterval
	Pauses    []ledger.PauseInterval
	AsOf      time.Time
	Elapsed   Totals
}

// =============================================================================
// START
// =============================================================================

// Start opens a new in_progress session for the actor.
// Fails with ConflictError when the actor already has an active session.
func (m *Machine) Start(ctx context.Context, in StartInput) (ledger.WorkSession, error) {
	if err := m.checkTarget(ctx, in.Actor, in.Client, in.Task); err != nil {
		return ledger.WorkSession{}, err
	}

	var created ledger.WorkSession
	err := m.store.WithTx(ctx, func(tx ledger.Store) error {
		active, err := tx.ActiveSession(ctx, in.Actor)
		if err != nil {
			return err
		}
		if active != nil {
			return &ledger.ConflictError{Constraint: ledger.ConstraintActiveSession, ActorID: in.Actor, SessionID: active.ID}
		}

		created = ledger.WorkSession{
			ID:        ledger.SessionID(m.newID()),
			ActorID:   in.Actor,
			ClientID:  in.Client,
			TaskID:    in.Task,
			Status:    ledger.StatusInProgress,
			StartedAt: m.clock.Now(),
			Note:      strings.TrimSpace(in.Note),
		}
		return tx.CreateSession(ctx, created)
	})
	if err != nil {
		return ledger.WorkSession{}, m.fail("start", err, zap.String("actor", string(in.Actor)))
	}

	m.logger.Info("session started",
		zap.String("session", string(created.ID)),
		zap.String("actor", string(created.ActorID)),
		zap.String("client", string(created.ClientID)),
		zap.String("task", string(created.TaskID)),
	)
	return created, nil
}

// =============================================================================
// PAUSE / RESUME
// =============================================================================

// Pause suspends an in_progress session and opens a pause interval.
func (m *Machine) Pause(ctx context.Context, id ledger.SessionID, actor ledger.ActorID) (ledger.PauseInterval, error) {
	var pause ledger.PauseInterval
	err := m.store.WithTx(ctx, func(tx ledger.Store) error {
		s, err := loadOwned(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		if s.Status != ledger.StatusInProgress {
			return &ledger.InvalidStateError{SessionID: id, Status: s.Status, Op: "pause"}
		}

		pause = ledger.PauseInterval{
			ID:        ledger.PauseID(m.newID()),
			SessionID: id,
			PausedAt:  m.clock.Now(),
		}
		if err := tx.AddPause(ctx, pause); err != nil {
			return err
		}
		s.Status = ledger.StatusPaused
		return tx.UpdateSession(ctx, s)
	})
	if err != nil {
		return ledger.PauseInterval{}, m.fail("pause", err, zap.String("session", string(id)))
	}

	m.logger.Info("session paused", zap.String("session", string(id)), zap.String("actor", string(actor)))
	return pause, nil
}

// Resume closes the open pause of a paused session.
func (m *Machine) Resume(ctx context.Context, id ledger.SessionID, actor ledger.ActorID) (ledger.PauseInterval, error) {
	var closed ledger.PauseInterval
	err := m.store.WithTx(ctx, func(tx ledger.Store) error {
		s, err := loadOwned(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		if s.Status != ledger.StatusPaused {
			return &ledger.InvalidStateError{SessionID: id, Status: s.Status, Op: "resume"}
		}

		open, err := tx.OpenPause(ctx, id)
		if err != nil {
			return err
		}
		if open == nil {
			// paused without an open pause: the ledger is inconsistent, refuse
			return &ledger.InvalidStateError{SessionID: id, Status: s.Status, Op: "resume"}
		}

		now := m.clock.Now()
		if err := tx.ClosePause(ctx, open.ID, now); err != nil {
			return err
		}
		closed = *open
		closed.ResumedAt = &now

		s.Status = ledger.StatusInProgress
		return tx.UpdateSession(ctx, s)
	})
	if err != nil {
		return ledger.PauseInterval{}, m.fail("resume", err, zap.String("session", string(id)))
	}

	m.logger.Info("session resumed",
		zap.String("session", string(id)),
		zap.String("actor", string(actor)),
		zap.Duration("paused_for", closed.Duration(*closed.ResumedAt)),
	)
	return closed, nil
}

// =============================================================================
// FINISH
// =============================================================================

// Finish closes any open pause, stamps finished_at and stores the totals.
// Finished is terminal.
func (m *Machine) Finish(ctx context.Context, id ledger.SessionID, actor ledger.ActorID) (ledger.WorkSession, error) {
	var (
		finished ledger.WorkSession
		totals   Totals
	)
	err := m.store.WithTx(ctx, func(tx ledger.Store) error {
		s, err := loadOwned(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		if !s.Status.Active() {
			return &ledger.InvalidStateError{SessionID: id, Status: s.Status, Op: "finish"}
		}

		now := m.clock.Now()
		open, err := tx.OpenPause(ctx, id)
		if err != nil {
			return err
		}
		if open != nil {
			if err := tx.ClosePause(ctx, open.ID, now); err != nil {
				return err
			}
		}

		pauses, err := tx.Pauses(ctx, id)
		if err != nil {
			return err
		}

		s.Status = ledger.StatusFinished
		s.FinishedAt = &now
		totals, err = Compute(s, pauses)
		if err != nil {
			return err
		}
		totals.Apply(&s)

		finished = s
		return tx.UpdateSession(ctx, s)
	})
	if err != nil {
		return ledger.WorkSession{}, m.fail("finish", err, zap.String("session", string(id)))
	}

	m.warnClamped(finished, totals)
	m.logger.Info("session finished",
		zap.String("session", string(id)),
		zap.String("actor", string(actor)),
		zap.String("worked_hours", finished.WorkedHours().StringFixed(2)),
		zap.String("paused_hours", finished.PausedHours().StringFixed(2)),
	)
	return finished, nil
}

// =============================================================================
// GET ACTIVE
// =============================================================================

// Active returns the actor's in_progress or paused session with totals as
// of now, or nil when the actor has none.
func (m *Machine) Active(ctx context.Context, actor ledger.ActorID) (*ActiveView, error) {
	s, err := m.store.ActiveSession(ctx, actor)
	if err != nil {
		return nil, ledger.Transient("active", err)
	}
	if s == nil {
		return nil, nil
	}

	pauses, err := m.store.Pauses(ctx, s.ID)
	if err != nil {
		return nil, ledger.Transient("active", err)
	}

	now := m.clock.Now()
	view := &ActiveView{Session: *s, Pauses: pauses, AsOf: now, Elapsed: Elapsed(*s, pauses, now)}
	for i := range pauses {
		if pauses[i].Open() {
			p := pauses[i]
			view.OpenPause = &p
		}
	}
	return view, nil
}

// =============================================================================
// BACKDATED REGISTRATION
// =============================================================================

// RegisterBackdated stores an already finished session with explicit start
// and end. It bypasses the live state machine and never has pauses, so it
// does not count toward the one-active-session rule.
func (m *Machine) RegisterBackdated(ctx context.Context, in BackdatedInput) (ledger.WorkSession, error) {
	now := m.clock.Now()
	switch {
	case in.Start.IsZero() || in.End.IsZero():
		return ledger.WorkSession{}, &ledger.ValidationError{Field: "period", Message: "start and end are required"}
	case !in.End.After(in.Start):
		return ledger.WorkSession{}, &ledger.ValidationError{Field: "end", Message: "must be after start"}
	case in.Start.After(now) || in.End.After(now):
		return ledger.WorkSession{}, &ledger.ValidationError{Field: "period", Message: "cannot be in the future"}
	}
	if err := m.checkTarget(ctx, in.Actor, in.Client, in.Task); err != nil {
		return ledger.WorkSession{}, err
	}

	end := in.End.UTC()
	s := ledger.WorkSession{
		ID:         ledger.SessionID(m.newID()),
		ActorID:    in.Actor,
		ClientID:   in.Client,
		TaskID:     in.Task,
		Status:     ledger.StatusFinished,
		StartedAt:  in.Start.UTC(),
		FinishedAt: &end,
		Note:       strings.TrimSpace(in.Note),
		Backdated:  true,
	}
	totals, err := Compute(s, nil)
	if err != nil {
		return ledger.WorkSession{}, err
	}
	totals.Apply(&s)

	err = m.store.WithTx(ctx, func(tx ledger.Store) error {
		return tx.CreateSession(ctx, s)
	})
	if err != nil {
		return ledger.WorkSession{}, m.fail("register backdated", err, zap.String("actor", string(in.Actor)))
	}

	m.logger.Info("backdated session registered",
		zap.String("session", string(s.ID)),
		zap.String("actor", string(s.ActorID)),
		zap.String("worked_hours", s.WorkedHours().StringFixed(2)),
	)
	return s, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadOwned hides sessions of other actors behind NotFound.
func loadOwned(ctx context.Context, tx ledger.Store, id ledger.SessionID, actor ledger.ActorID) (ledger.WorkSession, error) {
	s, err := tx.GetSession(ctx, id)
	if err != nil {
		return ledger.WorkSession{}, err
	}
	if s.ActorID != actor {
		return ledger.WorkSession{}, &ledger.NotFoundError{Kind: "session", ID: string(id)}
	}
	return s, nil
}

// checkTarget validates the actor and the task/client pair a session books.
func (m *Machine) checkTarget(ctx context.Context, actorID ledger.ActorID, client ledger.ClientID, taskID ledger.TaskID) error {
	switch {
	case actorID == "":
		return &ledger.ValidationError{Field: "actor", Message: "is required"}
	case client == "":
		return &ledger.ValidationError{Field: "client", Message: "is required"}
	case taskID == "":
		return &ledger.ValidationError{Field: "task", Message: "is required"}
	}

	actor, err := m.directory.GetActor(ctx, actorID)
	if err != nil {
		return ledger.Transient("lookup actor", err)
	}
	if !actor.Active {
		return &ledger.ValidationError{Field: "actor", Message: "actor " + string(actorID) + " is inactive"}
	}

	task, err := m.tasks.GetTask(ctx, taskID)
	if err != nil {
		return ledger.Transient("lookup task", err)
	}
	if task.ClientID != client {
		return &ledger.ValidationError{Field: "task", Message: "task " + string(taskID) + " does not belong to client " + string(client)}
	}
	return nil
}

// fail wraps untyped errors as transient and logs the rejection.
func (m *Machine) fail(op string, err error, fields ...zap.Field) error {
	err = ledger.Transient(op, err)
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if ledger.IsRetryable(err) {
		m.logger.Error("transition aborted", fields...)
	} else {
		m.logger.Info("transition rejected", fields...)
	}
	return err
}

func (m *Machine) warnClamped(s ledger.WorkSession, t Totals) {
	if !t.Clamped {
		return
	}
	m.logger.Warn("negative duration clamped to zero",
		zap.String("session", string(s.ID)),
		zap.Duration("raw_total", t.RawTotal),
		zap.Duration("raw_worked", t.RawWorked),
		zap.Duration("paused", t.Paused),
	)
}
