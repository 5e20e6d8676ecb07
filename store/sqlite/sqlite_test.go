/*
sqlite_test.go - Integration tests for the SQLite store

Tests for:
- One-active-session and one-open-pause unique indexes
- State machine transitions persisted and reloaded
- Concurrent starts for one actor (exactly one wins)
- Catalog delete guard (service count and foreign keys)
- Report rows joined end to end through the engine
- Alert idempotency and notification window
*/
package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/warp/hours-engine/access"
	"github.com/warp/hours-engine/alerts"
	"github.com/warp/hours-engine/catalog"
	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/report"
	"github.com/warp/hours-engine/seed"
	"github.com/warp/hours-engine/store/sqlite"
	"github.com/warp/hours-engine/tracking"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var ref = time.Date(2025, time.April, 14, 9, 0, 0, 0, time.UTC)

type env struct {
	store   *sqlite.Store
	clock   *ledger.ManualClock
	machine *tracking.Machine
	catalog *catalog.Service
	demo    *seed.Demo
}

func newEnv(t *testing.T, path string) *env {
	t.Helper()
	st, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := ledger.NewManualClock(ref)
	e := &env{
		store:   st,
		clock:   clock,
		machine: tracking.NewMachine(st, st, st, tracking.WithClock(clock)),
		catalog: catalog.NewService(st, clock, nil),
	}
	e.demo, err = seed.Load(context.Background(), e.catalog, e.machine, ref)
	require.NoError(t, err)
	return e
}

func (e *env) startInput(actor ledger.ActorID, task string) tracking.StartInput {
	tk := e.demo.Tasks[task]
	return tracking.StartInput{Actor: actor, Client: tk.ClientID, Task: tk.ID}
}

// =============================================================================
// INVARIANT INDEXES
// =============================================================================

func TestStore_OneActiveSessionIndex(t *testing.T) {
	// GIVEN: ana has an in-progress session written directly
	// WHEN: a second active session is inserted bypassing the machine
	// THEN: the unique index rejects it as an active-session conflict
	ctx := context.Background()
	e := newEnv(t, ":memory:")
	in := e.startInput("ana", "acme-audit")

	s := ledger.WorkSession{ID: "s-1", ActorID: "ana", ClientID: in.Client, TaskID: in.Task, Status: ledger.StatusInProgress, StartedAt: ref}
	require.NoError(t, e.store.CreateSession(ctx, s))

	s.ID, s.Status = "s-2", ledger.StatusPaused
	err := e.store.CreateSession(ctx, s)
	var conflict *ledger.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ledger.ConstraintActiveSession, conflict.Constraint)
	assert.Equal(t, ledger.ActorID("ana"), conflict.ActorID)

	// finished sessions are not constrained
	end := ref.Add(time.Hour)
	s.ID, s.Status, s.FinishedAt = "s-3", ledger.StatusFinished, &end
	require.NoError(t, e.store.CreateSession(ctx, s))
}

func TestStore_OneOpenPauseIndex(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")
	s, err := e.machine.Start(ctx, e.startInput("ana", "acme-audit"))
	require.NoError(t, err)

	require.NoError(t, e.store.AddPause(ctx, ledger.PauseInterval{ID: "p-1", SessionID: s.ID, PausedAt: ref}))
	err = e.store.AddPause(ctx, ledger.PauseInterval{ID: "p-2", SessionID: s.ID, PausedAt: ref.Add(time.Minute)})
	var conflict *ledger.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ledger.ConstraintOpenPause, conflict.Constraint)
	assert.Equal(t, s.ID, conflict.SessionID)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")

	_, err := e.store.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = e.store.GetActor(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = e.store.GetTask(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.ErrorIs(t, e.store.ClosePause(ctx, "nope", ref), ledger.ErrNotFound)

	active, err := e.store.ActiveSession(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, active)
}

// =============================================================================
// STATE MACHINE ON SQLITE
// =============================================================================

func TestMachine_ScenarioA_Persisted(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")

	s, err := e.machine.Start(ctx, e.startInput("ana", "acme-audit"))
	require.NoError(t, err)
	e.clock.Set(ref.Add(time.Hour))
	_, err = e.machine.Pause(ctx, s.ID, "ana")
	require.NoError(t, err)
	e.clock.Set(ref.Add(90 * time.Minute))
	_, err = e.machine.Resume(ctx, s.ID, "ana")
	require.NoError(t, err)
	e.clock.Set(ref.Add(3 * time.Hour))
	_, err = e.machine.Finish(ctx, s.ID, "ana")
	require.NoError(t, err)

	stored, err := e.store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFinished, stored.Status)
	assert.Equal(t, ref, stored.StartedAt)
	require.NotNil(t, stored.FinishedAt)
	assert.Equal(t, ref.Add(3*time.Hour), *stored.FinishedAt)
	assert.Equal(t, "3.00", stored.TotalHours().StringFixed(2))
	assert.Equal(t, "0.50", stored.PausedHours().StringFixed(2))
	assert.Equal(t, "2.50", stored.WorkedHours().StringFixed(2))

	pauses, err := e.store.Pauses(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, pauses, 1)
	assert.False(t, pauses[0].Open())

	_, err = e.machine.Finish(ctx, s.ID, "ana")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestMachine_ConcurrentStarts_ScenarioD(t *testing.T) {
	// GIVEN: a file database shared by many goroutines
	// WHEN: they all start a session for bruno at once
	// THEN: exactly one succeeds; the others get ConflictError
	e := newEnv(t, filepath.Join(t.TempDir(), "hours.db"))

	const n = 12
	var wins, conflicts atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := e.machine.Start(ctx, e.startInput("bruno", "acme-tax"))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ledger.ErrConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, n-1, conflicts.Load())
}

func TestMachine_PauseRacingFinish_NoOrphanPause(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")
	s, err := e.machine.Start(ctx, e.startInput("ana", "acme-audit"))
	require.NoError(t, err)

	var g errgroup.Group
	g.Go(func() error { _, err := e.machine.Pause(ctx, s.ID, "ana"); return ignoreInvalid(err) })
	g.Go(func() error { _, err := e.machine.Finish(ctx, s.ID, "ana"); return ignoreInvalid(err) })
	require.NoError(t, g.Wait())

	stored, err := e.store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFinished, stored.Status)
	open, err := e.store.OpenPause(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func ignoreInvalid(err error) error {
	if errors.Is(err, ledger.ErrInvalidState) {
		return nil
	}
	return err
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_DeleteGuard(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")

	// acme-audit has seeded sessions
	err := e.catalog.DeleteTask(ctx, e.demo.Tasks["acme-audit"].ID)
	var conflict *ledger.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ledger.ConstraintReferenced, conflict.Constraint)
	assert.Contains(t, err.Error(), "referenced by 2 work sessions")

	// the foreign key blocks the store even without the service check
	err = e.store.DeleteTask(ctx, e.demo.Tasks["acme-audit"].ID)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	err = e.catalog.DeleteClient(ctx, "12345678000195")
	assert.ErrorIs(t, err, ledger.ErrConflict)

	// an unused task can go
	task, err := e.catalog.CreateTask(ctx, catalog.TaskInput{ClientTaxID: "98765432000110", GroupCode: "TAX", Name: "Spare"})
	require.NoError(t, err)
	require.NoError(t, e.catalog.DeleteTask(ctx, task.ID))
	_, err = e.store.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCatalog_NaturalKeysAreUnique(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")

	_, err := e.catalog.CreateClient(ctx, catalog.ClientInput{TaxID: "12345678000195", Name: "Dup"})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	_, err = e.catalog.CreateTaskGroup(ctx, ledger.TaskGroup{Code: "AUD", Name: "Again"})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	_, err = e.catalog.CreateActor(ctx, ledger.Actor{Login: "ana", DisplayName: "Other Ana", Role: ledger.RoleEmployee})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestCatalog_ValidationAndLookups(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")

	_, err := e.catalog.CreateClient(ctx, catalog.ClientInput{TaxID: "1", Name: "Tiny", GroupCode: "NOPE"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = e.catalog.CreateTask(ctx, catalog.TaskInput{ClientTaxID: "12345678000195", GroupCode: "AUD", Name: "x", Collaborators: []ledger.ActorID{"ghost"}})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = e.catalog.CreateActor(ctx, ledger.Actor{Login: "zoe", DisplayName: "Zoe", Role: ledger.RoleEmployee, ManagerLogin: ptr(ledger.ActorID("ghost"))})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	found, err := e.catalog.SearchClients(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ACME Industrial", found[0].Name)

	found, err = e.catalog.SearchClients(ctx, "123.456", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2) // the CPF and the ACME CNPJ both contain 123456

	tasks, err := e.catalog.TasksForClient(ctx, "12.345.678/0001-95")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestCatalog_UpdateActor(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")

	role := ledger.RoleCoordinator
	a, err := e.catalog.UpdateActor(ctx, "ana", catalog.ActorUpdate{Role: &role, ClearManager: true})
	require.NoError(t, err)
	assert.Equal(t, ledger.RoleCoordinator, a.Role)
	assert.Nil(t, a.ManagerLogin)

	stored, err := e.store.GetActor(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, a.Role, stored.Role)
	assert.Nil(t, stored.ManagerLogin)
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// REPORTS END TO END
// =============================================================================

func TestReport_CoordinatorScope(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")
	engine := report.NewEngine(e.store, e.store, e.store, time.UTC, nil)

	scope, err := access.NewResolver(e.store).ScopeFor(ctx, "carla")
	require.NoError(t, err)
	assert.Equal(t, []ledger.ActorID{"ana", "bruno", "carla"}, scope.Logins())

	rep, err := engine.Aggregate(ctx, scope, report.Filters{Year: 2025, Month: 3})
	require.NoError(t, err)

	// ana 3.5 + 2 + 0.75, bruno 6 + 1.5, carla 1; davi is out of scope
	assert.Equal(t, 6, rep.Sessions)
	assert.Equal(t, "14.75", rep.Hours.StringFixed(2))

	labels := make([]string, 0, len(rep.Groups))
	for _, g := range rep.Groups {
		labels = append(labels, g.Label)
	}
	assert.Equal(t, []string{report.UngroupedLabel, "Industry", "Retail"}, labels)

	davi, err := engine.Aggregate(ctx, scope, report.Filters{Actor: "davi"})
	require.NoError(t, err)
	assert.Zero(t, davi.Sessions)
}

func TestReport_SummaryAndOptions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")
	engine := report.NewEngine(e.store, e.store, e.store, time.UTC, nil)

	_, err := e.machine.Start(ctx, e.startInput("davi", "globex-audit"))
	require.NoError(t, err)

	scope, err := access.NewResolver(e.store).ScopeFor(ctx, "admin")
	require.NoError(t, err)

	sum, err := engine.Summarize(ctx, scope, 2025, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, sum.Sessions)
	assert.Equal(t, 7, sum.Finished)
	assert.Equal(t, 1, sum.Open)

	opts, err := engine.Options(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"Audit", "Board", "IT", "Tax"}, opts.Departments)
	assert.Len(t, opts.Actors, 6) // edu is inactive
	assert.Len(t, opts.TaskGroups, 2)
}

// =============================================================================
// ALERTS
// =============================================================================

func TestAlerts_RunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ":memory:")

	_, err := e.machine.Start(ctx, e.startInput("ana", "acme-audit"))
	require.NoError(t, err)
	s, err := e.machine.Start(ctx, e.startInput("bruno", "acme-tax"))
	require.NoError(t, err)
	_, err = e.machine.Pause(ctx, s.ID, "bruno")
	require.NoError(t, err)

	job := alerts.NewJob(e.store, time.UTC, nil)
	at := time.Date(2025, time.April, 14, 17, 0, 0, 0, time.UTC)

	first, err := job.Run(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Notified)

	second, err := job.Run(ctx, at.Add(30*time.Second))
	require.NoError(t, err)
	assert.Zero(t, second.Notified)
	assert.Equal(t, 2, second.Skipped)

	e.clock.Set(at.Add(time.Minute))
	inbox := alerts.NewInbox(e.store, e.clock, 24*time.Hour)
	got, err := inbox.List(ctx, "bruno", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "[paused] ACME Industrial / Monthly tax filing")

	n, err := inbox.MarkRead(ctx, "bruno")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// outside the window the row is still stored but not listed
	e.clock.Set(at.Add(25 * time.Hour))
	got, err = inbox.List(ctx, "ana", false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Ping(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()
	assert.NoError(t, st.Ping(context.Background()))
}
