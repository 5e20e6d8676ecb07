/*
handlers_test.go - HTTP tests for the API

Tests for:
- Identity and admin middleware (401 / 403)
- Session lifecycle over HTTP and error-kind → status mapping
- Scoped reports and the scope endpoint
- Admin catalog guard and the alert run endpoint
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/seed"
	"github.com/warp/hours-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var ref = time.Date(2025, time.April, 14, 9, 0, 0, 0, time.UTC)

type testAPI struct {
	store  *sqlite.Store
	clock  *ledger.ManualClock
	router *chi.Mux
	demo   *seed.Demo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := ledger.NewManualClock(ref)
	h := NewHandler(store, WithClock(clock))
	demo, err := seed.Load(context.Background(), h.Catalog, h.Machine, ref)
	require.NoError(t, err)

	return &testAPI{store: store, clock: clock, router: NewRouter(h, []string{"*"}), demo: demo}
}

func (a *testAPI) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rec).Code
}

func (a *testAPI) startBody(task string) StartSessionRequest {
	tk := a.demo.Tasks[task]
	return StartSessionRequest{Client: string(tk.ClientID), Task: string(tk.ID)}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestIdentity(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name   string
		actor  string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"unknown actor", "ghost", http.StatusUnauthorized},
		{"inactive actor", "edu", http.StatusUnauthorized},
		{"active actor", "ana", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, "/api/scope", tt.actor, nil)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", errorCode(t, rec))
			}
		})
	}
}

func TestAdminRequiresRole(t *testing.T) {
	a := newTestAPI(t)

	for _, login := range []string{"ana", "carla", "sofia"} {
		rec := a.do(t, http.MethodGet, "/api/admin/actors", login, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, login)
	}

	rec := a.do(t, http.MethodGet, "/api/admin/actors", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ActorDTO](t, rec), 7)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessionLifecycle(t *testing.T) {
	// GIVEN: ana with no active session
	// WHEN: she starts, pauses 30 minutes and finishes after 3 hours
	// THEN: each call succeeds and the finished session reports 2.5 worked hours
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/sessions/active", "ana", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/sessions", "ana", a.startBody("acme-audit"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[SessionDTO](t, rec)
	assert.Equal(t, "in_progress", started.Status)
	assert.Nil(t, started.WorkedHours)
	base := "/api/sessions/" + started.ID

	a.clock.Set(ref.Add(time.Hour))
	rec = a.do(t, http.MethodPost, base+"/pause", "ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	a.clock.Set(ref.Add(90 * time.Minute))
	rec = a.do(t, http.MethodGet, "/api/sessions/active", "ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[ActiveSessionDTO](t, rec)
	assert.Equal(t, "paused", active.Session.Status)
	require.NotNil(t, active.OpenPause)
	assert.Equal(t, "1.00", active.WorkedHours.StringFixed(2))

	rec = a.do(t, http.MethodPost, base+"/resume", "ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	a.clock.Set(ref.Add(3 * time.Hour))
	rec = a.do(t, http.MethodPost, base+"/finish", "ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	finished := decode[SessionDTO](t, rec)
	assert.Equal(t, "finished", finished.Status)
	require.NotNil(t, finished.WorkedHours)
	assert.Equal(t, "3.00", finished.TotalHours.StringFixed(2))
	assert.Equal(t, "0.50", finished.PausedHours.StringFixed(2))
	assert.Equal(t, "2.50", finished.WorkedHours.StringFixed(2))
}

func TestSessionErrors(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/sessions", "ana", a.startBody("acme-audit"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[SessionDTO](t, rec).ID

	// second start: one active session per actor
	rec = a.do(t, http.MethodPost, "/api/sessions", "ana", a.startBody("acme-tax"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))

	// resume without a pause
	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/resume", "ana", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_state", errorCode(t, rec))

	// another actor's session is invisible
	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/finish", "bruno", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	// task booked on another client
	body := a.startBody("globex-audit")
	body.Client = string(a.demo.Clients["acme"])
	rec = a.do(t, http.MethodPost, "/api/sessions", "bruno", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorCode(t, rec))

	// malformed JSON
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewBufferString("{"))
	req.Header.Set(ActorHeader, "bruno")
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", errorCode(t, rr))
}

func TestRegisterBackdated(t *testing.T) {
	a := newTestAPI(t)
	tk := a.demo.Tasks["joao-tax"]

	rec := a.do(t, http.MethodPost, "/api/sessions/backdated", "ana", BackdatedSessionRequest{
		Client: "123.456.789-09", Task: string(tk.ID),
		Start: "2025-04-11T13:00:00Z", End: "2025-04-11T14:15:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s := decode[SessionDTO](t, rec)
	assert.True(t, s.Backdated)
	assert.Equal(t, "1.25", s.WorkedHours.StringFixed(2))

	rec = a.do(t, http.MethodPost, "/api/sessions/backdated", "ana", BackdatedSessionRequest{
		Client: string(tk.ClientID), Task: string(tk.ID), Start: "yesterday", End: "2025-04-11T14:15:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/sessions/backdated", "ana", BackdatedSessionRequest{
		Client: string(tk.ClientID), Task: string(tk.ID), Start: "2025-04-11T14:15:00Z", End: "2025-04-11T13:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorCode(t, rec))
}

// =============================================================================
// SCOPE AND REPORTS
// =============================================================================

func TestScopeEndpoint(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/scope", "bruno", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bruno", "davi"}, decode[ScopeDTO](t, rec).Actors)

	rec = a.do(t, http.MethodGet, "/api/scope", "davi", nil)
	assert.Equal(t, []string{"davi"}, decode[ScopeDTO](t, rec).Actors)
}

func TestHoursReport_IsScoped(t *testing.T) {
	a := newTestAPI(t)
	march := ReportRequest{Year: 2025, Month: 3}

	tests := []struct {
		viewer   string
		hours    string
		sessions int
	}{
		{"ana", "6.25", 3},
		{"bruno", "11.50", 3},
		{"carla", "14.75", 6},
		{"sofia", "18.75", 7},
	}
	for _, tt := range tests {
		t.Run(tt.viewer, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/api/reports/hours", tt.viewer, march)
			require.Equal(t, http.StatusOK, rec.Code)
			rep := decode[ReportDTO](t, rec)
			assert.Equal(t, tt.hours, rep.Hours.StringFixed(2))
			assert.Equal(t, tt.sessions, rep.Sessions)
			assert.Equal(t, "worked", rep.Measure)
		})
	}

	// naming someone outside the scope is empty, not an error
	rec := a.do(t, http.MethodPost, "/api/reports/hours", "ana", ReportRequest{Actor: "bruno"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[ReportDTO](t, rec).Sessions)

	rec = a.do(t, http.MethodPost, "/api/reports/hours", "ana", ReportRequest{Month: 13})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryAndOptions(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/reports/summary", "carla", SummaryRequest{Year: 2025})
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[SummaryDTO](t, rec)
	assert.Equal(t, 6, sum.Sessions)
	require.Len(t, sum.Monthly, 1)
	assert.Equal(t, "March", sum.Monthly[0].Label)

	rec = a.do(t, http.MethodPost, "/api/reports/summary", "carla", SummaryRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/reports/options", "bruno", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[OptionsDTO](t, rec)
	assert.Equal(t, []string{"Tax"}, opts.Departments)
	assert.Len(t, opts.Actors, 2)
	assert.Len(t, opts.ClientGroups, 2)
}

// =============================================================================
// CATALOG AND ADMIN
// =============================================================================

func TestClientLookups(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/clients?q=globex", "ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	clients := decode[[]ClientDTO](t, rec)
	require.Len(t, clients, 1)
	assert.Equal(t, "98765432000110", clients[0].TaxID)

	rec = a.do(t, http.MethodGet, "/api/clients/12345678000195/tasks", "ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]TaskDTO](t, rec), 2)
}

func TestAdminCatalog(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/admin/actors", "admin", CreateActorRequest{
		Login: "ana", DisplayName: "Ana Again", Role: "employee",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/admin/actors", "admin", CreateActorRequest{
		Login: "fabi", DisplayName: "Fabiana", Role: "funcionario", ManagerLogin: strPtr("bruno"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "employee", decode[ActorDTO](t, rec).Role)

	rec = a.do(t, http.MethodPut, "/api/admin/actors/fabi", "admin", UpdateActorRequest{Role: strPtr("wizard")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	inactive := false
	rec = a.do(t, http.MethodPut, "/api/admin/actors/fabi", "admin", UpdateActorRequest{Active: &inactive})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ActorDTO](t, rec).Active)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/scope", "fabi", nil).Code)

	rec = a.do(t, http.MethodDelete, "/api/admin/tasks/"+string(a.demo.Tasks["acme-audit"].ID), "admin", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "referenced by 2 work sessions")

	rec = a.do(t, http.MethodPost, "/api/admin/tasks", "admin", CreateTaskRequest{
		Client: "98765432000110", GroupCode: "TAX", Name: "Quarterly review",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[TaskDTO](t, rec)
	rec = a.do(t, http.MethodDelete, "/api/admin/tasks/"+task.ID, "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/admin/clients", "admin", CreateClientRequest{TaxID: "123", Name: "Tiny"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "00000000123", decode[ClientDTO](t, rec).TaxID)
	rec = a.do(t, http.MethodDelete, "/api/admin/clients/00000000123", "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// =============================================================================
// ALERTS
// =============================================================================

func TestAlertRunAndInbox(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/sessions", "ana", a.startBody("acme-audit"))
	require.Equal(t, http.StatusCreated, rec.Code)

	run := AlertRunRequest{At: "2025-04-14T18:00:00Z"}
	rec = a.do(t, http.MethodPost, "/api/admin/alerts/run", "admin", run)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[AlertRunDTO](t, rec)
	assert.Equal(t, "2025-04-14", first.TriggerKey)
	assert.Equal(t, 1, first.Notified)

	rec = a.do(t, http.MethodPost, "/api/admin/alerts/run", "admin", run)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[AlertRunDTO](t, rec).Notified)

	a.clock.Set(ref.Add(10 * time.Hour))
	rec = a.do(t, http.MethodGet, "/api/notifications?unread=true", "ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[[]NotificationDTO](t, rec)
	require.Len(t, inbox, 1)
	assert.Equal(t, "open_session", inbox[0].Kind)

	rec = a.do(t, http.MethodPost, "/api/notifications/read", "ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[MarkReadDTO](t, rec).Marked)

	rec = a.do(t, http.MethodPost, "/api/admin/alerts/run", "ana", run)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&ledger.NotFoundError{Kind: "session", ID: "s"}, http.StatusNotFound, "not_found"},
		{&ledger.InvalidStateError{SessionID: "s", Status: ledger.StatusFinished, Op: "pause"}, http.StatusUnprocessableEntity, "invalid_state"},
		{&ledger.ConflictError{Constraint: ledger.ConstraintActiveSession, ActorID: "ana"}, http.StatusConflict, "conflict"},
		{&ledger.ValidationError{Field: "end", Message: "bad"}, http.StatusBadRequest, "validation"},
		{ledger.Transient("op", errors.New("disk I/O error")), http.StatusServiceUnavailable, "transient_store"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestClosedStoreIsTransient(t *testing.T) {
	a := newTestAPI(t)
	require.NoError(t, a.store.Close())

	rec := a.do(t, http.MethodGet, "/api/scope", "ana", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "transient_store", errorCode(t, rec))
}
