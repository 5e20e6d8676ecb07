/*
handlers.go - HTTP API handlers for the hours engine

PURPOSE:
  Exposes session tracking, scoped reports, notifications and catalog
  administration via REST API. Handles HTTP request/response and JSON
  serialization, and delegates to the domain services.

ENDPOINTS:
  Sessions (caller's own):
    POST   /api/sessions                 Start a session
    GET    /api/sessions/active          Active session with live totals
    POST   /api/sessions/{id}/pause      Pause
    POST   /api/sessions/{id}/resume     Resume
    POST   /api/sessions/{id}/finish     Finish
    POST   /api/sessions/backdated       Register a finished session

  Reports (caller's scope):
    GET    /api/scope                    Logins the caller can see
    POST   /api/reports/hours            Hierarchical hours report
    POST   /api/reports/summary          Dashboard figures
    GET    /api/reports/options          Filter options

  Notifications:
    GET    /api/notifications            Inbox (?unread=true)
    POST   /api/notifications/read       Mark inbox read

  Catalog:
    GET    /api/clients                  Search clients (?q=, ?limit=)
    GET    /api/clients/{taxID}/tasks    Tasks of a client

  Admin: see admin.go

IDENTITY:
  The X-Actor-Login header names the caller. The identity middleware loads
  the actor and rejects unknown or inactive ones; authentication itself is
  handled in front of this service.

ERROR HANDLING:
  Domain error kinds map to statuses, with a machine-readable code:
  - 404 not_found
  - 422 invalid_state
  - 409 conflict
  - 400 validation / bad_request
  - 503 transient_store (safe to retry)
  - 500 internal

SEE ALSO:
  - dto.go: Request/response data structures
  - admin.go: Admin handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/access"
	"github.com/warp/hours-engine/alerts"
	"github.com/warp/hours-engine/catalog"
	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/report"
	"github.com/warp/hours-engine/store/sqlite"
	"github.com/warp/hours-engine/tracking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Machine *tracking.Machine
	Scopes  *access.Resolver
	Reports *report.Engine
	Catalog *catalog.Service
	Inbox   *alerts.Inbox
	Alerts  *alerts.Job

	clock  ledger.Clock
	logger *zap.Logger
}

type handlerConfig struct {
	clock  ledger.Clock
	loc    *time.Location
	window time.Duration
	logger *zap.Logger
}

type Option func(*handlerConfig)

func WithClock(c ledger.Clock) Option { return func(hc *handlerConfig) { hc.clock = c } }

// WithLocation sets the timezone of report periods and alert days.
func WithLocation(loc *time.Location) Option { return func(hc *handlerConfig) { hc.loc = loc } }

func WithAlertWindow(d time.Duration) Option { return func(hc *handlerConfig) { hc.window = d } }

func WithLogger(l *zap.Logger) Option { return func(hc *handlerConfig) { hc.logger = l } }

// NewHandler wires the domain services over a SQLite store.
func NewHandler(store *sqlite.Store, opts ...Option) *Handler {
	hc := handlerConfig{clock: ledger.SystemClock{}, loc: time.UTC, window: 24 * time.Hour, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&hc)
	}

	return &Handler{
		Store: store,
		Machine: tracking.NewMachine(store, store, store,
			tracking.WithClock(hc.clock),
			tracking.WithLogger(hc.logger.Named("tracking")),
		),
		Scopes:  access.NewResolver(store),
		Reports: report.NewEngine(store, store, store, hc.loc, hc.logger.Named("report")),
		Catalog: catalog.NewService(store, hc.clock, hc.logger.Named("catalog")),
		Inbox:   alerts.NewInbox(store, hc.clock, hc.window),
		Alerts:  alerts.NewJob(store, hc.loc, hc.logger.Named("alerts")),
		clock:   hc.clock,
		logger:  hc.logger,
	}
}

// Health reports whether the database answers.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "transient_store", "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// StartSession opens a session for the caller.
// POST /api/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	client, err := catalog.NormalizeTaxID(req.Client)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	s, err := h.Machine.Start(r.Context(), tracking.StartInput{
		Actor:  actorFrom(r).Login,
		Client: client,
		Task:   ledger.TaskID(req.Task),
		Note:   req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(s))
}

// ActiveSession returns the caller's live session, or 204 when none.
// GET /api/sessions/active
func (h *Handler) ActiveSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.Machine.Active(r.Context(), actorFrom(r).Login)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if view == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toActiveDTO(view))
}

// PauseSession POST /api/sessions/{id}/pause
func (h *Handler) PauseSession(w http.ResponseWriter, r *http.Request) {
	p, err := h.Machine.Pause(r.Context(), sessionParam(r), actorFrom(r).Login)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPauseDTO(p))
}

// ResumeSession POST /api/sessions/{id}/resume
func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	p, err := h.Machine.Resume(r.Context(), sessionParam(r), actorFrom(r).Login)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPauseDTO(p))
}

// FinishSession POST /api/sessions/{id}/finish
func (h *Handler) FinishSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Machine.Finish(r.Context(), sessionParam(r), actorFrom(r).Login)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

// RegisterBackdated stores a finished session with explicit times.
// POST /api/sessions/backdated
func (h *Handler) RegisterBackdated(w http.ResponseWriter, r *http.Request) {
	var req BackdatedSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	client, err := catalog.NormalizeTaxID(req.Client)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid start (use RFC 3339)", err)
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid end (use RFC 3339)", err)
		return
	}

	s, err := h.Machine.RegisterBackdated(r.Context(), tracking.BackdatedInput{
		Actor:  actorFrom(r).Login,
		Client: client,
		Task:   ledger.TaskID(req.Task),
		Start:  start,
		End:    end,
		Note:   req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(s))
}

// =============================================================================
// SCOPE AND REPORT HANDLERS
// =============================================================================

// GetScope GET /api/scope
func (h *Handler) GetScope(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	dto := ScopeDTO{Viewer: string(scope.Viewer), Actors: []string{}}
	for _, login := range scope.Logins() {
		dto.Actors = append(dto.Actors, string(login))
	}
	writeJSON(w, http.StatusOK, dto)
}

// HoursReport POST /api/reports/hours
func (h *Handler) HoursReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	rep, err := h.Reports.Aggregate(r.Context(), scope, req.filters())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// Summary POST /api/reports/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	sum, err := h.Reports.Summarize(r.Context(), scope, req.Year, req.Month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// ReportOptions GET /api/reports/options
func (h *Handler) ReportOptions(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	opts, err := h.Reports.Options(r.Context(), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOptionsDTO(opts))
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (access.Scope, bool) {
	scope, err := h.Scopes.ScopeFor(r.Context(), actorFrom(r).Login)
	if err != nil {
		h.fail(w, r, err)
		return access.Scope{}, false
	}
	return scope, true
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications GET /api/notifications?unread=true
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	list, err := h.Inbox.List(r.Context(), actorFrom(r).Login, unread)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]NotificationDTO, 0, len(list))
	for _, n := range list {
		dtos = append(dtos, toNotificationDTO(n))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkNotificationsRead POST /api/notifications/read
func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Inbox.MarkRead(r.Context(), actorFrom(r).Login)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MarkReadDTO{Marked: n})
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// SearchClients GET /api/clients?q=acme&limit=10
func (h *Handler) SearchClients(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	clients, err := h.Catalog.SearchClients(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]ClientDTO, 0, len(clients))
	for _, c := range clients {
		dtos = append(dtos, toClientDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClientTasks GET /api/clients/{taxID}/tasks
func (h *Handler) ClientTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Catalog.TasksForClient(r.Context(), chi.URLParam(r, "taxID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, toTaskDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func sessionParam(r *http.Request) ledger.SessionID {
	return ledger.SessionID(chi.URLParam(r, "id"))
}

// decodeBody decodes a JSON body into v. An empty body leaves v zero.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body", err)
	return false
}

// errorStatus maps a domain error to its HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrInvalidState):
		return http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, ledger.ErrTransientStore):
		return http.StatusServiceUnavailable, "transient_store"
	}
	return http.StatusInternalServerError, "internal"
}

// fail writes a domain error. Server-side failures are logged; client
// errors are returned as is.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
