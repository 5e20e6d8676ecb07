/*
admin.go - Admin handlers

All routes require a caller whose role can administer.

ENDPOINTS:
  GET    /api/admin/actors              List actors (active and inactive)
  POST   /api/admin/actors              Create actor
  PUT    /api/admin/actors/{login}      Update role, manager, department, active
  POST   /api/admin/clients             Create client
  DELETE /api/admin/clients/{taxID}     Delete unreferenced client
  POST   /api/admin/client-groups       Create client group
  POST   /api/admin/task-groups         Create task group
  POST   /api/admin/tasks               Create task
  DELETE /api/admin/tasks/{id}          Delete unreferenced task
  POST   /api/admin/alerts/run          Run the open-session alert job
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/catalog"
	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// ACTORS
// =============================================================================

func (h *Handler) ListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := h.Catalog.Actors(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]ActorDTO, 0, len(actors))
	for _, a := range actors {
		dtos = append(dtos, toActorDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateActor(w http.ResponseWriter, r *http.Request) {
	var req CreateActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role, err := ledger.ParseRole(req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a := ledger.Actor{
		Login:       ledger.ActorID(req.Login),
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Department:  req.Department,
		Role:        role,
	}
	if req.ManagerLogin != nil && *req.ManagerLogin != "" {
		m := ledger.ActorID(*req.ManagerLogin)
		a.ManagerLogin = &m
	}

	created, err := h.Catalog.CreateActor(r.Context(), a)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActorDTO(created))
}

func (h *Handler) UpdateActor(w http.ResponseWriter, r *http.Request) {
	var req UpdateActorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u := catalog.ActorUpdate{
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		Department:   req.Department,
		ClearManager: req.ClearManager,
		Active:       req.Active,
	}
	if req.Role != nil {
		role, err := ledger.ParseRole(*req.Role)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		u.Role = &role
	}
	if req.ManagerLogin != nil {
		m := ledger.ActorID(*req.ManagerLogin)
		u.ManagerLogin = &m
	}

	updated, err := h.Catalog.UpdateActor(r.Context(), ledger.ActorID(chi.URLParam(r, "login")), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActorDTO(updated))
}

// =============================================================================
// CLIENTS, GROUPS AND TASKS
// =============================================================================

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.Catalog.CreateClient(r.Context(), catalog.ClientInput(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteClient(r.Context(), chi.URLParam(r, "taxID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateClientGroup(w http.ResponseWriter, r *http.Request) {
	var req ClientGroupDTO
	if !decodeBody(w, r, &req) {
		return
	}
	g, err := h.Catalog.CreateClientGroup(r.Context(), ledger.ClientGroup(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClientGroupDTO(g))
}

func (h *Handler) CreateTaskGroup(w http.ResponseWriter, r *http.Request) {
	var req TaskGroupDTO
	if !decodeBody(w, r, &req) {
		return
	}
	g, err := h.Catalog.CreateTaskGroup(r.Context(), ledger.TaskGroup(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, TaskGroupDTO(g))
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := catalog.TaskInput{
		ClientTaxID:   req.Client,
		GroupCode:     req.GroupCode,
		Name:          req.Name,
		EstimateHours: req.EstimateHours,
		Priority:      req.Priority,
	}
	for _, c := range req.Collaborators {
		in.Collaborators = append(in.Collaborators, ledger.ActorID(c))
	}
	t, err := h.Catalog.CreateTask(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(t))
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteTask(r.Context(), ledger.TaskID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ALERTS
// =============================================================================

// RunAlerts evaluates open sessions for the day of "at" (default now).
// Safe to call more than once per day.
func (h *Handler) RunAlerts(w http.ResponseWriter, r *http.Request) {
	var req AlertRunRequest
	if !decodeBody(w, r, &req) {
		return
	}
	at := h.clock.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid at (use RFC 3339)", err)
			return
		}
		at = parsed
	}

	res, err := h.Alerts.Run(r.Context(), at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("alert run requested",
		zap.String("by", string(actorFrom(r).Login)),
		zap.String("trigger", res.TriggerKey),
	)
	writeJSON(w, http.StatusOK, AlertRunDTO(res))
}
