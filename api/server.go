/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log with status and latency
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the front-end
  5. Identity:   X-Actor-Login → active actor (all /api routes)
  6. Admin:      role must administer (/api/admin only)

ROUTE GROUPS:
  /health               Liveness + database ping
  /api/sessions/*       Caller's sessions
  /api/scope            Caller's visibility
  /api/reports/*        Scoped reports
  /api/notifications/*  Caller's inbox
  /api/clients/*        Catalog lookups
  /api/admin/*          Administration

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/ledger"
)

// ActorHeader carries the caller's login.
const ActorHeader = "X-Actor-Login"

// NewRouter creates a new router with all routes configured. origins lists
// the browser origins allowed by CORS.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(h.identity)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.StartSession)
			r.Get("/active", h.ActiveSession)
			r.Post("/backdated", h.RegisterBackdated)
			r.Post("/{id}/pause", h.PauseSession)
			r.Post("/{id}/resume", h.ResumeSession)
			r.Post("/{id}/finish", h.FinishSession)
		})

		r.Get("/scope", h.GetScope)

		r.Route("/reports", func(r chi.Router) {
			r.Post("/hours", h.HoursReport)
			r.Post("/summary", h.Summary)
			r.Get("/options", h.ReportOptions)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/read", h.MarkNotificationsRead)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.SearchClients)
			r.Get("/{taxID}/tasks", h.ClientTasks)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/actors", h.ListActors)
			r.Post("/actors", h.CreateActor)
			r.Put("/actors/{login}", h.UpdateActor)
			r.Post("/clients", h.CreateClient)
			r.Delete("/clients/{taxID}", h.DeleteClient)
			r.Post("/client-groups", h.CreateClientGroup)
			r.Post("/task-groups", h.CreateTaskGroup)
			r.Post("/tasks", h.CreateTask)
			r.Delete("/tasks/{id}", h.DeleteTask)
			r.Post("/alerts/run", h.RunAlerts)
		})
	})

	return r
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type actorKey struct{}

// identity resolves the caller. Unknown and inactive actors get 401.
func (h *Handler) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login := r.Header.Get(ActorHeader)
		if login == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing "+ActorHeader+" header", nil)
			return
		}
		actor, err := h.Store.GetActor(r.Context(), ledger.ActorID(login))
		switch {
		case ledger.IsNotFound(err):
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unknown actor", nil)
			return
		case err != nil:
			h.fail(w, r, err)
			return
		case !actor.Active:
			writeError(w, http.StatusUnauthorized, "unauthorized", "Actor is inactive", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).Role.CanAdminister() {
			writeError(w, http.StatusForbidden, "forbidden", "Admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actorFrom returns the caller set by identity.
func actorFrom(r *http.Request) ledger.Actor {
	a, _ := r.Context().Value(actorKey{}).(ledger.Actor)
	return a
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("actor", r.Header.Get(ActorHeader)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
