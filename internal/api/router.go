package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-automation/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated monitoring
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

		// WebSocket (auth via token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.With(s.requirePermission(auth.PermAutomationRead)).Get("/status", s.handleStatus)

			// Device automation capabilities
			r.Route("/devices/{id}/automation", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermAutomationRead))
				r.Get("/triggers", s.handleListTriggers)
				r.Get("/conditions", s.handleListConditions)
				r.Get("/actions", s.handleListActions)
			})

			r.Route("/automation", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermAutomationRead)).Post("/conditions/check", s.handleCheckCondition)
				r.With(s.requirePermission(auth.PermAutomationExecute)).Post("/actions/execute", s.handleExecuteAction)
			})

			// Entity registry
			r.Route("/entities", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermAutomationRead)).Get("/", s.handleListEntities)
				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermEntityManage))
					r.Post("/", s.handleCreateEntity)
					r.Delete("/{entity_id}", s.handleDeleteEntity)
				})
			})

			// Entity state
			r.Route("/states", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermAutomationRead)).Get("/", s.handleListStates)
				r.With(s.requirePermission(auth.PermAutomationRead)).Get("/{entity_id}", s.handleGetState)
				r.With(s.requirePermission(auth.PermStateWrite)).Put("/{entity_id}", s.handleSetState)
			})

			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
