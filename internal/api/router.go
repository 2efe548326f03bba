package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.actorMiddleware)

	if s.collector != nil && s.metricsCfg.Enabled {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.collector.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device endpoints. The hardware does not authenticate; a bearer
		// token, when present, is still attached to the context.
		// {device} is the external GUID for device calls and the stored
		// device id for scan history.
		r.Route("/access-points/{device}", func(r chi.Router) {
			r.Post("/items/identify-by-image", s.handleIdentifyByImage)
			r.With(s.requireAuth).Get("/scans-history", s.handleListScanHistory)
		})
		r.Route("/shelf-controllers/{deviceGuid}/shelves/{position}", func(r chi.Router) {
			r.Patch("/status", s.handleSetShelfStatus)
			r.Post("/movements", s.handleShelfMovement)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/items/{id}", func(r chi.Router) {
				r.Patch("/status", s.handleUpdateItemStatus)
				r.Get("/history", s.handleListItemHistory)
			})
			r.Patch("/shelves/{id}/status", s.handleSetShelfLight)
		})

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status and the result of each
// registered dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(s.healthChecks))

	names := make([]string, 0, len(s.healthChecks))
	for name := range s.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.healthChecks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"status":  status,
		"version": s.version,
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	writeJSON(w, code, body)
}
