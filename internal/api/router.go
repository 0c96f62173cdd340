package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/attributes", s.handleGetAttributes)
					r.Post("/attributes/{name}", s.handleWriteAttribute)
					r.Post("/parameters/{param}", s.handleWriteParameter)
					r.Post("/reconcile", s.handleReconcile)
					r.Get("/enums/{param}", s.handleGetEnumOptions)
					r.Get("/settings", s.handleGetSettings)
					r.Patch("/settings", s.handlePatchSettings)
					r.Get("/history", s.handleGetHistory)
					r.Get("/writes", s.handleListWrites)
				})
			})
		})
	})

	return r
}

// handleHealth reports the bridge health. A degraded bridge answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ok, reason := s.bridge.Healthy()
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": len(s.bridge.Sessions()),
	}
	if !ok {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["reason"] = reason
	}
	writeJSON(w, status, body)
}
