package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverPanic)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{index}", func(r chi.Router) {
				r.Post("/test-rumble", s.handleTestRumble)
				r.Post("/test-speaker", s.handleTestSpeaker)
			})
		})

		r.Get("/notifications", s.handleNotifications)
		r.Put("/settings/respond-to-exit", s.handleSetRespondToExit)

		r.Route("/captures", func(r chi.Router) {
			r.Get("/", s.handleListCaptures)
			r.Get("/{id}/samples", s.handleCaptureSamples)
		})

		r.Get("/ws", s.handleWebSocket)
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
