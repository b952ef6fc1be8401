package api

import (
	"github.com/ashureev/tutorpipe/internal/identity"
	"github.com/go-chi/chi/v5"
)

// Mount registers the /api routes on r. Everything except the health check
// requires a verified bearer token.
func Mount(r chi.Router, h *Handler, health *HealthHandler, v identity.Verifier) {
	r.Route("/api", func(r chi.Router) {
		health.RegisterHealth(r)

		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware(v, Unauthorized))
			h.RegisterStages(r)
			h.RegisterSessions(r)
		})
	})
}
