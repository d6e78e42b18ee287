package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all evolution routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/evolution", func(r chi.Router) {
		r.Post("/run", h.HandleRun)
		r.Post("/batch", h.HandleBatch)
		r.Post("/fidelity", h.HandleFidelity)
		r.Post("/metrics", h.HandleMetrics)
		r.Get("/substrates", h.HandleListSubstrates)
		r.Get("/substrates/{type}", h.HandleGetSubstrate)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{id}", h.HandleGetRun)
		r.Get("/stream", h.HandleStream)
	})
}
