package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all favorites routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/favorites", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdateNotes)
		r.Delete("/{id}", h.HandleDelete)
	})
}
