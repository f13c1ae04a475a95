package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all strategy scan routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/strategies", h.HandleStrategies)
	r.Post("/scan", h.HandleScan)
	r.Post("/payoff", h.HandlePayoff)
	r.Get("/pipeline", h.HandlePipeline)
	r.Get("/scans/recent", h.HandleRecentScans)
}
