// Package handlers provides HTTP handlers for favorites operations.
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/modules/favorites"
)

// Handler handles favorites HTTP requests
type Handler struct {
	service *favorites.Service
	log     zerolog.Logger
}

// NewHandler creates a new favorites handler
func NewHandler(service *favorites.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "favorites").Logger(),
	}
}

// HandleList handles GET /api/favorites
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.Repo().List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list favorites")
		http.Error(w, "Failed to list favorites", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": all, "count": len(all)})
}

// createRequest is the POST /api/favorites payload.
type createRequest struct {
	Symbol     string             `json:"symbol"`
	Strategy   string             `json:"strategy"`
	Legs       json.RawMessage    `json:"legs"`
	NetCost    float64            `json:"net_cost"`
	StockPrice float64            `json:"stock_price"`
	Notes      string             `json:"notes"`
	Metrics    map[string]float64 `json:"metrics"`
}

// HandleCreate handles POST /api/favorites
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" || req.Strategy == "" {
		http.Error(w, "symbol and strategy are required", http.StatusBadRequest)
		return
	}

	f := favorites.Favorite{
		Symbol:     req.Symbol,
		Strategy:   req.Strategy,
		NetCost:    req.NetCost,
		StockPrice: req.StockPrice,
		Notes:      req.Notes,
		Metrics:    req.Metrics,
	}
	if len(req.Legs) > 0 {
		if err := json.Unmarshal(req.Legs, &f.Legs); err != nil {
			http.Error(w, "Invalid legs payload", http.StatusBadRequest)
			return
		}
	}
	if len(f.Legs) == 0 {
		http.Error(w, "at least one leg is required", http.StatusBadRequest)
		return
	}

	created, err := h.service.Repo().Create(f)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to create favorite")
		http.Error(w, "Failed to create favorite", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// HandleGet handles GET /api/favorites/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := h.service.Repo().Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Favorite not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get favorite")
		http.Error(w, "Failed to get favorite", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, f)
}

// HandleUpdateNotes handles PUT /api/favorites/{id}
func (h *Handler) HandleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Repo().UpdateNotes(id, req.Notes); err != nil {
		http.Error(w, "Favorite not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "id": id})
}

// HandleDelete handles DELETE /api/favorites/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Repo().Delete(id); err != nil {
		http.Error(w, "Favorite not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// HandleRefresh handles POST /api/favorites/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Favorites refresh failed")
		http.Error(w, "Failed to refresh favorites", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
