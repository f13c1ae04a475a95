package filters

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles filter preset HTTP requests
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new filters handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "filters").Logger(),
	}
}

// RegisterRoutes registers all filter routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/filters", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleList handles GET /api/filters?strategy=pmcc
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.List(r.URL.Query().Get("strategy"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list filters")
		http.Error(w, "Failed to list filters", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"filters": all, "count": len(all)})
}

// HandleGet handles GET /api/filters/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	f, err := h.repo.Get(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Filter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get filter")
		http.Error(w, "Failed to get filter", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, f)
}

// HandleCreate handles POST /api/filters
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req Filter
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Strategy == "" {
		http.Error(w, "name and strategy are required", http.StatusBadRequest)
		return
	}

	created, err := h.repo.Create(req)
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("Failed to create filter")
		http.Error(w, "Failed to create filter", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate handles PUT /api/filters/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Name     string             `json:"name"`
		Criteria map[string]float64 `json:"criteria"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Update(id, req.Name, req.Criteria); err != nil {
		http.Error(w, "Filter not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "id": id})
}

// HandleDelete handles DELETE /api/filters/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.Delete(id); err != nil {
		http.Error(w, "Filter not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
