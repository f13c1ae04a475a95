// Package handlers exposes the strategy scan engines over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/payoff"
	"github.com/aristath/optionscan/internal/modules/pipeline"
	"github.com/aristath/optionscan/internal/modules/scanhistory"
	"github.com/aristath/optionscan/internal/modules/strategies"
)

// Handler handles strategy scan HTTP requests
type Handler struct {
	registry *strategies.Registry
	pipeline *pipeline.Store
	history  *scanhistory.Repository
	log      zerolog.Logger
}

// NewHandler creates a new strategies handler
func NewHandler(registry *strategies.Registry, store *pipeline.Store, history *scanhistory.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		pipeline: store,
		history:  history,
		log:      log.With().Str("handler", "strategies").Logger(),
	}
}

// HandleStrategies handles GET /api/strategies
func (h *Handler) HandleStrategies(w http.ResponseWriter, r *http.Request) {
	infos := h.registry.Infos()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"strategies": infos, "count": len(infos)})
}

// scanRequest is the POST /api/scan payload.
type scanRequest struct {
	Symbol         string             `json:"symbol"`
	StrategyID     string             `json:"strategy_id"`
	FilterCriteria map[string]float64 `json:"filter_criteria"`
}

// HandleScan handles POST /api/scan
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	strategy, err := h.registry.Get(req.StrategyID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	opportunities, err := strategy.Scan(r.Context(), req.Symbol, req.FilterCriteria)
	if err != nil {
		// Scan errors are criteria validation failures; data problems
		// surface as an empty result instead.
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	duration := time.Since(start)

	h.recordScan(req, opportunities, duration)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":        req.Symbol,
		"strategy_id":   strategy.ID(),
		"opportunities": opportunities,
		"count":         len(opportunities),
		"duration_ms":   duration.Milliseconds(),
	})
}

func (h *Handler) recordScan(req scanRequest, opps []domain.Opportunity, duration time.Duration) {
	if h.history == nil {
		return
	}

	entry := scanhistory.Entry{
		Symbol:      req.Symbol,
		Strategy:    req.StrategyID,
		Criteria:    req.FilterCriteria,
		ResultCount: len(opps),
		DurationMs:  duration.Milliseconds(),
	}
	if len(opps) > 0 {
		best := opps[0].Score
		entry.BestScore = &best
	}

	if _, err := h.history.Record(entry); err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to record scan history")
	}
}

// HandleRecentScans handles GET /api/scans/recent?limit=20
func (h *Handler) HandleRecentScans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.history.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load scan history")
		http.Error(w, "Failed to load scan history", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"scans": entries, "count": len(entries)})
}

// payoffRequest is the POST /api/payoff payload.
type payoffRequest struct {
	Legs   []domain.Leg `json:"legs"`
	Prices []float64    `json:"prices"`
}

// HandlePayoff handles POST /api/payoff
func (h *Handler) HandlePayoff(w http.ResponseWriter, r *http.Request) {
	var req payoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Legs) == 0 {
		http.Error(w, "at least one leg is required", http.StatusBadRequest)
		return
	}

	prices := req.Prices
	if len(prices) == 0 {
		prices = defaultPriceGrid(req.Legs)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices":     prices,
		"payoff":     payoff.Series(prices, req.Legs),
		"breakevens": payoff.Breakevens(req.Legs),
		"max_profit": payoff.MaxProfit(req.Legs),
		"max_loss":   payoff.MaxLoss(req.Legs),
	})
}

// defaultPriceGrid spans 50% to 150% of the strike range in 101 steps.
func defaultPriceGrid(legs []domain.Leg) []float64 {
	lo, hi := legs[0].Strike, legs[0].Strike
	for _, leg := range legs[1:] {
		if leg.Strike < lo {
			lo = leg.Strike
		}
		if leg.Strike > hi {
			hi = leg.Strike
		}
	}

	start := lo * 0.5
	end := hi * 1.5
	step := (end - start) / 100
	if step <= 0 {
		return []float64{start}
	}

	prices := make([]float64, 0, 101)
	for p := start; p <= end+step/2; p += step {
		prices = append(prices, p)
	}
	return prices
}

// HandlePipeline handles GET /api/pipeline
func (h *Handler) HandlePipeline(w http.ResponseWriter, r *http.Request) {
	report := h.pipeline.Latest()
	if report == nil {
		http.Error(w, "No scan has run yet", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
