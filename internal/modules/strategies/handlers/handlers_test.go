package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/pipeline"
	"github.com/aristath/optionscan/internal/modules/scanhistory"
	"github.com/aristath/optionscan/internal/modules/strategies"
)

type stubProvider struct {
	price float64
	raw   []domain.RawOption
}

func (p *stubProvider) QuotePrice(_ context.Context, _ string) (float64, error) {
	return p.price, nil
}

func (p *stubProvider) RiskFreeRate(_ context.Context) float64 { return 0.05 }

func (p *stubProvider) OptionsChain(_ context.Context, _ string) ([]domain.RawOption, error) {
	return p.raw, nil
}

func rawQuote(optType string, strike float64, dteOut int, premium, delta float64, volume int) domain.RawOption {
	exp := domain.EasternNow().AddDate(0, 0, dteOut).Format("2006-01-02")
	return domain.RawOption{
		ContractID: fmt.Sprintf("TEST%s%s%.0f", exp, optType, strike),
		Symbol:     "TEST",
		Expiration: exp,
		Strike:     fmt.Sprintf("%.2f", strike),
		Type:       optType,
		Bid:        fmt.Sprintf("%.2f", premium),
		Ask:        fmt.Sprintf("%.2f", premium),
		Volume:     fmt.Sprintf("%d", volume),
		OpenInt:    "100",
		IV:         "0.20",
		Delta:      fmt.Sprintf("%.2f", delta),
	}
}

const historySchema = `
CREATE TABLE scan_history (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	criteria TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	best_score REAL,
	duration_ms INTEGER NOT NULL,
	scanned_at INTEGER NOT NULL
);
`

func setupRouter(t *testing.T, provider domain.MarketDataProvider) (chi.Router, *scanhistory.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(historySchema)
	require.NoError(t, err)

	store := pipeline.NewStore()
	registry := strategies.NewPopulatedRegistry(strategies.Deps{Provider: provider, Pipeline: store}, zerolog.Nop())
	history := scanhistory.NewRepository(db, zerolog.Nop())

	handler := NewHandler(registry, store, history, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, history
}

func TestHandleStrategies(t *testing.T) {
	router, _ := setupRouter(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/strategies", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Strategies []strategies.Info `json:"strategies"`
		Count      int               `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 8, resp.Count)
	assert.Equal(t, "bwb_call", resp.Strategies[0].ID)
	assert.NotEmpty(t, resp.Strategies[0].Defaults)
}

func TestHandleScanUnknownStrategy(t *testing.T) {
	router, _ := setupRouter(t, &stubProvider{})

	body := []byte(`{"symbol":"TEST","strategy_id":"covered_strangle"}`)
	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "strategy not found")
}

func TestHandleScanInvalidCriteria(t *testing.T) {
	router, _ := setupRouter(t, &stubProvider{})

	body := []byte(`{"symbol":"TEST","strategy_id":"pmcc","filter_criteria":{"weight_roi":5}}`)
	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "weights must sum to 1.0")
}

func TestHandleScanMissingSymbol(t *testing.T) {
	router, _ := setupRouter(t, &stubProvider{})

	body := []byte(`{"strategy_id":"pmcc"}`)
	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScanSuccess(t *testing.T) {
	provider := &stubProvider{
		price: 100.0,
		raw: []domain.RawOption{
			rawQuote("call", 90, 200, 13.00, 0.75, 50),
			rawQuote("call", 105, 45, 2.00, 0.30, 50),
		},
	}
	router, history := setupRouter(t, provider)

	body := []byte(`{"symbol":"TEST","strategy_id":"pmcc"}`)
	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbol        string               `json:"symbol"`
		StrategyID    string               `json:"strategy_id"`
		Opportunities []domain.Opportunity `json:"opportunities"`
		Count         int                  `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "TEST", resp.Symbol)
	assert.Equal(t, "pmcc", resp.StrategyID)
	require.Equal(t, 1, resp.Count)
	assert.InDelta(t, 11.0, resp.Opportunities[0].NetCost, 1e-9)

	entries, err := history.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pmcc", entries[0].Strategy)
	assert.Equal(t, 1, entries[0].ResultCount)
	require.NotNil(t, entries[0].BestScore)

	// The finalized funnel is now served by /pipeline
	req = httptest.NewRequest(http.MethodGet, "/pipeline", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var report pipeline.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "TEST", report.Symbol)
	assert.Equal(t, 1, report.Summary.FinalOutput)
}

func TestHandleScanEmptyResult(t *testing.T) {
	// No chain data: scans return an empty list, not an error
	router, history := setupRouter(t, &stubProvider{price: 100.0})

	body := []byte(`{"symbol":"TEST","strategy_id":"iron_condor"}`)
	req := httptest.NewRequest(http.MethodPost, "/scan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Zero(t, resp.Count)

	entries, err := history.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].BestScore)
}

func TestHandlePipelineEmpty(t *testing.T) {
	router, _ := setupRouter(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/pipeline", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePayoff(t *testing.T) {
	router, _ := setupRouter(t, &stubProvider{})

	payload := map[string]interface{}{
		"legs": []domain.Leg{
			{Type: domain.Call, Position: domain.Long, Strike: 100, Premium: 5.50, Quantity: 1},
		},
		"prices": []float64{90, 100, 105.5, 110},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/payoff", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Prices     []float64 `json:"prices"`
		Payoff     []float64 `json:"payoff"`
		Breakevens []float64 `json:"breakevens"`
		MaxLoss    float64   `json:"max_loss"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Payoff, 4)
	assert.InDelta(t, -5.5, resp.Payoff[0], 1e-9)
	assert.InDelta(t, -5.5, resp.Payoff[1], 1e-9)
	assert.InDelta(t, 0.0, resp.Payoff[2], 1e-9)
	assert.InDelta(t, 4.5, resp.Payoff[3], 1e-9)
	require.Len(t, resp.Breakevens, 1)
	assert.InDelta(t, 105.5, resp.Breakevens[0], 1e-9)
	assert.InDelta(t, -5.5, resp.MaxLoss, 1e-9)
}

func TestHandlePayoffDefaultGrid(t *testing.T) {
	router, _ := setupRouter(t, &stubProvider{})

	payload := map[string]interface{}{
		"legs": []domain.Leg{
			{Type: domain.Put, Position: domain.Short, Strike: 100, Premium: 2.00, Quantity: 1},
		},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/payoff", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Prices []float64 `json:"prices"`
		Payoff []float64 `json:"payoff"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Prices, 101)
	assert.Len(t, resp.Payoff, 101)
	assert.InDelta(t, 50.0, resp.Prices[0], 1e-9)
	assert.InDelta(t, 150.0, resp.Prices[100], 1e-6)
}

func TestHandlePayoffNoLegs(t *testing.T) {
	router, _ := setupRouter(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/payoff", bytes.NewReader([]byte(`{"legs":[]}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
