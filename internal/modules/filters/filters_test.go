package filters

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE filters (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	strategy TEXT NOT NULL,
	criteria TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(name, strategy)
);
`

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop())
}

func TestRepositoryCRUD(t *testing.T) {
	repo := setupTestRepo(t)

	created, err := repo.Create(Filter{
		Name:     "conservative",
		Strategy: "pmcc",
		Criteria: map[string]float64{"min_credit": 1.5, "min_volume": 50},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := repo.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "conservative", got.Name)
	assert.Equal(t, "pmcc", got.Strategy)
	assert.InDelta(t, 1.5, got.Criteria["min_credit"], 1e-9)

	require.NoError(t, repo.Update(created.ID, "aggressive", map[string]float64{"min_credit": 0.5}))
	got, err = repo.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "aggressive", got.Name)
	assert.InDelta(t, 0.5, got.Criteria["min_credit"], 1e-9)
	assert.NotContains(t, got.Criteria, "min_volume")

	require.NoError(t, repo.Delete(created.ID))
	_, err = repo.Get(created.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRepositoryUniqueNamePerStrategy(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Create(Filter{Name: "weekly", Strategy: "pmcc"})
	require.NoError(t, err)

	_, err = repo.Create(Filter{Name: "weekly", Strategy: "pmcc"})
	assert.Error(t, err)

	// Same name under a different strategy is allowed
	_, err = repo.Create(Filter{Name: "weekly", Strategy: "iron_condor"})
	assert.NoError(t, err)
}

func TestRepositoryListByStrategy(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Create(Filter{Name: "a", Strategy: "pmcc"})
	require.NoError(t, err)
	_, err = repo.Create(Filter{Name: "b", Strategy: "iron_condor"})
	require.NoError(t, err)

	all, err := repo.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pmcc, err := repo.List("pmcc")
	require.NoError(t, err)
	require.Len(t, pmcc, 1)
	assert.Equal(t, "a", pmcc[0].Name)
}

func TestHandlerCRUD(t *testing.T) {
	repo := setupTestRepo(t)
	handler := NewHandler(repo, zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	body, _ := json.Marshal(Filter{
		Name:     "weekly",
		Strategy: "jade_lizard",
		Criteria: map[string]float64{"min_credit": 1.0},
	})
	req := httptest.NewRequest(http.MethodPost, "/filters", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Filter
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)

	req = httptest.NewRequest(http.MethodGet, "/filters", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Filters []Filter `json:"filters"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	assert.Equal(t, 1, listResp.Count)

	req = httptest.NewRequest(http.MethodDelete, "/filters/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/filters/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerValidation(t *testing.T) {
	repo := setupTestRepo(t)
	handler := NewHandler(repo, zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/filters", bytes.NewReader([]byte(`{"name":""}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/filters", bytes.NewReader([]byte(`not json`)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
