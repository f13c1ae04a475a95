package scanhistory

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testSchema = `
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

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop())
}

func TestRecordAndRecent(t *testing.T) {
	repo := setupTestRepo(t)

	score := 72.5
	first, err := repo.Record(Entry{
		Symbol:      "AAPL",
		Strategy:    "pmcc",
		Criteria:    map[string]float64{"min_credit": 1.0},
		ResultCount: 3,
		BestScore:   &score,
		DurationMs:  840,
		ScannedAt:   time.Now().Add(-1 * time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := repo.Record(Entry{
		Symbol:      "MSFT",
		Strategy:    "iron_condor",
		ResultCount: 0,
		DurationMs:  512,
	})
	require.NoError(t, err)

	recent, err := repo.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, second.ID, recent[0].ID)
	assert.Nil(t, recent[0].BestScore)
	assert.Equal(t, first.ID, recent[1].ID)
	require.NotNil(t, recent[1].BestScore)
	assert.InDelta(t, 72.5, *recent[1].BestScore, 1e-9)
	assert.InDelta(t, 1.0, recent[1].Criteria["min_credit"], 1e-9)
}

func TestRecentLimit(t *testing.T) {
	repo := setupTestRepo(t)

	for i := 0; i < 5; i++ {
		_, err := repo.Record(Entry{Symbol: "AAPL", Strategy: "pmcc", DurationMs: 10})
		require.NoError(t, err)
	}

	recent, err := repo.Recent(3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	// Non-positive limit falls back to the default
	recent, err = repo.Recent(0)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
}

func TestPrune(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Record(Entry{Symbol: "OLD", Strategy: "pmcc", ScannedAt: time.Now().Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = repo.Record(Entry{Symbol: "NEW", Strategy: "pmcc"})
	require.NoError(t, err)

	removed, err := repo.Prune(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	recent, err := repo.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "NEW", recent[0].Symbol)
}
