package clientdata

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE alphavantage_quote (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE alphavantage_treasury (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE alphavantage_options (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

type quotePayload struct {
	Symbol string  `msgpack:"symbol"`
	Price  float64 `msgpack:"price"`
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	stored := quotePayload{Symbol: "AAPL", Price: 123.45}
	err := repo.Store(TableQuote, "AAPL", stored, TTLQuote)
	require.NoError(t, err)

	var got quotePayload
	found, err := repo.GetIfFresh(TableQuote, "AAPL", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, stored, got)

	// Missing key
	found, err = repo.GetIfFresh(TableQuote, "MSFT", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetIfFreshExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	err := repo.Store(TableTreasury, "3month", quotePayload{Price: 0.045}, -time.Minute)
	require.NoError(t, err)

	var got quotePayload
	found, err := repo.GetIfFresh(TableTreasury, "3month", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// Stale fallback still returns the data
	found, err = repo.Get(TableTreasury, "3month", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0.045, got.Price)
}

func TestStoreUpsert(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store(TableQuote, "AAPL", quotePayload{Price: 100}, TTLQuote))
	require.NoError(t, repo.Store(TableQuote, "AAPL", quotePayload{Price: 101}, TTLQuote))

	var got quotePayload
	found, err := repo.GetIfFresh(TableQuote, "AAPL", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 101.0, got.Price)
}

func TestInvalidTable(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	err := repo.Store("users; DROP TABLE alphavantage_quote", "k", "v", time.Minute)
	assert.Error(t, err)

	var got string
	_, err = repo.GetIfFresh("unknown_table", "k", &got)
	assert.Error(t, err)

	err = repo.Delete("unknown_table", "k")
	assert.Error(t, err)
}

func TestDeleteExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store(TableOptions, "AAPL", quotePayload{}, -time.Minute))
	require.NoError(t, repo.Store(TableOptions, "MSFT", quotePayload{}, time.Hour))

	deleted, err := repo.DeleteExpired(TableOptions)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var got quotePayload
	found, err := repo.Get(TableOptions, "MSFT", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCleanupJob(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store(TableQuote, "AAPL", quotePayload{}, -time.Minute))
	require.NoError(t, repo.Store(TableTreasury, "3month", quotePayload{}, -time.Minute))
	require.NoError(t, repo.Store(TableOptions, "AAPL", quotePayload{}, time.Hour))

	job := NewCleanupJob(repo, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())

	var got quotePayload
	found, err := repo.Get(TableQuote, "AAPL", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.Get(TableOptions, "AAPL", &got)
	require.NoError(t, err)
	assert.True(t, found)
}
