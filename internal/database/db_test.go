package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateScannerSchema(t *testing.T) {
	db := openTestDB(t, "scanner", ProfileStandard)
	require.NoError(t, db.Migrate())

	// Migrations are idempotent
	require.NoError(t, db.Migrate())

	for _, table := range []string{"favorites", "filters", "scan_history"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrateCacheSchema(t *testing.T) {
	db := openTestDB(t, "cache", ProfileCache)
	require.NoError(t, db.Migrate())

	for _, table := range []string{"alphavantage_quote", "alphavantage_treasury", "alphavantage_options"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t, "scanner", ProfileStandard)
	require.NoError(t, db.Migrate())
	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.QuickCheck(context.Background()))
}

func TestWithTransaction(t *testing.T) {
	db := openTestDB(t, "scanner", ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO filters (id, name, strategy, criteria, created_at, updated_at)
			VALUES ('x', 'test', 'pmcc', '{}', 0, 0)`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM filters`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransactionRollback(t *testing.T) {
	db := openTestDB(t, "scanner", ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO filters (id, name, strategy, criteria, created_at, updated_at)
			VALUES ('x', 'test', 'pmcc', '{}', 0, 0)`); err != nil {
			return err
		}
		// Duplicate primary key forces a rollback
		_, err := tx.Exec(`INSERT INTO filters (id, name, strategy, criteria, created_at, updated_at)
			VALUES ('x', 'other', 'pmcc', '{}', 0, 0)`)
		return err
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM filters`).Scan(&count))
	assert.Zero(t, count)
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t, "scanner", ProfileStandard)
	require.NoError(t, db.Migrate())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Positive(t, stats.PageCount)
	assert.Positive(t, stats.PageSize)
}
