// Package scanhistory records completed strategy scans for later review.
package scanhistory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is one recorded scan run.
type Entry struct {
	ID          string             `json:"id"`
	Symbol      string             `json:"symbol"`
	Strategy    string             `json:"strategy"`
	Criteria    map[string]float64 `json:"criteria"`
	ResultCount int                `json:"result_count"`
	BestScore   *float64           `json:"best_score"`
	DurationMs  int64              `json:"duration_ms"`
	ScannedAt   time.Time          `json:"scanned_at"`
}

// Repository handles scan history persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new scan history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "scan_history").Logger(),
	}
}

// Record inserts a completed scan. BestScore is nil when the scan
// produced no opportunities.
func (r *Repository) Record(e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	if e.ScannedAt.IsZero() {
		e.ScannedAt = time.Now()
	}
	if e.Criteria == nil {
		e.Criteria = map[string]float64{}
	}

	criteriaJSON, err := json.Marshal(e.Criteria)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal criteria: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO scan_history (id, symbol, strategy, criteria, result_count, best_score, duration_ms, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Symbol, e.Strategy, string(criteriaJSON), e.ResultCount, e.BestScore, e.DurationMs, e.ScannedAt.Unix())
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert scan history: %w", err)
	}

	return e, nil
}

// Recent returns the most recent scans, newest first. A non-positive
// limit defaults to 20.
func (r *Repository) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, symbol, strategy, criteria, result_count, best_score, duration_ms, scanned_at
		FROM scan_history ORDER BY scanned_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var criteriaJSON string
		var scannedAt int64
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Strategy, &criteriaJSON, &e.ResultCount, &e.BestScore, &e.DurationMs, &scannedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(criteriaJSON), &e.Criteria); err != nil {
			return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
		}
		e.ScannedAt = time.Unix(scannedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes history entries older than the cutoff. Returns the
// number of rows removed.
func (r *Repository) Prune(olderThan time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM scan_history WHERE scanned_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune scan history: %w", err)
	}
	return result.RowsAffected()
}
