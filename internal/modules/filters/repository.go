// Package filters persists named scan criteria presets.
package filters

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles filter preset persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new filters repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "filters").Logger(),
	}
}

// Create inserts a new filter preset. The (name, strategy) pair is unique.
func (r *Repository) Create(f Filter) (Filter, error) {
	f.ID = uuid.NewString()
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Criteria == nil {
		f.Criteria = map[string]float64{}
	}

	criteriaJSON, err := json.Marshal(f.Criteria)
	if err != nil {
		return Filter{}, fmt.Errorf("failed to marshal criteria: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO filters (id, name, strategy, criteria, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ID, f.Name, f.Strategy, string(criteriaJSON), f.CreatedAt.Unix(), f.UpdatedAt.Unix())
	if err != nil {
		return Filter{}, fmt.Errorf("failed to insert filter: %w", err)
	}

	return f, nil
}

// Get retrieves a filter by id. Returns sql.ErrNoRows if absent.
func (r *Repository) Get(id string) (Filter, error) {
	row := r.db.QueryRow(`
		SELECT id, name, strategy, criteria, created_at, updated_at
		FROM filters WHERE id = ?
	`, id)
	return scanFilter(row)
}

// List returns all saved filters, optionally restricted to one strategy.
func (r *Repository) List(strategy string) ([]Filter, error) {
	query := `
		SELECT id, name, strategy, criteria, created_at, updated_at
		FROM filters ORDER BY strategy, name
	`
	args := []interface{}{}
	if strategy != "" {
		query = `
			SELECT id, name, strategy, criteria, created_at, updated_at
			FROM filters WHERE strategy = ? ORDER BY name
		`
		args = append(args, strategy)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filters: %w", err)
	}
	defer rows.Close()

	all := []Filter{}
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, f)
	}
	return all, rows.Err()
}

// Update replaces a filter's name and criteria.
func (r *Repository) Update(id, name string, criteria map[string]float64) error {
	if criteria == nil {
		criteria = map[string]float64{}
	}
	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE filters SET name = ?, criteria = ?, updated_at = ? WHERE id = ?
	`, name, string(criteriaJSON), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update filter: %w", err)
	}
	return requireRow(result, id)
}

// Delete removes a filter by id.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM filters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("filter not found: %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFilter(row rowScanner) (Filter, error) {
	var f Filter
	var criteriaJSON string
	var createdAt, updatedAt int64

	if err := row.Scan(&f.ID, &f.Name, &f.Strategy, &criteriaJSON, &createdAt, &updatedAt); err != nil {
		return Filter{}, err
	}
	if err := json.Unmarshal([]byte(criteriaJSON), &f.Criteria); err != nil {
		return Filter{}, fmt.Errorf("failed to unmarshal criteria: %w", err)
	}
	f.CreatedAt = time.Unix(createdAt, 0)
	f.UpdatedAt = time.Unix(updatedAt, 0)
	return f, nil
}
