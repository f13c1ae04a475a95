package favorites

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
)

// Repository handles favorites database operations in scanner.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new favorites repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "favorites").Logger(),
	}
}

// Create stores a new favorite and returns it with its generated id.
func (r *Repository) Create(f Favorite) (Favorite, error) {
	f.ID = uuid.NewString()
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Metrics == nil {
		f.Metrics = map[string]float64{}
	}

	legsJSON, err := json.Marshal(f.Legs)
	if err != nil {
		return Favorite{}, fmt.Errorf("failed to marshal legs: %w", err)
	}
	metricsJSON, err := json.Marshal(f.Metrics)
	if err != nil {
		return Favorite{}, fmt.Errorf("failed to marshal metrics: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO favorites (id, symbol, strategy, legs, net_cost, stock_price, notes, metrics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Symbol, f.Strategy, string(legsJSON), f.NetCost, f.StockPrice, f.Notes, string(metricsJSON),
		f.CreatedAt.Unix(), f.UpdatedAt.Unix())
	if err != nil {
		return Favorite{}, fmt.Errorf("failed to insert favorite: %w", err)
	}

	return f, nil
}

// Get retrieves a favorite by id. Returns sql.ErrNoRows if absent.
func (r *Repository) Get(id string) (Favorite, error) {
	row := r.db.QueryRow(`
		SELECT id, symbol, strategy, legs, net_cost, stock_price, notes, metrics, created_at, updated_at
		FROM favorites WHERE id = ?
	`, id)
	return scanFavorite(row)
}

// List returns all favorites, newest first.
func (r *Repository) List() ([]Favorite, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, strategy, legs, net_cost, stock_price, notes, metrics, created_at, updated_at
		FROM favorites ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	favorites := []Favorite{}
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// UpdateNotes replaces the notes on a favorite.
func (r *Repository) UpdateNotes(id, notes string) error {
	result, err := r.db.Exec(`
		UPDATE favorites SET notes = ?, updated_at = ? WHERE id = ?
	`, notes, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update favorite notes: %w", err)
	}
	return requireRow(result, id)
}

// UpdateMetrics replaces the computed metrics on a favorite.
func (r *Repository) UpdateMetrics(id string, metrics map[string]float64) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE favorites SET metrics = ?, updated_at = ? WHERE id = ?
	`, string(metricsJSON), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update favorite metrics: %w", err)
	}
	return requireRow(result, id)
}

// Delete removes a favorite by id.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM favorites WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("favorite not found: %s", id)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFavorite(row rowScanner) (Favorite, error) {
	var f Favorite
	var legsJSON, metricsJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&f.ID, &f.Symbol, &f.Strategy, &legsJSON, &f.NetCost, &f.StockPrice,
		&f.Notes, &metricsJSON, &createdAt, &updatedAt)
	if err != nil {
		return Favorite{}, err
	}

	if err := json.Unmarshal([]byte(legsJSON), &f.Legs); err != nil {
		return Favorite{}, fmt.Errorf("failed to unmarshal legs for %s: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &f.Metrics); err != nil {
		return Favorite{}, fmt.Errorf("failed to unmarshal metrics for %s: %w", f.ID, err)
	}
	if f.Legs == nil {
		f.Legs = []domain.Leg{}
	}

	f.CreatedAt = time.Unix(createdAt, 0)
	f.UpdatedAt = time.Unix(updatedAt, 0)
	return f, nil
}
