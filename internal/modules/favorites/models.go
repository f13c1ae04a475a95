// Package favorites persists opportunities the user wants to keep and
// refreshes their mark-to-market metrics against live prices.
package favorites

import (
	"time"

	"github.com/aristath/optionscan/internal/domain"
)

// Favorite is a saved opportunity.
type Favorite struct {
	ID         string             `json:"id"`
	Symbol     string             `json:"symbol"`
	Strategy   string             `json:"strategy"`
	Legs       []domain.Leg       `json:"legs"`
	NetCost    float64            `json:"net_cost"`
	StockPrice float64            `json:"stock_price"` // underlying price when saved
	Notes      string             `json:"notes"`
	Metrics    map[string]float64 `json:"metrics"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// RefreshResult summarizes one refresh pass over the saved positions.
type RefreshResult struct {
	Refreshed int      `json:"refreshed"`
	Failed    int      `json:"failed"`
	Symbols   []string `json:"symbols"`
}
