// Package strategies contains the multi-leg option strategy scan
// engines and the registry that exposes them to the API layer.
package strategies

import (
	"context"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/pipeline"
)

// Strategy is the interface every scan engine implements.
type Strategy interface {
	// ID returns the unique strategy identifier (e.g. "pmcc").
	ID() string

	// DisplayName returns the user-facing name.
	DisplayName() string

	// Description returns a short explanation of the position.
	Description() string

	// NumLegs returns the number of option legs in the position.
	NumLegs() int

	// Complexity returns a coarse difficulty rating.
	Complexity() string

	// DefaultCriteria returns the strategy's default filter criteria.
	// Callers may override any subset; unknown keys are ignored.
	DefaultCriteria() map[string]float64

	// Scan searches the symbol's option chain for candidate positions.
	// Unavailable market data yields an empty result and a nil error;
	// an error is returned only for invalid filter criteria.
	Scan(ctx context.Context, symbol string, criteria map[string]float64) ([]domain.Opportunity, error)

	// Payoff evaluates the position's profit at each underlying price.
	Payoff(prices []float64, legs []domain.Leg) []float64
}

// Info is the registry's serializable description of a strategy.
type Info struct {
	ID          string             `json:"strategy_id"`
	DisplayName string             `json:"display_name"`
	Description string             `json:"description"`
	NumLegs     int                `json:"num_legs"`
	Complexity  string             `json:"complexity_level"`
	Defaults    map[string]float64 `json:"default_criteria"`
}

// Deps bundles everything a scan engine needs.
type Deps struct {
	Provider domain.MarketDataProvider
	Pipeline *pipeline.Store
}
