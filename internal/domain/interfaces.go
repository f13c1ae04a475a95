package domain

import "context"

// MarketDataProvider supplies the market data a strategy scan needs.
// Implementations are expected to cache aggressively; scans may call
// these several times per run.
type MarketDataProvider interface {
	// QuotePrice returns the latest underlying price for a symbol.
	QuotePrice(ctx context.Context, symbol string) (float64, error)

	// RiskFreeRate returns the current risk-free rate as a decimal
	// (0.05 for 5%). It never fails; implementations fall back to a
	// default when the source is unavailable.
	RiskFreeRate(ctx context.Context) float64

	// OptionsChain returns the full raw options chain for a symbol.
	OptionsChain(ctx context.Context, symbol string) ([]RawOption, error)
}
