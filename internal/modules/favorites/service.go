package favorites

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/payoff"
)

// Service coordinates favorites persistence with live-price refresh.
type Service struct {
	repo     *Repository
	provider domain.MarketDataProvider
	log      zerolog.Logger
}

// NewService creates a new favorites service.
func NewService(repo *Repository, provider domain.MarketDataProvider, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		log:      log.With().Str("service", "favorites").Logger(),
	}
}

// Repo exposes the underlying repository for handlers.
func (s *Service) Repo() *Repository {
	return s.repo
}

// Refresh re-fetches the current price for each distinct symbol among
// the saved favorites and recomputes position metrics. Symbols whose
// price is unavailable are skipped, never fatal.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	all, err := s.repo.List()
	if err != nil {
		return RefreshResult{}, err
	}

	// One quote per distinct symbol
	prices := make(map[string]float64)
	var failedSymbols []string
	for _, f := range all {
		if _, seen := prices[f.Symbol]; seen {
			continue
		}
		price, err := s.provider.QuotePrice(ctx, f.Symbol)
		if err != nil || price <= 0 {
			s.log.Warn().Err(err).Str("symbol", f.Symbol).Msg("Price unavailable during refresh")
			failedSymbols = append(failedSymbols, f.Symbol)
			continue
		}
		prices[f.Symbol] = price
	}

	result := RefreshResult{Symbols: make([]string, 0, len(prices))}
	for symbol := range prices {
		result.Symbols = append(result.Symbols, symbol)
	}

	now := domain.EasternNow()
	for _, f := range all {
		price, ok := prices[f.Symbol]
		if !ok {
			result.Failed++
			continue
		}

		metrics := payoff.Recalculate(f.Legs, price, f.StockPrice, now)
		updated := map[string]float64{
			"current_price":    price,
			"current_pnl":      metrics.CurrentPnL,
			"max_profit":       metrics.MaxProfit,
			"max_loss":         metrics.MaxLoss,
			"roi":              metrics.ROI,
			"prob_profit":      metrics.ProbOfProfit,
			"price_change_pct": metrics.PriceChangePct,
		}
		if metrics.Breakeven != nil {
			updated["breakeven"] = *metrics.Breakeven
		}
		if metrics.DaysToExpiry != nil {
			updated["days_to_expiry"] = float64(*metrics.DaysToExpiry)
		}

		if err := s.repo.UpdateMetrics(f.ID, updated); err != nil {
			s.log.Error().Err(err).Str("id", f.ID).Msg("Failed to store refreshed metrics")
			result.Failed++
			continue
		}
		result.Refreshed++
	}

	s.log.Info().
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Int("symbols", len(prices)).
		Msg("Favorites refresh completed")

	return result, nil
}
