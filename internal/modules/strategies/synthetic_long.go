package strategies

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
)

// SyntheticLong scans for synthetic stock positions: a long ATM call
// and a short ATM put at the same strike and expiration, which together
// move roughly one for one with the underlying.
type SyntheticLong struct {
	base
}

// NewSyntheticLong creates the synthetic long scan engine.
func NewSyntheticLong(deps Deps, log zerolog.Logger) *SyntheticLong {
	return &SyntheticLong{base: newBase(
		"synthetic_long",
		"Synthetic Long",
		"Long call + short put at same strike to mimic stock ownership",
		2,
		"beginner",
		deps,
		log,
	)}
}

// DefaultCriteria returns the default synthetic long filter criteria.
func (s *SyntheticLong) DefaultCriteria() map[string]float64 {
	return map[string]float64{
		"min_dte":             30,
		"max_dte":             90,
		"max_strike_distance": 0.05,
		"min_volume":          10,
		"min_delta":           0.90,
		"max_cost":            2.00,
		// Scoring weights, must sum to 1.0
		"weight_cost":             0.30,
		"weight_delta":            0.35,
		"weight_strike_proximity": 0.20,
		"weight_volume":           0.15,
	}
}

// Scan searches for synthetic long candidates on the symbol.
func (s *SyntheticLong) Scan(ctx context.Context, symbol string, criteria map[string]float64) ([]domain.Opportunity, error) {
	c := mergeCriteria(s.DefaultCriteria(), criteria)

	if err := validateWeights(c, "weight_cost", "weight_delta", "weight_strike_proximity", "weight_volume"); err != nil {
		return nil, err
	}
	if c["min_dte"] > c["max_dte"] {
		return nil, fmt.Errorf("DTE range minimum exceeds maximum")
	}
	if c["max_strike_distance"] <= 0 {
		return nil, fmt.Errorf("max_strike_distance must be positive")
	}

	snap, tracker := s.openScan(ctx, symbol, c)
	if snap == nil {
		return []domain.Opportunity{}, nil
	}

	all := snap.Chain.All()
	tracker.AddStep("Raw Options", fmt.Sprintf("Total options fetched for %s", symbol), len(all), len(all))

	var inWindow []domain.OptionQuote
	for _, q := range all {
		if float64(q.DTE) >= c["min_dte"] && float64(q.DTE) <= c["max_dte"] {
			inWindow = append(inWindow, q)
		}
	}
	tracker.AddStep("DTE Filter", fmt.Sprintf("Days to expiry %.0f-%.0f", c["min_dte"], c["max_dte"]), len(all), len(inWindow))

	// Pair calls and puts at the same strike and expiration.
	type pairKey struct {
		expiry time.Time
		strike float64
	}
	type pair struct {
		call *domain.OptionQuote
		put  *domain.OptionQuote
	}
	byKey := make(map[pairKey]*pair)
	for i := range inWindow {
		q := inWindow[i]
		key := pairKey{expiry: q.Expiration, strike: q.Strike}
		p, ok := byKey[key]
		if !ok {
			p = &pair{}
			byKey[key] = p
		}
		if q.Type == domain.Call {
			p.call = &inWindow[i]
		} else {
			p.put = &inWindow[i]
		}
	}
	var pairs []pair
	for _, p := range byKey {
		if p.call != nil && p.put != nil {
			pairs = append(pairs, *p)
		}
	}
	tracker.AddStep("Call/Put Pairs", "Strikes with both call and put options", len(inWindow), len(pairs))

	var atm []pair
	for _, p := range pairs {
		if math.Abs(p.call.Strike-snap.Price)/snap.Price <= c["max_strike_distance"] {
			atm = append(atm, p)
		}
	}
	tracker.AddStep("ATM Filter", fmt.Sprintf("Strike within %.0f%% of stock price", c["max_strike_distance"]*100), len(pairs), len(atm))

	minVolume := int(c["min_volume"])
	var liquid []pair
	for _, p := range atm {
		if p.call.Volume >= minVolume && p.put.Volume >= minVolume {
			liquid = append(liquid, p)
		}
	}
	tracker.AddStep("Volume Filter", fmt.Sprintf("Minimum volume >= %d", minVolume), len(atm), len(liquid))

	var atmDelta []pair
	for _, p := range liquid {
		if p.call.Delta >= 0.35 && p.call.Delta <= 0.65 && p.put.Delta >= -0.65 && p.put.Delta <= -0.35 {
			atmDelta = append(atmDelta, p)
		}
	}
	tracker.AddStep("Delta Filter", "ATM delta range (0.35-0.65)", len(liquid), len(atmDelta))

	var opps []domain.Opportunity
	for _, p := range atmDelta {
		netCost := p.call.Premium - p.put.Premium
		if netCost > c["max_cost"] {
			continue
		}
		combinedDelta := p.call.Delta - p.put.Delta
		if combinedDelta < c["min_delta"] {
			continue
		}

		strike := p.call.Strike
		strikeDistance := math.Abs(strike-snap.Price) / snap.Price
		breakeven := strike + netCost

		costScore := 100.0
		if c["max_cost"] > 0 {
			costScore = clamp01((c["max_cost"]-netCost)/c["max_cost"]) * 100
		}
		deltaScore := clamp01(combinedDelta) * 100
		proximityScore := (1 - strikeDistance) * 100
		minVol := p.call.Volume
		if p.put.Volume < minVol {
			minVol = p.put.Volume
		}
		volumeScore := clamp01(float64(minVol)/500) * 100

		score := costScore*c["weight_cost"] +
			deltaScore*c["weight_delta"] +
			proximityScore*c["weight_strike_proximity"] +
			volumeScore*c["weight_volume"]

		// Upside is open-ended; a sentinel marks it for the UI.
		maxProfit := 999999.0
		maxLoss := strike + netCost
		roiEstimate := 0.0
		if netCost > 0 {
			roiEstimate = (strike * 0.10) / math.Max(netCost, 0.01) * 100
		}
		annualized := 0.0
		if p.call.DTE > 0 {
			annualized = roiEstimate * 365 / float64(p.call.DTE)
		}

		opps = append(opps, domain.Opportunity{
			Strategy: s.id,
			Symbol:   symbol,
			Score:    round2(score),
			Legs: []domain.Leg{
				{Type: domain.Call, Position: domain.Long, Strike: strike, Expiration: p.call.Expiration, Premium: p.call.Premium, Delta: p.call.Delta, IV: p.call.IV, Volume: p.call.Volume, Quantity: 1},
				{Type: domain.Put, Position: domain.Short, Strike: strike, Expiration: p.put.Expiration, Premium: p.put.Premium, Delta: p.put.Delta, IV: p.put.IV, Volume: p.put.Volume, Quantity: 1},
			},
			NetCost:      round2(netCost),
			MaxProfit:    maxProfit,
			MaxLoss:      round2(maxLoss),
			Breakevens:   []float64{round2(breakeven)},
			ProbOfProfit: 50.0,
			Metrics: map[string]float64{
				"net_cost":       round2(netCost),
				"combined_delta": round2(combinedDelta),
				"roi":            round2(roiEstimate),
				"annualized_roi": round2(annualized),
				"days_to_expiry": float64(p.call.DTE),
			},
		})
	}
	tracker.AddStep("Cost/Delta Filter",
		fmt.Sprintf("Net cost <= $%.2f, combined delta >= %.2f", c["max_cost"], c["min_delta"]),
		len(atmDelta), len(opps))

	finalCount := len(opps)
	if finalCount > 10 {
		finalCount = 10
	}
	tracker.AddStep("Final Selection", "Top 10 opportunities by score", len(opps), finalCount)
	tracker.Finalize(finalCount)

	return topN(opps, 10), nil
}
