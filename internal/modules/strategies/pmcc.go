package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
)

// PMCC scans for Poor Man's Covered Calls: a deep ITM long-dated call
// financed by selling a short-dated OTM call against it.
type PMCC struct {
	base
}

// NewPMCC creates the PMCC scan engine.
func NewPMCC(deps Deps, log zerolog.Logger) *PMCC {
	return &PMCC{base: newBase(
		"pmcc",
		"PMCC - Poor Man's Covered Call",
		"Buy deep ITM long call (LEAP) and sell OTM short call for income",
		2,
		"intermediate",
		deps,
		log,
	)}
}

// DefaultCriteria returns the default PMCC filter criteria.
func (s *PMCC) DefaultCriteria() map[string]float64 {
	return map[string]float64{
		"min_long_delta":  0.60,
		"max_long_delta":  0.95,
		"min_short_delta": 0.15,
		"max_short_delta": 0.50,
		"min_long_dte":    150,
		"min_short_dte":   10,
		"max_short_dte":   60,
		"min_credit":      0.25,
		"min_volume":      0,
		// Scoring weights, must sum to 1.0
		"weight_roi":         0.25,
		"weight_risk_reward": 0.20,
		"weight_premium":     0.15,
		"weight_long_delta":  0.20,
		"weight_short_delta": 0.20,
	}
}

// Scan searches for PMCC candidates on the symbol.
func (s *PMCC) Scan(ctx context.Context, symbol string, criteria map[string]float64) ([]domain.Opportunity, error) {
	c := mergeCriteria(s.DefaultCriteria(), criteria)

	if err := validateWeights(c, "weight_roi", "weight_risk_reward", "weight_premium", "weight_long_delta", "weight_short_delta"); err != nil {
		return nil, err
	}
	if c["min_long_delta"] > c["max_long_delta"] || c["min_short_delta"] > c["max_short_delta"] {
		return nil, fmt.Errorf("delta range minimum exceeds maximum")
	}
	if c["min_short_dte"] > c["max_short_dte"] {
		return nil, fmt.Errorf("short DTE range minimum exceeds maximum")
	}

	snap, tracker := s.openScan(ctx, symbol, c)
	if snap == nil {
		return []domain.Opportunity{}, nil
	}

	all := snap.Chain.All()
	tracker.AddStep("Raw Options", fmt.Sprintf("Total options fetched for %s", symbol), len(all), len(all))

	var calls []domain.OptionQuote
	for _, q := range all {
		if q.Type == domain.Call {
			calls = append(calls, q)
		}
	}
	tracker.AddStep("CALL Filter", "Filter to CALL options only", len(all), len(calls))

	minVolume := int(c["min_volume"])
	var liquid []domain.OptionQuote
	for _, q := range calls {
		if q.Volume >= minVolume {
			liquid = append(liquid, q)
		}
	}
	tracker.AddStep("Volume Filter", fmt.Sprintf("Minimum volume >= %d", minVolume), len(calls), len(liquid))

	var longs []domain.OptionQuote
	for _, q := range liquid {
		itm := q.Strike < snap.Price
		longTerm := float64(q.DTE) >= c["min_long_dte"]
		deltaOK := q.Delta >= c["min_long_delta"] && q.Delta <= c["max_long_delta"]
		if itm && longTerm && deltaOK {
			longs = append(longs, q)
		}
	}
	tracker.AddStep("Long Call Filter",
		fmt.Sprintf("ITM, DTE >= %.0f, Delta %.2f to %.2f", c["min_long_dte"], c["min_long_delta"], c["max_long_delta"]),
		len(liquid), len(longs))

	var shorts []domain.OptionQuote
	for _, q := range liquid {
		shortTerm := float64(q.DTE) >= c["min_short_dte"] && float64(q.DTE) <= c["max_short_dte"]
		deltaOK := q.Delta >= c["min_short_delta"] && q.Delta <= c["max_short_delta"]
		if shortTerm && deltaOK {
			shorts = append(shorts, q)
		}
	}
	tracker.AddStep("Short Call Filter",
		fmt.Sprintf("DTE %.0f-%.0f, Delta %.2f to %.2f", c["min_short_dte"], c["max_short_dte"], c["min_short_delta"], c["max_short_delta"]),
		len(liquid), len(shorts))

	type combo struct {
		long  domain.OptionQuote
		short domain.OptionQuote
	}
	potential := len(longs) * len(shorts)
	var valid []combo
	for _, lc := range longs {
		for _, sc := range shorts {
			if sc.Strike > lc.Strike && sc.Expiration.Before(lc.Expiration) {
				valid = append(valid, combo{long: lc, short: sc})
			}
		}
	}
	tracker.AddStep("Strike/Expiry Validation", "Short strike > Long strike, Short expiry < Long expiry", potential, len(valid))

	var funded []combo
	for _, cb := range valid {
		if cb.short.Premium >= c["min_credit"] {
			funded = append(funded, cb)
		}
	}
	tracker.AddStep("Credit Filter", fmt.Sprintf("Short call premium >= $%.2f", c["min_credit"]), len(valid), len(funded))

	var opps []domain.Opportunity
	for _, cb := range funded {
		netDebit := cb.long.Premium - cb.short.Premium
		maxProfit := (cb.short.Strike - cb.long.Strike) - netDebit
		if maxProfit <= 0 {
			continue
		}
		maxLoss := netDebit

		roi := 0.0
		if netDebit > 0 {
			roi = maxProfit / netDebit * 100
		}
		riskReward := 0.0
		if maxLoss != 0 {
			riskReward = math.Abs(maxProfit / maxLoss)
		}
		breakeven := cb.long.Strike + netDebit

		roiScore := clamp01(roi/100) * 100
		rrScore := clamp01(riskReward/3) * 100
		premiumScore := clamp01(cb.short.Premium/5) * 100
		longDeltaScore := (1 - math.Abs(cb.long.Delta-0.80)) * 100
		shortDeltaScore := (1 - math.Abs(cb.short.Delta-0.30)) * 100

		score := roiScore*c["weight_roi"] +
			rrScore*c["weight_risk_reward"] +
			premiumScore*c["weight_premium"] +
			longDeltaScore*c["weight_long_delta"] +
			shortDeltaScore*c["weight_short_delta"]

		annualized := 0.0
		if cb.short.DTE > 0 {
			annualized = roi * 365 / float64(cb.short.DTE)
		}
		pop := (1 - cb.short.Delta) * 100

		opps = append(opps, domain.Opportunity{
			Strategy: s.id,
			Symbol:   symbol,
			Score:    round2(score),
			Legs: []domain.Leg{
				{Type: domain.Call, Position: domain.Long, Strike: cb.long.Strike, Expiration: cb.long.Expiration, Premium: cb.long.Premium, Delta: cb.long.Delta, IV: cb.long.IV, Volume: cb.long.Volume, Quantity: 1},
				{Type: domain.Call, Position: domain.Short, Strike: cb.short.Strike, Expiration: cb.short.Expiration, Premium: cb.short.Premium, Delta: cb.short.Delta, IV: cb.short.IV, Volume: cb.short.Volume, Quantity: 1},
			},
			NetCost:      round2(netDebit),
			MaxProfit:    round2(maxProfit),
			MaxLoss:      round2(maxLoss),
			Breakevens:   []float64{round2(breakeven)},
			ProbOfProfit: round2(pop),
			Metrics: map[string]float64{
				"net_debit":           round2(netDebit),
				"roi":                 round2(roi),
				"annualized_roi":      round2(annualized),
				"risk_reward":         round2(riskReward),
				"short_premium":       round2(cb.short.Premium),
				"days_to_expiry":      float64(cb.short.DTE),
				"long_days_to_expiry": float64(cb.long.DTE),
			},
		})
	}
	tracker.AddStep("Profitability Filter", "Max profit > 0 (positive ROI)", len(funded), len(opps))

	finalCount := len(opps)
	if finalCount > 10 {
		finalCount = 10
	}
	tracker.AddStep("Final Selection", "Top 10 opportunities by score", len(opps), finalCount)
	tracker.Finalize(finalCount)

	return topN(opps, 10), nil
}
