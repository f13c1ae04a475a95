package strategies

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/pricing"
)

// IronCondor scans for four-leg neutral credit positions: a short OTM
// put spread below the stock price combined with a short OTM call
// spread above it, both in the same expiration.
type IronCondor struct {
	base
}

// NewIronCondor creates the iron condor scan engine.
func NewIronCondor(deps Deps, log zerolog.Logger) *IronCondor {
	return &IronCondor{base: newBase(
		"iron_condor",
		"Iron Condor",
		"Neutral credit strategy combining OTM put and call spreads. Profits from low volatility and time decay within a range.",
		4,
		"intermediate",
		deps,
		log,
	)}
}

// DefaultCriteria returns the default iron condor filter criteria.
// Spread widths are percentages of the stock price; max risk is in
// dollars per contract.
func (s *IronCondor) DefaultCriteria() map[string]float64 {
	return map[string]float64{
		"min_dte":                  30,
		"max_dte":                  60,
		"short_put_delta_min":      0.15,
		"short_put_delta_max":      0.30,
		"short_call_delta_min":     0.15,
		"short_call_delta_max":     0.30,
		"put_spread_width_min":     3.0,
		"put_spread_width_max":     10.0,
		"call_spread_width_min":    3.0,
		"call_spread_width_max":    10.0,
		"min_credit":               0.50,
		"min_credit_to_risk_ratio": 0.25,
		"max_risk_per_contract":    500,
		"min_volume":               10,
		"min_prob_profit":          0.45,
		"prefer_balanced":          1,
		// Scoring weights, must sum to 1.0
		"weight_credit_to_risk": 0.30,
		"weight_pop":            0.30,
		"weight_credit_amount":  0.20,
		"weight_volume":         0.10,
		"weight_balanced":       0.10,
	}
}

func (s *IronCondor) validate(c map[string]float64) error {
	if c["min_dte"] < 0 || c["max_dte"] < c["min_dte"] {
		return fmt.Errorf("invalid DTE range")
	}
	if !(0 < c["short_put_delta_max"] && c["short_put_delta_max"] <= 0.50) {
		return fmt.Errorf("short put delta max must be between 0 and 0.50")
	}
	if !(0 < c["short_call_delta_max"] && c["short_call_delta_max"] <= 0.50) {
		return fmt.Errorf("short call delta max must be between 0 and 0.50")
	}
	if c["put_spread_width_min"] <= 0 || c["put_spread_width_max"] <= c["put_spread_width_min"] {
		return fmt.Errorf("invalid put spread width range")
	}
	if c["call_spread_width_min"] <= 0 || c["call_spread_width_max"] <= c["call_spread_width_min"] {
		return fmt.Errorf("invalid call spread width range")
	}
	if c["min_credit"] < 0 {
		return fmt.Errorf("minimum credit must be non-negative")
	}
	if c["min_credit_to_risk_ratio"] < 0 || c["min_credit_to_risk_ratio"] > 1 {
		return fmt.Errorf("credit to risk ratio must be between 0 and 1")
	}
	if c["min_prob_profit"] < 0 || c["min_prob_profit"] > 1 {
		return fmt.Errorf("probability of profit must be between 0 and 1")
	}
	return validateWeights(c, "weight_credit_to_risk", "weight_pop", "weight_credit_amount", "weight_volume", "weight_balanced")
}

type creditSpread struct {
	short    domain.OptionQuote
	long     domain.OptionQuote
	credit   float64
	width    float64
	widthPct float64
}

type condorCandidate struct {
	expiry       time.Time
	dte          int
	put          creditSpread
	call         creditSpread
	totalCredit  float64
	maxRisk      float64
	creditToRisk float64
	pop          float64
	lowerBE      float64
	upperBE      float64
}

// Scan searches for iron condor candidates on the symbol and returns
// the ten best by score.
func (s *IronCondor) Scan(ctx context.Context, symbol string, criteria map[string]float64) ([]domain.Opportunity, error) {
	c := mergeCriteria(s.DefaultCriteria(), criteria)
	if err := s.validate(c); err != nil {
		return nil, err
	}

	snap, tracker := s.openScan(ctx, symbol, c)
	if snap == nil {
		return []domain.Opportunity{}, nil
	}

	totalRaw := len(snap.Chain.All())
	expirations := snap.Chain.Expirations()
	tracker.AddStep("Market Data", fmt.Sprintf("Retrieved %d options contracts", totalRaw), totalRaw, totalRaw)
	tracker.AddStep("Parse Options", fmt.Sprintf("Grouped into %d expirations", len(expirations)), totalRaw, len(expirations))

	type expiryGroup struct {
		expiry time.Time
		quotes []domain.OptionQuote
		dte    int
	}
	var valid []expiryGroup
	for _, exp := range expirations {
		quotes := snap.Chain[exp]
		if len(quotes) == 0 {
			continue
		}
		dte := quotes[0].DTE
		if float64(dte) >= c["min_dte"] && float64(dte) <= c["max_dte"] {
			valid = append(valid, expiryGroup{expiry: exp, quotes: quotes, dte: dte})
		}
	}
	tracker.AddStep("DTE Filter",
		fmt.Sprintf("%.0f-%.0f days", c["min_dte"], c["max_dte"]),
		len(expirations), len(valid))

	minVolume := int(c["min_volume"])
	var candidates []condorCandidate
	for _, grp := range valid {
		var calls, puts []domain.OptionQuote
		for _, q := range grp.quotes {
			if q.Volume < minVolume {
				continue
			}
			switch q.Type {
			case domain.Call:
				calls = append(calls, q)
			case domain.Put:
				puts = append(puts, q)
			}
		}

		// Put spreads: sell the higher strike, buy the lower one.
		var putSpreads []creditSpread
		for _, sp := range puts {
			absDelta := math.Abs(sp.Delta)
			if absDelta < c["short_put_delta_min"] || absDelta > c["short_put_delta_max"] {
				continue
			}
			if sp.Strike >= snap.Price {
				continue
			}
			for _, lp := range puts {
				if lp.Strike >= sp.Strike {
					continue
				}
				widthPct := (sp.Strike - lp.Strike) / snap.Price * 100
				if widthPct < c["put_spread_width_min"] || widthPct > c["put_spread_width_max"] {
					continue
				}
				credit := sp.Premium - lp.Premium
				if credit > 0 {
					putSpreads = append(putSpreads, creditSpread{
						short: sp, long: lp, credit: credit,
						width: sp.Strike - lp.Strike, widthPct: widthPct,
					})
				}
			}
		}

		// Call spreads: sell the lower strike, buy the higher one.
		var callSpreads []creditSpread
		for _, sc := range calls {
			absDelta := math.Abs(sc.Delta)
			if absDelta < c["short_call_delta_min"] || absDelta > c["short_call_delta_max"] {
				continue
			}
			if sc.Strike <= snap.Price {
				continue
			}
			for _, lc := range calls {
				if lc.Strike <= sc.Strike {
					continue
				}
				widthPct := (lc.Strike - sc.Strike) / snap.Price * 100
				if widthPct < c["call_spread_width_min"] || widthPct > c["call_spread_width_max"] {
					continue
				}
				credit := sc.Premium - lc.Premium
				if credit > 0 {
					callSpreads = append(callSpreads, creditSpread{
						short: sc, long: lc, credit: credit,
						width: lc.Strike - sc.Strike, widthPct: widthPct,
					})
				}
			}
		}

		for _, ps := range putSpreads {
			for _, cs := range callSpreads {
				if ps.short.Strike >= cs.short.Strike {
					continue
				}
				totalCredit := ps.credit + cs.credit
				maxRisk := math.Max(ps.width, cs.width)
				creditToRisk := 0.0
				if maxRisk > 0 {
					creditToRisk = totalCredit / maxRisk
				}
				if totalCredit < c["min_credit"] {
					continue
				}
				if creditToRisk < c["min_credit_to_risk_ratio"] {
					continue
				}
				if maxRisk*100 > c["max_risk_per_contract"] {
					continue
				}
				candidates = append(candidates, condorCandidate{
					expiry: grp.expiry, dte: grp.dte,
					put: ps, call: cs,
					totalCredit: totalCredit, maxRisk: maxRisk, creditToRisk: creditToRisk,
				})
			}
		}
	}
	tracker.AddStep("Spread Combination",
		"Find valid put and call spreads: (1) OTM put spreads (sell higher, buy lower) with deltas and widths in range, (2) OTM call spreads (sell lower, buy higher) with deltas and widths in range, (3) Combine non-overlapping spreads meeting credit and risk requirements",
		len(valid), len(candidates))

	var likely []condorCandidate
	for _, cd := range candidates {
		t := float64(cd.dte) / 365.0
		cd.lowerBE = cd.put.short.Strike - cd.totalCredit
		cd.upperBE = cd.call.short.Strike + cd.totalCredit
		cd.pop = pricing.ProbInRange(cd.lowerBE, cd.upperBE, snap.Price, snap.AvgIV, snap.Rate, t)
		if cd.pop >= c["min_prob_profit"] {
			likely = append(likely, cd)
		}
	}
	tracker.AddStep("Probability Filter",
		fmt.Sprintf("POP >= %.0f%%", c["min_prob_profit"]*100),
		len(candidates), len(likely))

	var opps []domain.Opportunity
	for _, cd := range likely {
		legsMinVolume := cd.put.short.Volume
		for _, v := range []int{cd.put.long.Volume, cd.call.short.Volume, cd.call.long.Volume} {
			if v < legsMinVolume {
				legsMinVolume = v
			}
		}
		volumeScore := clamp01(float64(legsMinVolume) / 100)

		widthDiff := math.Abs(cd.put.widthPct - cd.call.widthPct)
		balancedScore := math.Max(0, 1-widthDiff/10)

		score := c["weight_credit_to_risk"]*(cd.creditToRisk*100) +
			c["weight_pop"]*(cd.pop*100) +
			c["weight_credit_amount"]*(cd.totalCredit*10) +
			c["weight_volume"]*(volumeScore*100) +
			c["weight_balanced"]*(balancedScore*100)

		roi := 0.0
		if cd.maxRisk > 0 {
			roi = cd.totalCredit / cd.maxRisk * 100
		}
		annualizedROI := 0.0
		if cd.dte > 0 {
			annualizedROI = roi * 365 / float64(cd.dte)
		}

		opps = append(opps, domain.Opportunity{
			Strategy: s.id,
			Symbol:   symbol,
			Score:    round2(score),
			Legs: []domain.Leg{
				{Type: domain.Put, Position: domain.Short, Strike: cd.put.short.Strike, Expiration: cd.expiry, Premium: cd.put.short.Premium, Delta: cd.put.short.Delta, IV: cd.put.short.IV, Volume: cd.put.short.Volume, Quantity: 1},
				{Type: domain.Put, Position: domain.Long, Strike: cd.put.long.Strike, Expiration: cd.expiry, Premium: cd.put.long.Premium, Delta: cd.put.long.Delta, IV: cd.put.long.IV, Volume: cd.put.long.Volume, Quantity: 1},
				{Type: domain.Call, Position: domain.Short, Strike: cd.call.short.Strike, Expiration: cd.expiry, Premium: cd.call.short.Premium, Delta: cd.call.short.Delta, IV: cd.call.short.IV, Volume: cd.call.short.Volume, Quantity: 1},
				{Type: domain.Call, Position: domain.Long, Strike: cd.call.long.Strike, Expiration: cd.expiry, Premium: cd.call.long.Premium, Delta: cd.call.long.Delta, IV: cd.call.long.IV, Volume: cd.call.long.Volume, Quantity: 1},
			},
			NetCost:      round2(-cd.totalCredit),
			MaxProfit:    round2(cd.totalCredit),
			MaxLoss:      round2(cd.maxRisk - cd.totalCredit),
			Breakevens:   []float64{round2(cd.lowerBE), round2(cd.upperBE)},
			ProbOfProfit: round2(cd.pop * 100),
			Metrics: map[string]float64{
				"net_credit":         round2(cd.totalCredit),
				"max_risk":           round2(cd.maxRisk),
				"lower_breakeven":    round2(cd.lowerBE),
				"upper_breakeven":    round2(cd.upperBE),
				"profit_range_width": round2(cd.upperBE - cd.lowerBE),
				"credit_to_risk":     math.Round(cd.creditToRisk*1000) / 1000,
				"roi":                round2(roi),
				"annualized_roi":     round2(annualizedROI),
				"put_spread_width":   round2(cd.put.width),
				"call_spread_width":  round2(cd.call.width),
				"min_volume":         float64(legsMinVolume),
				"days_to_expiry":     float64(cd.dte),
			},
		})
	}
	tracker.AddStep("Scoring", "Calculate and rank opportunities", len(likely), len(opps))

	result := topN(opps, 10)
	tracker.Finalize(len(result))
	return result, nil
}
