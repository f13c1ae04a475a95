package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/pricing"
)

// BWBPut scans for broken wing butterfly puts, the bearish mirror of
// the BWB call: one long put above, two short puts at the middle, and
// one long put below, with the upper wing intentionally wider.
type BWBPut struct {
	base
}

// NewBWBPut creates the broken wing butterfly put scan engine.
func NewBWBPut(deps Deps, log zerolog.Logger) *BWBPut {
	return &BWBPut{base: newBase(
		"bwb_put",
		"Broken Wing Butterfly - Put",
		"Risk-defined neutral strategy with unbalanced wings using puts. Lower cost and higher probability than standard butterfly, with slight bearish bias.",
		3,
		"advanced",
		deps,
		log,
	)}
}

// DefaultCriteria returns the default BWB put filter criteria. The
// upper wing is the broken one here.
func (s *BWBPut) DefaultCriteria() map[string]float64 {
	return map[string]float64{
		"min_dte":             30,
		"max_dte":             60,
		"short_put_delta_min": 0.25,
		"short_put_delta_max": 0.40,
		"lower_wing_width":    5.0,
		"upper_wing_width":    8.0,
		"min_credit":          0.0,
		"max_debit":           2.0,
		"min_volume":          10,
		"min_prob_profit":     0.40,
		"prefer_credit":       1,
		// Scoring weights, must sum to 1.0
		"weight_roi":          0.20,
		"weight_pop":          0.35,
		"weight_risk_reward":  0.20,
		"weight_volume":       0.10,
		"weight_credit_bonus": 0.15,
	}
}

// Scan searches for BWB put candidates on the symbol. Like the BWB
// call it returns every qualifying butterfly sorted by score.
func (s *BWBPut) Scan(ctx context.Context, symbol string, criteria map[string]float64) ([]domain.Opportunity, error) {
	c := mergeCriteria(s.DefaultCriteria(), criteria)
	if err := validateButterfly(c, "short_put_delta_min", "short_put_delta_max"); err != nil {
		return nil, err
	}

	snap, tracker := s.openScan(ctx, symbol, c)
	if snap == nil {
		return []domain.Opportunity{}, nil
	}

	all := snap.Chain.All()
	tracker.AddStep("Raw Options", "Total options from API across all expirations", len(all), len(all))

	var inWindow []domain.OptionQuote
	for _, q := range all {
		if float64(q.DTE) >= c["min_dte"] && float64(q.DTE) <= c["max_dte"] {
			inWindow = append(inWindow, q)
		}
	}
	tracker.AddStep("DTE Filter",
		fmt.Sprintf("Options with %.0f-%.0f days to expiry", c["min_dte"], c["max_dte"]),
		len(all), len(inWindow))

	var puts []domain.OptionQuote
	for _, q := range inWindow {
		if q.Type == domain.Put {
			puts = append(puts, q)
		}
	}
	tracker.AddStep("PUT Filter", "Filter to PUT options only", len(inWindow), len(puts))

	minVolume := int(c["min_volume"])
	var shorts []domain.OptionQuote
	for _, q := range puts {
		absDelta := math.Abs(q.Delta)
		if absDelta >= c["short_put_delta_min"] && absDelta <= c["short_put_delta_max"] &&
			q.Volume >= minVolume && q.Strike < snap.Price {
			shorts = append(shorts, q)
		}
	}
	tracker.AddStep("Short Put Filter",
		fmt.Sprintf("Puts with delta %.2f-%.2f, volume >= %d, OTM", c["short_put_delta_min"], c["short_put_delta_max"], minVolume),
		len(puts), len(shorts))

	type combo struct {
		short domain.OptionQuote
		low   domain.OptionQuote
		high  domain.OptionQuote
	}
	var combos []combo
	for _, sp := range shorts {
		lowerWidth := snap.Price * c["lower_wing_width"] / 100
		upperWidth := snap.Price * c["upper_wing_width"] / 100

		low, lowOK := nearestStrike(puts, sp, sp.Strike-lowerWidth, minVolume, below)
		high, highOK := nearestStrike(puts, sp, sp.Strike+upperWidth, minVolume, above)
		if lowOK && highOK {
			combos = append(combos, combo{short: sp, low: low, high: high})
		}
	}
	tracker.AddStep("Wing Matching", "Matching lower and upper wing long puts to each short put", len(shorts), len(combos))

	var funded []combo
	for _, cb := range combos {
		net := cb.short.Premium*2 - cb.low.Premium - cb.high.Premium
		if net >= c["min_credit"] && -net <= c["max_debit"] {
			funded = append(funded, cb)
		}
	}
	tracker.AddStep("Credit/Debit Filter",
		fmt.Sprintf("Min credit >= %.2f, max debit <= %.2f", c["min_credit"], c["max_debit"]),
		len(combos), len(funded))

	type scored struct {
		combo
		net        float64
		maxProfit  float64
		maxLoss    float64
		lowerBE    float64
		upperBE    float64
		lowerWing  float64
		upperWing  float64
		pop        float64
		positionIV float64
	}
	var likely []scored
	for _, cb := range funded {
		t := float64(cb.short.DTE) / 365.0
		net := cb.short.Premium*2 - cb.low.Premium - cb.high.Premium

		lowerWing := cb.short.Strike - cb.low.Strike
		upperWing := cb.high.Strike - cb.short.Strike
		maxProfit := lowerWing + net
		maxLossLower := 0.0
		if net < 0 {
			maxLossLower = -net
		}
		maxLossUpper := upperWing - lowerWing - net
		maxLoss := math.Max(maxLossLower, maxLossUpper)

		lowerBE := cb.low.Strike + maxProfit
		upperBE := cb.high.Strike - maxLossUpper

		positionIV := (ivOr(cb.low.IV, snap.AvgIV) + ivOr(cb.short.IV, snap.AvgIV) + ivOr(cb.high.IV, snap.AvgIV)) / 3
		pop := pricing.ProbInRange(lowerBE, upperBE, snap.Price, positionIV, snap.Rate, t)

		if pop >= c["min_prob_profit"] {
			likely = append(likely, scored{
				combo: cb, net: net, maxProfit: maxProfit, maxLoss: maxLoss,
				lowerBE: lowerBE, upperBE: upperBE,
				lowerWing: lowerWing, upperWing: upperWing,
				pop: pop, positionIV: positionIV,
			})
		}
	}
	tracker.AddStep("Probability Filter",
		fmt.Sprintf("Probability of profit >= %.0f%%", c["min_prob_profit"]*100),
		len(funded), len(likely))

	var opps []domain.Opportunity
	for _, sc := range likely {
		t := float64(sc.short.DTE) / 365.0

		probMaxProfit := pricing.ProbInRange(sc.short.Strike*0.95, sc.short.Strike*1.05, snap.Price, sc.positionIV, snap.Rate, t)

		capital := sc.maxLoss
		roi := 0.0
		if capital > 0 {
			roi = sc.maxProfit / capital * 100
		}
		annualizedROI := 0.0
		if sc.short.DTE > 0 {
			annualizedROI = roi * 365 / float64(sc.short.DTE)
		}

		isCredit := sc.net > 0
		creditBonus := 0.0
		if isCredit && c["prefer_credit"] != 0 {
			creditBonus = 15
		}

		roiScore := clamp01(annualizedROI/100) * 100
		popScore := sc.pop * 100
		riskReward := 0.0
		if sc.maxLoss > 0 {
			riskReward = sc.maxProfit / sc.maxLoss
		}
		rrScore := clamp01(riskReward/2) * 100
		avgVolume := float64(sc.low.Volume+sc.short.Volume*2+sc.high.Volume) / 4
		volumeScore := clamp01(avgVolume/100) * 100

		score := roiScore*c["weight_roi"] +
			popScore*c["weight_pop"] +
			rrScore*c["weight_risk_reward"] +
			volumeScore*c["weight_volume"] +
			creditBonus*c["weight_credit_bonus"]

		creditFlag := 0.0
		if isCredit {
			creditFlag = 1
		}

		opps = append(opps, domain.Opportunity{
			Strategy: s.id,
			Symbol:   symbol,
			Score:    round2(score),
			Legs: []domain.Leg{
				{Type: domain.Put, Position: domain.Long, Strike: sc.low.Strike, Expiration: sc.low.Expiration, Premium: sc.low.Premium, Delta: sc.low.Delta, IV: sc.low.IV, Volume: sc.low.Volume, Quantity: 1},
				{Type: domain.Put, Position: domain.Short, Strike: sc.short.Strike, Expiration: sc.short.Expiration, Premium: sc.short.Premium, Delta: sc.short.Delta, IV: sc.short.IV, Volume: sc.short.Volume, Quantity: 2},
				{Type: domain.Put, Position: domain.Long, Strike: sc.high.Strike, Expiration: sc.high.Expiration, Premium: sc.high.Premium, Delta: sc.high.Delta, IV: sc.high.IV, Volume: sc.high.Volume, Quantity: 1},
			},
			NetCost:      round2(-sc.net),
			MaxProfit:    round2(sc.maxProfit),
			MaxLoss:      round2(sc.maxLoss),
			Breakevens:   []float64{round2(sc.lowerBE), round2(sc.upperBE)},
			ProbOfProfit: round2(sc.pop * 100),
			Metrics: map[string]float64{
				"net_credit_debit": round2(sc.net),
				"is_credit":        creditFlag,
				"lower_wing_width": round2(sc.lowerWing),
				"upper_wing_width": round2(sc.upperWing),
				"capital_required": round2(capital),
				"roi":              round2(roi),
				"annualized_roi":   round2(annualizedROI),
				"risk_reward":      round2(riskReward),
				"prob_max_profit":  round2(probMaxProfit * 100),
				"position_iv":      round2(sc.positionIV),
				"days_to_expiry":   float64(sc.short.DTE),
			},
		})
	}
	tracker.AddStep("Final Selection", "Scored and ranked opportunities", len(likely), len(opps))
	tracker.Finalize(len(opps))

	return topN(opps, 0), nil
}
