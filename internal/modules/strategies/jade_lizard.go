package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/pricing"
)

// noUpsideSentinel marks an upside breakeven that does not exist
// because the collected credit exceeds the call spread width.
const noUpsideSentinel = 999999.99

// JadeLizard scans for jade lizards: a short OTM put plus a short OTM
// call spread. When the total credit exceeds the call spread width the
// position has no upside risk at all.
type JadeLizard struct {
	base
}

// NewJadeLizard creates the jade lizard scan engine.
func NewJadeLizard(deps Deps, log zerolog.Logger) *JadeLizard {
	return &JadeLizard{base: newBase(
		"jade_lizard",
		"Jade Lizard",
		"Neutral income strategy: Short put + short call spread. Collects credit with defined downside risk and minimal/no upside risk when structured properly.",
		3,
		"advanced",
		deps,
		log,
	)}
}

// DefaultCriteria returns the default jade lizard filter criteria.
// Spread widths are percentages of the stock price.
func (s *JadeLizard) DefaultCriteria() map[string]float64 {
	return map[string]float64{
		"min_dte":               30,
		"max_dte":               60,
		"put_delta_min":         0.15,
		"put_delta_max":         0.35,
		"short_call_delta_min":  0.15,
		"short_call_delta_max":  0.35,
		"spread_width_min":      2.0,
		"spread_width_max":      10.0,
		"min_credit":            0.50,
		"min_volume":            10,
		"max_spread_cost_ratio": 0.80,
		"prefer_no_upside_risk": 0,
		// Scoring weights, must sum to 1.0
		"weight_credit":     0.25,
		"weight_roc":        0.25,
		"weight_pop":        0.30,
		"weight_volume":     0.10,
		"weight_risk_bonus": 0.10,
	}
}

func (s *JadeLizard) validate(c map[string]float64) error {
	if c["min_dte"] < 7 {
		return fmt.Errorf("minimum DTE must be at least 7 days")
	}
	if c["max_dte"] < c["min_dte"] {
		return fmt.Errorf("maximum DTE must be greater than minimum DTE")
	}
	if !(0 < c["put_delta_min"] && c["put_delta_min"] < c["put_delta_max"] && c["put_delta_max"] <= 0.50) {
		return fmt.Errorf("put delta range must be between 0 and 0.50")
	}
	if !(0 < c["short_call_delta_min"] && c["short_call_delta_min"] < c["short_call_delta_max"] && c["short_call_delta_max"] <= 0.50) {
		return fmt.Errorf("short call delta range must be between 0 and 0.50")
	}
	if c["spread_width_min"] <= 0 || c["spread_width_max"] <= 0 {
		return fmt.Errorf("spread width percentages must be positive")
	}
	if c["spread_width_max"] < c["spread_width_min"] {
		return fmt.Errorf("max spread width must be greater than min spread width")
	}
	if c["min_credit"] <= 0 {
		return fmt.Errorf("minimum credit must be positive")
	}
	if c["min_volume"] < 1 {
		return fmt.Errorf("minimum volume must be at least 1")
	}
	if !(0 < c["max_spread_cost_ratio"] && c["max_spread_cost_ratio"] <= 1.0) {
		return fmt.Errorf("spread cost ratio must be between 0 and 1.0")
	}
	return validateWeights(c, "weight_credit", "weight_roc", "weight_pop", "weight_volume", "weight_risk_bonus")
}

// Scan searches for jade lizard candidates on the symbol.
func (s *JadeLizard) Scan(ctx context.Context, symbol string, criteria map[string]float64) ([]domain.Opportunity, error) {
	c := mergeCriteria(s.DefaultCriteria(), criteria)
	if err := s.validate(c); err != nil {
		return nil, err
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

	minVolume := int(c["min_volume"])
	var shortPuts, shortCalls []domain.OptionQuote
	for _, q := range inWindow {
		if q.Volume < minVolume {
			continue
		}
		absDelta := math.Abs(q.Delta)
		if q.Type == domain.Put && q.Strike < snap.Price &&
			absDelta >= c["put_delta_min"] && absDelta <= c["put_delta_max"] {
			shortPuts = append(shortPuts, q)
		} else if q.Type == domain.Call && q.Strike > snap.Price &&
			absDelta >= c["short_call_delta_min"] && absDelta <= c["short_call_delta_max"] {
			shortCalls = append(shortCalls, q)
		}
	}
	tracker.AddStep("Short Put Filter",
		fmt.Sprintf("OTM puts with delta %.2f-%.2f, volume >= %d", c["put_delta_min"], c["put_delta_max"], minVolume),
		len(inWindow), len(shortPuts))
	tracker.AddStep("Short Call Filter",
		fmt.Sprintf("OTM calls with delta %.2f-%.2f, volume >= %d", c["short_call_delta_min"], c["short_call_delta_max"], minVolume),
		len(inWindow), len(shortCalls))

	type combo struct {
		put       domain.OptionQuote
		shortCall domain.OptionQuote
		longCall  domain.OptionQuote
	}
	potential := 0
	var valid []combo
	for _, put := range shortPuts {
		for _, sc := range shortCalls {
			if !put.Expiration.Equal(sc.Expiration) {
				continue
			}
			potential++

			minLongStrike := sc.Strike + snap.Price*c["spread_width_min"]/100
			maxLongStrike := sc.Strike + snap.Price*c["spread_width_max"]/100
			for _, lc := range inWindow {
				if lc.Type == domain.Call &&
					lc.Expiration.Equal(sc.Expiration) &&
					lc.Strike >= minLongStrike && lc.Strike <= maxLongStrike &&
					lc.Volume >= minVolume {
					valid = append(valid, combo{put: put, shortCall: sc, longCall: lc})
				}
			}
		}
	}
	tracker.AddStep("Long Call Matching",
		fmt.Sprintf("Call spread width %.1f-%.1f%% of stock price", c["spread_width_min"], c["spread_width_max"]),
		potential, len(valid))

	var funded []combo
	for _, cb := range valid {
		credit := cb.put.Premium + cb.shortCall.Premium - cb.longCall.Premium
		if credit >= c["min_credit"] {
			funded = append(funded, cb)
		}
	}
	tracker.AddStep("Credit Filter", fmt.Sprintf("Net credit >= $%.2f", c["min_credit"]), len(valid), len(funded))

	var affordable []combo
	for _, cb := range funded {
		if cb.shortCall.Premium > 0 && cb.longCall.Premium/cb.shortCall.Premium <= c["max_spread_cost_ratio"] {
			affordable = append(affordable, cb)
		}
	}
	tracker.AddStep("Spread Cost Ratio",
		fmt.Sprintf("Long call cost <= %.0f%% of short call", c["max_spread_cost_ratio"]*100),
		len(funded), len(affordable))

	var opps []domain.Opportunity
	for _, cb := range affordable {
		dte := cb.put.DTE
		t := float64(dte) / 365.0

		totalCredit := cb.put.Premium + cb.shortCall.Premium - cb.longCall.Premium
		spreadWidth := cb.longCall.Strike - cb.shortCall.Strike
		maxUpsideLoss := spreadWidth - totalCredit
		noUpsideRisk := maxUpsideLoss <= 0

		if c["prefer_no_upside_risk"] != 0 && !noUpsideRisk {
			continue
		}

		maxProfit := totalCredit
		maxDownsideLoss := cb.put.Strike - totalCredit
		downBE := cb.put.Strike - totalCredit
		upBE := noUpsideSentinel
		if !noUpsideRisk {
			upBE = cb.shortCall.Strike + totalCredit
		}

		capital := cb.put.Strike - totalCredit
		roc := 0.0
		if capital > 0 {
			roc = totalCredit / capital * 100
		}
		annualizedROC := 0.0
		if dte > 0 {
			annualizedROC = roc * 365 / float64(dte)
		}

		positionIV := (ivOr(cb.put.IV, snap.AvgIV) + ivOr(cb.shortCall.IV, snap.AvgIV) + ivOr(cb.longCall.IV, snap.AvgIV)) / 3

		probMaxProfit := pricing.ProbInRange(cb.put.Strike, cb.shortCall.Strike, snap.Price, positionIV, snap.Rate, t)
		probAbovePutBE := 1 - pricing.ProbBelow(downBE, snap.Price, positionIV, snap.Rate, t)
		pop := probAbovePutBE
		if !noUpsideRisk {
			pop = probAbovePutBE * pricing.ProbBelow(upBE, snap.Price, positionIV, snap.Rate, t)
		}

		creditScore := clamp01(totalCredit/5) * 100
		rocScore := clamp01(annualizedROC/50) * 100
		popScore := pop * 100
		riskBonus := 0.0
		if noUpsideRisk {
			riskBonus = 20
		}
		avgVolume := float64(cb.put.Volume+cb.shortCall.Volume+cb.longCall.Volume) / 3
		volumeScore := clamp01(avgVolume/100) * 100

		score := creditScore*c["weight_credit"] +
			rocScore*c["weight_roc"] +
			popScore*c["weight_pop"] +
			volumeScore*c["weight_volume"] +
			riskBonus*c["weight_risk_bonus"]

		maxLoss := maxDownsideLoss
		reportedUpsideLoss := 0.0
		if !noUpsideRisk {
			reportedUpsideLoss = maxUpsideLoss
			if maxUpsideLoss > maxLoss {
				maxLoss = maxUpsideLoss
			}
		}

		breakevens := []float64{round2(downBE)}
		if !noUpsideRisk {
			breakevens = append(breakevens, round2(upBE))
		}

		noRiskFlag := 0.0
		if noUpsideRisk {
			noRiskFlag = 1
		}

		opps = append(opps, domain.Opportunity{
			Strategy: s.id,
			Symbol:   symbol,
			Score:    round2(score),
			Legs: []domain.Leg{
				{Type: domain.Put, Position: domain.Short, Strike: cb.put.Strike, Expiration: cb.put.Expiration, Premium: cb.put.Premium, Delta: cb.put.Delta, IV: cb.put.IV, Volume: cb.put.Volume, Quantity: 1},
				{Type: domain.Call, Position: domain.Short, Strike: cb.shortCall.Strike, Expiration: cb.shortCall.Expiration, Premium: cb.shortCall.Premium, Delta: cb.shortCall.Delta, IV: cb.shortCall.IV, Volume: cb.shortCall.Volume, Quantity: 1},
				{Type: domain.Call, Position: domain.Long, Strike: cb.longCall.Strike, Expiration: cb.longCall.Expiration, Premium: cb.longCall.Premium, Delta: cb.longCall.Delta, IV: cb.longCall.IV, Volume: cb.longCall.Volume, Quantity: 1},
			},
			NetCost:      round2(-totalCredit),
			MaxProfit:    round2(maxProfit),
			MaxLoss:      round2(maxLoss),
			Breakevens:   breakevens,
			ProbOfProfit: round2(pop * 100),
			Metrics: map[string]float64{
				"total_credit":      round2(totalCredit),
				"call_spread_width": round2(spreadWidth),
				"no_upside_risk":    noRiskFlag,
				"max_upside_loss":   round2(reportedUpsideLoss),
				"max_downside_loss": round2(maxDownsideLoss),
				"capital_required":  round2(capital),
				"roi":               round2(roc),
				"annualized_roi":    round2(annualizedROC),
				"prob_max_profit":   round2(probMaxProfit * 100),
				"risk_reward":       round2(maxProfit / math.Max(maxDownsideLoss, 0.01)),
				"days_to_expiry":    float64(dte),
			},
		})
	}
	tracker.AddStep("Profitability Filter", "Valid opportunities with positive metrics", len(affordable), len(opps))

	finalCount := len(opps)
	if finalCount > 10 {
		finalCount = 10
	}
	tracker.AddStep("Final Selection", "Top 10 opportunities by score", len(opps), finalCount)
	tracker.Finalize(finalCount)

	return topN(opps, 10), nil
}

func ivOr(iv, fallback float64) float64 {
	if iv > 0 {
		return iv
	}
	return fallback
}
