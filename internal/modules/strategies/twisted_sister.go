package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/pricing"
)

// TwistedSister scans for the mirrored jade lizard: a short OTM call
// plus a short OTM put spread. When the total credit exceeds the put
// spread width the position has no downside risk.
type TwistedSister struct {
	base
}

// NewTwistedSister creates the twisted sister scan engine.
func NewTwistedSister(deps Deps, log zerolog.Logger) *TwistedSister {
	return &TwistedSister{base: newBase(
		"twisted_sister",
		"Twisted Sister",
		"Neutral income strategy: Short call + short put spread. Collects credit with defined upside risk and minimal/no downside risk when structured properly.",
		3,
		"advanced",
		deps,
		log,
	)}
}

// DefaultCriteria returns the default twisted sister filter criteria.
func (s *TwistedSister) DefaultCriteria() map[string]float64 {
	return map[string]float64{
		"min_dte":                 30,
		"max_dte":                 60,
		"call_delta_min":          0.15,
		"call_delta_max":          0.35,
		"short_put_delta_min":     0.15,
		"short_put_delta_max":     0.35,
		"spread_width_min":        2.0,
		"spread_width_max":        10.0,
		"min_credit":              0.50,
		"min_volume":              10,
		"max_spread_cost_ratio":   0.80,
		"prefer_no_downside_risk": 0,
		// Scoring weights, must sum to 1.0
		"weight_credit":     0.25,
		"weight_roc":        0.25,
		"weight_pop":        0.30,
		"weight_volume":     0.10,
		"weight_risk_bonus": 0.10,
	}
}

func (s *TwistedSister) validate(c map[string]float64) error {
	if c["min_dte"] < 7 {
		return fmt.Errorf("minimum DTE must be at least 7 days")
	}
	if c["max_dte"] < c["min_dte"] {
		return fmt.Errorf("maximum DTE must be greater than minimum DTE")
	}
	if !(0 < c["call_delta_min"] && c["call_delta_min"] < c["call_delta_max"] && c["call_delta_max"] <= 0.50) {
		return fmt.Errorf("call delta range must be between 0 and 0.50")
	}
	if !(0 < c["short_put_delta_min"] && c["short_put_delta_min"] < c["short_put_delta_max"] && c["short_put_delta_max"] <= 0.50) {
		return fmt.Errorf("short put delta range must be between 0 and 0.50")
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

// Scan searches for twisted sister candidates on the symbol.
func (s *TwistedSister) Scan(ctx context.Context, symbol string, criteria map[string]float64) ([]domain.Opportunity, error) {
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
	var shortCalls, shortPuts []domain.OptionQuote
	for _, q := range inWindow {
		if q.Volume < minVolume {
			continue
		}
		absDelta := math.Abs(q.Delta)
		if q.Type == domain.Call && q.Strike > snap.Price &&
			absDelta >= c["call_delta_min"] && absDelta <= c["call_delta_max"] {
			shortCalls = append(shortCalls, q)
		} else if q.Type == domain.Put && q.Strike < snap.Price &&
			absDelta >= c["short_put_delta_min"] && absDelta <= c["short_put_delta_max"] {
			shortPuts = append(shortPuts, q)
		}
	}
	tracker.AddStep("Short Call Filter",
		fmt.Sprintf("OTM calls with delta %.2f-%.2f", c["call_delta_min"], c["call_delta_max"]),
		len(inWindow), len(shortCalls))
	tracker.AddStep("Short Put Filter",
		fmt.Sprintf("OTM puts with delta %.2f-%.2f", c["short_put_delta_min"], c["short_put_delta_max"]),
		len(inWindow), len(shortPuts))

	type combo struct {
		call     domain.OptionQuote
		shortPut domain.OptionQuote
		longPut  domain.OptionQuote
	}
	potential := 0
	var valid []combo
	for _, call := range shortCalls {
		for _, sp := range shortPuts {
			if !call.Expiration.Equal(sp.Expiration) {
				continue
			}
			potential++

			maxLongStrike := sp.Strike - snap.Price*c["spread_width_min"]/100
			minLongStrike := sp.Strike - snap.Price*c["spread_width_max"]/100
			for _, lp := range inWindow {
				if lp.Type == domain.Put &&
					lp.Expiration.Equal(sp.Expiration) &&
					lp.Strike >= minLongStrike && lp.Strike <= maxLongStrike &&
					lp.Volume >= minVolume {
					valid = append(valid, combo{call: call, shortPut: sp, longPut: lp})
				}
			}
		}
	}
	tracker.AddStep("Long Put Matching",
		fmt.Sprintf("Put spread width %.1f-%.1f%% of stock", c["spread_width_min"], c["spread_width_max"]),
		potential, len(valid))

	var funded []combo
	for _, cb := range valid {
		credit := cb.call.Premium + cb.shortPut.Premium - cb.longPut.Premium
		if credit >= c["min_credit"] {
			funded = append(funded, cb)
		}
	}
	tracker.AddStep("Credit Filter", fmt.Sprintf("Net credit >= $%.2f", c["min_credit"]), len(valid), len(funded))

	var affordable []combo
	for _, cb := range funded {
		if cb.shortPut.Premium > 0 && cb.longPut.Premium/cb.shortPut.Premium <= c["max_spread_cost_ratio"] {
			affordable = append(affordable, cb)
		}
	}
	tracker.AddStep("Spread Cost Ratio",
		fmt.Sprintf("Long put cost <= %.0f%% of short put", c["max_spread_cost_ratio"]*100),
		len(funded), len(affordable))

	var opps []domain.Opportunity
	for _, cb := range affordable {
		dte := cb.call.DTE
		t := float64(dte) / 365.0

		totalCredit := cb.call.Premium + cb.shortPut.Premium - cb.longPut.Premium
		spreadWidth := cb.shortPut.Strike - cb.longPut.Strike
		maxDownsideLoss := spreadWidth - totalCredit
		noDownsideRisk := maxDownsideLoss <= 0

		if c["prefer_no_downside_risk"] != 0 && !noDownsideRisk {
			continue
		}

		maxProfit := totalCredit
		// A naked short call caps nothing above; the sentinel stands in
		// for unbounded upside loss.
		maxUpsideLoss := noUpsideSentinel

		upBE := cb.call.Strike + totalCredit
		downBE := 0.0
		if !noDownsideRisk {
			downBE = cb.shortPut.Strike - totalCredit
		}

		capital := spreadWidth
		roc := 0.0
		if capital > 0 {
			roc = totalCredit / capital * 100
		}
		annualizedROC := 0.0
		if dte > 0 {
			annualizedROC = roc * 365 / float64(dte)
		}

		positionIV := (ivOr(cb.call.IV, snap.AvgIV) + ivOr(cb.shortPut.IV, snap.AvgIV) + ivOr(cb.longPut.IV, snap.AvgIV)) / 3

		probMaxProfit := pricing.ProbInRange(cb.shortPut.Strike, cb.call.Strike, snap.Price, positionIV, snap.Rate, t)
		probBelowCallBE := pricing.ProbBelow(upBE, snap.Price, positionIV, snap.Rate, t)
		pop := probBelowCallBE
		if !noDownsideRisk {
			pop = probBelowCallBE * (1 - pricing.ProbBelow(downBE, snap.Price, positionIV, snap.Rate, t))
		}

		creditScore := clamp01(totalCredit/5) * 100
		rocScore := clamp01(annualizedROC/50) * 100
		popScore := pop * 100
		riskBonus := 0.0
		if noDownsideRisk {
			riskBonus = 20
		}
		avgVolume := float64(cb.call.Volume+cb.shortPut.Volume+cb.longPut.Volume) / 3
		volumeScore := clamp01(avgVolume/100) * 100

		score := creditScore*c["weight_credit"] +
			rocScore*c["weight_roc"] +
			popScore*c["weight_pop"] +
			volumeScore*c["weight_volume"] +
			riskBonus*c["weight_risk_bonus"]

		maxLoss := maxUpsideLoss
		reportedDownsideLoss := 0.0
		if !noDownsideRisk {
			reportedDownsideLoss = maxDownsideLoss
		}

		breakevens := []float64{round2(upBE)}
		if !noDownsideRisk {
			breakevens = append([]float64{round2(downBE)}, breakevens...)
		}

		noRiskFlag := 0.0
		if noDownsideRisk {
			noRiskFlag = 1
		}

		rrDenom := 0.01
		if !noDownsideRisk {
			rrDenom = math.Max(maxDownsideLoss, 0.01)
		}

		opps = append(opps, domain.Opportunity{
			Strategy: s.id,
			Symbol:   symbol,
			Score:    round2(score),
			Legs: []domain.Leg{
				{Type: domain.Call, Position: domain.Short, Strike: cb.call.Strike, Expiration: cb.call.Expiration, Premium: cb.call.Premium, Delta: cb.call.Delta, IV: cb.call.IV, Volume: cb.call.Volume, Quantity: 1},
				{Type: domain.Put, Position: domain.Short, Strike: cb.shortPut.Strike, Expiration: cb.shortPut.Expiration, Premium: cb.shortPut.Premium, Delta: cb.shortPut.Delta, IV: cb.shortPut.IV, Volume: cb.shortPut.Volume, Quantity: 1},
				{Type: domain.Put, Position: domain.Long, Strike: cb.longPut.Strike, Expiration: cb.longPut.Expiration, Premium: cb.longPut.Premium, Delta: cb.longPut.Delta, IV: cb.longPut.IV, Volume: cb.longPut.Volume, Quantity: 1},
			},
			NetCost:      round2(-totalCredit),
			MaxProfit:    round2(maxProfit),
			MaxLoss:      round2(maxLoss),
			Breakevens:   breakevens,
			ProbOfProfit: round2(pop * 100),
			Metrics: map[string]float64{
				"total_credit":      round2(totalCredit),
				"put_spread_width":  round2(spreadWidth),
				"no_downside_risk":  noRiskFlag,
				"max_upside_loss":   round2(maxUpsideLoss),
				"max_downside_loss": round2(reportedDownsideLoss),
				"capital_required":  round2(capital),
				"roi":               round2(roc),
				"annualized_roi":    round2(annualizedROC),
				"prob_max_profit":   round2(probMaxProfit * 100),
				"risk_reward":       round2(maxProfit / rrDenom),
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
