// Package payoff evaluates multi-leg positions at expiration: profit
// curves, breakeven points, and profit/loss extremes.
package payoff

import (
	"math"
	"time"

	"github.com/aristath/optionscan/internal/domain"
)

// At returns the per-share profit of the position at the given
// underlying price at expiration. Long legs pay intrinsic minus the
// premium paid; short legs pay premium received minus intrinsic.
func At(price float64, legs []domain.Leg) float64 {
	total := 0.0
	for _, leg := range legs {
		intrinsic := 0.0
		switch leg.Type {
		case domain.Call:
			intrinsic = math.Max(price-leg.Strike, 0)
		case domain.Put:
			intrinsic = math.Max(leg.Strike-price, 0)
		}

		qty := float64(leg.Quantity)
		if qty == 0 {
			qty = 1
		}

		if leg.Position == domain.Long {
			total += (intrinsic - leg.Premium) * qty
		} else {
			total += (leg.Premium - intrinsic) * qty
		}
	}
	return total
}

// Series evaluates the payoff at each price, rounded to cents.
func Series(prices []float64, legs []domain.Leg) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = round2(At(p, legs))
	}
	return out
}

// Breakevens finds the zero crossings of the payoff curve on a unit
// grid spanning the strikes plus a 20 point margin on each side, with
// linear interpolation between grid points.
func Breakevens(legs []domain.Leg) []float64 {
	if len(legs) == 0 {
		return nil
	}

	minK, maxK := strikeRange(legs)
	n := int(maxK - minK + 40)
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = minK - 20 + float64(i)
	}

	payoffs := Series(prices, legs)

	var breakevens []float64
	for i := 0; i < len(payoffs)-1; i++ {
		if payoffs[i]*payoffs[i+1] < 0 {
			frac := math.Abs(payoffs[i]) / (math.Abs(payoffs[i]) + math.Abs(payoffs[i+1]))
			be := prices[i] + (prices[i+1]-prices[i])*frac
			breakevens = append(breakevens, round2(be))
		}
	}
	return breakevens
}

// MaxProfit probes the payoff at zero, both strike extremes, and twice
// the highest strike. Flat tails make these the only candidates for a
// bounded position; unbounded upside shows up as the probe at 2x max.
func MaxProfit(legs []domain.Leg) float64 {
	minK, maxK := strikeRange(legs)
	payoffs := Series([]float64{0, minK, maxK, maxK * 2}, legs)
	best := payoffs[0]
	for _, p := range payoffs[1:] {
		if p > best {
			best = p
		}
	}
	return round2(best)
}

// MaxLoss probes the same points as MaxProfit and returns the worst
// outcome as a negative number.
func MaxLoss(legs []domain.Leg) float64 {
	minK, maxK := strikeRange(legs)
	payoffs := Series([]float64{0, minK, maxK, maxK * 2}, legs)
	worst := payoffs[0]
	for _, p := range payoffs[1:] {
		if p < worst {
			worst = p
		}
	}
	return round2(worst)
}

// Metrics is a mark-to-market snapshot of an existing position.
type Metrics struct {
	CurrentPnL     float64  `json:"current_pnl"`
	MaxProfit      float64  `json:"max_profit"`
	MaxLoss        float64  `json:"max_loss"`
	Breakeven      *float64 `json:"breakeven"`
	ROI            float64  `json:"roi"`
	ProbOfProfit   float64  `json:"prob_profit"`
	DaysToExpiry   *int     `json:"days_to_expiry"`
	PriceChangePct float64  `json:"price_change_pct"`
}

// Recalculate refreshes position metrics against the current underlying
// price. The probability estimate is a coarse distance-to-breakeven
// heuristic, not a model probability; it exists so stored positions can
// show a directionally useful number without a fresh chain fetch.
func Recalculate(legs []domain.Leg, currentPrice, originalPrice float64, now time.Time) Metrics {
	netCost := 0.0
	for _, leg := range legs {
		qty := float64(leg.Quantity)
		if qty == 0 {
			qty = 1
		}
		if leg.Position == domain.Long {
			netCost += leg.Premium * qty * 100
		} else {
			netCost -= leg.Premium * qty * 100
		}
	}

	currentPnL := round2(At(currentPrice, legs))
	breakevens := Breakevens(legs)
	maxProfit := MaxProfit(legs)
	maxLoss := MaxLoss(legs)

	var minDTE *int
	for _, leg := range legs {
		if leg.Expiration.IsZero() {
			continue
		}
		dte := domain.DaysToExpiry(leg.Expiration, now)
		if minDTE == nil || dte < *minDTE {
			d := dte
			minDTE = &d
		}
	}

	roi := 0.0
	if math.Abs(netCost) > 0 {
		roi = maxProfit / math.Abs(netCost) * 100
	}

	probProfit := 50.0
	if len(breakevens) == 1 && currentPrice > 0 {
		distance := (breakevens[0] - currentPrice) / currentPrice * 100
		if distance > 0 {
			probProfit = math.Max(20, 50-distance*2)
		} else {
			probProfit = math.Min(80, 50+math.Abs(distance)*2)
		}
	}

	priceChange := 0.0
	if originalPrice != 0 {
		priceChange = (currentPrice - originalPrice) / originalPrice * 100
	}

	m := Metrics{
		CurrentPnL:     currentPnL,
		MaxProfit:      maxProfit,
		MaxLoss:        maxLoss,
		ROI:            round2(roi),
		ProbOfProfit:   round2(probProfit),
		DaysToExpiry:   minDTE,
		PriceChangePct: round2(priceChange),
	}
	if len(breakevens) > 0 {
		m.Breakeven = &breakevens[0]
	}
	return m
}

func strikeRange(legs []domain.Leg) (float64, float64) {
	minK := legs[0].Strike
	maxK := legs[0].Strike
	for _, leg := range legs[1:] {
		if leg.Strike < minK {
			minK = leg.Strike
		}
		if leg.Strike > maxK {
			maxK = leg.Strike
		}
	}
	return minK, maxK
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
