// Package pricing implements Black-Scholes option pricing and the
// lognormal range probabilities the strategy scoring depends on.
package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/optionscan/internal/domain"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Price returns the Black-Scholes value of a European option.
// At or past expiry, or with no volatility, it returns intrinsic value.
func Price(spot, strike, t, r, sigma float64, optType domain.OptionType) float64 {
	if t <= 0 || sigma <= 0 {
		if optType == domain.Call {
			return math.Max(spot-strike, 0)
		}
		return math.Max(strike-spot, 0)
	}

	d1 := (math.Log(spot/strike) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
	d2 := d1 - sigma*math.Sqrt(t)

	if optType == domain.Call {
		return spot*stdNormal.CDF(d1) - strike*math.Exp(-r*t)*stdNormal.CDF(d2)
	}
	return strike*math.Exp(-r*t)*stdNormal.CDF(-d2) - spot*stdNormal.CDF(-d1)
}

// Delta returns the Black-Scholes delta. At or past expiry, or with no
// volatility, it degrades to the step function: 1 (call) or -1 (put)
// when in the money, else 0.
func Delta(spot, strike, t, r, sigma float64, optType domain.OptionType) float64 {
	if t <= 0 || sigma <= 0 {
		if optType == domain.Call {
			if spot > strike {
				return 1.0
			}
			return 0.0
		}
		if spot < strike {
			return -1.0
		}
		return 0.0
	}

	d1 := (math.Log(spot/strike) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
	if optType == domain.Call {
		return stdNormal.CDF(d1)
	}
	return stdNormal.CDF(d1) - 1
}

// ProbInRange returns the risk-neutral probability that the underlying
// finishes strictly inside (low, high) at time t, under the lognormal
// terminal distribution. Pass math.Inf(1) for an unbounded upper side
// and any value <= 0 for an unbounded lower side.
func ProbInRange(low, high, spot, iv, r, t float64) float64 {
	if t <= 0 || iv <= 0 {
		if low < spot && spot < high {
			return 1.0
		}
		return 0.0
	}

	denom := iv * math.Sqrt(t)
	drift := (r - 0.5*iv*iv) * t

	d2Low := math.Inf(1)
	if low > 0 {
		d2Low = (math.Log(spot/low) + drift) / denom
	}

	d2High := math.Inf(-1)
	if !math.IsInf(high, 1) {
		d2High = (math.Log(spot/high) + drift) / denom
	}

	return cdf(d2Low) - cdf(d2High)
}

// ProbAbove returns the probability the underlying finishes above level.
func ProbAbove(level, spot, iv, r, t float64) float64 {
	return ProbInRange(level, math.Inf(1), spot, iv, r, t)
}

// ProbBelow returns the probability the underlying finishes below level.
func ProbBelow(level, spot, iv, r, t float64) float64 {
	return ProbInRange(0, level, spot, iv, r, t)
}

func cdf(x float64) float64 {
	if math.IsInf(x, 1) {
		return 1.0
	}
	if math.IsInf(x, -1) {
		return 0.0
	}
	return stdNormal.CDF(x)
}
