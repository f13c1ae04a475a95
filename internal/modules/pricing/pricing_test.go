package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/optionscan/internal/domain"
)

func TestPriceIntrinsicAtExpiry(t *testing.T) {
	assert.Equal(t, 5.0, Price(105, 100, 0, 0.05, 0.30, domain.Call))
	assert.Equal(t, 0.0, Price(95, 100, 0, 0.05, 0.30, domain.Call))
	assert.Equal(t, 5.0, Price(95, 100, 0, 0.05, 0.30, domain.Put))
	assert.Equal(t, 0.0, Price(105, 100, -0.1, 0.05, 0.30, domain.Put))
}

func TestPriceKnownValues(t *testing.T) {
	// Standard textbook case: S=100, K=105, T=30/365, r=5%, sigma=30%.
	tm := 30.0 / 365.0
	call := Price(100, 105, tm, 0.05, 0.30, domain.Call)
	put := Price(100, 95, tm, 0.05, 0.30, domain.Put)

	assert.InDelta(t, 1.686, call, 0.02)
	assert.InDelta(t, 1.313, put, 0.02)

	// Put-call parity at the same strike.
	c := Price(100, 100, tm, 0.05, 0.30, domain.Call)
	p := Price(100, 100, tm, 0.05, 0.30, domain.Put)
	parity := c - p - (100 - 100*math.Exp(-0.05*tm))
	assert.InDelta(t, 0.0, parity, 1e-9)
}

func TestDelta(t *testing.T) {
	tm := 30.0 / 365.0

	callDelta := Delta(100, 105, tm, 0.05, 0.30, domain.Call)
	putDelta := Delta(100, 95, tm, 0.05, 0.30, domain.Put)

	assert.Greater(t, callDelta, 0.0)
	assert.Less(t, callDelta, 0.5)
	assert.Less(t, putDelta, 0.0)
	assert.Greater(t, putDelta, -0.5)

	// Call delta minus put delta is exactly 1 at the same strike.
	c := Delta(100, 100, tm, 0.05, 0.30, domain.Call)
	p := Delta(100, 100, tm, 0.05, 0.30, domain.Put)
	assert.InDelta(t, 1.0, c-p, 1e-12)
}

func TestPriceAndDeltaZeroVol(t *testing.T) {
	// Zero volatility with time remaining collapses to intrinsic value
	// and the expiry step delta rather than dividing by zero.
	tm := 0.5
	assert.Equal(t, 0.0, Price(100, 100, tm, 0, 0, domain.Call))
	assert.Equal(t, 5.0, Price(105, 100, tm, 0, 0, domain.Call))
	assert.Equal(t, 5.0, Price(95, 100, tm, 0, 0, domain.Put))
	assert.False(t, math.IsNaN(Price(100, 100, tm, 0.05, -0.1, domain.Call)))

	assert.Equal(t, 0.0, Delta(100, 100, tm, 0, 0, domain.Call))
	assert.Equal(t, 1.0, Delta(105, 100, tm, 0, 0, domain.Call))
	assert.Equal(t, -1.0, Delta(95, 100, tm, 0, 0, domain.Put))
	assert.False(t, math.IsNaN(Delta(100, 100, tm, 0.05, -0.1, domain.Put)))
}

func TestDeltaAtExpiry(t *testing.T) {
	assert.Equal(t, 1.0, Delta(105, 100, 0, 0.05, 0.30, domain.Call))
	assert.Equal(t, 0.0, Delta(95, 100, 0, 0.05, 0.30, domain.Call))
	assert.Equal(t, -1.0, Delta(95, 100, 0, 0.05, 0.30, domain.Put))
	assert.Equal(t, 0.0, Delta(105, 100, 0, 0.05, 0.30, domain.Put))
	// At the money expires worthless on both sides.
	assert.Equal(t, 0.0, Delta(100, 100, 0, 0.05, 0.30, domain.Put))
}

func TestProbInRange(t *testing.T) {
	tm := 30.0 / 365.0

	prob := ProbInRange(95, 105, 100, 0.30, 0.05, tm)
	assert.Greater(t, prob, 0.3)
	assert.Less(t, prob, 0.7)

	// Full support sums to 1.
	assert.InDelta(t, 1.0, ProbInRange(0, math.Inf(1), 100, 0.30, 0.05, tm), 1e-12)

	// Complementary halves.
	above := ProbAbove(100, 100, 0.30, 0.05, tm)
	below := ProbBelow(100, 100, 0.30, 0.05, tm)
	assert.InDelta(t, 1.0, above+below, 1e-12)
}

func TestProbInRangeAtExpiry(t *testing.T) {
	assert.Equal(t, 1.0, ProbInRange(95, 105, 100, 0.30, 0.05, 0))
	assert.Equal(t, 0.0, ProbInRange(101, 105, 100, 0.30, 0.05, 0))
	// Bounds are strict.
	assert.Equal(t, 0.0, ProbInRange(100, 105, 100, 0.30, 0.05, 0))
}

func TestProbInRangeDegenerateVol(t *testing.T) {
	assert.Equal(t, 1.0, ProbInRange(95, 105, 100, 0, 0.05, 0.5))
	assert.Equal(t, 0.0, ProbInRange(105, 110, 100, 0, 0.05, 0.5))
}

func TestProbInRangeNarrowingWindow(t *testing.T) {
	tm := 45.0 / 365.0

	// Probability never grows as the window tightens around the spot.
	prev := 1.0
	for _, width := range []float64{50, 25, 10, 5, 1} {
		p := ProbInRange(100-width, 100+width, 100, 0.30, 0.05, tm)
		assert.LessOrEqual(t, p, prev, "width %v", width)
		assert.GreaterOrEqual(t, p, 0.0)
		prev = p
	}
}
