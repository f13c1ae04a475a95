package strategies

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/chain"
	"github.com/aristath/optionscan/internal/modules/payoff"
	"github.com/aristath/optionscan/internal/modules/pipeline"
)

// base provides common functionality for all strategies.
type base struct {
	id          string
	displayName string
	description string
	numLegs     int
	complexity  string
	deps        Deps
	parser      *chain.Parser
	log         zerolog.Logger
}

func newBase(id, displayName, description string, numLegs int, complexity string, deps Deps, log zerolog.Logger) base {
	l := log.With().Str("strategy", id).Logger()
	return base{
		id:          id,
		displayName: displayName,
		description: description,
		numLegs:     numLegs,
		complexity:  complexity,
		deps:        deps,
		parser:      chain.NewParser(l),
		log:         l,
	}
}

func (b *base) ID() string          { return b.id }
func (b *base) DisplayName() string { return b.displayName }
func (b *base) Description() string { return b.description }
func (b *base) NumLegs() int        { return b.numLegs }
func (b *base) Complexity() string  { return b.complexity }

// Payoff evaluates the position at each price using generic per-leg
// expiration arithmetic. Strategies with non-standard settlement
// override this.
func (b *base) Payoff(prices []float64, legs []domain.Leg) []float64 {
	return payoff.Series(prices, legs)
}

// snapshot is the market state one scan operates on.
type snapshot struct {
	Symbol string
	Price  float64
	Rate   float64
	AvgIV  float64
	Raw    []domain.RawOption
	Chain  domain.Chain
	Now    time.Time
}

// openScan gathers the underlying price, starts the funnel tracker,
// then fetches the rate and option chain. A nil snapshot means market
// data is unavailable and the scan should return empty: with no price
// there is no tracker either, while a failed or empty chain leaves a
// tracker already finalized at zero so the funnel records the aborted
// run.
func (b *base) openScan(ctx context.Context, symbol string, criteria map[string]float64) (*snapshot, *pipeline.Tracker) {
	price, err := b.deps.Provider.QuotePrice(ctx, symbol)
	if err != nil {
		b.log.Warn().Err(err).Str("symbol", symbol).Msg("Stock price unavailable")
		return nil, nil
	}
	if price <= 0 {
		return nil, nil
	}

	tracker := pipeline.NewTracker(b.deps.Pipeline, symbol, price, b.id, b.displayName, criteria)

	raw, err := b.deps.Provider.OptionsChain(ctx, symbol)
	if err != nil {
		b.log.Warn().Err(err).Str("symbol", symbol).Msg("Options chain unavailable")
		tracker.Finalize(0)
		return nil, tracker
	}
	if len(raw) == 0 {
		tracker.Finalize(0)
		return nil, tracker
	}

	now := domain.EasternNow()
	return &snapshot{
		Symbol: symbol,
		Price:  price,
		Rate:   b.deps.Provider.RiskFreeRate(ctx),
		AvgIV:  chain.AverageIV(raw),
		Raw:    raw,
		Chain:  b.parser.Parse(raw, now),
		Now:    now,
	}, tracker
}

// mergeCriteria overlays user criteria onto the defaults. Unknown keys
// pass through so strategies can accept optional tuning knobs.
func mergeCriteria(defaults, overrides map[string]float64) map[string]float64 {
	merged := make(map[string]float64, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// criterion returns the named value, falling back to def when absent.
func criterion(criteria map[string]float64, key string, def float64) float64 {
	if v, ok := criteria[key]; ok {
		return v
	}
	return def
}

// validateWeights checks that the named scoring weights sum to 1.0
// within a 0.01 tolerance.
func validateWeights(criteria map[string]float64, keys ...string) error {
	sum := 0.0
	for _, k := range keys {
		sum += criteria[k]
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// topN sorts opportunities by score descending and keeps the best n.
// n <= 0 keeps everything.
func topN(opps []domain.Opportunity, n int) []domain.Opportunity {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Score > opps[j].Score
	})
	if n > 0 && len(opps) > n {
		opps = opps[:n]
	}
	return opps
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
