package strategies

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/optionscan/internal/domain"
	"github.com/aristath/optionscan/internal/modules/pipeline"
)

// stubProvider is a canned MarketDataProvider for scan tests.
type stubProvider struct {
	price    float64
	priceErr error
	rate     float64
	raw      []domain.RawOption
	chainErr error
}

func (p *stubProvider) QuotePrice(_ context.Context, _ string) (float64, error) {
	return p.price, p.priceErr
}

func (p *stubProvider) RiskFreeRate(_ context.Context) float64 {
	return p.rate
}

func (p *stubProvider) OptionsChain(_ context.Context, _ string) ([]domain.RawOption, error) {
	return p.raw, p.chainErr
}

// rawQuote builds a provider record with symmetric bid/ask so the
// parsed premium equals the given value. dteOut is days from today;
// expiries sit at midnight, so intraday the parsed DTE reads dteOut-1.
func rawQuote(optType string, strike float64, dteOut int, premium, delta float64, volume int) domain.RawOption {
	exp := domain.EasternNow().AddDate(0, 0, dteOut).Format("2006-01-02")
	return domain.RawOption{
		ContractID: fmt.Sprintf("TEST%s%s%.0f", exp, optType, strike),
		Symbol:     "TEST",
		Expiration: exp,
		Strike:     fmt.Sprintf("%.2f", strike),
		Type:       optType,
		Bid:        fmt.Sprintf("%.2f", premium),
		Ask:        fmt.Sprintf("%.2f", premium),
		Volume:     fmt.Sprintf("%d", volume),
		OpenInt:    "100",
		IV:         "0.20",
		Delta:      fmt.Sprintf("%.2f", delta),
	}
}

func testDeps(p domain.MarketDataProvider) Deps {
	return Deps{Provider: p, Pipeline: pipeline.NewStore()}
}

func TestRegistry(t *testing.T) {
	reg := NewPopulatedRegistry(testDeps(&stubProvider{}), zerolog.Nop())

	all := reg.All()
	assert.Len(t, all, 8)

	s, err := reg.Get("pmcc")
	require.NoError(t, err)
	assert.Equal(t, "pmcc", s.ID())
	assert.Equal(t, 2, s.NumLegs())

	_, err = reg.Get("covered_strangle")
	assert.Error(t, err)

	infos := reg.Infos()
	require.Len(t, infos, 8)
	for _, info := range infos {
		assert.NotEmpty(t, info.DisplayName)
		assert.NotEmpty(t, info.Complexity)
		assert.NotEmpty(t, info.Defaults)
	}
	// sorted by id
	for i := 1; i < len(infos); i++ {
		assert.Less(t, infos[i-1].ID, infos[i].ID)
	}
}

func TestScanInvalidCriteria(t *testing.T) {
	// A broken weight sum must fail fast for every strategy, before
	// any market data is touched.
	badWeight := map[string]map[string]float64{
		"pmcc":           {"weight_roi": 5},
		"pmcp":           {"weight_roi": 5},
		"synthetic_long": {"weight_cost": 5},
		"jade_lizard":    {"weight_credit": 5},
		"twisted_sister": {"weight_credit": 5},
		"bwb_call":       {"weight_roi": 5},
		"bwb_put":        {"weight_roi": 5},
		"iron_condor":    {"weight_pop": 5},
	}

	provider := &stubProvider{priceErr: errors.New("must not be called")}
	reg := NewPopulatedRegistry(testDeps(provider), zerolog.Nop())

	for _, s := range reg.All() {
		t.Run(s.ID(), func(t *testing.T) {
			criteria, ok := badWeight[s.ID()]
			require.True(t, ok, "missing bad criteria for %s", s.ID())

			_, err := s.Scan(context.Background(), "TEST", criteria)
			assert.ErrorContains(t, err, "weights must sum to 1.0")
		})
	}
}

func TestScanUnavailableData(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{"quote error", &stubProvider{priceErr: errors.New("rate limited")}},
		{"zero price", &stubProvider{price: 0}},
		{"chain error", &stubProvider{price: 100, chainErr: errors.New("rate limited")}},
		{"empty chain", &stubProvider{price: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewPopulatedRegistry(testDeps(tt.provider), zerolog.Nop())
			for _, s := range reg.All() {
				opps, err := s.Scan(context.Background(), "TEST", nil)
				require.NoError(t, err, s.ID())
				assert.Empty(t, opps, s.ID())
			}
		})
	}
}

func TestScanAbortedChainPublishesFunnel(t *testing.T) {
	// A scan that gets a price but no usable chain still publishes a
	// finalized zero-output funnel instead of leaving a stale report
	// in the slot.
	for _, tt := range []struct {
		name     string
		provider *stubProvider
	}{
		{"chain error", &stubProvider{price: 100, chainErr: errors.New("rate limited")}},
		{"empty chain", &stubProvider{price: 100}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(tt.provider)
			s := NewIronCondor(deps, zerolog.Nop())

			opps, err := s.Scan(context.Background(), "TEST", nil)
			require.NoError(t, err)
			assert.Empty(t, opps)

			report := testReport(t, deps.Pipeline)
			assert.Equal(t, "iron_condor", report.Strategy)
			assert.Equal(t, 100.0, report.StockPrice)
			assert.Equal(t, 0, report.Summary.FinalOutput)
		})
	}

	// With no price there is nothing to track.
	deps := testDeps(&stubProvider{priceErr: errors.New("rate limited")})
	s := NewPMCC(deps, zerolog.Nop())
	opps, err := s.Scan(context.Background(), "TEST", nil)
	require.NoError(t, err)
	assert.Empty(t, opps)
	assert.Nil(t, deps.Pipeline.Latest())
}

func TestPMCCScan(t *testing.T) {
	provider := &stubProvider{
		price: 100,
		rate:  0.04,
		raw: []domain.RawOption{
			rawQuote("call", 90, 200, 13.00, 0.75, 100),
			rawQuote("call", 105, 45, 2.00, 0.30, 100),
			// Noise: OTM long candidate, too-short long DTE
			rawQuote("call", 110, 200, 3.00, 0.25, 100),
			rawQuote("call", 90, 45, 11.00, 0.80, 100),
		},
	}
	s := NewPMCC(testDeps(provider), zerolog.Nop())

	opps, err := s.Scan(context.Background(), "TEST", nil)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "pmcc", opp.Strategy)
	require.Len(t, opp.Legs, 2)
	assert.Equal(t, domain.Long, opp.Legs[0].Position)
	assert.Equal(t, 90.0, opp.Legs[0].Strike)
	assert.Equal(t, domain.Short, opp.Legs[1].Position)
	assert.Equal(t, 105.0, opp.Legs[1].Strike)

	// net debit 13 - 2 = 11, max profit (105-90) - 11 = 4
	assert.InDelta(t, 11.0, opp.NetCost, 1e-9)
	assert.InDelta(t, 4.0, opp.MaxProfit, 1e-9)
	assert.InDelta(t, 11.0, opp.MaxLoss, 1e-9)
	require.Len(t, opp.Breakevens, 1)
	assert.InDelta(t, 101.0, opp.Breakevens[0], 1e-9)
	assert.InDelta(t, 70.0, opp.ProbOfProfit, 1e-9)
	assert.Equal(t, 44.0, opp.Metrics["days_to_expiry"])
	assert.Equal(t, 199.0, opp.Metrics["long_days_to_expiry"])
}

func TestSyntheticLongScan(t *testing.T) {
	provider := &stubProvider{
		price: 100,
		rate:  0.04,
		raw: []domain.RawOption{
			rawQuote("call", 100, 45, 5.00, 0.50, 50),
			rawQuote("put", 100, 45, 4.40, -0.50, 50),
			// Unpaired strike, ignored
			rawQuote("call", 120, 45, 0.50, 0.10, 50),
		},
	}
	s := NewSyntheticLong(testDeps(provider), zerolog.Nop())

	opps, err := s.Scan(context.Background(), "TEST", nil)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "synthetic_long", opp.Strategy)
	assert.InDelta(t, 0.60, opp.NetCost, 1e-9)
	assert.Equal(t, 999999.0, opp.MaxProfit)
	assert.InDelta(t, 100.60, opp.MaxLoss, 1e-9)
	require.Len(t, opp.Breakevens, 1)
	assert.InDelta(t, 100.60, opp.Breakevens[0], 1e-9)
	assert.InDelta(t, 1.0, opp.Metrics["combined_delta"], 1e-9)
}

func TestIronCondorScan(t *testing.T) {
	provider := &stubProvider{
		price: 100,
		rate:  0.04,
		raw: []domain.RawOption{
			rawQuote("put", 90, 45, 1.80, -0.20, 50),
			rawQuote("put", 85, 45, 0.90, -0.10, 50),
			rawQuote("call", 110, 45, 1.80, 0.20, 50),
			rawQuote("call", 115, 45, 0.90, 0.10, 50),
		},
	}
	s := NewIronCondor(testDeps(provider), zerolog.Nop())

	opps, err := s.Scan(context.Background(), "TEST", nil)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "iron_condor", opp.Strategy)
	require.Len(t, opp.Legs, 4)
	assert.Equal(t, domain.Put, opp.Legs[0].Type)
	assert.Equal(t, domain.Short, opp.Legs[0].Position)
	assert.Equal(t, 90.0, opp.Legs[0].Strike)
	assert.Equal(t, domain.Call, opp.Legs[3].Type)
	assert.Equal(t, domain.Long, opp.Legs[3].Position)
	assert.Equal(t, 115.0, opp.Legs[3].Strike)

	// total credit 0.90 + 0.90 = 1.80, widest wing 5.00
	assert.InDelta(t, -1.80, opp.NetCost, 1e-9)
	assert.InDelta(t, 1.80, opp.MaxProfit, 1e-9)
	assert.InDelta(t, 3.20, opp.MaxLoss, 1e-9)
	require.Len(t, opp.Breakevens, 2)
	assert.InDelta(t, 88.20, opp.Breakevens[0], 1e-9)
	assert.InDelta(t, 111.80, opp.Breakevens[1], 1e-9)
	assert.Greater(t, opp.ProbOfProfit, 45.0)
	assert.InDelta(t, 0.36, opp.Metrics["credit_to_risk"], 1e-9)

	// Funnel report is published for the scan
	report := testReport(t, s.deps.Pipeline)
	assert.Equal(t, "iron_condor", report.Strategy)
	assert.Equal(t, 1, report.Summary.FinalOutput)
}

func TestIronCondorWeightShiftFavorsHighPOP(t *testing.T) {
	// Two condors survive: the 95/90 put spread gives more credit
	// (2.40 against a 5-wide wing), the 90/85 put spread sits further
	// from the money and keeps a wider profit range. The 95/85 combo
	// exceeds the per-contract risk cap and drops out.
	provider := &stubProvider{
		price: 100,
		rate:  0.04,
		raw: []domain.RawOption{
			rawQuote("put", 95, 45, 2.60, -0.28, 50),
			rawQuote("put", 90, 45, 1.20, -0.20, 50),
			rawQuote("put", 85, 45, 0.60, -0.10, 50),
			rawQuote("call", 110, 45, 1.40, 0.20, 50),
			rawQuote("call", 115, 45, 0.40, 0.10, 50),
		},
	}
	s := NewIronCondor(testDeps(provider), zerolog.Nop())

	opps, err := s.Scan(context.Background(), "TEST", nil)
	require.NoError(t, err)
	require.Len(t, opps, 2)

	// With default weights the richer credit-to-risk condor ranks first.
	assert.Equal(t, 95.0, opps[0].Legs[0].Strike)
	assert.Equal(t, 90.0, opps[1].Legs[0].Strike)
	assert.Greater(t, opps[1].ProbOfProfit, opps[0].ProbOfProfit)

	// Moving weight from credit-to-risk onto probability of profit
	// must promote the higher-POP condor, never demote it.
	shifted, err := s.Scan(context.Background(), "TEST", map[string]float64{
		"weight_credit_to_risk": 0.05,
		"weight_pop":            0.55,
	})
	require.NoError(t, err)
	require.Len(t, shifted, 2)
	assert.Equal(t, 90.0, shifted[0].Legs[0].Strike)
	assert.Greater(t, shifted[0].ProbOfProfit, shifted[1].ProbOfProfit)
}

func testReport(t *testing.T, store *pipeline.Store) *pipeline.Report {
	t.Helper()
	report := store.Latest()
	require.NotNil(t, report)
	return report
}

func TestBWBCallScan(t *testing.T) {
	provider := &stubProvider{
		price: 100,
		rate:  0.04,
		raw: []domain.RawOption{
			// short body at 105, wings near 97 and 110
			rawQuote("call", 105, 45, 4.00, 0.30, 50),
			rawQuote("call", 97, 45, 6.00, 0.60, 50),
			rawQuote("call", 110, 45, 1.20, 0.15, 50),
		},
	}
	s := NewBWBCall(testDeps(provider), zerolog.Nop())

	// The narrow profit band sits below the default probability floor,
	// so the floor is relaxed to exercise the rest of the funnel.
	opps, err := s.Scan(context.Background(), "TEST", map[string]float64{"min_prob_profit": 0})
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	require.Len(t, opp.Legs, 3)
	assert.Equal(t, 2, opp.Legs[1].Quantity)

	// net = 2*4.00 - 6.00 - 1.20 = 0.80 credit
	assert.InDelta(t, -0.80, opp.NetCost, 1e-9)
	// upper wing 5, lower wing 8: max profit 5 + 0.80 = 5.80
	assert.InDelta(t, 5.80, opp.MaxProfit, 1e-9)
	// lower-side loss 8 - 5 - 0.80 = 2.20; no upper-side loss on a credit
	assert.InDelta(t, 2.20, opp.MaxLoss, 1e-9)
	require.Len(t, opp.Breakevens, 2)
	assert.InDelta(t, 99.20, opp.Breakevens[0], 1e-9)
	assert.InDelta(t, 104.20, opp.Breakevens[1], 1e-9)
	assert.Equal(t, 1.0, opp.Metrics["is_credit"])
	assert.Greater(t, opp.ProbOfProfit, 0.0)
}

func TestScanRespectsCriteriaOverrides(t *testing.T) {
	// Tightening min_credit above the short premium removes the only
	// PMCC candidate.
	provider := &stubProvider{
		price: 100,
		rate:  0.04,
		raw: []domain.RawOption{
			rawQuote("call", 90, 200, 13.00, 0.75, 100),
			rawQuote("call", 105, 45, 2.00, 0.30, 100),
		},
	}
	s := NewPMCC(testDeps(provider), zerolog.Nop())

	opps, err := s.Scan(context.Background(), "TEST", map[string]float64{"min_credit": 3.0})
	require.NoError(t, err)
	assert.Empty(t, opps)

	report := testReport(t, s.deps.Pipeline)
	assert.Equal(t, 0, report.Summary.FinalOutput)
}
