package chain

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/optionscan/internal/domain"
)

func rawOpt(exp, strike, typ string) domain.RawOption {
	return domain.RawOption{
		Symbol:     "AAPL",
		Expiration: exp,
		Strike:     strike,
		Type:       typ,
		Bid:        "1.00",
		Ask:        "1.20",
		Volume:     "150",
		OpenInt:    "800",
		IV:         "0.32",
		Delta:      "0.45",
	}
}

func TestParseGroupsByExpiration(t *testing.T) {
	p := NewParser(zerolog.Nop())
	now := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	raw := []domain.RawOption{
		rawOpt("2026-09-18", "100", "call"),
		rawOpt("2026-09-18", "105", "put"),
		rawOpt("2026-10-16", "100", "CALL"),
	}

	chain := p.Parse(raw, now)

	assert.Len(t, chain, 2)
	sep := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	assert.Len(t, chain[sep], 2)

	q := chain[sep][0]
	assert.Equal(t, domain.Call, q.Type)
	assert.Equal(t, 100.0, q.Strike)
	assert.InDelta(t, 1.10, q.Premium, 1e-9)
	assert.Equal(t, 150, q.Volume)
	assert.Equal(t, 800, q.OpenInterest)
	assert.Equal(t, 27, q.DTE)
}

func TestParseSkipsMalformedRecords(t *testing.T) {
	p := NewParser(zerolog.Nop())
	now := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	raw := []domain.RawOption{
		rawOpt("2026-09-18", "100", "call"),
		rawOpt("not-a-date", "100", "call"),
		rawOpt("2026-09-18", "abc", "call"),
		rawOpt("2026-09-18", "100", "butterfly"),
	}

	chain := p.Parse(raw, now)

	assert.Len(t, chain, 1)
	sep := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	assert.Len(t, chain[sep], 1)
}

func TestParseDefaultsOptionalFields(t *testing.T) {
	p := NewParser(zerolog.Nop())
	now := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	raw := []domain.RawOption{{
		Expiration: "2026-09-18",
		Strike:     "100",
		Type:       "put",
	}}

	chain := p.Parse(raw, now)
	sep := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	q := chain[sep][0]

	assert.Equal(t, 0.0, q.Bid)
	assert.Equal(t, 0.0, q.Premium)
	assert.Equal(t, 0, q.Volume)
	assert.Equal(t, 0.0, q.IV)
}

func TestAverageIV(t *testing.T) {
	raw := []domain.RawOption{
		{IV: "0.20"},
		{IV: "0.40"},
		{IV: "0"},
		{IV: "garbage"},
	}
	assert.InDelta(t, 0.30, AverageIV(raw), 1e-9)

	// Fallback when nothing usable.
	assert.Equal(t, 0.15, AverageIV(nil))
	assert.Equal(t, 0.15, AverageIV([]domain.RawOption{{IV: "0"}}))
}
