// Package chain normalizes raw provider option records into validated,
// numeric quotes grouped by expiration.
package chain

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/domain"
)

// Parser converts provider records into a domain.Chain.
type Parser struct {
	log zerolog.Logger
}

// NewParser creates a chain parser.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log.With().Str("module", "chain").Logger()}
}

// Parse validates raw option records and groups them by expiration.
// Malformed records (missing or unparseable expiration, strike, or type)
// are skipped and counted, never fatal. Optional numeric fields default
// to zero. DTE is computed at parse time against now.
func (p *Parser) Parse(raw []domain.RawOption, now time.Time) domain.Chain {
	chain := make(domain.Chain)
	parsed := 0
	skipped := 0

	for _, opt := range raw {
		exp, err := time.Parse("2006-01-02", opt.Expiration)
		if err != nil {
			skipped++
			continue
		}
		strike, err := strconv.ParseFloat(opt.Strike, 64)
		if err != nil {
			skipped++
			continue
		}
		optType, ok := parseType(opt.Type)
		if !ok {
			skipped++
			continue
		}

		bid := parseFloatOr(opt.Bid, 0)
		ask := parseFloatOr(opt.Ask, 0)

		quote := domain.OptionQuote{
			Symbol:       opt.Symbol,
			Expiration:   exp,
			Strike:       strike,
			Type:         optType,
			Bid:          bid,
			Ask:          ask,
			Premium:      (bid + ask) / 2,
			Volume:       int(parseFloatOr(opt.Volume, 0)),
			OpenInterest: int(parseFloatOr(opt.OpenInt, 0)),
			IV:           parseFloatOr(opt.IV, 0),
			Delta:        parseFloatOr(opt.Delta, 0),
			DTE:          domain.DaysToExpiry(exp, now),
		}

		chain[exp] = append(chain[exp], quote)
		parsed++
	}

	p.log.Debug().
		Int("parsed", parsed).
		Int("skipped", skipped).
		Int("expirations", len(chain)).
		Msg("Parsed options chain")

	return chain
}

// AverageIV returns the mean implied volatility across all records with
// a positive IV, or 0.15 when none are usable.
func AverageIV(raw []domain.RawOption) float64 {
	sum := 0.0
	count := 0
	for _, opt := range raw {
		iv := parseFloatOr(opt.IV, 0)
		if iv > 0 {
			sum += iv
			count++
		}
	}
	if count == 0 {
		return 0.15
	}
	return sum / float64(count)
}

func parseType(s string) (domain.OptionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return domain.Call, true
	case "put":
		return domain.Put, true
	default:
		return "", false
	}
}

func parseFloatOr(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
