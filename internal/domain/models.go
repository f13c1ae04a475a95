// Package domain contains core types shared across all modules.
package domain

import "time"

// OptionType identifies the side of an option contract.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// PositionType identifies the direction of a leg.
type PositionType string

const (
	Long  PositionType = "long"
	Short PositionType = "short"
)

// RawOption is a single contract record as delivered by the market data
// provider. All fields arrive as strings and are validated during parsing.
type RawOption struct {
	ContractID string `json:"contractID" msgpack:"contract_id"`
	Symbol     string `json:"symbol" msgpack:"symbol"`
	Expiration string `json:"expiration" msgpack:"expiration"`
	Strike     string `json:"strike" msgpack:"strike"`
	Type       string `json:"type" msgpack:"type"`
	Bid        string `json:"bid" msgpack:"bid"`
	Ask        string `json:"ask" msgpack:"ask"`
	Volume     string `json:"volume" msgpack:"volume"`
	OpenInt    string `json:"open_interest" msgpack:"open_interest"`
	IV         string `json:"implied_volatility" msgpack:"implied_volatility"`
	Delta      string `json:"delta" msgpack:"delta"`
	Gamma      string `json:"gamma" msgpack:"gamma"`
	Theta      string `json:"theta" msgpack:"theta"`
	Vega       string `json:"vega" msgpack:"vega"`
}

// OptionQuote is a validated, numeric option contract.
type OptionQuote struct {
	Symbol       string     `json:"symbol"`
	Expiration   time.Time  `json:"expiration"`
	Strike       float64    `json:"strike"`
	Type         OptionType `json:"type"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	Premium      float64    `json:"premium"` // Bid/ask midpoint
	Volume       int        `json:"volume"`
	OpenInterest int        `json:"open_interest"`
	IV           float64    `json:"implied_volatility"`
	Delta        float64    `json:"delta"`
	DTE          int        `json:"dte"` // Calendar days to expiry, floored
}

// Chain groups validated quotes by expiration date.
type Chain map[time.Time][]OptionQuote

// Expirations returns the distinct expirations present in the chain,
// sorted ascending.
func (c Chain) Expirations() []time.Time {
	out := make([]time.Time, 0, len(c))
	for exp := range c {
		out = append(out, exp)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Before(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// All returns every quote in the chain as a flat slice.
func (c Chain) All() []OptionQuote {
	var out []OptionQuote
	for _, exp := range c.Expirations() {
		out = append(out, c[exp]...)
	}
	return out
}

// Leg is one side of a multi-leg position.
type Leg struct {
	Type       OptionType   `json:"type"`
	Position   PositionType `json:"position"`
	Strike     float64      `json:"strike"`
	Expiration time.Time    `json:"expiration"`
	Premium    float64      `json:"premium"`
	Delta      float64      `json:"delta"`
	IV         float64      `json:"implied_volatility"`
	Volume     int          `json:"volume"`
	Quantity   int          `json:"quantity"` // Contracts; 1 unless a ratio spread
}

// Opportunity is one scored candidate position produced by a strategy scan.
type Opportunity struct {
	Strategy     string             `json:"strategy"`
	Symbol       string             `json:"symbol"`
	Score        float64            `json:"score"`
	Legs         []Leg              `json:"legs"`
	NetCost      float64            `json:"net_cost"` // Negative for net credit
	MaxProfit    float64            `json:"max_profit"`
	MaxLoss      float64            `json:"max_loss"`
	Breakevens   []float64          `json:"breakevens"`
	ProbOfProfit float64            `json:"prob_of_profit"` // Percent, 0-100
	Metrics      map[string]float64 `json:"metrics"`
}
