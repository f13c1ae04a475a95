package clientdata

import "time"

// Table names for cached provider responses.
const (
	TableQuote    = "alphavantage_quote"
	TableTreasury = "alphavantage_treasury"
	TableOptions  = "alphavantage_options"
)

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Short-lived market data (changes intraday)
	TTLQuote   = 5 * time.Minute  // Underlying quote cache
	TTLOptions = 15 * time.Minute // Full options chains are expensive to fetch

	// Daily data
	TTLTreasury = 24 * time.Hour // 3-month treasury yield updates daily
)
