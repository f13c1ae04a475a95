package domain

import (
	"math"
	"time"
)

// eastern is the exchange timezone. Expiry math is done in New York time
// so that a contract expiring "today" reads as 0 DTE regardless of the
// server's local clock.
var eastern *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Static IANA name; only fails on hosts with no tzdata.
		loc = time.FixedZone("EST", -5*3600)
	}
	eastern = loc
}

// EasternNow returns the current time in the exchange timezone.
func EasternNow() time.Time {
	return time.Now().In(eastern)
}

// DaysToExpiry returns the floor of the fractional days between now and
// the expiration date at midnight exchange time. A contract whose expiry
// date has already started counts as expired: mid-day on expiration day
// this returns -1, never 0.
func DaysToExpiry(expiration time.Time, now time.Time) int {
	exp := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, eastern)
	days := exp.Sub(now.In(eastern)).Hours() / 24
	return int(math.Floor(days))
}

// TimeToExpiry converts whole days to expiry into years for pricing.
func TimeToExpiry(dte int) float64 {
	if dte <= 0 {
		return 0
	}
	return float64(dte) / 365.0
}
