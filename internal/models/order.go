package models

import "time"

// SpreadOrder describes a single NET_CREDIT vertical spread order:
// sell-to-open the short leg, buy-to-open the long leg, both expiring
// the same day (0DTE).
type SpreadOrder struct {
	Spread     Spread
	OptionRoot string
	Expiry     time.Time
	Quantity   int
	LimitPrice float64 // credit to receive, in dollars
}

// OrderResult is the broker's acknowledgement of a submitted order.
type OrderResult struct {
	OrderID  string
	Status   string
	DryRun   bool
	PlacedAt time.Time
}
