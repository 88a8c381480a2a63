package models

import "time"

// OptionType distinguishes the two spread flavors the strategy trades.
type OptionType string

const (
	OptionPut  OptionType = "PUT"
	OptionCall OptionType = "CALL"
)

// Char returns the single-letter code used in option symbols.
func (t OptionType) Char() string {
	if t == OptionCall {
		return "C"
	}
	return "P"
}

// OptionQuote represents one leg's bid/ask at a point in time.
// Refreshed on every poll, never persisted.
type OptionQuote struct {
	Bid float64
	Ask float64
}

// Mid returns the bid/ask midpoint. The second return is false when
// either side is missing or non-positive, in which case the quote is
// unusable for credit evaluation.
func (q OptionQuote) Mid() (float64, bool) {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0, false
	}
	return (q.Bid + q.Ask) / 2, true
}

// Spread identifies a fixed-width vertical spread. Strikes are locked
// at the moment a setup triggers and never recomputed afterwards.
type Spread struct {
	Type        OptionType
	ShortStrike float64
	LongStrike  float64
}

// Width returns the distance between the two strikes.
func (s Spread) Width() float64 {
	w := s.LongStrike - s.ShortStrike
	if w < 0 {
		return -w
	}
	return w
}

// SpreadQuote pairs the two leg quotes from a single poll.
type SpreadQuote struct {
	Short OptionQuote
	Long  OptionQuote
	At    time.Time
}

// SpreadCredit is the credit derived from one SpreadQuote.
// Net = Gross minus the configured slippage buffer.
type SpreadCredit struct {
	Gross float64
	Net   float64
}
