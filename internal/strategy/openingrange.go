// Package strategy implements the opening-range breakout rules: range
// capture, the two entry setups, strike selection, credit evaluation,
// position sizing and expiration settlement. Everything here is pure
// computation; market access and timing live in the trading package.
package strategy

import (
	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/models"
)

// Signal is an entry trigger produced by one of the two setups.
// Reference is the price the short strike is derived from.
type Signal struct {
	Setup     models.SetupType
	Reference float64
}

// RangeFromCandle captures the opening range from the first 30-minute
// candle of the session. Candles with non-positive or inconsistent OHLC
// are rejected so a bad feed can never seed the day's levels.
func RangeFromCandle(c models.Candle) (models.OpeningRange, error) {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return models.OpeningRange{}, apperrors.Wrapf(apperrors.ErrDataUnavailable,
			"opening candle has non-positive prices (O=%.2f H=%.2f L=%.2f C=%.2f)",
			c.Open, c.High, c.Low, c.Close)
	}
	if c.High < c.Low || c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
		return models.OpeningRange{}, apperrors.Wrapf(apperrors.ErrDataUnavailable,
			"opening candle OHLC out of order (O=%.2f H=%.2f L=%.2f C=%.2f)",
			c.Open, c.High, c.Low, c.Close)
	}
	return models.OpeningRange{
		Date:  c.Timestamp,
		Open:  c.Open,
		High:  c.High,
		Low:   c.Low,
		Close: c.Close,
	}, nil
}

// EvaluateRange inspects the completed opening range for the bullish
// setup: a range close strictly above the range open. The reference
// price is the range close. A close exactly at the open does not
// qualify and hands the day to the breakdown scan.
func EvaluateRange(or models.OpeningRange) (Signal, bool) {
	if or.Close > or.Open {
		return Signal{Setup: models.SetupA, Reference: or.Close}, true
	}
	return Signal{}, false
}

// EvaluateBreakdown inspects one completed 30-minute candle for the
// bearish setup: a close strictly below the opening-range low. The
// reference price is that candle's close. A close exactly at the low
// does not qualify.
func EvaluateBreakdown(or models.OpeningRange, c models.Candle) (Signal, bool) {
	if c.Close < or.Low {
		return Signal{Setup: models.SetupB, Reference: c.Close}, true
	}
	return Signal{}, false
}
