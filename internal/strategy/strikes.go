package strategy

import (
	"math"

	"spx-orb-trader/internal/models"
)

// RoundToNearestFive rounds a price to the nearest multiple of 5, with
// exact midpoints rounding up. SPX strikes near the money are listed in
// 5-point increments.
func RoundToNearestFive(x float64) float64 {
	return 5 * math.Floor((x+2.5)/5)
}

// BuildSpread derives the vertical spread for a signal. The short
// strike is the reference rounded to the nearest 5; the long strike
// sits width points below for puts (bullish) and above for calls
// (bearish). Strikes are fixed here and never adjusted afterwards,
// however long the fill takes.
func BuildSpread(sig Signal, width float64) models.Spread {
	short := RoundToNearestFive(sig.Reference)
	if sig.Setup == models.SetupB {
		return models.Spread{
			Type:        models.OptionCall,
			ShortStrike: short,
			LongStrike:  short + width,
		}
	}
	return models.Spread{
		Type:        models.OptionPut,
		ShortStrike: short,
		LongStrike:  short - width,
	}
}
