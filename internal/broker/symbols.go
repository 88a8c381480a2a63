package broker

import (
	"fmt"
	"math"
	"time"

	"spx-orb-trader/internal/models"
)

// OptionSymbol builds a Schwab option symbol: the root padded to six
// characters, expiry as YYMMDD, P or C, then the strike in thousandths
// zero-padded to eight digits.
//
//	OptionSymbol("SPXW", 2025-08-25, OptionPut, 6760) = "SPXW  250825P06760000"
func OptionSymbol(root string, expiry time.Time, typ models.OptionType, strike float64) string {
	return fmt.Sprintf("%-6s%s%s%08d", root, expiry.Format("060102"), typ.Char(), int64(math.Round(strike*1000)))
}

// SpreadSymbols returns the short and long leg symbols for a spread.
func SpreadSymbols(root string, expiry time.Time, spread models.Spread) (shortSym, longSym string) {
	shortSym = OptionSymbol(root, expiry, spread.Type, spread.ShortStrike)
	longSym = OptionSymbol(root, expiry, spread.Type, spread.LongStrike)
	return shortSym, longSym
}
