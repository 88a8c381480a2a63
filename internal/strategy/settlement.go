package strategy

import (
	"math"
	"time"

	"spx-orb-trader/internal/models"
)

// SettleSpread values the expired spread against the index close and
// computes realized P&L. SPX options settle in cash: the short leg's
// intrinsic value is clamped into [0, width], the credit collected at
// fill is kept, and each spread is worth 100 dollars per point.
func SettleSpread(spread models.Spread, netCredit float64, quantity int, closePrice float64, at time.Time) models.SettlementResult {
	var intrinsic float64
	switch spread.Type {
	case models.OptionCall:
		intrinsic = closePrice - spread.ShortStrike
	default:
		intrinsic = spread.ShortStrike - closePrice
	}

	value := math.Min(math.Max(intrinsic, 0), spread.Width())
	perSpread := (netCredit - value) * 100

	return models.SettlementResult{
		ClosePrice:      closePrice,
		SettlementValue: value,
		PnLPerSpread:    perSpread,
		TotalPnL:        perSpread * float64(quantity),
		SettledAt:       at,
	}
}
