package strategy

import (
	"math"

	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/models"
)

// SizePosition converts account equity into a contract count. The day's
// risk budget is a fixed fraction of equity; the worst case per spread
// is the width less the net credit, in dollars. The raw count is the
// floor of budget over worst case, clamped into [minContracts,
// maxContracts]. Clamping up to the minimum means a funded account
// always trades at least one spread even when the budget alone would
// not cover its worst case.
func SizePosition(equity, riskFraction float64, credit models.SpreadCredit, width float64, minContracts, maxContracts int) (models.SizingResult, error) {
	budget := riskFraction * equity
	maxLoss := (width - credit.Net) * 100
	if maxLoss <= 0 {
		// Net credit at or above the width means no capital at risk,
		// which only happens with an inconsistent credit floor.
		return models.SizingResult{}, apperrors.Wrapf(apperrors.ErrConfigInvalid,
			"max loss per spread is not positive (net credit %.2f, width %.2f)", credit.Net, width)
	}

	raw := int(math.Floor(budget / maxLoss))
	qty := raw
	if qty < minContracts {
		qty = minContracts
	}
	if qty > maxContracts {
		qty = maxContracts
	}

	return models.SizingResult{
		RiskBudget:       budget,
		MaxLossPerSpread: maxLoss,
		RawQuantity:      raw,
		Quantity:         qty,
	}, nil
}
