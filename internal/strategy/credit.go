package strategy

import (
	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/models"
)

// CreditFromQuote derives the spread credit from one poll of both
// legs. Gross is the short mid minus the long mid; net subtracts the
// slippage buffer. Returns ErrQuoteUnavailable when either leg lacks a
// usable two-sided market, which the caller treats as a skipped poll
// rather than a failure.
func CreditFromQuote(q models.SpreadQuote, slippageBuffer float64) (models.SpreadCredit, error) {
	shortMid, ok := q.Short.Mid()
	if !ok {
		return models.SpreadCredit{}, apperrors.Wrap(apperrors.ErrQuoteUnavailable, "short leg")
	}
	longMid, ok := q.Long.Mid()
	if !ok {
		return models.SpreadCredit{}, apperrors.Wrap(apperrors.ErrQuoteUnavailable, "long leg")
	}

	gross := shortMid - longMid
	return models.SpreadCredit{
		Gross: gross,
		Net:   gross - slippageBuffer,
	}, nil
}

// Acceptable reports whether the net credit clears the floor. The
// comparison is inclusive: a net credit exactly at the floor is taken.
func Acceptable(credit models.SpreadCredit, minNetCredit float64) bool {
	return credit.Net >= minNetCredit
}
