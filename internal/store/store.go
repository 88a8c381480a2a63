// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"spx-orb-trader/internal/models"
)

// DataStore persists each trading day's lifecycle: state transitions,
// the captured opening range, the day's decision (if any) and its
// settlement. One row set per date; the engine is resumable from here.
type DataStore interface {
	// Trading days
	SaveDayState(ctx context.Context, date time.Time, state models.DayState, reason string) error
	SaveOpeningRange(ctx context.Context, date time.Time, or models.OpeningRange) error
	GetDay(ctx context.Context, date time.Time) (*models.DayResult, error)

	// Decisions
	SaveDecision(ctx context.Context, decision *models.TradeDecision) error
	GetDecision(ctx context.Context, date time.Time) (*models.TradeDecision, error)

	// Settlement
	SaveSettlement(ctx context.Context, date time.Time, settlement *models.SettlementResult) error

	// History, newest first
	GetHistory(ctx context.Context, from, to time.Time, limit int) ([]models.DayResult, error)

	// Lifecycle
	Close() error
}
