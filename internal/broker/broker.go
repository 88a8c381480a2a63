// Package broker provides market access: the Schwab HTTP client used
// for live and dry-run trading, and a scripted paper broker for tests
// and offline runs.
package broker

import (
	"context"
	"time"

	"spx-orb-trader/internal/models"
)

// Broker is the market surface the trading engine needs. It is
// deliberately small: intraday index candles, batched option quotes,
// the settlement close, account equity and one spread order shape.
type Broker interface {
	// GetCandles returns regular-session index candles covering the
	// requested window, in chronological order.
	GetCandles(ctx context.Context, req CandleRequest) ([]models.Candle, error)

	// GetOptionQuotes fetches both legs in a single batch call. A leg
	// absent from the response comes back as a zero quote, which
	// callers detect through OptionQuote.Mid.
	GetOptionQuotes(ctx context.Context, shortSymbol, longSymbol string) (models.SpreadQuote, error)

	// GetIndexClose returns the official index close for the date.
	GetIndexClose(ctx context.Context, symbol string, date time.Time) (float64, error)

	// GetAccountEquity returns the account's liquidation value.
	GetAccountEquity(ctx context.Context) (float64, error)

	// PlaceSpreadOrder submits a net-credit vertical spread order.
	PlaceSpreadOrder(ctx context.Context, order *models.SpreadOrder) (*models.OrderResult, error)

	// IsAuthenticated reports whether API calls can be made.
	IsAuthenticated() bool
}

// CandleRequest identifies a window of intraday index candles.
type CandleRequest struct {
	Symbol    string
	Start     time.Time
	End       time.Time
	Frequency int // minutes per candle
}
