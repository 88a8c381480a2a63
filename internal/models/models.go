// Package models provides domain models for the trading application.
package models

import (
	"time"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// OpeningRange holds the OHLC of the first 30-minute candle of the
// session (09:30-10:00 ET). Captured once per trading day, immutable.
type OpeningRange struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}
