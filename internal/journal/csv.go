// Package journal maintains an append-only CSV record of settled
// trades, separate from the database so it can be eyeballed, archived,
// and fed to spreadsheets without tooling.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"spx-orb-trader/internal/models"
)

// TradeRow is one settled trade in the journal.
type TradeRow struct {
	Date             string  `csv:"date"`
	Setup            string  `csv:"setup"`
	Direction        string  `csv:"direction"`
	OptionType       string  `csv:"option_type"`
	ShortStrike      float64 `csv:"short_strike"`
	LongStrike       float64 `csv:"long_strike"`
	ReferencePrice   float64 `csv:"reference_price"`
	TriggerTime      string  `csv:"trigger_time"`
	FillTime         string  `csv:"fill_time"`
	GrossCredit      float64 `csv:"gross_credit"`
	NetCredit        float64 `csv:"net_credit"`
	Quantity         int     `csv:"quantity"`
	RiskBudget       float64 `csv:"risk_budget"`
	MaxLossPerSpread float64 `csv:"max_loss_per_spread"`
	EquityBefore     float64 `csv:"equity_before"`
	OrderID          string  `csv:"order_id"`
	ClosePrice       float64 `csv:"close_price"`
	SettlementValue  float64 `csv:"settlement_value"`
	PnLPerSpread     float64 `csv:"pnl_per_spread"`
	TotalPnL         float64 `csv:"total_pnl"`
}

// NewTradeRow flattens a decision and its settlement into a journal row.
func NewTradeRow(d *models.TradeDecision, s *models.SettlementResult) TradeRow {
	return TradeRow{
		Date:             d.Date.Format("2006-01-02"),
		Setup:            string(d.Setup),
		Direction:        d.Setup.Direction(),
		OptionType:       string(d.Spread.Type),
		ShortStrike:      d.Spread.ShortStrike,
		LongStrike:       d.Spread.LongStrike,
		ReferencePrice:   d.ReferencePrice,
		TriggerTime:      d.TriggerTime.Format("2006-01-02T15:04:05Z07:00"),
		FillTime:         d.FillTime.Format("2006-01-02T15:04:05Z07:00"),
		GrossCredit:      d.GrossCredit,
		NetCredit:        d.NetCredit,
		Quantity:         d.Quantity,
		RiskBudget:       d.RiskBudget,
		MaxLossPerSpread: d.MaxLossPerSpread,
		EquityBefore:     d.EquityBefore,
		OrderID:          d.OrderID,
		ClosePrice:       s.ClosePrice,
		SettlementValue:  s.SettlementValue,
		PnLPerSpread:     s.PnLPerSpread,
		TotalPnL:         s.TotalPnL,
	}
}

// CSVJournal appends settled trades to a CSV file, writing the header
// only when it creates the file.
type CSVJournal struct {
	path string
	mu   sync.Mutex
}

// NewCSVJournal creates a journal backed by the given file path. The
// file itself is created lazily on first append.
func NewCSVJournal(path string) *CSVJournal {
	return &CSVJournal{path: path}
}

// Path returns the journal file location.
func (j *CSVJournal) Path() string {
	return j.path
}

// Append writes one row to the journal.
func (j *CSVJournal) Append(row TradeRow) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows := []TradeRow{row}

	if _, err := os.Stat(j.path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
		f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return fmt.Errorf("failed to create journal: %w", err)
		}
		defer f.Close()
		if err := gocsv.MarshalFile(&rows, f); err != nil {
			return fmt.Errorf("failed to write journal row: %w", err)
		}
		return nil
	}

	f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalWithoutHeaders(&rows, f); err != nil {
		return fmt.Errorf("failed to append journal row: %w", err)
	}
	return nil
}

// ReadAll loads every row in the journal. A missing file reads as an
// empty journal.
func (j *CSVJournal) ReadAll() ([]TradeRow, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var rows []TradeRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return rows, nil
}
