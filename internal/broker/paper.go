package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/models"
)

// PaperBroker is a deterministic in-memory broker used in paper mode
// and in tests. Candles, quote polls, equity and the settlement close
// are scripted up front; orders are recorded and acknowledged locally.
type PaperBroker struct {
	mu sync.Mutex

	candles      []models.Candle
	script       []quoteStep
	scriptIdx    int
	equity       float64
	closePrice   float64
	closeSet     bool
	orderErr     error
	orders       []models.SpreadOrder
	orderCounter int
}

type quoteStep struct {
	quote models.SpreadQuote
	err   error
}

var _ Broker = (*PaperBroker)(nil)

// NewPaperBroker creates a paper broker with the given account equity.
func NewPaperBroker(equity float64) *PaperBroker {
	if equity == 0 {
		equity = 100000
	}
	return &PaperBroker{equity: equity}
}

// SetCandles scripts the session candles.
func (p *PaperBroker) SetCandles(candles []models.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles = append([]models.Candle(nil), candles...)
}

// AddQuote appends one scripted poll result. Once the script runs out,
// the last quote repeats.
func (p *PaperBroker) AddQuote(q models.SpreadQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, quoteStep{quote: q})
}

// AddQuoteError appends a scripted transport failure for one poll.
func (p *PaperBroker) AddQuoteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, quoteStep{err: err})
}

// SetClose scripts the settlement close.
func (p *PaperBroker) SetClose(price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closePrice = price
	p.closeSet = true
}

// FailOrders makes every PlaceSpreadOrder return err until cleared.
func (p *PaperBroker) FailOrders(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderErr = err
}

// Orders returns a copy of the orders placed so far.
func (p *PaperBroker) Orders() []models.SpreadOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.SpreadOrder(nil), p.orders...)
}

// IsAuthenticated always returns true for paper trading.
func (p *PaperBroker) IsAuthenticated() bool {
	return true
}

// GetCandles returns the scripted candles that start inside the window.
func (p *PaperBroker) GetCandles(ctx context.Context, req CandleRequest) ([]models.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []models.Candle
	for _, c := range p.candles {
		if !c.Timestamp.Before(req.Start) && c.Timestamp.Before(req.End) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, apperrors.NewDataError("candles", req.Symbol, "no scripted candles in window", apperrors.ErrDataUnavailable)
	}
	return out, nil
}

// GetOptionQuotes steps through the scripted polls.
func (p *PaperBroker) GetOptionQuotes(ctx context.Context, shortSymbol, longSymbol string) (models.SpreadQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.script) == 0 {
		return models.SpreadQuote{At: time.Now()}, nil
	}

	step := p.script[p.scriptIdx]
	if p.scriptIdx < len(p.script)-1 {
		p.scriptIdx++
	}
	if step.err != nil {
		return models.SpreadQuote{}, step.err
	}
	q := step.quote
	if q.At.IsZero() {
		q.At = time.Now()
	}
	return q, nil
}

// GetIndexClose returns the scripted settlement close.
func (p *PaperBroker) GetIndexClose(ctx context.Context, symbol string, date time.Time) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closeSet {
		return 0, apperrors.NewDataError("close", symbol, "no scripted close", apperrors.ErrDataUnavailable)
	}
	return p.closePrice, nil
}

// GetAccountEquity returns the scripted liquidation value.
func (p *PaperBroker) GetAccountEquity(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity, nil
}

// PlaceSpreadOrder records the order and acknowledges it.
func (p *PaperBroker) PlaceSpreadOrder(ctx context.Context, order *models.SpreadOrder) (*models.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.orderErr != nil {
		return nil, p.orderErr
	}

	p.orderCounter++
	p.orders = append(p.orders, *order)
	return &models.OrderResult{
		OrderID:  fmt.Sprintf("PAPER_%d", p.orderCounter),
		Status:   "ACCEPTED",
		PlacedAt: time.Now(),
	}, nil
}
