package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"spx-orb-trader/internal/broker"
	"spx-orb-trader/internal/metrics"
	"spx-orb-trader/internal/models"
	"spx-orb-trader/internal/strategy"
)

// MonitorOutcome describes how a credit watch ended.
type MonitorOutcome string

const (
	MonitorAccepted  MonitorOutcome = "ACCEPTED"
	MonitorTimedOut  MonitorOutcome = "TIMED_OUT"
	MonitorCancelled MonitorOutcome = "CANCELLED"
)

// MonitorResult carries the final state of a credit watch. Polls counts
// quote requests issued; Failures counts polls that produced no usable
// credit, whether from transport errors or one-sided markets.
type MonitorResult struct {
	Outcome  MonitorOutcome
	Credit   models.SpreadCredit
	Quote    models.SpreadQuote
	Polls    int
	Failures int
}

// QuoteMonitor polls both legs of a locked spread until the net credit
// clears the configured minimum or the entry deadline passes. Strikes
// never change while a watch is running; only the premium is in play.
type QuoteMonitor struct {
	broker   broker.Broker
	clock    Clock
	interval time.Duration
	minNet   float64
	slippage float64
	log      zerolog.Logger
}

// NewQuoteMonitor creates a monitor polling at the given interval.
func NewQuoteMonitor(b broker.Broker, clock Clock, interval time.Duration, minNet, slippage float64, log zerolog.Logger) *QuoteMonitor {
	return &QuoteMonitor{
		broker:   b,
		clock:    clock,
		interval: interval,
		minNet:   minNet,
		slippage: slippage,
		log:      log.With().Str("component", "monitor").Logger(),
	}
}

// Watch polls the spread's legs until the credit is acceptable, the
// deadline arrives, or ctx is cancelled. The deadline is checked before
// every poll, so a watch started at or past the deadline returns
// TIMED_OUT without polling at all. The first poll is immediate; later
// polls wait out the interval, shortened when the deadline is closer
// than a full interval away.
func (m *QuoteMonitor) Watch(ctx context.Context, shortSymbol, longSymbol string, deadline time.Time) (MonitorResult, error) {
	result := MonitorResult{Outcome: MonitorTimedOut}

	m.log.Info().
		Str("short", shortSymbol).
		Str("long", longSymbol).
		Time("deadline", deadline).
		Dur("interval", m.interval).
		Float64("min_net", m.minNet).
		Msg("Starting credit watch")

	for {
		if !m.clock.Now().Before(deadline) {
			m.log.Info().
				Int("polls", result.Polls).
				Int("failures", result.Failures).
				Msg("Credit watch timed out")
			return result, nil
		}

		result.Polls++
		metrics.IncQuotePoll()

		quote, err := m.broker.GetOptionQuotes(ctx, shortSymbol, longSymbol)
		if err != nil {
			result.Failures++
			metrics.IncQuotePollFailure()
			m.log.Warn().Err(err).Int("poll", result.Polls).Msg("Quote poll failed")
		} else if credit, cerr := strategy.CreditFromQuote(quote, m.slippage); cerr != nil {
			result.Failures++
			metrics.IncQuotePollFailure()
			m.log.Debug().Err(cerr).Int("poll", result.Polls).Msg("Quote unusable")
		} else {
			metrics.SetNetCredit(credit.Net)
			m.log.Debug().
				Int("poll", result.Polls).
				Float64("gross", credit.Gross).
				Float64("net", credit.Net).
				Msg("Credit evaluated")

			if strategy.Acceptable(credit, m.minNet) {
				result.Outcome = MonitorAccepted
				result.Credit = credit
				result.Quote = quote
				m.log.Info().
					Int("polls", result.Polls).
					Float64("net", credit.Net).
					Msg("Credit accepted")
				return result, nil
			}
		}

		wait := m.interval
		if remaining := deadline.Sub(m.clock.Now()); remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			result.Outcome = MonitorCancelled
			m.log.Info().Int("polls", result.Polls).Msg("Credit watch cancelled")
			return result, ctx.Err()
		case <-m.clock.After(wait):
		}
	}
}
