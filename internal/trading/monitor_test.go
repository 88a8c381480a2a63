package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spx-orb-trader/internal/broker"
	"spx-orb-trader/internal/models"
)

func monitorQuote(shortBid, shortAsk, longBid, longAsk float64) models.SpreadQuote {
	return models.SpreadQuote{
		Short: models.OptionQuote{Bid: shortBid, Ask: shortAsk},
		Long:  models.OptionQuote{Bid: longBid, Ask: longAsk},
	}
}

func newTestMonitor(b broker.Broker, clock Clock) *QuoteMonitor {
	return NewQuoteMonitor(b, clock, 10*time.Second, 4.60, 0.10, zerolog.Nop())
}

func TestMonitorAcceptsOnLaterPoll(t *testing.T) {
	paper := broker.NewPaperBroker(100000)
	// Poll 1: net 4.30, rejected. Poll 2: transport error.
	// Poll 3: net 4.60, accepted.
	paper.AddQuote(monitorQuote(5.00, 5.20, 0.60, 0.80))
	paper.AddQuoteError(errors.New("rate limited"))
	paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))

	clock := newFakeClock(time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC))
	deadline := clock.Now().Add(2 * time.Hour)
	m := newTestMonitor(paper, clock)

	result, err := m.Watch(context.Background(), "SHORT", "LONG", deadline)
	if err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
	if result.Outcome != MonitorAccepted {
		t.Fatalf("outcome = %s, want %s", result.Outcome, MonitorAccepted)
	}
	if result.Polls != 3 {
		t.Errorf("polls = %d, want 3", result.Polls)
	}
	if result.Failures != 1 {
		t.Errorf("failures = %d, want 1", result.Failures)
	}
	if diff := result.Credit.Net - 4.60; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("net credit = %v, want 4.60", result.Credit.Net)
	}
	if diff := result.Credit.Gross - 4.70; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("gross credit = %v, want 4.70", result.Credit.Gross)
	}
}

func TestMonitorTimesOutAtDeadline(t *testing.T) {
	paper := broker.NewPaperBroker(100000)
	paper.AddQuote(monitorQuote(5.00, 5.20, 0.60, 0.80)) // net 4.30, repeats

	clock := newFakeClock(time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC))
	deadline := clock.Now().Add(60 * time.Second)
	m := newTestMonitor(paper, clock)

	result, err := m.Watch(context.Background(), "SHORT", "LONG", deadline)
	if err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
	if result.Outcome != MonitorTimedOut {
		t.Fatalf("outcome = %s, want %s", result.Outcome, MonitorTimedOut)
	}
	// Polls at +0s through +50s; the +60s wakeup lands on the deadline.
	if result.Polls != 6 {
		t.Errorf("polls = %d, want 6", result.Polls)
	}
	if !clock.Now().Equal(deadline) {
		t.Errorf("clock = %v, want %v", clock.Now(), deadline)
	}
}

func TestMonitorStartedAtDeadlineNeverPolls(t *testing.T) {
	paper := broker.NewPaperBroker(100000)
	// An acceptable quote is scripted; a single poll would take it.
	paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))

	start := time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	m := newTestMonitor(paper, clock)

	result, err := m.Watch(context.Background(), "SHORT", "LONG", start)
	if err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
	if result.Outcome != MonitorTimedOut {
		t.Fatalf("outcome = %s, want %s", result.Outcome, MonitorTimedOut)
	}
	if result.Polls != 0 {
		t.Errorf("polls = %d, want 0", result.Polls)
	}
}

func TestMonitorUnusableQuoteCountsAsFailure(t *testing.T) {
	paper := broker.NewPaperBroker(100000)
	paper.AddQuote(monitorQuote(0, 5.20, 0.50, 0.60)) // no short bid
	paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))

	clock := newFakeClock(time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC))
	m := newTestMonitor(paper, clock)

	result, err := m.Watch(context.Background(), "SHORT", "LONG", clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
	if result.Outcome != MonitorAccepted {
		t.Fatalf("outcome = %s, want %s", result.Outcome, MonitorAccepted)
	}
	if result.Polls != 2 {
		t.Errorf("polls = %d, want 2", result.Polls)
	}
	if result.Failures != 1 {
		t.Errorf("failures = %d, want 1", result.Failures)
	}
}

func TestMonitorCancelled(t *testing.T) {
	paper := broker.NewPaperBroker(100000)
	paper.AddQuote(monitorQuote(5.00, 5.20, 0.60, 0.80)) // never acceptable

	clock := newFakeClock(time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC))
	clock.blockAfter = true
	m := newTestMonitor(paper, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.Watch(ctx, "SHORT", "LONG", clock.Now().Add(2*time.Hour))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result.Outcome != MonitorCancelled {
		t.Fatalf("outcome = %s, want %s", result.Outcome, MonitorCancelled)
	}
	if result.Polls != 1 {
		t.Errorf("polls = %d, want 1", result.Polls)
	}
}
