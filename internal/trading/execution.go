package trading

import (
	"context"
	"fmt"
	"time"

	"spx-orb-trader/internal/broker"
	"spx-orb-trader/internal/store"
)

// PreflightChecker validates whether the engine may start an entry run
// for a given trading day. Every check must pass before the state
// machine leaves AWAITING_OR.
type PreflightChecker struct {
	session *Session
	store   store.DataStore
	broker  broker.Broker
}

// PreflightResult contains the result of an entry preflight.
type PreflightResult struct {
	OK           bool
	BlockReason  string
	ChecksPassed []string
	ChecksFailed []string
}

// NewPreflightChecker creates a new preflight checker.
func NewPreflightChecker(session *Session, st store.DataStore, b broker.Broker) *PreflightChecker {
	return &PreflightChecker{
		session: session,
		store:   st,
		broker:  b,
	}
}

// CheckEntry runs the entry checks in order and stops at the first
// failure. The order matters: calendar checks are free, the store and
// broker checks touch I/O.
func (p *PreflightChecker) CheckEntry(ctx context.Context, date, now time.Time) PreflightResult {
	result := PreflightResult{
		OK:           true,
		ChecksPassed: []string{},
		ChecksFailed: []string{},
	}

	// Check 1: Exchange calendar
	dayOK, dayReason := p.checkTradingDay(date)
	if !dayOK {
		result.OK = false
		result.BlockReason = dayReason
		result.ChecksFailed = append(result.ChecksFailed, "trading_day")
		return result
	}
	result.ChecksPassed = append(result.ChecksPassed, "trading_day")

	// Check 2: Entry window still open
	windowOK, windowReason := p.checkEntryWindow(date, now)
	if !windowOK {
		result.OK = false
		result.BlockReason = windowReason
		result.ChecksFailed = append(result.ChecksFailed, "entry_window")
		return result
	}
	result.ChecksPassed = append(result.ChecksPassed, "entry_window")

	// Check 3: Day not already decided
	freshOK, freshReason := p.checkDayNotTerminal(ctx, date)
	if !freshOK {
		result.OK = false
		result.BlockReason = freshReason
		result.ChecksFailed = append(result.ChecksFailed, "day_not_terminal")
		return result
	}
	result.ChecksPassed = append(result.ChecksPassed, "day_not_terminal")

	// Check 4: Broker session
	authOK, authReason := p.checkBrokerAuth()
	if !authOK {
		result.OK = false
		result.BlockReason = authReason
		result.ChecksFailed = append(result.ChecksFailed, "broker_auth")
		return result
	}
	result.ChecksPassed = append(result.ChecksPassed, "broker_auth")

	return result
}

// checkTradingDay validates the exchange is open on the given date.
func (p *PreflightChecker) checkTradingDay(date time.Time) (bool, string) {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false, fmt.Sprintf("market closed: %s", date.Weekday())
	}
	if p.session.IsHoliday(date) {
		return false, fmt.Sprintf("market closed: exchange holiday %s", date.Format("2006-01-02"))
	}
	return true, ""
}

// checkEntryWindow validates the entry deadline has not passed.
func (p *PreflightChecker) checkEntryWindow(date, now time.Time) (bool, string) {
	deadline := p.session.EntryDeadline(date)
	if !now.Before(deadline) {
		return false, fmt.Sprintf("entry window closed at %s", deadline.Format("15:04 MST"))
	}
	return true, ""
}

// checkDayNotTerminal validates the day has not already reached a
// terminal state. A filled or ended day never restarts.
func (p *PreflightChecker) checkDayNotTerminal(ctx context.Context, date time.Time) (bool, string) {
	day, err := p.store.GetDay(ctx, date)
	if err != nil {
		return false, fmt.Sprintf("store lookup failed: %v", err)
	}
	if day != nil && day.State.IsTerminal() {
		return false, fmt.Sprintf("day already %s", day.State)
	}
	return true, ""
}

// checkBrokerAuth validates the broker session holds usable credentials.
func (p *PreflightChecker) checkBrokerAuth() (bool, string) {
	if !p.broker.IsAuthenticated() {
		return false, "broker session not authenticated; run `orb-trader auth login`"
	}
	return true, ""
}

// CanEnter is a convenience method returning just the boolean result.
func (p *PreflightChecker) CanEnter(ctx context.Context, date, now time.Time) bool {
	return p.CheckEntry(ctx, date, now).OK
}
