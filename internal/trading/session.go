// Package trading implements the intraday decision engine: session
// timing, breakout evaluation, credit monitoring, order placement, and
// end-of-day settlement.
package trading

import (
	"fmt"
	"time"

	"spx-orb-trader/internal/config"
)

// SessionPhase identifies where in the trading day a moment falls.
type SessionPhase string

const (
	PhasePreMarket    SessionPhase = "PRE_MARKET"
	PhaseOpeningRange SessionPhase = "OPENING_RANGE"
	PhaseEntryWindow  SessionPhase = "ENTRY_WINDOW"
	PhaseAfternoon    SessionPhase = "AFTERNOON"
	PhaseClosed       SessionPhase = "CLOSED"
	PhaseHoliday      SessionPhase = "HOLIDAY"
)

// SessionStatus describes the session phase at a point in time.
type SessionStatus struct {
	Phase       SessionPhase
	Description string
	Start       time.Time
	End         time.Time
}

// Session resolves strategy instants (open, range close, entry
// deadline, market close) on the exchange calendar. All computations
// happen in the exchange timezone regardless of the host clock.
type Session struct {
	location      *time.Location
	open          int // minutes from midnight, exchange time
	rangeClose    int
	entryDeadline int
	marketClose   int
	holidays      map[string]bool
}

// nyseHolidays lists full-day NYSE closures. Early-close days still
// trade the morning session this strategy uses, so they are not listed.
var nyseHolidays = []string{
	"2025-01-01", "2025-01-09", "2025-01-20", "2025-02-17", "2025-04-18",
	"2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27",
	"2025-12-25",
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25",
	"2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
}

// NewSession builds a session from validated configuration.
func NewSession(cfg config.SessionConfig) (*Session, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid session timezone %q: %w", cfg.Timezone, err)
	}

	s := &Session{
		location: loc,
		holidays: make(map[string]bool),
	}

	if s.open, err = parseClock(cfg.MarketOpen); err != nil {
		return nil, fmt.Errorf("invalid market open: %w", err)
	}
	if s.rangeClose, err = parseClock(cfg.RangeClose); err != nil {
		return nil, fmt.Errorf("invalid range close: %w", err)
	}
	if s.entryDeadline, err = parseClock(cfg.EntryDeadline); err != nil {
		return nil, fmt.Errorf("invalid entry deadline: %w", err)
	}
	if s.marketClose, err = parseClock(cfg.MarketClose); err != nil {
		return nil, fmt.Errorf("invalid market close: %w", err)
	}

	for _, d := range nyseHolidays {
		s.holidays[d] = true
	}

	return s, nil
}

// parseClock parses "HH:MM" into minutes from midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Location returns the exchange timezone.
func (s *Session) Location() *time.Location {
	return s.location
}

// DayOf returns midnight of t's calendar day in the exchange timezone.
func (s *Session) DayOf(t time.Time) time.Time {
	t = t.In(s.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location)
}

// AddHoliday adds a market holiday.
func (s *Session) AddHoliday(date time.Time) {
	s.holidays[date.In(s.location).Format("2006-01-02")] = true
}

// IsHoliday checks if a date is a market holiday.
func (s *Session) IsHoliday(date time.Time) bool {
	return s.holidays[date.In(s.location).Format("2006-01-02")]
}

// IsTradingDay reports whether the market opens on the given date.
func (s *Session) IsTradingDay(date time.Time) bool {
	date = date.In(s.location)
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false
	}
	return !s.IsHoliday(date)
}

// MarketOpen returns the session open instant on the given date.
func (s *Session) MarketOpen(date time.Time) time.Time {
	return s.at(date, s.open)
}

// RangeClose returns the instant the opening range completes.
func (s *Session) RangeClose(date time.Time) time.Time {
	return s.at(date, s.rangeClose)
}

// EntryDeadline returns the last instant a position may be opened.
func (s *Session) EntryDeadline(date time.Time) time.Time {
	return s.at(date, s.entryDeadline)
}

// MarketClose returns the cash close instant on the given date.
func (s *Session) MarketClose(date time.Time) time.Time {
	return s.at(date, s.marketClose)
}

// WindowCloses returns the 30-minute candle close instants strictly
// after the range close, up to and including the entry deadline. These
// are the instants at which the breakdown setup is evaluated.
func (s *Session) WindowCloses(date time.Time) []time.Time {
	var closes []time.Time
	for m := s.rangeClose + 30; m <= s.entryDeadline; m += 30 {
		closes = append(closes, s.at(date, m))
	}
	return closes
}

// StatusAt returns the session phase at a specific time.
func (s *Session) StatusAt(t time.Time) *SessionStatus {
	t = t.In(s.location)

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return &SessionStatus{
			Phase:       PhaseClosed,
			Description: "Weekend - Market Closed",
		}
	}

	if s.IsHoliday(t) {
		return &SessionStatus{
			Phase:       PhaseHoliday,
			Description: "Market Holiday",
		}
	}

	minutes := t.Hour()*60 + t.Minute()

	switch {
	case minutes < s.open && minutes >= s.open-120:
		return &SessionStatus{
			Phase:       PhasePreMarket,
			Description: fmt.Sprintf("Pre-Market (opens %s)", clockString(s.open)),
			End:         s.at(t, s.open),
		}
	case minutes >= s.open && minutes < s.rangeClose:
		return &SessionStatus{
			Phase:       PhaseOpeningRange,
			Description: fmt.Sprintf("Opening Range (%s-%s)", clockString(s.open), clockString(s.rangeClose)),
			Start:       s.at(t, s.open),
			End:         s.at(t, s.rangeClose),
		}
	case minutes >= s.rangeClose && minutes < s.entryDeadline:
		return &SessionStatus{
			Phase:       PhaseEntryWindow,
			Description: fmt.Sprintf("Entry Window (%s-%s)", clockString(s.rangeClose), clockString(s.entryDeadline)),
			Start:       s.at(t, s.rangeClose),
			End:         s.at(t, s.entryDeadline),
		}
	case minutes >= s.entryDeadline && minutes < s.marketClose:
		return &SessionStatus{
			Phase:       PhaseAfternoon,
			Description: fmt.Sprintf("Afternoon - No New Entries (closes %s)", clockString(s.marketClose)),
			Start:       s.at(t, s.entryDeadline),
			End:         s.at(t, s.marketClose),
		}
	default:
		return &SessionStatus{
			Phase:       PhaseClosed,
			Description: "Market Closed",
		}
	}
}

// NextTradingDay returns the first trading day after the given date.
func (s *Session) NextTradingDay(after time.Time) time.Time {
	next := s.DayOf(after).AddDate(0, 0, 1)
	for !s.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// at creates a time on the same calendar day at the given minutes from
// midnight, in the exchange timezone.
func (s *Session) at(t time.Time, minutes int) time.Time {
	t = t.In(s.location)
	return time.Date(t.Year(), t.Month(), t.Day(), minutes/60, minutes%60, 0, 0, s.location)
}

func clockString(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// String returns a human-readable description of the phase.
func (p SessionPhase) String() string {
	switch p {
	case PhasePreMarket:
		return "Pre-Market"
	case PhaseOpeningRange:
		return "Opening Range"
	case PhaseEntryWindow:
		return "Entry Window"
	case PhaseAfternoon:
		return "Afternoon"
	case PhaseClosed:
		return "Closed"
	case PhaseHoliday:
		return "Holiday"
	default:
		return string(p)
	}
}
