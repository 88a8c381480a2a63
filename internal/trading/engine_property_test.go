package trading

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"spx-orb-trader/internal/broker"
	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/models"
	"spx-orb-trader/internal/store"
)

// dayPropertyFixture hands each property run a fresh engine over a
// shared store, each on its own trading day so stored state never
// leaks between runs.
type dayPropertyFixture struct {
	sess   *Session
	store  store.DataStore
	cursor time.Time
}

func newDayPropertyFixture(t *testing.T, dbName string) *dayPropertyFixture {
	t.Helper()

	sess, err := NewSession(testSessionConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	st, err := store.NewSQLiteStore(dbName)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
		os.Remove(dbName)
		os.Remove(dbName + "-wal")
		os.Remove(dbName + "-shm")
	})

	return &dayPropertyFixture{
		sess:   sess,
		store:  st,
		cursor: time.Date(2025, 1, 1, 0, 0, 0, 0, sess.Location()),
	}
}

// nextDay allocates the next unused trading day.
func (f *dayPropertyFixture) nextDay() time.Time {
	f.cursor = f.sess.NextTradingDay(f.cursor)
	return f.cursor
}

func (f *dayPropertyFixture) newEngine(date time.Time) (*Engine, *broker.PaperBroker, *fakeClock) {
	clock := newFakeClock(time.Date(date.Year(), date.Month(), date.Day(), 9, 25, 0, 0, f.sess.Location()))
	paper := broker.NewPaperBroker(100000)
	engine := NewEngine(testConfig(), paper, f.store, f.sess, zerolog.Nop(), EngineOptions{
		Clock: clock,
		Retry: fastRetry(),
	})
	return engine, paper, clock
}

func (f *dayPropertyFixture) candle(date time.Time, hour, min int, o, h, l, c float64) models.Candle {
	loc := f.sess.Location()
	return models.Candle{
		Timestamp: time.Date(date.Year(), date.Month(), date.Day(), hour, min, 0, 0, loc),
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    1_000_000,
	}
}

// Property: a day run always lands on exactly one of the two terminal
// states. FILLED comes with exactly one persisted decision and exactly
// one placed order; DAY_ENDED_NO_TRADE comes with neither.
func TestProperty_DayRunReachesExactlyOneTerminal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	fix := newDayPropertyFixture(t, "test_engine_terminal_property.db")

	properties.Property("every day ends FILLED or DAY_ENDED_NO_TRADE, never both", prop.ForAll(
		func(open, rise, drop, lowGap, highGap, breakDepth int, bullish, accepts bool) bool {
			date := fix.nextDay()
			engine, paper, _ := fix.newEngine(date)

			orOpen := float64(open)
			orClose := orOpen - float64(drop)
			if bullish {
				orClose = orOpen + float64(rise)
			}
			lo, hi := orOpen, orClose
			if lo > hi {
				lo, hi = hi, lo
			}
			orLow := lo - float64(lowGap)
			orHigh := hi + float64(highGap)

			candles := []models.Candle{
				fix.candle(date, 9, 30, orOpen, orHigh, orLow, orClose),
			}
			expectFill := bullish && accepts
			if !bullish {
				// One scanned window candle. Depth zero touches the
				// range low exactly and must not trigger.
				breakClose := orLow - float64(breakDepth)
				candles = append(candles, fix.candle(date, 10, 0, breakClose+2, breakClose+3, breakClose, breakClose))
				expectFill = accepts && breakDepth > 0
			}
			paper.SetCandles(candles)
			if accepts {
				paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60)) // net 4.60
			} else {
				paper.AddQuote(monitorQuote(5.00, 5.20, 0.60, 0.80)) // net 4.30
			}

			day, err := engine.RunDay(context.Background())
			if err != nil {
				t.Logf("FAILED: RunDay on %s: %v", date.Format("2006-01-02"), err)
				return false
			}
			if !day.State.IsTerminal() {
				t.Logf("FAILED: %s ended non-terminal %s", date.Format("2006-01-02"), day.State)
				return false
			}
			want := models.StateDayEndedNoTrade
			if expectFill {
				want = models.StateFilled
			}
			if day.State != want {
				t.Logf("FAILED: %s state=%s want=%s (reason %q)",
					date.Format("2006-01-02"), day.State, want, day.Reason)
				return false
			}

			decision, derr := fix.store.GetDecision(context.Background(), date)
			if day.State == models.StateFilled {
				if derr != nil || decision == nil {
					t.Logf("FAILED: filled day without stored decision: %v", derr)
					return false
				}
				if len(paper.Orders()) != 1 {
					t.Logf("FAILED: filled day placed %d orders", len(paper.Orders()))
					return false
				}
				return true
			}
			if !apperrors.Is(derr, apperrors.ErrNoDecision) {
				t.Logf("FAILED: no-trade day decision err=%v, want ErrNoDecision", derr)
				return false
			}
			if len(paper.Orders()) != 0 {
				t.Logf("FAILED: no-trade day placed %d orders", len(paper.Orders()))
				return false
			}
			return true
		},
		gen.IntRange(6500, 6900),
		gen.IntRange(1, 40),
		gen.IntRange(0, 40),
		gen.IntRange(0, 25),
		gen.IntRange(0, 25),
		gen.IntRange(0, 15),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: once the opening range closes up, the breakdown setup is
// foreclosed for the rest of the day. Even with a candle breaking the
// range low on the tape, an unfillable bullish watch runs out the
// clock and the day ends with no trade; it never hands the day to the
// breakdown scan, which would end it with a different reason.
func TestProperty_BullishRangeForeclosesBreakdownSetup(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	fix := newDayPropertyFixture(t, "test_engine_foreclose_property.db")

	properties.Property("timed-out bullish watch never falls through to the breakdown scan", prop.ForAll(
		func(open, rise, lowGap, highGap, breakDepth int) bool {
			date := fix.nextDay()
			engine, paper, clock := fix.newEngine(date)

			orOpen := float64(open)
			orClose := orOpen + float64(rise)
			orLow := orOpen - float64(lowGap)
			orHigh := orClose + float64(highGap)

			breakClose := orLow - float64(breakDepth)
			paper.SetCandles([]models.Candle{
				fix.candle(date, 9, 30, orOpen, orHigh, orLow, orClose),
				fix.candle(date, 10, 0, breakClose+2, breakClose+3, breakClose, breakClose),
			})
			paper.AddQuote(monitorQuote(5.00, 5.20, 0.60, 0.80)) // net 4.30 forever

			day, err := engine.RunDay(context.Background())
			if err != nil {
				t.Logf("FAILED: RunDay on %s: %v", date.Format("2006-01-02"), err)
				return false
			}
			if day.State != models.StateDayEndedNoTrade {
				t.Logf("FAILED: state=%s (reason %q)", day.State, day.Reason)
				return false
			}
			if day.Reason != "no acceptable credit before entry deadline" {
				t.Logf("FAILED: reason=%q, want the bullish watch timeout", day.Reason)
				return false
			}
			if len(paper.Orders()) != 0 {
				t.Logf("FAILED: %d orders placed", len(paper.Orders()))
				return false
			}
			if _, derr := fix.store.GetDecision(context.Background(), date); !apperrors.Is(derr, apperrors.ErrNoDecision) {
				t.Logf("FAILED: decision err=%v, want ErrNoDecision", derr)
				return false
			}
			if !clock.Now().Equal(fix.sess.EntryDeadline(date)) {
				t.Logf("FAILED: clock=%v, want %v", clock.Now(), fix.sess.EntryDeadline(date))
				return false
			}
			return true
		},
		gen.IntRange(6500, 6900),
		gen.IntRange(1, 40),
		gen.IntRange(0, 25),
		gen.IntRange(0, 25),
		gen.IntRange(1, 15),
	))

	properties.TestingRun(t)
}
