package trading

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spx-orb-trader/internal/broker"
	"spx-orb-trader/internal/config"
	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/journal"
	"spx-orb-trader/internal/models"
	"spx-orb-trader/internal/store"
	"spx-orb-trader/pkg/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			Mode:              "paper",
			IndexSymbol:       "$SPX",
			OptionRoot:        "SPXW",
			SpreadWidth:       10,
			MinNetCredit:      4.60,
			SlippageBuffer:    0.10,
			QuotePollInterval: 10 * time.Second,
			DryRun:            true,
		},
		Risk: config.RiskConfig{
			DailyRiskFraction: 0.05,
			MinContracts:      1,
			MaxContracts:      50,
		},
		Session: testSessionConfig(),
	}
}

// fastRetry keeps retry backoff out of test runtime.
func fastRetry() *utils.RetryConfig {
	return &utils.RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1.0,
	}
}

type engineFixture struct {
	engine *Engine
	paper  *broker.PaperBroker
	store  store.DataStore
	clock  *fakeClock
	sess   *Session
	date   time.Time
}

// newEngineFixture wires an engine over a paper broker, a throwaway
// sqlite store and a fake clock started at startOfDay on the given
// date in exchange time.
func newEngineFixture(t *testing.T, dbName string, year int, month time.Month, day, hour, min int) *engineFixture {
	t.Helper()

	sess, err := NewSession(testSessionConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	loc := sess.Location()

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

	clock := newFakeClock(time.Date(year, month, day, hour, min, 0, 0, loc))
	paper := broker.NewPaperBroker(100000)
	engine := NewEngine(testConfig(), paper, st, sess, zerolog.Nop(), EngineOptions{
		Clock: clock,
		Retry: fastRetry(),
	})

	return &engineFixture{
		engine: engine,
		paper:  paper,
		store:  st,
		clock:  clock,
		sess:   sess,
		date:   time.Date(year, month, day, 0, 0, 0, 0, loc),
	}
}

func (f *engineFixture) candleAt(hour, min int, o, h, l, c float64) models.Candle {
	loc := f.sess.Location()
	return models.Candle{
		Timestamp: time.Date(f.date.Year(), f.date.Month(), f.date.Day(), hour, min, 0, 0, loc),
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    1_000_000,
	}
}

func engineFloatEq(a, b float64) bool {
	diff := a - b
	return diff > -1e-9 && diff < 1e-9
}

func TestEngineDayFlowSetupA(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_setup_a.db", 2025, time.August, 25, 9, 25)
	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6750, 6770, 6745, 6760),
	})
	// First poll 4.30 net, second poll 4.60 net.
	fix.paper.AddQuote(monitorQuote(5.00, 5.20, 0.60, 0.80))
	fix.paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))

	day, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if day.State != models.StateFilled {
		t.Fatalf("state = %s, want %s (reason %q)", day.State, models.StateFilled, day.Reason)
	}

	d := day.Decision
	if d == nil {
		t.Fatal("day has no decision")
	}
	if d.Setup != models.SetupA {
		t.Errorf("setup = %s, want %s", d.Setup, models.SetupA)
	}
	if d.Spread.Type != models.OptionPut || d.Spread.ShortStrike != 6760 || d.Spread.LongStrike != 6750 {
		t.Errorf("spread = %+v, want PUT 6760/6750", d.Spread)
	}
	if d.ReferencePrice != 6760 {
		t.Errorf("reference = %v, want 6760", d.ReferencePrice)
	}
	wantTrigger := time.Date(2025, 8, 25, 10, 0, 0, 0, fix.sess.Location())
	if !d.TriggerTime.Equal(wantTrigger) {
		t.Errorf("trigger time = %v, want %v", d.TriggerTime, wantTrigger)
	}
	if !engineFloatEq(d.GrossCredit, 4.70) || !engineFloatEq(d.NetCredit, 4.60) {
		t.Errorf("credit = %v/%v, want 4.70/4.60", d.GrossCredit, d.NetCredit)
	}
	// 100000 * 0.05 = 5000 budget; (10 - 4.60) * 100 = 540 per spread.
	if !engineFloatEq(d.RiskBudget, 5000) || !engineFloatEq(d.MaxLossPerSpread, 540) {
		t.Errorf("risk = %v/%v, want 5000/540", d.RiskBudget, d.MaxLossPerSpread)
	}
	if d.Quantity != 9 {
		t.Errorf("quantity = %d, want 9", d.Quantity)
	}
	if d.EquityBefore != 100000 {
		t.Errorf("equity = %v, want 100000", d.EquityBefore)
	}
	if d.OrderID != "PAPER_1" || d.OrderStatus != "ACCEPTED" {
		t.Errorf("order = %s/%s, want PAPER_1/ACCEPTED", d.OrderID, d.OrderStatus)
	}

	orders := fix.paper.Orders()
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	o := orders[0]
	if o.Quantity != 9 || !engineFloatEq(o.LimitPrice, 4.70) {
		t.Errorf("order qty/limit = %d/%v, want 9/4.70", o.Quantity, o.LimitPrice)
	}
	if o.OptionRoot != "SPXW" || !o.Expiry.Equal(fix.date) {
		t.Errorf("order root/expiry = %s/%v, want SPXW/%v", o.OptionRoot, o.Expiry, fix.date)
	}

	stored, err := fix.store.GetDay(context.Background(), fix.date)
	if err != nil {
		t.Fatalf("GetDay: %v", err)
	}
	if stored == nil || stored.State != models.StateFilled || stored.Decision == nil {
		t.Fatalf("stored day = %+v, want FILLED with decision", stored)
	}
	if stored.OpeningRange == nil || stored.OpeningRange.Close != 6760 {
		t.Errorf("stored range = %+v, want close 6760", stored.OpeningRange)
	}
}

func TestEngineDayFlowSetupB(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_setup_b.db", 2025, time.August, 25, 9, 25)
	// Range closes at the open: bullish setup not eligible, low 6740.
	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6760, 6765, 6740, 6745),
		fix.candleAt(10, 0, 6745, 6750, 6741, 6742),
		fix.candleAt(10, 30, 6742, 6744, 6740, 6741),
		fix.candleAt(11, 0, 6741, 6743, 6738, 6739), // breaks 6740
	})
	fix.paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))

	day, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if day.State != models.StateFilled {
		t.Fatalf("state = %s, want %s (reason %q)", day.State, models.StateFilled, day.Reason)
	}

	d := day.Decision
	if d == nil {
		t.Fatal("day has no decision")
	}
	if d.Setup != models.SetupB {
		t.Errorf("setup = %s, want %s", d.Setup, models.SetupB)
	}
	if d.Spread.Type != models.OptionCall || d.Spread.ShortStrike != 6740 || d.Spread.LongStrike != 6750 {
		t.Errorf("spread = %+v, want CALL 6740/6750", d.Spread)
	}
	if d.ReferencePrice != 6739 {
		t.Errorf("reference = %v, want 6739", d.ReferencePrice)
	}
	wantTrigger := time.Date(2025, 8, 25, 11, 30, 0, 0, fix.sess.Location())
	if !d.TriggerTime.Equal(wantTrigger) {
		t.Errorf("trigger time = %v, want %v", d.TriggerTime, wantTrigger)
	}
}

func TestEngineNoTriggerEndsDayWithoutTrade(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_no_trigger.db", 2025, time.August, 25, 9, 25)
	// Bearish range, but no candle ever closes below the 6740 low.
	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6760, 6765, 6740, 6745),
		fix.candleAt(10, 0, 6745, 6750, 6741, 6742),
		fix.candleAt(10, 30, 6742, 6744, 6740, 6741),
		fix.candleAt(11, 0, 6741, 6746, 6740, 6745),
		fix.candleAt(11, 30, 6745, 6747, 6741, 6742),
	})

	day, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if day.State != models.StateDayEndedNoTrade {
		t.Fatalf("state = %s, want %s", day.State, models.StateDayEndedNoTrade)
	}
	if day.Reason != "no trigger before entry deadline" {
		t.Errorf("reason = %q", day.Reason)
	}
	if len(fix.paper.Orders()) != 0 {
		t.Errorf("expected no orders, got %d", len(fix.paper.Orders()))
	}
}

func TestEngineSetupATimeoutNeverFallsThroughToB(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_a_timeout.db", 2025, time.August, 25, 9, 25)
	// Only the opening range candle is scripted. If the engine ever
	// scanned for a breakdown it would find no window candles and end
	// with a different reason.
	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6750, 6770, 6745, 6760),
	})
	fix.paper.AddQuote(monitorQuote(5.00, 5.20, 0.60, 0.80)) // net 4.30 forever

	day, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if day.State != models.StateDayEndedNoTrade {
		t.Fatalf("state = %s, want %s", day.State, models.StateDayEndedNoTrade)
	}
	if day.Reason != "no acceptable credit before entry deadline" {
		t.Errorf("reason = %q", day.Reason)
	}
	if len(fix.paper.Orders()) != 0 {
		t.Errorf("expected no orders, got %d", len(fix.paper.Orders()))
	}
	// The watch ran to the deadline.
	deadline := fix.sess.EntryDeadline(fix.date)
	if !fix.clock.Now().Equal(deadline) {
		t.Errorf("clock = %v, want %v", fix.clock.Now(), deadline)
	}
}

func TestEngineBreakdownAtDeadlineTimesOutImmediately(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_b_deadline.db", 2025, time.August, 25, 9, 25)
	// The breakdown only appears in the candle that completes at the
	// 12:00 deadline, so the watch starts with no time left.
	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6760, 6765, 6740, 6745),
		fix.candleAt(10, 0, 6745, 6750, 6741, 6742),
		fix.candleAt(10, 30, 6742, 6744, 6740, 6741),
		fix.candleAt(11, 0, 6741, 6746, 6740, 6745),
		fix.candleAt(11, 30, 6745, 6747, 6735, 6739),
	})
	// Acceptable on the first poll, but no poll may happen.
	fix.paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))

	day, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if day.State != models.StateDayEndedNoTrade {
		t.Fatalf("state = %s, want %s", day.State, models.StateDayEndedNoTrade)
	}
	if day.Reason != "no acceptable credit before entry deadline" {
		t.Errorf("reason = %q", day.Reason)
	}
	if len(fix.paper.Orders()) != 0 {
		t.Errorf("expected no orders, got %d", len(fix.paper.Orders()))
	}
}

func TestEngineOrderRejectionEndsDay(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_rejected.db", 2025, time.August, 25, 9, 25)
	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6750, 6770, 6745, 6760),
	})
	fix.paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))
	fix.paper.FailOrders(errors.New("account restricted"))

	day, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if day.State != models.StateDayEndedNoTrade {
		t.Fatalf("state = %s, want %s", day.State, models.StateDayEndedNoTrade)
	}
	if day.Reason != "order rejected" {
		t.Errorf("reason = %q", day.Reason)
	}
	if _, err := fix.store.GetDecision(context.Background(), fix.date); !apperrors.Is(err, apperrors.ErrNoDecision) {
		t.Errorf("GetDecision err = %v, want ErrNoDecision", err)
	}
}

func TestEngineRerunAfterFillIsIdempotent(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_rerun.db", 2025, time.August, 25, 9, 25)
	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6750, 6770, 6745, 6760),
	})
	fix.paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))

	first, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("first RunDay: %v", err)
	}
	if first.State != models.StateFilled {
		t.Fatalf("first state = %s, want FILLED", first.State)
	}

	second, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("second RunDay: %v", err)
	}
	if second.State != models.StateFilled || second.Decision == nil {
		t.Fatalf("second run = %+v, want stored FILLED day", second)
	}
	if second.Decision.OrderID != first.Decision.OrderID {
		t.Errorf("order id changed across reruns: %s vs %s", first.Decision.OrderID, second.Decision.OrderID)
	}
	if len(fix.paper.Orders()) != 1 {
		t.Errorf("got %d orders after rerun, want 1", len(fix.paper.Orders()))
	}
}

func TestEngineWeekendBlocked(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_weekend.db", 2025, time.August, 23, 10, 0) // Saturday

	_, err := fix.engine.RunDay(context.Background())
	if !apperrors.Is(err, apperrors.ErrMarketClosed) {
		t.Fatalf("err = %v, want ErrMarketClosed", err)
	}
	day, err := fix.store.GetDay(context.Background(), fix.date)
	if err != nil {
		t.Fatalf("GetDay: %v", err)
	}
	if day != nil {
		t.Errorf("blocked day should leave no record, got %+v", day)
	}
}

func TestEngineCancelledRunStaysResumable(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_cancel.db", 2025, time.August, 25, 9, 25)
	fix.clock.blockAfter = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fix.engine.RunDay(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	day, err := fix.store.GetDay(context.Background(), fix.date)
	if err != nil {
		t.Fatalf("GetDay: %v", err)
	}
	if day == nil || day.State != models.StateAwaitingOR {
		t.Fatalf("day = %+v, want non-terminal AWAITING_OR", day)
	}
}

func TestEngineInterruptedDayResumesInsideEntryWindow(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_resume.db", 2025, time.August, 25, 9, 25)
	fix.clock.blockAfter = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fix.engine.RunDay(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// Restart with time still inside the entry window: the day picks
	// up where it left off and completes normally.
	fix.clock.blockAfter = false
	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6750, 6770, 6745, 6760),
	})
	fix.paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))

	day, err := fix.engine.RunDay(context.Background())
	if err != nil {
		t.Fatalf("resumed RunDay: %v", err)
	}
	if day.State != models.StateFilled || day.Decision == nil {
		t.Fatalf("resumed day = %+v, want FILLED with decision", day)
	}
}

func TestEngineInterruptedDayPastDeadlineClosesOut(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_stale.db", 2025, time.August, 25, 9, 25)
	fix.clock.blockAfter = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fix.engine.RunDay(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// Restart after the entry deadline: the interrupted day is closed
	// out instead of being left dangling.
	late := newFakeClock(time.Date(2025, 8, 25, 12, 30, 0, 0, fix.sess.Location()))
	restarted := NewEngine(testConfig(), fix.paper, fix.store, fix.sess, zerolog.Nop(), EngineOptions{
		Clock: late,
		Retry: fastRetry(),
	})

	day, err := restarted.RunDay(context.Background())
	if err != nil {
		t.Fatalf("late RunDay: %v", err)
	}
	if day.State != models.StateDayEndedNoTrade {
		t.Fatalf("state = %s, want %s", day.State, models.StateDayEndedNoTrade)
	}
	if day.Reason != "no trigger before entry deadline" {
		t.Errorf("reason = %q", day.Reason)
	}
	stored, err := fix.store.GetDay(context.Background(), fix.date)
	if err != nil {
		t.Fatalf("GetDay: %v", err)
	}
	if stored == nil || !stored.State.IsTerminal() {
		t.Fatalf("stored day = %+v, want terminal", stored)
	}
}

func TestEngineRecoversFilledDayFromStoredDecision(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_recover.db", 2025, time.August, 25, 10, 30)
	ctx := context.Background()

	// A crash between persisting the decision and the FILLED
	// transition leaves a monitoring-state day with an order on the
	// books.
	if err := fix.store.SaveDayState(ctx, fix.date, models.StateMonitoringA, "setup A triggered at 6760.00"); err != nil {
		t.Fatalf("SaveDayState: %v", err)
	}
	decision := &models.TradeDecision{
		Date:             fix.date,
		Setup:            models.SetupA,
		Spread:           models.Spread{Type: models.OptionPut, ShortStrike: 6760, LongStrike: 6750},
		ReferencePrice:   6760,
		TriggerTime:      time.Date(2025, 8, 25, 10, 0, 0, 0, fix.sess.Location()),
		FillTime:         time.Date(2025, 8, 25, 10, 20, 0, 0, fix.sess.Location()),
		GrossCredit:      4.70,
		NetCredit:        4.60,
		Quantity:         9,
		RiskBudget:       5000,
		MaxLossPerSpread: 540,
		EquityBefore:     100000,
		OrderID:          "PAPER_9",
		OrderStatus:      "ACCEPTED",
	}
	if err := fix.store.SaveDecision(ctx, decision); err != nil {
		t.Fatalf("SaveDecision: %v", err)
	}

	day, err := fix.engine.RunDay(ctx)
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if day.State != models.StateFilled {
		t.Fatalf("state = %s, want %s", day.State, models.StateFilled)
	}
	if day.Decision == nil || day.Decision.OrderID != "PAPER_9" {
		t.Fatalf("decision = %+v, want stored PAPER_9", day.Decision)
	}
	if len(fix.paper.Orders()) != 0 {
		t.Errorf("recovery placed %d orders, want 0", len(fix.paper.Orders()))
	}
}

func TestEngineSettleDayClosesOutInterruptedDay(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_settle_stale.db", 2025, time.August, 25, 16, 15)
	ctx := context.Background()

	// A watch that was killed mid-poll leaves the day in a monitoring
	// state with no decision.
	if err := fix.store.SaveDayState(ctx, fix.date, models.StateMonitoringA, "setup A triggered at 6760.00"); err != nil {
		t.Fatalf("SaveDayState: %v", err)
	}

	day, err := fix.engine.SettleDay(ctx, fix.date)
	if err != nil {
		t.Fatalf("SettleDay: %v", err)
	}
	if day.State != models.StateDayEndedNoTrade {
		t.Fatalf("state = %s, want %s", day.State, models.StateDayEndedNoTrade)
	}
	if day.Reason != "no acceptable credit before entry deadline" {
		t.Errorf("reason = %q", day.Reason)
	}
	if day.Settlement != nil {
		t.Errorf("settlement = %+v, want none", day.Settlement)
	}

	// A second pass sees a terminal day without a decision and leaves
	// it alone.
	again, err := fix.engine.SettleDay(ctx, fix.date)
	if err != nil {
		t.Fatalf("second SettleDay: %v", err)
	}
	if again == nil || again.State != models.StateDayEndedNoTrade || again.Settlement != nil {
		t.Fatalf("second settle = %+v, want unchanged terminal day", again)
	}
}

func TestEngineSettleDay(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_settle.db", 2025, time.August, 25, 9, 25)
	journalPath := "test_engine_settle_journal.csv"
	t.Cleanup(func() { os.Remove(journalPath) })

	// Re-wire the engine with a journal attached.
	fix.engine = NewEngine(testConfig(), fix.paper, fix.store, fix.sess, zerolog.Nop(), EngineOptions{
		Clock:   fix.clock,
		Retry:   fastRetry(),
		Journal: journal.NewCSVJournal(journalPath),
	})

	fix.paper.SetCandles([]models.Candle{
		fix.candleAt(9, 30, 6750, 6770, 6745, 6760),
	})
	fix.paper.AddQuote(monitorQuote(5.20, 5.30, 0.50, 0.60))
	fix.paper.SetClose(6755)

	if _, err := fix.engine.RunDay(context.Background()); err != nil {
		t.Fatalf("RunDay: %v", err)
	}

	day, err := fix.engine.SettleDay(context.Background(), fix.date)
	if err != nil {
		t.Fatalf("SettleDay: %v", err)
	}
	s := day.Settlement
	if s == nil {
		t.Fatal("day has no settlement")
	}
	// Short put 6760 vs close 6755: intrinsic 5.00. Net 4.60 in,
	// 5.00 out: -40 per spread, nine spreads.
	if s.ClosePrice != 6755 {
		t.Errorf("close = %v, want 6755", s.ClosePrice)
	}
	if !engineFloatEq(s.SettlementValue, 5) {
		t.Errorf("settlement value = %v, want 5", s.SettlementValue)
	}
	if !engineFloatEq(s.PnLPerSpread, -40) {
		t.Errorf("pnl per spread = %v, want -40", s.PnLPerSpread)
	}
	if !engineFloatEq(s.TotalPnL, -360) {
		t.Errorf("total pnl = %v, want -360", s.TotalPnL)
	}

	rows, err := journal.NewCSVJournal(journalPath).ReadAll()
	if err != nil {
		t.Fatalf("journal read: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("journal rows = %d, want 1", len(rows))
	}
	if !engineFloatEq(rows[0].TotalPnL, -360) {
		t.Errorf("journal pnl = %v, want -360", rows[0].TotalPnL)
	}

	// Settling again must not duplicate anything.
	again, err := fix.engine.SettleDay(context.Background(), fix.date)
	if err != nil {
		t.Fatalf("second SettleDay: %v", err)
	}
	if !engineFloatEq(again.Settlement.TotalPnL, -360) {
		t.Errorf("second settle pnl = %v, want -360", again.Settlement.TotalPnL)
	}
	rows, err = journal.NewCSVJournal(journalPath).ReadAll()
	if err != nil {
		t.Fatalf("journal reread: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("journal rows after resettle = %d, want 1", len(rows))
	}
}

func TestEngineSettleDayWithoutDecisionIsNoOp(t *testing.T) {
	fix := newEngineFixture(t, "test_engine_settle_notrade.db", 2025, time.August, 25, 9, 25)
	ctx := context.Background()

	// A day that ended without a trade. The scripted close is absent,
	// so any close fetch would error out.
	if err := fix.store.SaveDayState(ctx, fix.date, models.StateDayEndedNoTrade, "no trigger before entry deadline"); err != nil {
		t.Fatalf("SaveDayState: %v", err)
	}

	day, err := fix.engine.SettleDay(ctx, fix.date)
	if err != nil {
		t.Fatalf("SettleDay: %v", err)
	}
	if day == nil || day.Settlement != nil {
		t.Fatalf("day = %+v, want recorded day without settlement", day)
	}

	// A date with no record at all settles to nothing.
	unknown := fix.date.AddDate(0, 0, -7)
	day, err = fix.engine.SettleDay(ctx, unknown)
	if err != nil {
		t.Fatalf("SettleDay unknown date: %v", err)
	}
	if day != nil {
		t.Errorf("unknown date = %+v, want nil", day)
	}
}
