package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"spx-orb-trader/internal/broker"
	"spx-orb-trader/internal/config"
	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/journal"
	"spx-orb-trader/internal/logging"
	"spx-orb-trader/internal/metrics"
	"spx-orb-trader/internal/models"
	"spx-orb-trader/internal/notify"
	"spx-orb-trader/internal/store"
	"spx-orb-trader/internal/strategy"
	"spx-orb-trader/pkg/utils"
)

// Engine drives one trading day through the decision state machine:
// capture the opening range, evaluate the two setups in order, watch
// the locked spread for an acceptable credit, size and place the order,
// and settle at the close. At most one trade per day, ever.
type Engine struct {
	cfg       *config.Config
	broker    broker.Broker
	store     store.DataStore
	session   *Session
	monitor   *QuoteMonitor
	preflight *PreflightChecker
	journal   *journal.CSVJournal
	archiver  *journal.Archiver
	notifier  notify.Notifier
	clock     Clock
	retry     utils.RetryConfig
	log       zerolog.Logger
}

// EngineOptions carries the optional collaborators. Zero values get
// safe defaults: no journal, no archive, no notifications, real clock,
// default retry policy.
type EngineOptions struct {
	Journal  *journal.CSVJournal
	Archiver *journal.Archiver
	Notifier notify.Notifier
	Clock    Clock
	Retry    *utils.RetryConfig
}

// NewEngine creates an engine over the given broker and store.
func NewEngine(cfg *config.Config, b broker.Broker, st store.DataStore, session *Session, log zerolog.Logger, opts EngineOptions) *Engine {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewNoOpNotifier()
	}
	clock := opts.Clock
	if clock == nil {
		clock = NewRealClock()
	}
	retry := utils.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	e := &Engine{
		cfg:      cfg,
		broker:   b,
		store:    st,
		session:  session,
		journal:  opts.Journal,
		archiver: opts.Archiver,
		notifier: notifier,
		clock:    clock,
		retry:    retry,
		log:      log.With().Str("component", "engine").Logger(),
	}
	e.monitor = NewQuoteMonitor(b, clock, cfg.Trading.QuotePollInterval, cfg.Trading.MinNetCredit, cfg.Trading.SlippageBuffer, log)
	e.preflight = NewPreflightChecker(session, st, b)
	return e
}

// RunDay executes the entry half of the day for the current date:
// AWAITING_OR through FILLED or DAY_ENDED_NO_TRADE. Safe to call again
// on a completed day; it returns the stored result without re-running.
// A cancelled run leaves the day in a non-terminal state so a restart
// inside the entry window can pick it up; once the deadline has passed
// an interrupted day is closed out as DAY_ENDED_NO_TRADE.
func (e *Engine) RunDay(ctx context.Context) (*models.DayResult, error) {
	now := e.clock.Now().In(e.session.Location())
	date := e.session.DayOf(now)
	log := logging.WithDay(e.log, date)

	existing, err := e.store.GetDay(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.State.IsTerminal() {
		log.Info().Str("state", string(existing.State)).Msg("Day already complete")
		return existing, nil
	}
	if existing != nil && existing.Decision != nil {
		// A decision on the books means the order already went out;
		// finish the bookkeeping instead of deciding again.
		log.Warn().Str("state", string(existing.State)).Str("order_id", existing.Decision.OrderID).Msg("Recovering filled day from stored decision")
		if err := e.transition(ctx, existing, models.StateFilled, fmt.Sprintf("order %s %s", existing.Decision.OrderID, existing.Decision.OrderStatus)); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if existing != nil && !now.Before(e.session.EntryDeadline(date)) {
		log.Info().Str("state", string(existing.State)).Msg("Interrupted day past the entry deadline; closing out")
		return e.endDay(ctx, existing, staleDayReason(existing.State))
	}

	pre := e.preflight.CheckEntry(ctx, date, now)
	if !pre.OK {
		log.Warn().
			Str("reason", pre.BlockReason).
			Strs("checks_failed", pre.ChecksFailed).
			Msg("Entry preflight blocked")
		return nil, apperrors.Wrap(apperrors.ErrMarketClosed, pre.BlockReason)
	}

	day := &models.DayResult{Date: date, State: models.StateAwaitingOR}
	if err := e.store.SaveDayState(ctx, date, models.StateAwaitingOR, ""); err != nil {
		return nil, err
	}
	metrics.SetDayState(string(models.StateAwaitingOR))

	rangeClose := e.session.RangeClose(date)
	if err := e.waitUntil(ctx, rangeClose); err != nil {
		return day, err
	}

	or, err := e.fetchOpeningRange(ctx, date)
	if err != nil {
		log.Error().Err(err).Msg("Opening range unavailable")
		e.notifier.SendError(ctx, err, "opening range fetch")
		return e.endDay(ctx, day, "opening range unavailable")
	}
	day.OpeningRange = &or
	if err := e.store.SaveOpeningRange(ctx, date, or); err != nil {
		return nil, err
	}
	log.Info().
		Float64("open", or.Open).
		Float64("high", or.High).
		Float64("low", or.Low).
		Float64("close", or.Close).
		Msg("Opening range captured")

	if err := e.transition(ctx, day, models.StateEvaluatingSetupA, ""); err != nil {
		return nil, err
	}
	if sig, ok := strategy.EvaluateRange(or); ok {
		return e.runSetup(ctx, day, sig, models.StateMonitoringA, rangeClose)
	}
	log.Info().Msg("Bullish range not confirmed; scanning for breakdown")

	if err := e.transition(ctx, day, models.StateEvaluatingSetupB, ""); err != nil {
		return nil, err
	}
	for _, windowClose := range e.session.WindowCloses(date) {
		if err := e.waitUntil(ctx, windowClose); err != nil {
			return day, err
		}
		candle, err := e.fetchWindowCandle(ctx, windowClose)
		if err != nil {
			log.Warn().Err(err).Time("window", windowClose).Msg("Window candle unavailable; skipping window")
			continue
		}
		if sig, ok := strategy.EvaluateBreakdown(or, candle); ok {
			return e.runSetup(ctx, day, sig, models.StateMonitoringB, windowClose)
		}
		log.Debug().
			Time("window", windowClose).
			Float64("close", candle.Close).
			Float64("or_low", or.Low).
			Msg("No breakdown")
	}

	return e.endDay(ctx, day, "no trigger before entry deadline")
}

// runSetup locks the spread for a triggered setup and watches its
// credit until the entry deadline. The strikes are derived once from
// the trigger reference and never change afterwards; if the watch times
// out the day ends with no trade, regardless of which setup triggered.
func (e *Engine) runSetup(ctx context.Context, day *models.DayResult, sig strategy.Signal, state models.DayState, triggeredAt time.Time) (*models.DayResult, error) {
	log := logging.WithDay(e.log, day.Date)

	spread := strategy.BuildSpread(sig, e.cfg.Trading.SpreadWidth)
	logging.LogDecision(log, sig.Setup, spread, sig.Reference)

	reason := fmt.Sprintf("setup %s triggered at %.2f", sig.Setup, sig.Reference)
	if err := e.transition(ctx, day, state, reason); err != nil {
		return nil, err
	}

	// 0DTE: the spread expires on the trade date itself.
	shortSym, longSym := broker.SpreadSymbols(e.cfg.Trading.OptionRoot, day.Date, spread)
	deadline := e.session.EntryDeadline(day.Date)

	watch, err := e.monitor.Watch(ctx, shortSym, longSym, deadline)
	if err != nil {
		return day, err
	}
	if watch.Outcome != MonitorAccepted {
		return e.endDay(ctx, day, "no acceptable credit before entry deadline")
	}

	return e.fill(ctx, day, sig, spread, watch, triggeredAt)
}

// fill sizes the position against live account equity and places the
// spread order. Any failure past this point ends the day without a
// trade; there is no second attempt.
func (e *Engine) fill(ctx context.Context, day *models.DayResult, sig strategy.Signal, spread models.Spread, watch MonitorResult, triggeredAt time.Time) (*models.DayResult, error) {
	log := logging.WithDay(e.log, day.Date)

	equity, err := utils.RetryWithResult(ctx, e.retry, func() (float64, error) {
		return e.broker.GetAccountEquity(ctx)
	})
	if err != nil {
		log.Error().Err(err).Msg("Account equity unavailable")
		e.notifier.SendError(ctx, err, "account equity fetch")
		return e.endDay(ctx, day, "account equity unavailable")
	}
	metrics.SetEquity(equity)

	sizing, err := strategy.SizePosition(equity, e.cfg.Risk.DailyRiskFraction, watch.Credit, spread.Width(), e.cfg.Risk.MinContracts, e.cfg.Risk.MaxContracts)
	if err != nil {
		log.Error().Err(err).Msg("Position sizing failed")
		e.notifier.SendError(ctx, err, "position sizing")
		return e.endDay(ctx, day, "position sizing failed")
	}
	log.Info().
		Float64("equity", equity).
		Float64("risk_budget", sizing.RiskBudget).
		Float64("max_loss_per_spread", sizing.MaxLossPerSpread).
		Int("quantity", sizing.Quantity).
		Msg("Position sized")

	order := &models.SpreadOrder{
		Spread:     spread,
		OptionRoot: e.cfg.Trading.OptionRoot,
		Expiry:     day.Date,
		Quantity:   sizing.Quantity,
		LimitPrice: watch.Credit.Gross,
	}
	result, err := e.broker.PlaceSpreadOrder(ctx, order)
	if err != nil {
		log.Error().Err(err).Msg("Order placement failed")
		e.notifier.SendError(ctx, err, "order placement")
		return e.endDay(ctx, day, "order rejected")
	}
	logging.LogOrder(log, result.OrderID, spread, order.Quantity, order.LimitPrice, result.Status)
	if result.DryRun {
		metrics.IncOrderPlaced("dry_run")
	} else {
		metrics.IncOrderPlaced("live")
	}

	decision := &models.TradeDecision{
		Date:             day.Date,
		Setup:            sig.Setup,
		Spread:           spread,
		ReferencePrice:   sig.Reference,
		TriggerTime:      triggeredAt,
		FillTime:         result.PlacedAt,
		GrossCredit:      watch.Credit.Gross,
		NetCredit:        watch.Credit.Net,
		Quantity:         sizing.Quantity,
		RiskBudget:       sizing.RiskBudget,
		MaxLossPerSpread: sizing.MaxLossPerSpread,
		EquityBefore:     equity,
		OrderID:          result.OrderID,
		OrderStatus:      result.Status,
	}
	if err := e.store.SaveDecision(ctx, decision); err != nil {
		return nil, err
	}
	day.Decision = decision
	metrics.IncDecision(string(sig.Setup))

	if err := e.transition(ctx, day, models.StateFilled, fmt.Sprintf("order %s %s", result.OrderID, result.Status)); err != nil {
		return nil, err
	}
	if err := e.notifier.SendFill(ctx, decision); err != nil {
		log.Warn().Err(err).Msg("Fill notification failed")
	}
	return day, nil
}

// SettleDay runs the settlement half for the given date. Days without
// a decision are skipped, already-settled days return the stored
// result, and a day interrupted before any fill is closed out as
// DAY_ENDED_NO_TRADE once its entry deadline has passed. Call after
// the cash close is published.
func (e *Engine) SettleDay(ctx context.Context, date time.Time) (*models.DayResult, error) {
	date = e.session.DayOf(date)
	log := logging.WithDay(e.log, date)

	day, err := e.store.GetDay(ctx, date)
	if err != nil {
		return nil, err
	}
	if day == nil {
		log.Info().Msg("No day on record; nothing to settle")
		return nil, nil
	}
	if day.Decision == nil {
		now := e.clock.Now().In(e.session.Location())
		if !day.State.IsTerminal() && !now.Before(e.session.EntryDeadline(date)) {
			log.Info().Str("state", string(day.State)).Msg("Interrupted day past the entry deadline; closing out")
			return e.endDay(ctx, day, staleDayReason(day.State))
		}
		log.Info().Msg("No decision on record; nothing to settle")
		return day, nil
	}
	if day.Settlement != nil {
		log.Info().Float64("total_pnl", day.Settlement.TotalPnL).Msg("Day already settled")
		return day, nil
	}

	closePrice, err := utils.RetryWithResult(ctx, e.retry, func() (float64, error) {
		return e.broker.GetIndexClose(ctx, e.cfg.Trading.IndexSymbol, date)
	})
	if err != nil {
		log.Error().Err(err).Msg("Settlement close unavailable")
		e.notifier.SendError(ctx, err, "settlement close fetch")
		return nil, err
	}

	settlement := strategy.SettleSpread(day.Decision.Spread, day.Decision.NetCredit, day.Decision.Quantity, closePrice, e.clock.Now())
	if err := e.store.SaveSettlement(ctx, date, &settlement); err != nil {
		return nil, err
	}
	day.Settlement = &settlement
	logging.LogSettlement(log, settlement.ClosePrice, settlement.SettlementValue, settlement.TotalPnL)

	metrics.SetDayPnL(settlement.TotalPnL)
	if settlement.TotalPnL >= 0 {
		metrics.IncSettlement("win")
	} else {
		metrics.IncSettlement("loss")
	}

	if e.journal != nil {
		if err := e.journal.Append(journal.NewTradeRow(day.Decision, &settlement)); err != nil {
			log.Warn().Err(err).Msg("Journal append failed")
		} else if e.archiver != nil {
			key, aerr := e.archiver.ArchiveJournal(ctx, e.journal.Path(), date)
			if aerr != nil {
				log.Warn().Err(aerr).Msg("Journal archive failed")
			} else {
				log.Info().Str("key", key).Msg("Journal archived")
			}
		}
	}

	if err := e.notifier.SendDayReport(ctx, day); err != nil {
		log.Warn().Err(err).Msg("Day report notification failed")
	}
	return day, nil
}

// transition persists a state change and updates the in-flight day.
func (e *Engine) transition(ctx context.Context, day *models.DayResult, to models.DayState, reason string) error {
	from := day.State
	if err := e.store.SaveDayState(ctx, day.Date, to, reason); err != nil {
		return err
	}
	day.State = to
	day.Reason = reason
	metrics.SetDayState(string(to))
	logging.LogTransition(logging.WithDay(e.log, day.Date), from, to, reason)
	return nil
}

// staleDayReason picks the terminal reason for a day interrupted
// before any fill: a broken-off watch means credit never arrived,
// anything earlier means no setup triggered.
func staleDayReason(state models.DayState) string {
	if state == models.StateMonitoringA || state == models.StateMonitoringB {
		return "no acceptable credit before entry deadline"
	}
	return "no trigger before entry deadline"
}

// endDay moves the day to DAY_ENDED_NO_TRADE and sends the day report.
func (e *Engine) endDay(ctx context.Context, day *models.DayResult, reason string) (*models.DayResult, error) {
	if err := e.transition(ctx, day, models.StateDayEndedNoTrade, reason); err != nil {
		return nil, err
	}
	if err := e.notifier.SendDayReport(ctx, day); err != nil {
		logging.WithDay(e.log, day.Date).Warn().Err(err).Msg("Day report notification failed")
	}
	return day, nil
}

// fetchOpeningRange pulls the 09:30-10:00 candle with retries.
func (e *Engine) fetchOpeningRange(ctx context.Context, date time.Time) (models.OpeningRange, error) {
	req := broker.CandleRequest{
		Symbol:    e.cfg.Trading.IndexSymbol,
		Start:     e.session.MarketOpen(date),
		End:       e.session.RangeClose(date),
		Frequency: 30,
	}
	candles, err := utils.RetryWithResult(ctx, e.retry, func() ([]models.Candle, error) {
		return e.broker.GetCandles(ctx, req)
	})
	if err != nil {
		return models.OpeningRange{}, err
	}
	if len(candles) == 0 {
		return models.OpeningRange{}, apperrors.NewDataError("candles", req.Symbol, "empty opening range response", apperrors.ErrDataUnavailable)
	}

	or, err := strategy.RangeFromCandle(candles[0])
	if err != nil {
		return models.OpeningRange{}, err
	}
	or.Date = e.session.DayOf(date)
	return or, nil
}

// fetchWindowCandle pulls the 30-minute candle ending at windowClose.
func (e *Engine) fetchWindowCandle(ctx context.Context, windowClose time.Time) (models.Candle, error) {
	req := broker.CandleRequest{
		Symbol:    e.cfg.Trading.IndexSymbol,
		Start:     windowClose.Add(-30 * time.Minute),
		End:       windowClose,
		Frequency: 30,
	}
	candles, err := utils.RetryWithResult(ctx, e.retry, func() ([]models.Candle, error) {
		return e.broker.GetCandles(ctx, req)
	})
	if err != nil {
		return models.Candle{}, err
	}
	if len(candles) == 0 {
		return models.Candle{}, apperrors.NewDataError("candles", req.Symbol, "empty window candle response", apperrors.ErrDataUnavailable)
	}
	return candles[len(candles)-1], nil
}

// waitUntil blocks until the clock reaches target or ctx is cancelled.
// Returns immediately when target is already past.
func (e *Engine) waitUntil(ctx context.Context, target time.Time) error {
	for {
		now := e.clock.Now()
		if !now.Before(target) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(target.Sub(now)):
		}
	}
}
