// Package scheduler drives the trading engine on the exchange clock:
// one entry run each morning and one settlement pass after the close.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"spx-orb-trader/internal/config"
	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/models"
)

// Driver is the subset of the engine the scheduler invokes.
type Driver interface {
	RunDay(ctx context.Context) (*models.DayResult, error)
	SettleDay(ctx context.Context, date time.Time) (*models.DayResult, error)
}

// Scheduler owns the cron instance. Specs use six fields with seconds
// first and are evaluated in the exchange timezone, so "0 28 9 * * MON-FRI"
// fires at 09:28:00 ET every weekday regardless of the host clock.
type Scheduler struct {
	cron   *cron.Cron
	driver Driver
	log    zerolog.Logger
}

// New creates a scheduler whose cron expressions are evaluated in loc.
func New(driver Driver, loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		driver: driver,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Schedule registers the entry and settlement jobs. Jobs run with
// baseCtx, so cancelling it aborts an in-flight trading day.
func (s *Scheduler) Schedule(baseCtx context.Context, cfg config.ScheduleConfig) error {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if _, err := s.cron.AddFunc(cfg.RunAt, func() { s.runEntry(baseCtx) }); err != nil {
		return apperrors.Wrapf(err, "invalid run_at spec %q", cfg.RunAt)
	}
	if _, err := s.cron.AddFunc(cfg.SettleAt, func() { s.runSettle(baseCtx) }); err != nil {
		return apperrors.Wrapf(err, "invalid settle_at spec %q", cfg.SettleAt)
	}
	return nil
}

func (s *Scheduler) runEntry(ctx context.Context) {
	s.log.Info().Msg("scheduled entry run starting")
	day, err := s.driver.RunDay(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled entry run failed")
		return
	}
	if day != nil {
		s.log.Info().
			Str("state", string(day.State)).
			Msg("scheduled entry run finished")
	}
}

func (s *Scheduler) runSettle(ctx context.Context) {
	s.log.Info().Msg("scheduled settlement starting")
	day, err := s.driver.SettleDay(ctx, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled settlement failed")
		return
	}
	if day == nil || day.Settlement == nil {
		s.log.Info().Msg("nothing to settle")
		return
	}
	s.log.Info().
		Float64("total_pnl", day.Settlement.TotalPnL).
		Msg("scheduled settlement finished")
}

// Start begins firing jobs. Each trigger runs in its own goroutine, so
// a morning run still monitoring quotes never delays the settlement job.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop halts scheduling and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Next returns the upcoming fire times, soonest first. Empty until
// Start has been called.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	times := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		if !e.Next.IsZero() {
			times = append(times, e.Next)
		}
	}
	for i := 1; i < len(times); i++ {
		for j := i; j > 0 && times[j].Before(times[j-1]); j-- {
			times[j], times[j-1] = times[j-1], times[j]
		}
	}
	return times
}
