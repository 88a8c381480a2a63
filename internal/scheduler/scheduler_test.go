package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spx-orb-trader/internal/config"
	"spx-orb-trader/internal/models"
)

type fakeDriver struct {
	mu      sync.Mutex
	runs    int
	settles []time.Time
	fired   chan struct{}
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{fired: make(chan struct{}, 8)}
}

func (f *fakeDriver) RunDay(ctx context.Context) (*models.DayResult, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	select {
	case f.fired <- struct{}{}:
	default:
	}
	return &models.DayResult{State: models.StateDayEndedNoTrade}, nil
}

func (f *fakeDriver) SettleDay(ctx context.Context, date time.Time) (*models.DayResult, error) {
	f.mu.Lock()
	f.settles = append(f.settles, date)
	f.mu.Unlock()
	return &models.DayResult{State: models.StateDayEndedNoTrade}, nil
}

func (f *fakeDriver) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New(newFakeDriver(), time.UTC, zerolog.Nop())
	err := s.Schedule(context.Background(), config.ScheduleConfig{
		RunAt:    "not a cron spec",
		SettleAt: "0 15 16 * * MON-FRI",
	})
	if err == nil {
		t.Fatal("expected error for invalid run_at spec")
	}

	s = New(newFakeDriver(), time.UTC, zerolog.Nop())
	err = s.Schedule(context.Background(), config.ScheduleConfig{
		RunAt:    "0 28 9 * * MON-FRI",
		SettleAt: "whenever",
	})
	if err == nil {
		t.Fatal("expected error for invalid settle_at spec")
	}
}

func TestSchedulerFiresEntryJob(t *testing.T) {
	driver := newFakeDriver()
	s := New(driver, time.UTC, zerolog.Nop())
	err := s.Schedule(context.Background(), config.ScheduleConfig{
		RunAt:    "@every 1s",
		SettleAt: "@every 1h",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-driver.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("entry job never fired")
	}
	if driver.runCount() < 1 {
		t.Fatalf("runs = %d, want at least 1", driver.runCount())
	}
}

func TestSchedulerJobsInvokeDriver(t *testing.T) {
	driver := newFakeDriver()
	s := New(driver, time.UTC, zerolog.Nop())

	s.runEntry(context.Background())
	s.runSettle(context.Background())

	if driver.runCount() != 1 {
		t.Fatalf("runs = %d, want 1", driver.runCount())
	}
	driver.mu.Lock()
	defer driver.mu.Unlock()
	if len(driver.settles) != 1 {
		t.Fatalf("settles = %d, want 1", len(driver.settles))
	}
	if age := time.Since(driver.settles[0]); age < 0 || age > time.Minute {
		t.Errorf("settle date %v is not current", driver.settles[0])
	}
}

func TestSchedulerNextAfterStart(t *testing.T) {
	s := New(newFakeDriver(), time.UTC, zerolog.Nop())
	err := s.Schedule(context.Background(), config.ScheduleConfig{
		RunAt:    "0 28 9 * * MON-FRI",
		SettleAt: "0 15 16 * * MON-FRI",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if got := s.Next(); len(got) != 0 {
		t.Errorf("Next before Start = %v, want empty", got)
	}

	s.Start()
	defer s.Stop()

	next := s.Next()
	if len(next) != 2 {
		t.Fatalf("Next returned %d times, want 2", len(next))
	}
	now := time.Now()
	for _, ts := range next {
		if !ts.After(now) {
			t.Errorf("next fire time %v is not in the future", ts)
		}
	}
	if next[1].Before(next[0]) {
		t.Errorf("next times not sorted: %v", next)
	}
}
