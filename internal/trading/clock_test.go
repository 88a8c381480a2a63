package trading

import (
	"sync"
	"time"
)

// fakeClock drives engine and monitor tests without real sleeping.
// After advances the clock by the requested duration and fires
// immediately, so a full trading day runs in microseconds. With
// blockAfter set the returned channel never fires, which makes context
// cancellation the only way out of a wait.
type fakeClock struct {
	mu         sync.Mutex
	now        time.Time
	blockAfter bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blockAfter {
		return make(chan time.Time)
	}
	f.now = f.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- f.now
	return ch
}
