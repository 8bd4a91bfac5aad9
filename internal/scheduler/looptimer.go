package scheduler

import (
	"context"
	"fmt"
	"time"
)

// DefaultRate is the tick rate used when none is configured.
const DefaultRate = 60

// Option configures a LoopTimer.
type Option func(*LoopTimer)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(t *LoopTimer) { t.clock = c }
}

// LoopTimer paces a loop to a fixed number of ticks per second.
type LoopTimer struct {
	rate   float64
	period time.Duration
	clock  Clock

	started  time.Time
	deadline time.Time
	ticks    uint64
	overruns uint64
	resets   uint64
}

// New returns a timer ticking rate times per second.
func New(rate float64, opts ...Option) (*LoopTimer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %v", rate)
	}
	period := time.Duration(float64(time.Second) / rate)
	if period <= 0 {
		return nil, fmt.Errorf("tick rate %v is too high", rate)
	}
	t := &LoopTimer{rate: rate, period: period, clock: SystemClock{}}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Rate is the configured ticks per second.
func (t *LoopTimer) Rate() float64 { return t.rate }

// Period is the target duration of one tick.
func (t *LoopTimer) Period() time.Duration { return t.period }

// Ticks is the number of completed ticks.
func (t *LoopTimer) Ticks() uint64 { return t.ticks }

// Overruns counts ticks that finished after their deadline.
func (t *LoopTimer) Overruns() uint64 { return t.overruns }

// Resets counts overruns that lagged by more than a period and dropped the
// backlog.
func (t *LoopTimer) Resets() uint64 { return t.resets }

// Start records the beginning of a tick. The first call anchors the schedule.
func (t *LoopTimer) Start() {
	t.started = t.clock.Now()
	if t.deadline.IsZero() {
		t.deadline = t.started
	}
}

// End finishes the tick begun by Start and waits until the next tick is due.
// It returns how long the tick's own work took. A done ctx cuts the wait
// short; the schedule is kept either way.
func (t *LoopTimer) End(ctx context.Context) time.Duration {
	now := t.clock.Now()
	elapsed := now.Sub(t.started)
	t.ticks++

	t.deadline = t.deadline.Add(t.period)
	if wait := t.deadline.Sub(now); wait > 0 {
		_ = t.clock.Sleep(ctx, wait)
		return elapsed
	}

	t.overruns++
	if now.Sub(t.deadline) > t.period {
		t.resets++
		t.deadline = now
	}
	return elapsed
}

// Reset forgets the schedule. The next Start anchors a new one.
func (t *LoopTimer) Reset() {
	t.deadline = time.Time{}
	t.started = time.Time{}
}
