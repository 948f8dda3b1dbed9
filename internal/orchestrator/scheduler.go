package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/SentientFX/internal/events"
)

const (
	DefaultTickRate = 30
	MinTickRate     = 1
	MaxTickRate     = 240
)

// Scheduler ticks a Runtime at a fixed rate. Deadlines advance by whole
// intervals so ticks do not drift; when the loop falls more than two
// intervals behind it resynchronizes instead of bursting.
type Scheduler struct {
	rt       *Runtime
	interval atomic.Int64
	changed  chan struct{}
}

// NewScheduler creates a scheduler for rt at rate ticks per second.
func NewScheduler(rt *Runtime, rate int) *Scheduler {
	s := &Scheduler{rt: rt, changed: make(chan struct{}, 1)}
	s.interval.Store(int64(intervalFor(rate)))
	return s
}

// ClampTickRate bounds rate to [MinTickRate, MaxTickRate]; zero or less
// selects DefaultTickRate.
func ClampTickRate(rate int) int {
	switch {
	case rate <= 0:
		return DefaultTickRate
	case rate > MaxTickRate:
		return MaxTickRate
	}
	return rate
}

func intervalFor(rate int) time.Duration {
	return time.Second / time.Duration(ClampTickRate(rate))
}

// SetTickRate changes the cadence. It takes effect from the next tick.
func (s *Scheduler) SetTickRate(rate int) {
	s.interval.Store(int64(intervalFor(rate)))
	select {
	case s.changed <- struct{}{}:
	default:
	}
	events.Emit("info", "tick.rate_changed", "", map[string]interface{}{"rate": ClampTickRate(rate)})
}

// TickRate returns the current rate in ticks per second.
func (s *Scheduler) TickRate() int {
	return int(time.Second / s.Interval())
}

// Interval returns the time between ticks.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Run ticks until ctx is done. The delta passed to each tick is the
// measured wall time since the previous one.
func (s *Scheduler) Run(ctx context.Context) error {
	last := time.Now()
	deadline := last.Add(s.Interval())

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.changed:
			deadline = last.Add(s.Interval())
		case <-timer.C:
			now := time.Now()
			interval := s.Interval()
			if late := now.Sub(deadline); late > interval {
				s.rt.overrun(late)
			}
			s.rt.Tick(now.Sub(last))
			last = now

			deadline = deadline.Add(interval)
			if now.Sub(deadline) > 2*interval {
				deadline = now.Add(interval)
			}
		}
		wait := time.Until(deadline)
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
	}
}
