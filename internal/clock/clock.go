// Package clock supplies the monotonic millisecond time base that controllers
// and the slew limiter derive their timesteps from.
//
// Time is a uint32 millisecond counter. Differences are taken with unsigned
// subtraction so a single counter wraparound still yields the right interval.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock exposes a monotonically increasing millisecond counter.
type Clock interface {
	Millis() uint32
}

// System reads the process monotonic clock, counting from construction.
type System struct {
	start time.Time
}

func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Millis() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

// Manual is a clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	now atomic.Uint32
}

func NewManual(start uint32) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

func (m *Manual) Millis() uint32 { return m.now.Load() }

// Advance moves the clock forward by ms and returns the new time.
func (m *Manual) Advance(ms uint32) uint32 { return m.now.Add(ms) }

func (m *Manual) Set(ms uint32) { m.now.Store(ms) }

// Timestep tracks the interval between consecutive samples of one consumer.
type Timestep struct {
	Interval uint32
	Last     uint32
}

// Advance records a sample taken at now. It reports false, leaving the
// timestep untouched, when no time has elapsed since the previous sample.
func (t *Timestep) Advance(now uint32) (uint32, bool) {
	dt := now - t.Last
	if dt == 0 {
		return 0, false
	}
	t.Interval = dt
	t.Last = now
	return dt, true
}

func (t *Timestep) Reset() {
	t.Interval = 0
	t.Last = 0
}
