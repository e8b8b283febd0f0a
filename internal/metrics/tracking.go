package metrics

import (
	"math"

	"github.com/san-kum/motorkit/internal/motor"
	"github.com/san-kum/motorkit/internal/sim"
)

// TrackingError is the mean absolute difference between target and the
// regulated quantity.
type TrackingError struct {
	sum     float64
	samples int
}

func NewTrackingError() *TrackingError {
	return &TrackingError{}
}

func (t *TrackingError) Name() string { return "tracking_error" }

func (t *TrackingError) Observe(s sim.Sample) {
	t.sum += math.Abs(s.Target - s.Measured)
	t.samples++
}

func (t *TrackingError) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return t.sum / float64(t.samples)
}

func (t *TrackingError) Reset() {
	t.sum = 0
	t.samples = 0
}

// Overshoot is the largest excursion past the target after the measured
// value first reached it, in target units. Each target change starts a new
// approach.
type Overshoot struct {
	target  float64
	dir     float64
	started bool
	reached bool
	max     float64
}

func NewOvershoot() *Overshoot {
	return &Overshoot{}
}

func (o *Overshoot) Name() string { return "overshoot" }

func (o *Overshoot) Observe(s sim.Sample) {
	if !o.started || s.Target != o.target {
		o.started = true
		o.target = s.Target
		o.reached = false
		o.dir = 1
		if s.Measured > s.Target {
			o.dir = -1
		}
	}

	past := (s.Measured - s.Target) * o.dir
	if !o.reached && past >= 0 {
		o.reached = true
	}
	if o.reached && past > o.max {
		o.max = past
	}
}

func (o *Overshoot) Value() float64 { return o.max }

func (o *Overshoot) Reset() { *o = Overshoot{} }

// Saturation is the fraction of samples where the applied power sat at a
// range limit.
type Saturation struct {
	hits    int
	samples int
}

func NewSaturation() *Saturation {
	return &Saturation{}
}

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(smp sim.Sample) {
	s.samples++
	if smp.Applied >= motor.MaxPower || smp.Applied <= motor.MinPower {
		s.hits++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.hits) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.hits = 0
	s.samples = 0
}
