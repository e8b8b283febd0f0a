package control

import (
	"github.com/san-kum/motorkit/internal/clock"
	"github.com/san-kum/motorkit/internal/filter"
)

// VelocityEstimator turns successive encoder positions into a DEMA-smoothed
// velocity in revolutions per minute.
type VelocityEstimator struct {
	clk         clock.Clock
	step        clock.Timestep
	ticksPerRev float64

	prevPosition float64
	velocity     float64

	filter filter.DEMA
	alpha  float64
	beta   float64
}

func NewVelocityEstimator(clk clock.Clock, ticksPerRev float64) *VelocityEstimator {
	return &VelocityEstimator{
		clk:         clk,
		ticksPerRev: ticksPerRev,
		alpha:       DefaultFilterAlpha,
		beta:        DefaultFilterBeta,
	}
}

// Estimate folds in a position sample. It reports false, changing nothing,
// when the clock has not advanced since the previous sample.
func (e *VelocityEstimator) Estimate(sens float64) (float64, bool) {
	dt, ok := e.step.Advance(e.clk.Millis())
	if !ok {
		return 0, false
	}

	raw := (1000.0 / float64(dt)) * (sens - e.prevPosition) * 60.0 / e.ticksPerRev
	e.prevPosition = sens

	e.velocity = e.filter.Filter(raw, e.alpha, e.beta)
	return e.velocity, true
}

// SetFilterConstants replaces the DEMA weights.
func (e *VelocityEstimator) SetFilterConstants(alpha, beta float64) {
	e.alpha = alpha
	e.beta = beta
}

func (e *VelocityEstimator) FilterConstants() (alpha, beta float64) { return e.alpha, e.beta }

func (e *VelocityEstimator) Velocity() float64 { return e.velocity }

// Interval is the elapsed milliseconds of the last accepted sample.
func (e *VelocityEstimator) Interval() uint32 { return e.step.Interval }

func (e *VelocityEstimator) PrevPosition() float64 { return e.prevPosition }

func (e *VelocityEstimator) TicksPerRev() float64 { return e.ticksPerRev }

// Reset clears sample history and the filter; tuning is kept.
func (e *VelocityEstimator) Reset() {
	e.step.Reset()
	e.prevPosition = 0
	e.velocity = 0
	e.filter.Reset()
}
