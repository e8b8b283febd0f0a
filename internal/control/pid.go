package control

import (
	"math"

	"github.com/san-kum/motorkit/internal/clock"
)

// PositionGains configures a PositionPID.
type PositionGains struct {
	KP, KI, KD float64
	// KBias is added to every output.
	KBias float64
	// ErrorThreshold is the error magnitude the integral ignores.
	ErrorThreshold float64
	// IntegralLimit caps the magnitude the integral may keep accumulating from.
	IntegralLimit float64
}

// PositionPID closes a loop on absolute position.
//
// The integral only accumulates outside ErrorThreshold and below
// IntegralLimit, is zeroed whenever the error reaches zero or changes sign,
// and is otherwise held so that KI*integral stays inside the output range.
// The output itself is not saturated.
type PositionPID struct {
	PositionGains

	clk  clock.Clock
	step clock.Timestep

	target     float64
	err        float64
	prevErr    float64
	integral   float64
	derivative float64
	output     float64
}

func NewPositionPID(clk clock.Clock, kp, ki, kd float64) *PositionPID {
	return NewPositionPIDWithGains(clk, PositionGains{
		KP:            kp,
		KI:            ki,
		KD:            kd,
		IntegralLimit: DefaultIntegralLimit,
	})
}

func NewPositionPIDWithGains(clk clock.Clock, g PositionGains) *PositionPID {
	return &PositionPID{PositionGains: g, clk: clk}
}

func (p *PositionPID) Step(sens float64) float64 {
	dt, ok := p.step.Advance(p.clk.Millis())
	if !ok {
		return 0
	}
	dtMs := float64(dt)

	p.err = p.target - sens

	if p.KI != 0 && math.Abs(p.err) > p.ErrorThreshold && math.Abs(p.integral) < p.IntegralLimit {
		p.integral += p.err * dtMs
	}

	if p.err == 0 || sign(p.err) != sign(p.prevErr) {
		p.integral = 0
	} else {
		if p.integral*p.KI > MaxOutput {
			p.integral = MaxOutput / p.KI
		}
		if p.integral*p.KI < MinOutput {
			p.integral = MinOutput / p.KI
		}
	}

	p.derivative = (p.err - p.prevErr) / dtMs
	p.prevErr = p.err

	p.output = p.err*p.KP + p.integral*p.KI + p.derivative*p.KD + p.KBias
	return p.output
}

func (p *PositionPID) SetTarget(target float64) { p.target = target }
func (p *PositionPID) Target() float64          { return p.target }
func (p *PositionPID) Error() float64           { return p.err }
func (p *PositionPID) Integral() float64        { return p.integral }
func (p *PositionPID) Derivative() float64      { return p.derivative }
func (p *PositionPID) Output() float64          { return p.output }

// Reset clears error history, integral and output. Gains and target are kept.
func (p *PositionPID) Reset() {
	p.step.Reset()
	p.err = 0
	p.prevErr = 0
	p.integral = 0
	p.derivative = 0
	p.output = 0
}

// Params returns tunable parameters for live adjustment
func (p *PositionPID) Params() map[string]float64 {
	return map[string]float64{
		"kp":        p.KP,
		"ki":        p.KI,
		"kd":        p.KD,
		"bias":      p.KBias,
		"threshold": p.ErrorThreshold,
		"ilimit":    p.IntegralLimit,
		"target":    p.target,
	}
}

// SetParam adjusts a PID parameter
func (p *PositionPID) SetParam(name string, value float64) error {
	switch name {
	case "kp":
		p.KP = value
	case "ki":
		p.KI = value
	case "kd":
		p.KD = value
	case "bias":
		p.KBias = value
	case "threshold":
		p.ErrorThreshold = value
	case "ilimit":
		p.IntegralLimit = value
	case "target":
		p.target = value
	default:
		return unknownParam(name)
	}
	return nil
}
