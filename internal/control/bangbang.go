package control

import "github.com/san-kum/motorkit/internal/clock"

// BangBang drives HighPower at or below the target velocity and LowPower
// above it.
type BangBang struct {
	HighPower float64
	LowPower  float64

	est *VelocityEstimator

	target float64
	err    float64
	output float64
}

func NewBangBang(clk clock.Clock, highPower, lowPower, ticksPerRev float64) *BangBang {
	return &BangBang{
		HighPower: highPower,
		LowPower:  lowPower,
		est:       NewVelocityEstimator(clk, ticksPerRev),
	}
}

func (b *BangBang) StepVelocity(sens float64) float64 {
	vel, _ := b.est.Estimate(sens)
	return vel
}

func (b *BangBang) Step(sens float64) float64 {
	vel, ok := b.est.Estimate(sens)
	if !ok {
		return 0
	}

	b.err = b.target - vel
	if vel > b.target {
		b.output = b.LowPower
	} else {
		b.output = b.HighPower
	}
	return b.output
}

func (b *BangBang) SetTargetVelocity(target float64) { b.target = target }

func (b *BangBang) SetTarget(target float64) { b.target = target }

func (b *BangBang) SetFilterConstants(alpha, beta float64) {
	b.est.SetFilterConstants(alpha, beta)
}

func (b *BangBang) Target() float64   { return b.target }
func (b *BangBang) Error() float64    { return b.err }
func (b *BangBang) Velocity() float64 { return b.est.Velocity() }
func (b *BangBang) Output() float64   { return b.output }

func (b *BangBang) Reset() {
	b.est.Reset()
	b.err = 0
	b.output = 0
}

func (b *BangBang) Params() map[string]float64 {
	return map[string]float64{
		"high":   b.HighPower,
		"low":    b.LowPower,
		"target": b.target,
	}
}

func (b *BangBang) SetParam(name string, value float64) error {
	switch name {
	case "high":
		b.HighPower = value
	case "low":
		b.LowPower = value
	case "target":
		b.target = value
	default:
		return unknownParam(name)
	}
	return nil
}
