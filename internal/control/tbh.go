package control

import "github.com/san-kum/motorkit/internal/clock"

// KeepApprox passed to SetTargetVelocity leaves the open-loop approximation
// unchanged.
const KeepApprox = -1010

// VelocityTBH is a take-back-half velocity controller.
//
// The output integrates Gain*error and is held inside the output range. At the
// first error zero-crossing after a target change the output snaps to the
// open-loop approximation; at later crossings it is pulled back toward the
// output recorded at the previous crossing.
type VelocityTBH struct {
	Gain float64

	est *VelocityEstimator

	target       float64
	err          float64
	prevErr      float64
	firstCross   bool
	approx       float64
	outputAtZero float64
	outputChange float64
	output       float64
}

// NewVelocityTBH builds a controller whose output at zero error for the first
// target is expected to be near approx.
func NewVelocityTBH(clk clock.Clock, gain, approx, ticksPerRev float64) *VelocityTBH {
	return &VelocityTBH{
		Gain:       gain,
		est:        NewVelocityEstimator(clk, ticksPerRev),
		firstCross: true,
		approx:     approx,
	}
}

// StepVelocity updates the velocity estimate without touching the control
// terms.
func (t *VelocityTBH) StepVelocity(sens float64) float64 {
	vel, _ := t.est.Estimate(sens)
	return vel
}

func (t *VelocityTBH) Step(sens float64) float64 {
	vel, ok := t.est.Estimate(sens)
	if !ok {
		return 0
	}

	t.err = t.target - vel

	t.outputChange = t.err * t.Gain
	t.output = clamp(t.output+t.outputChange, MinOutput, MaxOutput)

	if sign(t.err) != sign(t.prevErr) {
		if t.firstCross {
			t.output = t.approx
			t.firstCross = false
		} else {
			t.output = 0.4*(t.output+t.outputAtZero) + 0.2*t.output
		}
		t.outputAtZero = t.output
	}

	t.prevErr = t.err
	return t.output
}

// SetTargetVelocity changes the setpoint and re-arms the first-crossing
// snap. approx replaces the open-loop approximation unless it is KeepApprox.
func (t *VelocityTBH) SetTargetVelocity(target, approx float64) {
	t.target = target
	t.firstCross = true
	if approx != KeepApprox {
		t.approx = approx
	}
}

// SetTarget is SetTargetVelocity keeping the current approximation.
func (t *VelocityTBH) SetTarget(target float64) { t.SetTargetVelocity(target, KeepApprox) }

func (t *VelocityTBH) SetOpenLoopApprox(approx float64) { t.approx = approx }

func (t *VelocityTBH) SetFilterConstants(alpha, beta float64) {
	t.est.SetFilterConstants(alpha, beta)
}

func (t *VelocityTBH) OpenLoopApprox() float64 { return t.approx }
func (t *VelocityTBH) Target() float64         { return t.target }
func (t *VelocityTBH) Error() float64          { return t.err }
func (t *VelocityTBH) Velocity() float64       { return t.est.Velocity() }
func (t *VelocityTBH) Output() float64         { return t.output }
func (t *VelocityTBH) OutputAtZero() float64   { return t.outputAtZero }
func (t *VelocityTBH) FirstCross() bool        { return t.firstCross }

// Estimator exposes the embedded velocity estimator.
func (t *VelocityTBH) Estimator() *VelocityEstimator { return t.est }

// Reset re-initializes the controller after the mechanism has been reset.
// Gain, filter constants and the open-loop approximation survive; the target
// returns to zero.
func (t *VelocityTBH) Reset() {
	t.est.Reset()
	t.target = 0
	t.err = 0
	t.prevErr = 0
	t.firstCross = true
	t.outputAtZero = 0
	t.outputChange = 0
	t.output = 0
}

func (t *VelocityTBH) Params() map[string]float64 {
	alpha, beta := t.est.FilterConstants()
	return map[string]float64{
		"gain":   t.Gain,
		"approx": t.approx,
		"alpha":  alpha,
		"beta":   beta,
		"target": t.target,
	}
}

func (t *VelocityTBH) SetParam(name string, value float64) error {
	alpha, beta := t.est.FilterConstants()
	switch name {
	case "gain":
		t.Gain = value
	case "approx":
		t.approx = value
	case "alpha":
		t.est.SetFilterConstants(value, beta)
	case "beta":
		t.est.SetFilterConstants(alpha, value)
	case "target":
		t.SetTargetVelocity(value, KeepApprox)
	default:
		return unknownParam(name)
	}
	return nil
}
