package control

import "github.com/san-kum/motorkit/internal/clock"

// VelocityPID closes a loop on estimated velocity. It has no integral term;
// each step adds KP*error + KD*derivative to the running output, so the output
// is the sum of commanded changes rather than an absolute command.
type VelocityPID struct {
	KP, KD float64

	est *VelocityEstimator

	target     float64
	err        float64
	prevErr    float64
	derivative float64
	output     float64
}

func NewVelocityPID(clk clock.Clock, kp, kd, ticksPerRev float64) *VelocityPID {
	return &VelocityPID{
		KP:  kp,
		KD:  kd,
		est: NewVelocityEstimator(clk, ticksPerRev),
	}
}

// StepVelocity updates the velocity estimate without touching the control
// terms.
func (v *VelocityPID) StepVelocity(sens float64) float64 {
	vel, _ := v.est.Estimate(sens)
	return vel
}

func (v *VelocityPID) Step(sens float64) float64 {
	vel, ok := v.est.Estimate(sens)
	if !ok {
		return 0
	}

	v.err = v.target - vel

	v.derivative = (v.err - v.prevErr) / float64(v.est.Interval())
	v.prevErr = v.err

	v.output += v.err*v.KP + v.derivative*v.KD
	return v.output
}

// SetTargetVelocity sets the velocity setpoint in RPM.
func (v *VelocityPID) SetTargetVelocity(target float64) { v.target = target }

func (v *VelocityPID) SetTarget(target float64) { v.target = target }

func (v *VelocityPID) SetFilterConstants(alpha, beta float64) {
	v.est.SetFilterConstants(alpha, beta)
}

func (v *VelocityPID) Target() float64     { return v.target }
func (v *VelocityPID) Error() float64      { return v.err }
func (v *VelocityPID) Velocity() float64   { return v.est.Velocity() }
func (v *VelocityPID) Derivative() float64 { return v.derivative }
func (v *VelocityPID) Output() float64     { return v.output }

// Estimator exposes the embedded velocity estimator.
func (v *VelocityPID) Estimator() *VelocityEstimator { return v.est }

// Reset clears the estimator, error history and accumulated output.
func (v *VelocityPID) Reset() {
	v.est.Reset()
	v.err = 0
	v.prevErr = 0
	v.derivative = 0
	v.output = 0
}

func (v *VelocityPID) Params() map[string]float64 {
	alpha, beta := v.est.FilterConstants()
	return map[string]float64{
		"kp":     v.KP,
		"kd":     v.KD,
		"alpha":  alpha,
		"beta":   beta,
		"target": v.target,
	}
}

func (v *VelocityPID) SetParam(name string, value float64) error {
	alpha, beta := v.est.FilterConstants()
	switch name {
	case "kp":
		v.KP = value
	case "kd":
		v.KD = value
	case "alpha":
		v.est.SetFilterConstants(value, beta)
	case "beta":
		v.est.SetFilterConstants(alpha, value)
	case "target":
		v.target = value
	default:
		return unknownParam(name)
	}
	return nil
}
