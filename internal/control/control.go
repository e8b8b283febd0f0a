package control

import (
	"errors"
	"fmt"
	"sort"
)

// Output range shared by every actuator channel.
const (
	MinOutput = -127
	MaxOutput = 127
)

// Encoder resolutions in ticks per revolution.
const (
	QuadEncoderTPR   = 360.0
	IMEHighTorqueTPR = 627.2
	IMEHighSpeedTPR  = 392.0
	IMETurboGearTPR  = 261.333
)

const (
	DefaultFilterAlpha   = 0.19
	DefaultFilterBeta    = 0.0526
	DefaultIntegralLimit = 1000000
)

// ErrUnknownParam is returned by SetParam for a name the controller lacks.
var ErrUnknownParam = errors.New("control: unknown parameter")

// Stepper is the capability every controller shares: fold in a sensor sample
// and produce an output.
type Stepper interface {
	Step(sens float64) float64
	Output() float64
}

// Targeter is implemented by controllers with a setpoint.
type Targeter interface {
	SetTarget(target float64)
	Target() float64
}

// VelocityReporter is implemented by controllers that estimate velocity.
type VelocityReporter interface {
	Velocity() float64
}

// Resetter is implemented by controllers that can drop their running state
// while keeping their tuning.
type Resetter interface {
	Reset()
}

// Configurable exposes tunable parameters by name.
type Configurable interface {
	Params() map[string]float64
	SetParam(name string, value float64) error
}

// ParamNames returns the keys of a Configurable in a stable order.
func ParamNames(c Configurable) []string {
	params := c.Params()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unknownParam(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownParam, name)
}

// sign treats zero as positive.
func sign(v float64) int {
	if v >= 0 {
		return 1
	}
	return -1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
