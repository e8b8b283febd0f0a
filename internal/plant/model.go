package plant

import (
	"errors"
	"fmt"
	"math"
)

var ErrUnknownParam = errors.New("plant: unknown parameter")

// State of a single rotary axis.
type State struct {
	Position float64 // rad
	Velocity float64 // rad/s
}

func (s State) IsValid() bool {
	return !math.IsNaN(s.Position) && !math.IsInf(s.Position, 0) &&
		!math.IsNaN(s.Velocity) && !math.IsInf(s.Velocity, 0)
}

// Model is the continuous dynamics of a motor-driven axis. duty is the
// applied power as a fraction of full scale, in [-1, 1].
type Model interface {
	Name() string
	Derive(x State, duty float64) State
}

// Flywheel is a DC motor spinning a free inertia.
type Flywheel struct {
	Inertia     float64 // kg m^2
	Damping     float64 // N m s/rad
	StallTorque float64 // N m at full duty, zero speed
	FreeSpeed   float64 // rad/s at full duty, no load
}

func NewFlywheel() *Flywheel {
	return &Flywheel{
		Inertia:     0.0005,
		Damping:     1e-5,
		StallTorque: 0.06,
		FreeSpeed:   2500 * 2 * math.Pi / 60,
	}
}

func (f *Flywheel) Name() string { return "flywheel" }

func (f *Flywheel) Derive(x State, duty float64) State {
	torque := f.StallTorque * (duty - x.Velocity/f.FreeSpeed)
	alpha := (torque - f.Damping*x.Velocity) / f.Inertia
	return State{Position: x.Velocity, Velocity: alpha}
}

// SteadyVelocity is the speed the flywheel settles at for a constant duty.
func (f *Flywheel) SteadyVelocity(duty float64) float64 {
	return f.StallTorque * duty / (f.StallTorque/f.FreeSpeed + f.Damping)
}

func (f *Flywheel) Params() map[string]float64 {
	return map[string]float64{
		"inertia":      f.Inertia,
		"damping":      f.Damping,
		"stall_torque": f.StallTorque,
		"free_speed":   f.FreeSpeed,
	}
}

func (f *Flywheel) SetParam(name string, value float64) error {
	switch name {
	case "inertia":
		f.Inertia = value
	case "damping":
		f.Damping = value
	case "stall_torque":
		f.StallTorque = value
	case "free_speed":
		f.FreeSpeed = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return nil
}

// Arm is a geared joint lifting a point mass against gravity. Position is
// measured from horizontal.
type Arm struct {
	Mass        float64 // kg
	Length      float64 // m
	Gear        float64 // motor turns per joint turn
	Damping     float64 // N m s/rad at the joint
	StallTorque float64 // motor N m
	FreeSpeed   float64 // motor rad/s
	Gravity     float64
}

func NewArm() *Arm {
	return &Arm{
		Mass:        0.5,
		Length:      0.3,
		Gear:        7,
		Damping:     0.05,
		StallTorque: 1.67,
		FreeSpeed:   100 * 2 * math.Pi / 60,
		Gravity:     9.81,
	}
}

func (a *Arm) Name() string { return "arm" }

func (a *Arm) Derive(x State, duty float64) State {
	motorSpeed := x.Velocity * a.Gear
	torque := a.Gear * a.StallTorque * (duty - motorSpeed/a.FreeSpeed)
	gravity := a.Mass * a.Gravity * a.Length * math.Cos(x.Position)
	inertia := a.Mass * a.Length * a.Length
	alpha := (torque - gravity - a.Damping*x.Velocity) / inertia
	return State{Position: x.Velocity, Velocity: alpha}
}

// HoldDuty is the duty that balances gravity at angle theta.
func (a *Arm) HoldDuty(theta float64) float64 {
	return a.Mass * a.Gravity * a.Length * math.Cos(theta) / (a.Gear * a.StallTorque)
}

func (a *Arm) Params() map[string]float64 {
	return map[string]float64{
		"mass":         a.Mass,
		"length":       a.Length,
		"gear":         a.Gear,
		"damping":      a.Damping,
		"stall_torque": a.StallTorque,
		"free_speed":   a.FreeSpeed,
		"gravity":      a.Gravity,
	}
}

func (a *Arm) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		a.Mass = value
	case "length":
		a.Length = value
	case "gear":
		a.Gear = value
	case "damping":
		a.Damping = value
	case "stall_torque":
		a.StallTorque = value
	case "free_speed":
		a.FreeSpeed = value
	case "gravity":
		a.Gravity = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return nil
}
