package plant

import (
	"errors"
	"math"
	"testing"
)

func TestFlywheelRK4Accuracy(t *testing.T) {
	f := NewFlywheel()
	integ := NewRK4()

	x := State{}
	dt := 0.001
	steps := 1000
	for i := 0; i < steps; i++ {
		x = integ.Step(f, x, 1, dt)
	}

	tau := f.Inertia / (f.StallTorque/f.FreeSpeed + f.Damping)
	want := f.SteadyVelocity(1) * (1 - math.Exp(-float64(steps)*dt/tau))
	if math.Abs(x.Velocity-want) > 1e-6 {
		t.Errorf("velocity error too large: got %.9f, expected %.9f", x.Velocity, want)
	}
}

func TestRK4BeatsEuler(t *testing.T) {
	f := NewFlywheel()
	tau := f.Inertia / (f.StallTorque/f.FreeSpeed + f.Damping)
	dt := 0.05
	steps := 40
	want := f.SteadyVelocity(1) * (1 - math.Exp(-float64(steps)*dt/tau))

	rk, eu := State{}, State{}
	for i := 0; i < steps; i++ {
		rk = NewRK4().Step(f, rk, 1, dt)
		eu = NewEuler().Step(f, eu, 1, dt)
	}

	if math.Abs(rk.Velocity-want) >= math.Abs(eu.Velocity-want) {
		t.Errorf("rk4 error %g not below euler error %g", math.Abs(rk.Velocity-want), math.Abs(eu.Velocity-want))
	}
}

func TestFlywheelSettles(t *testing.T) {
	s := NewSim(NewFlywheel(), 0, 360)
	s.Drive(FullScale)
	for i := 0; i < 40000; i++ {
		s.Step(0.001)
	}

	want := NewFlywheel().SteadyVelocity(1)
	if math.Abs(s.State().Velocity-want) > 1e-3 {
		t.Errorf("velocity = %v, want %v", s.State().Velocity, want)
	}
	if s.Time() < 39.99 {
		t.Errorf("time = %v", s.Time())
	}
}

func TestArm(t *testing.T) {
	a := NewArm()

	d := a.Derive(State{}, a.HoldDuty(0))
	if math.Abs(d.Velocity) > 1e-9 {
		t.Errorf("hold duty leaves acceleration %v", d.Velocity)
	}

	s := NewSim(a, 2, 360)
	for i := 0; i < 500; i++ {
		s.Step(0.001)
	}
	if s.State().Position >= 0 {
		t.Errorf("unpowered arm should fall, position %v", s.State().Position)
	}
}

func TestSimChannel(t *testing.T) {
	s := NewSim(NewFlywheel(), 3, 360)

	s.Command(1, 100)
	if s.Power() != 0 {
		t.Error("command on another channel applied")
	}
	s.Command(3, 100)
	if s.Power() != 100 {
		t.Errorf("power = %d, want 100", s.Power())
	}

	s.Reset(State{Position: math.Pi})
	if s.Power() != 0 {
		t.Error("reset kept power")
	}
	if s.Ticks() != 180 {
		t.Errorf("ticks = %v, want 180", s.Ticks())
	}
}

func TestConversions(t *testing.T) {
	x := State{Velocity: 2 * math.Pi}
	if math.Abs(RPM(x)-60) > 1e-12 {
		t.Errorf("rpm = %v, want 60", RPM(x))
	}
	if got := Radians(90, 360); math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("radians = %v", got)
	}
	if !x.IsValid() || (State{Position: math.NaN()}).IsValid() {
		t.Error("IsValid misreports")
	}
}

func TestModelParams(t *testing.T) {
	f := NewFlywheel()
	if err := f.SetParam("inertia", 0.01); err != nil || f.Params()["inertia"] != 0.01 {
		t.Errorf("set inertia: %v", err)
	}
	if err := NewArm().SetParam("wingspan", 1); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
}
