package control

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/motorkit/internal/clock"
)

func TestVelocityEstimator(t *testing.T) {
	clk := clock.NewManual(100)
	est := NewVelocityEstimator(clk, QuadEncoderTPR)
	est.SetFilterConstants(1, 0)

	// 36 ticks in 100 ms on a 360 tick encoder is 0.1 rev / 0.1 s = 60 RPM.
	vel, ok := est.Estimate(36)
	if !ok {
		t.Fatal("expected estimate with elapsed time")
	}
	if vel != 60 {
		t.Errorf("expected 60 rpm, got %v", vel)
	}
	if est.PrevPosition() != 36 {
		t.Errorf("previous position = %v, want 36", est.PrevPosition())
	}

	vel, ok = est.Estimate(1000)
	if ok || vel != 0 {
		t.Errorf("zero dt: got (%v, %v), want (0, false)", vel, ok)
	}
	if est.PrevPosition() != 36 || est.Velocity() != 60 {
		t.Error("zero dt mutated estimator")
	}
}

func TestPositionPIDOutput(t *testing.T) {
	clk := clock.NewManual(10)
	pid := NewPositionPIDWithGains(clk, PositionGains{KP: 2, KD: 10, KBias: 5, IntegralLimit: DefaultIntegralLimit})
	pid.SetTarget(20)

	// error 20, derivative 20/10, output 2*20 + 10*2 + 5
	if out := pid.Step(0); out != 65 {
		t.Errorf("output = %v, want 65", out)
	}
	if pid.Derivative() != 2 {
		t.Errorf("derivative = %v, want 2", pid.Derivative())
	}
}

func TestPositionPIDZeroDT(t *testing.T) {
	clk := clock.NewManual(50)
	pid := NewPositionPID(clk, 1.5, 0.01, 3)
	pid.SetTarget(200)
	pid.Step(20)

	before := *pid
	if out := pid.Step(90); out != 0 {
		t.Errorf("zero dt returned %v, want 0", out)
	}
	if pid.Error() != before.Error() || pid.Integral() != before.Integral() ||
		pid.Output() != before.Output() || pid.Derivative() != before.Derivative() ||
		pid.step != before.step || pid.prevErr != before.prevErr {
		t.Error("zero dt step mutated controller state")
	}
}

func TestPositionPIDNoIntegralWithoutKI(t *testing.T) {
	clk := clock.NewManual(0)
	pid := NewPositionPID(clk, 0.8, 0, 0.2)
	pid.SetTarget(500)

	samples := []float64{0, 100, 250, 400, 480, 520, 510, 495, 499, 500, 501}
	for i, s := range samples {
		clk.Advance(uint32(5 + i))
		pid.Step(s)
		if pid.Integral() != 0 {
			t.Fatalf("step %d: integral = %v with ki = 0", i, pid.Integral())
		}
	}
}

func TestPositionPIDIntegralResetOnCrossing(t *testing.T) {
	tests := []struct {
		name  string
		limit float64
	}{
		{"within limit", DefaultIntegralLimit},
		{"limit reached", 1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewManual(0)
			pid := NewPositionPIDWithGains(clk, PositionGains{KI: 0.001, IntegralLimit: tt.limit})
			pid.SetTarget(100)

			clk.Advance(10)
			pid.Step(0)
			if pid.Integral() != 1000 {
				t.Fatalf("integral = %v, want 1000", pid.Integral())
			}
			clk.Advance(10)
			pid.Step(50)
			if pid.Integral() != 1500 {
				t.Fatalf("integral = %v, want 1500", pid.Integral())
			}

			clk.Advance(10)
			pid.Step(150)
			if pid.Integral() != 0 {
				t.Errorf("integral = %v after overshoot, want 0", pid.Integral())
			}
		})
	}
}

func TestPositionPIDIntegralResetAtTarget(t *testing.T) {
	clk := clock.NewManual(0)
	pid := NewPositionPID(clk, 0, 0.001, 0)
	pid.SetTarget(100)

	clk.Advance(10)
	pid.Step(0)
	clk.Advance(10)
	pid.Step(100)
	if pid.Integral() != 0 {
		t.Errorf("integral = %v at zero error, want 0", pid.Integral())
	}
}

func TestPositionPIDIntegralBound(t *testing.T) {
	clk := clock.NewManual(0)
	pid := NewPositionPID(clk, 0, 1, 0)
	pid.SetTarget(1000)

	clk.Advance(10)
	out := pid.Step(0)
	if pid.Integral() != MaxOutput {
		t.Errorf("integral = %v, want %v", pid.Integral(), MaxOutput)
	}
	if out != MaxOutput {
		t.Errorf("output = %v, want %v", out, MaxOutput)
	}

	pid.SetTarget(-1000)
	pid.Reset()
	clk.Advance(10)
	pid.Step(0)
	if pid.Integral() != 0 {
		t.Fatalf("first negative step crosses zero, integral = %v", pid.Integral())
	}
	clk.Advance(10)
	pid.Step(0)
	if pid.Integral() != MinOutput {
		t.Errorf("integral = %v, want %v", pid.Integral(), MinOutput)
	}
}

func TestPositionPIDErrorThreshold(t *testing.T) {
	clk := clock.NewManual(0)
	pid := NewPositionPIDWithGains(clk, PositionGains{KI: 0.01, ErrorThreshold: 50, IntegralLimit: DefaultIntegralLimit})
	pid.SetTarget(20)

	for i := 0; i < 5; i++ {
		clk.Advance(10)
		pid.Step(0)
	}
	if pid.Integral() != 0 {
		t.Errorf("integral = %v inside threshold, want 0", pid.Integral())
	}
}

func TestVelocityPIDRunningSum(t *testing.T) {
	clk := clock.NewManual(0)
	pid := NewVelocityPID(clk, 1, 0, QuadEncoderTPR)
	pid.SetTargetVelocity(10)

	sum := 0.0
	for i := 0; i < 300; i++ {
		clk.Advance(100)
		prev := pid.Output()
		out := pid.Step(float64(6 * i))
		sum += pid.Error()

		if out != prev+pid.Error() {
			t.Fatalf("step %d: output %v is not previous %v plus error %v", i, out, prev, pid.Error())
		}
		if math.Abs(out-sum) > 1e-9 {
			t.Fatalf("step %d: output %v, running error sum %v", i, out, sum)
		}
	}

	// 6 ticks per 100 ms on 360 ticks/rev is 10 rpm.
	if math.Abs(pid.Velocity()-10) > 1e-6 {
		t.Errorf("velocity = %v, want 10", pid.Velocity())
	}
	if math.Abs(pid.Error()) > 1e-6 {
		t.Errorf("error = %v, want ~0", pid.Error())
	}
}

func TestVelocityPIDFirstSteps(t *testing.T) {
	clk := clock.NewManual(0)
	pid := NewVelocityPID(clk, 1, 0, QuadEncoderTPR)
	pid.SetTargetVelocity(10)

	clk.Advance(100)
	if out := pid.Step(0); out != 10 {
		t.Errorf("first output = %v, want 10", out)
	}
	clk.Advance(100)
	out := pid.Step(6)
	// velocity 0.19*10 + 0.0526*1.9 = 1.99994
	if math.Abs(pid.Velocity()-1.99994) > 1e-9 {
		t.Errorf("velocity = %v, want 1.99994", pid.Velocity())
	}
	if math.Abs(out-18.00006) > 1e-9 {
		t.Errorf("output = %v, want 18.00006", out)
	}
}

func TestVelocityPIDZeroDT(t *testing.T) {
	clk := clock.NewManual(100)
	pid := NewVelocityPID(clk, 0.5, 2, QuadEncoderTPR)
	pid.SetTargetVelocity(100)
	pid.Step(12)

	before := *pid
	estBefore := *pid.est
	if out := pid.Step(500); out != 0 {
		t.Errorf("zero dt returned %v, want 0", out)
	}
	if pid.Output() != before.Output() || pid.Error() != before.Error() ||
		pid.prevErr != before.prevErr || pid.Derivative() != before.Derivative() {
		t.Error("zero dt mutated control terms")
	}
	if *pid.est != estBefore {
		t.Error("zero dt mutated velocity estimator")
	}
}

func TestVelocityTBHFirstCrossSnapsToApprox(t *testing.T) {
	clk := clock.NewManual(0)
	tbh := NewVelocityTBH(clk, 0.01, 30, QuadEncoderTPR)
	tbh.SetTargetVelocity(10, 55)
	if tbh.OpenLoopApprox() != 55 {
		t.Fatalf("approx = %v, want 55", tbh.OpenLoopApprox())
	}

	pos := 0.0
	crossed := false
	for i := 0; i < 100; i++ {
		clk.Advance(100)
		out := tbh.Step(pos)
		pos += 60 // 100 rpm

		if !tbh.FirstCross() {
			if out != 55 {
				t.Fatalf("first crossing output = %v, want 55", out)
			}
			if tbh.OutputAtZero() != 55 {
				t.Errorf("output at zero = %v, want 55", tbh.OutputAtZero())
			}
			if tbh.Error() >= 0 {
				t.Errorf("expected negative error at first crossing, got %v", tbh.Error())
			}
			crossed = true
			break
		}
	}
	if !crossed {
		t.Fatal("velocity never crossed the target")
	}
}

func TestVelocityTBHTakeBackHalf(t *testing.T) {
	clk := clock.NewManual(0)
	tbh := NewVelocityTBH(clk, 0.01, 0, QuadEncoderTPR)
	tbh.SetTargetVelocity(10, 55)

	pos := 0.0
	for tbh.FirstCross() {
		clk.Advance(100)
		tbh.Step(pos)
		pos += 60
	}

	// Stop the mechanism so the velocity falls back through the target.
	for i := 0; i < 200; i++ {
		clk.Advance(100)
		prevOut := tbh.Output()
		prevErr := tbh.Error()
		atZero := tbh.OutputAtZero()

		out := tbh.Step(pos)
		if sign(tbh.Error()) == sign(prevErr) {
			continue
		}

		o := clamp(prevOut+tbh.Error()*tbh.Gain, MinOutput, MaxOutput)
		want := 0.4*(o+atZero) + 0.2*o
		if out != want {
			t.Fatalf("blend output = %v, want %v", out, want)
		}
		if tbh.OutputAtZero() != out {
			t.Errorf("output at zero = %v, want %v", tbh.OutputAtZero(), out)
		}
		return
	}
	t.Fatal("no second crossing observed")
}

func TestVelocityTBHClampsOutput(t *testing.T) {
	clk := clock.NewManual(0)
	tbh := NewVelocityTBH(clk, 100, 0, QuadEncoderTPR)
	tbh.SetTargetVelocity(1000, KeepApprox)

	clk.Advance(100)
	if out := tbh.Step(0); out != MaxOutput {
		t.Errorf("output = %v, want %v", out, MaxOutput)
	}

	tbh.SetTargetVelocity(-1000, KeepApprox)
	tbh.firstCross = false
	clk.Advance(100)
	tbh.Step(0)
	if tbh.Output() < MinOutput || tbh.Output() > MaxOutput {
		t.Errorf("output %v left the output range", tbh.Output())
	}
}

func TestVelocityTBHSetTarget(t *testing.T) {
	clk := clock.NewManual(0)
	tbh := NewVelocityTBH(clk, 0.01, 40, QuadEncoderTPR)
	tbh.firstCross = false

	tbh.SetTargetVelocity(1200, KeepApprox)
	if tbh.OpenLoopApprox() != 40 {
		t.Errorf("KeepApprox replaced approximation: %v", tbh.OpenLoopApprox())
	}
	if !tbh.FirstCross() {
		t.Error("target change did not re-arm first crossing")
	}

	tbh.SetTargetVelocity(1800, 75)
	if tbh.OpenLoopApprox() != 75 || tbh.Target() != 1800 {
		t.Errorf("got approx %v target %v", tbh.OpenLoopApprox(), tbh.Target())
	}
}

func TestVelocityTBHReset(t *testing.T) {
	clk := clock.NewManual(0)
	tbh := NewVelocityTBH(clk, 0.02, 64, QuadEncoderTPR)
	tbh.SetTargetVelocity(50, KeepApprox)
	for i := 0; i < 10; i++ {
		clk.Advance(20)
		tbh.Step(float64(i * 40))
	}

	tbh.Reset()
	if tbh.Gain != 0.02 || tbh.OpenLoopApprox() != 64 {
		t.Error("reset discarded tuning")
	}
	if tbh.Output() != 0 || tbh.Error() != 0 || tbh.OutputAtZero() != 0 || tbh.Velocity() != 0 {
		t.Error("reset kept running state")
	}
	if !tbh.FirstCross() || tbh.Target() != 0 {
		t.Error("reset did not re-arm the controller")
	}
}

func TestVelocityTBHZeroDT(t *testing.T) {
	clk := clock.NewManual(100)
	tbh := NewVelocityTBH(clk, 0.05, 20, QuadEncoderTPR)
	tbh.SetTargetVelocity(30, KeepApprox)
	tbh.Step(10)

	before := *tbh
	estBefore := *tbh.est
	if out := tbh.Step(400); out != 0 {
		t.Errorf("zero dt returned %v, want 0", out)
	}
	if tbh.output != before.output || tbh.err != before.err || tbh.prevErr != before.prevErr ||
		tbh.firstCross != before.firstCross || tbh.outputAtZero != before.outputAtZero {
		t.Error("zero dt mutated controller state")
	}
	if *tbh.est != estBefore {
		t.Error("zero dt mutated velocity estimator")
	}
}

func TestBangBang(t *testing.T) {
	clk := clock.NewManual(0)
	bb := NewBangBang(clk, 100, 20, QuadEncoderTPR)
	bb.SetTargetVelocity(0)

	clk.Advance(100)
	if out := bb.Step(0); out != 100 {
		t.Errorf("velocity == target: output = %v, want high power 100", out)
	}

	clk.Advance(100)
	if out := bb.Step(36); out != 20 {
		t.Errorf("velocity above target: output = %v, want low power 20", out)
	}
	if bb.Error() != -bb.Velocity() {
		t.Errorf("error = %v, want %v", bb.Error(), -bb.Velocity())
	}

	bb.SetTargetVelocity(1000)
	clk.Advance(100)
	if out := bb.Step(72); out != 100 {
		t.Errorf("velocity below target: output = %v, want 100", out)
	}

	if out := bb.Step(500); out != 0 {
		t.Errorf("zero dt returned %v, want 0", out)
	}
	if bb.Output() != 100 {
		t.Errorf("zero dt changed output to %v", bb.Output())
	}
}

func TestManualClamps(t *testing.T) {
	m := NewManual(500)
	if m.Step(0) != MaxOutput {
		t.Errorf("expected clamp to %v, got %v", MaxOutput, m.Step(0))
	}
	m.SetPower(-40)
	if m.Output() != -40 {
		t.Errorf("expected -40, got %v", m.Output())
	}
}

func TestIdle(t *testing.T) {
	var s Stepper = NewIdle()
	if s.Step(123) != 0 || s.Output() != 0 {
		t.Error("idle should always output zero")
	}
}

func TestSetParam(t *testing.T) {
	clk := clock.NewManual(0)
	tests := []struct {
		name string
		ctrl Configurable
	}{
		{"position", NewPositionPID(clk, 1, 0, 0)},
		{"velocity", NewVelocityPID(clk, 1, 0, QuadEncoderTPR)},
		{"tbh", NewVelocityTBH(clk, 1, 0, QuadEncoderTPR)},
		{"bangbang", NewBangBang(clk, 1, 0, QuadEncoderTPR)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range ParamNames(tt.ctrl) {
				if err := tt.ctrl.SetParam(name, 0.5); err != nil {
					t.Errorf("SetParam(%q): %v", name, err)
				}
				if got := tt.ctrl.Params()[name]; got != 0.5 {
					t.Errorf("param %q = %v after set, want 0.5", name, got)
				}
			}
			err := tt.ctrl.SetParam("nope", 1)
			if !errors.Is(err, ErrUnknownParam) {
				t.Errorf("expected ErrUnknownParam, got %v", err)
			}
		})
	}
}
