package clock

import (
	"math"
	"testing"
)

func TestTimestepAdvance(t *testing.T) {
	var ts Timestep

	dt, ok := ts.Advance(100)
	if !ok || dt != 100 {
		t.Fatalf("first advance: got (%d, %v), want (100, true)", dt, ok)
	}

	dt, ok = ts.Advance(100)
	if ok || dt != 0 {
		t.Errorf("zero elapsed: got (%d, %v), want (0, false)", dt, ok)
	}
	if ts.Interval != 100 || ts.Last != 100 {
		t.Errorf("zero elapsed mutated timestep: %+v", ts)
	}

	dt, ok = ts.Advance(125)
	if !ok || dt != 25 {
		t.Errorf("got (%d, %v), want (25, true)", dt, ok)
	}
}

func TestTimestepWraparound(t *testing.T) {
	ts := Timestep{Last: math.MaxUint32 - 4}
	dt, ok := ts.Advance(5)
	if !ok {
		t.Fatal("expected step across wraparound")
	}
	if dt != 10 {
		t.Errorf("expected dt 10 across wraparound, got %d", dt)
	}
}

func TestManual(t *testing.T) {
	m := NewManual(10)
	if m.Millis() != 10 {
		t.Errorf("expected 10, got %d", m.Millis())
	}
	if got := m.Advance(5); got != 15 {
		t.Errorf("expected 15 after advance, got %d", got)
	}
	m.Set(3)
	if m.Millis() != 3 {
		t.Errorf("expected 3 after set, got %d", m.Millis())
	}
}

func TestTimerMarkers(t *testing.T) {
	m := NewManual(1000)
	tm := NewTimer(m)

	m.Advance(50)
	if tm.SinceStart() != 50 {
		t.Errorf("SinceStart = %d, want 50", tm.SinceStart())
	}

	tm.PlaceMarker()
	m.Advance(20)
	if tm.SinceMarker() != 20 {
		t.Errorf("SinceMarker = %d, want 20", tm.SinceMarker())
	}

	if tm.SinceHardMarker() != 0 {
		t.Error("expected 0 with no hard marker placed")
	}
	tm.PlaceHardMarker()
	m.Advance(30)
	tm.PlaceHardMarker()
	m.Advance(10)
	if tm.SinceHardMarker() != 40 {
		t.Errorf("hard marker moved: SinceHardMarker = %d, want 40", tm.SinceHardMarker())
	}
	tm.ClearHardMarker()
	tm.PlaceHardMarker()
	if tm.SinceHardMarker() != 0 {
		t.Errorf("expected fresh hard marker, got %d", tm.SinceHardMarker())
	}
}

func TestTimerRepeat(t *testing.T) {
	m := NewManual(0)
	tm := NewTimer(m)

	if tm.Repeat(100) {
		t.Fatal("repeat fired immediately")
	}
	m.Advance(100)
	if tm.Repeat(100) {
		t.Fatal("repeat fired at exactly the period")
	}
	m.Advance(1)
	if !tm.Repeat(100) {
		t.Fatal("repeat did not fire after the period")
	}
	if tm.Repeat(100) {
		t.Error("repeat did not re-arm")
	}
}

func TestTimerDT(t *testing.T) {
	m := NewManual(0)
	tm := NewTimer(m)
	m.Advance(40)
	if dt := tm.DT(); dt != 40 {
		t.Errorf("DT = %d, want 40", dt)
	}
	m.Advance(15)
	if dt := tm.DT(); dt != 15 {
		t.Errorf("DT = %d, want 15", dt)
	}
}
