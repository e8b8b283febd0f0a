package clock

const noMark = -1

// Timer measures elapsed time against a Clock using a handful of markers.
//
// A hard marker is only placed when none is set, so repeated calls inside a
// loop keep the first timestamp until ClearHardMarker is called.
type Timer struct {
	clk        Clock
	first      uint32
	lastCalled uint32
	mark       uint32
	hardMark   int64
	repeatMark int64
}

func NewTimer(clk Clock) *Timer {
	return &Timer{
		clk:        clk,
		first:      clk.Millis(),
		hardMark:   noMark,
		repeatMark: noMark,
	}
}

// DT returns the milliseconds since the previous DT call.
func (t *Timer) DT() uint32 {
	now := t.clk.Millis()
	dt := now - t.lastCalled
	t.lastCalled = now
	return dt
}

func (t *Timer) StartingTime() uint32 { return t.first }

func (t *Timer) SinceStart() uint32 { return t.clk.Millis() - t.first }

func (t *Timer) PlaceMarker() { t.mark = t.clk.Millis() }

func (t *Timer) SinceMarker() uint32 { return t.clk.Millis() - t.mark }

func (t *Timer) PlaceHardMarker() {
	if t.hardMark == noMark {
		t.hardMark = int64(t.clk.Millis())
	}
}

func (t *Timer) ClearHardMarker() { t.hardMark = noMark }

// SinceHardMarker returns 0 when no hard marker is placed.
func (t *Timer) SinceHardMarker() uint32 {
	if t.hardMark == noMark {
		return 0
	}
	return t.clk.Millis() - uint32(t.hardMark)
}

// Repeat reports true once every periodMs, re-arming itself after firing.
func (t *Timer) Repeat(periodMs uint32) bool {
	now := t.clk.Millis()
	if t.repeatMark == noMark {
		t.repeatMark = int64(now)
	}
	if now-uint32(t.repeatMark) > periodMs {
		t.repeatMark = noMark
		return true
	}
	return false
}
