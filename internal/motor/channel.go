package motor

import "math"

// Power range accepted by the actuator hardware.
const (
	MinPower = -127
	MaxPower = 127
)

// Slew rates in power units per pass.
const (
	DefaultSlewRate = 10
	FastSlewRate    = 256
)

// NumChannels is the fixed capacity of a Registry.
const NumChannels = 10

// ClampPower rounds a controller output toward zero and bounds it to the
// actuator range.
func ClampPower(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if v > MaxPower {
		return MaxPower
	}
	if v < MinPower {
		return MinPower
	}
	return int(v)
}

// ChannelState is a point-in-time copy of one channel.
type ChannelState struct {
	ID         int
	Requested  int
	Artificial float64
	Slew       float64
	Active     bool
}

// Applied is the power last sent to the hardware by the slew pass.
func (c ChannelState) Applied() int { return int(c.Artificial) }

type channel struct {
	registered bool
	requested  int
	artificial float64
	slew       float64
	active     bool
}

// advance moves the artificial power one slew step toward the requested
// power. It reports whether anything changed.
func (c *channel) advance() bool {
	if c.artificial == float64(c.requested) {
		return false
	}

	req := float64(c.requested)
	art := c.artificial
	if req > art {
		art = math.Min(art+c.slew, req)
	} else {
		art = math.Max(art-c.slew, req)
	}

	c.artificial = math.Max(MinPower, math.Min(MaxPower, art))
	return true
}
