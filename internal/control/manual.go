package control

// Manual passes an operator-set power straight through, clamped to the
// output range. Used for jogging a mechanism by hand.
type Manual struct {
	power float64
}

func NewManual(power float64) *Manual {
	m := &Manual{}
	m.SetPower(power)
	return m
}

// SetPower updates the held power.
func (m *Manual) SetPower(power float64) {
	m.power = clamp(power, MinOutput, MaxOutput)
}

// Step ignores the sample and returns the held power.
func (m *Manual) Step(float64) float64 { return m.power }

func (m *Manual) Output() float64 { return m.power }

func (m *Manual) SetTarget(power float64) { m.SetPower(power) }

func (m *Manual) Target() float64 { return m.power }
