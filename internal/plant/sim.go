package plant

import (
	"math"
	"sync"
)

// FullScale is the actuator power that maps to duty 1.
const FullScale = 127

// Sim is simulated hardware: a model wired to one actuator channel and a
// quadrature encoder. It satisfies the motor registry's actuator interface.
type Sim struct {
	mu sync.Mutex

	model       Model
	integ       Integrator
	channel     int
	ticksPerRev float64

	x     State
	power int
	t     float64
}

func NewSim(m Model, channel int, ticksPerRev float64) *Sim {
	return &Sim{
		model:       m,
		integ:       NewRK4(),
		channel:     channel,
		ticksPerRev: ticksPerRev,
	}
}

// WithIntegrator replaces the default RK4 integrator.
func (s *Sim) WithIntegrator(i Integrator) *Sim {
	s.integ = i
	return s
}

// Command applies power when it targets this sim's channel.
func (s *Sim) Command(channel, power int) {
	if channel != s.channel {
		return
	}
	s.Drive(power)
}

func (s *Sim) Drive(power int) {
	s.mu.Lock()
	s.power = power
	s.mu.Unlock()
}

// Step integrates dt seconds at the current power.
func (s *Sim) Step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x = s.integ.Step(s.model, s.x, float64(s.power)/FullScale, dt)
	s.t += dt
}

func (s *Sim) Model() Model { return s.model }
func (s *Sim) Channel() int { return s.channel }

func (s *Sim) Power() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}

func (s *Sim) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x
}

func (s *Sim) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

// Reset puts the mechanism at x with no power applied.
func (s *Sim) Reset(x State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x = x
	s.power = 0
	s.t = 0
}

// Ticks is the encoder count for the current position.
func (s *Sim) Ticks() float64 {
	return Ticks(s.State(), s.ticksPerRev)
}

// RPM is the true shaft speed.
func (s *Sim) RPM() float64 {
	return RPM(s.State())
}

// Ticks converts a position to whole encoder counts.
func Ticks(x State, ticksPerRev float64) float64 {
	return math.Floor(x.Position / (2 * math.Pi) * ticksPerRev)
}

func RPM(x State) float64 {
	return x.Velocity * 60 / (2 * math.Pi)
}

// Radians converts encoder counts back to a shaft angle.
func Radians(ticks, ticksPerRev float64) float64 {
	return ticks / ticksPerRev * 2 * math.Pi
}
