package sim

// Sample is recorded once per control step.
type Sample struct {
	TimeMs uint32 `json:"time_ms"`
	// Position is the encoder reading in ticks.
	Position float64 `json:"position"`
	// Velocity is the true shaft speed in RPM.
	Velocity float64 `json:"velocity"`
	// Estimated is the controller's filtered velocity, 0 for position loops.
	Estimated float64 `json:"estimated"`
	// Measured is the quantity the controller regulates: true RPM for
	// velocity loops, ticks otherwise.
	Measured  float64 `json:"measured"`
	Target    float64 `json:"target"`
	Output    float64 `json:"output"`
	Requested int     `json:"requested"`
	Applied   int     `json:"applied"`
}

// Setpoint changes the controller target once the run reaches AtMs. Approx,
// when set, seeds take-back-half controllers.
type Setpoint struct {
	AtMs   uint32   `yaml:"at_ms" json:"at_ms"`
	Target float64  `yaml:"target" json:"target"`
	Approx *float64 `yaml:"approx,omitempty" json:"approx,omitempty"`
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(s Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Sample)

func (f ObserverFunc) OnSample(s Sample) { f(s) }

type Config struct {
	DurationMs      uint32     `yaml:"duration_ms"`
	ControlPeriodMs uint32     `yaml:"control_period_ms"`
	SlewPeriodMs    uint32     `yaml:"slew_period_ms"`
	Schedule        []Setpoint `yaml:"schedule"`
}

func DefaultConfig() Config {
	return Config{
		DurationMs:      5000,
		ControlPeriodMs: 20,
		SlewPeriodMs:    20,
	}
}

type Result struct {
	Samples    []Sample
	Metrics    map[string]float64
	StepsTaken int
}
