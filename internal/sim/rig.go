package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/san-kum/motorkit/internal/clock"
	"github.com/san-kum/motorkit/internal/control"
	"github.com/san-kum/motorkit/internal/motor"
	"github.com/san-kum/motorkit/internal/plant"
)

// tickSeconds is the plant integration step.
const tickSeconds = 0.001

// approxTargeter is implemented by controllers seeded with an open-loop
// approximation on every target change.
type approxTargeter interface {
	SetTargetVelocity(target, approx float64)
}

// Rig closes the loop between a controller and simulated hardware. The
// controller's output goes through a slew-limited registry channel before it
// reaches the plant, the same path it takes on a real mechanism.
type Rig struct {
	plant   *plant.Sim
	ctrl    control.Stepper
	reg     *motor.Registry
	clk     *clock.Manual
	channel int
	logger  *slog.Logger

	metrics   []Metric
	observers []Observer

	controlPeriod uint32
	slewPeriod    uint32
	elapsed       uint32
	steps         int
}

// NewRig registers the plant's channel with the given slew rate on a new
// registry. The clock must be the one the controller was built with.
func NewRig(p *plant.Sim, ctrl control.Stepper, clk *clock.Manual, slew float64, logger *slog.Logger) (*Rig, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := motor.NewRegistry(p, logger)
	if err := reg.Register(p.Channel(), slew); err != nil {
		return nil, err
	}

	d := DefaultConfig()
	return &Rig{
		plant:         p,
		ctrl:          ctrl,
		reg:           reg,
		clk:           clk,
		channel:       p.Channel(),
		logger:        logger,
		controlPeriod: d.ControlPeriodMs,
		slewPeriod:    d.SlewPeriodMs,
	}, nil
}

func (r *Rig) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Rig) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Rig) Plant() *plant.Sim           { return r.plant }
func (r *Rig) Controller() control.Stepper { return r.ctrl }
func (r *Rig) Registry() *motor.Registry   { return r.reg }
func (r *Rig) Channel() int                { return r.channel }
func (r *Rig) ElapsedMs() uint32           { return r.elapsed }

func validateConfig(cfg Config) error {
	if cfg.DurationMs == 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	}
	if cfg.ControlPeriodMs == 0 {
		return fmt.Errorf("%w: control period must be positive", ErrInvalidConfig)
	}
	if cfg.SlewPeriodMs == 0 {
		return fmt.Errorf("%w: slew period must be positive", ErrInvalidConfig)
	}
	return nil
}

// Start puts the rig at rest at x0: clock at zero, controller reset, plant
// unpowered and the channel re-registered. cfg supplies the step periods.
func (r *Rig) Start(x0 plant.State, cfg Config) error {
	if cfg.ControlPeriodMs == 0 || cfg.SlewPeriodMs == 0 {
		return fmt.Errorf("%w: periods must be positive", ErrInvalidConfig)
	}
	r.controlPeriod = cfg.ControlPeriodMs
	r.slewPeriod = cfg.SlewPeriodMs
	r.elapsed = 0
	r.steps = 0

	r.clk.Set(0)
	r.plant.Reset(x0)
	if rs, ok := r.ctrl.(control.Resetter); ok {
		rs.Reset()
	}

	ch, err := r.reg.Channel(r.channel)
	if err != nil {
		return err
	}
	if err := r.reg.Register(r.channel, ch.Slew); err != nil {
		return err
	}

	for _, m := range r.metrics {
		m.Reset()
	}
	return nil
}

// SetTarget forwards a setpoint to the controller. approx is passed to
// take-back-half controllers; other controllers ignore it.
func (r *Rig) SetTarget(target, approx float64) {
	switch c := r.ctrl.(type) {
	case approxTargeter:
		c.SetTargetVelocity(target, approx)
	case control.Targeter:
		c.SetTarget(target)
	}
}

func (r *Rig) applySetpoint(sp Setpoint) {
	approx := float64(control.KeepApprox)
	if sp.Approx != nil {
		approx = *sp.Approx
	}
	r.SetTarget(sp.Target, approx)
	r.logger.Debug("setpoint", "t_ms", r.elapsed, "target", sp.Target)
}

// Tick advances the rig by one millisecond. It returns the sample recorded
// when the tick fell on a control step.
func (r *Rig) Tick() (Sample, bool, error) {
	r.elapsed++
	r.clk.Advance(1)

	var (
		s       Sample
		sampled bool
	)
	if r.elapsed%r.controlPeriod == 0 {
		s = r.control()
		sampled = true
	}
	if r.elapsed%r.slewPeriod == 0 {
		r.reg.Pass()
	}

	r.plant.Step(tickSeconds)
	if !r.plant.State().IsValid() {
		return s, sampled, &RunError{TimeMs: r.elapsed, Step: r.steps, Wrapped: ErrUnstable}
	}
	return s, sampled, nil
}

func (r *Rig) control() Sample {
	sens := r.plant.Ticks()
	out := r.ctrl.Step(sens)
	power := motor.ClampPower(out)
	_ = r.reg.SetPower(r.channel, power)
	r.steps++

	x := r.plant.State()
	s := Sample{
		TimeMs:    r.elapsed,
		Position:  sens,
		Velocity:  plant.RPM(x),
		Output:    out,
		Requested: power,
		Applied:   r.plant.Power(),
	}
	if t, ok := r.ctrl.(control.Targeter); ok {
		s.Target = t.Target()
	}
	if v, ok := r.ctrl.(control.VelocityReporter); ok {
		s.Estimated = v.Velocity()
		s.Measured = s.Velocity
	} else {
		s.Measured = s.Position
	}

	for _, m := range r.metrics {
		m.Observe(s)
	}
	for _, o := range r.observers {
		o.OnSample(s)
	}
	return s
}

// Run starts the rig from x0 and plays the schedule for cfg.DurationMs.
// On cancellation or instability the partial result is returned with the
// error.
func (r *Rig) Run(ctx context.Context, x0 plant.State, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := r.Start(x0, cfg); err != nil {
		return nil, err
	}

	schedule := append([]Setpoint(nil), cfg.Schedule...)
	sort.SliceStable(schedule, func(i, j int) bool { return schedule[i].AtMs < schedule[j].AtMs })

	result := &Result{
		Samples: make([]Sample, 0, cfg.DurationMs/cfg.ControlPeriodMs),
		Metrics: make(map[string]float64),
	}

	next := 0
	for r.elapsed < cfg.DurationMs {
		select {
		case <-ctx.Done():
			return r.finish(result), ctx.Err()
		default:
		}

		for next < len(schedule) && schedule[next].AtMs <= r.elapsed {
			r.applySetpoint(schedule[next])
			next++
		}

		s, ok, err := r.Tick()
		if ok {
			result.Samples = append(result.Samples, s)
		}
		if err != nil {
			r.logger.Warn("run aborted", "err", err)
			return r.finish(result), err
		}
	}

	r.logger.Debug("run complete", "steps", r.steps, "duration_ms", cfg.DurationMs)
	return r.finish(result), nil
}

func (r *Rig) finish(result *Result) *Result {
	result.StepsTaken = r.steps
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result
}

// Stop cuts power immediately and holds the channel off until Resume.
func (r *Rig) Stop() error {
	if err := r.reg.Bypass(r.channel, 0); err != nil {
		return err
	}
	return r.reg.SetActive(r.channel, false)
}

func (r *Rig) Resume() error {
	return r.reg.SetActive(r.channel, true)
}

// Reinit resets the controller's running state without touching the plant.
func (r *Rig) Reinit() {
	if rs, ok := r.ctrl.(control.Resetter); ok {
		rs.Reset()
	}
}
