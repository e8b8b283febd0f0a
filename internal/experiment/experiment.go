package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/motorkit/internal/clock"
	"github.com/san-kum/motorkit/internal/config"
	"github.com/san-kum/motorkit/internal/control"
	"github.com/san-kum/motorkit/internal/plant"
	"github.com/san-kum/motorkit/internal/sim"
)

// Experiment is a rig assembled from a config, ready to run.
type Experiment struct {
	cfg *config.Config
	rig *sim.Rig
	x0  plant.State
}

// Build validates cfg and wires plant, controller, registry and the default
// metrics into a rig driven by its own manual clock.
func Build(cfg *config.Config, reg *Registry, logger *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistry()
	}

	model, err := reg.GetPlant(cfg.Plant, cfg.PlantParams)
	if err != nil {
		return nil, err
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	clk := clock.NewManual(0)
	ctrl, err := reg.GetController(cfg.Controller, clk, cfg.TicksPerRev, cfg.ControllerParams())
	if err != nil {
		return nil, err
	}

	hw := plant.NewSim(model, cfg.Channel, cfg.TicksPerRev).WithIntegrator(integ)
	rig, err := sim.NewRig(hw, ctrl, clk, cfg.Slew, logger)
	if err != nil {
		return nil, err
	}
	for _, m := range reg.DefaultMetrics() {
		rig.AddMetric(m)
	}

	return &Experiment{
		cfg: cfg,
		rig: rig,
		x0:  plant.State{Position: cfg.Init.Position, Velocity: cfg.Init.Velocity},
	}, nil
}

// SetParams adjusts controller tuning by name.
func (e *Experiment) SetParams(params map[string]float64) error {
	c, ok := e.rig.Controller().(control.Configurable)
	if !ok {
		return fmt.Errorf("controller %s has no tunable parameters", e.cfg.Controller)
	}
	for name, v := range params {
		if err := c.SetParam(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.rig.Run(ctx, e.x0, e.cfg.Run)
}

// Start readies the rig for manual ticking.
func (e *Experiment) Start() error {
	return e.rig.Start(e.x0, e.cfg.Run)
}

// Job packages the experiment for sim.RunParallel.
func (e *Experiment) Job() sim.Job {
	return sim.Job{
		Build:  func() (*sim.Rig, error) { return e.rig, nil },
		Start:  e.x0,
		Config: e.cfg.Run,
	}
}

func (e *Experiment) Rig() *sim.Rig          { return e.rig }
func (e *Experiment) Config() *config.Config { return e.cfg }
