package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/motorkit/internal/clock"
	"github.com/san-kum/motorkit/internal/control"
	"github.com/san-kum/motorkit/internal/metrics"
	"github.com/san-kum/motorkit/internal/plant"
	"github.com/san-kum/motorkit/internal/sim"
)

// ControllerFactory builds a controller stepping on clk for an encoder with
// ticksPerRev counts per revolution.
type ControllerFactory func(clk clock.Clock, ticksPerRev float64, params map[string]float64) control.Stepper

type paramSetter interface {
	SetParam(name string, value float64) error
}

type filterSetter interface {
	SetFilterConstants(alpha, beta float64)
}

type Registry struct {
	plants      map[string]func() plant.Model
	integrators map[string]func() plant.Integrator
	controllers map[string]ControllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		plants:      make(map[string]func() plant.Model),
		integrators: make(map[string]func() plant.Integrator),
		controllers: make(map[string]ControllerFactory),
	}

	r.plants["flywheel"] = func() plant.Model { return plant.NewFlywheel() }
	r.plants["arm"] = func() plant.Model { return plant.NewArm() }

	r.integrators["euler"] = func() plant.Integrator { return plant.NewEuler() }
	r.integrators["rk4"] = func() plant.Integrator { return plant.NewRK4() }

	r.controllers["none"] = func(clock.Clock, float64, map[string]float64) control.Stepper {
		return control.NewIdle()
	}
	r.controllers["manual"] = func(_ clock.Clock, _ float64, params map[string]float64) control.Stepper {
		return control.NewManual(params["power"])
	}
	r.controllers["position_pid"] = func(clk clock.Clock, _ float64, params map[string]float64) control.Stepper {
		limit := params["ilimit"]
		if limit == 0 {
			limit = control.DefaultIntegralLimit
		}
		return control.NewPositionPIDWithGains(clk, control.PositionGains{
			KP:             params["kp"],
			KI:             params["ki"],
			KD:             params["kd"],
			KBias:          params["bias"],
			ErrorThreshold: params["threshold"],
			IntegralLimit:  limit,
		})
	}
	r.controllers["velocity_pid"] = func(clk clock.Clock, tpr float64, params map[string]float64) control.Stepper {
		c := control.NewVelocityPID(clk, params["kp"], params["kd"], tpr)
		applyFilter(c, params)
		return c
	}
	r.controllers["tbh"] = func(clk clock.Clock, tpr float64, params map[string]float64) control.Stepper {
		c := control.NewVelocityTBH(clk, params["gain"], params["approx"], tpr)
		applyFilter(c, params)
		return c
	}
	r.controllers["bangbang"] = func(clk clock.Clock, tpr float64, params map[string]float64) control.Stepper {
		c := control.NewBangBang(clk, params["high"], params["low"], tpr)
		applyFilter(c, params)
		return c
	}

	return r
}

// applyFilter overrides the estimator weights only when both are given.
func applyFilter(c filterSetter, params map[string]float64) {
	alpha, beta := params["alpha"], params["beta"]
	if alpha == 0 && beta == 0 {
		return
	}
	c.SetFilterConstants(alpha, beta)
}

// GetPlant builds a plant model and applies any parameter overrides.
func (r *Registry) GetPlant(name string, params map[string]float64) (plant.Model, error) {
	fn, ok := r.plants[name]
	if !ok {
		return nil, fmt.Errorf("unknown plant: %s", name)
	}
	m := fn()
	if ps, ok := m.(paramSetter); ok {
		for k, v := range params {
			if err := ps.SetParam(k, v); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (r *Registry) GetIntegrator(name string) (plant.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, clk clock.Clock, ticksPerRev float64, params map[string]float64) (control.Stepper, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(clk, ticksPerRev, params), nil
}

func (r *Registry) ListPlants() []string      { return sortedKeys(r.plants) }
func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }
func (r *Registry) ListControllers() []string { return sortedKeys(r.controllers) }

func (r *Registry) DefaultMetrics() []sim.Metric {
	return metrics.All()
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
