package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/motorkit/internal/config"
	"github.com/san-kum/motorkit/internal/experiment"
	"github.com/san-kum/motorkit/internal/sim"
	"github.com/san-kum/motorkit/internal/storage"
)

// Scenario defines a scripted sequence of rig runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset or config file (defaults when neither
// is set) and applies its overrides on top.
type ScenarioStep struct {
	Name        string             `yaml:"name"`
	Preset      string             `yaml:"preset"`
	Config      string             `yaml:"config"`
	Params      map[string]float64 `yaml:"params"`
	PlantParams map[string]float64 `yaml:"plant_params"`
	DurationMs  uint32             `yaml:"duration_ms"`
	Schedule    []sim.Setpoint     `yaml:"schedule"`
	Save        bool               `yaml:"save"`
}

// StepResult is the outcome of one scenario step. RunID is empty unless the
// step was saved.
type StepResult struct {
	Name    string
	RunID   string
	Steps   int
	Metrics map[string]float64
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrapf(err, "parse scenario %s", path)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &sc, nil
}

func (s ScenarioStep) resolve() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case s.Preset != "":
		cfg, err = config.FromPreset(s.Preset)
	default:
		cfg, err = config.Load(s.Config)
	}
	if err != nil {
		return nil, err
	}

	if len(s.PlantParams) > 0 {
		merged := make(map[string]float64, len(cfg.PlantParams)+len(s.PlantParams))
		for k, v := range cfg.PlantParams {
			merged[k] = v
		}
		for k, v := range s.PlantParams {
			merged[k] = v
		}
		cfg.PlantParams = merged
	}
	if s.DurationMs > 0 {
		cfg.Run.DurationMs = s.DurationMs
	}
	if len(s.Schedule) > 0 {
		cfg.Run.Schedule = s.Schedule
	}
	return cfg, nil
}

// RunScenario executes the steps in order, stopping at the first failure.
// Steps marked save go to store when it is non-nil.
func RunScenario(ctx context.Context, sc *Scenario, store *storage.Store, logger *slog.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]StepResult, 0, len(sc.Steps))

	for i, step := range sc.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		logger.Info("scenario step", "scenario", sc.Name, "step", name, "n", i+1, "of", len(sc.Steps))

		cfg, err := step.resolve()
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		exp, err := experiment.Build(cfg, nil, logger)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		if len(step.Params) > 0 {
			if err := exp.SetParams(step.Params); err != nil {
				return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
			}
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}

		sr := StepResult{Name: name, Steps: result.StepsTaken, Metrics: result.Metrics}
		if step.Save && store != nil {
			if sr.RunID, err = store.Save(cfg, result); err != nil {
				return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// MonteCarloConfig perturbs every plant parameter of Base by a uniform
// factor in [1-Spread, 1+Spread] for each trial.
type MonteCarloConfig struct {
	Base    *config.Config
	Spread  float64
	Trials  int
	Seed    int64
	Workers int
	// Fixed names parameters left alone, such as gravity.
	Fixed []string
}

// MonteCarloResult holds one perturbed trial
type MonteCarloResult struct {
	Trial       int
	PlantParams map[string]float64
	Metrics     map[string]float64
	Stable      bool
	Err         error
}

type paramLister interface {
	Params() map[string]float64
}

// RunMonteCarlo checks how a tuning holds up against plant variation. A
// trial whose plant diverges is reported unstable; other failures are kept
// in Err.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, logger *slog.Logger) ([]MonteCarloResult, error) {
	if mc.Base == nil {
		return nil, fmt.Errorf("monte carlo: base config required")
	}
	if mc.Trials <= 0 {
		return nil, fmt.Errorf("monte carlo: trials must be positive, got %d", mc.Trials)
	}
	if mc.Spread < 0 || mc.Spread >= 1 {
		return nil, fmt.Errorf("monte carlo: spread must be in [0, 1), got %f", mc.Spread)
	}

	reg := experiment.NewRegistry()
	model, err := reg.GetPlant(mc.Base.Plant, mc.Base.PlantParams)
	if err != nil {
		return nil, err
	}
	pl, ok := model.(paramLister)
	if !ok {
		return nil, fmt.Errorf("plant %s has no parameters to perturb", mc.Base.Plant)
	}
	base := pl.Params()

	fixed := make(map[string]bool, len(mc.Fixed))
	for _, f := range mc.Fixed {
		fixed[f] = true
	}
	names := make([]string, 0, len(base))
	for k := range base {
		names = append(names, k)
	}
	sort.Strings(names)

	seed := mc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	results := make([]MonteCarloResult, mc.Trials)
	jobs := make([]sim.Job, 0, mc.Trials)
	jobIdx := make([]int, 0, mc.Trials)
	for trial := range results {
		params := make(map[string]float64, len(base))
		for _, k := range names {
			v := base[k]
			if !fixed[k] {
				v *= 1 + (rng.Float64()*2-1)*mc.Spread
			}
			params[k] = v
		}
		results[trial] = MonteCarloResult{Trial: trial, PlantParams: params}

		cfg := *mc.Base
		cfg.PlantParams = params
		exp, err := experiment.Build(&cfg, reg, logger)
		if err != nil {
			results[trial].Err = err
			continue
		}
		jobs = append(jobs, exp.Job())
		jobIdx = append(jobIdx, trial)
	}

	for j, out := range sim.RunParallel(ctx, jobs, mc.Workers) {
		r := &results[jobIdx[j]]
		if out.Result != nil {
			r.Metrics = out.Result.Metrics
		}
		switch {
		case out.Err == nil:
			r.Stable = true
		case errors.Is(out.Err, sim.ErrUnstable):
		default:
			r.Err = out.Err
		}
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// MonteCarloStats counts stable and unstable trials; failed trials count
// as neither.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		switch {
		case r.Err != nil:
		case r.Stable:
			stableCount++
		default:
			unstableCount++
		}
	}
	return
}

// MetricSpread returns the mean and worst (largest) value of a metric over
// the stable trials. ok is false when no stable trial recorded it.
func MetricSpread(results []MonteCarloResult, name string) (mean, worst float64, ok bool) {
	n := 0
	worst = math.Inf(-1)
	for _, r := range results {
		if !r.Stable {
			continue
		}
		v, found := r.Metrics[name]
		if !found {
			continue
		}
		mean += v
		worst = max(worst, v)
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return mean / float64(n), worst, true
}
