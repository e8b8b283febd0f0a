package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/motorkit/internal/actuator"
	"github.com/san-kum/motorkit/internal/control"
	"github.com/san-kum/motorkit/internal/motor"
	"github.com/san-kum/motorkit/internal/sim"
)

// EnvPrefix marks environment overrides. A double underscore separates
// nesting levels: MOTORKIT_GAINS__KP=2 sets gains.kp.
const EnvPrefix = "MOTORKIT_"

const (
	DefaultDurationMs    = 5000
	DefaultControlPeriod = 20
	DefaultSlewPeriod    = 20
	DefaultTarget        = 1500.0
	DefaultGain          = 0.005
	DefaultApprox        = 79.0
)

type Config struct {
	Plant       string                `yaml:"plant"`
	Controller  string                `yaml:"controller"`
	Integrator  string                `yaml:"integrator"`
	Channel     int                   `yaml:"channel"`
	TicksPerRev float64               `yaml:"ticks_per_rev"`
	Slew        float64               `yaml:"slew"`
	Init        InitStateConfig       `yaml:"init_state"`
	Gains       GainsConfig           `yaml:"gains"`
	PlantParams map[string]float64    `yaml:"plant_params,omitempty"`
	Run         sim.Config            `yaml:"run"`
	Serial      actuator.SerialConfig `yaml:"serial"`
	LogLevel    string                `yaml:"log_level"`
}

type InitStateConfig struct {
	Position float64 `yaml:"position"`
	Velocity float64 `yaml:"velocity"`
}

// GainsConfig holds every controller's tuning; each controller reads the
// fields it uses.
type GainsConfig struct {
	KP        float64 `yaml:"kp"`
	KI        float64 `yaml:"ki"`
	KD        float64 `yaml:"kd"`
	Bias      float64 `yaml:"bias"`
	Threshold float64 `yaml:"threshold"`
	ILimit    float64 `yaml:"ilimit"`
	Gain      float64 `yaml:"gain"`
	Approx    float64 `yaml:"approx"`
	High      float64 `yaml:"high"`
	Low       float64 `yaml:"low"`
	Power     float64 `yaml:"power"`
	Alpha     float64 `yaml:"alpha"`
	Beta      float64 `yaml:"beta"`
}

func DefaultConfig() *Config {
	return &Config{
		Plant:       "flywheel",
		Controller:  "tbh",
		Integrator:  "rk4",
		Channel:     1,
		TicksPerRev: control.QuadEncoderTPR,
		Slew:        motor.DefaultSlewRate,
		Gains: GainsConfig{
			ILimit: control.DefaultIntegralLimit,
			Gain:   DefaultGain,
			Approx: DefaultApprox,
			High:   motor.MaxPower,
			Alpha:  control.DefaultFilterAlpha,
			Beta:   control.DefaultFilterBeta,
		},
		Run: sim.Config{
			DurationMs:      DefaultDurationMs,
			ControlPeriodMs: DefaultControlPeriod,
			SlewPeriodMs:    DefaultSlewPeriod,
			Schedule:        []sim.Setpoint{{AtMs: 0, Target: DefaultTarget}},
		},
		Serial:   actuator.DefaultSerialConfig(),
		LogLevel: "info",
	}
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Load layers the defaults, the YAML file at path (skipped when path is
// empty) and MOTORKIT_ environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "yaml"), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load config %s", path)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}
	return unmarshal(k)
}

// FromPreset is Load with a preset in place of the file layer.
func FromPreset(name string) (*Config, error) {
	p := GetPreset(name)
	if p == nil {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	k := koanf.New(".")
	if err := k.Load(structs.Provider(p, "yaml"), nil); err != nil {
		return nil, errors.Wrapf(err, "load preset %s", name)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}
	return unmarshal(k)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Run.Schedule = nil
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write config %s", path)
}

func (c *Config) Validate() error {
	if c.Run.DurationMs == 0 {
		return fmt.Errorf("duration must be positive")
	}
	if c.Run.ControlPeriodMs == 0 {
		return fmt.Errorf("control period must be positive")
	}
	if c.Run.SlewPeriodMs == 0 {
		return fmt.Errorf("slew period must be positive")
	}
	if c.Slew <= 0 {
		return fmt.Errorf("slew rate must be positive, got %f", c.Slew)
	}
	if c.TicksPerRev <= 0 {
		return fmt.Errorf("ticks per rev must be positive, got %f", c.TicksPerRev)
	}
	if c.Channel < 0 || c.Channel >= motor.NumChannels {
		return fmt.Errorf("channel %d outside [0, %d)", c.Channel, motor.NumChannels)
	}
	if c.Plant == "" || c.Controller == "" {
		return fmt.Errorf("plant and controller are required")
	}
	return nil
}

// ControllerParams flattens the gains under the names the controllers'
// SetParam understands.
func (c *Config) ControllerParams() map[string]float64 {
	g := c.Gains
	return map[string]float64{
		"kp":        g.KP,
		"ki":        g.KI,
		"kd":        g.KD,
		"bias":      g.Bias,
		"threshold": g.Threshold,
		"ilimit":    g.ILimit,
		"gain":      g.Gain,
		"approx":    g.Approx,
		"high":      g.High,
		"low":       g.Low,
		"power":     g.Power,
		"alpha":     g.Alpha,
		"beta":      g.Beta,
	}
}
