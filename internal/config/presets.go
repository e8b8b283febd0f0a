package config

import (
	"sort"

	"github.com/san-kum/motorkit/internal/control"
	"github.com/san-kum/motorkit/internal/motor"
	"github.com/san-kum/motorkit/internal/sim"
)

func approx(v float64) *float64 { return &v }

var Presets = map[string]*Config{
	"flywheel-tbh": {
		Plant: "flywheel", Controller: "tbh", Integrator: "rk4",
		Channel: 1, TicksPerRev: control.QuadEncoderTPR, Slew: motor.FastSlewRate,
		Gains: GainsConfig{Gain: 0.005, Approx: 60, Alpha: control.DefaultFilterAlpha, Beta: control.DefaultFilterBeta},
		Run: sim.Config{DurationMs: 10000, ControlPeriodMs: 20, SlewPeriodMs: 20, Schedule: []sim.Setpoint{
			{AtMs: 0, Target: 1500, Approx: approx(79)},
			{AtMs: 6000, Target: 1000, Approx: approx(53)},
		}},
	},
	"flywheel-pid": {
		Plant: "flywheel", Controller: "velocity_pid", Integrator: "rk4",
		Channel: 1, TicksPerRev: control.QuadEncoderTPR, Slew: motor.DefaultSlewRate,
		Gains: GainsConfig{KP: 0.004, KD: 0.01, Alpha: control.DefaultFilterAlpha, Beta: control.DefaultFilterBeta},
		Run: sim.Config{DurationMs: 10000, ControlPeriodMs: 20, SlewPeriodMs: 20, Schedule: []sim.Setpoint{
			{AtMs: 0, Target: 1500},
		}},
	},
	"flywheel-bangbang": {
		Plant: "flywheel", Controller: "bangbang", Integrator: "rk4",
		Channel: 1, TicksPerRev: control.QuadEncoderTPR, Slew: motor.FastSlewRate,
		Gains: GainsConfig{High: 127, Low: 60, Alpha: control.DefaultFilterAlpha, Beta: control.DefaultFilterBeta},
		Run: sim.Config{DurationMs: 8000, ControlPeriodMs: 20, SlewPeriodMs: 20, Schedule: []sim.Setpoint{
			{AtMs: 0, Target: 1500},
		}},
	},
	"arm-pid": {
		Plant: "arm", Controller: "position_pid", Integrator: "rk4",
		Channel: 2, TicksPerRev: control.QuadEncoderTPR, Slew: motor.DefaultSlewRate,
		Gains: GainsConfig{KP: 1.2, KI: 0.0004, KD: 15, Bias: 12, ILimit: 20000},
		Run: sim.Config{DurationMs: 6000, ControlPeriodMs: 20, SlewPeriodMs: 20, Schedule: []sim.Setpoint{
			{AtMs: 0, Target: 45},
			{AtMs: 3000, Target: 90},
		}},
	},
}

// GetPreset returns a copy of the named preset, nil if unknown.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	cfg.Run.Schedule = append([]sim.Setpoint(nil), p.Run.Schedule...)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Serial.Port == "" {
		cfg.Serial = DefaultConfig().Serial
	}
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
