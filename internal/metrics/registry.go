package metrics

import (
	"fmt"
	"sort"

	"github.com/san-kum/motorkit/internal/sim"
)

var builders = map[string]func() sim.Metric{
	"control_effort": func() sim.Metric { return NewControlEffort() },
	"tracking_error": func() sim.Metric { return NewTrackingError() },
	"overshoot":      func() sim.Metric { return NewOvershoot() },
	"saturation":     func() sim.Metric { return NewSaturation() },
}

// New returns a fresh metric by name.
func New(name string) (sim.Metric, error) {
	b, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return b(), nil
}

// All returns one fresh instance of every metric.
func All() []sim.Metric {
	out := make([]sim.Metric, 0, len(builders))
	for _, name := range Names() {
		out = append(out, builders[name]())
	}
	return out
}

func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
