package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/motorkit/internal/optim"
	"github.com/san-kum/motorkit/internal/sim"
)

const (
	DefaultPlotWidth  = 80
	DefaultPlotHeight = 10
)

// Plot draws one series. Empty input yields an empty string.
func Plot(series []float64, caption string) string {
	return PlotSize(series, caption, DefaultPlotWidth, DefaultPlotHeight)
}

func PlotSize(series []float64, caption string, width, height int) string {
	if len(series) == 0 {
		return ""
	}
	return asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// Series pulls one column out of a run's samples.
func Series(samples []sim.Sample, field func(sim.Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = field(s)
	}
	return out
}

// PlotSamples draws the measured value against the target, then the applied
// power.
func PlotSamples(samples []sim.Sample) string {
	if len(samples) == 0 {
		return ""
	}

	measured := Series(samples, func(s sim.Sample) float64 { return s.Measured })
	target := Series(samples, func(s sim.Sample) float64 { return s.Target })
	applied := Series(samples, func(s sim.Sample) float64 { return float64(s.Applied) })

	var b strings.Builder
	b.WriteString(asciigraph.PlotMany([][]float64{measured, target},
		asciigraph.Height(DefaultPlotHeight),
		asciigraph.Width(DefaultPlotWidth),
		asciigraph.Caption("measured vs target"),
	))
	b.WriteString("\n\n")
	b.WriteString(Plot(applied, "applied power"))
	return b.String()
}

// MetricsTable lists metrics by name.
func (s Styles) MetricsTable(metrics map[string]float64) string {
	names := make([]string, 0, len(metrics))
	width := 0
	for n := range metrics {
		names = append(names, n)
		width = max(width, len(n))
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		label := s.Label.Render(fmt.Sprintf("%-*s", width, n))
		b.WriteString(fmt.Sprintf("  %s  %s\n", label, s.Value.Render(fmt.Sprintf("%.6f", metrics[n]))))
	}
	return b.String()
}

// TrialsTable lists up to limit completed trials, best first. Failed trials
// are counted in the footer.
func (s Styles) TrialsTable(trials []optim.Trial, metric string, limit int) string {
	ok := make([]optim.Trial, 0, len(trials))
	for _, t := range trials {
		if t.Err == nil {
			ok = append(ok, t)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Value < ok[j].Value })
	if limit > 0 && len(ok) > limit {
		ok = ok[:limit]
	}

	var b strings.Builder
	b.WriteString(s.Header.Render(fmt.Sprintf("%-4s %-14s %s", "#", metric, "params")))
	b.WriteString("\n")
	for i, t := range ok {
		b.WriteString(fmt.Sprintf("%-4d %s %s\n",
			i+1,
			s.Value.Render(fmt.Sprintf("%-14.6f", t.Value)),
			optim.FormatParams(t.Params)))
	}
	if failed := len(trials) - countOK(trials); failed > 0 {
		b.WriteString(s.Alert.Render(fmt.Sprintf("%d trial(s) failed", failed)))
		b.WriteString("\n")
	}
	return b.String()
}

func countOK(trials []optim.Trial) int {
	n := 0
	for _, t := range trials {
		if t.Err == nil {
			n++
		}
	}
	return n
}
