package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/motorkit/internal/experiment"
	"github.com/san-kum/motorkit/internal/sim"
)

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// WithWorkers bounds how many rigs run at once; 0 uses GOMAXPROCS.
func (g *GridSearch) WithWorkers(n int) *GridSearch {
	g.workers = n
	return g
}

// Search runs every combination of parameter values and returns the one
// with the lowest metricName along with all trials in grid order.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, nil, fmt.Errorf("%d parameter names for %d ranges", len(g.paramNames), len(g.ranges))
	}

	var points []map[string]float64
	g.enumerate(0, make(map[string]float64), &points)

	trials := make([]Trial, len(points))
	jobs := make([]sim.Job, 0, len(points))
	jobIdx := make([]int, 0, len(points))
	for i, p := range points {
		trials[i].Params = p
		exp, err := buildExperiment(p)
		if err != nil {
			trials[i].Err = err
			continue
		}
		jobs = append(jobs, exp.Job())
		jobIdx = append(jobIdx, i)
	}

	for j, out := range sim.RunParallel(ctx, jobs, g.workers) {
		i := jobIdx[j]
		if out.Err != nil {
			trials[i].Err = out.Err
			continue
		}
		v, ok := out.Result.Metrics[metricName]
		if !ok {
			trials[i].Err = fmt.Errorf("metric %s not recorded", metricName)
			continue
		}
		trials[i].Value = v
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	for _, t := range trials {
		if t.Err == nil && t.Value < best {
			best = t.Value
			bestParams = t.Params
		}
	}
	if bestParams == nil {
		if err := ctx.Err(); err != nil {
			return nil, 0, trials, err
		}
		return nil, 0, trials, fmt.Errorf("no grid point completed")
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		g.enumerate(depth+1, current, out)
	}
	delete(current, paramName)
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}

// FormatParams renders params as "k=v" pairs in name order.
func FormatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%.4g", k, params[k])
	}
	return strings.Join(parts, " ")
}
