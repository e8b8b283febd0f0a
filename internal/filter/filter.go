// Package filter provides the smoothing primitives used on sensor streams:
//
//   - [EMA]: single exponential moving average
//   - [DEMA]: double exponential moving average (level plus slope)
//   - [Average]: N-sample ring average, usually [NewFive] or [NewTen]
//
// Every filter owns only its own accumulator and starts zeroed. Weights are
// supplied by the caller on each call and are not range checked.
package filter

// EMA is a single exponential moving average.
type EMA struct {
	output    float64
	outputOld float64
}

// Filter blends in with weight alpha against the previous output.
func (f *EMA) Filter(in, alpha float64) float64 {
	f.output = alpha*in + (1.0-alpha)*f.outputOld
	f.outputOld = f.output
	return f.output
}

func (f *EMA) Output() float64 { return f.output }

func (f *EMA) Reset() { *f = EMA{} }

// DEMA tracks a smoothed level and a smoothed slope so it can follow ramps
// without the lag of a plain EMA.
type DEMA struct {
	level    float64
	slope    float64
	levelOld float64
	slopeOld float64
}

// Filter returns level+slope after folding in the new sample. Both terms are
// computed from the previous pair before either is stored.
func (f *DEMA) Filter(in, alpha, beta float64) float64 {
	f.level = alpha*in + (1.0-alpha)*(f.levelOld+f.slopeOld)
	f.slope = beta*(f.level-f.levelOld) + (1.0-beta)*f.slopeOld
	f.levelOld = f.level
	f.slopeOld = f.slope
	return f.level + f.slope
}

func (f *DEMA) Level() float64 { return f.level }

func (f *DEMA) Slope() float64 { return f.slope }

func (f *DEMA) Reset() { *f = DEMA{} }

// Average is a fixed-size ring average. Slots never written count as zero, so
// the first N-1 outputs are biased toward zero.
type Average struct {
	samples []float64
	index   int
}

func NewAverage(n int) *Average {
	if n < 1 {
		n = 1
	}
	return &Average{samples: make([]float64, n)}
}

// NewFive returns a five sample ring average.
func NewFive() *Average { return NewAverage(5) }

// NewTen returns a ten sample ring average.
func NewTen() *Average { return NewAverage(10) }

func (a *Average) Filter(in float64) float64 {
	a.samples[a.index] = in
	a.index++
	if a.index >= len(a.samples) {
		a.index = 0
	}

	sum := 0.0
	for _, v := range a.samples {
		sum += v
	}
	return sum / float64(len(a.samples))
}

func (a *Average) Len() int { return len(a.samples) }

func (a *Average) Reset() {
	for i := range a.samples {
		a.samples[i] = 0
	}
	a.index = 0
}
