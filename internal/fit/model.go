// Package fit fits line shapes to scan curves after each axis.
//
// Fits run in normalized coordinates u = (x - min x) / span so that the
// simplex search behaves the same for microsecond durations and megahertz
// detunings; fitted parameters are reported in the units of the scanned
// parameter.
package fit

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Model is a line shape with named parameters.
type Model interface {
	Name() string
	// Params names the parameters in the order Eval expects them.
	Params() []string
	// Eval evaluates the model at normalized coordinate u.
	Eval(p []float64, u float64) float64
	// Guesses returns starting points for the search in normalized units.
	Guesses(u, y []float64) [][]float64
	// Physical converts normalized parameters to the units of x given the
	// normalization offset and span.
	Physical(p []float64, offset, span float64) []float64
}

// Sinusoid is y = amplitude·cos(2π(x - x0)/period + phase) + offset, with x0
// the first scanned value. It covers Rabi flops and Ramsey fringes.
type Sinusoid struct{}

func (Sinusoid) Name() string { return "sinusoid" }

func (Sinusoid) Params() []string { return []string{"amplitude", "period", "phase", "offset"} }

func (Sinusoid) Eval(p []float64, u float64) float64 {
	return p[0]*math.Cos(2*math.Pi*u/p[1]+p[2]) + p[3]
}

// Guesses spans periods 2/k of the normalized range up to the Nyquist limit
// and eight phases.
func (Sinusoid) Guesses(u, y []float64) [][]float64 {
	lo, hi := floats.Min(y), floats.Max(y)
	amp := (hi - lo) / 2
	if amp == 0 {
		amp = 0.5
	}
	mean := stat.Mean(y, nil)
	maxK := len(u) - 1
	if maxK < 1 {
		maxK = 1
	}
	var out [][]float64
	for k := 1; k <= maxK; k++ {
		for j := 0; j < 8; j++ {
			out = append(out, []float64{amp, 2 / float64(k), float64(j) * math.Pi / 4, mean})
		}
	}
	return out
}

func (Sinusoid) Physical(p []float64, _, span float64) []float64 {
	amp, period, phase := p[0], p[1], p[2]
	if amp < 0 {
		amp, phase = -amp, phase+math.Pi
	}
	if period < 0 {
		period, phase = -period, -phase
	}
	return []float64{amp, period * span, wrapPhase(phase), p[3]}
}

// Lorentzian is y = amplitude·(w/2)²/((x - center)² + (w/2)²) + offset with w
// the full width at half maximum. It covers spectrum lines.
type Lorentzian struct{}

func (Lorentzian) Name() string { return "lorentzian" }

func (Lorentzian) Params() []string { return []string{"amplitude", "center", "fwhm", "offset"} }

func (Lorentzian) Eval(p []float64, u float64) float64 {
	hw := p[2] / 2
	d := u - p[1]
	return p[0]*hw*hw/(d*d+hw*hw) + p[3]
}

// Guesses places the line at the largest excursion from the median and tries
// a few widths.
func (Lorentzian) Guesses(u, y []float64) [][]float64 {
	sorted := append([]float64(nil), y...)
	sort.Float64s(sorted)
	base := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	peak := 0
	for i := range y {
		if math.Abs(y[i]-base) > math.Abs(y[peak]-base) {
			peak = i
		}
	}
	amp := y[peak] - base
	var out [][]float64
	for _, w := range []float64{0.02, 0.05, 0.1, 0.2, 0.5} {
		out = append(out, []float64{amp, u[peak], w, base})
	}
	return out
}

func (Lorentzian) Physical(p []float64, offset, span float64) []float64 {
	return []float64{p[0], offset + p[1]*span, math.Abs(p[2]) * span, p[3]}
}

func wrapPhase(p float64) float64 {
	p = math.Mod(p, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	return p
}

// ModelByName returns a built-in model.
func ModelByName(name string) (Model, error) {
	switch name {
	case "sinusoid", "sin", "rabi", "ramsey":
		return Sinusoid{}, nil
	case "lorentzian", "spectrum":
		return Lorentzian{}, nil
	default:
		return nil, fmt.Errorf("unknown fit model %q", name)
	}
}
