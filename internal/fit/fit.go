package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// ErrTooFewPoints is returned when a curve has fewer usable samples than the
// model has parameters.
var ErrTooFewPoints = errors.New("too few points to fit")

// Result is a converged fit.
type Result struct {
	Model  string             `json:"model"`
	Params map[string]float64 `json:"params"`
	// RSquared is the coefficient of determination of the fit.
	RSquared float64 `json:"r_squared"`
	// RMSE is the root mean square residual.
	RMSE   float64 `json:"rmse"`
	Points int     `json:"points"`
	Status string  `json:"status"`

	model  Model
	norm   []float64
	offset float64
	span   float64
}

// Eval evaluates the fitted model at x.
func (r *Result) Eval(x float64) float64 {
	return r.model.Eval(r.norm, (x-r.offset)/r.span)
}

// Curve fits m to the samples (x, y). NaN and infinite samples are skipped.
func Curve(m Model, x, y []float64) (*Result, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("x has %d samples, y has %d", len(x), len(y))
	}
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) <= len(m.Params()) {
		return nil, fmt.Errorf("%w: %d samples for %d parameters", ErrTooFewPoints, len(xs), len(m.Params()))
	}

	offset := floats.Min(xs)
	span := floats.Max(xs) - offset
	if span == 0 {
		return nil, errors.New("all samples share one x value")
	}
	u := make([]float64, len(xs))
	for i := range xs {
		u[i] = (xs[i] - offset) / span
	}

	rss := func(p []float64) float64 {
		var sum float64
		for i := range u {
			d := m.Eval(p, u[i]) - ys[i]
			sum += d * d
		}
		if math.IsNaN(sum) {
			return math.Inf(1)
		}
		return sum
	}

	var start []float64
	best := math.Inf(1)
	for _, g := range m.Guesses(u, ys) {
		if f := rss(g); f < best {
			best, start = f, g
		}
	}
	if start == nil {
		return nil, errors.New("no finite starting point")
	}

	problem := optimize.Problem{Func: rss}
	settings := &optimize.Settings{
		MajorIterations: 5000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Iterations: 200,
		},
	}
	res, err := optimize.Minimize(problem, start, settings, &optimize.NelderMead{})
	if res == nil {
		return nil, fmt.Errorf("minimize: %w", err)
	}
	if math.IsInf(res.F, 0) || math.IsNaN(res.F) {
		return nil, fmt.Errorf("minimize: residual is %v", res.F)
	}

	est := make([]float64, len(u))
	for i := range u {
		est[i] = m.Eval(res.X, u[i])
	}
	out := &Result{
		Model:    m.Name(),
		Params:   make(map[string]float64, len(m.Params())),
		RSquared: stat.RSquaredFrom(est, ys, nil),
		RMSE:     math.Sqrt(res.F / float64(len(u))),
		Points:   len(u),
		Status:   res.Status.String(),
		model:    m,
		norm:     append([]float64(nil), res.X...),
		offset:   offset,
		span:     span,
	}
	for i, v := range m.Physical(res.X, offset, span) {
		out.Params[m.Params()[i]] = v
	}
	return out, nil
}
