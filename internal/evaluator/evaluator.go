// Package evaluator defines the boundary to the physical-dynamics evaluator
// that turns a combined pulse timeline into outcome probabilities.
package evaluator

import (
	"context"
	"errors"
	"math"

	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/pulse"
	"github.com/banshee-data/pulsesim/internal/readout"
)

// Request is the input of one evaluation.
type Request struct {
	Parameters params.Snapshot `json:"parameters"`
	Pulses     []pulse.Pulse   `json:"pulses"`
	IonCount   int             `json:"ion_count"`
	FieldGauss float64         `json:"field_gauss"`
}

// Evaluator maps a pulse timeline to outcome-label probabilities. Any error
// is fatal for the scan axis being run.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (map[string]float64, error)
}

// Func adapts a function to Evaluator.
type Func func(ctx context.Context, req Request) (map[string]float64, error)

// Evaluate implements Evaluator.
func (f Func) Evaluate(ctx context.Context, req Request) (map[string]float64, error) {
	return f(ctx, req)
}

// ErrNoIons is returned for a request without ions.
var ErrNoIons = errors.New("ion count must be positive")

// maxUniformIons bounds the 2^N label table built by Uniform.
const maxUniformIons = 16

// Uniform is a dry-run evaluator: every outcome label is equally likely. It
// exercises the timeline and readout path without any physics.
type Uniform struct{}

// Evaluate implements Evaluator.
func (Uniform) Evaluate(ctx context.Context, req Request) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.IonCount < 1 {
		return nil, ErrNoIons
	}
	if req.IonCount > maxUniformIons {
		return nil, errors.New("too many ions for a uniform table")
	}
	labels := readout.Labels(req.IonCount)
	p := 1 / math.Pow(2, float64(req.IonCount))
	out := make(map[string]float64, len(labels))
	for _, l := range labels {
		out[l] = p
	}
	return out, nil
}
