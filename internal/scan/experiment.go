package scan

import "github.com/banshee-data/pulsesim/internal/sequence"

// Experiment is the timeline-construction logic driven by the Executor.
type Experiment interface {
	Name() string

	// Setup runs once before the first axis. It registers subsequences in
	// ctx.Arena; their configurations are bound right after it returns.
	Setup(ctx *sequence.Context) error

	// Configure runs at the start of every point, after the scanned
	// parameter has been set in ctx.Store.
	Configure(ctx *sequence.Context) error

	// Build emits the point's timeline through ctx.Emitter.
	Build(ctx *sequence.Context) error
}

// AxisFinisher is implemented by experiments that analyse each completed
// axis. A *FitError stops the run.
type AxisFinisher interface {
	AfterAxis(ctx *sequence.Context, r *Result) error
}

// Finisher is implemented by experiments with work to do after the last axis.
type Finisher interface {
	Finish(ctx *sequence.Context, results []*Result) error
}

// XScaler is implemented by experiments whose x-values are displayed in other
// units than the scanned parameter, such as MHz for frequency scans.
type XScaler interface {
	XScale() float64
}
