package scan

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulsesim/internal/evaluator"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/pulse"
	"github.com/banshee-data/pulsesim/internal/sequence"
	"github.com/banshee-data/pulsesim/internal/timeline"
	"github.com/banshee-data/pulsesim/internal/timeutil"
)

// flopExperiment switches 729G and SP_729G on for the scanned duration.
type flopExperiment struct {
	setupCalls int
	configured []float64
	afterAxis  []string
	finished   bool
	afterErr   error
	finishErr  error
	xOverride  bool
	scale      float64
	cfg        flopConfig
	duration   float64
}

type flopConfig struct {
	Amplitude float64 `param:"RabiFlopping.amplitude_729"`
	Channel   string  `param:"RabiFlopping.channel_729"`
}

func (e *flopExperiment) Name() string { return "Flop" }
func (e *flopExperiment) Config() any  { return &e.cfg }

func (e *flopExperiment) Setup(ctx *sequence.Context) error {
	e.setupCalls++
	return nil
}

func (e *flopExperiment) Configure(ctx *sequence.Context) error {
	e.duration = ctx.Float("RabiFlopping.duration", 0)
	e.configured = append(e.configured, e.duration)
	if e.xOverride {
		ctx.SetX(ctx.Point().Value * 2)
	}
	return nil
}

func (e *flopExperiment) Build(ctx *sequence.Context) error {
	dp := ctx.Emitter.Output(e.cfg.Channel)
	sp := ctx.Emitter.Output(pulse.SinglePassPrefix + e.cfg.Channel)
	dp.Set(1e6, timeline.WithAmplitude(e.cfg.Amplitude))
	sp.Set(pulse.ReferenceOffset, timeline.WithAmplitude(1))
	ctx.Emitter.Parallel(func() {
		dp.On()
		sp.On()
	})
	ctx.Emitter.Delay(e.duration)
	ctx.Emitter.Parallel(func() {
		dp.Off()
		sp.Off()
	})
	return nil
}

func (e *flopExperiment) AfterAxis(ctx *sequence.Context, r *Result) error {
	e.afterAxis = append(e.afterAxis, r.Axis)
	return e.afterErr
}

func (e *flopExperiment) Finish(ctx *sequence.Context, results []*Result) error {
	e.finished = true
	return e.finishErr
}

func (e *flopExperiment) XScale() float64 {
	if e.scale == 0 {
		return 1
	}
	return e.scale
}

func newTestExecutor(t *testing.T, eval evaluator.Evaluator, opts ...Option) (*Executor, *MemorySink) {
	t.Helper()
	sink := NewMemorySink()
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC))
	base := []Option{
		WithSink(sink),
		WithClock(clock),
		WithLogger(monitoring.Discard()),
		WithRunID(func() string { return "run-1" }),
	}
	return NewExecutor(params.DefaultStore(), eval, append(base, opts...)...), sink
}

func rabiAxis(n int) Axis {
	return Axis{
		Name:      "Rabi",
		Parameter: params.MustKey("RabiFlopping.duration"),
		Range:     &RangeSpec{Start: 0, Stop: 100e-6, NPoints: n},
	}
}

func TestExecutor_RangeScan(t *testing.T) {
	exp := &flopExperiment{}
	var requests []evaluator.Request
	eval := evaluator.Func(func(ctx context.Context, req evaluator.Request) (map[string]float64, error) {
		requests = append(requests, req)
		return map[string]float64{"S": 0.75, "D": 0.25}, nil
	})
	ex, sink := newTestExecutor(t, eval)

	results, err := ex.Run(context.Background(), exp, []Axis{rabiAxis(20)})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	require.Equal(t, 20, res.Len())
	require.NoError(t, res.Validate())
	assert.Equal(t, 0.0, res.X[0])
	assert.Equal(t, 100e-6, res.X[19])
	assert.Equal(t, []string{"dark_ion:0"}, res.Names())

	assert.Equal(t, 1, exp.setupCalls)
	assert.Equal(t, 1.0, exp.cfg.Amplitude)
	assert.Equal(t, "729G", exp.cfg.Channel)
	assert.Equal(t, res.X, exp.configured)
	assert.Equal(t, []string{"Rabi"}, exp.afterAxis)
	assert.True(t, exp.finished)

	require.Len(t, requests, 20)
	assert.Equal(t, 1, requests[5].IonCount)
	assert.Equal(t, 4.0, requests[5].FieldGauss)
	assert.Equal(t, res.X[5], requests[5].Parameters["RabiFlopping.duration"])
	assert.Equal(t, "Rabi", requests[5].Parameters["Scan.scan_name"])
	assert.Empty(t, requests[0].Pulses, "zero-duration point records nothing")
	require.Len(t, requests[5].Pulses, 1)
	assert.Equal(t, "729G", requests[5].Pulses[0].Channel)
	assert.InDelta(t, 1e6, requests[5].Pulses[0].Frequency, 1e-6)

	require.Len(t, sink.Points, 20)
	assert.Len(t, sink.Points[5].Pulses, 2)
	assert.Len(t, sink.Points[5].Combined, 1)
	require.Len(t, sink.Results, 1)
	snap := sink.Parameters["Rabi"]
	assert.Equal(t, "Flop", snap["Scan.sequence_name"])
	assert.Equal(t, "RabiFlopping.duration", snap["Scan.parameter_name"])
	assert.Equal(t, "RangeScan", snap["Scan.ty"])
	assert.Equal(t, 20.0, snap["Scan.npoints"])

	st := ex.State()
	assert.Equal(t, StatusFinished, st.Status)
	assert.Equal(t, "run-1", st.RunID)
	assert.Equal(t, 20, st.CompletedPoints)
	assert.Equal(t, []string{"Rabi"}, st.CompletedAxes)
	assert.Empty(t, st.Warnings)
}

func TestExecutor_EvaluatorFailureAbortsAxis(t *testing.T) {
	exp := &flopExperiment{}
	boom := errors.New("solver diverged")
	calls := 0
	eval := evaluator.Func(func(ctx context.Context, req evaluator.Request) (map[string]float64, error) {
		calls++
		if calls == 4 {
			return nil, boom
		}
		return map[string]float64{"S": 1}, nil
	})
	ex, sink := newTestExecutor(t, eval)

	second := rabiAxis(3)
	second.Name = "Second"
	results, err := ex.Run(context.Background(), exp, []Axis{rabiAxis(10), second})
	require.Error(t, err)

	var axisErr *AxisError
	require.True(t, errors.As(err, &axisErr))
	assert.Equal(t, "Rabi", axisErr.Axis)
	assert.Equal(t, 3, axisErr.Point)
	assert.ErrorIs(t, err, boom)

	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Len(), "completed points are kept")
	require.NoError(t, results[0].Validate())
	assert.Len(t, sink.Points, 3)
	assert.Len(t, sink.Results, 1, "partial result is still written")
	assert.Empty(t, exp.afterAxis, "aborted axis skips post-axis analysis")
	assert.False(t, exp.finished)

	st := ex.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Contains(t, st.Error, "solver diverged")
}

func TestExecutor_FitErrorIsFatal(t *testing.T) {
	exp := &flopExperiment{afterErr: &FitError{Axis: "Rabi", Err: errors.New("no convergence")}}
	ex, _ := newTestExecutor(t, evaluator.Uniform{})

	second := rabiAxis(2)
	second.Name = "Second"
	results, err := ex.Run(context.Background(), exp, []Axis{rabiAxis(2), second})
	var fe *FitError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Len(t, results, 1)
	assert.False(t, exp.finished)
}

func TestExecutor_NonFitHookErrorsAreLogged(t *testing.T) {
	exp := &flopExperiment{afterErr: errors.New("plot window closed"), finishErr: errors.New("cleanup")}
	hookCalls := 0
	hook := HookFunc(func(ctx context.Context, run RunInfo, r *Result) error {
		hookCalls++
		return errors.New("visualizer offline")
	})
	ex, _ := newTestExecutor(t, evaluator.Uniform{}, WithHook(hook))

	results, err := ex.Run(context.Background(), exp, []Axis{rabiAxis(2)})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, hookCalls)
	assert.True(t, exp.finished)
	assert.Len(t, ex.State().Warnings, 3)
}

func TestExecutor_FitErrorFromHook(t *testing.T) {
	hook := HookFunc(func(ctx context.Context, run RunInfo, r *Result) error {
		return &FitError{Err: errors.New("bad fit")}
	})
	ex, _ := newTestExecutor(t, evaluator.Uniform{}, WithHook(hook))
	_, err := ex.Run(context.Background(), &flopExperiment{}, []Axis{rabiAxis(2)})
	var fe *FitError
	assert.True(t, errors.As(err, &fe))
}

func TestExecutor_FitErrorFromFinish(t *testing.T) {
	exp := &flopExperiment{finishErr: &FitError{Err: errors.New("final fit")}}
	ex, _ := newTestExecutor(t, evaluator.Uniform{})
	results, err := ex.Run(context.Background(), exp, []Axis{rabiAxis(2)})
	var fe *FitError
	assert.True(t, errors.As(err, &fe))
	assert.Len(t, results, 1)
}

func TestExecutor_XOverrideAndScale(t *testing.T) {
	exp := &flopExperiment{xOverride: true, scale: 1e6}
	ex, _ := newTestExecutor(t, evaluator.Uniform{})
	results, err := ex.Run(context.Background(), exp, []Axis{rabiAxis(3)})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 100, 200}, results[0].X, 1e-9)
}

func TestExecutor_FixedAndCurrentAxes(t *testing.T) {
	fixed := 7e-6
	axes := []Axis{
		{Name: "Fixed", Parameter: params.MustKey("RabiFlopping.duration"), Fixed: &fixed},
		{Name: "Current", Parameter: params.MustKey("RabiFlopping.duration")},
	}
	exp := &flopExperiment{}
	ex, _ := newTestExecutor(t, evaluator.Uniform{})
	results, err := ex.Run(context.Background(), exp, axes)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []float64{7e-6}, results[0].X)
	assert.Equal(t, []float64{5e-6}, results[1].X, "overlay is reset between axes")
	assert.Equal(t, 1, exp.setupCalls)
}

func TestExecutor_ReadoutModeFromStore(t *testing.T) {
	store := params.DefaultStore()
	store.Set(params.MustKey("StateReadout.readout_mode"), params.StringValue("pmt_parity"))
	store.Set(params.MustKey("IonsOnCamera.ion_number"), params.NumberValue(2))
	ex := NewExecutor(store, evaluator.Uniform{}, WithLogger(monitoring.Discard()))

	results, err := ex.Run(context.Background(), &flopExperiment{}, []Axis{rabiAxis(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"num_dark:1", "num_dark:2", "parity"}, results[0].Names())
	p, _ := results[0].Curve("parity")
	assert.InDelta(t, 0, p[0], 1e-12)
	n1, _ := results[0].Curve("num_dark:1")
	assert.InDelta(t, 0.5, n1[1], 1e-12)
}

func TestExecutor_UnknownReadoutModeAbortsAxis(t *testing.T) {
	store := params.DefaultStore()
	store.Set(params.MustKey("StateReadout.readout_mode"), params.StringValue("holographic"))
	ex := NewExecutor(store, evaluator.Uniform{}, WithLogger(monitoring.Discard()))
	_, err := ex.Run(context.Background(), &flopExperiment{}, []Axis{rabiAxis(2)})
	var axisErr *AxisError
	require.True(t, errors.As(err, &axisErr))
	assert.Equal(t, 0, axisErr.Point)
}

func TestExecutor_CancelledBetweenPoints(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	eval := evaluator.Func(func(_ context.Context, req evaluator.Request) (map[string]float64, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return map[string]float64{"S": 1}, nil
	})
	ex, _ := newTestExecutor(t, eval)
	results, err := ex.Run(ctx, &flopExperiment{}, []Axis{rabiAxis(5)})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Len(), "the running point completes")
}

func TestExecutor_InvalidAxisRejectedUpFront(t *testing.T) {
	exp := &flopExperiment{}
	ex, _ := newTestExecutor(t, evaluator.Uniform{})
	_, err := ex.Run(context.Background(), exp, []Axis{{Name: "x"}})
	assert.Error(t, err)
	assert.Zero(t, exp.setupCalls)
	assert.Equal(t, StatusIdle, ex.State().Status)
}

func TestExecutor_SetupFailure(t *testing.T) {
	ex, _ := newTestExecutor(t, evaluator.Uniform{})
	_, err := ex.Run(context.Background(), &failingSetup{}, []Axis{rabiAxis(2)})
	assert.ErrorContains(t, err, "setup")
	assert.Equal(t, StatusError, ex.State().Status)
}

type failingSetup struct{ flopExperiment }

func (failingSetup) Setup(*sequence.Context) error { return errors.New("no hardware map") }

func TestExecutor_CurvesAlignedWhenLabelsChange(t *testing.T) {
	store := params.DefaultStore()
	store.Set(params.MustKey("StateReadout.readout_mode"), params.StringValue("camera_states"))
	calls := 0
	eval := evaluator.Func(func(_ context.Context, req evaluator.Request) (map[string]float64, error) {
		calls++
		if calls == 1 {
			return map[string]float64{"S": 1}, nil
		}
		return map[string]float64{"D": 1}, nil
	})
	ex := NewExecutor(store, eval, WithLogger(monitoring.Discard()))
	results, err := ex.Run(context.Background(), &flopExperiment{}, []Axis{rabiAxis(3)})
	require.NoError(t, err)
	require.NoError(t, results[0].Validate())
	d, _ := results[0].Curve("state:D")
	assert.True(t, math.IsNaN(d[0]))
	s, _ := results[0].Curve("state:S")
	assert.True(t, math.IsNaN(s[2]))
}

func TestExecutor_InvalidIonCountAbortsAxis(t *testing.T) {
	tests := []struct {
		name  string
		value params.Value
	}{
		{"fractional", params.NumberValue(2.5)},
		{"text", params.StringValue("two")},
		{"zero", params.NumberValue(0)},
		{"too many", params.NumberValue(MaxIons + 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := params.DefaultStore()
			store.Set(params.MustKey("IonsOnCamera.ion_number"), tt.value)
			called := false
			eval := evaluator.Func(func(context.Context, evaluator.Request) (map[string]float64, error) {
				called = true
				return map[string]float64{"S": 1}, nil
			})
			ex := NewExecutor(store, eval, WithLogger(monitoring.Discard()))
			results, err := ex.Run(context.Background(), &flopExperiment{}, []Axis{rabiAxis(2)})

			var axisErr *AxisError
			require.True(t, errors.As(err, &axisErr), "got %v", err)
			assert.Equal(t, 0, axisErr.Point)
			assert.Contains(t, err.Error(), "IonsOnCamera.ion_number")
			assert.False(t, called)
			require.Len(t, results, 1)
			assert.Equal(t, 0, results[0].Len())
			assert.Equal(t, StatusError, ex.State().Status)
		})
	}
}
