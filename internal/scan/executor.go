package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pulsesim/internal/evaluator"
	"github.com/banshee-data/pulsesim/internal/frequency"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/pulse"
	"github.com/banshee-data/pulsesim/internal/readout"
	"github.com/banshee-data/pulsesim/internal/sequence"
	"github.com/banshee-data/pulsesim/internal/timeline"
	"github.com/banshee-data/pulsesim/internal/timeutil"
)

// Status represents the current state of an executor run.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusConfiguring Status = "configuring"
	StatusPoint       Status = "point"
	StatusEvaluating  Status = "evaluating"
	StatusRecording   Status = "recording"
	StatusFinished    Status = "finished"
	StatusError       Status = "error"
)

// MaxIons bounds IonsOnCamera.ion_number; readout tables grow with the ion
// count and the evaluator's label space with 2^N.
const MaxIons = 64

var (
	ionCountKey    = params.Key{Collection: "IonsOnCamera", Name: "ion_number"}
	readoutModeKey = params.Key{Collection: "StateReadout", Name: "readout_mode"}
)

// State is a snapshot of executor progress.
type State struct {
	Status          Status     `json:"status"`
	RunID           string     `json:"run_id,omitempty"`
	Sequence        string     `json:"sequence,omitempty"`
	Axis            string     `json:"axis,omitempty"`
	Point           int        `json:"point"`
	TotalPoints     int        `json:"total_points"`
	CompletedPoints int        `json:"completed_points"`
	CompletedAxes   []string   `json:"completed_axes,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Error           string     `json:"error,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`
}

// Executor drives experiments over scan axes.
type Executor struct {
	store    params.Store
	eval     evaluator.Evaluator
	combiner *pulse.Combiner
	sinks    []Sink
	hooks    []PostAxisHook
	clock    timeutil.Clock
	log      *slog.Logger
	newID    func() string

	mu    sync.RWMutex
	state State
}

// Option configures an Executor.
type Option func(*Executor)

// WithSink adds an artifact sink.
func WithSink(s Sink) Option {
	return func(e *Executor) { e.sinks = append(e.sinks, s) }
}

// WithHook adds a post-axis hook.
func WithHook(h PostAxisHook) Option {
	return func(e *Executor) { e.hooks = append(e.hooks, h) }
}

// WithCombiner replaces the default pulse combiner.
func WithCombiner(c *pulse.Combiner) Option {
	return func(e *Executor) { e.combiner = c }
}

// WithClock sets the wall clock used for run timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithRunID fixes the run identifier generator.
func WithRunID(f func() string) Option {
	return func(e *Executor) { e.newID = f }
}

// NewExecutor returns an executor over a read-only store.
func NewExecutor(store params.Store, eval evaluator.Evaluator, opts ...Option) *Executor {
	e := &Executor{
		store:    store,
		eval:     eval,
		combiner: pulse.NewCombiner(),
		clock:    timeutil.RealClock{},
		newID:    uuid.NewString,
		state:    State{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = monitoring.OrDefault(e.log)
	return e
}

// State returns a copy of the current state.
func (e *Executor) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state := e.state
	state.CompletedAxes = append([]string(nil), e.state.CompletedAxes...)
	state.Warnings = append([]string(nil), e.state.Warnings...)
	return state
}

func (e *Executor) update(fn func(s *State)) {
	e.mu.Lock()
	fn(&e.state)
	e.mu.Unlock()
}

func (e *Executor) setStatus(st Status) {
	e.update(func(s *State) { s.Status = st })
}

// addWarning logs msg and appends it to the run state.
func (e *Executor) addWarning(msg string, args ...any) {
	e.log.Warn(msg, args...)
	if len(args) > 0 {
		msg = fmt.Sprintf("%s %v", msg, args)
	}
	e.update(func(s *State) { s.Warnings = append(s.Warnings, msg) })
}

type runner struct {
	*Executor
	run     RunInfo
	exp     Experiment
	overlay *params.Overlay
	session *timeline.Session
	sctx    *sequence.Context
	freq    *frequency.Calculator
}

// Run executes exp over axes in declaration order and returns one result per
// axis that was started. An axis aborted by an evaluator or readout failure
// returns its partial result together with an *AxisError.
func (e *Executor) Run(ctx context.Context, exp Experiment, axes []Axis) ([]*Result, error) {
	for _, a := range axes {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}

	now := e.clock.Now()
	r := &runner{
		Executor: e,
		exp:      exp,
		run: RunInfo{
			ID:        e.newID(),
			Sequence:  exp.Name(),
			Stamp:     timeutil.RunStamp(now),
			StartedAt: now,
		},
		overlay: params.NewOverlay(e.store),
		session: timeline.NewSession(),
		freq:    frequency.FromStore(e.store),
	}

	var em timeline.Emitter = r.session
	if e.log.Enabled(ctx, monitoring.LevelTrace) {
		em = timeline.NewTrace(r.session, e.log)
	}
	r.sctx = sequence.NewContext(em, r.overlay, r.freq, e.log)

	e.update(func(s *State) {
		*s = State{
			Status:    StatusConfiguring,
			RunID:     r.run.ID,
			Sequence:  r.run.Sequence,
			StartedAt: &now,
		}
	})
	e.log.Info("run started", "run", r.run.ID, "sequence", r.run.Sequence, "axes", len(axes))

	for _, s := range e.sinks {
		if rs, ok := s.(RunSink); ok {
			if err := rs.BeginRun(ctx, r.run); err != nil {
				e.addWarning("sink failed to begin run", "err", err)
			}
		}
	}

	results, err := r.execute(ctx, axes)

	for _, s := range e.sinks {
		if rs, ok := s.(RunSink); ok {
			if endErr := rs.EndRun(ctx, r.run, err); endErr != nil {
				e.addWarning("sink failed to end run", "err", endErr)
			}
		}
	}

	done := e.clock.Now()
	e.update(func(s *State) {
		s.CompletedAt = &done
		if err != nil {
			s.Status = StatusError
			s.Error = err.Error()
			return
		}
		s.Status = StatusFinished
	})
	if err != nil {
		e.log.Error("run failed", "run", r.run.ID, "err", err)
	} else {
		e.log.Info("run complete", "run", r.run.ID, "sequence", r.run.Sequence, "stamp", r.run.Stamp)
	}
	return results, err
}

func (r *runner) execute(ctx context.Context, axes []Axis) ([]*Result, error) {
	var results []*Result
	setupDone := false

	for _, axis := range axes {
		r.overlay.Reset()
		r.applyScanSettings(axis)

		snap := params.TakeSnapshot(r.overlay)
		for _, s := range r.sinks {
			if err := s.WriteParameters(ctx, r.run, axis.Name, snap); err != nil {
				r.addWarning("failed to write parameters", "axis", axis.Name, "err", err)
			}
		}

		if !setupDone {
			if err := r.setup(); err != nil {
				return results, err
			}
			setupDone = true
		}

		res, err := r.runAxis(ctx, axis)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
		r.update(func(s *State) { s.CompletedAxes = append(s.CompletedAxes, axis.Name) })
	}

	if f, ok := r.exp.(Finisher); ok {
		if err := f.Finish(r.sctx, results); err != nil {
			if isFit(err) {
				return results, err
			}
			r.addWarning("finish failed", "err", err)
		}
	}
	return results, nil
}

func (r *runner) setup() error {
	if err := r.exp.Setup(r.sctx); err != nil {
		return fmt.Errorf("setup %s: %w", r.exp.Name(), err)
	}
	rep, err := r.sctx.Arena.Attach(r.sctx.Resolver)
	if err != nil {
		return err
	}
	if c, ok := r.exp.(sequence.Configurable); ok && c.Config() != nil {
		own, err := r.sctx.Resolver.Attach(c.Config())
		if err != nil {
			return fmt.Errorf("attach %s: %w", r.exp.Name(), err)
		}
		rep.Resolved += own.Resolved
		rep.Misses = append(rep.Misses, own.Misses...)
	}
	r.log.Debug("configuration attached",
		"subsequences", r.sctx.Arena.Len(), "resolved", rep.Resolved, "unresolved", len(rep.Misses))
	return nil
}

func (r *runner) applyScanSettings(axis Axis) {
	for name, v := range axis.Settings(r.run.Sequence) {
		r.overlay.Set(params.Key{Collection: ScanCollection, Name: name}, v)
	}
}

func (r *runner) runAxis(ctx context.Context, axis Axis) (*Result, error) {
	res := NewResult(axis.Name, axis.Parameter.String())

	points, err := axis.Points(r.overlay)
	if err != nil {
		return nil, &AxisError{Axis: axis.Name, Point: -1, Err: err}
	}
	r.update(func(s *State) {
		s.Axis = axis.Name
		s.Point = 0
		s.TotalPoints += len(points)
	})
	r.log.Info("axis started", "axis", axis.Name, "parameter", axis.Parameter.String(), "points", len(points))

	scale := 1.0
	if xs, ok := r.exp.(XScaler); ok {
		scale = xs.XScale()
	}

	var axisErr error
	for i, v := range points {
		if err := ctx.Err(); err != nil {
			axisErr = &AxisError{Axis: axis.Name, Point: i, Err: err}
			break
		}
		rec, err := r.runPoint(ctx, axis, i, v)
		if err != nil {
			axisErr = &AxisError{Axis: axis.Name, Point: i, Err: err}
			break
		}
		rec.X *= scale
		res.Append(rec.X, rec.Curves)
		for _, s := range r.sinks {
			if err := s.WritePoint(ctx, r.run, rec); err != nil {
				r.addWarning("failed to write point", "axis", axis.Name, "point", i, "err", err)
			}
		}
		r.update(func(s *State) { s.CompletedPoints++ })
	}

	for _, s := range r.sinks {
		if err := s.WriteResult(ctx, r.run, res); err != nil {
			r.addWarning("failed to write result", "axis", axis.Name, "err", err)
		}
	}
	if axisErr != nil {
		return res, axisErr
	}

	if af, ok := r.exp.(AxisFinisher); ok {
		if err := af.AfterAxis(r.sctx, res); err != nil {
			if isFit(err) {
				return res, err
			}
			r.addWarning("post-axis analysis failed", "axis", axis.Name, "err", err)
		}
	}
	for _, h := range r.hooks {
		if err := h.AfterAxis(ctx, r.run, res); err != nil {
			if isFit(err) {
				return res, err
			}
			r.addWarning("post-axis hook failed", "axis", axis.Name, "err", err)
		}
	}
	return res, nil
}

func (r *runner) runPoint(ctx context.Context, axis Axis, i int, v float64) (PointRecord, error) {
	r.update(func(s *State) {
		s.Status = StatusPoint
		s.Point = i
	})

	r.session.Reset()
	r.overlay.Reset()
	r.applyScanSettings(axis)
	r.overlay.Set(axis.Parameter, params.NumberValue(v))
	r.sctx.BeginPoint(sequence.Point{
		Sequence:  r.run.Sequence,
		Axis:      axis.Name,
		Parameter: axis.Parameter,
		Index:     i,
		Value:     v,
	})

	if err := r.exp.Configure(r.sctx); err != nil {
		return PointRecord{}, fmt.Errorf("configure: %w", err)
	}
	if err := r.exp.Build(r.sctx); err != nil {
		return PointRecord{}, fmt.Errorf("build: %w", err)
	}
	if open := r.session.Open(); len(open) > 0 {
		r.log.Debug("channels left on at end of point", "axis", axis.Name, "point", i, "channels", open)
	}

	raw := r.session.Pulses()
	combined := r.combiner.Combine(raw)

	ions, err := ionCount(r.overlay)
	if err != nil {
		return PointRecord{}, err
	}
	mode := params.Text(r.overlay, readoutModeKey, string(readout.ModeCamera))

	r.setStatus(StatusEvaluating)
	r.log.Debug("evaluating point", "axis", axis.Name, "point", i, "value", v, "pulses", len(combined), "ions", ions)
	probs, err := r.eval.Evaluate(ctx, evaluator.Request{
		Parameters: params.TakeSnapshot(r.overlay),
		Pulses:     combined,
		IonCount:   ions,
		FieldGauss: r.freq.FieldGauss(),
	})
	if err != nil {
		return PointRecord{}, fmt.Errorf("evaluate: %w", err)
	}

	r.setStatus(StatusRecording)
	agg, err := readout.New(readout.Mode(mode), ions)
	if err != nil {
		return PointRecord{}, fmt.Errorf("readout: %w", err)
	}
	curves, err := agg.Aggregate(probs)
	if err != nil {
		return PointRecord{}, fmt.Errorf("readout: %w", err)
	}

	x := v
	if ox, ok := r.sctx.X(); ok {
		x = ox
	}
	return PointRecord{
		Axis:     axis.Name,
		Index:    i,
		Value:    v,
		X:        x,
		Pulses:   raw,
		Combined: combined,
		Curves:   curves,
	}, nil
}

// ionCount reads IonsOnCamera.ion_number, defaulting to one ion when unset.
func ionCount(s params.Store) (int, error) {
	v, ok := s.Get(ionCountKey)
	if !ok {
		return 1, nil
	}
	n, ok := v.Int()
	if !ok {
		return 0, fmt.Errorf("%s must be a whole number, got %v", ionCountKey, v)
	}
	if n < 1 || n > MaxIons {
		return 0, fmt.Errorf("%s must be between 1 and %d, got %d", ionCountKey, MaxIons, n)
	}
	return n, nil
}

func isFit(err error) bool {
	var fe *FitError
	return errors.As(err, &fe)
}
