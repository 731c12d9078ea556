package scan

import (
	"context"
	"time"

	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/pulse"
	"github.com/banshee-data/pulsesim/internal/readout"
)

// RunInfo identifies one executor run.
type RunInfo struct {
	ID        string    `json:"id"`
	Sequence  string    `json:"sequence"`
	Stamp     string    `json:"stamp"`
	StartedAt time.Time `json:"started_at"`
}

// PointRecord is everything produced for one scan point.
type PointRecord struct {
	Axis     string          `json:"axis"`
	Index    int             `json:"index"`
	Value    float64         `json:"value"`
	X        float64         `json:"x"`
	Pulses   []pulse.Pulse   `json:"pulses"`
	Combined []pulse.Pulse   `json:"combined"`
	Curves   []readout.Curve `json:"curves"`
}

// Sink persists run artifacts. Sink errors are logged and recorded as
// warnings; they never abort a run.
type Sink interface {
	WriteParameters(ctx context.Context, run RunInfo, axis string, snap params.Snapshot) error
	WritePoint(ctx context.Context, run RunInfo, p PointRecord) error
	WriteResult(ctx context.Context, run RunInfo, r *Result) error
}

// RunSink is a Sink that also tracks run boundaries.
type RunSink interface {
	Sink
	BeginRun(ctx context.Context, run RunInfo) error
	EndRun(ctx context.Context, run RunInfo, runErr error) error
}

// PostAxisHook runs after every completed axis, after the result has been
// written to the sinks. Returning a *FitError stops the run; other errors are
// logged.
type PostAxisHook interface {
	AfterAxis(ctx context.Context, run RunInfo, r *Result) error
}

// HookFunc adapts a function to PostAxisHook.
type HookFunc func(ctx context.Context, run RunInfo, r *Result) error

// AfterAxis implements PostAxisHook.
func (f HookFunc) AfterAxis(ctx context.Context, run RunInfo, r *Result) error {
	return f(ctx, run, r)
}

// MemorySink keeps every artifact in memory.
type MemorySink struct {
	Parameters map[string]params.Snapshot
	Points     []PointRecord
	Results    []*Result
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{Parameters: make(map[string]params.Snapshot)}
}

// WriteParameters implements Sink.
func (m *MemorySink) WriteParameters(_ context.Context, _ RunInfo, axis string, snap params.Snapshot) error {
	m.Parameters[axis] = snap
	return nil
}

// WritePoint implements Sink.
func (m *MemorySink) WritePoint(_ context.Context, _ RunInfo, p PointRecord) error {
	m.Points = append(m.Points, p)
	return nil
}

// WriteResult implements Sink.
func (m *MemorySink) WriteResult(_ context.Context, _ RunInfo, r *Result) error {
	m.Results = append(m.Results, r)
	return nil
}
