package timeline

import (
	"context"
	"log/slog"

	"github.com/banshee-data/pulsesim/internal/monitoring"
)

// Trace wraps an Emitter and logs every call at trace level before
// forwarding it.
type Trace struct {
	next Emitter
	log  *slog.Logger
}

var _ Emitter = (*Trace)(nil)

// NewTrace returns a tracing emitter over next.
func NewTrace(next Emitter, logger *slog.Logger) *Trace {
	return &Trace{next: next, log: monitoring.OrDefault(logger)}
}

func (t *Trace) emit(msg string, args ...any) {
	if !t.log.Enabled(context.Background(), monitoring.LevelTrace) {
		return
	}
	t.log.Log(context.Background(), monitoring.LevelTrace, msg, append([]any{"t", t.next.Now()}, args...)...)
}

// Output implements Emitter.
func (t *Trace) Output(name string) Output {
	return &traceOutput{name: name, next: t.next.Output(name), trace: t}
}

// Delay implements Emitter.
func (t *Trace) Delay(d float64) {
	t.emit("delay", "d", d)
	t.next.Delay(d)
}

// Sequential implements Emitter.
func (t *Trace) Sequential(fn func()) {
	t.emit("enter", "mode", ModeSequential)
	t.next.Sequential(fn)
	t.emit("exit", "mode", ModeSequential)
}

// Parallel implements Emitter.
func (t *Trace) Parallel(fn func()) {
	t.emit("enter", "mode", ModeParallel)
	t.next.Parallel(fn)
	t.emit("exit", "mode", ModeParallel)
}

// Now implements Emitter.
func (t *Trace) Now() float64 { return t.next.Now() }

type traceOutput struct {
	name  string
	next  Output
	trace *Trace
}

func (o *traceOutput) Name() string { return o.name }

func (o *traceOutput) Set(freq float64, opts ...SetOption) {
	o.trace.emit("set", "channel", o.name, "freq", freq, "opts", len(opts))
	o.next.Set(freq, opts...)
}

func (o *traceOutput) SetAmplitude(a float64) {
	o.trace.emit("set_amplitude", "channel", o.name, "amp", a)
	o.next.SetAmplitude(a)
}

func (o *traceOutput) SetAtt(att float64) {
	o.trace.emit("set_att", "channel", o.name, "att", att)
	o.next.SetAtt(att)
}

func (o *traceOutput) On() {
	o.trace.emit("on", "channel", o.name)
	o.next.On()
}

func (o *traceOutput) Off() {
	o.trace.emit("off", "channel", o.name)
	o.next.Off()
}

func (o *traceOutput) Toggle() {
	o.trace.emit("toggle", "channel", o.name)
	o.next.Toggle()
}
