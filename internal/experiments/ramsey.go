package experiments

import (
	"github.com/banshee-data/pulsesim/internal/frequency"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/sequence"
)

var ramseyPhaseKey = params.Key{Collection: "Ramsey", Name: "phase"}

// RamseyConfig is bound from the Ramsey collection at every point.
type RamseyConfig struct {
	WaitTime float64 `param:"Ramsey.wait_time"`
	Phase    float64 `param:"Ramsey.phase"`
	Sideband string  `param:"Ramsey.selection_sideband"`
	Order    float64 `param:"Ramsey.order"`
	Channel  string  `param:"Ramsey.channel_729"`
	Detuning float64 `param:"Ramsey.detuning"`
	Echo     bool    `param:"Ramsey.echo"`
	NoReturn bool    `param:"Ramsey.no_return"`
}

// Ramsey runs two π/2 pulses separated by the wait time, the second with the
// configured phase. With echo enabled a π pulse splits the wait in half.
// Pulse settings come from the Rotation collection of the 729 channel, such
// as Rotation729G.
type Ramsey struct {
	excitation
	cfg    RamseyConfig
	piTime float64
}

func NewRamsey() *Ramsey {
	return &Ramsey{cfg: RamseyConfig{Channel: DefaultChannel729}}
}

func (e *Ramsey) Name() string { return "Ramsey" }
func (e *Ramsey) Config() any  { return &e.cfg }

func (e *Ramsey) Setup(ctx *sequence.Context) error { return e.setup(ctx) }

func (e *Ramsey) Configure(ctx *sequence.Context) error {
	if err := rebind(ctx, &e.cfg); err != nil {
		return err
	}
	c := e.cfg
	rot := "Rotation" + c.Channel
	e.piTime = ctx.Float(rot+".pi_time", 0)

	r := &e.rabi.Cfg
	r.Channel729 = c.Channel
	r.Amplitude = ctx.Float(rot+".amplitude", r.Amplitude)
	r.Att = ctx.Float(rot+".att", r.Att)
	r.Frequency = ctx.Frequency(frequency.Request{
		Line:     ctx.Text(rot+".line_selection", r.LineSelection),
		Detuning: c.Detuning,
		Sideband: c.Sideband,
		Order:    c.Order,
		Channel:  c.Channel,
	})
	return nil
}

func (e *Ramsey) Build(ctx *sequence.Context) error {
	c := e.cfg
	r := &e.rabi.Cfg
	r.RefTime = ctx.Emitter.Now()
	r.Duration = e.piTime / 2
	r.Phase = 0

	if err := ctx.Run(e.stateprep); err != nil {
		return err
	}
	if err := ctx.Run(e.rabiH); err != nil {
		return err
	}

	if !c.Echo {
		ctx.Emitter.Delay(c.WaitTime)
		if c.NoReturn {
			return nil
		}
		r.Phase = c.Phase
		return ctx.Run(e.rabiH)
	}

	ctx.Emitter.Delay(c.WaitTime / 2)
	r.Duration = e.piTime
	if err := ctx.Run(e.rabiH); err != nil {
		return err
	}
	ctx.Emitter.Delay(c.WaitTime / 2)
	r.Duration = e.piTime / 2
	if ctx.Point().Parameter == ramseyPhaseKey {
		r.Phase = c.Phase
	}
	return ctx.Run(e.rabiH)
}
