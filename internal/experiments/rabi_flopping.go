package experiments

import (
	"github.com/banshee-data/pulsesim/internal/frequency"
	"github.com/banshee-data/pulsesim/internal/sequence"
)

// RabiFloppingConfig is bound from the RabiFlopping collection at every point.
type RabiFloppingConfig struct {
	LineSelection string  `param:"RabiFlopping.line_selection"`
	Amplitude     float64 `param:"RabiFlopping.amplitude_729"`
	Att           float64 `param:"RabiFlopping.att_729"`
	Channel       string  `param:"RabiFlopping.channel_729"`
	Duration      float64 `param:"RabiFlopping.duration"`
	Sideband      string  `param:"RabiFlopping.selection_sideband"`
	Order         float64 `param:"RabiFlopping.order"`
	Detuning      float64 `param:"RabiFlopping.detuning"`
	Noise         bool    `param:"RabiFlopping.noise"`
}

// RabiFlopping prepares the ion and drives one 729 pulse of the configured
// duration. With noise enabled the 397 modulation runs during the pulse.
type RabiFlopping struct {
	excitation
	cfg RabiFloppingConfig
}

func NewRabiFlopping() *RabiFlopping {
	return &RabiFlopping{cfg: RabiFloppingConfig{Channel: DefaultChannel729}}
}

func (e *RabiFlopping) Name() string { return "RabiFlopping" }
func (e *RabiFlopping) Config() any  { return &e.cfg }

func (e *RabiFlopping) Setup(ctx *sequence.Context) error { return e.setup(ctx) }

func (e *RabiFlopping) Configure(ctx *sequence.Context) error {
	if err := rebind(ctx, &e.cfg); err != nil {
		return err
	}
	c := e.cfg
	r := &e.rabi.Cfg
	r.Channel729 = c.Channel
	r.Duration = c.Duration
	r.Amplitude = c.Amplitude
	r.Att = c.Att
	r.Frequency = ctx.Frequency(frequency.Request{
		Line:     c.LineSelection,
		Detuning: c.Detuning,
		Sideband: c.Sideband,
		Order:    c.Order,
		Channel:  c.Channel,
	})
	return nil
}

func (e *RabiFlopping) Build(ctx *sequence.Context) error {
	if err := ctx.Run(e.stateprep); err != nil {
		return err
	}
	mod := ctx.Emitter.Output(ChannelMod397)
	if e.cfg.Noise {
		mod.On()
	}
	if err := ctx.Run(e.rabiH); err != nil {
		return err
	}
	if e.cfg.Noise {
		mod.Off()
	}
	return nil
}
