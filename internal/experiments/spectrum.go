package experiments

import (
	"github.com/banshee-data/pulsesim/internal/frequency"
	"github.com/banshee-data/pulsesim/internal/sequence"
)

// Spectrum scans the 729 detuning around the selected carrier. Points are
// recorded against the absolute drive frequency, displayed in MHz.
type Spectrum struct {
	excitation
}

func NewSpectrum() *Spectrum { return &Spectrum{} }

func (e *Spectrum) Name() string { return "Spectrum" }

func (e *Spectrum) Setup(ctx *sequence.Context) error { return e.setup(ctx) }

func (e *Spectrum) Configure(ctx *sequence.Context) error {
	req := frequency.Request{
		Line:     e.rabi.Cfg.LineSelection,
		Detuning: ctx.Float("Spectrum.carrier_detuning", 0),
		Channel:  e.rabi.Cfg.Channel729,
	}
	e.rabi.Cfg.Frequency = ctx.Frequency(req)
	if ctx.Freq != nil {
		ctx.SetX(ctx.Freq.Absolute(req))
	}
	return nil
}

func (e *Spectrum) Build(ctx *sequence.Context) error {
	if err := ctx.Run(e.stateprep); err != nil {
		return err
	}
	return ctx.Run(e.rabiH)
}

// XScale converts the recorded absolute frequency from Hz to MHz.
func (e *Spectrum) XScale() float64 { return 1e-6 }
