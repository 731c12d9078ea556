// Package experiments holds the pulse sequences pulsesim can simulate and the
// reusable subsequences they are composed from.
package experiments

import (
	"github.com/banshee-data/pulsesim/internal/frequency"
	"github.com/banshee-data/pulsesim/internal/pulse"
	"github.com/banshee-data/pulsesim/internal/sequence"
	"github.com/banshee-data/pulsesim/internal/timeline"
)

// Channel names.
const (
	Channel397        = "397"
	Channel854        = "854"
	Channel866        = "866"
	ChannelMod397     = "mod397"
	DefaultChannel729 = "729G"
)

const (
	dopplerPreFrequency  = 60e6
	dopplerIdleFrequency = 20e6
)

// singlePass returns the single-pass partner of a 729 double-pass channel.
func singlePass(channel string) string { return pulse.SinglePassPrefix + channel }

func singlePassFrequency(ctx *sequence.Context, channel string) float64 {
	if ctx.Freq == nil {
		return pulse.ReferenceOffset
	}
	return pulse.ReferenceOffset + ctx.Freq.ChannelOffset(channel)
}

// DopplerCoolingConfig is bound from the DopplerCooling collection.
type DopplerCoolingConfig struct {
	Duration         float64 `param:"DopplerCooling.doppler_cooling_duration"`
	RepumpAdditional float64 `param:"DopplerCooling.doppler_cooling_repump_additional"`
	PreDuration      float64 `param:"DopplerCooling.pre_duration"`
	Frequency397     float64 `param:"DopplerCooling.doppler_cooling_frequency_397"`
	Amplitude397     float64 `param:"DopplerCooling.doppler_cooling_amplitude_397"`
	Att397           float64 `param:"DopplerCooling.doppler_cooling_att_397"`
	Frequency866     float64 `param:"DopplerCooling.doppler_cooling_frequency_866"`
	Amplitude866     float64 `param:"DopplerCooling.doppler_cooling_amplitude_866"`
	Att866           float64 `param:"DopplerCooling.doppler_cooling_att_866"`
}

// DopplerCooling drives 397 and 866 together: a far-detuned pre-cooling
// stage, the cooling stage, then 866 alone for the additional repump time.
type DopplerCooling struct {
	Cfg DopplerCoolingConfig
}

func NewDopplerCooling() *DopplerCooling { return &DopplerCooling{} }

func (d *DopplerCooling) Name() string { return "DopplerCooling" }
func (d *DopplerCooling) Config() any  { return &d.Cfg }

func (d *DopplerCooling) Run(ctx *sequence.Context) error {
	c := d.Cfg
	em := ctx.Emitter
	l397, l866 := em.Output(Channel397), em.Output(Channel866)

	l397.Set(dopplerPreFrequency, timeline.WithAmplitude(c.Amplitude397))
	l397.SetAtt(c.Att397)
	l866.Set(c.Frequency866, timeline.WithAmplitude(c.Amplitude866))
	l866.SetAtt(c.Att866)
	em.Parallel(func() {
		l397.On()
		l866.On()
	})
	em.Delay(c.PreDuration)
	l397.Set(c.Frequency397, timeline.WithAmplitude(c.Amplitude397))
	em.Delay(c.Duration)
	l397.Off()
	l397.Set(dopplerIdleFrequency, timeline.WithAmplitude(0))
	em.Delay(c.RepumpAdditional)
	l866.Off()
	return nil
}

// OpticalPumpingContinuousConfig mixes the 866 cooling settings with the
// optical pumping 854 and 729 settings.
type OpticalPumpingContinuousConfig struct {
	Frequency866   float64 `param:"DopplerCooling.doppler_cooling_frequency_866"`
	Amplitude866   float64 `param:"DopplerCooling.doppler_cooling_amplitude_866"`
	Att866         float64 `param:"DopplerCooling.doppler_cooling_att_866"`
	Frequency854   float64 `param:"OpticalPumping.optical_pumping_frequency_854"`
	Amplitude854   float64 `param:"OpticalPumping.optical_pumping_amplitude_854"`
	Att854         float64 `param:"OpticalPumping.optical_pumping_att_854"`
	LineSelection  string  `param:"OpticalPumping.line_selection"`
	Channel729     string  `param:"StatePreparation.channel_729"`
	Duration       float64 `param:"OpticalPumpingContinuous.optical_pumping_continuous_duration"`
	RepumpDuration float64 `param:"OpticalPumpingContinuous.optical_pumping_continuous_repump_additional"`
	Amplitude729   float64 `param:"OpticalPumping.amplitude_729"`
	Att729         float64 `param:"OpticalPumping.att_729"`
	SPAmplitude729 float64 `param:"Excitation_729.single_pass_amplitude"`
	SPAtt729       float64 `param:"Excitation_729.single_pass_att"`
}

// OpticalPumpingContinuous pumps with 729, 854 and 866 on together. The
// single-pass 729 is left on; the next 729 subsequence switches it off.
type OpticalPumpingContinuous struct {
	Cfg OpticalPumpingContinuousConfig
}

func NewOpticalPumpingContinuous() *OpticalPumpingContinuous {
	return &OpticalPumpingContinuous{Cfg: OpticalPumpingContinuousConfig{Channel729: DefaultChannel729}}
}

func (o *OpticalPumpingContinuous) Name() string { return "OpticalPumpingContinuous" }
func (o *OpticalPumpingContinuous) Config() any  { return &o.Cfg }

func (o *OpticalPumpingContinuous) Run(ctx *sequence.Context) error {
	c := o.Cfg
	em := ctx.Emitter
	l866, l854 := em.Output(Channel866), em.Output(Channel854)
	dp, sp := em.Output(c.Channel729), em.Output(singlePass(c.Channel729))

	l866.Set(c.Frequency866, timeline.WithAmplitude(c.Amplitude866))
	l866.SetAtt(c.Att866)
	l854.Set(c.Frequency854, timeline.WithAmplitude(c.Amplitude854))
	l854.SetAtt(c.Att854)
	dp.Set(ctx.Frequency(frequency.Request{Line: c.LineSelection, Channel: c.Channel729}),
		timeline.WithAmplitude(c.Amplitude729))
	dp.SetAtt(c.Att729)
	sp.Set(singlePassFrequency(ctx, c.Channel729), timeline.WithAmplitude(c.SPAmplitude729))
	sp.SetAtt(c.SPAtt729)

	em.Parallel(func() {
		l866.On()
		l854.On()
		dp.On()
		sp.On()
	})
	em.Delay(c.Duration)
	dp.Off()
	em.Delay(2 * c.RepumpDuration)
	em.Parallel(func() {
		l854.Off()
		l866.Off()
	})
	return nil
}

// StatePreparationConfig is bound from the StatePreparation collection.
type StatePreparationConfig struct {
	OpticalPumping bool    `param:"StatePreparation.optical_pumping_enable"`
	PostDelay      float64 `param:"StatePreparation.post_delay"`
}

// StatePreparation runs Doppler cooling and, when enabled, continuous optical
// pumping.
type StatePreparation struct {
	Cfg StatePreparationConfig

	doppler sequence.Handle
	pumping sequence.Handle
}

func NewStatePreparation() *StatePreparation { return &StatePreparation{} }

func (s *StatePreparation) Name() string { return "StatePreparation" }
func (s *StatePreparation) Config() any  { return &s.Cfg }

func (s *StatePreparation) AddChildren(a *sequence.Arena) {
	s.doppler = a.Add(NewDopplerCooling())
	s.pumping = a.Add(NewOpticalPumpingContinuous())
}

func (s *StatePreparation) Run(ctx *sequence.Context) error {
	if err := ctx.Run(s.doppler); err != nil {
		return err
	}
	if s.Cfg.OpticalPumping {
		if err := ctx.Run(s.pumping); err != nil {
			return err
		}
	}
	ctx.Emitter.Delay(s.Cfg.PostDelay)
	return nil
}

// RabiExcitationConfig is bound from Excitation_729. Experiments overwrite
// the fields they scan before each run.
type RabiExcitationConfig struct {
	Frequency      float64 `param:"Excitation_729.rabi_excitation_frequency"`
	Amplitude      float64 `param:"Excitation_729.rabi_excitation_amplitude"`
	Att            float64 `param:"Excitation_729.rabi_excitation_att"`
	Phase          float64 `param:"Excitation_729.rabi_excitation_phase"`
	Channel729     string  `param:"Excitation_729.channel_729"`
	Duration       float64 `param:"Excitation_729.rabi_excitation_duration"`
	LineSelection  string  `param:"Excitation_729.line_selection"`
	SPAmplitude729 float64 `param:"Excitation_729.single_pass_amplitude"`
	SPAtt729       float64 `param:"Excitation_729.single_pass_att"`

	// RefTime is the phase reference time; negative leaves it unset.
	RefTime float64
}

// RabiExcitation is a single 729 pulse: the double-pass channel and its
// single-pass partner switched together for Duration. Phase is in degrees
// and applied to the single pass.
type RabiExcitation struct {
	Cfg RabiExcitationConfig
}

func NewRabiExcitation() *RabiExcitation {
	return &RabiExcitation{Cfg: RabiExcitationConfig{Channel729: DefaultChannel729, RefTime: -1}}
}

func (r *RabiExcitation) Name() string { return "RabiExcitation" }
func (r *RabiExcitation) Config() any  { return &r.Cfg }

func (r *RabiExcitation) Run(ctx *sequence.Context) error {
	c := r.Cfg
	em := ctx.Emitter
	dp, sp := em.Output(c.Channel729), em.Output(singlePass(c.Channel729))

	var ref []timeline.SetOption
	if c.RefTime >= 0 {
		ref = append(ref, timeline.WithRefTime(c.RefTime))
	}
	dp.Set(c.Frequency, append([]timeline.SetOption{timeline.WithAmplitude(c.Amplitude)}, ref...)...)
	dp.SetAtt(c.Att)
	sp.Set(singlePassFrequency(ctx, c.Channel729),
		append([]timeline.SetOption{timeline.WithAmplitude(c.SPAmplitude729), timeline.WithPhase(c.Phase / 360)}, ref...)...)
	sp.SetAtt(c.SPAtt729)

	em.Parallel(func() {
		dp.On()
		sp.On()
	})
	em.Delay(c.Duration)
	em.Parallel(func() {
		dp.Off()
		sp.Off()
	})
	return nil
}
