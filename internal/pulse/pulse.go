// Package pulse defines recorded channel pulses and folds single-pass and
// double-pass tones into the physical laser pulses they produce together.
package pulse

import (
	"fmt"
	"math"

	"github.com/banshee-data/pulsesim/internal/units"
)

// Pulse is one on→off interval of a channel with the settings that were
// current when it was switched off.
type Pulse struct {
	Channel     string  `json:"channel"`
	TimeOn      float64 `json:"time_on"`
	TimeOff     float64 `json:"time_off"`
	Frequency   float64 `json:"frequency"`
	Amplitude   float64 `json:"amplitude"`
	Attenuation float64 `json:"attenuation"`
	Phase       float64 `json:"phase"`
}

// Duration returns TimeOff - TimeOn.
func (p Pulse) Duration() float64 {
	return p.TimeOff - p.TimeOn
}

// Overlap returns the intersection of the two intervals. ok is false when the
// intersection is empty or a single instant.
func (p Pulse) Overlap(q Pulse) (on, off float64, ok bool) {
	on = math.Max(p.TimeOn, q.TimeOn)
	off = math.Min(p.TimeOff, q.TimeOff)
	return on, off, on < off
}

// Active reports whether the pulse is on at t, using the half-open interval
// (TimeOn, TimeOff].
func (p Pulse) Active(t float64) bool {
	return t > p.TimeOn && t <= p.TimeOff
}

// EffectiveAmplitude returns the amplitude after attenuation: a·10^(−att/20).
func (p Pulse) EffectiveAmplitude() float64 {
	return units.AttenuatedAmplitude(p.Amplitude, p.Attenuation)
}

func (p Pulse) String() string {
	return fmt.Sprintf("%s [%g, %g] f=%g a=%g att=%g φ=%g",
		p.Channel, p.TimeOn, p.TimeOff, p.Frequency, p.Amplitude, p.Attenuation, p.Phase)
}
