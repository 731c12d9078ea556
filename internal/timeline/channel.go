package timeline

import "github.com/banshee-data/pulsesim/internal/pulse"

// DefaultAttenuation is the attenuation, in dB, of a freshly reset channel.
const DefaultAttenuation = 8.0

// SetParams carries the optional settings of a Set call. Nil fields keep the
// channel's current value.
type SetParams struct {
	Amplitude *float64
	Phase     *float64
	RefTime   *float64
}

// SetOption adjusts optional settings in Output.Set.
type SetOption func(*SetParams)

// WithAmplitude sets the amplitude along with the frequency.
func WithAmplitude(a float64) SetOption {
	return func(p *SetParams) { p.Amplitude = &a }
}

// WithPhase sets the phase along with the frequency.
func WithPhase(ph float64) SetOption {
	return func(p *SetParams) { p.Phase = &ph }
}

// WithRefTime sets the phase reference time along with the frequency.
func WithRefTime(t float64) SetOption {
	return func(p *SetParams) { p.RefTime = &t }
}

// ApplySetOptions collects opts for emitter backends.
func ApplySetOptions(opts ...SetOption) SetParams {
	var p SetParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Channel is a simulated oscillator output. Settings may change at any time;
// a recorded pulse carries the settings current when the channel is switched
// off.
type Channel struct {
	name    string
	session *Session

	frequency   float64
	amplitude   float64
	phase       float64
	attenuation float64
	refTime     float64

	on     bool
	timeOn float64
}

func newChannel(name string, s *Session) *Channel {
	c := &Channel{name: name, session: s}
	c.reset()
	return c
}

func (c *Channel) reset() {
	c.frequency = 0
	c.amplitude = 0
	c.phase = 0
	c.attenuation = DefaultAttenuation
	c.refTime = 0
	c.on = false
	c.timeOn = 0
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Set changes the frequency and, through opts, the amplitude, phase and
// reference time.
func (c *Channel) Set(freq float64, opts ...SetOption) {
	c.frequency = freq
	p := ApplySetOptions(opts...)
	if p.Amplitude != nil {
		c.amplitude = *p.Amplitude
	}
	if p.Phase != nil {
		c.phase = *p.Phase
	}
	if p.RefTime != nil {
		c.refTime = *p.RefTime
	}
}

// SetAmplitude changes the amplitude.
func (c *Channel) SetAmplitude(a float64) { c.amplitude = a }

// SetAtt changes the attenuation in dB.
func (c *Channel) SetAtt(att float64) { c.attenuation = att }

// On switches the channel on at the current time. It is a no-op when the
// channel is already on.
func (c *Channel) On() {
	if c.on {
		return
	}
	c.on = true
	c.timeOn = c.session.clock.Now()
}

// Off switches the channel off and records a pulse from the switch-on time to
// now. It is a no-op when the channel is off. A pulse of zero length is not
// recorded.
func (c *Channel) Off() {
	if !c.on {
		return
	}
	c.on = false
	now := c.session.clock.Now()
	if now <= c.timeOn {
		return
	}
	c.session.record(pulse.Pulse{
		Channel:     c.name,
		TimeOn:      c.timeOn,
		TimeOff:     now,
		Frequency:   c.frequency,
		Amplitude:   c.amplitude,
		Attenuation: c.attenuation,
		Phase:       c.phase,
	})
}

// Toggle flips the switch.
func (c *Channel) Toggle() {
	if c.on {
		c.Off()
		return
	}
	c.On()
}

// IsOn reports whether the channel is switched on.
func (c *Channel) IsOn() bool { return c.on }

// Frequency returns the current frequency.
func (c *Channel) Frequency() float64 { return c.frequency }

// Amplitude returns the current amplitude.
func (c *Channel) Amplitude() float64 { return c.amplitude }

// Phase returns the current phase.
func (c *Channel) Phase() float64 { return c.phase }

// Attenuation returns the current attenuation in dB.
func (c *Channel) Attenuation() float64 { return c.attenuation }

// RefTime returns the phase reference time.
func (c *Channel) RefTime() float64 { return c.refTime }
