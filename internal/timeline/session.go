package timeline

import (
	"sort"

	"github.com/banshee-data/pulsesim/internal/pulse"
)

// Output is a switchable oscillator channel as seen by sequence code.
type Output interface {
	Name() string
	Set(freq float64, opts ...SetOption)
	SetAmplitude(a float64)
	SetAtt(att float64)
	On()
	Off()
	Toggle()
}

// Emitter is the capability sequence code builds timelines with. Session is
// the simulation backend; a hardware backend implements the same interface.
type Emitter interface {
	Output(name string) Output
	Delay(d float64)
	Sequential(fn func())
	Parallel(fn func())
	Now() float64
}

// Session owns the clock, the channels and the pulses recorded for one scan
// point. It is reset before every point.
type Session struct {
	clock    *Clock
	channels map[string]*Channel
	order    []string
	pulses   []pulse.Pulse
}

var _ Emitter = (*Session)(nil)

// NewSession returns a session with names pre-declared.
func NewSession(names ...string) *Session {
	s := &Session{
		clock:    NewClock(),
		channels: make(map[string]*Channel),
	}
	s.Declare(names...)
	return s
}

// Declare creates channels that do not exist yet.
func (s *Session) Declare(names ...string) {
	for _, n := range names {
		s.Channel(n)
	}
}

// Channel returns the named channel, creating it on first use.
func (s *Session) Channel(name string) *Channel {
	if c, ok := s.channels[name]; ok {
		return c
	}
	c := newChannel(name, s)
	s.channels[name] = c
	s.order = append(s.order, name)
	return c
}

// Output implements Emitter.
func (s *Session) Output(name string) Output { return s.Channel(name) }

// Channels returns the channel names in declaration order.
func (s *Session) Channels() []string {
	return append([]string(nil), s.order...)
}

// Clock returns the session clock.
func (s *Session) Clock() *Clock { return s.clock }

// Now implements Emitter.
func (s *Session) Now() float64 { return s.clock.Now() }

// Delay implements Emitter.
func (s *Session) Delay(d float64) { s.clock.Advance(d) }

// Sequential implements Emitter.
func (s *Session) Sequential(fn func()) { s.clock.Sequential(fn) }

// Parallel implements Emitter.
func (s *Session) Parallel(fn func()) { s.clock.Parallel(fn) }

// Reset rewinds the clock, restores every channel to its defaults and drops
// the recorded pulses.
func (s *Session) Reset() {
	s.clock.Reset()
	for _, c := range s.channels {
		c.reset()
	}
	s.pulses = nil
}

// Pulses returns a copy of the recorded pulses in recording order.
func (s *Session) Pulses() []pulse.Pulse {
	return append([]pulse.Pulse(nil), s.pulses...)
}

// Open returns the sorted names of channels that are still switched on.
func (s *Session) Open() []string {
	var out []string
	for name, c := range s.channels {
		if c.on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Session) record(p pulse.Pulse) {
	s.pulses = append(s.pulses, p)
}
