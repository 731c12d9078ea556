// Package frequency computes drive frequencies for named carrier transitions,
// optionally shifted by a motional sideband and a detuning.
package frequency

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/pulsesim/internal/params"
)

var (
	// ErrUnknownLine reports a transition name missing from the carrier table.
	ErrUnknownLine = errors.New("unknown carrier transition")
	// ErrUnknownMode reports a sideband name missing from the mode table.
	ErrUnknownMode = errors.New("unknown motional mode")
)

// Request describes one frequency lookup.
type Request struct {
	Line     string
	Detuning float64
	Sideband string
	Order    float64
	Channel  string
}

// Calculator holds the carrier table, relative to the line center, and the
// motional mode frequencies.
type Calculator struct {
	carriers   []Line
	modes      map[string]float64
	modeNames  []string
	lineCenter float64
	fieldGauss float64
	offsets    map[string]float64
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithMode adds or replaces a motional mode frequency.
func WithMode(name string, freq float64) Option {
	return func(c *Calculator) {
		if _, ok := c.modes[name]; !ok {
			c.modeNames = append(c.modeNames, name)
		}
		c.modes[name] = freq
	}
}

// WithChannelOffset sets the single-pass offset of a 729 channel.
func WithChannelOffset(channel string, offset float64) Option {
	return func(c *Calculator) { c.offsets[channel] = offset }
}

// WithLineCenter sets the absolute frequency of the line center.
func WithLineCenter(center float64) Option {
	return func(c *Calculator) { c.lineCenter = center }
}

// WithField records the magnetic field in gauss the carriers were computed for.
func WithField(gauss float64) Option {
	return func(c *Calculator) { c.fieldGauss = gauss }
}

// New returns a calculator over carriers, given relative to the line center.
func New(carriers []Line, opts ...Option) *Calculator {
	c := &Calculator{
		carriers: append([]Line(nil), carriers...),
		modes:    make(map[string]float64),
		offsets:  make(map[string]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromStore builds a calculator from the DriftTracker and TrapFrequencies
// collections. Missing values default to zero.
func FromStore(s params.Store) *Calculator {
	b := params.Float(s, params.Key{Collection: "DriftTracker", Name: "current_b_field"}, 0)
	center := params.Float(s, params.Key{Collection: "DriftTracker", Name: "current_line_center"}, 0)

	opts := []Option{WithField(b), WithLineCenter(center)}
	for _, name := range s.Names("TrapFrequencies") {
		f := params.Float(s, params.Key{Collection: "TrapFrequencies", Name: name}, 0)
		opts = append(opts, WithMode(name, f))
	}
	for _, name := range s.Names("ChannelOffsets") {
		f := params.Float(s, params.Key{Collection: "ChannelOffsets", Name: name}, 0)
		opts = append(opts, WithChannelOffset(name, f))
	}
	return New(ZeemanLines(b, 0), opts...)
}

// Frequency returns the carrier term plus order × mode frequency plus the
// detuning. An unknown line or mode contributes zero.
func (c *Calculator) Frequency(r Request) float64 {
	f, _ := c.Resolve(r)
	return f
}

// Resolve is Frequency with lookup misses reported. The returned frequency is
// the same sum Frequency computes, even when err is non-nil.
func (c *Calculator) Resolve(r Request) (float64, error) {
	var errs []error
	f := r.Detuning

	carrier, ok := c.Carrier(r.Line)
	if !ok {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownLine, r.Line))
	}
	f += carrier

	if r.Sideband != "" {
		mode, ok := c.modes[r.Sideband]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownMode, r.Sideband))
		}
		f += r.Order * mode
	}
	return f, errors.Join(errs...)
}

// Absolute returns Frequency shifted by the line center.
func (c *Calculator) Absolute(r Request) float64 {
	return c.Frequency(r) + c.lineCenter
}

// Carrier returns the carrier frequency of a line relative to the center.
func (c *Calculator) Carrier(name string) (float64, bool) {
	for _, l := range c.carriers {
		if l.Name == name {
			return l.Frequency, true
		}
	}
	return 0, false
}

// Carriers returns a copy of the carrier table.
func (c *Calculator) Carriers() []Line {
	return append([]Line(nil), c.carriers...)
}

// Mode returns the frequency of a motional mode.
func (c *Calculator) Mode(name string) (float64, bool) {
	f, ok := c.modes[name]
	return f, ok
}

// ModeNames returns the configured mode names in registration order.
func (c *Calculator) ModeNames() []string {
	return append([]string(nil), c.modeNames...)
}

// ChannelOffset returns the single-pass offset for channel, zero when unset.
func (c *Calculator) ChannelOffset(channel string) float64 {
	return c.offsets[channel]
}

// LineCenter returns the absolute line center frequency.
func (c *Calculator) LineCenter() float64 { return c.lineCenter }

// FieldGauss returns the magnetic field the carrier table was built for.
func (c *Calculator) FieldGauss() float64 { return c.fieldGauss }

// String renders the carrier table, one line per transition.
func (c *Calculator) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "B = %.4f G, line center = %.6f MHz\n", c.fieldGauss, c.lineCenter/1e6)
	for _, l := range c.carriers {
		fmt.Fprintf(&b, "  %-11s %+12.6f MHz\n", l.Name, l.Frequency/1e6)
	}
	names := append([]string(nil), c.modeNames...)
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&b, "  %-20s %12.6f MHz\n", n, c.modes[n]/1e6)
	}
	return b.String()
}
