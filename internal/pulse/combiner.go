package pulse

import (
	"slices"
	"strings"
)

const (
	// SinglePassPrefix marks a single-pass channel. The rest of the name
	// identifies the double-pass channel it drives together with.
	SinglePassPrefix = "SP_"

	// ReferenceOffset is the nominal single-pass carrier frequency removed
	// when two tones are combined.
	ReferenceOffset = 80e6
)

// Combiner merges single-pass pulses with their double-pass partners.
type Combiner struct {
	prefix string
	offset float64
	pairs  map[string]string
}

// CombinerOption configures a Combiner.
type CombinerOption func(*Combiner)

// WithPair pins the partner of a single-pass channel, overriding name matching.
func WithPair(singlePass, doublePass string) CombinerOption {
	return func(c *Combiner) { c.pairs[singlePass] = doublePass }
}

// WithPrefix replaces SinglePassPrefix.
func WithPrefix(prefix string) CombinerOption {
	return func(c *Combiner) { c.prefix = prefix }
}

// WithReferenceOffset replaces ReferenceOffset.
func WithReferenceOffset(offset float64) CombinerOption {
	return func(c *Combiner) { c.offset = offset }
}

// NewCombiner returns a combiner with the default prefix and offset.
func NewCombiner(opts ...CombinerOption) *Combiner {
	c := &Combiner{
		prefix: SinglePassPrefix,
		offset: ReferenceOffset,
		pairs:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsSinglePass reports whether channel carries the single-pass prefix.
func (c *Combiner) IsSinglePass(channel string) bool {
	return strings.HasPrefix(channel, c.prefix) && len(channel) > len(c.prefix)
}

// Combine folds pulses, in recorded order, into laser pulses.
//
// For each single-pass pulse the partner channel is the pinned pair if any,
// otherwise the channel named by the remainder after the prefix, otherwise
// the longest recorded channel d such that the remainder starts with d+"_"
// (SP_729G_bichro pairs with 729G). Every partner pulse that overlaps yields
// one combined pulse named after the remainder. Both sides of a match are
// consumed, so partner pulses with no overlap are dropped. Single-pass pulses
// without a recorded partner and pulses never matched pass through unchanged.
//
// Combined pulses come first in single-pass order, followed by the pass-through
// pulses in recorded order. The input slice is not modified.
func (c *Combiner) Combine(pulses []Pulse) []Pulse {
	channels := recordedChannels(pulses)
	consumed := make([]bool, len(pulses))
	var out []Pulse

	for i, sp := range pulses {
		if !c.IsSinglePass(sp.Channel) {
			continue
		}
		laser := strings.TrimPrefix(sp.Channel, c.prefix)
		partner, ok := c.partner(sp.Channel, laser, channels)
		if !ok {
			continue
		}
		consumed[i] = true
		for j, dp := range pulses {
			if j == i || dp.Channel != partner {
				continue
			}
			consumed[j] = true
			on, off, ok := sp.Overlap(dp)
			if !ok {
				continue
			}
			out = append(out, Pulse{
				Channel:     laser,
				TimeOn:      on,
				TimeOff:     off,
				Frequency:   sp.Frequency + dp.Frequency - c.offset,
				Amplitude:   sp.Amplitude * dp.Amplitude,
				Attenuation: sp.Attenuation + dp.Attenuation,
				Phase:       sp.Phase + dp.Phase,
			})
		}
	}

	for i, p := range pulses {
		if !consumed[i] {
			out = append(out, p)
		}
	}
	return out
}

func (c *Combiner) partner(singlePass, laser string, channels []string) (string, bool) {
	if dp, ok := c.pairs[singlePass]; ok {
		return dp, slices.Contains(channels, dp)
	}
	if slices.Contains(channels, laser) {
		return laser, true
	}
	best := ""
	for _, ch := range channels {
		if c.IsSinglePass(ch) || len(ch) <= len(best) {
			continue
		}
		if strings.HasPrefix(laser, ch+"_") {
			best = ch
		}
	}
	return best, best != ""
}

// recordedChannels returns the distinct channel names in first-seen order.
func recordedChannels(pulses []Pulse) []string {
	seen := make(map[string]bool, len(pulses))
	var out []string
	for _, p := range pulses {
		if !seen[p.Channel] {
			seen[p.Channel] = true
			out = append(out, p.Channel)
		}
	}
	return out
}
