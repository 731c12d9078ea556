// Package readout turns per-outcome probabilities into the named curves
// recorded for each scan point.
package readout

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Dark is the outcome-label symbol for a dark ion. Every other symbol is
// bright.
const Dark = 'D'

// Mode selects the aggregation rule.
type Mode string

const (
	ModePMT          Mode = "pmt"
	ModePMTMLE       Mode = "pmtMLE"
	ModePMTParity    Mode = "pmt_parity"
	ModePMTStates    Mode = "pmt_states"
	ModeCamera       Mode = "camera"
	ModeCameraStates Mode = "camera_states"
	ModeCameraParity Mode = "camera_parity"
)

// Modes lists every supported mode.
var Modes = []Mode{
	ModePMT, ModePMTMLE, ModePMTParity, ModePMTStates,
	ModeCamera, ModeCameraStates, ModeCameraParity,
}

// ErrUnknownMode is returned for a readout mode outside Modes.
var ErrUnknownMode = errors.New("unknown readout mode")

// ParseMode validates s as a readout mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Curve is one named sample produced for a scan point.
type Curve struct {
	Name  string
	Value float64
}

// Aggregator converts outcome probabilities into curves for a fixed mode and
// ion count.
type Aggregator struct {
	mode Mode
	ions int
}

// New returns an aggregator. ions must be positive.
func New(mode Mode, ions int) (*Aggregator, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if ions < 1 {
		return nil, fmt.Errorf("ion count must be positive, got %d", ions)
	}
	return &Aggregator{mode: mode, ions: ions}, nil
}

// Mode returns the configured mode.
func (a *Aggregator) Mode() Mode { return a.mode }

// Ions returns the configured ion count.
func (a *Aggregator) Ions() int { return a.ions }

// Aggregate returns the curves for one point in a deterministic order: dark
// counts ascending, then ions ascending, then state labels sorted, with
// parity last.
func (a *Aggregator) Aggregate(probs map[string]float64) ([]Curve, error) {
	labels := sortedLabels(probs)

	var out []Curve
	switch a.mode {
	case ModePMT, ModePMTMLE, ModePMTParity, ModePMTStates:
		out = append(out, a.counts(probs, labels)...)
		switch a.mode {
		case ModePMTStates:
			out = append(out, states(probs, labels)...)
		case ModePMTParity:
			out = append(out, parity(probs, labels))
		}
	case ModeCamera:
		curves, err := a.perIon(probs, labels)
		if err != nil {
			return nil, err
		}
		out = curves
	case ModeCameraStates:
		out = states(probs, labels)
	case ModeCameraParity:
		out = append(states(probs, labels), parity(probs, labels))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, a.mode)
	}
	return out, nil
}

// counts sums, for k = 1..ions, the probability of labels with exactly k dark
// symbols.
func (a *Aggregator) counts(probs map[string]float64, labels []string) []Curve {
	buckets := make([][]float64, a.ions+1)
	for _, l := range labels {
		k := DarkCount(l)
		if k >= 1 && k <= a.ions {
			buckets[k] = append(buckets[k], probs[l])
		}
	}
	out := make([]Curve, 0, a.ions)
	for k := 1; k <= a.ions; k++ {
		out = append(out, Curve{Name: "num_dark:" + strconv.Itoa(k), Value: floats.Sum(buckets[k])})
	}
	return out
}

// perIon sums, for each ion index, the probability of labels where that ion
// is dark.
func (a *Aggregator) perIon(probs map[string]float64, labels []string) ([]Curve, error) {
	sums := make([]float64, a.ions)
	for _, l := range labels {
		if len(l) < a.ions {
			return nil, fmt.Errorf("outcome label %q shorter than ion count %d", l, a.ions)
		}
		for i := 0; i < a.ions; i++ {
			if l[i] == Dark {
				sums[i] += probs[l]
			}
		}
	}
	out := make([]Curve, 0, a.ions)
	for i, v := range sums {
		out = append(out, Curve{Name: "dark_ion:" + strconv.Itoa(i), Value: v})
	}
	return out, nil
}

func states(probs map[string]float64, labels []string) []Curve {
	out := make([]Curve, 0, len(labels))
	for _, l := range labels {
		out = append(out, Curve{Name: "state:" + l, Value: probs[l]})
	}
	return out
}

func parity(probs map[string]float64, labels []string) Curve {
	var p float64
	for _, l := range labels {
		if DarkCount(l)%2 == 0 {
			p += probs[l]
		} else {
			p -= probs[l]
		}
	}
	return Curve{Name: "parity", Value: p}
}

// DarkCount returns the number of dark symbols in an outcome label.
func DarkCount(label string) int {
	return strings.Count(label, string(Dark))
}

// Labels returns every outcome label for n ions, using S for bright, in
// lexical order.
func Labels(n int) []string {
	if n <= 0 {
		return nil
	}
	out := []string{""}
	for i := 0; i < n; i++ {
		next := make([]string, 0, 2*len(out))
		for _, l := range out {
			next = append(next, l+string(Dark), l+"S")
		}
		out = next
	}
	return out
}

func sortedLabels(probs map[string]float64) []string {
	labels := make([]string, 0, len(probs))
	for l := range probs {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
