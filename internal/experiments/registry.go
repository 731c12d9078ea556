package experiments

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/scan"
)

// ErrUnknownExperiment is returned by Lookup for an unregistered name.
var ErrUnknownExperiment = errors.New("unknown experiment")

// Scan is a selectable scan of an experiment with its display unit.
type Scan struct {
	Axis scan.Axis
	Unit string
}

// Definition describes a registered experiment.
type Definition struct {
	Name        string
	Description string
	New         func() scan.Experiment
	// Scans lists the selectable scans. Several entries may share an axis
	// name; the first one is the default for that axis.
	Scans []Scan
}

// DefaultAxes returns the first scan of every distinct axis name.
func (d Definition) DefaultAxes() []scan.Axis {
	seen := make(map[string]bool)
	var out []scan.Axis
	for _, s := range d.Scans {
		if seen[s.Axis.Name] {
			continue
		}
		seen[s.Axis.Name] = true
		out = append(out, s.Axis)
	}
	return out
}

// Unit returns the display unit of the scan over parameter on axis.
func (d Definition) Unit(axis string, parameter params.Key) string {
	for _, s := range d.Scans {
		if s.Axis.Name == axis && s.Axis.Parameter == parameter {
			return s.Unit
		}
	}
	return ""
}

func rangeScan(axis, parameter string, start, stop float64, n int, unit string) Scan {
	return Scan{
		Axis: scan.Axis{
			Name:      axis,
			Parameter: params.MustKey(parameter),
			Range:     &scan.RangeSpec{Start: start, Stop: stop, NPoints: n},
		},
		Unit: unit,
	}
}

var registry = map[string]Definition{
	"RabiFlopping": {
		Name:        "RabiFlopping",
		Description: "729 pulse of variable duration after state preparation",
		New:         func() scan.Experiment { return NewRabiFlopping() },
		Scans: []Scan{
			rangeScan("Rabi", "RabiFlopping.duration", 0, 100e-6, 20, "us"),
			rangeScan("Rabi", "RabiFlopping.att_729", 0, 32, 33, "dB"),
		},
	},
	"Spectrum": {
		Name:        "Spectrum",
		Description: "729 detuning scan around the selected carrier",
		New:         func() scan.Experiment { return NewSpectrum() },
		Scans: []Scan{
			rangeScan("Spectrum", "Spectrum.carrier_detuning", -150e3, 150e3, 100, "kHz"),
		},
	},
	"Ramsey": {
		Name:        "Ramsey",
		Description: "two π/2 pulses separated by a variable wait or phase",
		New:         func() scan.Experiment { return NewRamsey() },
		Scans: []Scan{
			rangeScan("Ramsey", "Ramsey.wait_time", 0, 5e-3, 100, "ms"),
			rangeScan("Ramsey", "Ramsey.phase", 0, 360, 20, "deg"),
		},
	},
}

// Lookup returns the experiment registered under name.
func Lookup(name string) (Definition, error) {
	d, ok := registry[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownExperiment, name)
	}
	return d, nil
}

// Names returns the registered experiment names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsFrequencyScan reports whether the experiment records absolute
// frequencies as x-values.
func IsFrequencyScan(name string) bool {
	d, err := Lookup(name)
	if err != nil {
		return false
	}
	_, ok := d.New().(scan.XScaler)
	return ok
}
