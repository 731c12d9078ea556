// Package scan runs an experiment over one or more scan axes, rebuilding the
// timeline at every point and accumulating the readout curves.
package scan

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/pulsesim/internal/units"
)

// MaxPoints bounds the number of points in one range.
const MaxPoints = 10000

// RangeSpec is a linearly spaced, inclusive range of NPoints samples.
type RangeSpec struct {
	Start   float64 `json:"start" yaml:"start"`
	Stop    float64 `json:"stop" yaml:"stop"`
	NPoints int     `json:"npoints" yaml:"npoints"`
}

// ParseRangeSpec parses a "start:stop:npoints" string into a RangeSpec. The
// bounds may carry a unit suffix such as "100us" or "-150kHz".
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected start:stop:npoints", s)
	}

	start, err := units.ParseQuantity(parts[0])
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid start value %q: %w", parts[0], err)
	}

	stop, err := units.ParseQuantity(parts[1])
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid stop value %q: %w", parts[1], err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid npoints value %q: %w", parts[2], err)
	}

	r := RangeSpec{Start: start, Stop: stop, NPoints: n}
	if err := r.Validate(); err != nil {
		return RangeSpec{}, err
	}
	return r, nil
}

// Validate checks the point count.
func (r RangeSpec) Validate() error {
	if r.NPoints < 1 {
		return fmt.Errorf("npoints must be positive, got %d", r.NPoints)
	}
	if r.NPoints > MaxPoints {
		return fmt.Errorf("npoints %d exceeds limit of %d", r.NPoints, MaxPoints)
	}
	return nil
}

// Points returns start + k·(stop−start)/(N−1) for k = 0..N−1. Both endpoints
// are included exactly; N=1 yields [start].
func (r RangeSpec) Points() []float64 {
	if r.Validate() != nil {
		return nil
	}
	if r.NPoints == 1 {
		return []float64{r.Start}
	}
	return floats.Span(make([]float64, r.NPoints), r.Start, r.Stop)
}

// Step returns the spacing between consecutive points.
func (r RangeSpec) Step() float64 {
	if r.NPoints < 2 {
		return 0
	}
	return (r.Stop - r.Start) / float64(r.NPoints-1)
}

func (r RangeSpec) String() string {
	return fmt.Sprintf("%g:%g:%d", r.Start, r.Stop, r.NPoints)
}
