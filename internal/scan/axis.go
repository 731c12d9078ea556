package scan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/units"
)

// Scan types recorded in the parameter snapshot.
const (
	TypeRange   = "RangeScan"
	TypeFixed   = "FixedScan"
	TypeCurrent = "CurrentValue"
)

// ScanCollection is the snapshot collection holding the axis settings.
const ScanCollection = "Scan"

// Axis selects a parameter to scan and how its points are enumerated. With
// neither Fixed nor Range set the axis runs one point at the parameter's
// current store value.
type Axis struct {
	Name      string
	Parameter params.Key
	Fixed     *float64
	Range     *RangeSpec
}

// Validate reports a malformed axis.
func (a Axis) Validate() error {
	if a.Name == "" {
		return errors.New("axis name is required")
	}
	if a.Parameter.Collection == "" || a.Parameter.Name == "" {
		return fmt.Errorf("axis %s: parameter is required", a.Name)
	}
	if a.Fixed != nil && a.Range != nil {
		return fmt.Errorf("axis %s: fixed value and range are mutually exclusive", a.Name)
	}
	if a.Range != nil {
		if err := a.Range.Validate(); err != nil {
			return fmt.Errorf("axis %s: %w", a.Name, err)
		}
	}
	return nil
}

// Type returns the scan type recorded in the snapshot.
func (a Axis) Type() string {
	switch {
	case a.Range != nil:
		return TypeRange
	case a.Fixed != nil:
		return TypeFixed
	default:
		return TypeCurrent
	}
}

// Points enumerates the axis. The current value must be numeric-like.
func (a Axis) Points(s params.Store) ([]float64, error) {
	switch {
	case a.Range != nil:
		return a.Range.Points(), nil
	case a.Fixed != nil:
		return []float64{*a.Fixed}, nil
	}
	v, err := params.Lookup(s, a.Parameter)
	if err != nil {
		return nil, fmt.Errorf("axis %s: %w", a.Name, err)
	}
	f, ok := v.Float()
	if !ok {
		return nil, fmt.Errorf("axis %s: %s is not numeric", a.Name, a.Parameter)
	}
	return []float64{f}, nil
}

// Settings returns the Scan.* snapshot entries describing the axis.
func (a Axis) Settings(sequence string) map[string]params.Value {
	out := map[string]params.Value{
		"sequence_name":  params.StringValue(sequence),
		"scan_name":      params.StringValue(a.Name),
		"parameter_name": params.StringValue(a.Parameter.String()),
		"ty":             params.StringValue(a.Type()),
	}
	switch {
	case a.Range != nil:
		out["start"] = params.NumberValue(a.Range.Start)
		out["stop"] = params.NumberValue(a.Range.Stop)
		out["npoints"] = params.NumberValue(float64(a.Range.NPoints))
	case a.Fixed != nil:
		out["value"] = params.NumberValue(*a.Fixed)
	}
	return out
}

// ParseAxis parses "axis=Collection.name=spec" where spec is either
// "start:stop:npoints" or a single number. "axis=Collection.name" scans the
// current value.
func ParseAxis(s string) (Axis, error) {
	parts := strings.SplitN(s, "=", 3)
	if len(parts) < 2 {
		return Axis{}, fmt.Errorf("invalid axis %q: expected axis=Collection.name[=spec]", s)
	}
	key, err := params.ParseKey(parts[1])
	if err != nil {
		return Axis{}, fmt.Errorf("invalid axis %q: %w", s, err)
	}
	a := Axis{Name: strings.TrimSpace(parts[0]), Parameter: key}
	if len(parts) == 3 {
		spec := strings.TrimSpace(parts[2])
		if strings.Contains(spec, ":") {
			r, err := ParseRangeSpec(spec)
			if err != nil {
				return Axis{}, err
			}
			a.Range = &r
		} else {
			f, err := units.ParseQuantity(spec)
			if err != nil {
				return Axis{}, fmt.Errorf("invalid fixed value %q: %w", spec, err)
			}
			a.Fixed = &f
		}
	}
	return a, a.Validate()
}
