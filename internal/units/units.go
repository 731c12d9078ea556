// Package units provides the frequency, time and attenuation units used by
// timeline construction and scan configuration. The engine stores frequencies
// in Hz, durations in seconds and attenuations in dB.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit constants
const (
	Hz  = "Hz"
	KHz = "kHz"
	MHz = "MHz"
	GHz = "GHz"

	S  = "s"
	Ms = "ms"
	Us = "us"
	Ns = "ns"

	DB  = "dB"
	Deg = "deg"
)

// scale maps each unit to its multiplier into base units.
var scale = map[string]float64{
	Hz:  1,
	KHz: 1e3,
	MHz: 1e6,
	GHz: 1e9,
	S:   1,
	Ms:  1e-3,
	Us:  1e-6,
	Ns:  1e-9,
	DB:  1,
	Deg: 1,
}

// ValidUnits contains all valid unit suffixes, longest first so that suffix
// matching prefers "ms" over "s".
var ValidUnits = []string{GHz, MHz, KHz, Deg, Hz, Ms, Us, Ns, DB, S}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	_, ok := scale[unit]
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "Hz, kHz, MHz, GHz, s, ms, us, ns, dB, deg"
}

// ToBase converts a value expressed in unit into base units (Hz, s, dB).
// Unknown units are returned unchanged.
func ToBase(value float64, unit string) float64 {
	if m, ok := scale[unit]; ok {
		return value * m
	}
	return value
}

// FromBase converts a value in base units into the target unit.
// Unknown units are returned unchanged.
func FromBase(value float64, unit string) float64 {
	if m, ok := scale[unit]; ok {
		return value / m
	}
	return value
}

// ParseQuantity parses a number with an optional unit suffix, e.g. "80MHz",
// "100 us" or "-150kHz", and returns the value in base units.
func ParseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	num, unit := s, ""
	for _, u := range ValidUnits {
		if strings.HasSuffix(s, u) {
			num, unit = strings.TrimSpace(strings.TrimSuffix(s, u)), u
			break
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	if unit == "" {
		return v, nil
	}
	return ToBase(v, unit), nil
}

// AttenuatedAmplitude returns the effective output amplitude of a tone with
// amplitude amp behind att dB of attenuation.
func AttenuatedAmplitude(amp, att float64) float64 {
	return amp * math.Pow(10, -att/20)
}
