package frequency

import (
	"fmt"
	"math"
)

const (
	bohrMagneton = 9.2740096820e-24 // J/T
	planck       = 6.62606957e-34   // J·s

	// Landé g-factors used by the simulator. Measured values differ in the
	// fourth decimal place.
	gFactorS = 2.0
	gFactorD = 1.2

	gaussToTesla = 1e-4
)

// CarrierNames lists the S1/2 → D5/2 transitions in table order.
var CarrierNames = []string{
	"S+1/2D-3/2", "S-1/2D-5/2", "S+1/2D-1/2", "S-1/2D-3/2", "S+1/2D+1/2",
	"S-1/2D-1/2", "S+1/2D+3/2", "S-1/2D+1/2", "S+1/2D+5/2", "S-1/2D+3/2",
}

// Line is one named carrier transition.
type Line struct {
	Name      string
	Frequency float64
}

// ZeemanLines returns the Δm ≤ 2 transitions between the S1/2 and D5/2
// manifolds of Ca+ for a field of bGauss, offset by lineCenter. Lines are
// returned in CarrierNames order.
func ZeemanLines(bGauss, lineCenter float64) []Line {
	b := bGauss * gaussToTesla
	scaleS := gFactorS * bohrMagneton / planck
	scaleD := gFactorD * bohrMagneton / planck

	byName := make(map[string]float64, len(CarrierNames))
	for _, ms := range []float64{-0.5, 0.5} {
		for md := -2.5; md <= 2.5; md++ {
			if math.Abs(md-ms) > 2 {
				continue
			}
			name := "S" + sublevel(ms) + "D" + sublevel(md)
			byName[name] = scaleD*md*b - scaleS*ms*b + lineCenter
		}
	}

	lines := make([]Line, 0, len(CarrierNames))
	for _, name := range CarrierNames {
		lines = append(lines, Line{Name: name, Frequency: byName[name]})
	}
	return lines
}

// sublevel renders a half-integer magnetic quantum number as "+3/2".
func sublevel(m float64) string {
	num := int(math.Round(2 * m))
	sign := "+"
	if num < 0 {
		sign = "-"
		num = -num
	}
	return fmt.Sprintf("%s%d/2", sign, num)
}
