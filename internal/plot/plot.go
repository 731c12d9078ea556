// Package plot renders scan results after each axis: static PNG line plots
// through gonum/plot and interactive HTML pages through go-echarts.
package plot

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"github.com/banshee-data/pulsesim/internal/scan"
	"github.com/banshee-data/pulsesim/internal/security"
	"github.com/banshee-data/pulsesim/internal/timeutil"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// path returns <root>/<date>/<stamp>_plot_<axis>.<ext>, next to the JSON
// artifacts of the same run.
func path(root string, run scan.RunInfo, axis, ext string) string {
	return filepath.Join(root, timeutil.RunDate(run.StartedAt),
		fmt.Sprintf("%s_plot_%s.%s", run.Stamp, security.SanitizeFilename(axis), ext))
}

func title(run scan.RunInfo, r *scan.Result) string {
	return fmt.Sprintf("%s %s: %s", run.Sequence, run.Stamp, r.Axis)
}

// points pairs x with y, dropping samples where either is NaN or infinite.
func points(x, y []float64) (xs, ys []float64) {
	for i := range x {
		if i >= len(y) {
			break
		}
		if bad(x[i]) || bad(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

func bad(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

// palette returns n evenly spaced hues.
func palette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := range colors {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
