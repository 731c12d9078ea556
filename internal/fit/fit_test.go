package fit

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulsesim/internal/evaluator"
	"github.com/banshee-data/pulsesim/internal/experiments"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/readout"
	"github.com/banshee-data/pulsesim/internal/scan"
	"github.com/banshee-data/pulsesim/internal/timeutil"
)

func sample(n int, lo, hi float64, f func(float64) float64) (x, y []float64) {
	for i := 0; i < n; i++ {
		v := lo + float64(i)*(hi-lo)/float64(n-1)
		x = append(x, v)
		y = append(y, f(v))
	}
	return x, y
}

func TestCurve_Sinusoid(t *testing.T) {
	x, y := sample(41, 0, 10e-6, func(v float64) float64 {
		return 0.5*math.Cos(2*math.Pi*v/4e-6) + 0.5
	})
	res, err := Curve(Sinusoid{}, x, y)
	require.NoError(t, err)

	assert.InDelta(t, 4e-6, res.Params["period"], 4e-9)
	assert.InDelta(t, 0.5, res.Params["amplitude"], 1e-3)
	assert.InDelta(t, 0.5, res.Params["offset"], 1e-3)
	assert.Greater(t, res.RSquared, 0.999)
	assert.Less(t, res.RMSE, 1e-3)
	assert.Equal(t, 41, res.Points)
	assert.InDelta(t, 1.0, res.Eval(0), 1e-3)
	assert.InDelta(t, 0.0, res.Eval(2e-6), 1e-3)
}

func TestCurve_Lorentzian(t *testing.T) {
	x, y := sample(101, -150e3, 150e3, func(v float64) float64 {
		d := v - 20e3
		return 0.8*(15e3*15e3)/(d*d+15e3*15e3) + 0.1
	})
	res, err := Curve(Lorentzian{}, x, y)
	require.NoError(t, err)

	assert.InDelta(t, 20e3, res.Params["center"], 50)
	assert.InDelta(t, 30e3, res.Params["fwhm"], 100)
	assert.InDelta(t, 0.8, res.Params["amplitude"], 1e-2)
	assert.InDelta(t, 0.1, res.Params["offset"], 1e-2)
	assert.Greater(t, res.RSquared, 0.999)
}

func TestCurve_SkipsNaN(t *testing.T) {
	x, y := sample(41, 0, 10e-6, func(v float64) float64 {
		return 0.5*math.Cos(2*math.Pi*v/4e-6) + 0.5
	})
	y[3] = math.NaN()
	y[10] = math.Inf(1)
	res, err := Curve(Sinusoid{}, x, y)
	require.NoError(t, err)
	assert.Equal(t, 39, res.Points)
	assert.InDelta(t, 4e-6, res.Params["period"], 4e-9)
}

func TestCurve_Errors(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want error
	}{
		{name: "length mismatch", x: []float64{1, 2}, y: []float64{1}},
		{name: "too few points", x: []float64{0, 1, 2, 3}, y: []float64{0, 1, 0, 1}, want: ErrTooFewPoints},
		{name: "all NaN", x: []float64{0, 1, 2, 3, 4}, y: []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}, want: ErrTooFewPoints},
		{name: "zero span", x: []float64{1, 1, 1, 1, 1}, y: []float64{0, 1, 0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Curve(Sinusoid{}, tt.x, tt.y)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestModelByName(t *testing.T) {
	for name, want := range map[string]string{
		"sinusoid":   "sinusoid",
		"rabi":       "sinusoid",
		"ramsey":     "sinusoid",
		"lorentzian": "lorentzian",
		"spectrum":   "lorentzian",
	} {
		m, err := ModelByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, m.Name())
	}
	_, err := ModelByName("gaussian")
	assert.Error(t, err)
}

func TestSinusoid_PhysicalNormalizesSigns(t *testing.T) {
	p := Sinusoid{}.Physical([]float64{-0.5, -0.4, 0, 0.5}, 0, 10)
	assert.Equal(t, 0.5, p[0])
	assert.Equal(t, 4.0, p[1])
	assert.InDelta(t, math.Pi, p[2], 1e-12)
	assert.Equal(t, 0.5, p[3])
}

var testRun = scan.RunInfo{ID: "run-1", Sequence: "RabiFlopping", Stamp: "1504_00"}

func TestHook_AfterAxis(t *testing.T) {
	x, y := sample(41, 0, 10e-6, func(v float64) float64 {
		return 0.5*math.Cos(2*math.Pi*v/4e-6) + 0.5
	})
	r := scan.NewResult("Rabi", "RabiFlopping.duration")
	for i := range x {
		r.Append(x[i], []readout.Curve{{Name: "dark_ion:0", Value: y[i]}})
	}

	h := NewHook(Sinusoid{}, "dark_ion:0", 0.99, monitoring.Discard())
	require.NoError(t, h.AfterAxis(context.Background(), testRun, r))
	got, ok := h.Result("Rabi")
	require.True(t, ok)
	assert.InDelta(t, 4e-6, got.Params["period"], 4e-9)

	_, ok = h.Result("Other")
	assert.False(t, ok)
}

func TestHook_Failures(t *testing.T) {
	r := scan.NewResult("Rabi", "RabiFlopping.duration")
	for i := 0; i < 10; i++ {
		r.Append(float64(i), []readout.Curve{{Name: "flat", Value: 0.5}})
	}

	tests := []struct {
		name string
		hook *Hook
	}{
		{name: "missing curve", hook: NewHook(Sinusoid{}, "dark_ion:0", 0, monitoring.Discard())},
		{name: "flat curve below threshold", hook: NewHook(Sinusoid{}, "flat", 0.9, monitoring.Discard())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hook.AfterAxis(context.Background(), testRun, r)
			var fe *scan.FitError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, "Rabi", fe.Axis)
		})
	}
}

func TestHook_StopsRun(t *testing.T) {
	ex := scan.NewExecutor(params.DefaultStore(), evaluator.Uniform{},
		scan.WithHook(NewHook(Sinusoid{}, "parity", 0, monitoring.Discard())),
		scan.WithLogger(monitoring.Discard()),
		scan.WithClock(timeutil.NewMockClock(time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC))),
	)
	axes := []scan.Axis{
		{Name: "Rabi", Parameter: params.MustKey("RabiFlopping.duration"), Range: &scan.RangeSpec{Start: 0, Stop: 10e-6, NPoints: 6}},
		{Name: "Second", Parameter: params.MustKey("RabiFlopping.duration"), Range: &scan.RangeSpec{Start: 0, Stop: 10e-6, NPoints: 6}},
	}
	results, err := ex.Run(context.Background(), experiments.NewRabiFlopping(), axes)
	var fe *scan.FitError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Len(t, results, 1)
	assert.Equal(t, scan.StatusError, ex.State().Status)
}
