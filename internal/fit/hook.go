package fit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/scan"
)

var _ scan.PostAxisHook = (*Hook)(nil)

// Hook fits one curve of every completed axis. A failed fit, or one below
// MinRSquared, is returned as a *scan.FitError and stops the run.
type Hook struct {
	model       Model
	curve       string
	minRSquared float64
	log         *slog.Logger

	mu      sync.Mutex
	results map[string]*Result
}

// NewHook returns a hook fitting curve with m. minRSquared <= 0 accepts any
// converged fit.
func NewHook(m Model, curve string, minRSquared float64, logger *slog.Logger) *Hook {
	return &Hook{
		model:       m,
		curve:       curve,
		minRSquared: minRSquared,
		log:         monitoring.OrDefault(logger),
		results:     make(map[string]*Result),
	}
}

// AfterAxis implements scan.PostAxisHook.
func (h *Hook) AfterAxis(_ context.Context, run scan.RunInfo, r *scan.Result) error {
	y, ok := r.Curve(h.curve)
	if !ok {
		return &scan.FitError{Axis: r.Axis, Err: fmt.Errorf("no curve named %q", h.curve)}
	}
	res, err := Curve(h.model, r.X, y)
	if err != nil {
		return &scan.FitError{Axis: r.Axis, Err: err}
	}
	if h.minRSquared > 0 && !(res.RSquared >= h.minRSquared) {
		return &scan.FitError{Axis: r.Axis, Err: fmt.Errorf("%s fit of %s has R² %.4f, want at least %.4f",
			h.model.Name(), h.curve, res.RSquared, h.minRSquared)}
	}

	h.mu.Lock()
	h.results[r.Axis] = res
	h.mu.Unlock()

	args := []any{"run", run.ID, "axis", r.Axis, "curve", h.curve, "model", res.Model,
		"r_squared", res.RSquared, "rmse", res.RMSE}
	for _, name := range h.model.Params() {
		args = append(args, name, res.Params[name])
	}
	h.log.Info("fit complete", args...)
	return nil
}

// Result returns the fit of an axis.
func (h *Hook) Result(axis string) (*Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.results[axis]
	return r, ok
}
