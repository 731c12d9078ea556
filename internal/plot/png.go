package plot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pulsesim/internal/fsutil"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/scan"
)

var _ scan.PostAxisHook = (*PNGHook)(nil)

// PNGHook draws every curve of an axis as a line plot and saves it as PNG.
type PNGHook struct {
	fs     fsutil.FileSystem
	root   string
	log    *slog.Logger
	Width  vg.Length
	Height vg.Length
}

// NewPNGHook returns a hook writing plots below root.
func NewPNGHook(fs fsutil.FileSystem, root string, logger *slog.Logger) *PNGHook {
	return &PNGHook{
		fs:     fs,
		root:   root,
		log:    monitoring.OrDefault(logger),
		Width:  10 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

// Path returns the PNG path of an axis.
func (h *PNGHook) Path(run scan.RunInfo, axis string) string {
	return path(h.root, run, axis, "png")
}

// AfterAxis implements scan.PostAxisHook.
func (h *PNGHook) AfterAxis(_ context.Context, run scan.RunInfo, r *scan.Result) error {
	if r.Len() == 0 {
		return nil
	}
	p, err := h.render(run, r)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(h.Width, h.Height, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("render png: %w", err)
	}

	name := h.Path(run, r.Axis)
	if err := h.fs.MkdirAll(filepath.Dir(name), dirPerm); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}
	if err := h.fs.WriteFile(name, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	h.log.Debug("plot written", "path", name)
	return nil
}

func (h *PNGHook) render(run scan.RunInfo, r *scan.Result) (*gonumplot.Plot, error) {
	p := gonumplot.New()
	p.Title.Text = title(run, r)
	p.X.Label.Text = r.Parameter
	p.Y.Label.Text = "Probability"
	p.Add(plotter.NewGrid())

	colors := palette(len(r.Series))
	for i, s := range r.Series {
		xs, ys := points(r.X, s.Y)
		if len(xs) == 0 {
			continue
		}
		xy := make(plotter.XYs, len(xs))
		for k := range xs {
			xy[k] = plotter.XY{X: xs[k], Y: ys[k]}
		}
		line, pts, err := plotter.NewLinePoints(xy)
		if err != nil {
			return nil, fmt.Errorf("curve %s: %w", s.Name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		pts.Color = colors[i]
		pts.Radius = vg.Points(2)
		p.Add(line, pts)
		p.Legend.Add(s.Name, line, pts)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
