package plot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pulsesim/internal/fsutil"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/scan"
)

var _ scan.PostAxisHook = (*HTMLHook)(nil)

// HTMLHook writes an interactive line chart of every axis.
type HTMLHook struct {
	fs   fsutil.FileSystem
	root string
	log  *slog.Logger

	// AssetsHost overrides where the page loads the echarts scripts from.
	AssetsHost string
}

// NewHTMLHook returns a hook writing pages below root.
func NewHTMLHook(fs fsutil.FileSystem, root string, logger *slog.Logger) *HTMLHook {
	return &HTMLHook{fs: fs, root: root, log: monitoring.OrDefault(logger)}
}

// Path returns the HTML path of an axis.
func (h *HTMLHook) Path(run scan.RunInfo, axis string) string {
	return path(h.root, run, axis, "html")
}

// AfterAxis implements scan.PostAxisHook.
func (h *HTMLHook) AfterAxis(_ context.Context, run scan.RunInfo, r *scan.Result) error {
	if r.Len() == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := h.chart(run, r).Render(&buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	name := h.Path(run, r.Axis)
	if err := h.fs.MkdirAll(filepath.Dir(name), dirPerm); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}
	if err := h.fs.WriteFile(name, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	h.log.Debug("chart written", "path", name)
	return nil
}

func (h *HTMLHook) chart(run scan.RunInfo, r *scan.Result) *charts.Line {
	initOpts := opts.Initialization{PageTitle: title(run, r), Width: "1000px", Height: "600px"}
	if h.AssetsHost != "" {
		initOpts.AssetsHost = h.AssetsHost
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: r.Axis, Subtitle: fmt.Sprintf("%s %s", run.Sequence, run.Stamp)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: r.Parameter, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Probability", Min: 0, Max: 1}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	colors := palette(len(r.Series))
	for i, s := range r.Series {
		xs, ys := points(r.X, s.Y)
		data := make([]opts.LineData, len(xs))
		for k := range xs {
			data[k] = opts.LineData{Value: []interface{}{xs[k], ys[k]}}
		}
		line.AddSeries(s.Name, data,
			charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(colors[i])}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colors[i])}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		)
	}
	return line
}
