package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pulsesim/internal/artifacts"
	"github.com/banshee-data/pulsesim/internal/config"
	"github.com/banshee-data/pulsesim/internal/evaluator"
	"github.com/banshee-data/pulsesim/internal/evaluator/remote"
	"github.com/banshee-data/pulsesim/internal/experiments"
	"github.com/banshee-data/pulsesim/internal/fit"
	"github.com/banshee-data/pulsesim/internal/fsutil"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/plot"
	"github.com/banshee-data/pulsesim/internal/scan"
	"github.com/banshee-data/pulsesim/internal/storage/sqlite"
	"github.com/banshee-data/pulsesim/internal/units"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		scans      []string
		sets       []string
		paramsPath string
		outputDir  string
		database   string
		evalAddr   string
		plots      string
		fitModel   string
		fitCurve   string
		minR2      float64
	)

	cmd := &cobra.Command{
		Use:   "run [experiment]",
		Short: "Scan an experiment and record its pulses and readout curves",
		Long: `Scan an experiment over one or more axes.

Axes come from --scan, then the run file, then the experiment's default scans.
A scan is axis=Collection.name=start:stop:npoints, axis=Collection.name=value
or axis=Collection.name for the current value. Bounds accept unit suffixes:

  pulsesim run RabiFlopping --scan Rabi=RabiFlopping.duration=0:50us:26`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.EmptyRunConfig()
			if configPath != "" {
				loaded, err := config.LoadRunConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}

			flags := cmd.Flags()
			if len(args) == 1 {
				cfg.Sequence = &args[0]
			}
			if flags.Changed("params") {
				cfg.Parameters = &paramsPath
			}
			if flags.Changed("output-dir") {
				cfg.OutputDir = &outputDir
			}
			if flags.Changed("db") {
				cfg.Database = &database
			}
			if flags.Changed("evaluator") {
				cfg.EvaluatorAddr = &evalAddr
			}
			if flags.Changed("plots") {
				cfg.Plots = &plots
			}
			if fitCurve != "" {
				cfg.Fit = &config.FitConfig{Model: fitModel, Curve: fitCurve, MinRSquared: minR2}
			}
			for _, s := range sets {
				key, value, err := parseSetting(s)
				if err != nil {
					return err
				}
				if cfg.Overrides == nil {
					cfg.Overrides = make(map[string]any)
				}
				cfg.Overrides[key] = value
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if cfg.GetSequence() == "" {
				return fmt.Errorf("no experiment given; choose one of %s", strings.Join(experiments.Names(), ", "))
			}

			axes, err := cfg.ScanAxes()
			if err != nil {
				return err
			}
			if len(scans) > 0 {
				axes = axes[:0]
				for _, s := range scans {
					a, err := scan.ParseAxis(s)
					if err != nil {
						return err
					}
					axes = append(axes, a)
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			return runScan(cmd.Context(), cmd.OutOrStdout(), cfg, axes, jsonOut, monitoring.Logger())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Run file (.json, .yaml or .yml)")
	flags.StringArrayVarP(&scans, "scan", "s", nil, "Scan axis=Collection.name[=spec] (repeatable)")
	flags.StringArrayVar(&sets, "set", nil, "Override a parameter, Collection.name=value (repeatable)")
	flags.StringVar(&paramsPath, "params", "", "Parameter file merged over the built-in defaults")
	flags.StringVarP(&outputDir, "output-dir", "o", "", "Artifact directory (default data)")
	flags.StringVar(&database, "db", "", "SQLite database recording runs")
	flags.StringVar(&evalAddr, "evaluator", "", "Remote evaluator address (default dry run)")
	flags.StringVar(&plots, "plots", "", "Plots after each axis: none, png, html, both")
	flags.StringVar(&fitModel, "fit", "sinusoid", "Fit model: sinusoid or lorentzian")
	flags.StringVar(&fitCurve, "fit-curve", "", "Curve to fit after each axis (enables fitting)")
	flags.Float64Var(&minR2, "min-r2", 0, "Stop the run when a fit has a lower R²")
	return cmd
}

// runSummary is the JSON output of run.
type runSummary struct {
	State   scan.State             `json:"state"`
	Results []*scan.Result         `json:"results"`
	Fits    map[string]*fit.Result `json:"fits,omitempty"`
	Units   map[string]string      `json:"units,omitempty"`
}

func runScan(ctx context.Context, out io.Writer, cfg *config.RunConfig, axes []scan.Axis, jsonOut bool, log *slog.Logger) error {
	def, err := experiments.Lookup(cfg.GetSequence())
	if err != nil {
		return err
	}
	if len(axes) == 0 {
		axes = def.DefaultAxes()
	}

	store, err := cfg.Store()
	if err != nil {
		return err
	}

	var eval evaluator.Evaluator = evaluator.Uniform{}
	if addr := cfg.GetEvaluatorAddr(); addr != "" {
		client, err := remote.Dial(addr)
		if err != nil {
			return err
		}
		defer client.Close()
		eval = client
	}

	opts := []scan.Option{
		scan.WithLogger(log),
		scan.WithSink(artifacts.NewFileSink(fsutil.OSFileSystem{}, cfg.GetOutputDir(), log)),
	}
	if path := cfg.GetDatabase(); path != "" {
		db, err := sqlite.Open(path, sqlite.WithLogger(log))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		opts = append(opts, scan.WithSink(db))
	}

	switch cfg.GetPlots() {
	case config.PlotsPNG:
		opts = append(opts, scan.WithHook(plot.NewPNGHook(fsutil.OSFileSystem{}, cfg.GetOutputDir(), log)))
	case config.PlotsHTML:
		opts = append(opts, scan.WithHook(plot.NewHTMLHook(fsutil.OSFileSystem{}, cfg.GetOutputDir(), log)))
	case config.PlotsBoth:
		opts = append(opts,
			scan.WithHook(plot.NewPNGHook(fsutil.OSFileSystem{}, cfg.GetOutputDir(), log)),
			scan.WithHook(plot.NewHTMLHook(fsutil.OSFileSystem{}, cfg.GetOutputDir(), log)))
	}

	var fitHook *fit.Hook
	if cfg.Fit != nil {
		name := cfg.Fit.Model
		if name == "" {
			name = "sinusoid"
		}
		model, err := fit.ModelByName(name)
		if err != nil {
			return err
		}
		fitHook = fit.NewHook(model, cfg.Fit.Curve, cfg.Fit.MinRSquared, log)
		opts = append(opts, scan.WithHook(fitHook))
	}

	ex := scan.NewExecutor(store, eval, opts...)
	results, runErr := ex.Run(ctx, def.New(), axes)

	summary := runSummary{State: ex.State(), Results: results, Units: make(map[string]string)}
	for _, r := range results {
		summary.Units[r.Axis] = displayUnit(def, r, axes)
		if fitHook != nil {
			if f, ok := fitHook.Result(r.Axis); ok && finiteFit(f) {
				if summary.Fits == nil {
					summary.Fits = make(map[string]*fit.Result)
				}
				summary.Fits[r.Axis] = f
			}
		}
	}

	var printErr error
	if jsonOut {
		printErr = writeJSON(out, summary)
	} else {
		printErr = printSummary(out, summary)
	}
	if runErr != nil {
		return runErr
	}
	return printErr
}

// displayUnit returns the unit results of an axis are printed in. Frequency
// scans already record absolute MHz.
func displayUnit(def experiments.Definition, r *scan.Result, axes []scan.Axis) string {
	if experiments.IsFrequencyScan(def.Name) {
		return units.MHz
	}
	for _, a := range axes {
		if a.Name == r.Axis {
			return def.Unit(a.Name, a.Parameter)
		}
	}
	return ""
}

func printSummary(out io.Writer, s runSummary) error {
	fmt.Fprintf(out, "run %s (%s) %s\n", s.State.RunID, s.State.Sequence, s.State.Status)
	for _, r := range s.Results {
		unit := s.Units[r.Axis]
		fmt.Fprintf(out, "\naxis %s: %s, %d points\n", r.Axis, r.Parameter, r.Len())

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		header := "x"
		if unit != "" {
			header = fmt.Sprintf("x [%s]", unit)
		}
		fmt.Fprintf(w, "%s\t%s\t\n", header, strings.Join(r.Names(), "\t"))
		for i, x := range r.X {
			if unit != units.MHz {
				x = units.FromBase(x, unit)
			}
			row := []string{fmt.Sprintf("%.6g", x)}
			for _, series := range r.Series {
				row = append(row, fmt.Sprintf("%.4f", series.Y[i]))
			}
			fmt.Fprintf(w, "%s\t\n", strings.Join(row, "\t"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if f, ok := s.Fits[r.Axis]; ok {
			fmt.Fprintf(out, "fit %s: R²=%.4f", f.Model, f.RSquared)
			for _, name := range sortedKeys(f.Params) {
				fmt.Fprintf(out, " %s=%.6g", name, f.Params[name])
			}
			fmt.Fprintln(out)
		}
	}
	for _, w := range s.State.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if s.State.Error != "" {
		fmt.Fprintf(out, "error: %s\n", s.State.Error)
	}
	return nil
}

// parseSetting splits a Collection.name=value override. Values that parse as
// quantities become numbers, true and false become booleans, anything else
// stays a string.
func parseSetting(s string) (string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		return "", nil, fmt.Errorf("invalid --set %q: expected Collection.name=value", s)
	}
	key = strings.TrimSpace(key)
	if _, err := params.ParseKey(key); err != nil {
		return "", nil, fmt.Errorf("invalid --set %q: %w", s, err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "true" || raw == "false" {
		return key, raw == "true", nil
	}
	if f, err := units.ParseQuantity(raw); err == nil {
		return key, f, nil
	}
	return key, raw, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// finiteFit reports whether every number of f can be encoded as JSON. Flat
// curves have an undefined R².
func finiteFit(f *fit.Result) bool {
	vals := []float64{f.RSquared, f.RMSE}
	for _, v := range f.Params {
		vals = append(vals, v)
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
