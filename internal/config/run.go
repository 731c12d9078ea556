// Package config loads run files describing which experiment to scan, over
// which axes, and where the artifacts go.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/scan"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Plot output selections.
const (
	PlotsNone = "none"
	PlotsPNG  = "png"
	PlotsHTML = "html"
	PlotsBoth = "both"
)

// RunConfig is a run file. Every field is optional; the Get* methods supply
// defaults for fields that are not set.
type RunConfig struct {
	Sequence *string `json:"sequence,omitempty" yaml:"sequence,omitempty"`

	// Parameters is a YAML parameter file merged over the built-in defaults.
	Parameters *string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	// Overrides maps "Collection.name" keys to values applied last.
	Overrides map[string]any `json:"overrides,omitempty" yaml:"overrides,omitempty"`

	Axes []AxisConfig `json:"axes,omitempty" yaml:"axes,omitempty"`

	OutputDir     *string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Database      *string `json:"database,omitempty" yaml:"database,omitempty"`
	EvaluatorAddr *string `json:"evaluator_addr,omitempty" yaml:"evaluator_addr,omitempty"`
	LogLevel      *string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Plots         *string `json:"plots,omitempty" yaml:"plots,omitempty"`

	Fit *FitConfig `json:"fit,omitempty" yaml:"fit,omitempty"`
}

// AxisConfig is one scan axis: a fixed value, a range, or neither to scan
// the current value once.
type AxisConfig struct {
	Axis      string       `json:"axis" yaml:"axis"`
	Parameter string       `json:"parameter" yaml:"parameter"`
	Value     *float64     `json:"value,omitempty" yaml:"value,omitempty"`
	Range     *RangeConfig `json:"range,omitempty" yaml:"range,omitempty"`
}

// RangeConfig is an inclusive linear range.
type RangeConfig struct {
	Start   float64 `json:"start" yaml:"start"`
	Stop    float64 `json:"stop" yaml:"stop"`
	NPoints int     `json:"npoints" yaml:"npoints"`
}

// FitConfig selects the curve fitted after every axis.
type FitConfig struct {
	Model       string  `json:"model" yaml:"model"`
	Curve       string  `json:"curve" yaml:"curve"`
	MinRSquared float64 `json:"min_r_squared,omitempty" yaml:"min_r_squared,omitempty"`
}

// envOverrides are the environment variables that take precedence over the
// run file.
type envOverrides struct {
	OutputDir     string `env:"PULSESIM_OUTPUT_DIR"`
	Database      string `env:"PULSESIM_DATABASE"`
	EvaluatorAddr string `env:"PULSESIM_EVALUATOR_ADDR"`
	LogLevel      string `env:"PULSESIM_LOG_LEVEL"`
	Plots         string `env:"PULSESIM_PLOTS"`
}

func ptrString(v string) *string { return &v }

// EmptyRunConfig returns a RunConfig with every field unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// LoadRunConfig loads a run file. The extension selects the format: .json,
// .yaml or .yml.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	// Relative parameter files are resolved against the run file.
	if cfg.Parameters != nil && *cfg.Parameters != "" && !filepath.IsAbs(*cfg.Parameters) {
		cfg.Parameters = ptrString(filepath.Join(filepath.Dir(cleanPath), *cfg.Parameters))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the process environment.
func (c *RunConfig) ApplyEnv() error {
	e, err := env.ParseAs[envOverrides]()
	if err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	c.applyOverrides(e)
	return nil
}

// ApplyEnvironment overrides fields from the given variables instead of the
// process environment.
func (c *RunConfig) ApplyEnvironment(vars map[string]string) error {
	var e envOverrides
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	c.applyOverrides(e)
	return nil
}

func (c *RunConfig) applyOverrides(e envOverrides) {
	if e.OutputDir != "" {
		c.OutputDir = ptrString(e.OutputDir)
	}
	if e.Database != "" {
		c.Database = ptrString(e.Database)
	}
	if e.EvaluatorAddr != "" {
		c.EvaluatorAddr = ptrString(e.EvaluatorAddr)
	}
	if e.LogLevel != "" {
		c.LogLevel = ptrString(e.LogLevel)
	}
	if e.Plots != "" {
		c.Plots = ptrString(e.Plots)
	}
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if c.Plots != nil {
		switch *c.Plots {
		case "", PlotsNone, PlotsPNG, PlotsHTML, PlotsBoth:
		default:
			return fmt.Errorf("plots must be one of none, png, html, both, got %q", *c.Plots)
		}
	}
	if c.LogLevel != nil {
		switch strings.ToLower(strings.TrimSpace(*c.LogLevel)) {
		case "", "error", "warn", "warning", "info", "debug", "trace":
		default:
			return fmt.Errorf("unknown log_level %q", *c.LogLevel)
		}
	}

	for k := range c.Overrides {
		if _, err := params.ParseKey(k); err != nil {
			return fmt.Errorf("override %q: %w", k, err)
		}
	}
	if _, err := c.overrideValues(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Axes))
	for i, a := range c.Axes {
		if seen[a.Axis] {
			return fmt.Errorf("axes[%d]: duplicate axis name %q", i, a.Axis)
		}
		seen[a.Axis] = true
		if _, err := a.ScanAxis(); err != nil {
			return fmt.Errorf("axes[%d]: %w", i, err)
		}
	}

	if c.Fit != nil {
		if c.Fit.Curve == "" {
			return fmt.Errorf("fit.curve is required")
		}
		if c.Fit.MinRSquared < 0 || c.Fit.MinRSquared > 1 {
			return fmt.Errorf("fit.min_r_squared must be between 0 and 1, got %f", c.Fit.MinRSquared)
		}
	}
	return nil
}

// ScanAxis converts the axis to a scan.Axis.
func (a AxisConfig) ScanAxis() (scan.Axis, error) {
	key, err := params.ParseKey(a.Parameter)
	if err != nil {
		return scan.Axis{}, fmt.Errorf("axis %s: %w", a.Axis, err)
	}
	out := scan.Axis{Name: a.Axis, Parameter: key}
	if a.Value != nil {
		v := *a.Value
		out.Fixed = &v
	}
	if a.Range != nil {
		out.Range = &scan.RangeSpec{Start: a.Range.Start, Stop: a.Range.Stop, NPoints: a.Range.NPoints}
	}
	return out, out.Validate()
}

// ScanAxes converts every configured axis.
func (c *RunConfig) ScanAxes() ([]scan.Axis, error) {
	out := make([]scan.Axis, 0, len(c.Axes))
	for _, a := range c.Axes {
		sa, err := a.ScanAxis()
		if err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, nil
}

func (c *RunConfig) overrideValues() (map[params.Key]params.Value, error) {
	out := make(map[params.Key]params.Value, len(c.Overrides))
	for k, raw := range c.Overrides {
		key, err := params.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", k, err)
		}
		v, err := params.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", k, err)
		}
		out[key] = v
	}
	return out, nil
}

// Store builds the parameter store for the run: built-in defaults, then the
// parameter file, then overrides.
func (c *RunConfig) Store() (*params.MapStore, error) {
	store := params.DefaultStore()
	if p := c.GetParameters(); p != "" {
		file, err := params.LoadStore(p)
		if err != nil {
			return nil, err
		}
		params.Merge(store, file)
	}
	overrides, err := c.overrideValues()
	if err != nil {
		return nil, err
	}
	for k, v := range overrides {
		store.Set(k, v)
	}
	monitoring.Logger().Debug("parameter store built", "file", c.GetParameters(), "overrides", len(overrides))
	return store, nil
}

// GetSequence returns the experiment name or "".
func (c *RunConfig) GetSequence() string {
	if c.Sequence == nil {
		return ""
	}
	return *c.Sequence
}

// GetParameters returns the parameter file path or "".
func (c *RunConfig) GetParameters() string {
	if c.Parameters == nil {
		return ""
	}
	return *c.Parameters
}

// GetOutputDir returns the artifact directory or the default.
func (c *RunConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "data"
	}
	return *c.OutputDir
}

// GetDatabase returns the SQLite path, or "" to disable the database.
func (c *RunConfig) GetDatabase() string {
	if c.Database == nil {
		return ""
	}
	return *c.Database
}

// GetEvaluatorAddr returns the remote evaluator address, or "" for the
// built-in dry-run evaluator.
func (c *RunConfig) GetEvaluatorAddr() string {
	if c.EvaluatorAddr == nil {
		return ""
	}
	return *c.EvaluatorAddr
}

// GetLogLevel returns the log level or the default.
func (c *RunConfig) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}

// GetPlots returns the plot selection or the default.
func (c *RunConfig) GetPlots() string {
	if c.Plots == nil || *c.Plots == "" {
		return PlotsNone
	}
	return *c.Plots
}
