// Package artifacts writes scan artifacts as JSON files, one directory per
// day, with every file name prefixed by the run stamp.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/banshee-data/pulsesim/internal/fsutil"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/pulse"
	"github.com/banshee-data/pulsesim/internal/scan"
	"github.com/banshee-data/pulsesim/internal/security"
	"github.com/banshee-data/pulsesim/internal/timeutil"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var _ scan.Sink = (*FileSink)(nil)

// FileSink is a scan.Sink writing JSON files below a root directory:
//
//	<root>/<date>/<stamp>_params_<axis>.json
//	<root>/<date>/<stamp>_pulses_<axis>_<i>.json
//	<root>/<date>/<stamp>_lasers_<axis>_<i>.json
//	<root>/<date>/<stamp>_results_<axis>.json
//	<root>/<date>/<stamp>_channels_<axis>.txt
//
// The channel table is rendered from the last point of each axis. Axis names
// are sanitized before they are used in file names.
type FileSink struct {
	fs   fsutil.FileSystem
	root string
	log  *slog.Logger

	mu   sync.Mutex
	last map[string][]pulse.Pulse
}

// NewFileSink returns a sink writing below root. A nil logger uses the
// default.
func NewFileSink(fs fsutil.FileSystem, root string, logger *slog.Logger) *FileSink {
	return &FileSink{
		fs:   fs,
		root: root,
		log:  monitoring.OrDefault(logger),
		last: make(map[string][]pulse.Pulse),
	}
}

// Dir returns the directory a run's artifacts are written to.
func (s *FileSink) Dir(run scan.RunInfo) string {
	return filepath.Join(s.root, timeutil.RunDate(run.StartedAt))
}

// ParamsPath returns the parameter snapshot path of an axis.
func (s *FileSink) ParamsPath(run scan.RunInfo, axis string) string {
	return filepath.Join(s.Dir(run), fmt.Sprintf("%s_params_%s.json", run.Stamp, security.SanitizeFilename(axis)))
}

// PulsesPath returns the raw pulse list path of a point.
func (s *FileSink) PulsesPath(run scan.RunInfo, axis string, i int) string {
	return filepath.Join(s.Dir(run), fmt.Sprintf("%s_pulses_%s_%d.json", run.Stamp, security.SanitizeFilename(axis), i))
}

// LasersPath returns the combined pulse list path of a point.
func (s *FileSink) LasersPath(run scan.RunInfo, axis string, i int) string {
	return filepath.Join(s.Dir(run), fmt.Sprintf("%s_lasers_%s_%d.json", run.Stamp, security.SanitizeFilename(axis), i))
}

// ResultPath returns the result path of an axis.
func (s *FileSink) ResultPath(run scan.RunInfo, axis string) string {
	return filepath.Join(s.Dir(run), fmt.Sprintf("%s_results_%s.json", run.Stamp, security.SanitizeFilename(axis)))
}

// ChannelsPath returns the channel table path of an axis.
func (s *FileSink) ChannelsPath(run scan.RunInfo, axis string) string {
	return filepath.Join(s.Dir(run), fmt.Sprintf("%s_channels_%s.txt", run.Stamp, security.SanitizeFilename(axis)))
}

// WriteParameters implements scan.Sink.
func (s *FileSink) WriteParameters(_ context.Context, run scan.RunInfo, axis string, snap params.Snapshot) error {
	return s.writeJSON(s.ParamsPath(run, axis), snap)
}

// WritePoint implements scan.Sink.
func (s *FileSink) WritePoint(_ context.Context, run scan.RunInfo, p scan.PointRecord) error {
	if err := s.writeJSON(s.PulsesPath(run, p.Axis, p.Index), nonNil(p.Pulses)); err != nil {
		return err
	}
	if err := s.writeJSON(s.LasersPath(run, p.Axis, p.Index), nonNil(p.Combined)); err != nil {
		return err
	}
	s.mu.Lock()
	s.last[p.Axis] = p.Pulses
	s.mu.Unlock()
	return nil
}

// WriteResult implements scan.Sink.
func (s *FileSink) WriteResult(_ context.Context, run scan.RunInfo, r *scan.Result) error {
	if err := s.writeJSON(s.ResultPath(run, r.Axis), r); err != nil {
		return err
	}

	s.mu.Lock()
	last, ok := s.last[r.Axis]
	delete(s.last, r.Axis)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	var buf bytes.Buffer
	if _, err := pulse.NewTable(last).WriteTo(&buf); err != nil {
		return fmt.Errorf("render channel table: %w", err)
	}
	return s.write(s.ChannelsPath(run, r.Axis), buf.Bytes())
}

func (s *FileSink) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return s.write(path, append(data, '\n'))
}

func (s *FileSink) write(path string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	if err := s.fs.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	s.log.Debug("artifact written", "path", path, "bytes", len(data))
	return nil
}

func nonNil(p []pulse.Pulse) []pulse.Pulse {
	if p == nil {
		return []pulse.Pulse{}
	}
	return p
}

// ReadResult loads a result file written by FileSink.
func ReadResult(fs fsutil.FileSystem, path string) (*scan.Result, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r scan.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &r, nil
}

// ReadPulses loads a pulse or laser file written by FileSink.
func ReadPulses(fs fsutil.FileSystem, path string) ([]pulse.Pulse, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []pulse.Pulse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return out, nil
}
