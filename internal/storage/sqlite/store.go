// Package sqlite persists scan runs, points, pulses and results in a SQLite
// database and serves them to the tailsql admin console.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/pulse"
	"github.com/banshee-data/pulsesim/internal/readout"
	"github.com/banshee-data/pulsesim/internal/scan"
	"github.com/banshee-data/pulsesim/internal/timeutil"
)

// ErrNotFound is returned when a run or axis has no stored rows.
var ErrNotFound = errors.New("not found")

// Run statuses stored in runs.status.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "error"
)

const (
	kindRaw      = "raw"
	kindCombined = "combined"
)

// connPragmas must hold on every pooled connection, so they go in the DSN.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

var _ scan.RunSink = (*Store)(nil)

// Store is a scan.RunSink backed by SQLite.
type Store struct {
	db          *sql.DB
	path        string
	log         *slog.Logger
	clock       timeutil.Clock
	skipMigrate bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithClock sets the clock used for completion timestamps.
func WithClock(c timeutil.Clock) Option { return func(s *Store) { s.clock = c } }

// WithoutMigrations opens the database as is, for the migrate command.
func WithoutMigrations() Option { return func(s *Store) { s.skipMigrate = true } }

// Open opens the database at path, applies the connection pragmas and runs
// pending migrations unless WithoutMigrations is given.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?"+connPragmas)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, path: path, log: monitoring.Logger(), clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	if s.skipMigrate {
		return s, nil
	}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun implements scan.RunSink.
func (s *Store) BeginRun(ctx context.Context, run scan.RunInfo) error {
	if run.ID == "" {
		return errors.New("run has no id")
	}
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO runs (run_id, sequence, stamp, started_at, status)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, run.Sequence, run.Stamp, run.StartedAt.UnixNano(), RunRunning)
		return err
	})
}

// EndRun implements scan.RunSink.
func (s *Store) EndRun(ctx context.Context, run scan.RunInfo, runErr error) error {
	status, msg := RunFinished, sql.NullString{}
	if runErr != nil {
		status = RunFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE runs SET completed_at = ?, status = ?, error = ?
			WHERE run_id = ?`,
			s.clock.Now().UnixNano(), status, msg, run.ID)
		return err
	})
}

// WriteParameters implements scan.Sink.
func (s *Store) WriteParameters(ctx context.Context, run scan.RunInfo, axis string, snap params.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO scan_parameters (run_id, axis, params_json)
			VALUES (?, ?, ?)`,
			run.ID, axis, string(data))
		return err
	})
}

// WritePoint implements scan.Sink. The point and its pulses are written in
// one transaction.
func (s *Store) WritePoint(ctx context.Context, run scan.RunInfo, p scan.PointRecord) error {
	curves, err := json.Marshal(p.Curves)
	if err != nil {
		return fmt.Errorf("encode curves: %w", err)
	}
	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO scan_points (run_id, axis, point_index, value, x, curves_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, p.Axis, p.Index, p.Value, p.X, string(curves)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pulses WHERE run_id = ? AND axis = ? AND point_index = ?`,
			run.ID, p.Axis, p.Index); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pulses (run_id, axis, point_index, kind, seq, channel,
				time_on, time_off, frequency, amplitude, attenuation, phase)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, set := range []struct {
			kind   string
			pulses []pulse.Pulse
		}{{kindRaw, p.Pulses}, {kindCombined, p.Combined}} {
			for i, pl := range set.pulses {
				if _, err := stmt.ExecContext(ctx, run.ID, p.Axis, p.Index, set.kind, i, pl.Channel,
					pl.TimeOn, pl.TimeOff, pl.Frequency, pl.Amplitude, pl.Attenuation, pl.Phase); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	})
}

// WriteResult implements scan.Sink.
func (s *Store) WriteResult(ctx context.Context, run scan.RunInfo, r *scan.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO scan_results (run_id, axis, parameter, points, result_json)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, r.Axis, r.Parameter, r.Len(), string(data))
		return err
	})
}

// Run is a row of the runs table.
type Run struct {
	ID          string     `json:"id"`
	Sequence    string     `json:"sequence"`
	Stamp       string     `json:"stamp"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
}

const runColumns = `run_id, sequence, stamp, started_at, completed_at, status, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r         Run
		started   int64
		completed sql.NullInt64
		msg       sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Sequence, &r.Stamp, &started, &completed, &r.Status, &msg); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	if completed.Valid {
		t := time.Unix(0, completed.Int64).UTC()
		r.CompletedAt = &t
	}
	r.Error = msg.String
	return r, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, run_id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListAxes returns the axes of a run that have a stored result, in the order
// they were written.
func (s *Store) ListAxes(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT axis FROM scan_results WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var axis string
		if err := rows.Scan(&axis); err != nil {
			return nil, err
		}
		out = append(out, axis)
	}
	return out, rows.Err()
}

// GetResult returns the stored result of an axis.
func (s *Store) GetResult(ctx context.Context, runID, axis string) (*scan.Result, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM scan_results WHERE run_id = ? AND axis = ?`,
		runID, axis).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s/%s: %w", runID, axis, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var r scan.Result
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode result %s/%s: %w", runID, axis, err)
	}
	return &r, nil
}

// GetParameters returns the parameter snapshot written for an axis.
func (s *Store) GetParameters(ctx context.Context, runID, axis string) (params.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT params_json FROM scan_parameters WHERE run_id = ? AND axis = ?`,
		runID, axis).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parameters %s/%s: %w", runID, axis, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var snap params.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("decode parameters %s/%s: %w", runID, axis, err)
	}
	return snap, nil
}

// GetPoints returns the stored points of an axis in index order, with their
// raw and combined pulses.
func (s *Store) GetPoints(ctx context.Context, runID, axis string) ([]scan.PointRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT point_index, value, x, curves_json FROM scan_points
		WHERE run_id = ? AND axis = ? ORDER BY point_index`,
		runID, axis)
	if err != nil {
		return nil, err
	}
	var points []scan.PointRecord
	for rows.Next() {
		var (
			p      = scan.PointRecord{Axis: axis}
			curves string
		)
		if err := rows.Scan(&p.Index, &p.Value, &p.X, &curves); err != nil {
			rows.Close()
			return nil, err
		}
		var cs []readout.Curve
		if err := json.Unmarshal([]byte(curves), &cs); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode curves of point %d: %w", p.Index, err)
		}
		p.Curves = cs
		points = append(points, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range points {
		raw, combined, err := s.pulses(ctx, runID, axis, points[i].Index)
		if err != nil {
			return nil, err
		}
		points[i].Pulses = raw
		points[i].Combined = combined
	}
	return points, nil
}

func (s *Store) pulses(ctx context.Context, runID, axis string, index int) (raw, combined []pulse.Pulse, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, channel, time_on, time_off, frequency, amplitude, attenuation, phase
		FROM pulses WHERE run_id = ? AND axis = ? AND point_index = ?
		ORDER BY kind, seq`,
		runID, axis, index)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			p    pulse.Pulse
		)
		if err := rows.Scan(&kind, &p.Channel, &p.TimeOn, &p.TimeOff, &p.Frequency,
			&p.Amplitude, &p.Attenuation, &p.Phase); err != nil {
			return nil, nil, err
		}
		if kind == kindCombined {
			combined = append(combined, p)
		} else {
			raw = append(raw, p)
		}
	}
	return raw, combined, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	return retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
