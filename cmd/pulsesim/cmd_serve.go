package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pulsesim/internal/evaluator"
	"github.com/banshee-data/pulsesim/internal/evaluator/remote"
	"github.com/banshee-data/pulsesim/internal/httputil"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var (
		database string
		listen   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded runs over HTTP",
		Long: `Serve the runs of a results database.

  /api/runs                        recent runs
  /api/runs/{id}                   one run and its axes
  /api/runs/{id}/results/{axis}    readout curves of an axis
  /api/runs/{id}/points/{axis}     pulses of every point of an axis
  /debug/tailsql/                  SQL console (loopback only)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := monitoring.Logger()
			store, err := sqlite.Open(database, sqlite.WithLogger(log))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			mux, err := newServeMux(store, log)
			if err != nil {
				return err
			}
			server := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info("serving runs", "addr", listen, "db", database)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			log.Info("shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("HTTP server shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&database, "db", "pulsesim.db", "SQLite results database")
	cmd.Flags().StringVar(&listen, "listen", ":8080", "Listen address")
	return cmd
}

// newServeMux mounts the run API and the admin routes of store.
func newServeMux(store *sqlite.Store, log *slog.Logger) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}

	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := store.ListRuns(r.Context(), 100)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if runs == nil {
			runs = []sqlite.Run{}
		}
		httputil.WriteJSONOK(w, runs)
	})

	mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		run, err := store.GetRun(r.Context(), id)
		if err != nil {
			writeStoreError(w, log, err)
			return
		}
		axes, err := store.ListAxes(r.Context(), id)
		if err != nil {
			writeStoreError(w, log, err)
			return
		}
		httputil.WriteJSONOK(w, runDetail{Run: run, Axes: nonNilStrings(axes)})
	})

	mux.HandleFunc("GET /api/runs/{id}/results/{axis}", func(w http.ResponseWriter, r *http.Request) {
		res, err := store.GetResult(r.Context(), r.PathValue("id"), r.PathValue("axis"))
		if err != nil {
			writeStoreError(w, log, err)
			return
		}
		httputil.WriteJSONOK(w, res)
	})

	mux.HandleFunc("GET /api/runs/{id}/points/{axis}", func(w http.ResponseWriter, r *http.Request) {
		points, err := store.GetPoints(r.Context(), r.PathValue("id"), r.PathValue("axis"))
		if err != nil {
			writeStoreError(w, log, err)
			return
		}
		if len(points) == 0 {
			httputil.NotFound(w, "no points recorded")
			return
		}
		httputil.WriteJSONOK(w, points)
	})

	return mux, nil
}

type runDetail struct {
	sqlite.Run
	Axes []string `json:"axes"`
}

func writeStoreError(w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	log.Error("store query failed", "err", err)
	httputil.InternalServerError(w, err.Error())
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func newEvaluatorCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "evaluator",
		Short: "Serve the dry-run evaluator over gRPC",
		Long: `Serve the uniform dry-run evaluator on the remote evaluator protocol so
that runs started with --evaluator exercise the network path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := remote.NewServer(evaluator.Uniform{}, monitoring.Logger())
			if err := srv.Start(listen); err != nil {
				return err
			}
			<-cmd.Context().Done()
			srv.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":7700", "gRPC listen address")
	return cmd
}
