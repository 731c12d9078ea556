package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/pulse"
	"github.com/banshee-data/pulsesim/internal/security"
	"github.com/banshee-data/pulsesim/internal/storage/sqlite"
)

func newRunsCmd() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs recorded in the results database",
	}
	cmd.PersistentFlags().StringVar(&database, "db", "pulsesim.db", "SQLite results database")

	open := func() (*sqlite.Store, error) {
		if _, err := os.Stat(database); err != nil {
			return nil, fmt.Errorf("results database: %w", err)
		}
		store, err := sqlite.Open(database, sqlite.WithLogger(monitoring.Logger()))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return store, nil
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if runs == nil {
					runs = []sqlite.Run{}
				}
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSEQUENCE\tSTARTED\tSTATUS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Sequence, r.StartedAt.Format(time.RFC3339), r.Status)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs")

	show := &cobra.Command{
		Use:   "show RUN",
		Short: "Show a run and its axes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			axes, err := store.ListAxes(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(out, runDetail{Run: run, Axes: nonNilStrings(axes)})
			}
			fmt.Fprintf(out, "run %s (%s) %s\n", run.ID, run.Sequence, run.Status)
			fmt.Fprintf(out, "started %s\n", run.StartedAt.Format(time.RFC3339))
			if run.CompletedAt != nil {
				fmt.Fprintf(out, "completed %s\n", run.CompletedAt.Format(time.RFC3339))
			}
			if run.Error != "" {
				fmt.Fprintf(out, "error: %s\n", run.Error)
			}
			for _, a := range axes {
				res, err := store.GetResult(cmd.Context(), run.ID, a)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "axis %s: %s, %d points, curves %v\n", a, res.Parameter, res.Len(), res.Names())
			}
			return nil
		},
	}

	var outPath string
	export := &cobra.Command{
		Use:   "export RUN AXIS",
		Short: "Write the result of an axis as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.GetResult(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if outPath == "" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			if err := security.ValidateExportPath(outPath); err != nil {
				return fmt.Errorf("invalid export path: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return err
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := writeJSON(f, res); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			monitoring.Logger().Info("exported result", "run", args[0], "axis", args[1], "path", outPath)
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "", "Output file inside the working or temp directory (default stdout)")

	pulses := &cobra.Command{
		Use:   "pulses RUN AXIS INDEX",
		Short: "Print the laser channel table of a scan point",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid point index %q: %w", args[2], err)
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			points, err := store.GetPoints(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, p := range points {
				if p.Index != index {
					continue
				}
				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return writeJSON(cmd.OutOrStdout(), p)
				}
				_, err := pulse.NewTable(p.Combined).WriteTo(cmd.OutOrStdout())
				return err
			}
			return fmt.Errorf("point %d of %s/%s: %w", index, args[0], args[1], sqlite.ErrNotFound)
		},
	}

	remove := &cobra.Command{
		Use:   "delete RUN",
		Short: "Delete a run and everything recorded for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted run %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, export, pulses, remove)
	return cmd
}
