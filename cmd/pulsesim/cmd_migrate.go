package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/storage/sqlite"
)

func newMigrateCmd() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the results database schema",
	}
	cmd.PersistentFlags().StringVar(&database, "db", "pulsesim.db", "SQLite results database")

	open := func() (*sqlite.Store, error) {
		store, err := sqlite.Open(database, sqlite.WithLogger(monitoring.Logger()), sqlite.WithoutMigrations())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return store, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := open()
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.MigrateUp(); err != nil {
					return err
				}
				return printVersion(cmd, store)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := open()
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.MigrateDown(); err != nil {
					return err
				}
				return printVersion(cmd, store)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := open()
				if err != nil {
					return err
				}
				defer store.Close()
				return printVersion(cmd, store)
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Long:  "Set the schema version and clear the dirty flag after a failed migration was repaired by hand.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				store, err := open()
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.MigrateForce(v); err != nil {
					return err
				}
				return printVersion(cmd, store)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, store *sqlite.Store) error {
	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"version": v,
			"dirty":   dirty,
			"latest":  sqlite.LatestVersion,
		})
	}
	state := ""
	if dirty {
		state = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d%s\n", v, sqlite.LatestVersion, state)
	return nil
}
