// Command pulsesim builds experiment timelines offline, scans them over
// parameter axes and records the pulses and readout curves of every point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pulsesim/internal/monitoring"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pulsesim",
		Short: "Offline pulse-sequence simulation and scan engine",
		Long: `pulsesim builds the laser pulse timeline of trapped-ion experiments,
scans experiment parameters and records the pulses, combined laser pulses and
readout curves of every scan point.

Without a remote evaluator the dry-run evaluator assigns equal probability
to every readout state, which exercises the timeline without physics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				level = os.Getenv("PULSESIM_LOG_LEVEL")
			}
			if level == "" {
				level = "info"
			}
			monitoring.SetDefault(monitoring.NewLogger(level, cmd.ErrOrStderr()))
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: error, warn, info, debug, trace (default info)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newParamsCmd(),
		newExperimentsCmd(),
		newServeCmd(),
		newEvaluatorCmd(),
		newMigrateCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
