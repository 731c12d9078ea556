package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pulsesim/internal/config"
	"github.com/banshee-data/pulsesim/internal/params"
)

func newParamsCmd() *cobra.Command {
	var (
		configPath string
		paramsPath string
		collection string
		asYAML     bool
	)

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the parameter store a run would use",
		Long: `Print the built-in parameters merged with a parameter file and the
overrides of a run file.

  pulsesim params --collection RabiFlopping
  pulsesim params --params lab.yaml --yaml > merged.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.EmptyRunConfig()
			if configPath != "" {
				loaded, err := config.LoadRunConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("params") {
				cfg.Parameters = &paramsPath
			}
			store, err := cfg.Store()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asYAML {
				data, err := params.MarshalYAML(store)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			snap := make(params.Snapshot)
			for _, c := range store.Collections() {
				if collection != "" && c != collection {
					continue
				}
				for _, n := range store.Names(c) {
					k := params.Key{Collection: c, Name: n}
					if v, ok := store.Get(k); ok {
						snap[k.String()] = v.Any()
					}
				}
			}
			if collection != "" && len(snap) == 0 {
				return fmt.Errorf("%w: %s", params.ErrUnknownCollection, collection)
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(out, snap)
			}
			for _, k := range sortedKeys(snap) {
				fmt.Fprintf(out, "%s = %v\n", k, snap[k])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Run file whose parameters and overrides are applied")
	cmd.Flags().StringVar(&paramsPath, "params", "", "Parameter file merged over the built-in defaults")
	cmd.Flags().StringVar(&collection, "collection", "", "Only print this collection")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the whole store as a parameter file")
	return cmd
}
