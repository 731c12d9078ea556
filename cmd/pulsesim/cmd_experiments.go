package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pulsesim/internal/experiments"
)

type experimentInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scans       []scanInfo `json:"scans"`
}

type scanInfo struct {
	Axis      string `json:"axis"`
	Parameter string `json:"parameter"`
	Range     string `json:"range"`
	Unit      string `json:"unit,omitempty"`
}

func newExperimentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "experiments",
		Short: "List the available experiments and their scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []experimentInfo
			for _, name := range experiments.Names() {
				def, err := experiments.Lookup(name)
				if err != nil {
					return err
				}
				info := experimentInfo{Name: def.Name, Description: def.Description}
				for _, s := range def.Scans {
					si := scanInfo{Axis: s.Axis.Name, Parameter: s.Axis.Parameter.String(), Unit: s.Unit}
					if s.Axis.Range != nil {
						si.Range = s.Axis.Range.String()
					}
					info.Scans = append(info.Scans, si)
				}
				infos = append(infos, info)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), infos)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION\tSCANS")
			for _, info := range infos {
				var scans []string
				for _, s := range info.Scans {
					scans = append(scans, fmt.Sprintf("%s=%s=%s [%s]", s.Axis, s.Parameter, s.Range, s.Unit))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, info.Description, strings.Join(scans, ", "))
			}
			return w.Flush()
		},
	}
}
