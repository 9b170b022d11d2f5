package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/zsiec/avtranscode/internal/input"
	"github.com/zsiec/avtranscode/internal/probe"
)

func newProbeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE...",
		Short: "Print the properties of input files as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props := make([]probe.FileProperties, 0, len(args))
			for _, name := range args {
				f, err := input.Open(cmd.Context(), name, a.log)
				if err != nil {
					return err
				}
				props = append(props, f.Properties())
				if err := f.Close(); err != nil {
					a.log.Warn("closing input", "file", name, "error", err)
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(props)
		},
	}
}
