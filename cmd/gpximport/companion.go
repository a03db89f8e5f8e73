package main

import (
	"fmt"

	"github.com/JonMunkholm/geoimport/internal/gpx"
	"github.com/JonMunkholm/geoimport/internal/importer"
	"github.com/spf13/cobra"
)

func newCompanionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companion <file>",
		Short: "Print the waypoints file that would be merged with a GPX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ok := importer.WaypointsFileFor(args[0])
			if !ok {
				return withCode(exitUsage, fmt.Errorf("%s has no waypoints file", args[0]))
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the supported file formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range gpx.Formats() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
		},
	}
}
