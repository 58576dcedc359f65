package main

import (
	"fmt"
	"runtime"

	cfversion "github.com/nupi-ai/chartfeed/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the chartfeed version",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	v := cfversion.String()

	if out.jsonMode {
		return out.Print(map[string]any{
			"version": v,
			"go":      runtime.Version(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "chartfeed %s (%s)\n", cfversion.FormatVersion(v), runtime.Version())
	return nil
}
