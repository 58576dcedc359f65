package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/nupi-ai/chartfeed/internal/modes"
	"github.com/spf13/cobra"
)

type modeView struct {
	Name             string `json:"name"`
	DisplayName      string `json:"display_name"`
	InitialChunkSize int    `json:"initial_chunk_size"`
	ChunkSizes       []int  `json:"chunk_sizes"`
	Default          bool   `json:"default"`
}

func newModesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List streaming modes and the chunk sizes they offer",
		Args:  cobra.NoArgs,
		RunE:  runModes,
	}
}

func runModes(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)

	all := modes.All()
	views := make([]modeView, 0, len(all))
	for _, m := range all {
		views = append(views, modeView{
			Name:             string(m.Name),
			DisplayName:      m.DisplayName(),
			InitialChunkSize: m.InitialChunkSize,
			ChunkSizes:       m.ChunkSizes(),
			Default:          m.Name == modes.Default,
		})
	}

	if out.jsonMode {
		return out.Print(map[string]any{"modes": views})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODE\tINITIAL\tCHUNK SIZES\t")
	for _, v := range views {
		name := v.Name
		if v.Default {
			name += " (default)"
		}
		sizes := make([]string, len(v.ChunkSizes))
		for i, n := range v.ChunkSizes {
			sizes[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t\n", name, v.InitialChunkSize, strings.Join(sizes, ", "))
	}
	return w.Flush()
}
