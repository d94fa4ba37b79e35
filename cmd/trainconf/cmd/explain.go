// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ManuGH/trainconf/internal/config"
	"github.com/ManuGH/trainconf/internal/tree"
)

func newExplainCommand(opts *rootOptions) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "explain [overrides...]",
		Short: "Show every resolved field with the fragment that set it",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.loader(args).Load(cmd.Context())
			if err != nil {
				return failure(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fragments: %s\n\n", strings.Join(snap.Fragments(), " -> "))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tVALUE\tSOURCE")
			for _, leaf := range tree.Leaves(snap.Tree()) {
				if !under(leaf.Path, prefix) {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", leaf.Path, formatValue(leaf.Value), source(snap, leaf.Path))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only show fields at or below this dotted path")
	return cmd
}

func under(p, prefix string) bool {
	if prefix == "" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+".") || strings.HasPrefix(p, prefix+"[")
}

// source finds the fragment behind p. References that resolved to a
// collection are recorded at the path of the reference itself.
func source(snap *config.Snapshot, p string) string {
	for {
		if origin, ok := snap.Provenance(p); ok {
			return origin
		}
		parent, ok := tree.Parent(p)
		if !ok || parent == "" {
			return "-"
		}
		p = parent
	}
}

func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
