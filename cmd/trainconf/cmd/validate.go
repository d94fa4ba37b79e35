// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	var worldSize int

	cmd := &cobra.Command{
		Use:   "validate [overrides...]",
		Short: "Check that the configuration composes, resolves and validates",
		Long: "Exit codes:\n" +
			"  0  configuration is valid\n" +
			"  1  configuration is invalid\n" +
			"  2  usage error",
		RunE: func(cmd *cobra.Command, args []string) error {
			if worldSize < 0 {
				return usageError(fmt.Errorf("--world-size must not be negative, got %d", worldSize))
			}

			snap, err := opts.loader(args).Load(cmd.Context())
			if err != nil {
				return failure(fmt.Errorf("%s is invalid: %w", opts.configName, err))
			}

			out := cmd.OutOrStdout()
			if worldSize > 0 {
				actor := snap.Actor()
				mesh, err := actor.FSDPConfig.Mesh(worldSize)
				if err != nil {
					return failure(fmt.Errorf("%s is invalid for %d ranks: %w", opts.configName, worldSize, err))
				}
				if _, err := actor.SequenceParallelGroups(worldSize); err != nil {
					return failure(fmt.Errorf("%s is invalid for %d ranks: %w", opts.configName, worldSize, err))
				}
				fmt.Fprintf(out, "device mesh %v with shape %v\n", mesh.Dims, mesh.Shape)
			}

			fmt.Fprintf(out, "✓ %s is valid\n", opts.configName)
			return nil
		},
	}

	cmd.Flags().IntVar(&worldSize, "world-size", 0, "also check the device mesh and sequence parallel groups for this many ranks")
	return cmd
}
