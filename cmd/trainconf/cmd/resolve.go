// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cmd

import (
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/ManuGH/trainconf/internal/config"
	tclog "github.com/ManuGH/trainconf/internal/log"
)

// Output formats.
const (
	formatYAML = "yaml"
	formatJSON = "json"
)

func newResolveCommand(opts *rootOptions) *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "resolve [overrides...]",
		Short: "Print the resolved actor record",
		Long: "Compose the primary fragment, apply overrides (key=value, +key=value, ~key),\n" +
			"resolve references and print the validated record.",
		Example: "  trainconf resolve optim.lr=1e-5 fsdp_config.fsdp_size=8\n" +
			"  trainconf resolve --format json --output actor.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatYAML && format != formatJSON {
				return usageError(fmt.Errorf("--format must be %s or %s, got %q", formatYAML, formatJSON, format))
			}

			snap, err := opts.loader(args).Load(cmd.Context())
			if err != nil {
				return failure(err)
			}

			if output != "" {
				if err := writeSnapshot(output, format, snap); err != nil {
					return failure(err)
				}
				logger := tclog.WithComponent("cli")
				logger.Info().
					Str(tclog.FieldEvent, "resolve.written").
					Str(tclog.FieldPath, output).
					Str(tclog.FieldResolutionID, snap.ResolutionID()).
					Msg("wrote resolved configuration")
				return nil
			}

			data, err := render(format, snap)
			if err != nil {
				return failure(err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the record to this file atomically instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", formatYAML, "output format: yaml or json")
	return cmd
}

func render(format string, snap *config.Snapshot) ([]byte, error) {
	if format == formatJSON {
		data, err := snap.JSON()
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return snap.YAML()
}

func writeSnapshot(path, format string, snap *config.Snapshot) error {
	if format == formatYAML {
		return config.WriteFile(path, snap.Tree())
	}
	data, err := render(format, snap)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
