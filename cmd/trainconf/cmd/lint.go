// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ManuGH/trainconf/internal/config"
	"github.com/ManuGH/trainconf/internal/lint"
)

func newLintCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [files or directories...]",
		Short: "Check the comment conventions of YAML fragments",
		Long: "Every field needs a doc comment above it, documented fields are separated by a\n" +
			"blank line and trailing comments are not allowed. Without arguments the built-in\n" +
			"fragments and every --config-dir are checked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var issues []lint.Issue
			if len(args) == 0 {
				if !opts.noBuiltin {
					found, err := lint.CheckFS(config.Builtin().FS)
					if err != nil {
						return failure(err)
					}
					for _, is := range found {
						is.File = config.BuiltinRootName + ":" + is.File
						issues = append(issues, is)
					}
				}
				args = opts.configDirs
			}

			for _, target := range args {
				found, err := lintPath(target)
				if err != nil {
					return failure(err)
				}
				issues = append(issues, found...)
			}

			out := cmd.OutOrStdout()
			for _, is := range issues {
				fmt.Fprintln(out, is.String())
			}
			if len(issues) > 0 {
				return failure(fmt.Errorf("%d lint issue(s)", len(issues)))
			}
			fmt.Fprintln(out, "✓ no lint issues")
			return nil
		},
	}
}

func lintPath(target string) ([]lint.Issue, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return lint.CheckFile(target)
	}
	issues, err := lint.CheckFS(os.DirFS(target))
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", target, err)
	}
	for i := range issues {
		issues[i].File = filepath.Join(target, filepath.FromSlash(issues[i].File))
	}
	return issues, nil
}
