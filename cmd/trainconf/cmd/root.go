// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package cmd implements the trainconf command line.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/trainconf/internal/config"
	tclog "github.com/ManuGH/trainconf/internal/log"
	"github.com/ManuGH/trainconf/internal/telemetry"
	"github.com/ManuGH/trainconf/internal/version"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configDirs   []string
	configName   string
	mount        string
	contextFiles []string
	noBuiltin    bool
	logLevel     string

	tracing *telemetry.Provider
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "trainconf",
		Short: "Compose, resolve and validate actor training configuration",
		Long: "trainconf composes actor configuration fragments through their defaults lists,\n" +
			"applies dotlist overrides, resolves ${...} references and checks the typed record\n" +
			"that FSDP training workers consume.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			tclog.Reconfigure(tclog.Config{Level: opts.logLevel, Output: cmd.ErrOrStderr()})
			p, err := telemetry.NewProvider(cmd.Context(), telemetryConfig())
			if err != nil {
				return failure(fmt.Errorf("tracing: %w", err))
			}
			opts.tracing = p
			return nil
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	f := root.PersistentFlags()
	f.StringArrayVar(&opts.configDirs, "config-dir", config.ParseList(config.EnvConfigDir),
		"directory searched for fragments before the built-in ones; repeatable, highest priority first (env "+config.EnvConfigDir+")")
	f.StringVar(&opts.configName, "config-name", config.DefaultConfigName, "primary fragment to compose")
	f.StringVar(&opts.mount, "mount", config.DefaultMountPath, "dotted path of the record inside the enclosing tree; empty resolves it on its own")
	f.StringArrayVar(&opts.contextFiles, "context", nil, "fragment file merged into the enclosing tree, e.g. model settings; repeatable")
	f.BoolVar(&opts.noBuiltin, "no-builtin", false, "do not search the built-in fragments")
	f.StringVar(&opts.logLevel, "log-level", config.ParseString(config.EnvLogLevel, "info"), "log level (env "+config.EnvLogLevel+")")

	root.AddCommand(
		newResolveCommand(opts),
		newValidateCommand(opts),
		newExplainCommand(opts),
		newLintCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(),
	)
	return root, opts
}

// telemetryConfig enables tracing when an exporter is named in the environment.
func telemetryConfig() telemetry.Config {
	exporter := config.ParseString(config.EnvOTelExporter, "")
	return telemetry.Config{
		Enabled:        exporter != "",
		ServiceName:    "trainconf",
		ServiceVersion: version.Version,
		ExporterType:   exporter,
		Endpoint:       config.ParseString(config.EnvOTelEndpoint, "localhost:4317"),
		SamplingRate:   config.ParseFloat(config.EnvOTelSampleRate, 1.0),
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root, opts := newRootCommand()
	c, err := root.ExecuteC()
	if serr := opts.tracing.Shutdown(context.Background()); serr != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error: flush traces:", serr)
	}
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)

	var ee *exitError
	if c == root && !errors.As(err, &ee) {
		// unknown subcommands surface on the root
		return ExitUsage
	}
	return ExitCode(err)
}

// loader builds a loader from the persistent flags and positional overrides.
func (o *rootOptions) loader(overrides []string) *config.Loader {
	return config.NewLoader(config.Options{
		ConfigDirs:     o.configDirs,
		DisableBuiltin: o.noBuiltin,
		ConfigName:     o.configName,
		MountPath:      o.mount,
		ContextFiles:   o.contextFiles,
		Overrides:      overrides,
	})
}
