// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/trainconf/internal/api"
	"github.com/ManuGH/trainconf/internal/config"
	tclog "github.com/ManuGH/trainconf/internal/log"
)

const shutdownTimeout = 5 * time.Second

type watchOptions struct {
	listen   string
	debounce time.Duration
	print    bool
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	wo := watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [overrides...]",
		Short: "Keep the configuration resolved and serve it over HTTP",
		Long: "Resolve once, then re-resolve whenever a fragment below --config-dir or a\n" +
			"--context file changes. A failed reload keeps serving the last good record.\n" +
			"Endpoints: /healthz, /config, /config/diff, /config/explain, /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), opts.loader(args), wo)
		},
	}

	f := cmd.Flags()
	f.StringVar(&wo.listen, "listen", config.ParseString(config.EnvListenAddr, "127.0.0.1:9464"), "HTTP listen address (env "+config.EnvListenAddr+")")
	f.DurationVar(&wo.debounce, "debounce", config.ParseDuration(config.EnvWatchDebounce, config.DefaultDebounce), "quiet period before a change reloads (env "+config.EnvWatchDebounce+")")
	f.BoolVar(&wo.print, "print", false, "print every resolved record to stdout")
	return cmd
}

func runWatch(ctx context.Context, out io.Writer, loader *config.Loader, wo watchOptions) error {
	logger := tclog.WithComponent("watch")

	initial, err := loader.Load(ctx)
	if err != nil {
		return failure(err)
	}

	holder := config.NewHolder(initial, loader)
	holder.SetDebounce(wo.debounce)
	updates := make(chan *config.Snapshot, 1)
	if wo.print {
		holder.Subscribe(updates)
	}
	if err := holder.StartWatcher(ctx); err != nil {
		return failure(err)
	}
	defer holder.Stop()

	ln, err := net.Listen("tcp", wo.listen)
	if err != nil {
		return failure(fmt.Errorf("listen %s: %w", wo.listen, err))
	}
	srv := &http.Server{
		Handler:           api.New(holder, api.Options{RateLimit: api.DefaultRateLimit()}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info().
		Str(tclog.FieldEvent, "watch.listening").
		Str("addr", ln.Addr().String()).
		Msg("serving resolved configuration")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if wo.print {
		g.Go(func() error {
			if err := printSnapshot(out, initial); err != nil {
				return err
			}
			for {
				select {
				case <-gctx.Done():
					return nil
				case snap := <-updates:
					if err := printSnapshot(out, snap); err != nil {
						return err
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return failure(err)
	}
	logger.Info().Str(tclog.FieldEvent, "watch.stopped").Msg("watch stopped")
	return nil
}

// printSnapshot writes one record as its own YAML document.
func printSnapshot(out io.Writer, snap *config.Snapshot) error {
	data, err := snap.YAML()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "---\n%s", data)
	return err
}
