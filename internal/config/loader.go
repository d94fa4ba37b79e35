// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/trainconf/internal/compose"
	"github.com/ManuGH/trainconf/internal/fragment"
	tclog "github.com/ManuGH/trainconf/internal/log"
	"github.com/ManuGH/trainconf/internal/metrics"
	"github.com/ManuGH/trainconf/internal/resolve"
	"github.com/ManuGH/trainconf/internal/telemetry"
	"github.com/ManuGH/trainconf/internal/tree"
)

const tracerName = "github.com/ManuGH/trainconf/internal/config"

const (
	// DefaultConfigName is the primary fragment when none is given.
	DefaultConfigName = "actor/dp_actor"
	// DefaultMountPath is where trainers place the actor record.
	DefaultMountPath = "actor_rollout_ref.actor"
)

// Options select what a Loader composes.
type Options struct {
	// ConfigDirs are searched before Roots and the embedded fragments,
	// highest priority first.
	ConfigDirs []string
	// Roots are additional search roots, searched after ConfigDirs.
	Roots []compose.Root
	// DisableBuiltin drops the embedded fragments from the search path.
	DisableBuiltin bool

	// ConfigName is the primary fragment. Defaults to DefaultConfigName.
	ConfigName string
	// MountPath places the record inside the enclosing tree before
	// resolution. Empty resolves the record on its own.
	MountPath string
	// ContextFiles are fragment files merged, in order, into the enclosing
	// tree. They may not carry a defaults list.
	ContextFiles []string
	// Context is merged into the enclosing tree after ContextFiles.
	Context tree.Map
	// Overrides are dotlist overrides applied to the composed record.
	Overrides []string
	// LookupEnv backs ${oc.env:...}. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// TracerProvider receives one span per load and per stage. Defaults to
	// the global provider.
	TracerProvider trace.TracerProvider
}

// Loader runs the full pipeline from fragments to a Snapshot.
type Loader struct {
	opts   Options
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewLoader creates a loader. opts is copied.
func NewLoader(opts Options) *Loader {
	if opts.ConfigName == "" {
		opts.ConfigName = DefaultConfigName
	}
	opts.ConfigDirs = append([]string(nil), opts.ConfigDirs...)
	opts.Roots = append([]compose.Root(nil), opts.Roots...)
	opts.ContextFiles = append([]string(nil), opts.ContextFiles...)
	opts.Overrides = append([]string(nil), opts.Overrides...)
	if opts.Context != nil {
		opts.Context = tree.CloneMap(opts.Context)
	}
	return &Loader{
		opts:   opts,
		logger: tclog.WithComponent("config"),
		tracer: telemetry.TracerProvider(opts.TracerProvider).Tracer(tracerName),
	}
}

// Options returns a copy of the loader's options.
func (l *Loader) Options() Options {
	o := l.opts
	o.ConfigDirs = append([]string(nil), l.opts.ConfigDirs...)
	o.Roots = append([]compose.Root(nil), l.opts.Roots...)
	o.ContextFiles = append([]string(nil), l.opts.ContextFiles...)
	o.Overrides = append([]string(nil), l.opts.Overrides...)
	return o
}

// SearchPath returns the fragment search path in priority order.
func (l *Loader) SearchPath() *compose.SearchPath {
	roots := make([]compose.Root, 0, len(l.opts.ConfigDirs)+len(l.opts.Roots)+1)
	for _, dir := range l.opts.ConfigDirs {
		roots = append(roots, compose.DirRoot(dir))
	}
	roots = append(roots, l.opts.Roots...)
	if !l.opts.DisableBuiltin {
		roots = append(roots, Builtin())
	}
	return compose.NewSearchPath(roots...)
}

// WatchPaths lists the on-disk directories whose changes affect the result.
func (l *Loader) WatchPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, dir := range l.opts.ConfigDirs {
		add(filepath.Clean(dir))
	}
	for _, f := range l.opts.ContextFiles {
		add(filepath.Dir(filepath.Clean(f)))
	}
	return out
}

// Load composes, resolves, decodes and validates the configuration. The
// context's resolution id is reused when present.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	id := tclog.ResolutionIDFromContext(ctx)
	if id == "" {
		id = tclog.NewResolutionID()
		ctx = tclog.ContextWithResolutionID(ctx, id)
	}
	logger := tclog.WithContext(ctx, l.logger)

	ctx, span := l.tracer.Start(ctx, "config.load", trace.WithAttributes(
		telemetry.AttrResolutionID.String(id),
		telemetry.AttrConfigName.String(l.opts.ConfigName),
	))
	start := time.Now()
	snap, err := l.load(ctx, logger, id)
	took := time.Since(start)
	metrics.RecordResolution(err, took)
	telemetry.End(span, err)

	if err != nil {
		logger.Debug().
			Err(err).
			Str(tclog.FieldEvent, "resolve.failed").
			Str(tclog.FieldFragment, l.opts.ConfigName).
			Msg("configuration resolution failed")
		return nil, err
	}
	logger.Debug().
		Str(tclog.FieldEvent, "resolve.done").
		Str(tclog.FieldFragment, l.opts.ConfigName).
		Int(tclog.FieldCount, len(snap.fragments)).
		Int64(tclog.FieldDuration, took.Milliseconds()).
		Msg("configuration resolved")
	return snap, nil
}

func (l *Loader) load(ctx context.Context, logger zerolog.Logger, id string) (*Snapshot, error) {
	var res *compose.Result
	err := l.stage(ctx, "config.compose", func(ctx context.Context) error {
		var err error
		res, err = l.composeRecord(ctx, logger)
		if err == nil {
			trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrFragments.StringSlice(res.Fragments))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var resolved tree.Map
	err = l.stage(ctx, "config.resolve", func(context.Context) error {
		enclosing, err := l.enclosing()
		if err != nil {
			return err
		}
		root, err := compose.Mount(res.Tree, l.opts.MountPath, enclosing)
		if err != nil {
			return err
		}
		resolved, err = resolve.Resolve(root, resolve.Options{
			Scope:     l.opts.MountPath,
			LookupEnv: l.opts.LookupEnv,
		})
		if err != nil {
			return fmt.Errorf("resolve %s: %w", l.opts.ConfigName, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		record tree.Map
		cfg    FSDPActorConfig
	)
	err = l.stage(ctx, "config.build", func(context.Context) error {
		record = resolved
		if l.opts.MountPath != "" {
			extracted, err := compose.Extract(resolved, l.opts.MountPath)
			if err != nil {
				return err
			}
			record = extracted
		}
		built, err := Build(record)
		if err != nil {
			return fmt.Errorf("build %s: %w", l.opts.ConfigName, err)
		}
		cfg = built
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str(tclog.FieldEvent, "config.built").
		Str(tclog.FieldTarget, cfg.Target).
		Msg("actor record constructed")

	return newSnapshot(cfg, record, res.Provenance, res.Fragments, id), nil
}

// stage runs fn inside a child span of the load.
func (l *Loader) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := l.tracer.Start(ctx, name)
	err := fn(ctx)
	telemetry.End(span, err)
	return err
}

// composeRecord builds the record tree from the search path and applies overrides.
func (l *Loader) composeRecord(ctx context.Context, logger zerolog.Logger) (*compose.Result, error) {
	sp := l.SearchPath()
	roots := sp.Roots()
	names := make([]string, 0, len(roots))
	for _, r := range roots {
		names = append(names, r.Name)
	}
	logger.Debug().
		Str(tclog.FieldEvent, "compose.search_path").
		Strs("roots", names).
		Msg("searching fragments")

	res, err := compose.NewComposer(sp).Compose(ctx, l.opts.ConfigName)
	if err != nil {
		return nil, fmt.Errorf("compose %s: %w", l.opts.ConfigName, err)
	}
	metrics.AddFragmentsLoaded(len(res.Fragments))

	overrides, err := compose.ParseOverrides(l.opts.Overrides)
	if err != nil {
		return nil, err
	}
	if err := compose.ApplyOverrides(res.Tree, overrides, res.Provenance); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		logger.Debug().
			Str(tclog.FieldEvent, "compose.override_applied").
			Str(tclog.FieldOverride, o.Raw).
			Msg("override applied")
	}
	return res, nil
}

// enclosing builds the tree the record is mounted into.
func (l *Loader) enclosing() (tree.Map, error) {
	layers := make([]tree.Map, 0, len(l.opts.ContextFiles)+1)
	for _, file := range l.opts.ContextFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read context %s: %w", file, err)
		}
		frag, err := fragment.ParseFile(filepath.Base(file), file, data)
		if err != nil {
			return nil, err
		}
		if len(frag.Defaults) > 0 {
			return nil, fmt.Errorf("%w: context %s: defaults lists are only allowed in fragments", ErrMalformed, file)
		}
		layers = append(layers, frag.Body)
	}
	if l.opts.Context != nil {
		layers = append(layers, l.opts.Context)
	}
	return tree.Merged(layers...), nil
}
