// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/trainconf/internal/fragment"
	tclog "github.com/ManuGH/trainconf/internal/log"
	"github.com/ManuGH/trainconf/internal/metrics"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Holder holds the current Snapshot with atomic reloading.
// Readers always see a complete snapshot; a failed reload keeps the old one.
type Holder struct {
	mu         sync.RWMutex
	current    *Snapshot
	lastChange ChangeSummary
	lastErr    error

	loader   *Loader
	logger   zerolog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}

	listenersMu sync.RWMutex
	listeners   []chan<- *Snapshot
}

// NewHolder creates a holder around an initial snapshot.
func NewHolder(initial *Snapshot, loader *Loader) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   tclog.WithComponent("config"),
		debounce: DefaultDebounce,
	}
}

// SetDebounce changes the quiet period before a watched change reloads.
// It must be called before StartWatcher.
func (h *Holder) SetDebounce(d time.Duration) {
	h.debounce = d
}

// Current returns the active snapshot.
func (h *Holder) Current() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// LastChange returns the summary of the last successful reload.
func (h *Holder) LastChange() ChangeSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastChange
}

// LastError returns the error of the last reload, nil after a success.
func (h *Holder) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// Reload re-runs the loader. On failure the current snapshot is kept and the
// error returned.
func (h *Holder) Reload(ctx context.Context) error {
	ctx = tclog.ContextWithResolutionID(ctx, tclog.NewResolutionID())
	logger := tclog.WithComponentFromContext(ctx, "config")
	logger.Info().Str(tclog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load(ctx)
	metrics.RecordReload(err)
	if err != nil {
		h.mu.Lock()
		h.lastErr = err
		h.mu.Unlock()
		logger.Error().
			Err(err).
			Str(tclog.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration; keeping current")
		return fmt.Errorf("reload: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = next
	change := Diff(old, next)
	h.lastChange = change
	h.lastErr = nil
	h.mu.Unlock()

	h.notifyListeners(next)
	h.logChanges(logger, change)

	logger.Info().
		Str(tclog.FieldEvent, "config.reload_success").
		Int(tclog.FieldCount, len(change.ChangedPaths)).
		Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher watches the loader's on-disk search directories and reloads on
// change. Without any directory it is a no-op. The watcher stops when ctx is
// done or Stop is called.
func (h *Holder) StartWatcher(ctx context.Context) error {
	dirs := h.loader.WatchPaths()
	if len(dirs) == 0 {
		h.logger.Info().
			Str(tclog.FieldEvent, "config.watcher_disabled").
			Msg("no on-disk fragments to watch (embedded configuration only)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := addTree(watcher, dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		h.logger.Info().
			Str(tclog.FieldEvent, "config.watcher_started").
			Str(tclog.FieldPath, dir).
			Msg("watching fragment directory for changes")
	}

	h.watcher = watcher
	h.done = make(chan struct{})
	go h.watchLoop(ctx, watcher, h.done)
	return nil
}

// addTree watches dir and every directory below it; fsnotify is not recursive.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(p)
	})
}

func (h *Holder) watchLoop(ctx context.Context, w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(tclog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			_ = w.Close()
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// new subdirectories hold group fragments too
				_ = addTree(w, event.Name)
			}
			h.logger.Debug().
				Str(tclog.FieldEvent, "config.file_changed").
				Str(tclog.FieldPath, event.Name).
				Str("op", event.Op.String()).
				Msg("fragment changed")

			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(h.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := h.Reload(ctx); err != nil && !errors.Is(err, context.Canceled) {
				h.logger.Error().
					Err(err).
					Str(tclog.FieldEvent, "config.auto_reload_failed").
					Msg("automatic config reload failed")
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(tclog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// relevant filters out editor swap files and chmod-only events.
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if filepath.Ext(event.Name) == "" {
			return true
		}
	}
	_, err := fragment.FormatForPath(event.Name)
	return err == nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (h *Holder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	if h.done != nil {
		<-h.done
	}
	h.watcher = nil
}

// Subscribe registers a channel that receives every new snapshot.
// Sends never block; a full channel misses the update.
func (h *Holder) Subscribe(ch chan<- *Snapshot) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notifyListeners(next *Snapshot) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()

	for _, ch := range h.listeners {
		select {
		case ch <- next:
		default:
			h.logger.Warn().
				Str(tclog.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *Holder) logChanges(logger zerolog.Logger, change ChangeSummary) {
	for _, p := range change.ChangedPaths {
		logger.Info().
			Str(tclog.FieldEvent, "config.changed").
			Str(tclog.FieldPath, p).
			Msg("config changed")
	}
	if change.TopologyChanged {
		logger.Warn().
			Str(tclog.FieldEvent, "config.topology_changed").
			Msg("device mesh layout changed; running workers keep the old layout until relaunched")
	}
}
