// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// writeActor places a dp actor fragment with the given fsdp_size in dir.
func writeActor(t *testing.T, dir string, fsdpSize string) {
	t.Helper()
	body := strings.Replace(builtinFile(t, "actor/dp_actor.yaml"), "fsdp_size: -1", "fsdp_size: "+fsdpSize, 1)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "actor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "actor", "dp_actor.yaml"), []byte(body), 0o600))
}

func newTestHolder(t *testing.T) (*Holder, string) {
	t.Helper()
	dir := t.TempDir()
	writeActor(t, dir, "-1")

	loader := NewLoader(Options{ConfigDirs: []string{dir}})
	initial, err := loader.Load(context.Background())
	require.NoError(t, err)
	return NewHolder(initial, loader), dir
}

func TestHolder_ReloadSwapsOnSuccess(t *testing.T) {
	h, dir := newTestHolder(t)
	assert.Equal(t, -1, h.Current().Actor().FSDPConfig.FSDPSize)

	updates := make(chan *Snapshot, 1)
	h.Subscribe(updates)

	writeActor(t, dir, "4")
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, 4, h.Current().Actor().FSDPConfig.FSDPSize)
	assert.Equal(t, []string{"fsdp_config.fsdp_size"}, h.LastChange().ChangedPaths)
	assert.True(t, h.LastChange().TopologyChanged)
	assert.NoError(t, h.LastError())

	select {
	case snap := <-updates:
		assert.Same(t, h.Current(), snap)
	default:
		t.Fatal("listener was not notified")
	}
}

func TestHolder_ReloadKeepsCurrentOnFailure(t *testing.T) {
	h, dir := newTestHolder(t)
	before := h.Current()

	writeActor(t, dir, "0")
	err := h.Reload(context.Background())
	require.ErrorIs(t, err, ErrSchema)
	assert.Same(t, before, h.Current())
	assert.ErrorIs(t, h.LastError(), ErrSchema)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "actor", "dp_actor.yaml"), []byte("defaults: [\n"), 0o600))
	require.ErrorIs(t, h.Reload(context.Background()), ErrMalformed)
	assert.Same(t, before, h.Current())
}

func TestHolder_FullListenerDoesNotBlock(t *testing.T) {
	h, _ := newTestHolder(t)
	full := make(chan *Snapshot)
	h.Subscribe(full)

	done := make(chan error, 1)
	go func() { done <- h.Reload(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload blocked on a listener")
	}
}

func TestHolder_WatcherReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h, dir := newTestHolder(t)
	h.SetDebounce(20 * time.Millisecond)

	updates := make(chan *Snapshot, 4)
	h.Subscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))

	writeActor(t, dir, "2")

	select {
	case snap := <-updates:
		assert.Equal(t, 2, snap.Actor().FSDPConfig.FSDPSize)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}

	h.Stop()
	cancel()
}

func TestHolder_WatcherStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h, _ := newTestHolder(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.StartWatcher(ctx))
	cancel()
	h.Stop()
}

func TestHolder_WatcherWithoutDirsIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loader := NewLoader(Options{})
	initial, err := loader.Load(context.Background())
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
