// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	base := mustLoad(t, Options{})

	same := Diff(base, mustLoad(t, Options{}))
	assert.True(t, same.Empty())
	assert.False(t, same.TopologyChanged)

	tuned := Diff(base, mustLoad(t, Options{Overrides: []string{"optim.lr=2e-6", "entropy_checkpointing=true"}}))
	assert.Equal(t, []string{"entropy_checkpointing", "optim.lr"}, tuned.ChangedPaths)
	assert.False(t, tuned.TopologyChanged)

	resharded := Diff(base, mustLoad(t, Options{Overrides: []string{"fsdp_config.fsdp_size=2"}}))
	assert.Equal(t, []string{"fsdp_config.fsdp_size"}, resharded.ChangedPaths)
	assert.True(t, resharded.TopologyChanged)
}

func TestDiff_NilOld(t *testing.T) {
	next := mustLoad(t, Options{})
	summary := Diff(nil, next)
	assert.Contains(t, summary.ChangedPaths, "strategy")
	assert.True(t, summary.TopologyChanged)
}
