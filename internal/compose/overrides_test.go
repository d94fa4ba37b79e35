// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/trainconf/internal/tree"
)

func TestParseOverride(t *testing.T) {
	tests := []struct {
		raw   string
		op    OverrideOp
		path  string
		value any
	}{
		{"grad_clip=0.5", OpSet, "grad_clip", 0.5},
		{"fsdp_config.fsdp_size=8", OpSet, "fsdp_config.fsdp_size", 8},
		{"fsdp_config.param_offload=true", OpSet, "fsdp_config.param_offload", true},
		{"optim.warmup_style=cosine", OpSet, "optim.warmup_style", "cosine"},
		{"+extra.key=null", OpAdd, "extra.key", nil},
		{"++strategy=fsdp2", OpForce, "strategy", "fsdp2"},
		{"~entropy_checkpointing", OpDelete, "entropy_checkpointing", nil},
		{"name=", OpSet, "name", ""},
		{"list=[1, 2]", OpSet, "list", []any{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			o, err := ParseOverride(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.op, o.Op)
			assert.Equal(t, tt.path, o.Path)
			assert.Equal(t, tt.value, o.Value)
		})
	}
}

func TestParseOverride_Invalid(t *testing.T) {
	for _, raw := range []string{"", "=1", "a..b=1", "novalue", "a=[1,"} {
		_, err := ParseOverride(raw)
		assert.ErrorIs(t, err, ErrOverride, raw)
	}
}

func TestApplyOverrides(t *testing.T) {
	root := tree.Map{
		"grad_clip": 1.0,
		"optim":     tree.Map{"lr": 1e-6},
		"drop_me":   true,
	}
	prov := map[string]string{"grad_clip": "actor/dp_actor", "drop_me": "actor/actor"}

	ovs, err := ParseOverrides([]string{
		"grad_clip=0.5",
		"+optim.min_lr_ratio=0.1",
		"++strategy=fsdp2",
		"~drop_me",
		"optim={lr: 2.0e-6}",
	})
	require.NoError(t, err)
	require.NoError(t, ApplyOverrides(root, ovs, prov))

	assert.Equal(t, tree.Map{
		"grad_clip": 0.5,
		"strategy":  "fsdp2",
		"optim":     tree.Map{"lr": 2e-6, "min_lr_ratio": 0.1},
	}, root)
	assert.Equal(t, "override", prov["grad_clip"])
	assert.Equal(t, "override", prov["optim.lr"])
	_, ok := prov["drop_me"]
	assert.False(t, ok)
}

func TestApplyOverrides_Errors(t *testing.T) {
	for _, raw := range []string{"missing=1", "+grad_clip=2", "~missing"} {
		root := tree.Map{"grad_clip": 1.0}
		ovs, err := ParseOverrides([]string{raw})
		require.NoError(t, err)
		assert.ErrorIs(t, ApplyOverrides(root, ovs, nil), ErrOverride, raw)
	}
}

func TestMountAndExtract(t *testing.T) {
	record := tree.Map{"grad_clip": 1.0}
	enclosing := tree.Map{
		"actor_rollout_ref": tree.Map{
			"model": tree.Map{"use_remove_padding": true},
			"actor": tree.Map{"grad_clip": 9.0, "ppo_epochs": 2},
		},
	}
	root, err := Mount(record, "actor_rollout_ref.actor", enclosing)
	require.NoError(t, err)

	got, err := Extract(root, "actor_rollout_ref.actor")
	require.NoError(t, err)
	assert.Equal(t, tree.Map{"grad_clip": 1.0, "ppo_epochs": 2}, got)
	// enclosing untouched
	assert.Equal(t, 9.0, enclosing["actor_rollout_ref"].(tree.Map)["actor"].(tree.Map)["grad_clip"])

	root, err = Mount(record, "", nil)
	require.NoError(t, err)
	assert.Equal(t, record, root)

	_, err = Mount(record, "actor_rollout_ref.model.use_remove_padding", enclosing)
	assert.Error(t, err)

	_, err = Extract(root, "nope")
	assert.Error(t, err)
	_, err = Extract(root, "grad_clip")
	assert.Error(t, err)
}
