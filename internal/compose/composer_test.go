// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/trainconf/internal/tree"
)

func mapRoot(name string, files map[string]string) Root {
	fsys := fstest.MapFS{}
	for p, content := range files {
		fsys[p] = &fstest.MapFile{Data: []byte(content)}
	}
	return Root{Name: name, FS: fsys}
}

func TestCompose_OverrideWinsOverBase(t *testing.T) {
	src := NewSearchPath(mapRoot("mem", map[string]string{
		"actor/actor.yaml": `
strategy: ddp
grad_clip: 2.0
optim:
  lr: 1.0e-6
  weight_decay: 0.01
`,
		"actor/dp_actor.yaml": `
defaults:
  - actor
  - _self_
strategy: fsdp
grad_clip: 1.0
optim:
  warmup_style: constant
`,
	}))

	res, err := NewComposer(src).Compose(context.Background(), "actor/dp_actor")
	require.NoError(t, err)

	want := tree.Map{
		"strategy":  "fsdp",
		"grad_clip": 1.0,
		"optim":     tree.Map{"lr": 1e-6, "weight_decay": 0.01, "warmup_style": "constant"},
	}
	if diff := cmp.Diff(want, res.Tree); diff != "" {
		t.Errorf("composed tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"actor/actor", "actor/dp_actor"}, res.Fragments)
	assert.Equal(t, "actor/dp_actor", res.Provenance["strategy"])
	assert.Equal(t, "actor/actor", res.Provenance["optim.lr"])
	assert.Equal(t, "actor/dp_actor", res.Provenance["optim.warmup_style"])
}

func TestCompose_SelfFirstLetsBaseWin(t *testing.T) {
	src := NewSearchPath(mapRoot("mem", map[string]string{
		"base.yaml": "a: base\n",
		"leaf.yaml": "defaults:\n  - _self_\n  - base\na: leaf\nb: leaf\n",
	}))
	res, err := NewComposer(src).Compose(context.Background(), "leaf")
	require.NoError(t, err)
	assert.Equal(t, tree.Map{"a": "base", "b": "leaf"}, res.Tree)
}

func TestCompose_ImplicitSelfIsLast(t *testing.T) {
	src := NewSearchPath(mapRoot("mem", map[string]string{
		"base.yaml": "a: base\n",
		"leaf.yaml": "defaults:\n  - base\na: leaf\n",
	}))
	res, err := NewComposer(src).Compose(context.Background(), "leaf")
	require.NoError(t, err)
	assert.Equal(t, "leaf", res.Tree["a"])
}

func TestCompose_GroupEntriesMountUnderKey(t *testing.T) {
	src := NewSearchPath(mapRoot("mem", map[string]string{
		"optim/fsdp.yaml": "warmup_style: cosine\nnum_cycles: 0.5\n",
		"leaf.yaml": `
defaults:
  - optim: fsdp
  - optional profiler: missing
  - _self_
optim:
  num_cycles: 1.5
`,
	}))
	res, err := NewComposer(src).Compose(context.Background(), "leaf")
	require.NoError(t, err)
	assert.Equal(t, tree.Map{"optim": tree.Map{"warmup_style": "cosine", "num_cycles": 1.5}}, res.Tree)
	assert.Equal(t, "optim/fsdp", res.Provenance["optim.warmup_style"])
}

func TestCompose_MissingFragment(t *testing.T) {
	src := NewSearchPath(mapRoot("mem", map[string]string{
		"leaf.yaml": "defaults:\n  - nope\n  - _self_\n",
	}))
	_, err := NewComposer(src).Compose(context.Background(), "leaf")
	require.ErrorIs(t, err, ErrFragmentNotFound)

	_, err = NewComposer(src).Compose(context.Background(), "absent")
	require.ErrorIs(t, err, ErrFragmentNotFound)
}

func TestCompose_Cycle(t *testing.T) {
	src := NewSearchPath(mapRoot("mem", map[string]string{
		"a.yaml": "defaults: [b]\n",
		"b.yaml": "defaults: [a]\n",
	}))
	_, err := NewComposer(src).Compose(context.Background(), "a")
	require.ErrorIs(t, err, ErrInheritanceCycle)
}

func TestCompose_SearchPathPriority(t *testing.T) {
	user := mapRoot("user", map[string]string{"actor/actor.yaml": "strategy: megatron\n"})
	builtin := mapRoot("builtin", map[string]string{
		"actor/actor.yaml":    "strategy: ddp\nlr: 1\n",
		"actor/dp_actor.json": `{"defaults": ["actor"], "grad_clip": 1.0}`,
	})
	res, err := NewComposer(NewSearchPath(user, builtin)).Compose(context.Background(), "actor/dp_actor")
	require.NoError(t, err)
	// The user root shadows the builtin base entirely.
	assert.Equal(t, tree.Map{"strategy": "megatron", "grad_clip": 1.0}, res.Tree)
}

func TestCompose_CanceledContext(t *testing.T) {
	src := NewSearchPath(mapRoot("mem", map[string]string{"a.yaml": "x: 1\n"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewComposer(src).Compose(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSearchPath_RejectsEscapes(t *testing.T) {
	src := NewSearchPath(mapRoot("mem", map[string]string{"a.yaml": "x: 1\n"}))
	_, err := src.Load("../a")
	require.ErrorIs(t, err, ErrFragmentNotFound)
	_, err = src.Load("a.yaml")
	require.NoError(t, err)
	assert.True(t, src.Exists("a"))
	assert.False(t, src.Exists("b"))
}
