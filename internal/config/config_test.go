// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/trainconf/internal/compose"
	"github.com/ManuGH/trainconf/internal/fragment"
	tclog "github.com/ManuGH/trainconf/internal/log"
	"github.com/ManuGH/trainconf/internal/tree"
)

func memRoot(name string, files map[string]string) compose.Root {
	fsys := fstest.MapFS{}
	for p, content := range files {
		fsys[p] = &fstest.MapFile{Data: []byte(content)}
	}
	return compose.Root{Name: name, FS: fsys}
}

func builtinFile(t *testing.T, name string) string {
	t.Helper()
	data, err := fs.ReadFile(builtinFS, "builtin/"+name)
	require.NoError(t, err)
	return string(data)
}

func mustLoad(t *testing.T, opts Options) *Snapshot {
	t.Helper()
	snap, err := NewLoader(opts).Load(context.Background())
	require.NoError(t, err)
	return snap
}

func TestLoad_BuiltinDefaults(t *testing.T) {
	actor := mustLoad(t, Options{}).Actor()

	assert.Equal(t, TargetFSDPActor, actor.Target)
	assert.Equal(t, StrategyFSDP, actor.Strategy)
	assert.Equal(t, 1.0, actor.GradClip)
	assert.False(t, actor.EntropyFromLogitsWithChunking)
	assert.False(t, actor.EntropyCheckpointing)
	assert.Equal(t, 1, actor.UlyssesSequenceParallelSize)
	assert.False(t, actor.UseRemovePadding)

	assert.Equal(t, OptimizerConfig{
		Target:             TargetFSDPOptimizer,
		LR:                 1e-6,
		LRWarmupSteps:      -1,
		LRWarmupStepsRatio: 0,
		TotalTrainingSteps: -1,
		WeightDecay:        0.01,
		MinLRRatio:         0,
		NumCycles:          0.5,
		WarmupStyle:        WarmupConstant,
	}, actor.Optim)

	assert.Equal(t, FSDPEngineConfig{
		Target:              TargetFSDPEngine,
		WrapPolicy:          WrapPolicyConfig{MinNumParams: 0},
		ParamOffload:        false,
		OptimizerOffload:    false,
		OffloadPolicy:       false,
		ReshardAfterForward: true,
		FSDPSize:            -1,
		ForwardPrefetch:     false,
	}, actor.FSDPConfig)

	assert.Equal(t, []string{"model", "optimizer", "extra"}, actor.Checkpoint.SaveContents)
	assert.Equal(t, actor.Checkpoint.SaveContents, actor.Checkpoint.LoadContents)
	assert.Equal(t, 256, actor.PPOMiniBatchSize)
	assert.Nil(t, actor.PPOMicroBatchSizePerGPU)
}

// Every literal leaf of the dp actor fragment survives composition unchanged.
func TestLoad_FragmentLiteralsWin(t *testing.T) {
	snap := mustLoad(t, Options{})

	frag, err := fragment.Parse("actor/dp_actor", "dp_actor.yaml", fragment.FormatYAML, []byte(builtinFile(t, "actor/dp_actor.yaml")))
	require.NoError(t, err)

	for _, leaf := range tree.Leaves(frag.Body) {
		if s, ok := leaf.Value.(string); ok && strings.Contains(s, "${") {
			continue
		}
		got, ok := snap.Lookup(leaf.Path)
		require.True(t, ok, leaf.Path)
		assert.Equal(t, leaf.Value, got, leaf.Path)

		origin, ok := snap.Provenance(leaf.Path)
		require.True(t, ok, leaf.Path)
		assert.Equal(t, "actor/dp_actor", origin, leaf.Path)
	}
}

func TestLoad_OverrideWinsOverBase(t *testing.T) {
	base := builtinFile(t, "actor/actor.yaml")
	base = strings.Replace(base, "strategy: ???", "strategy: ddp", 1)
	base += "\n# Base clipping.\ngrad_clip: 2.0\n"

	snap := mustLoad(t, Options{
		Roots: []compose.Root{memRoot("user", map[string]string{"actor/actor.yaml": base})},
	})
	actor := snap.Actor()
	assert.Equal(t, StrategyFSDP, actor.Strategy)
	assert.Equal(t, 1.0, actor.GradClip)
	// untouched base fields still come through the nested merge
	assert.Equal(t, 1e-6, actor.Optim.LR)
	assert.Equal(t, []string{"actor/actor", "actor/dp_actor"}, snap.Fragments())

	origin, _ := snap.Provenance("optim.lr")
	assert.Equal(t, "actor/actor", origin)
}

func TestLoad_UlyssesSequenceParallelSize(t *testing.T) {
	tests := []struct {
		name    string
		context tree.Map
		want    int
	}{
		{name: "no sibling", want: 1},
		{
			name:    "sibling set",
			context: tree.Map{"actor_rollout_ref": tree.Map{"ref": tree.Map{"ulysses_sequence_parallel_size": 4}}},
			want:    4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := mustLoad(t, Options{MountPath: DefaultMountPath, Context: tt.context})
			assert.Equal(t, tt.want, snap.Actor().UlyssesSequenceParallelSize)
		})
	}
}

func TestLoad_UseRemovePadding(t *testing.T) {
	tests := []struct {
		name    string
		mount   string
		context tree.Map
		want    bool
	}{
		{name: "standalone", want: false},
		{name: "mounted without model", mount: DefaultMountPath, want: false},
		{
			name:    "model enables it",
			mount:   DefaultMountPath,
			context: tree.Map{"actor_rollout_ref": tree.Map{"model": tree.Map{"use_remove_padding": true}}},
			want:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := mustLoad(t, Options{MountPath: tt.mount, Context: tt.context})
			assert.Equal(t, tt.want, snap.Actor().UseRemovePadding)
		})
	}
}

func TestLoad_WarmupStyleRejected(t *testing.T) {
	_, err := NewLoader(Options{Overrides: []string{"optim.warmup_style=linear"}}).Load(context.Background())
	require.ErrorIs(t, err, ErrSchema)

	var schemaErr SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Len(t, schemaErr.Errors(), 1)
	assert.Equal(t, "optim.warmup_style", schemaErr.Errors()[0].Field)
}

func TestLoad_CosineWarmupAccepted(t *testing.T) {
	snap := mustLoad(t, Options{Overrides: []string{"optim.warmup_style=cosine", "optim.min_lr_ratio=0.1"}})
	assert.Equal(t, WarmupCosine, snap.Actor().Optim.WarmupStyle)
	assert.Equal(t, 0.1, snap.Actor().Optim.MinLRRatio)

	origin, _ := snap.Provenance("optim.warmup_style")
	assert.Equal(t, "override", origin)
}

func TestLoad_AutoFSDPSizeShardsWholeWorld(t *testing.T) {
	engine := mustLoad(t, Options{}).Actor().FSDPConfig
	require.True(t, engine.AutoSized())

	mesh, err := engine.Mesh(8)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, mesh.Shape)
	assert.Equal(t, 8, mesh.ShardSize())
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4, 5, 6, 7}}, mesh.ShardGroups)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{
			name:    "missing primary",
			opts:    Options{ConfigName: "actor/megatron_actor"},
			wantErr: ErrFragmentNotFound,
		},
		{
			name: "missing inherited",
			opts: Options{
				ConfigName: "actor/custom",
				Roots:      []compose.Root{memRoot("user", map[string]string{"actor/custom.yaml": "defaults:\n  - nope\n  - _self_\n"})},
			},
			wantErr: ErrFragmentNotFound,
		},
		{
			name: "malformed",
			opts: Options{
				ConfigName: "actor/custom",
				Roots:      []compose.Root{memRoot("user", map[string]string{"actor/custom.yaml": "strategy: [fsdp\n"})},
			},
			wantErr: ErrMalformed,
		},
		{
			name: "key with a dot",
			opts: Options{
				ConfigName: "actor/custom",
				Roots:      []compose.Root{memRoot("user", map[string]string{"actor/custom.yaml": "optim:\n  lr.max: 1\n"})},
			},
			wantErr: ErrMalformed,
		},
		{
			name: "inheritance cycle",
			opts: Options{
				ConfigName: "a",
				Roots: []compose.Root{memRoot("user", map[string]string{
					"a.yaml": "defaults:\n  - b\n",
					"b.yaml": "defaults:\n  - a\n",
				})},
			},
			wantErr: ErrInheritanceCycle,
		},
		{
			name:    "mandatory strategy",
			opts:    Options{ConfigName: "actor/actor"},
			wantErr: ErrMandatoryValue,
		},
		{
			name:    "unresolved reference",
			opts:    Options{Overrides: []string{"grad_clip=${trainer.max_norm}"}},
			wantErr: ErrUnresolvedReference,
		},
		{
			name:    "reference cycle",
			opts:    Options{Overrides: []string{"grad_clip=${.clip_ratio}", "clip_ratio=${.grad_clip}"}},
			wantErr: ErrReferenceCycle,
		},
		{
			name:    "unknown field",
			opts:    Options{Overrides: []string{"+fsdp_config.fsdp_sise=4"}},
			wantErr: ErrSchema,
		},
		{
			name:    "type mismatch",
			opts:    Options{Overrides: []string{"grad_clip=high"}},
			wantErr: ErrSchema,
		},
		{
			name:    "unknown target",
			opts:    Options{Overrides: []string{"optim._target_=torch.optim.SGD"}},
			wantErr: ErrSchema,
		},
		{
			name:    "abstract target",
			opts:    Options{Overrides: []string{"_target_=" + TargetActor}},
			wantErr: ErrSchema,
		},
		{
			name:    "override of absent key",
			opts:    Options{Overrides: []string{"fsdp_config.fsdp_sise=4"}},
			wantErr: ErrOverride,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.opts).Load(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_ContextFileAndConfigDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "actor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "actor", "wide_actor.yaml"), []byte(`
defaults:
  - dp_actor
  - _self_
fsdp_config:
  fsdp_size: 8
`), 0o600))

	ctxFile := filepath.Join(t.TempDir(), "trainer.json")
	require.NoError(t, os.WriteFile(ctxFile, []byte(`{"actor_rollout_ref": {"model": {"use_remove_padding": true}}}`), 0o600))

	loader := NewLoader(Options{
		ConfigDirs:   []string{dir},
		ConfigName:   "actor/wide_actor",
		MountPath:    DefaultMountPath,
		ContextFiles: []string{ctxFile},
	})
	snap, err := loader.Load(context.Background())
	require.NoError(t, err)

	actor := snap.Actor()
	assert.Equal(t, 8, actor.FSDPConfig.FSDPSize)
	assert.True(t, actor.UseRemovePadding)
	assert.Equal(t, []string{"actor/actor", "actor/dp_actor", "actor/wide_actor"}, snap.Fragments())
	assert.ElementsMatch(t, []string{dir, filepath.Dir(ctxFile)}, loader.WatchPaths())
}

func TestLoad_ContextFileWithDefaultsRejected(t *testing.T) {
	ctxFile := filepath.Join(t.TempDir(), "trainer.yaml")
	require.NoError(t, os.WriteFile(ctxFile, []byte("defaults:\n  - x\n"), 0o600))

	_, err := NewLoader(Options{ContextFiles: []string{ctxFile}}).Load(context.Background())
	require.ErrorIs(t, err, ErrMalformed)
}

func TestLoad_EnvResolver(t *testing.T) {
	env := map[string]string{"ACTOR_STRATEGY": "fsdp2"}
	snap := mustLoad(t, Options{
		Overrides: []string{"strategy=${oc.env:ACTOR_STRATEGY,fsdp}"},
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	})
	assert.Equal(t, StrategyFSDP2, snap.Actor().Strategy)
}

func TestLoad_ReusesResolutionID(t *testing.T) {
	ctx := tclog.ContextWithResolutionID(context.Background(), "rid-123")
	snap, err := NewLoader(Options{}).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rid-123", snap.ResolutionID())

	other := mustLoad(t, Options{})
	assert.NotEmpty(t, other.ResolutionID())
	assert.NotEqual(t, "rid-123", other.ResolutionID())
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	snap := mustLoad(t, Options{})

	actor := snap.Actor()
	actor.Checkpoint.SaveContents[0] = "mutated"
	actor.GradClip = 99
	assert.Equal(t, "model", snap.Actor().Checkpoint.SaveContents[0])
	assert.Equal(t, 1.0, snap.Actor().GradClip)

	tr := snap.Tree()
	tr["strategy"] = "ddp"
	v, _ := snap.Lookup("strategy")
	assert.Equal(t, "fsdp", v)

	frags := snap.Fragments()
	frags[0] = "x"
	assert.Equal(t, "actor/actor", snap.Fragments()[0])
}

func TestLoader_OptionsAreCopied(t *testing.T) {
	overrides := []string{"grad_clip=0.5"}
	loader := NewLoader(Options{Overrides: overrides})
	overrides[0] = "grad_clip=bad"

	snap, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.5, snap.Actor().GradClip)
	assert.Equal(t, DefaultConfigName, loader.Options().ConfigName)
}
