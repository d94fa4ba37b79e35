// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ManuGH/trainconf/internal/fragment"
	"github.com/ManuGH/trainconf/internal/tree"
)

// Well-known consumer targets.
const (
	TargetFSDPActor     = "verl.workers.config.FSDPActorConfig"
	TargetActor         = "verl.workers.config.ActorConfig"
	TargetOptimizer     = "verl.workers.config.OptimizerConfig"
	TargetFSDPOptimizer = "verl.workers.config.FSDPOptimizerConfig"
	TargetFSDPEngine    = "verl.workers.config.FSDPEngineConfig"
	TargetPolicyLoss    = "verl.workers.config.PolicyLossConfig"
	TargetCheckpoint    = "verl.trainer.config.CheckpointConfig"
)

// Status defines the lifecycle state of a target.
type Status string

const (
	StatusActive Status = "Active"
	// StatusAbstract targets may appear in base fragments but never in a
	// fully composed record.
	StatusAbstract Status = "Abstract"
)

// TargetEntry registers one consumer handler for one record location.
type TargetEntry struct {
	Target string // Fully qualified handler name (the _target_ value)
	Path   string // Dotted location inside the actor record, "" for the root
	Status Status
}

// Registry is the inventory of accepted _target_ values.
type Registry struct {
	ByTarget map[string]TargetEntry
	ByPath   map[string][]TargetEntry
}

var (
	globalRegistry    *Registry
	globalRegistryErr error
	registryOnce      sync.Once
)

// GetRegistry returns the global target registry.
// It returns an error if the registry contains duplicates.
func GetRegistry() (*Registry, error) {
	registryOnce.Do(func() {
		globalRegistry, globalRegistryErr = buildRegistry()
	})
	return globalRegistry, globalRegistryErr
}

func buildRegistry() (*Registry, error) {
	r := &Registry{
		ByTarget: make(map[string]TargetEntry),
		ByPath:   make(map[string][]TargetEntry),
	}

	entries := []TargetEntry{
		{Target: TargetFSDPActor, Path: "", Status: StatusActive},
		{Target: TargetActor, Path: "", Status: StatusAbstract},
		{Target: TargetFSDPOptimizer, Path: "optim", Status: StatusActive},
		{Target: TargetOptimizer, Path: "optim", Status: StatusActive},
		{Target: TargetFSDPEngine, Path: "fsdp_config", Status: StatusActive},
		{Target: TargetPolicyLoss, Path: "policy_loss", Status: StatusActive},
		{Target: TargetCheckpoint, Path: "checkpoint", Status: StatusActive},
	}

	for _, e := range entries {
		if _, dup := r.ByTarget[e.Target]; dup {
			return nil, fmt.Errorf("duplicate target registration: %s", e.Target)
		}
		r.ByTarget[e.Target] = e
		r.ByPath[e.Path] = append(r.ByPath[e.Path], e)
	}
	return r, nil
}

// Paths returns the record locations that require a _target_, sorted.
func (r *Registry) Paths() []string {
	out := make([]string, 0, len(r.ByPath))
	for p := range r.ByPath {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// CheckTargets verifies every _target_ in record: each registered location
// must carry an accepted, non-abstract target and no other location may carry
// one at all.
func (r *Registry) CheckTargets(record tree.Map) error {
	for _, p := range r.Paths() {
		node, ok := tree.Lookup(record, p)
		if !ok {
			return fmt.Errorf("%w: %s: section missing", ErrSchema, displayPath(p))
		}
		m, ok := node.(tree.Map)
		if !ok {
			return fmt.Errorf("%w: %s: expected a mapping, got %T", ErrSchema, displayPath(p), node)
		}
		raw, ok := m[fragment.TargetKey]
		if !ok {
			return fmt.Errorf("%w: %s: missing %s", ErrSchema, displayPath(p), fragment.TargetKey)
		}
		target, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: %s.%s: expected a string, got %T", ErrSchema, displayPath(p), fragment.TargetKey, raw)
		}
		entry, known := r.ByTarget[target]
		if !known {
			return fmt.Errorf("%w: %s: unknown target %q", ErrSchema, displayPath(p), target)
		}
		if !r.Accepts(p, target) {
			return fmt.Errorf("%w: %s: target %q belongs at %s", ErrSchema, displayPath(p), target, displayPath(entry.Path))
		}
		if entry.Status == StatusAbstract {
			return fmt.Errorf("%w: %s: target %q is abstract; compose a concrete actor fragment", ErrSchema, displayPath(p), target)
		}
	}

	return tree.Walk(record, func(p string, _ any) error {
		parent, ok := tree.Parent(p)
		if !ok || !isTargetLeaf(p) {
			return nil
		}
		if _, registered := r.ByPath[parent]; !registered {
			return fmt.Errorf("%w: %s: no handler accepts a %s here", ErrSchema, p, fragment.TargetKey)
		}
		return nil
	})
}

// Accepts reports whether target is registered for path.
func (r *Registry) Accepts(path, target string) bool {
	return slices.ContainsFunc(r.ByPath[path], func(e TargetEntry) bool { return e.Target == target })
}

func isTargetLeaf(p string) bool {
	segs, err := tree.ParsePath(p)
	if err != nil || len(segs) == 0 {
		return false
	}
	last := segs[len(segs)-1]
	return !last.IsIndex && last.Key == fragment.TargetKey
}

func displayPath(p string) string {
	if p == "" {
		return "<root>"
	}
	return p
}
