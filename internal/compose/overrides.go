// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/trainconf/internal/tree"
)

// OverrideOp is the action an override performs.
type OverrideOp int

const (
	// OpSet changes an existing key: key=value
	OpSet OverrideOp = iota
	// OpAdd introduces a key that must not exist yet: +key=value
	OpAdd
	// OpForce sets a key whether or not it exists: ++key=value
	OpForce
	// OpDelete removes a key: ~key
	OpDelete
)

// Override is one parsed dotlist override.
type Override struct {
	Op    OverrideOp
	Path  string
	Value any
	Raw   string
}

// ParseOverride parses a dotlist override. Values are YAML scalars or flow
// collections, so "1", "false", "null" and "[1, 2]" keep their types.
func ParseOverride(raw string) (Override, error) {
	o := Override{Raw: raw}
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "++"):
		o.Op, s = OpForce, s[2:]
	case strings.HasPrefix(s, "+"):
		o.Op, s = OpAdd, s[1:]
	case strings.HasPrefix(s, "~"):
		o.Op, s = OpDelete, s[1:]
	}

	key, value, hasValue := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return o, fmt.Errorf("%w %q: missing key", ErrOverride, raw)
	}
	if _, err := tree.ParsePath(key); err != nil {
		return o, fmt.Errorf("%w %q: %v", ErrOverride, raw, err)
	}
	o.Path = key

	if o.Op == OpDelete {
		return o, nil
	}
	if !hasValue {
		return o, fmt.Errorf("%w %q: expected key=value", ErrOverride, raw)
	}
	v, err := parseValue(value)
	if err != nil {
		return o, fmt.Errorf("%w %q: %v", ErrOverride, raw, err)
	}
	o.Value = v
	return o, nil
}

// ParseOverrides parses every element of raw.
func ParseOverrides(raw []string) ([]Override, error) {
	out := make([]Override, 0, len(raw))
	for _, r := range raw {
		o, err := ParseOverride(r)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func parseValue(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return tree.Normalize(v)
}

// ApplyOverrides applies overrides to root in order.
func ApplyOverrides(root tree.Map, overrides []Override, provenance map[string]string) error {
	for _, o := range overrides {
		_, exists := tree.Lookup(root, o.Path)
		switch o.Op {
		case OpSet:
			if !exists {
				return fmt.Errorf("%w %q: key %s not in config (use +%s=... to add it)", ErrOverride, o.Raw, o.Path, o.Path)
			}
		case OpAdd:
			if exists {
				return fmt.Errorf("%w %q: key %s already set (use ++%s=... to force)", ErrOverride, o.Raw, o.Path, o.Path)
			}
		case OpDelete:
			if !tree.Delete(root, o.Path) {
				return fmt.Errorf("%w %q: key %s not in config", ErrOverride, o.Raw, o.Path)
			}
			forget(provenance, o.Path)
			continue
		}

		if existing, ok := tree.Lookup(root, o.Path); ok {
			if em, ok := existing.(tree.Map); ok {
				if vm, ok := o.Value.(tree.Map); ok {
					tree.Merge(em, vm)
					record(provenance, o.Path, vm, "override")
					continue
				}
			}
		}
		if err := tree.Set(root, o.Path, tree.Clone(o.Value)); err != nil {
			return fmt.Errorf("%w %q: %v", ErrOverride, o.Raw, err)
		}
		forget(provenance, o.Path)
		record(provenance, o.Path, o.Value, "override")
	}
	return nil
}

func record(provenance map[string]string, at string, v any, origin string) {
	if provenance == nil {
		return
	}
	if m, ok := v.(tree.Map); ok && len(m) > 0 {
		for _, leaf := range tree.Leaves(m) {
			provenance[tree.Join(at, leaf.Path)] = origin
		}
		return
	}
	provenance[at] = origin
}

func forget(provenance map[string]string, at string) {
	for p := range provenance {
		if p == at || strings.HasPrefix(p, at+".") || strings.HasPrefix(p, at+"[") {
			delete(provenance, p)
		}
	}
}
