// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tree

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Map is a mapping node.
type Map = map[string]any

// Normalize converts decoder output into the canonical node types used by
// this package: Map, []any, string, bool, int, float64, nil. Timestamps are
// rendered as RFC 3339 strings.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int, float64:
		return t, nil
	case int8:
		return int(t), nil
	case int16:
		return int(t), nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case uint:
		return int(t), nil
	case uint8:
		return int(t), nil
	case uint16:
		return int(t), nil
	case uint32:
		return int(t), nil
	case uint64:
		return int(t), nil
	case float32:
		return float64(t), nil
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	case map[string]any:
		out := make(Map, len(t))
		for k, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(Map, len(t))
		for k, child := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string mapping key %v (%T)", k, k)
			}
			n, err := Normalize(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// Clone returns a deep copy of a normalized node.
func Clone(v any) any {
	switch t := v.(type) {
	case Map:
		out := make(Map, len(t))
		for k, child := range t {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Clone(child)
		}
		return out
	default:
		return t
	}
}

// CloneMap is Clone for mapping nodes. A nil map clones to an empty map.
func CloneMap(m Map) Map {
	if m == nil {
		return Map{}
	}
	return Clone(m).(Map)
}

// Lookup returns the node addressed by path. The empty path returns root.
func Lookup(root Map, path string) (any, bool) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	return LookupSegments(root, segs)
}

// LookupSegments is Lookup for an already parsed path.
func LookupSegments(root Map, segs []Segment) (any, bool) {
	var cur any = root
	for _, s := range segs {
		switch node := cur.(type) {
		case Map:
			if s.IsIndex {
				return nil, false
			}
			child, ok := node[s.Key]
			if !ok {
				return nil, false
			}
			cur = child
		case []any:
			if !s.IsIndex || s.Index >= len(node) {
				return nil, false
			}
			cur = node[s.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at path, creating intermediate mappings as needed. It fails
// when an intermediate node exists but is not a container, or when a list
// index is out of range.
func Set(root Map, path string, v any) error {
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: cannot set the root", ErrInvalidPath)
	}
	var cur any = root
	for i, s := range segs {
		last := i == len(segs)-1
		switch node := cur.(type) {
		case Map:
			if s.IsIndex {
				return fmt.Errorf("%s: index into a mapping", FormatPath(segs[:i+1]))
			}
			if last {
				node[s.Key] = v
				return nil
			}
			next, ok := node[s.Key]
			if !ok || next == nil {
				next = Map{}
				node[s.Key] = next
			}
			cur = next
		case []any:
			if !s.IsIndex {
				return fmt.Errorf("%s: key into a list", FormatPath(segs[:i+1]))
			}
			if s.Index >= len(node) {
				return fmt.Errorf("%s: index out of range (len %d)", FormatPath(segs[:i+1]), len(node))
			}
			if last {
				node[s.Index] = v
				return nil
			}
			cur = node[s.Index]
		default:
			return fmt.Errorf("%s: cannot descend into %T", FormatPath(segs[:i]), node)
		}
	}
	return nil
}

// Delete removes the mapping key addressed by path. It reports whether
// anything was removed. List elements cannot be deleted.
func Delete(root Map, path string) bool {
	segs, err := ParsePath(path)
	if err != nil || len(segs) == 0 {
		return false
	}
	last := segs[len(segs)-1]
	if last.IsIndex {
		return false
	}
	parent, ok := LookupSegments(root, segs[:len(segs)-1])
	if !ok {
		return false
	}
	m, ok := parent.(Map)
	if !ok {
		return false
	}
	if _, ok := m[last.Key]; !ok {
		return false
	}
	delete(m, last.Key)
	return true
}

// Merge overlays src onto dst in place. Mappings present on both sides merge
// recursively; any other src value replaces the dst value. Values taken from
// src are deep-copied so later mutation of either tree does not leak.
func Merge(dst, src Map) {
	for k, sv := range src {
		if sm, ok := sv.(Map); ok {
			if dm, ok := dst[k].(Map); ok {
				Merge(dm, sm)
				continue
			}
		}
		dst[k] = Clone(sv)
	}
}

// Merged returns a fresh tree with each source merged in order.
func Merged(sources ...Map) Map {
	out := Map{}
	for _, s := range sources {
		Merge(out, s)
	}
	return out
}

// Leaf is one terminal node reported by Walk.
type Leaf struct {
	Path  string
	Value any
}

// Walk visits every leaf in deterministic order: mapping keys sorted, list
// elements by index. Empty mappings and empty lists are reported as leaves.
func Walk(root Map, fn func(path string, v any) error) error {
	return walk("", root, fn)
}

func walk(prefix string, v any, fn func(string, any) error) error {
	switch node := v.(type) {
	case Map:
		if len(node) == 0 && prefix != "" {
			return fn(prefix, node)
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := walk(Join(prefix, k), node[k], fn); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if len(node) == 0 {
			return fn(prefix, node)
		}
		for i, child := range node {
			if err := walk(fmt.Sprintf("%s[%d]", prefix, i), child, fn); err != nil {
				return err
			}
		}
		return nil
	default:
		return fn(prefix, node)
	}
}

// Leaves flattens root into its leaves in Walk order.
func Leaves(root Map) []Leaf {
	var out []Leaf
	_ = Walk(root, func(p string, v any) error {
		out = append(out, Leaf{Path: p, Value: v})
		return nil
	})
	return out
}

// Equal reports whether two normalized trees are deeply equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// DiffPaths returns the sorted leaf paths whose value differs between a and b,
// including leaves present on only one side.
func DiffPaths(a, b Map) []string {
	left := make(map[string]any)
	for _, l := range Leaves(a) {
		left[l.Path] = l.Value
	}
	seen := make(map[string]struct{})
	var changed []string
	for _, l := range Leaves(b) {
		seen[l.Path] = struct{}{}
		old, ok := left[l.Path]
		if !ok || !reflect.DeepEqual(old, l.Value) {
			changed = append(changed, l.Path)
		}
	}
	for p := range left {
		if _, ok := seen[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}
