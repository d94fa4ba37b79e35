// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import (
	"fmt"

	"github.com/ManuGH/trainconf/internal/tree"
)

// Mount places record at the dotted path at inside a copy of enclosing, so
// that absolute references in the record can reach its surroundings. Values
// the enclosing tree already holds under at act as a base the record
// overrides. Neither input is modified.
func Mount(record tree.Map, at string, enclosing tree.Map) (tree.Map, error) {
	root := tree.CloneMap(enclosing)
	if at == "" {
		tree.Merge(root, record)
		return root, nil
	}
	if existing, ok := tree.Lookup(root, at); ok {
		base, isMap := existing.(tree.Map)
		if !isMap && existing != nil {
			return nil, fmt.Errorf("mount %s: enclosing tree holds a %T there", at, existing)
		}
		if isMap {
			tree.Merge(base, record)
			return root, nil
		}
	}
	if err := tree.Set(root, at, tree.CloneMap(record)); err != nil {
		return nil, fmt.Errorf("mount %s: %w", at, err)
	}
	return root, nil
}

// Extract returns a deep copy of the mapping mounted at at.
func Extract(root tree.Map, at string) (tree.Map, error) {
	v, ok := tree.Lookup(root, at)
	if !ok {
		return nil, fmt.Errorf("extract %s: path not found", at)
	}
	m, ok := v.(tree.Map)
	if !ok {
		return nil, fmt.Errorf("extract %s: expected a mapping, got %T", at, v)
	}
	return tree.CloneMap(m), nil
}
