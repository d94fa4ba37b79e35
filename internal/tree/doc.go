// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package tree implements the untyped hierarchical document that fragments
// decode into: maps with string keys, lists, and scalars.
//
// Paths address nodes with dot-separated keys and bracketed list indexes,
// e.g. "actor_rollout_ref.actor.optim.lr" or "policies[0].name".
//
// Merge is override-wins: mappings merge key by key recursively, every other
// value (scalars and lists alike) is replaced wholesale by the later source.
package tree
