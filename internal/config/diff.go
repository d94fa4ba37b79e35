// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"strings"

	"github.com/ManuGH/trainconf/internal/tree"
)

// ChangeSummary describes the result of comparing two snapshots.
type ChangeSummary struct {
	ChangedPaths    []string // Leaf paths that differ, sorted
	TopologyChanged bool     // True if the device or sequence-parallel layout changed
}

// topologyPaths change how ranks are grouped; workers must be relaunched to
// pick them up.
var topologyPaths = []string{
	"strategy",
	"ulysses_sequence_parallel_size",
	"fsdp_config.fsdp_size",
}

// Diff compares two snapshots. A nil old snapshot reports every leaf of next
// as changed.
func Diff(old, next *Snapshot) ChangeSummary {
	var before, after tree.Map
	if old != nil {
		before = old.record
	}
	if next != nil {
		after = next.record
	}

	summary := ChangeSummary{ChangedPaths: tree.DiffPaths(before, after)}
	for _, p := range summary.ChangedPaths {
		if isTopologyPath(p) {
			summary.TopologyChanged = true
			break
		}
	}
	return summary
}

// Empty reports whether nothing changed.
func (c ChangeSummary) Empty() bool {
	return len(c.ChangedPaths) == 0
}

func isTopologyPath(p string) bool {
	for _, t := range topologyPaths {
		if p == t || strings.HasPrefix(p, t+".") {
			return true
		}
	}
	return false
}
