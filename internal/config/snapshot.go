// SPDX-License-Identifier: MIT

package config

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/ManuGH/trainconf/internal/tree"
)

// Snapshot is the immutable result of one successful load. Accessors return
// copies; nothing reachable from a Snapshot can be mutated by callers.
type Snapshot struct {
	actor        FSDPActorConfig
	record       tree.Map
	provenance   map[string]string
	fragments    []string
	resolutionID string
	loadedAt     time.Time
}

func newSnapshot(cfg FSDPActorConfig, record tree.Map, provenance map[string]string, fragments []string, id string) *Snapshot {
	prov := make(map[string]string, len(provenance))
	for k, v := range provenance {
		prov[k] = v
	}
	return &Snapshot{
		actor:        cfg.Clone(),
		record:       tree.CloneMap(record),
		provenance:   prov,
		fragments:    append([]string(nil), fragments...),
		resolutionID: id,
		loadedAt:     time.Now(),
	}
}

// Actor returns the typed record.
func (s *Snapshot) Actor() FSDPActorConfig {
	return s.actor.Clone()
}

// Tree returns the resolved record as a generic tree.
func (s *Snapshot) Tree() tree.Map {
	return tree.CloneMap(s.record)
}

// Lookup returns a copy of the resolved value at a dotted path.
func (s *Snapshot) Lookup(path string) (any, bool) {
	v, ok := tree.Lookup(s.record, path)
	if !ok {
		return nil, false
	}
	return tree.Clone(v), true
}

// YAML renders the resolved record.
func (s *Snapshot) YAML() ([]byte, error) {
	return Dump(s.record)
}

// JSON renders the resolved record with indentation.
func (s *Snapshot) JSON() ([]byte, error) {
	return json.MarshalIndent(s.record, "", "  ")
}

// Provenance returns the fragment that last set the leaf at path, or
// "override" for command-line overrides.
func (s *Snapshot) Provenance(path string) (string, bool) {
	origin, ok := s.provenance[path]
	return origin, ok
}

// ProvenancePaths returns every leaf path with known provenance, sorted.
func (s *Snapshot) ProvenancePaths() []string {
	out := make([]string, 0, len(s.provenance))
	for p := range s.provenance {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Fragments lists the fragments applied, in merge order.
func (s *Snapshot) Fragments() []string {
	return append([]string(nil), s.fragments...)
}

// ResolutionID identifies the load that produced the snapshot in logs.
func (s *Snapshot) ResolutionID() string { return s.resolutionID }

// LoadedAt is when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
