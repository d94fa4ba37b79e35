// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "fmt"

// DeviceMesh is the rank layout a worker builds from the record. Dims lists
// dimension names outermost first; Shape gives their sizes.
type DeviceMesh struct {
	Dims  []string
	Shape []int
	// ShardGroups lists the ranks that shard one model replica together.
	ShardGroups [][]int
	// ReplicateGroups lists ranks holding the same shard; empty for a 1-D mesh.
	ReplicateGroups [][]int
}

// Size returns the number of ranks in the mesh.
func (m DeviceMesh) Size() int {
	n := 1
	for _, s := range m.Shape {
		n *= s
	}
	return n
}

// ShardSize returns the ranks per shard group.
func (m DeviceMesh) ShardSize() int {
	if len(m.Shape) == 0 {
		return 0
	}
	return m.Shape[len(m.Shape)-1]
}

// Mesh lays out worldSize ranks for FSDP. An automatic fsdp_size, or one at
// least as large as the world, shards across every rank; smaller sizes give a
// replicate×shard (HSDP) mesh and must divide the world size.
func (c FSDPEngineConfig) Mesh(worldSize int) (DeviceMesh, error) {
	if worldSize < 1 {
		return DeviceMesh{}, fmt.Errorf("world size must be >= 1, got %d", worldSize)
	}
	if c.FSDPSize != AutoFSDPSize && c.FSDPSize < 1 {
		return DeviceMesh{}, fmt.Errorf("%w: fsdp_size must be %d or >= 1, got %d", ErrSchema, AutoFSDPSize, c.FSDPSize)
	}

	if c.AutoSized() || c.FSDPSize >= worldSize {
		return DeviceMesh{
			Dims:        []string{"fsdp"},
			Shape:       []int{worldSize},
			ShardGroups: [][]int{rankRange(0, worldSize)},
		}, nil
	}

	if worldSize%c.FSDPSize != 0 {
		return DeviceMesh{}, fmt.Errorf("world size %d is not divisible by fsdp_size %d", worldSize, c.FSDPSize)
	}
	replicas := worldSize / c.FSDPSize
	m := DeviceMesh{
		Dims:  []string{"ddp", "fsdp"},
		Shape: []int{replicas, c.FSDPSize},
	}
	for r := 0; r < replicas; r++ {
		m.ShardGroups = append(m.ShardGroups, rankRange(r*c.FSDPSize, c.FSDPSize))
	}
	for s := 0; s < c.FSDPSize; s++ {
		group := make([]int, 0, replicas)
		for r := 0; r < replicas; r++ {
			group = append(group, r*c.FSDPSize+s)
		}
		m.ReplicateGroups = append(m.ReplicateGroups, group)
	}
	return m, nil
}

// SequenceParallelGroups splits worldSize ranks into consecutive Ulysses
// groups of ulysses_sequence_parallel_size ranks each.
func (c FSDPActorConfig) SequenceParallelGroups(worldSize int) ([][]int, error) {
	sp := c.UlyssesSequenceParallelSize
	if sp < 1 {
		return nil, fmt.Errorf("%w: ulysses_sequence_parallel_size must be >= 1, got %d", ErrSchema, sp)
	}
	if worldSize < 1 {
		return nil, fmt.Errorf("world size must be >= 1, got %d", worldSize)
	}
	if worldSize%sp != 0 {
		return nil, fmt.Errorf("world size %d is not divisible by ulysses_sequence_parallel_size %d", worldSize, sp)
	}
	groups := make([][]int, 0, worldSize/sp)
	for start := 0; start < worldSize; start += sp {
		groups = append(groups, rankRange(start, sp))
	}
	return groups, nil
}

func rankRange(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}
