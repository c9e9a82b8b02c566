// Package shard partitions the entry set into deterministic,
// non-overlapping subsets so large corpora can be ingested with bounded
// memory: only one shard's records are held at a time.
package shard

import (
	"fmt"
	"sort"
)

// Plan is one shard's assignment: a subset of the entry identifiers
// selected by (Index, Count)
type Plan struct {
	Index int
	Count int
	IDs   []string // Sorted subset assigned to this shard
	Total int      // Size of the full entry set
}

// New assigns entry identifiers to a shard. Assignment is a pure function
// of the sorted identifier position and the shard count, so discovery
// order never changes the result. The union over all indices in
// [0, count) reproduces the full set exactly once.
func New(ids []string, index, count int) (*Plan, error) {
	if count < 1 {
		return nil, fmt.Errorf("shard count must be >= 1, got %d", count)
	}
	if index < 0 || index >= count {
		return nil, fmt.Errorf("shard index must be in [0, %d), got %d", count, index)
	}

	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	var subset []string
	for i, id := range sorted {
		if i%count == index {
			subset = append(subset, id)
		}
	}

	return &Plan{
		Index: index,
		Count: count,
		IDs:   subset,
		Total: len(sorted),
	}, nil
}

// All returns one plan per shard index, covering the full entry set
func All(ids []string, count int) ([]*Plan, error) {
	plans := make([]*Plan, 0, count)
	for i := 0; i < count; i++ {
		p, err := New(ids, i, count)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}
