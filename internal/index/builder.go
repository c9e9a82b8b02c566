// Package index folds validated records into the canonical row-per-entry
// table. The builder is the single writer during a run; the resulting
// Index is immutable and consumed read-only by the metrics aggregator.
package index

import (
	"fmt"
	"sort"

	"github.com/tervyx/analysis/internal/model"
)

// Index is the canonical table: one row per accepted entry
type Index struct {
	rows []model.Row
}

// Rows returns the rows sorted by entry ID. The slice is the index's
// backing storage; callers must not modify it.
func (ix *Index) Rows() []model.Row {
	return ix.rows
}

// Len returns the number of accepted entries
func (ix *Index) Len() int {
	return len(ix.rows)
}

// Builder accumulates rows with duplicate detection. Not safe for
// concurrent use: shard results must be merged by a single writer so
// duplicate detection stays correct.
type Builder struct {
	byID      map[string]model.Row
	anomalies []model.Anomaly

	failedShards []int
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{byID: make(map[string]model.Row)}
}

// Add inserts a row. On a duplicate entry ID the first occurrence wins
// and the duplicate is recorded as an anomaly: the same entry can
// legitimately appear under two snapshot paths during a transition, so
// this is a warning, not a fatal error.
func (b *Builder) Add(row model.Row) bool {
	if _, exists := b.byID[row.ID]; exists {
		b.anomalies = append(b.anomalies, model.Anomaly{
			EntryID:  row.ID,
			Category: model.AnomalyDuplicateID,
			Detail:   fmt.Sprintf("duplicate entry identifier; kept first occurrence, ignored %s", row.Path),
		})
		return false
	}
	b.byID[row.ID] = row
	return true
}

// MarkShardFailed records a catastrophic shard failure. The shard's
// entries are absent from the index, which is different from a shard
// that was legitimately empty; Partial reports the distinction.
func (b *Builder) MarkShardFailed(shardIndex int, err error) {
	b.failedShards = append(b.failedShards, shardIndex)
	b.anomalies = append(b.anomalies, model.Anomaly{
		Category: model.AnomalyParseFailure,
		Detail:   fmt.Sprintf("shard %d failed: %v", shardIndex, err),
	})
}

// Partial reports whether any shard failed
func (b *Builder) Partial() bool {
	return len(b.failedShards) > 0
}

// FailedShards lists the failed shard indices, sorted
func (b *Builder) FailedShards() []int {
	sorted := append([]int(nil), b.failedShards...)
	sort.Ints(sorted)
	return sorted
}

// Anomalies returns the duplicate and shard-failure anomalies recorded
// so far, sorted for deterministic reporting
func (b *Builder) Anomalies() []model.Anomaly {
	out := append([]model.Anomaly(nil), b.anomalies...)
	model.SortAnomalies(out)
	return out
}

// Build finalizes the index with rows sorted by entry ID
func (b *Builder) Build() *Index {
	rows := make([]model.Row, 0, len(b.byID))
	for _, row := range b.byID {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return &Index{rows: rows}
}
