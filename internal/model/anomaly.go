package model

import "sort"

// AnomalyCategory classifies a reportable problem found during a run
type AnomalyCategory string

const (
	AnomalyParseFailure    AnomalyCategory = "parse_failure"       // Primary document unreadable/malformed
	AnomalySchemaViolation AnomalyCategory = "schema_violation"    // Blocking or advisory descriptor mismatch
	AnomalyPolicy          AnomalyCategory = "policy_anomaly"      // Fingerprint or snapshot provenance problem
	AnomalyDuplicateID     AnomalyCategory = "duplicate_id"        // Same entry ID seen more than once
	AnomalyInvariant       AnomalyCategory = "invariant_violation" // Monotone/masking rule broken upstream
)

// Anomaly is one reportable problem, attributed to an entry where possible.
// Anomalies never mutate the entry they describe.
type Anomaly struct {
	EntryID  string          `json:"entry_id,omitempty"`
	Category AnomalyCategory `json:"category"`
	Detail   string          `json:"detail"`
}

// SortAnomalies orders anomalies by entry ID, then category, then detail,
// for deterministic reporting across runs
func SortAnomalies(anomalies []Anomaly) {
	sort.Slice(anomalies, func(i, j int) bool {
		a, b := anomalies[i], anomalies[j]
		if a.EntryID != b.EntryID {
			return a.EntryID < b.EntryID
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Detail < b.Detail
	})
}
