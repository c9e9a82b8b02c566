package model

// TierCount is one row of the tier distribution
type TierCount struct {
	Tier       Tier    `json:"tier"`
	Label      Label   `json:"label"`
	Count      int     `json:"count"`
	Proportion float64 `json:"proportion"`
}

// GateStat is the pass/fail breakdown for one binary gate
type GateStat struct {
	Gate      string  `json:"gate"`
	PassCount int     `json:"pass_count"`
	FailCount int     `json:"fail_count"`
	FailRate  float64 `json:"fail_rate"`
}

// JournalBucket is one histogram bucket over numeric journal-trust
// scores. Proportion is relative to all accepted entries, not just the
// scored ones, so masked/unscored entries read as missing histogram
// mass.
type JournalBucket struct {
	Range      string  `json:"range"` // e.g. "0.25-0.5"
	Count      int     `json:"count"`
	Proportion float64 `json:"proportion"`
}

// Percentile is one point of the P(effect > delta) distribution
type Percentile struct {
	Percentile string  `json:"percentile"` // "p50"
	Value      float64 `json:"value"`
}

// LabelSummary counts entries per coarse label
type LabelSummary struct {
	Pass  int `json:"pass"`
	Amber int `json:"amber"`
	Fail  int `json:"fail"`
}

// Metrics is the flat, serializable aggregate over the canonical index.
// The aggregator only reads the index; tiers and gates are never
// reclassified here.
type Metrics struct {
	TotalEntries int `json:"total_entries"`

	Tiers  []TierCount  `json:"tiers"`
	Labels LabelSummary `json:"labels"`

	Gates []GateStat `json:"gates"`

	JournalBuckets     []JournalBucket `json:"journal_buckets"`
	JournalMaskedCount int             `json:"journal_masked_count"`
	JournalScoredCount int             `json:"journal_scored_count"`

	MonotoneViolations []Anomaly `json:"monotone_violations"`
	MaskingViolations  []Anomaly `json:"masking_violations"`

	PEffectPercentiles []Percentile `json:"p_effect_percentiles"`
	PEffectCount       int          `json:"p_effect_count"`
}
