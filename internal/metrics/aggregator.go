// Package metrics computes aggregate statistics over the canonical
// index. This is read-only reporting: tier and gate labels were decided
// upstream, and a violated invariant is surfaced as an anomaly, never
// repaired here.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/tervyx/analysis/internal/model"
)

var journalBucketBounds = []struct {
	label string
	lo    float64
	hi    float64
}{
	{"0-0.25", 0, 0.25},
	{"0.25-0.5", 0.25, 0.5},
	{"0.5-0.75", 0.5, 0.75},
	{"0.75-1.0", 0.75, 1.0},
}

var percentilePoints = []int{0, 10, 25, 50, 75, 90, 100}

// Aggregator computes metrics over index rows
type Aggregator struct{}

// NewAggregator creates an aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate computes the full metrics object over the accepted rows
func (a *Aggregator) Aggregate(rows []model.Row) model.Metrics {
	m := model.Metrics{TotalEntries: len(rows)}

	m.Tiers = a.tierDistribution(rows)
	m.Labels = a.labelSummary(rows)
	m.Gates = a.gateStats(rows)
	m.MonotoneViolations = a.monotoneViolations(rows)
	m.MaskingViolations = a.maskingViolations(rows)
	m.JournalBuckets, m.JournalScoredCount, m.JournalMaskedCount = a.journalBuckets(rows)
	m.PEffectPercentiles, m.PEffectCount = a.pEffectPercentiles(rows)

	return m
}

func (a *Aggregator) tierDistribution(rows []model.Row) []model.TierCount {
	counts := make(map[model.Tier]int)
	for _, row := range rows {
		counts[row.Tier]++
	}

	dist := make([]model.TierCount, 0, 5)
	for _, tier := range model.TierOrder() {
		dist = append(dist, model.TierCount{
			Tier:       tier,
			Label:      tier.Label(),
			Count:      counts[tier],
			Proportion: proportion(counts[tier], len(rows)),
		})
	}
	return dist
}

func (a *Aggregator) labelSummary(rows []model.Row) model.LabelSummary {
	var s model.LabelSummary
	for _, row := range rows {
		switch row.Tier.Label() {
		case model.LabelPass:
			s.Pass++
		case model.LabelAmber:
			s.Amber++
		default:
			s.Fail++
		}
	}
	return s
}

func (a *Aggregator) gateStats(rows []model.Row) []model.GateStat {
	stats := make([]model.GateStat, 0, 5)
	for _, gate := range model.GateNames() {
		stat := model.GateStat{Gate: gate}
		for _, row := range rows {
			switch gate {
			case "j":
				// The masking sentinel counts as a failure; a numeric
				// score counts as a pass regardless of magnitude
				if row.Gates.J != nil {
					if row.Gates.J.Masked {
						stat.FailCount++
					} else {
						stat.PassCount++
					}
				}
			default:
				switch binaryGate(row.Gates, gate) {
				case model.GatePass:
					stat.PassCount++
				case model.GateFail:
					stat.FailCount++
				}
			}
		}
		stat.FailRate = proportion(stat.FailCount, len(rows))
		stats = append(stats, stat)
	}
	return stats
}

// monotoneViolations flags entries where a failed natural-plausibility
// or safety gate did not force the black tier. This indicates an
// upstream labeling bug; the entry's tier is reported as-is.
func (a *Aggregator) monotoneViolations(rows []model.Row) []model.Anomaly {
	var anomalies []model.Anomaly
	for _, row := range rows {
		if row.Tier == model.TierBlack {
			continue
		}
		for _, gate := range []struct {
			name    string
			outcome model.GateOutcome
		}{
			{"phi", row.Gates.Phi},
			{"k", row.Gates.K},
		} {
			if gate.outcome == model.GateFail {
				anomalies = append(anomalies, model.Anomaly{
					EntryID:  row.ID,
					Category: model.AnomalyInvariant,
					Detail:   fmt.Sprintf("gate %s is FAIL but tier is %s, not black", gate.name, row.Tier),
				})
			}
		}
	}
	model.SortAnomalies(anomalies)
	return anomalies
}

// maskingViolations flags entries carrying the journal-trust masking
// sentinel without the black tier
func (a *Aggregator) maskingViolations(rows []model.Row) []model.Anomaly {
	var anomalies []model.Anomaly
	for _, row := range rows {
		if row.Gates.J != nil && row.Gates.J.Masked && row.Tier != model.TierBlack {
			anomalies = append(anomalies, model.Anomaly{
				EntryID:  row.ID,
				Category: model.AnomalyInvariant,
				Detail:   fmt.Sprintf("journal-trust mask recorded but tier is %s, not black", row.Tier),
			})
		}
	}
	model.SortAnomalies(anomalies)
	return anomalies
}

// journalBuckets bins numeric journal-trust scores. Masked entries are
// counted separately; entries with no journal-trust outcome at all are
// excluded entirely. Bucket proportions are over all accepted entries,
// so masked and unscored entries show up as mass missing from the
// histogram rather than inflating the scored buckets.
func (a *Aggregator) journalBuckets(rows []model.Row) ([]model.JournalBucket, int, int) {
	var scores []float64
	masked := 0
	for _, row := range rows {
		if row.Gates.J == nil {
			continue
		}
		if row.Gates.J.Masked {
			masked++
			continue
		}
		scores = append(scores, row.Gates.J.Score)
	}

	buckets := make([]model.JournalBucket, 0, len(journalBucketBounds))
	for i, b := range journalBucketBounds {
		count := 0
		for _, s := range scores {
			if i == 0 {
				if s >= b.lo && s <= b.hi {
					count++
				}
			} else if s > b.lo && s <= b.hi {
				count++
			}
		}
		buckets = append(buckets, model.JournalBucket{
			Range:      b.label,
			Count:      count,
			Proportion: proportion(count, len(rows)),
		})
	}
	return buckets, len(scores), masked
}

// pEffectPercentiles summarizes the P(effect > delta) distribution over
// entries that carry a simulation block
func (a *Aggregator) pEffectPercentiles(rows []model.Row) ([]model.Percentile, int) {
	var values []float64
	for _, row := range rows {
		if row.Simulation != nil && row.Simulation.PEffectGtDelta != nil {
			values = append(values, *row.Simulation.PEffectGtDelta)
		}
	}
	if len(values) == 0 {
		return nil, 0
	}
	sort.Float64s(values)

	percentiles := make([]model.Percentile, 0, len(percentilePoints))
	for _, p := range percentilePoints {
		percentiles = append(percentiles, model.Percentile{
			Percentile: fmt.Sprintf("p%d", p),
			Value:      percentile(values, float64(p)),
		})
	}
	return percentiles, len(values)
}

// percentile computes the p-th percentile over sorted values with
// linear interpolation between closest ranks
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func proportion(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

func binaryGate(g model.GateResults, name string) model.GateOutcome {
	switch name {
	case "phi":
		return g.Phi
	case "r":
		return g.R
	case "k":
		return g.K
	case "l":
		return g.L
	}
	return ""
}
