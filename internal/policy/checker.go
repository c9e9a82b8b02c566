package policy

import (
	"fmt"
	"sort"

	"github.com/tervyx/analysis/internal/model"
)

// Group is one set of records sharing a declared policy fingerprint
type Group struct {
	Fingerprint string   `json:"fingerprint"`
	EntryIDs    []string `json:"entry_ids"`
	Anchored    bool     `json:"anchored"` // Reproducible from a known policy state
	Primary     bool     `json:"primary"`  // Largest observed group
}

// Size returns the number of records in the group
func (g *Group) Size() int { return len(g.EntryIDs) }

// Result is the outcome of the anchor check over one run's records
type Result struct {
	Primary   string          `json:"primary_fingerprint"`
	Groups    []Group         `json:"fingerprint_groups"`
	Anomalies []model.Anomaly `json:"anomalies"`
}

// Checker verifies record provenance against a known policy set
type Checker struct {
	set *Set
}

// NewChecker creates a checker bound to a policy set
func NewChecker(set *Set) *Checker {
	return &Checker{set: set}
}

// Check groups records by declared fingerprint and verifies each record's
// provenance. Multiple fingerprints in one run are not fatal: the
// majority group is primary and each minority group gets one anomaly,
// which keeps the breakdown clean when entries span a mid-run policy
// update. A fingerprint that no known policy state reproduces is a hard
// anomaly for every record carrying it. Records are never dropped here.
func (c *Checker) Check(records []*model.Record) Result {
	byFingerprint := make(map[string][]string)
	for _, rec := range records {
		byFingerprint[rec.Fingerprint] = append(byFingerprint[rec.Fingerprint], rec.ID)
	}

	fps := make([]string, 0, len(byFingerprint))
	for fp := range byFingerprint {
		fps = append(fps, fp)
	}
	// Largest group first; ties break on fingerprint for determinism
	sort.Slice(fps, func(i, j int) bool {
		a, b := byFingerprint[fps[i]], byFingerprint[fps[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return fps[i] < fps[j]
	})

	result := Result{}
	var anomalies []model.Anomaly

	for rank, fp := range fps {
		ids := byFingerprint[fp]
		sort.Strings(ids)
		group := Group{
			Fingerprint: fp,
			EntryIDs:    ids,
			Anchored:    c.set.KnownFingerprint(fp),
			Primary:     rank == 0,
		}
		result.Groups = append(result.Groups, group)

		if rank == 0 {
			result.Primary = fp
		} else {
			anomalies = append(anomalies, model.Anomaly{
				Category: model.AnomalyPolicy,
				Detail: fmt.Sprintf("minority fingerprint group %s: %d of %d entries",
					shorten(fp), len(ids), len(records)),
			})
		}

		if !group.Anchored {
			for _, id := range ids {
				anomalies = append(anomalies, model.Anomaly{
					EntryID:  id,
					Category: model.AnomalyPolicy,
					Detail: fmt.Sprintf("declared fingerprint %s not reproducible from any known policy state",
						shorten(fp)),
				})
			}
		}
	}

	for _, rec := range records {
		if rec.PolicyRefs.JournalSnapshot != "" && !c.set.SnapshotAvailable(rec.PolicyRefs.JournalSnapshot) {
			anomalies = append(anomalies, model.Anomaly{
				EntryID:  rec.ID,
				Category: model.AnomalyPolicy,
				Detail:   fmt.Sprintf("referenced journal-trust snapshot %q not among available snapshots", rec.PolicyRefs.JournalSnapshot),
			})
		}
	}

	model.SortAnomalies(anomalies)
	result.Anomalies = anomalies
	return result
}

func shorten(fp string) string {
	if len(fp) > 23 {
		return fp[:23] + "..."
	}
	return fp
}
