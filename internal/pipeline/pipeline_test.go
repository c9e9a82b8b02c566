package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tervyx/analysis/internal/model"
	"github.com/tervyx/analysis/internal/policy"
)

const testPolicyYAML = `tel5_levels:
  version: "1.2.0"
  thresholds:
    gold: 0.80
    silver: 0.60
    bronze: 0.40
    red: 0.20
monte_carlo:
  version: "1.0.1-reml-grid"
  n_draws: 10000
journal_trust:
  snapshot_date: "2025-10-05"
  sources:
    - bealls_list
    - retraction_watch
`

// fixture is a synthetic corpus rooted in a temp dir
type fixture struct {
	t           *testing.T
	dir         string
	fingerprint string
	cfg         *model.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	policyPath := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(policyPath, []byte(testPolicyYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := policy.Load(policyPath)
	if err != nil {
		t.Fatal(err)
	}

	snapshots := filepath.Join(dir, "snapshots")
	if err := os.Mkdir(snapshots, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(snapshots, "2025-10-05.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	entries := filepath.Join(dir, "entries")
	if err := os.Mkdir(entries, 0755); err != nil {
		t.Fatal(err)
	}

	modelCfg := model.DefaultConfig()
	modelCfg.Root = entries
	modelCfg.OutDir = filepath.Join(dir, "out")
	modelCfg.Policy.Path = policyPath
	modelCfg.Policy.SnapshotsDir = snapshots
	modelCfg.Cache.Enabled = false
	modelCfg.Workers.ShardWorkers = 3

	return &fixture{t: t, dir: dir, fingerprint: cfg.Fingerprint(), cfg: modelCfg}
}

type entryCase struct {
	rel     string
	id      string // defaults to rel
	tier    model.Tier
	gateK   model.GateOutcome
	gateJ   any // float64, "BLACK", or nil to omit
	withSim bool
	pEffect float64
}

func (f *fixture) addEntry(ec entryCase) {
	f.t.Helper()
	id := ec.id
	if id == "" {
		id = ec.rel
	}
	gateK := ec.gateK
	if gateK == "" {
		gateK = model.GatePass
	}
	gates := map[string]any{
		"phi": "PASS", "r": "PASS", "k": string(gateK), "l": "PASS",
	}
	if ec.gateJ != nil {
		gates["j"] = ec.gateJ
	} else {
		gates["j"] = 0.7
	}

	doc := map[string]any{
		"@context":           "https://schema.org",
		"@type":              "MedicalGuideline",
		"@id":                "tervyx:entry:" + id,
		"schema_version":     "1",
		"tier":               string(ec.tier),
		"label":              string(ec.tier.Label()),
		"gate_results":       gates,
		"policy_fingerprint": f.fingerprint,
		"policy_refs": map[string]any{
			"tel5_levels":   map[string]any{"version": "1.2.0"},
			"monte_carlo":   map[string]any{"version": "1.0.1-reml-grid"},
			"journal_trust": map[string]any{"snapshot_date": "2025-10-05"},
		},
	}

	entryDir := filepath.Join(f.cfg.Root, filepath.FromSlash(ec.rel))
	if err := os.MkdirAll(entryDir, 0755); err != nil {
		f.t.Fatal(err)
	}
	f.writeJSON(filepath.Join(entryDir, "entry.jsonld"), doc)

	if ec.withSim {
		f.writeJSON(filepath.Join(entryDir, "simulation.json"), map[string]any{
			"seed":              1,
			"n_draws":           10000,
			"P_effect_gt_delta": ec.pEffect,
		})
	}
}

func (f *fixture) writeJSON(path string, doc any) {
	f.t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) run() *RunReport {
	f.t.Helper()
	p, err := New(f.cfg, nil)
	if err != nil {
		f.t.Fatal(err)
	}
	report, err := p.Run(context.Background())
	if err != nil {
		f.t.Fatal(err)
	}
	return report
}

func TestRun_CleanCorpus(t *testing.T) {
	f := newFixture(t)
	f.addEntry(entryCase{rel: "supplements/magnesium/sleep", tier: model.TierGold, withSim: true, pEffect: 0.85})
	f.addEntry(entryCase{rel: "supplements/zinc/cold", tier: model.TierSilver, withSim: true, pEffect: 0.65})
	f.addEntry(entryCase{rel: "herbs/valerian/sleep", tier: model.TierBronze, withSim: true, pEffect: 0.45})

	report := f.run()

	if report.Accepted != 3 {
		t.Errorf("accepted = %d, want 3", report.Accepted)
	}
	if report.Partial {
		t.Error("clean run must not be partial")
	}
	if len(report.Anomalies) != 0 {
		t.Errorf("unexpected anomalies: %v", report.Anomalies)
	}
	if report.Anchors.Primary != f.fingerprint {
		t.Errorf("primary fingerprint = %s", report.Anchors.Primary)
	}
	if report.Metrics.Labels.Pass != 2 || report.Metrics.Labels.Amber != 1 {
		t.Errorf("labels = %+v", report.Metrics.Labels)
	}
	if report.RunID == "" {
		t.Error("run ID missing")
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addEntry(entryCase{rel: "a/one/x", tier: model.TierGold, withSim: true, pEffect: 0.9})
	f.addEntry(entryCase{rel: "b/two/y", tier: model.TierBlack, gateK: model.GateFail})
	f.addEntry(entryCase{rel: "c/three/z", tier: model.TierSilver})

	first := f.run()
	second := f.run()

	if diff := cmp.Diff(first.Index.Rows(), second.Index.Rows()); diff != "" {
		t.Errorf("index rows differ between identical runs:\n%s", diff)
	}
	if diff := cmp.Diff(first.Anomalies, second.Anomalies); diff != "" {
		t.Errorf("anomaly reports differ between identical runs:\n%s", diff)
	}
}

func TestRun_DuplicateIdentifier(t *testing.T) {
	f := newFixture(t)
	// Same entry under two snapshot paths, different content
	f.addEntry(entryCase{rel: "old/path/E1", id: "E1", tier: model.TierGold})
	f.addEntry(entryCase{rel: "new/path/E1", id: "E1", tier: model.TierRed})
	f.addEntry(entryCase{rel: "other/ok/E2", id: "E2", tier: model.TierSilver})

	report := f.run()

	if report.Accepted != 2 {
		t.Errorf("accepted = %d, want 2 (one row per unique ID)", report.Accepted)
	}

	dupes := 0
	for _, a := range report.Anomalies {
		if a.Category == model.AnomalyDuplicateID && a.EntryID == "E1" {
			dupes++
		}
	}
	if dupes != 1 {
		t.Errorf("expected exactly 1 duplicate anomaly for E1, got %d", dupes)
	}

	// First occurrence in merge order (sorted paths: new/ before old/) wins
	for _, row := range report.Index.Rows() {
		if row.ID == "E1" && row.Tier != model.TierRed {
			t.Errorf("kept row tier = %s, want the first occurrence (red)", row.Tier)
		}
	}
}

func TestRun_MalformedPrimaryIsLocal(t *testing.T) {
	f := newFixture(t)
	f.addEntry(entryCase{rel: "good/entry/a", tier: model.TierGold})

	brokenDir := filepath.Join(f.cfg.Root, "bad", "entry", "b")
	if err := os.MkdirAll(brokenDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(brokenDir, "entry.jsonld"), []byte("{truncated"), 0644); err != nil {
		t.Fatal(err)
	}

	report := f.run()

	if report.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", report.Accepted)
	}
	failures := 0
	for _, a := range report.Anomalies {
		if a.Category == model.AnomalyParseFailure {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 parse failure anomaly, got %d: %v", failures, report.Anomalies)
	}
}

func TestRun_BlockingViolationExcludes(t *testing.T) {
	f := newFixture(t)
	f.addEntry(entryCase{rel: "ok/entry/a", tier: model.TierSilver})
	f.addEntry(entryCase{rel: "bad/tier/b", tier: model.Tier("platinum")})

	report := f.run()

	if report.Accepted != 1 {
		t.Errorf("accepted = %d, want 1 (blocked entry excluded)", report.Accepted)
	}
	blocked := false
	for _, a := range report.Anomalies {
		if a.Category == model.AnomalySchemaViolation && a.EntryID == "bad/tier/b" {
			blocked = true
		}
	}
	if !blocked {
		t.Error("expected schema violation anomaly for blocked entry")
	}
}

func TestRun_MonotoneViolationSurfaces(t *testing.T) {
	f := newFixture(t)
	f.addEntry(entryCase{rel: "bug/labeled/gold", tier: model.TierGold, gateK: model.GateFail})

	report := f.run()

	if report.Accepted != 1 {
		t.Fatalf("entry must stay in the index, accepted = %d", report.Accepted)
	}
	if len(report.Metrics.MonotoneViolations) != 1 {
		t.Fatalf("expected 1 monotone violation, got %d", len(report.Metrics.MonotoneViolations))
	}
	if report.Index.Rows()[0].Tier != model.TierGold {
		t.Error("pipeline must never reclassify the tier")
	}

	found := false
	for _, a := range report.Anomalies {
		if a.Category == model.AnomalyInvariant {
			found = true
		}
	}
	if !found {
		t.Error("invariant violation missing from merged anomaly report")
	}
}

func TestRun_MaskedEntryExcludedFromBuckets(t *testing.T) {
	f := newFixture(t)
	f.addEntry(entryCase{rel: "masked/black/a", tier: model.TierBlack, gateJ: "BLACK"})
	f.addEntry(entryCase{rel: "scored/gold/b", tier: model.TierGold, gateJ: 0.9})

	report := f.run()

	if report.Metrics.JournalMaskedCount != 1 || report.Metrics.JournalScoredCount != 1 {
		t.Errorf("masked=%d scored=%d",
			report.Metrics.JournalMaskedCount, report.Metrics.JournalScoredCount)
	}
	if len(report.Metrics.MaskingViolations) != 0 {
		t.Errorf("black-tier masked entry is not a violation: %v", report.Metrics.MaskingViolations)
	}
}

func TestRun_PartialRecordInTierNotPEffect(t *testing.T) {
	f := newFixture(t)
	f.addEntry(entryCase{rel: "partial/no-sim/a", tier: model.TierSilver})
	f.addEntry(entryCase{rel: "full/with-sim/b", tier: model.TierGold, withSim: true, pEffect: 0.9})

	report := f.run()

	if report.Accepted != 2 {
		t.Fatalf("accepted = %d", report.Accepted)
	}
	if report.Metrics.PEffectCount != 1 {
		t.Errorf("p_effect count = %d, want 1 (partial record excluded)", report.Metrics.PEffectCount)
	}
	silver := report.Metrics.Tiers[1]
	if silver.Tier != model.TierSilver || silver.Count != 1 {
		t.Errorf("partial record missing from tier distribution: %+v", silver)
	}
}

func TestRun_ShardSelectionPartitions(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.addEntry(entryCase{rel: fmt.Sprintf("set/item-%d/x", i), tier: model.TierBronze})
	}

	seen := make(map[string]int)
	for index := 0; index < 2; index++ {
		f.cfg.Shard.Index = index
		f.cfg.Shard.Count = 2
		report := f.run()
		for _, row := range report.Index.Rows() {
			seen[row.ID]++
		}
		// Discovery spans the whole root regardless of the shard selection
		if report.Discovered != 5 {
			t.Errorf("shard %d: discovered = %d, want 5", index, report.Discovered)
		}
		if report.Selected != report.Accepted || report.Selected >= 5 {
			t.Errorf("shard %d: selected = %d, accepted = %d", index, report.Selected, report.Accepted)
		}
	}

	if len(seen) != 5 {
		t.Errorf("shard union covers %d entries, want 5", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("entry %s processed by %d shards", id, n)
		}
	}
}

func TestRun_WriteArtifacts(t *testing.T) {
	f := newFixture(t)
	f.addEntry(entryCase{rel: "art/entry/a", tier: model.TierGold, withSim: true, pEffect: 0.9})

	report := f.run()

	w := NewWriter(f.cfg.OutDir, "json", nil)
	if err := w.WriteAll(report); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{IndexJSONArtifact, MetricsArtifact, AnomaliesArtifact} {
		if _, err := os.Stat(filepath.Join(f.cfg.OutDir, name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}
}

func TestNew_MissingPolicyIsFatal(t *testing.T) {
	f := newFixture(t)
	f.cfg.Policy.Path = filepath.Join(f.dir, "absent.yaml")

	if _, err := New(f.cfg, nil); err == nil {
		t.Error("missing policy config must be fatal")
	}
}

func TestRun_MissingRootIsFatal(t *testing.T) {
	f := newFixture(t)
	f.cfg.Root = filepath.Join(f.dir, "no-entries")

	p, err := New(f.cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background()); err == nil {
		t.Error("missing entries root must be fatal")
	}
}
