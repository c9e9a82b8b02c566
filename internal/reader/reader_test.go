package reader

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tervyx/analysis/internal/cache"
	"github.com/tervyx/analysis/internal/model"
)

func entryDoc(id string) map[string]any {
	return map[string]any{
		"@context":       "https://schema.org",
		"@type":          "MedicalGuideline",
		"@id":            "tervyx:entry:" + id,
		"schema_version": "1",
		"tier":           "gold",
		"label":          "PASS",
		"gate_results": map[string]any{
			"phi": "PASS", "r": "PASS", "j": 0.91, "k": "PASS", "l": "PASS",
		},
		"policy_fingerprint": "sha256:feed",
		"policy_refs": map[string]any{
			"tel5_levels":   map[string]any{"version": "1.2.0"},
			"monte_carlo":   map[string]any{"version": "1.0.1-reml-grid"},
			"journal_trust": map[string]any{"snapshot_date": "2025-10-05"},
		},
	}
}

func simulationDoc() map[string]any {
	return map[string]any{
		"seed":              12345,
		"n_draws":           10000,
		"P_effect_gt_delta": 0.84,
		"mu_hat":            0.35,
		"mu_CI95":           []any{0.12, 0.58},
		"I2":                0.65,
		"tau2":              0.08,
	}
}

func citationsDoc() map[string]any {
	return map[string]any{
		"studies": []any{
			map[string]any{"study_id": "s1", "doi": "10.1000/a", "year": 2021},
			map[string]any{"study_id": "s2", "doi": "10.1000/b", "year": 2023},
			map[string]any{"study_id": "s3"},
		},
	}
}

func writeDoc(t *testing.T, dir, name string, doc any) {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func writeEntry(t *testing.T, root, rel string, docs map[string]any) {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, doc := range docs {
		writeDoc(t, dir, name, doc)
	}
}

func TestReadEntry_Complete(t *testing.T) {
	root := t.TempDir()
	rel := "supplements/magnesium/sleep-quality"
	writeEntry(t, root, rel, map[string]any{
		PrimaryDocument:    entryDoc(rel),
		SimulationDocument: simulationDoc(),
		CitationsDocument:  citationsDoc(),
	})

	r := New(root, nil)
	rec, failure := r.ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}

	if rec.ID != rel {
		t.Errorf("ID = %q, want %q", rec.ID, rel)
	}
	if rec.Tier != model.TierGold || rec.Label != model.LabelPass {
		t.Errorf("tier/label = %s/%s", rec.Tier, rec.Label)
	}
	if rec.Gates.J == nil || rec.Gates.J.Masked || rec.Gates.J.Score != 0.91 {
		t.Errorf("gate j = %+v", rec.Gates.J)
	}
	if rec.Simulation == nil || rec.Simulation.PEffectGtDelta == nil || *rec.Simulation.PEffectGtDelta != 0.84 {
		t.Errorf("simulation = %+v", rec.Simulation)
	}
	if rec.Simulation.MuCI95Lower == nil || *rec.Simulation.MuCI95Lower != 0.12 {
		t.Errorf("mu_CI95 lower = %+v", rec.Simulation.MuCI95Lower)
	}
	if rec.Citations == nil || rec.Citations.NStudies != 3 || len(rec.Citations.DOIs) != 2 {
		t.Errorf("citations = %+v", rec.Citations)
	}
	if rec.PolicyRefs.JournalSnapshot != "2025-10-05" {
		t.Errorf("policy refs = %+v", rec.PolicyRefs)
	}
}

func TestReadEntry_MaskedJournalTrust(t *testing.T) {
	root := t.TempDir()
	rel := "supplements/colloidal-silver/immunity"
	doc := entryDoc(rel)
	doc["tier"] = "black"
	doc["label"] = "FAIL"
	doc["gate_results"].(map[string]any)["j"] = "BLACK"
	writeEntry(t, root, rel, map[string]any{PrimaryDocument: doc})

	rec, failure := New(root, nil).ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if rec.Gates.J == nil || !rec.Gates.J.Masked {
		t.Errorf("expected masked journal trust, got %+v", rec.Gates.J)
	}
}

func TestReadEntry_PartialRecord(t *testing.T) {
	root := t.TempDir()
	rel := "herbs/valerian/sleep-onset"
	writeEntry(t, root, rel, map[string]any{PrimaryDocument: entryDoc(rel)})
	// Malformed citations must degrade, not fail the entry
	dir := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.WriteFile(filepath.Join(dir, CitationsDocument), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	rec, failure := New(root, nil).ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if rec.Simulation != nil {
		t.Error("missing simulation document should leave Simulation nil")
	}
	if rec.Citations != nil {
		t.Error("malformed citations document should leave Citations nil")
	}
}

func TestReadEntry_MalformedPrimary(t *testing.T) {
	root := t.TempDir()
	rel := "herbs/kava/anxiety"
	dir := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, PrimaryDocument), []byte("<html>"), 0644); err != nil {
		t.Fatal(err)
	}

	rec, failure := New(root, nil).ReadEntry(context.Background(), rel)
	if rec != nil {
		t.Error("malformed primary must not produce a record")
	}
	if failure == nil {
		t.Fatal("expected a parse failure")
	}
	anomaly := failure.Anomaly()
	if anomaly.Category != model.AnomalyParseFailure || anomaly.EntryID != rel {
		t.Errorf("anomaly = %+v", anomaly)
	}
}

func TestReadEntry_MissingPrimary(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	rec, failure := New(root, nil).ReadEntry(context.Background(), "empty")
	if rec != nil || failure == nil {
		t.Errorf("expected parse failure for missing primary, got rec=%v failure=%v", rec, failure)
	}
}

func TestReadEntry_CacheRoundTrip(t *testing.T) {
	root := t.TempDir()
	rel := "supplements/zinc/common-cold"
	writeEntry(t, root, rel, map[string]any{
		PrimaryDocument:    entryDoc(rel),
		SimulationDocument: simulationDoc(),
	})

	c := cache.NewMemoryCache(time.Minute, time.Minute)
	r := New(root, nil, WithCache(c, time.Minute))

	first, failure := r.ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("first read: %+v", failure)
	}
	second, failure := r.ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("second read: %+v", failure)
	}

	if second.ID != first.ID || second.Tier != first.Tier {
		t.Errorf("cached record differs: %+v vs %+v", second, first)
	}
	if second.Simulation == nil || *second.Simulation.PEffectGtDelta != *first.Simulation.PEffectGtDelta {
		t.Error("cached record lost simulation fields")
	}
}

func TestReadEntry_CacheInvalidatedBySecondaryEdit(t *testing.T) {
	root := t.TempDir()
	rel := "supplements/melatonin/jet-lag"
	writeEntry(t, root, rel, map[string]any{
		PrimaryDocument:    entryDoc(rel),
		SimulationDocument: simulationDoc(),
	})

	c := cache.NewMemoryCache(time.Minute, time.Minute)
	r := New(root, nil, WithCache(c, time.Minute))

	first, failure := r.ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("first read: %+v", failure)
	}
	if *first.Simulation.PEffectGtDelta != 0.84 {
		t.Fatalf("P_effect_gt_delta = %v", *first.Simulation.PEffectGtDelta)
	}

	// Editing only the simulation document must not serve the old record
	sim := simulationDoc()
	sim["P_effect_gt_delta"] = 0.11
	dir := filepath.Join(root, filepath.FromSlash(rel))
	writeDoc(t, dir, SimulationDocument, sim)
	bumpMtime(t, filepath.Join(dir, SimulationDocument))

	second, failure := r.ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("second read: %+v", failure)
	}
	if second.Simulation == nil || *second.Simulation.PEffectGtDelta != 0.11 {
		t.Errorf("stale record served after simulation edit: %+v", second.Simulation)
	}
}

func TestReadEntry_CacheInvalidatedBySecondaryRemoval(t *testing.T) {
	root := t.TempDir()
	rel := "supplements/iron/fatigue"
	writeEntry(t, root, rel, map[string]any{
		PrimaryDocument:    entryDoc(rel),
		SimulationDocument: simulationDoc(),
	})

	c := cache.NewMemoryCache(time.Minute, time.Minute)
	r := New(root, nil, WithCache(c, time.Minute))

	first, failure := r.ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("first read: %+v", failure)
	}
	if first.Simulation == nil {
		t.Fatal("expected simulation block on first read")
	}

	if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel), SimulationDocument)); err != nil {
		t.Fatal(err)
	}

	second, failure := r.ReadEntry(context.Background(), rel)
	if failure != nil {
		t.Fatalf("second read: %+v", failure)
	}
	if second.Simulation != nil {
		t.Errorf("record must degrade to partial after simulation removal, got %+v", second.Simulation)
	}
}

// bumpMtime pushes a file's mtime forward so an edit registers even on
// filesystems with coarse timestamp resolution
func bumpMtime(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"b/two/x", "a/one/y", "c/three/z"} {
		writeEntry(t, root, rel, map[string]any{PrimaryDocument: entryDoc(rel)})
	}
	// A directory without a primary document is not an entry
	if err := os.MkdirAll(filepath.Join(root, "d", "stray"), 0755); err != nil {
		t.Fatal(err)
	}

	dirs, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/one/y", "b/two/x", "c/three/z"}
	if len(dirs) != len(want) {
		t.Fatalf("dirs = %v", dirs)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %q, want %q", i, dirs[i], want[i])
		}
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestDiscover_EmptyTree(t *testing.T) {
	if _, err := Discover(t.TempDir()); err == nil {
		t.Error("expected error for tree with no entries")
	}
}
