// Package reader parses one entry's documents into a typed record. Each
// entry directory holds up to three documents; a broken secondary
// document degrades the record to a partial state, a broken primary
// document yields a structured parse failure. Parse problems never
// escape this package as panics or run-level errors.
package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tervyx/analysis/internal/cache"
	"github.com/tervyx/analysis/internal/model"
	"github.com/tervyx/analysis/internal/worker"
)

// Document names within an entry directory
const (
	PrimaryDocument    = "entry.jsonld"
	SimulationDocument = "simulation.json"
	CitationsDocument  = "citations.json"
)

const entryIDPrefix = "tervyx:entry:"

// ParseFailure is a structured failure for an unusable entry: the entry
// is excluded from the index and surfaces in the anomaly report.
type ParseFailure struct {
	Path   string // Entry directory, relative to the scan root
	Reason string
}

// Anomaly converts the failure into a reportable anomaly
func (f *ParseFailure) Anomaly() model.Anomaly {
	return model.Anomaly{
		EntryID:  f.Path,
		Category: model.AnomalyParseFailure,
		Detail:   f.Reason,
	}
}

// Reader parses entry directories under a fixed root
type Reader struct {
	root     string
	throttle *worker.Throttle
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Option configures a Reader
type Option func(*Reader)

// WithThrottle bounds document reads per second
func WithThrottle(t *worker.Throttle) Option {
	return func(r *Reader) { r.throttle = t }
}

// WithCache enables the parse cache
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *Reader) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// New creates a reader rooted at the entries directory
func New(root string, logger *zap.Logger, opts ...Option) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{root: root, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadEntry parses one entry directory, given as a path relative to the
// root. Exactly one of the return values is non-nil.
func (r *Reader) ReadEntry(ctx context.Context, dir string) (*model.Record, *ParseFailure) {
	entryPath := filepath.Join(r.root, filepath.FromSlash(dir), PrimaryDocument)

	info, err := os.Stat(entryPath)
	if err != nil {
		return nil, &ParseFailure{Path: dir, Reason: fmt.Sprintf("primary document missing: %v", err)}
	}

	var cacheKey string
	if r.cache != nil {
		cacheKey = cache.EntryKey(dir, r.docStamps(dir, info))
		if rec, ok := r.cachedRecord(cacheKey); ok {
			return rec, nil
		}
	}

	rawEntry, err := r.loadJSON(ctx, entryPath)
	if err != nil {
		return nil, &ParseFailure{Path: dir, Reason: fmt.Sprintf("primary document malformed: %v", err)}
	}

	rec, err := recordFromRaw(dir, rawEntry)
	if err != nil {
		return nil, &ParseFailure{Path: dir, Reason: err.Error()}
	}

	// Secondary documents degrade to absence instead of failing the entry
	simPath := filepath.Join(r.root, filepath.FromSlash(dir), SimulationDocument)
	if rawSim, err := r.loadJSON(ctx, simPath); err != nil {
		r.logger.Debug("simulation document unavailable",
			zap.String("entry", dir), zap.Error(err))
	} else {
		rec.RawSimulation = rawSim
		rec.Simulation = simulationFromRaw(rawSim)
	}

	citPath := filepath.Join(r.root, filepath.FromSlash(dir), CitationsDocument)
	if rawCit, err := r.loadJSON(ctx, citPath); err != nil {
		r.logger.Debug("citations document unavailable",
			zap.String("entry", dir), zap.Error(err))
	} else {
		rec.RawCitations = rawCit
		rec.Citations = citationsFromRaw(rawCit)
	}

	if cacheKey != "" {
		r.storeRecord(cacheKey, rec)
	}
	return rec, nil
}

// docStamps stats every document the entry may carry. The cached record
// aggregates all three, so the key must change when a secondary document
// is edited, added, or removed, not only when the primary changes.
func (r *Reader) docStamps(dir string, primary os.FileInfo) []cache.DocStamp {
	stamps := []cache.DocStamp{{
		Name:    PrimaryDocument,
		ModTime: primary.ModTime(),
		Size:    primary.Size(),
	}}
	for _, name := range []string{SimulationDocument, CitationsDocument} {
		info, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(dir), name))
		if err != nil {
			stamps = append(stamps, cache.AbsentDoc(name))
			continue
		}
		stamps = append(stamps, cache.DocStamp{Name: name, ModTime: info.ModTime(), Size: info.Size()})
	}
	return stamps
}

func (r *Reader) loadJSON(ctx context.Context, path string) (map[string]any, error) {
	if err := r.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Reader) cachedRecord(key string) (*model.Record, bool) {
	data, found := r.cache.Get(key)
	if !found {
		return nil, false
	}
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = r.cache.Delete(key)
		return nil, false
	}
	return &rec, true
}

func (r *Reader) storeRecord(key string, rec *model.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.cache.Set(key, data, r.cacheTTL); err != nil {
		r.logger.Debug("parse cache write failed", zap.String("entry", rec.Path), zap.Error(err))
	}
}

// recordFromRaw extracts the typed fields from a parsed primary document
func recordFromRaw(dir string, raw map[string]any) (*model.Record, error) {
	id, _ := raw["@id"].(string)
	id = strings.TrimPrefix(id, entryIDPrefix)
	if id == "" {
		// The directory path still identifies the entry for reporting;
		// the schema validator flags the missing @id as blocking
		id = dir
	}

	rec := &model.Record{
		ID:       id,
		Path:     dir,
		RawEntry: raw,
	}

	rec.SchemaVersion, _ = raw["schema_version"].(string)
	if tier, ok := raw["tier"].(string); ok {
		rec.Tier = model.Tier(strings.ToLower(tier))
	}
	if label, ok := raw["label"].(string); ok {
		rec.Label = model.Label(strings.ToUpper(label))
	}
	rec.Fingerprint, _ = raw["policy_fingerprint"].(string)
	rec.InterventionType, _ = raw["intervention_type"].(string)

	if gates, ok := raw["gate_results"].(map[string]any); ok {
		rec.Gates = gatesFromRaw(gates)
	}

	if refs, ok := raw["policy_refs"].(map[string]any); ok {
		rec.PolicyRefs = model.PolicyRefs{
			TEL5Version:     nestedString(refs, "tel5_levels", "version"),
			MCVersion:       nestedString(refs, "monte_carlo", "version"),
			JournalSnapshot: nestedString(refs, "journal_trust", "snapshot_date"),
		}
	}

	return rec, nil
}

func gatesFromRaw(gates map[string]any) model.GateResults {
	out := model.GateResults{}
	if v, ok := gates["phi"].(string); ok {
		out.Phi = model.GateOutcome(v)
	}
	if v, ok := gates["r"].(string); ok {
		out.R = model.GateOutcome(v)
	}
	if v, ok := gates["k"].(string); ok {
		out.K = model.GateOutcome(v)
	}
	if v, ok := gates["l"].(string); ok {
		out.L = model.GateOutcome(v)
	}
	switch j := gates["j"].(type) {
	case string:
		if j == model.JournalMaskSentinel {
			out.J = &model.JournalTrust{Masked: true}
		}
	case float64:
		out.J = &model.JournalTrust{Score: j}
	}
	return out
}

func simulationFromRaw(raw map[string]any) *model.Simulation {
	sim := &model.Simulation{}
	if v, ok := raw["seed"].(float64); ok {
		seed := int64(v)
		sim.Seed = &seed
	}
	if v, ok := raw["n_draws"].(float64); ok {
		n := int(v)
		sim.NDraws = &n
	}
	sim.PEffectGtDelta = floatField(raw, "P_effect_gt_delta")
	sim.MuHat = floatField(raw, "mu_hat")
	if ci, ok := raw["mu_CI95"].([]any); ok && len(ci) == 2 {
		if lo, ok := ci[0].(float64); ok {
			sim.MuCI95Lower = &lo
		}
		if hi, ok := ci[1].(float64); ok {
			sim.MuCI95Upper = &hi
		}
	}
	sim.I2 = floatField(raw, "I2")
	sim.Tau2 = floatField(raw, "tau2")
	return sim
}

func citationsFromRaw(raw map[string]any) *model.Citations {
	cit := &model.Citations{}
	studies, ok := raw["studies"].([]any)
	if !ok {
		return cit
	}
	cit.NStudies = len(studies)
	for _, s := range studies {
		study, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if doi, ok := study["doi"].(string); ok && doi != "" {
			cit.DOIs = append(cit.DOIs, doi)
		}
		if year, ok := study["year"].(float64); ok {
			cit.Years = append(cit.Years, int(year))
		}
	}
	return cit
}

func floatField(raw map[string]any, key string) *float64 {
	if v, ok := raw[key].(float64); ok {
		return &v
	}
	return nil
}

func nestedString(raw map[string]any, outer, inner string) string {
	if m, ok := raw[outer].(map[string]any); ok {
		s, _ := m[inner].(string)
		return s
	}
	return ""
}
