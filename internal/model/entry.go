package model

// Tier is one of the five ordered evidence-quality levels (TEL-5)
type Tier string

const (
	TierGold   Tier = "gold"   // Strong, replicated evidence
	TierSilver Tier = "silver" // Solid evidence, minor gaps
	TierBronze Tier = "bronze" // Suggestive evidence
	TierRed    Tier = "red"    // Weak or conflicting evidence
	TierBlack  Tier = "black"  // Unsafe, implausible, or untrusted
)

// TierOrder returns all tiers from highest evidence to lowest/unsafe
func TierOrder() []Tier {
	return []Tier{TierGold, TierSilver, TierBronze, TierRed, TierBlack}
}

// Valid reports whether t is one of the five known tiers
func (t Tier) Valid() bool {
	switch t {
	case TierGold, TierSilver, TierBronze, TierRed, TierBlack:
		return true
	}
	return false
}

// Label returns the coarse PASS/AMBER/FAIL label for the tier
func (t Tier) Label() Label {
	switch t {
	case TierGold, TierSilver:
		return LabelPass
	case TierBronze, TierRed:
		return LabelAmber
	default:
		return LabelFail
	}
}

// Label is the coarse outcome derived from a tier
type Label string

const (
	LabelPass  Label = "PASS"
	LabelAmber Label = "AMBER"
	LabelFail  Label = "FAIL"
)

// GateOutcome is the result of a binary gate (phi, r, k, l)
type GateOutcome string

const (
	GatePass GateOutcome = "PASS"
	GateFail GateOutcome = "FAIL"
)

// JournalMaskSentinel is the journal-trust outcome meaning "source untrusted".
// An entry carrying it must be tiered black regardless of other scores.
const JournalMaskSentinel = "BLACK"

// JournalTrust is the outcome of the J gate: either a continuous score
// in [0,1] or the masking sentinel. Absence is represented by a nil
// *JournalTrust, never by a zero score.
type JournalTrust struct {
	Masked bool    `json:"masked"`          // True when the sentinel was recorded
	Score  float64 `json:"score,omitempty"` // Valid only when Masked is false
}

// GateResults holds the per-gate outcomes recorded for one entry
type GateResults struct {
	Phi GateOutcome   `json:"phi"`         // Natural plausibility
	R   GateOutcome   `json:"r"`           // Replication
	J   *JournalTrust `json:"j,omitempty"` // Journal trust score or mask
	K   GateOutcome   `json:"k"`           // Safety
	L   GateOutcome   `json:"l"`           // Legal/labeling
}

// GateNames returns the five gate identifiers in reporting order
func GateNames() []string {
	return []string{"phi", "r", "j", "k", "l"}
}

// PolicyRefs is the per-entry policy reference block: which versions and
// snapshot the entry was evaluated under
type PolicyRefs struct {
	TEL5Version     string `json:"tel5_version"`
	MCVersion       string `json:"mc_version"`
	JournalSnapshot string `json:"journal_snapshot"`
}

// Simulation holds the Monte Carlo block from simulation.json. All value
// fields are pointers so "not reported" stays distinct from zero.
type Simulation struct {
	Seed           *int64   `json:"seed,omitempty"`
	NDraws         *int     `json:"n_draws,omitempty"`
	PEffectGtDelta *float64 `json:"p_effect_gt_delta,omitempty"`
	MuHat          *float64 `json:"mu_hat,omitempty"`
	MuCI95Lower    *float64 `json:"mu_ci95_lower,omitempty"`
	MuCI95Upper    *float64 `json:"mu_ci95_upper,omitempty"`
	I2             *float64 `json:"i2,omitempty"`
	Tau2           *float64 `json:"tau2,omitempty"`
}

// Citations holds study metadata extracted from citations.json
type Citations struct {
	NStudies int      `json:"n_studies"`
	DOIs     []string `json:"dois,omitempty"`
	Years    []int    `json:"years,omitempty"`
}

// Record is one fully parsed entry. Raw document maps are kept alongside
// the typed fields so the schema validator can check declared shapes
// without re-reading from disk.
type Record struct {
	ID               string
	Path             string // Entry directory, relative to the scan root
	SchemaVersion    string
	Tier             Tier
	Label            Label
	Gates            GateResults
	Fingerprint      string // Declared policy fingerprint (sha256:...)
	PolicyRefs       PolicyRefs
	InterventionType string // Schema v2 only

	Simulation *Simulation // nil when simulation.json missing/malformed
	Citations  *Citations  // nil when citations.json missing/malformed

	RawEntry      map[string]any
	RawSimulation map[string]any
	RawCitations  map[string]any
}

// Row flattens the record into the canonical index shape. The raw maps
// are dropped; optional blocks stay pointer-valued.
func (r *Record) Row() Row {
	return Row{
		ID:               r.ID,
		Path:             r.Path,
		SchemaVersion:    r.SchemaVersion,
		Tier:             r.Tier,
		Label:            r.Label,
		Gates:            r.Gates,
		Fingerprint:      r.Fingerprint,
		PolicyRefs:       r.PolicyRefs,
		InterventionType: r.InterventionType,
		Simulation:       r.Simulation,
		Citations:        r.Citations,
	}
}

// Row is one row of the canonical index: flat, serializable, immutable
// once the index is built
type Row struct {
	ID               string      `json:"id"`
	Path             string      `json:"path"`
	SchemaVersion    string      `json:"schema_version"`
	Tier             Tier        `json:"tier"`
	Label            Label       `json:"label"`
	Gates            GateResults `json:"gates"`
	Fingerprint      string      `json:"policy_fingerprint"`
	PolicyRefs       PolicyRefs  `json:"policy_refs"`
	InterventionType string      `json:"intervention_type,omitempty"`
	Simulation       *Simulation `json:"simulation,omitempty"`
	Citations        *Citations  `json:"citations,omitempty"`
}
