// Package policy loads the run-wide policy configuration, computes
// reproducible policy fingerprints, and checks that every ingested
// record is anchored to a known policy state.
package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tervyx/analysis/internal/model"
)

// Thresholds are the ordered probability cut points that map
// P(effect > delta) to tiers
type Thresholds struct {
	Gold   float64
	Silver float64
	Bronze float64
	Red    float64
}

// Config is one parsed policy.yaml. The raw map is retained because the
// fingerprint is computed over the exact configuration content, not the
// typed projection.
type Config struct {
	TEL5Version     string
	MCVersion       string
	JournalSnapshot string
	Tiers           Thresholds

	raw map[string]any
}

// Load reads and parses a policy.yaml. Failure here is fatal to the run:
// without a policy no record's provenance can be checked.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy config: %w", err)
	}
	return Parse(data)
}

// Parse parses policy.yaml content
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse policy config: %w", err)
	}

	cfg := &Config{raw: raw}
	if tel5, ok := raw["tel5_levels"].(map[string]any); ok {
		cfg.TEL5Version, _ = tel5["version"].(string)
		if th, ok := tel5["thresholds"].(map[string]any); ok {
			cfg.Tiers = Thresholds{
				Gold:   toFloat(th["gold"]),
				Silver: toFloat(th["silver"]),
				Bronze: toFloat(th["bronze"]),
				Red:    toFloat(th["red"]),
			}
		}
	}
	if mc, ok := raw["monte_carlo"].(map[string]any); ok {
		cfg.MCVersion, _ = mc["version"].(string)
	}
	if jt, ok := raw["journal_trust"].(map[string]any); ok {
		cfg.JournalSnapshot, _ = jt["snapshot_date"].(string)
	}

	if cfg.TEL5Version == "" {
		return nil, fmt.Errorf("policy config missing tel5_levels.version")
	}
	return cfg, nil
}

// Fingerprint computes the sha256 fingerprint over the canonical JSON
// serialization of the configuration. This must match the engine that
// stamped the entries, byte for byte.
func (c *Config) Fingerprint() string {
	canonical, err := canonicalJSON(c.raw)
	if err != nil {
		return ""
	}
	digest := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(digest[:])
}

// canonicalJSON serializes a value in the engine's canonical form:
// sorted keys, no whitespace, "&" "<" ">" unescaped, non-ASCII runes
// escaped as \uXXXX (surrogate pairs above the BMP). json.Marshal alone
// diverges on the last two points, which would change the digest for
// any config containing those characters.
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return escapeNonASCII(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func escapeNonASCII(data []byte) []byte {
	var out bytes.Buffer
	for _, r := range string(data) {
		switch {
		case r < 0x80:
			out.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&out, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&out, `\u%04x`, r)
		}
	}
	return out.Bytes()
}

// Refs returns the version/snapshot identifiers entries are expected to
// reference under this policy
func (c *Config) Refs() model.PolicyRefs {
	return model.PolicyRefs{
		TEL5Version:     c.TEL5Version,
		MCVersion:       c.MCVersion,
		JournalSnapshot: c.JournalSnapshot,
	}
}

// Set is the complete known policy state for a run: the current config,
// any archived prior configs, and the available journal-trust snapshots.
// Loaded once at run start and treated as immutable.
type Set struct {
	Current *Config

	fingerprints map[string]*Config
	snapshots    map[string]bool
}

// LoadSet loads the current policy, optional archived policies, and the
// snapshot directory listing
func LoadSet(path, archiveDir, snapshotsDir string) (*Set, error) {
	current, err := Load(path)
	if err != nil {
		return nil, err
	}

	set := &Set{
		Current:      current,
		fingerprints: map[string]*Config{current.Fingerprint(): current},
		snapshots:    make(map[string]bool),
	}

	if archiveDir != "" {
		entries, err := os.ReadDir(archiveDir)
		if err != nil {
			return nil, fmt.Errorf("read policy archive: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
				continue
			}
			archived, err := Load(filepath.Join(archiveDir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("archived policy %s: %w", e.Name(), err)
			}
			set.fingerprints[archived.Fingerprint()] = archived
		}
	}

	if snapshotsDir != "" {
		entries, err := os.ReadDir(snapshotsDir)
		if os.IsNotExist(err) {
			// A corpus without snapshot history is common; with no
			// snapshots known the availability check is skipped
			return set, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshots dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if ext := filepath.Ext(name); ext != "" {
				name = strings.TrimSuffix(name, ext)
			}
			set.snapshots[name] = true
		}
	}

	return set, nil
}

// KnownFingerprint reports whether a declared fingerprint can be
// reproduced from any known policy state
func (s *Set) KnownFingerprint(fp string) bool {
	_, ok := s.fingerprints[fp]
	return ok
}

// SnapshotAvailable reports whether a referenced snapshot date exists
// among the available snapshot files. With no snapshots dir configured
// the check is skipped.
func (s *Set) SnapshotAvailable(date string) bool {
	if len(s.snapshots) == 0 {
		return true
	}
	return s.snapshots[date]
}

// KnownFingerprints lists the reproducible fingerprints, sorted
func (s *Set) KnownFingerprints() []string {
	fps := make([]string, 0, len(s.fingerprints))
	for fp := range s.fingerprints {
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	return fps
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
