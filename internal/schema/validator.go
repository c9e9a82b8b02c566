package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/tervyx/analysis/internal/model"
)

// Severity distinguishes violations that exclude an entry from the index
// from those that are merely reported
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

// Violation is one schema check failure with a machine-readable path
type Violation struct {
	Path     string   `json:"path"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: expected %s, got %s (%s)", v.Path, v.Expected, v.Actual, v.Severity)
}

// Blocking reports whether any violation in the list is blocking
func Blocking(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

// Validate checks a raw document against a descriptor. It never mutates
// the document.
func Validate(doc map[string]any, desc *Descriptor) []Violation {
	var violations []Violation

	declared := make(map[string]bool)
	for _, f := range desc.Fields {
		root := strings.SplitN(f.Name, ".", 2)[0]
		declared[root] = true

		val, present := lookup(doc, f.Name)
		if !present {
			if f.Required {
				violations = append(violations, Violation{
					Path:     f.Name,
					Expected: string(f.Type),
					Actual:   "missing",
					Severity: SeverityBlocking,
				})
			}
			continue
		}

		if f.Deprecated {
			violations = append(violations, Violation{
				Path:     f.Name,
				Expected: "absent (deprecated)",
				Actual:   "present",
				Severity: SeverityAdvisory,
			})
		}

		if !typeMatches(val, f.Type) {
			violations = append(violations, Violation{
				Path:     f.Name,
				Expected: string(f.Type),
				Actual:   describeType(val),
				Severity: SeverityBlocking,
			})
			continue
		}

		if len(f.Enum) > 0 {
			s, ok := val.(string)
			if ok && !contains(f.Enum, s) {
				violations = append(violations, Violation{
					Path:     f.Name,
					Expected: "one of " + strings.Join(f.Enum, "|"),
					Actual:   s,
					Severity: SeverityBlocking,
				})
			}
		}
	}

	// Unknown top-level fields are tolerated but surfaced
	for key := range doc {
		if !declared[key] {
			violations = append(violations, Violation{
				Path:     key,
				Expected: "declared field",
				Actual:   "unknown field",
				Severity: SeverityAdvisory,
			})
		}
	}

	return violations
}

// ValidateRecord validates all documents carried by a record against the
// record's declared schema version. An unknown or missing version is a
// blocking violation, never a silent skip.
func ValidateRecord(rec *model.Record, reg *Registry) []Violation {
	entryDesc, ok := reg.Lookup(KindEntry, rec.SchemaVersion)
	if !ok {
		return []Violation{{
			Path:     "schema_version",
			Expected: "one of " + strings.Join(reg.Versions(KindEntry), "|"),
			Actual:   describeVersion(rec.SchemaVersion),
			Severity: SeverityBlocking,
		}}
	}

	violations := Validate(rec.RawEntry, entryDesc)

	// Secondary documents validate against their own v1 descriptors;
	// absence is not a violation (partial records are tolerated)
	if rec.RawSimulation != nil {
		if desc, ok := reg.Lookup(KindSimulation, "1"); ok {
			violations = append(violations, prefix("simulation", Validate(rec.RawSimulation, desc))...)
		}
	}
	if rec.RawCitations != nil {
		if desc, ok := reg.Lookup(KindCitations, "1"); ok {
			violations = append(violations, prefix("citations", Validate(rec.RawCitations, desc))...)
		}
	}

	return violations
}

func prefix(doc string, violations []Violation) []Violation {
	for i := range violations {
		violations[i].Path = doc + "." + violations[i].Path
	}
	return violations
}

func describeVersion(v string) string {
	if v == "" {
		return "missing"
	}
	return v
}

// lookup resolves a dotted path into nested maps
func lookup(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func typeMatches(val any, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := val.(string)
		return ok
	case TypeNumber:
		return isNumber(val)
	case TypeInteger:
		f, ok := asFloat(val)
		return ok && f == math.Trunc(f)
	case TypeBoolean:
		_, ok := val.(bool)
		return ok
	case TypeObject:
		_, ok := val.(map[string]any)
		return ok
	case TypeArray:
		_, ok := val.([]any)
		return ok
	case TypeScoreOrMask:
		if s, ok := val.(string); ok {
			return s == model.JournalMaskSentinel
		}
		f, ok := asFloat(val)
		return ok && f >= 0 && f <= 1
	}
	return false
}

func isNumber(val any) bool {
	_, ok := asFloat(val)
	return ok
}

func asFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func describeType(val any) string {
	switch val.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", val)
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
