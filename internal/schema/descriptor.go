// Package schema validates parsed documents against versioned shape
// descriptors. Each document kind (entry, simulation, citations) has one
// descriptor per schema version; an entry is validated against the
// version it declares, so old and new entries coexist in one run.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document kinds
const (
	KindEntry      = "entry"
	KindSimulation = "simulation"
	KindCitations  = "citations"
)

// FieldType constraints a field's JSON representation
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
	// TypeScoreOrMask accepts a number in [0,1] or the journal-trust
	// masking sentinel string
	TypeScoreOrMask FieldType = "score_or_mask"
)

// Field is one field contract within a descriptor. Name may be a dotted
// path into nested objects (e.g. "gate_results.phi").
type Field struct {
	Name       string    `yaml:"name"`
	Type       FieldType `yaml:"type"`
	Required   bool      `yaml:"required"`
	Enum       []string  `yaml:"enum,omitempty"`
	Deprecated bool      `yaml:"deprecated,omitempty"`
}

// Descriptor is the versioned shape contract for one document kind
type Descriptor struct {
	Kind    string  `yaml:"kind"`
	Version string  `yaml:"version"`
	Fields  []Field `yaml:"fields"`
}

// Key identifies a descriptor within a registry
func (d *Descriptor) Key() string {
	return d.Kind + "@" + d.Version
}

// Registry holds all known descriptors, keyed by kind and version
type Registry struct {
	descriptors map[string]*Descriptor
}

// NewRegistry returns a registry preloaded with the built-in descriptors
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[string]*Descriptor)}
	for _, d := range builtinDescriptors() {
		r.Register(d)
	}
	return r
}

// LoadDir reads descriptor YAML files from dir into a fresh registry.
// A missing or unreadable directory is fatal: without descriptors no
// meaningful validation can happen.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	r := &Registry{descriptors: make(map[string]*Descriptor)}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read descriptor %s: %w", path, err)
		}
		var d Descriptor
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse descriptor %s: %w", path, err)
		}
		if d.Kind == "" || d.Version == "" {
			return nil, fmt.Errorf("descriptor %s: kind and version are required", path)
		}
		r.Register(&d)
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("no descriptors found in %s", dir)
	}
	return r, nil
}

// Register adds or replaces a descriptor
func (r *Registry) Register(d *Descriptor) {
	r.descriptors[d.Key()] = d
}

// Lookup finds the descriptor for a kind and version
func (r *Registry) Lookup(kind, version string) (*Descriptor, bool) {
	d, ok := r.descriptors[kind+"@"+version]
	return d, ok
}

// Versions lists the known versions for a kind
func (r *Registry) Versions(kind string) []string {
	var versions []string
	for key := range r.descriptors {
		if strings.HasPrefix(key, kind+"@") {
			versions = append(versions, strings.TrimPrefix(key, kind+"@"))
		}
	}
	return versions
}
