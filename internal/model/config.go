package model

import (
	"runtime"
	"time"
)

// Config is the full runtime configuration, read once at startup and
// passed explicitly into the components that need it
type Config struct {
	Root   string `yaml:"root" mapstructure:"root"`       // Entries directory to scan
	OutDir string `yaml:"out_dir" mapstructure:"out_dir"` // Artifact output directory

	Schemas  SchemasConfig  `yaml:"schemas" mapstructure:"schemas"`
	Policy   PolicyConfig   `yaml:"policy" mapstructure:"policy"`
	Shard    ShardConfig    `yaml:"shard" mapstructure:"shard"`
	Workers  WorkersConfig  `yaml:"workers" mapstructure:"workers"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Throttle ThrottleConfig `yaml:"throttle" mapstructure:"throttle"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// SchemasConfig locates the versioned document descriptors
type SchemasConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"` // Empty means use the built-in descriptors
}

// PolicyConfig locates the policy configuration and its history
type PolicyConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`                   // policy.yaml
	ArchiveDir   string `yaml:"archive_dir" mapstructure:"archive_dir"`     // Prior policy states (optional)
	SnapshotsDir string `yaml:"snapshots_dir" mapstructure:"snapshots_dir"` // Journal-trust snapshot files
}

// ShardConfig selects which partition of the entry set this run processes
type ShardConfig struct {
	Index int `yaml:"index" mapstructure:"index"`
	Count int `yaml:"count" mapstructure:"count"`
}

// WorkersConfig controls shard-level parallelism
type WorkersConfig struct {
	ShardWorkers int `yaml:"shard_workers" mapstructure:"shard_workers"`
}

// CacheConfig controls the parse cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ThrottleConfig bounds document reads per second. Zero disables
// throttling; useful on shared network filesystems.
type ThrottleConfig struct {
	ReadsPerSecond float64 `yaml:"reads_per_second" mapstructure:"reads_per_second"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
}

// OutputConfig controls artifact rendering
type OutputConfig struct {
	Format  string `yaml:"format" mapstructure:"format"` // "json" or "csv"
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Root:   "tervyx/entries",
		OutDir: "reports/tables",
		Schemas: SchemasConfig{
			Dir: "",
		},
		Policy: PolicyConfig{
			Path:         "tervyx/policy.yaml",
			ArchiveDir:   "",
			SnapshotsDir: "tervyx/journal_trust/snapshots",
		},
		Shard: ShardConfig{
			Index: 0,
			Count: 1,
		},
		Workers: WorkersConfig{
			ShardWorkers: runtime.NumCPU(),
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Minute,
		},
		Throttle: ThrottleConfig{
			ReadsPerSecond: 0,
			Burst:          0,
		},
		Output: OutputConfig{
			Format:  "json",
			Verbose: false,
		},
	}
}
