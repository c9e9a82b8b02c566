package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tervyx/analysis/internal/model"
)

var (
	flagRoot          string
	flagOutDir        string
	flagSchemasDir    string
	flagPolicyPath    string
	flagPolicyArchive string
	flagSnapshotsDir  string
	flagShardIndex    int
	flagShardCount    int
	flagWorkers       int
	flagFormat        string
	flagNoCache       bool
	flagReadsPerSec   float64
)

// addCorpusFlags registers the flags shared by every command that runs
// the pipeline. Empty string / negative sentinel defaults mean "not set
// on the command line", so config-file and built-in values survive.
func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagRoot, "root", "", "entries directory to scan")
	cmd.Flags().StringVar(&flagOutDir, "out-dir", "", "artifact output directory")
	cmd.Flags().StringVar(&flagSchemasDir, "schemas", "", "schema descriptor directory (default: built-in descriptors)")
	cmd.Flags().StringVar(&flagPolicyPath, "policy", "", "policy configuration file")
	cmd.Flags().StringVar(&flagPolicyArchive, "policy-archive", "", "directory of prior policy states")
	cmd.Flags().StringVar(&flagSnapshotsDir, "snapshots", "", "journal-trust snapshot directory")
	cmd.Flags().IntVar(&flagShardIndex, "shard-index", -1, "shard to process (0-based)")
	cmd.Flags().IntVar(&flagShardCount, "shard-count", 0, "total number of shards")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "shard worker count (default: CPU count)")
	cmd.Flags().StringVar(&flagFormat, "format", "", "index output format: json or csv")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "disable the parse cache")
	cmd.Flags().Float64Var(&flagReadsPerSec, "reads-per-second", 0, "throttle document reads (0 = unlimited)")
}

// buildConfig assembles the run configuration: built-in defaults, then
// the viper config file / environment, then explicit flags
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}

	if flagRoot != "" {
		cfg.Root = flagRoot
	}
	if flagOutDir != "" {
		cfg.OutDir = flagOutDir
	}
	if flagSchemasDir != "" {
		cfg.Schemas.Dir = flagSchemasDir
	}
	if flagPolicyPath != "" {
		cfg.Policy.Path = flagPolicyPath
	}
	if flagPolicyArchive != "" {
		cfg.Policy.ArchiveDir = flagPolicyArchive
	}
	if flagSnapshotsDir != "" {
		cfg.Policy.SnapshotsDir = flagSnapshotsDir
	}
	if flagShardIndex >= 0 {
		cfg.Shard.Index = flagShardIndex
	}
	if flagShardCount > 0 {
		cfg.Shard.Count = flagShardCount
	}
	if flagWorkers > 0 {
		cfg.Workers.ShardWorkers = flagWorkers
	}
	if flagFormat != "" {
		cfg.Output.Format = flagFormat
	}
	if flagNoCache {
		cfg.Cache.Enabled = false
	}
	if flagReadsPerSec > 0 {
		cfg.Throttle.ReadsPerSecond = flagReadsPerSec
	}
	cfg.Output.Verbose = verbose

	if cfg.Shard.Index >= cfg.Shard.Count {
		return nil, fmt.Errorf("shard index %d out of range for %d shards", cfg.Shard.Index, cfg.Shard.Count)
	}
	return cfg, nil
}
