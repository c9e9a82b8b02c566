package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tervyx/analysis/internal/pipeline"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the canonical index, metrics, and anomaly report",
	Long: `Build runs the full ingestion pipeline over the configured shard:
- Discover entry directories under the corpus root
- Parse and schema-validate each entry's documents
- Merge accepted entries into the canonical index
- Verify policy fingerprints and snapshot provenance
- Aggregate tier, gate, journal-trust, and simulation metrics

All artifacts are written to the output directory. Per-entry problems
become anomalies in the report; only a broken input source fails the run.

Example:
  tervyx-analysis build --root tervyx/entries --out-dir reports/tables
  tervyx-analysis build --shard-index 2 --shard-count 8 --format csv`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addCorpusFlags(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	report, err := p.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	writer := pipeline.NewWriter(cfg.OutDir, cfg.Output.Format, logger)
	if err := writer.WriteAll(report); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}

	printRunSummary(report)
	if report.Partial {
		fmt.Fprintf(os.Stderr, "warning: partial run, shards %v failed\n", report.FailedShards)
	}
	return nil
}

func printRunSummary(report *pipeline.RunReport) {
	fmt.Printf("run %s\n", report.RunID)
	fmt.Printf("  entries:   %d discovered, %d selected, %d accepted\n",
		report.Discovered, report.Selected, report.Accepted)
	fmt.Printf("  anomalies: %d\n", len(report.Anomalies))
	for _, tc := range report.Metrics.Tiers {
		if tc.Count > 0 {
			fmt.Printf("  %-7s %4d  (%s)\n", tc.Tier, tc.Count, tc.Label)
		}
	}
}
