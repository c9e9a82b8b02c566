package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tervyx/analysis/internal/pipeline"
)

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Aggregate corpus metrics without rewriting the index",
	Long: `Metrics runs the pipeline over the configured shard and writes only
the metrics artifact: tier distribution, gate failure rates,
journal-trust buckets, and P(effect > delta) percentiles.

Example:
  tervyx-analysis metrics --root tervyx/entries --out-dir reports/tables`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	addCorpusFlags(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("metrics failed: %w", err)
	}

	writer := pipeline.NewWriter(cfg.OutDir, cfg.Output.Format, logger)
	if err := writer.WriteMetrics(report); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	m := report.Metrics
	fmt.Printf("entries: %d\n", m.TotalEntries)
	fmt.Printf("labels:  %d PASS, %d AMBER, %d FAIL\n", m.Labels.Pass, m.Labels.Amber, m.Labels.Fail)
	for _, g := range m.Gates {
		fmt.Printf("gate %-3s fail rate %.3f (%d/%d)\n", g.Gate, g.FailRate, g.FailCount, m.TotalEntries)
	}
	fmt.Printf("journal: %d scored, %d masked\n", m.JournalScoredCount, m.JournalMaskedCount)
	if m.PEffectCount > 0 {
		for _, pct := range m.PEffectPercentiles {
			fmt.Printf("P(effect>delta) %s = %.3f\n", pct.Percentile, pct.Value)
		}
	}
	return nil
}
