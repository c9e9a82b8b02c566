package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tervyx/analysis/internal/model"
	"github.com/tervyx/analysis/internal/pipeline"
)

var failOnAnomaly bool

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the corpus without writing the index",
	Long: `Validate runs the full pipeline but writes only the anomaly report.
Use it as a pre-publication gate: with --strict the command exits
non-zero when any anomaly is found.

Example:
  tervyx-analysis validate --root tervyx/entries
  tervyx-analysis validate --strict --schemas tervyx/schemas`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addCorpusFlags(validateCmd)
	validateCmd.Flags().BoolVar(&failOnAnomaly, "strict", false, "exit non-zero when anomalies are found")
}

func runValidate(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("validate failed: %w", err)
	}

	writer := pipeline.NewWriter(cfg.OutDir, cfg.Output.Format, logger)
	if err := writer.WriteAnomalies(report); err != nil {
		return fmt.Errorf("write anomaly report: %w", err)
	}

	printAnomalies(report.Anomalies)
	fmt.Printf("%d entries checked, %d anomalies\n", report.Accepted, len(report.Anomalies))

	if failOnAnomaly && (len(report.Anomalies) > 0 || report.Partial) {
		return fmt.Errorf("corpus has %d anomalies", len(report.Anomalies))
	}
	return nil
}

func printAnomalies(anomalies []model.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tCATEGORY\tDETAIL")
	for _, a := range anomalies {
		id := a.EntryID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, a.Category, a.Detail)
	}
	_ = w.Flush()
}
