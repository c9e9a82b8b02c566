package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Artifact file names within the output directory
const (
	IndexJSONArtifact = "index.json"
	IndexCSVArtifact  = "index.csv"
	MetricsArtifact   = "metrics.json"
	AnomaliesArtifact = "anomalies.json"
)

// Writer renders run artifacts for downstream collaborators (plotting,
// report assembly). The canonical index is written in the configured
// format; metrics and the anomaly report are always JSON.
type Writer struct {
	outDir string
	format string
	logger *zap.Logger
}

// NewWriter creates a writer targeting the output directory
func NewWriter(outDir, format string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{outDir: outDir, format: format, logger: logger}
}

// WriteIndex renders the canonical index artifact
func (w *Writer) WriteIndex(report *RunReport) error {
	switch w.format {
	case "csv":
		path := filepath.Join(w.outDir, IndexCSVArtifact)
		if err := report.Index.WriteCSV(path); err != nil {
			return err
		}
		w.logger.Info("wrote index", zap.String("path", path), zap.Int("rows", report.Index.Len()))
	case "json", "":
		path := filepath.Join(w.outDir, IndexJSONArtifact)
		if err := report.Index.WriteJSON(path); err != nil {
			return err
		}
		w.logger.Info("wrote index", zap.String("path", path), zap.Int("rows", report.Index.Len()))
	default:
		return fmt.Errorf("unsupported index format %q", w.format)
	}
	return nil
}

// WriteMetrics renders the metrics artifact, including the anchor
// breakdown, as one flat JSON document with stable field names
func (w *Writer) WriteMetrics(report *RunReport) error {
	doc := struct {
		RunID   string `json:"run_id"`
		Metrics any    `json:"metrics"`
		Anchors any    `json:"anchors"`
		Partial bool   `json:"partial"`
	}{
		RunID:   report.RunID,
		Metrics: report.Metrics,
		Anchors: report.Anchors,
		Partial: report.Partial,
	}
	return w.writeJSON(MetricsArtifact, doc)
}

// WriteAnomalies renders the anomaly report for direct inclusion in a
// generated summary document
func (w *Writer) WriteAnomalies(report *RunReport) error {
	doc := struct {
		RunID        string `json:"run_id"`
		Anomalies    any    `json:"anomalies"`
		Partial      bool   `json:"partial"`
		FailedShards []int  `json:"failed_shards,omitempty"`
	}{
		RunID:        report.RunID,
		Anomalies:    report.Anomalies,
		Partial:      report.Partial,
		FailedShards: report.FailedShards,
	}
	return w.writeJSON(AnomaliesArtifact, doc)
}

// WriteAll renders every artifact
func (w *Writer) WriteAll(report *RunReport) error {
	if err := w.WriteIndex(report); err != nil {
		return err
	}
	if err := w.WriteMetrics(report); err != nil {
		return err
	}
	return w.WriteAnomalies(report)
}

func (w *Writer) writeJSON(name string, doc any) error {
	if err := os.MkdirAll(w.outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(w.outDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.logger.Info("wrote artifact", zap.String("path", path))
	return nil
}
