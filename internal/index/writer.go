package index

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tervyx/analysis/internal/model"
)

// WriteJSON renders the index as a JSON array of rows, openable by any
// downstream reader without understanding document parsing
func (ix *Index) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(ix.rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

var csvHeader = []string{
	"id", "path", "schema_version", "tier", "label",
	"gate_phi", "gate_r", "gate_j", "gate_k", "gate_l",
	"policy_fingerprint", "tel5_version", "mc_version", "journal_snapshot",
	"intervention_type",
	"seed", "n_draws", "p_effect_gt_delta", "mu_hat",
	"mu_ci95_lower", "mu_ci95_upper", "i2", "tau2",
	"n_studies",
}

// WriteCSV renders the index as a flat CSV table. Absent optional
// fields render as empty cells, never as zeros.
func (ix *Index) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range ix.rows {
		if err := w.Write(csvRow(row)); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.ID, err)
		}
	}
	w.Flush()
	return w.Error()
}

func csvRow(row model.Row) []string {
	cells := []string{
		row.ID, row.Path, row.SchemaVersion, string(row.Tier), string(row.Label),
		string(row.Gates.Phi), string(row.Gates.R), journalCell(row.Gates.J),
		string(row.Gates.K), string(row.Gates.L),
		row.Fingerprint, row.PolicyRefs.TEL5Version, row.PolicyRefs.MCVersion,
		row.PolicyRefs.JournalSnapshot, row.InterventionType,
	}

	sim := row.Simulation
	if sim == nil {
		sim = &model.Simulation{}
	}
	cells = append(cells,
		intCell(sim.Seed), intPtrCell(sim.NDraws),
		floatCell(sim.PEffectGtDelta), floatCell(sim.MuHat),
		floatCell(sim.MuCI95Lower), floatCell(sim.MuCI95Upper),
		floatCell(sim.I2), floatCell(sim.Tau2),
	)

	if row.Citations != nil {
		cells = append(cells, strconv.Itoa(row.Citations.NStudies))
	} else {
		cells = append(cells, "")
	}
	return cells
}

func journalCell(j *model.JournalTrust) string {
	if j == nil {
		return ""
	}
	if j.Masked {
		return model.JournalMaskSentinel
	}
	return strconv.FormatFloat(j.Score, 'f', -1, 64)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intCell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func intPtrCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
