package review

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/EmPi44/csv-matching/internal/model"
	"github.com/EmPi44/csv-matching/internal/tabular"
)

// PairsHeader is the column layout of the review-candidate export.
var PairsHeader = []string{
	"owner_id", "txn_id", "match_confidence", "confidence_bucket",
	"building_sim", "unit_match", "area_score",
	"owner_project", "owner_building", "owner_unit", "owner_area_sqm", "owner_name",
	"txn_project", "txn_building", "txn_unit", "txn_area_sqm",
	"review_status", "reviewer", "notes", "export_date",
}

// ExportCandidates writes the Low bucket candidates with denormalized
// owner and transaction fields for human inspection. Every exported row
// starts with review_status=pending.
func ExportCandidates(
	candidates []model.MatchCandidate,
	owners map[string]model.OwnerRecord,
	txns map[string]model.TransactionRecord,
	path string,
) (int, error) {
	exportDate := time.Now().Format("2006-01-02")

	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		if c.ConfidenceBucket != model.BucketLow {
			continue
		}
		o := owners[c.OwnerID]
		t := txns[c.TxnID]
		rows = append(rows, []string{
			c.OwnerID,
			c.TxnID,
			formatScore(c.Score),
			string(c.ConfidenceBucket),
			formatScore(c.ComponentScores[model.ComponentBuilding]),
			formatScore(c.ComponentScores[model.ComponentUnit]),
			formatScore(c.ComponentScores[model.ComponentArea]),
			o.Project, o.BuildingClean, o.UnitNo, formatArea(o.AreaSqm), o.OwnerNameClean,
			t.Project, t.BuildingClean, t.UnitNo, formatArea(t.AreaSqm),
			"pending", "", "", exportDate,
		})
	}

	if err := tabular.WriteCSV(path, PairsHeader, rows); err != nil {
		return 0, fmt.Errorf("failed to export review candidates: %w", err)
	}
	return len(rows), nil
}

// DecisionsHeader is the column layout of the decision template and of
// completed decision files.
var DecisionsHeader = []string{
	"owner_id", "txn_id", "review_status", "reviewer", "timestamp", "notes",
}

// WriteDecisionTemplate converts an exported pairs file into a blank
// decisions file for reviewers. When outPath is empty the template is
// written next to the pairs file as decisions_<date>.csv.
func WriteDecisionTemplate(pairsPath, outPath string) (int, string, error) {
	pairsColumns := tabular.ColumnMap{"owner_id": "owner_id", "txn_id": "txn_id"}
	rows, err := tabular.ReadSource(pairsPath, pairsColumns, []string{"owner_id", "txn_id"})
	if err != nil {
		return 0, "", fmt.Errorf("failed to read review pairs: %w", err)
	}

	if outPath == "" {
		name := fmt.Sprintf("decisions_%s.csv", time.Now().Format("20060102_150405"))
		outPath = filepath.Join(filepath.Dir(pairsPath), name)
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{row["owner_id"], row["txn_id"], "", "", "", ""})
	}
	if err := tabular.WriteCSV(outPath, DecisionsHeader, out); err != nil {
		return 0, "", fmt.Errorf("failed to write decision template: %w", err)
	}
	return len(out), outPath, nil
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func formatArea(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
