package report

import (
	"strconv"

	"github.com/EmPi44/csv-matching/internal/model"
	"github.com/EmPi44/csv-matching/internal/tabular"
)

// MatchesHeader is the column layout of matches.csv.
var MatchesHeader = []string{
	"owner_id", "txn_id", "match_confidence", "confidence_bucket",
	"review_status", "match_method", "pipeline_run_id",
	"building_sim", "unit_match", "area_score",
}

// WriteMatches writes the final match set.
func WriteMatches(path string, matches []model.MatchCandidate) error {
	rows := make([][]string, 0, len(matches))
	for _, c := range matches {
		rows = append(rows, []string{
			c.OwnerID,
			c.TxnID,
			strconv.FormatFloat(c.Score, 'f', 4, 64),
			string(c.ConfidenceBucket),
			c.ReviewStatus,
			c.Method,
			c.PipelineRunID,
			componentField(c, model.ComponentBuilding),
			componentField(c, model.ComponentUnit),
			componentField(c, model.ComponentArea),
		})
	}
	return tabular.WriteCSV(path, MatchesHeader, rows)
}

// UnmatchedOwnersHeader is the column layout of owners_unmatched.csv.
var UnmatchedOwnersHeader = []string{
	"owner_id", "project", "building_clean", "unit_no", "plot_no",
	"area_sqm", "owner_name_clean", "composite_key",
}

// WriteUnmatchedOwners writes the full normalized records of owners that
// gained no accepted match.
func WriteUnmatchedOwners(path string, owners []model.OwnerRecord) error {
	rows := make([][]string, 0, len(owners))
	for _, o := range owners {
		rows = append(rows, []string{
			o.OwnerID, o.Project, o.BuildingClean, o.UnitNo, o.PlotNo,
			strconv.FormatFloat(o.AreaSqm, 'f', 2, 64),
			o.OwnerNameClean, o.CompositeKey,
		})
	}
	return tabular.WriteCSV(path, UnmatchedOwnersHeader, rows)
}

// UnmatchedTransactionsHeader is the column layout of
// transactions_unmatched.csv.
var UnmatchedTransactionsHeader = []string{
	"txn_id", "project", "building_clean", "unit_no", "plot_no",
	"area_sqm", "composite_key", "unit_placeholder",
}

// WriteUnmatchedTransactions writes the full normalized records of
// transactions that gained no accepted match.
func WriteUnmatchedTransactions(path string, txns []model.TransactionRecord) error {
	rows := make([][]string, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []string{
			t.TxnID, t.Project, t.BuildingClean, t.UnitNo, t.PlotNo,
			strconv.FormatFloat(t.AreaSqm, 'f', 2, 64),
			t.CompositeKey,
			strconv.FormatBool(t.UnitPlaceholder),
		})
	}
	return tabular.WriteCSV(path, UnmatchedTransactionsHeader, rows)
}

func componentField(c model.MatchCandidate, key string) string {
	v, ok := c.ComponentScores[key]
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
