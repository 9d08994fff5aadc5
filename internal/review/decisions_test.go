package review

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/EmPi44/csv-matching/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDecisions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decisions_20260301.csv")
	writeFile(t, path, `owner_id,txn_id,review_status,reviewer,timestamp,notes
o1,t1,approved,jo,2026-03-01T10:00:00Z,looks right
o2,t2,Rejected,jo,,
o3,,approved,jo,,
o4,t4,maybe,jo,,
`)

	decisions, err := LoadDecisions(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(decisions))
	}
	if decisions[0].OwnerID != "o1" || decisions[0].ReviewStatus != model.ReviewApproved {
		t.Errorf("first decision: %+v", decisions[0])
	}
	if decisions[0].Timestamp.IsZero() {
		t.Error("timestamp not parsed")
	}
	// Status matching is case-insensitive.
	if decisions[1].ReviewStatus != model.ReviewRejected {
		t.Errorf("second decision status = %q", decisions[1].ReviewStatus)
	}
}

func TestLatestDecisions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "decisions_20260101.csv"),
		"owner_id,txn_id,review_status\no1,t1,approved\n")
	writeFile(t, filepath.Join(dir, "decisions_20260301.csv"),
		"owner_id,txn_id,review_status\no2,t2,rejected\n")
	writeFile(t, filepath.Join(dir, "pairs.csv"),
		"owner_id,txn_id\no3,t3\n")

	path, decisions, err := LatestDecisions(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "decisions_20260301.csv" {
		t.Errorf("picked %s", path)
	}
	if len(decisions) != 1 || decisions[0].OwnerID != "o2" {
		t.Errorf("decisions = %+v", decisions)
	}
}

func TestLatestDecisionsMissingDir(t *testing.T) {
	path, decisions, err := LatestDecisions(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing dir errored: %v", err)
	}
	if path != "" || decisions != nil {
		t.Error("missing dir produced decisions")
	}
}

func TestExportAndTemplateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pairsPath := filepath.Join(dir, "pairs.csv")

	candidates := []model.MatchCandidate{
		{
			OwnerID:          "o1",
			TxnID:            "t1",
			Score:            0.80,
			ConfidenceBucket: model.BucketLow,
			ReviewStatus:     model.ReviewPendingReview,
		},
		// Medium bucket candidates are not for review.
		{
			OwnerID:          "o2",
			TxnID:            "t2",
			Score:            0.86,
			ConfidenceBucket: model.BucketMedium,
			ReviewStatus:     model.ReviewPendingReview,
		},
	}
	owners := map[string]model.OwnerRecord{
		"o1": {OwnerID: "o1", Project: "marina", BuildingClean: "tower 2", UnitNo: "0012", AreaSqm: 120},
	}
	txns := map[string]model.TransactionRecord{
		"t1": {TxnID: "t1", Project: "marina", BuildingClean: "tower 2", UnitNo: "0012", AreaSqm: 118},
	}

	n, err := ExportCandidates(candidates, owners, txns, pairsPath)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("exported %d pairs, want 1", n)
	}

	outPath := filepath.Join(dir, "decisions_blank.csv")
	count, written, err := WriteDecisionTemplate(pairsPath, outPath)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 || written != outPath {
		t.Errorf("template = (%d, %s)", count, written)
	}

	// A blank template loads as zero decisions, not an error.
	decisions, err := LoadDecisions(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 0 {
		t.Errorf("blank template yielded %d decisions", len(decisions))
	}
}
