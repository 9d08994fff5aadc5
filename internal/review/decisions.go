package review

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EmPi44/csv-matching/internal/model"
	"github.com/EmPi44/csv-matching/internal/tabular"
)

// Decision files use the same canonical field names everywhere, so the
// loader reuses the schema-mapped reader with an identity mapping.
var decisionColumns = tabular.ColumnMap{
	"owner_id":      "owner_id",
	"txn_id":        "txn_id",
	"review_status": "review_status",
	"reviewer":      "reviewer",
	"timestamp":     "timestamp",
	"notes":         "notes",
}

var decisionRequired = []string{"owner_id", "txn_id", "review_status"}

// LoadDecisions reads one decision file. Rows with a blank pair or an
// unknown status are skipped with a warning.
func LoadDecisions(path string) ([]model.ReviewDecision, error) {
	rows, err := tabular.ReadSource(path, decisionColumns, decisionRequired)
	if err != nil {
		return nil, fmt.Errorf("failed to load decisions: %w", err)
	}

	decisions := make([]model.ReviewDecision, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		d := model.ReviewDecision{
			OwnerID:      strings.TrimSpace(row["owner_id"]),
			TxnID:        strings.TrimSpace(row["txn_id"]),
			ReviewStatus: strings.ToLower(strings.TrimSpace(row["review_status"])),
			Reviewer:     strings.TrimSpace(row["reviewer"]),
			Notes:        row["notes"],
		}
		if d.OwnerID == "" || d.TxnID == "" {
			skipped++
			continue
		}
		if d.ReviewStatus != model.ReviewApproved && d.ReviewStatus != model.ReviewRejected {
			skipped++
			continue
		}
		if ts := strings.TrimSpace(row["timestamp"]); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				d.Timestamp = parsed
			}
		}
		decisions = append(decisions, d)
	}
	if skipped > 0 {
		logrus.WithFields(logrus.Fields{"path": path, "skipped": skipped}).
			Warn("skipped malformed review decisions")
	}
	return decisions, nil
}

// LatestDecisions finds the newest decisions_*.csv in dir and loads it.
// A missing directory or an empty match set is not an error: review is
// asynchronous and a run without decisions is normal.
func LatestDecisions(dir string) (string, []model.ReviewDecision, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("failed to read review directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "decisions_") && strings.HasSuffix(name, ".csv") {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		return "", nil, nil
	}

	// Decision files carry a sortable timestamp suffix; the latest file
	// is the authoritative snapshot.
	sort.Strings(files)
	latest := filepath.Join(dir, files[len(files)-1])

	decisions, err := LoadDecisions(latest)
	if err != nil {
		return latest, nil, err
	}
	return latest, decisions, nil
}
