package review

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EmPi44/csv-matching/internal/model"
)

// WriteSummary writes a Markdown summary of the review round: how many
// pairs went out, how many came back, and how they split.
func WriteSummary(path string, exported int, decisions []model.ReviewDecision) error {
	approved, rejected := 0, 0
	for _, d := range decisions {
		switch d.ReviewStatus {
		case model.ReviewApproved:
			approved++
		case model.ReviewRejected:
			rejected++
		}
	}

	completion := 0.0
	if exported > 0 {
		completion = float64(len(decisions)) / float64(exported)
	}
	approvalRate := 0.0
	if len(decisions) > 0 {
		approvalRate = float64(approved) / float64(len(decisions))
	}

	var b strings.Builder
	b.WriteString("# Manual Review Summary\n\n")
	fmt.Fprintf(&b, "- Pairs exported: %d\n", exported)
	fmt.Fprintf(&b, "- Decisions received: %d\n", len(decisions))
	fmt.Fprintf(&b, "- Completion rate: %.1f%%\n", completion*100)
	fmt.Fprintf(&b, "- Approved: %d\n", approved)
	fmt.Fprintf(&b, "- Rejected: %d\n", rejected)
	fmt.Fprintf(&b, "- Approval rate: %.1f%%\n", approvalRate*100)
	fmt.Fprintf(&b, "\nGenerated: %s\n", time.Now().Format("2006-01-02 15:04:05"))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create review directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write review summary: %w", err)
	}
	return nil
}
