package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/EmPi44/csv-matching/internal/model"
)

// SourceInfo captures per-source QA inputs gathered before matching.
type SourceInfo struct {
	Name          string
	RawRows       int
	Normalized    int
	Dropped       map[string]int
	ValueWarnings map[string]int
	AreaMin       float64
	AreaMax       float64
	AreaMean      float64
}

// Summary is the compiled result of one pipeline run.
type Summary struct {
	RunID       string
	GeneratedAt time.Time

	Owners       SourceInfo
	Transactions SourceInfo

	TotalMatches int
	Tier1Matches int
	Tier2Matches int

	OwnerMatchRate       float64
	TransactionMatchRate float64

	BucketDistribution map[model.ConfidenceBucket]int
	MeanScore          float64

	UnmatchedOwners       int
	UnmatchedTransactions int

	ReviewExported  int
	ReviewApproved  int
	ReviewRejected  int
	ReviewUnknown   int
	ReviewDecisions int

	Comparisons      int
	FailedPartitions int

	ConsistencyWarnings []string
}

// BuildSummary computes the run statistics from the final match set.
func BuildSummary(runID string, final []model.MatchCandidate, owners SourceInfo, txns SourceInfo) Summary {
	s := Summary{
		RunID:              runID,
		GeneratedAt:        time.Now(),
		Owners:             owners,
		Transactions:       txns,
		TotalMatches:       len(final),
		BucketDistribution: make(map[model.ConfidenceBucket]int),
	}

	var scoreSum float64
	for _, c := range final {
		scoreSum += c.Score
		s.BucketDistribution[c.ConfidenceBucket]++
		switch c.Method {
		case model.MethodTier1Deterministic:
			s.Tier1Matches++
		case model.MethodTier2Fuzzy:
			s.Tier2Matches++
		}
	}
	if len(final) > 0 {
		s.MeanScore = scoreSum / float64(len(final))
	}
	if owners.Normalized > 0 {
		s.OwnerMatchRate = float64(len(final)) / float64(owners.Normalized)
	}
	if txns.Normalized > 0 {
		s.TransactionMatchRate = float64(len(final)) / float64(txns.Normalized)
	}
	return s
}

// WriteQAReport writes the Markdown QA report. The report is written on
// every run, including runs with dropped records, failed partitions or
// consistency violations; those are exactly what it exists to surface.
func WriteQAReport(path string, s Summary) error {
	var b strings.Builder

	b.WriteString("# Pipeline QA Report\n\n")
	fmt.Fprintf(&b, "- Run ID: %s\n", s.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("## Data Summary\n\n")
	for _, src := range []SourceInfo{s.Owners, s.Transactions} {
		fmt.Fprintf(&b, "### %s\n\n", src.Name)
		fmt.Fprintf(&b, "- Raw rows: %d\n", src.RawRows)
		fmt.Fprintf(&b, "- Normalized records: %d\n", src.Normalized)
		for _, reason := range sortedKeys(src.Dropped) {
			fmt.Fprintf(&b, "- Dropped (%s): %d\n", reason, src.Dropped[reason])
		}
		for _, field := range sortedKeys(src.ValueWarnings) {
			fmt.Fprintf(&b, "- Value warnings (%s): %d\n", field, src.ValueWarnings[field])
		}
		if src.Normalized > 0 {
			fmt.Fprintf(&b, "- Area sqm min/mean/max: %.2f / %.2f / %.2f\n", src.AreaMin, src.AreaMean, src.AreaMax)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Match Results\n\n")
	fmt.Fprintf(&b, "- Total matches: %d\n", s.TotalMatches)
	fmt.Fprintf(&b, "- Tier 1 (deterministic): %d\n", s.Tier1Matches)
	fmt.Fprintf(&b, "- Tier 2 (fuzzy): %d\n", s.Tier2Matches)
	fmt.Fprintf(&b, "- Owner match rate: %.1f%%\n", s.OwnerMatchRate*100)
	fmt.Fprintf(&b, "- Transaction match rate: %.1f%%\n", s.TransactionMatchRate*100)
	fmt.Fprintf(&b, "- Mean confidence: %.4f\n", s.MeanScore)
	fmt.Fprintf(&b, "- Unmatched owners: %d\n", s.UnmatchedOwners)
	fmt.Fprintf(&b, "- Unmatched transactions: %d\n\n", s.UnmatchedTransactions)

	b.WriteString("## Confidence Distribution\n\n")
	for _, bucket := range []model.ConfidenceBucket{model.BucketHigh, model.BucketMedium, model.BucketLow} {
		count := s.BucketDistribution[bucket]
		pct := 0.0
		if s.TotalMatches > 0 {
			pct = float64(count) / float64(s.TotalMatches) * 100
		}
		fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", bucket, count, pct)
	}
	b.WriteString("\n")

	b.WriteString("## Review\n\n")
	fmt.Fprintf(&b, "- Candidates exported: %d\n", s.ReviewExported)
	fmt.Fprintf(&b, "- Decisions applied: %d (approved %d, rejected %d)\n",
		s.ReviewDecisions, s.ReviewApproved, s.ReviewRejected)
	fmt.Fprintf(&b, "- Decisions without a candidate: %d\n\n", s.ReviewUnknown)

	b.WriteString("## Execution\n\n")
	fmt.Fprintf(&b, "- Pair comparisons: %d\n", s.Comparisons)
	fmt.Fprintf(&b, "- Failed partitions: %d\n\n", s.FailedPartitions)

	b.WriteString("## Consistency Warnings\n\n")
	if len(s.ConsistencyWarnings) == 0 {
		b.WriteString("None.\n")
	} else {
		for _, w := range s.ConsistencyWarnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write QA report: %w", err)
	}
	return nil
}

// RenderTable prints the run summary as a terminal table.
func RenderTable(w io.Writer, s Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Run ID", s.RunID},
		{"Owners", s.Owners.Normalized},
		{"Transactions", s.Transactions.Normalized},
		{"Total matches", s.TotalMatches},
		{"Tier 1 matches", s.Tier1Matches},
		{"Tier 2 matches", s.Tier2Matches},
		{"Owner match rate", fmt.Sprintf("%.1f%%", s.OwnerMatchRate*100)},
		{"Mean confidence", fmt.Sprintf("%.4f", s.MeanScore)},
		{"High / Medium / Low", fmt.Sprintf("%d / %d / %d",
			s.BucketDistribution[model.BucketHigh],
			s.BucketDistribution[model.BucketMedium],
			s.BucketDistribution[model.BucketLow])},
		{"Unmatched owners", s.UnmatchedOwners},
		{"Unmatched transactions", s.UnmatchedTransactions},
		{"Review candidates", s.ReviewExported},
		{"Failed partitions", s.FailedPartitions},
		{"Consistency warnings", len(s.ConsistencyWarnings)},
	})
	t.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
