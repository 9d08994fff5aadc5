package report

import (
	"strings"
	"testing"

	"github.com/EmPi44/csv-matching/internal/model"
)

func TestAggregate(t *testing.T) {
	tier1 := []model.MatchCandidate{
		{
			OwnerID: "o1", TxnID: "t1",
			Method: model.MethodTier1Deterministic,
			Score:  1.0, ConfidenceBucket: model.BucketHigh,
			ReviewStatus: model.ReviewAutoApproved,
		},
	}
	tier2 := []model.MatchCandidate{
		// Duplicate accepted match for o1; loses to the tier 1 score.
		{
			OwnerID: "o2", TxnID: "t3",
			Method: model.MethodTier2Fuzzy,
			Score:  0.91, ConfidenceBucket: model.BucketHigh,
			ReviewStatus: model.ReviewPendingReview,
		},
		{
			OwnerID: "o1", TxnID: "t2",
			Method: model.MethodTier2Fuzzy,
			Score:  0.92, ConfidenceBucket: model.BucketHigh,
			ReviewStatus: model.ReviewPendingReview,
		},
		// Low candidates without approval never reach the final set.
		{
			OwnerID: "o3", TxnID: "t4",
			Method: model.MethodTier2Fuzzy,
			Score:  0.80, ConfidenceBucket: model.BucketLow,
			ReviewStatus: model.ReviewPendingReview,
		},
	}

	final, warnings := Aggregate(tier1, tier2)

	if len(final) != 2 {
		t.Fatalf("got %d final matches, want 2", len(final))
	}
	byOwner := make(map[string]model.MatchCandidate)
	for _, c := range final {
		if _, dup := byOwner[c.OwnerID]; dup {
			t.Fatalf("owner %s appears twice", c.OwnerID)
		}
		byOwner[c.OwnerID] = c
	}
	if byOwner["o1"].TxnID != "t1" {
		t.Errorf("o1 kept txn %s, want t1", byOwner["o1"].TxnID)
	}
	if byOwner["o2"].TxnID != "t3" {
		t.Errorf("o2 kept txn %s, want t3", byOwner["o2"].TxnID)
	}
	if _, ok := byOwner["o3"]; ok {
		t.Error("unapproved low candidate reached the final set")
	}

	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if !strings.Contains(warnings[0], "o1") || !strings.Contains(warnings[0], "t2") {
		t.Errorf("warning does not name the dropped duplicate: %s", warnings[0])
	}
}

func TestAggregateEqualScoresTieToLowestTxn(t *testing.T) {
	tier2 := []model.MatchCandidate{
		{OwnerID: "o1", TxnID: "t9", Method: model.MethodTier2Fuzzy,
			Score: 0.91, ConfidenceBucket: model.BucketHigh, ReviewStatus: model.ReviewPendingReview},
		{OwnerID: "o1", TxnID: "t2", Method: model.MethodTier2Fuzzy,
			Score: 0.91, ConfidenceBucket: model.BucketHigh, ReviewStatus: model.ReviewPendingReview},
	}

	final, warnings := Aggregate(nil, tier2)
	if len(final) != 1 || final[0].TxnID != "t2" {
		t.Errorf("kept %+v, want txn t2", final)
	}
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(warnings))
	}
}

func TestBuildSummary(t *testing.T) {
	final := []model.MatchCandidate{
		{OwnerID: "o1", TxnID: "t1", Method: model.MethodTier1Deterministic,
			Score: 1.0, ConfidenceBucket: model.BucketHigh},
		{OwnerID: "o2", TxnID: "t2", Method: model.MethodTier2Fuzzy,
			Score: 0.9, ConfidenceBucket: model.BucketHigh},
		{OwnerID: "o3", TxnID: "t3", Method: model.MethodTier2Fuzzy,
			Score: 0.86, ConfidenceBucket: model.BucketMedium},
	}
	owners := SourceInfo{Name: "owners", RawRows: 10, Normalized: 6}
	txns := SourceInfo{Name: "transactions", RawRows: 12, Normalized: 10}

	s := BuildSummary("run1", final, owners, txns)

	if s.TotalMatches != 3 {
		t.Errorf("total = %d", s.TotalMatches)
	}
	if s.Tier1Matches+s.Tier2Matches != s.TotalMatches {
		t.Errorf("tier counts %d + %d != total %d", s.Tier1Matches, s.Tier2Matches, s.TotalMatches)
	}
	if s.Tier1Matches != 1 || s.Tier2Matches != 2 {
		t.Errorf("tier counts = (%d, %d), want (1, 2)", s.Tier1Matches, s.Tier2Matches)
	}
	if s.OwnerMatchRate != 0.5 {
		t.Errorf("owner match rate = %v, want 0.5", s.OwnerMatchRate)
	}
	if s.BucketDistribution[model.BucketHigh] != 2 || s.BucketDistribution[model.BucketMedium] != 1 {
		t.Errorf("bucket distribution = %v", s.BucketDistribution)
	}
}
