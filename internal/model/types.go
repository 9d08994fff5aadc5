package model

import "time"

// ConfidenceBucket is the categorical confidence label derived from a match score.
type ConfidenceBucket string

const (
	BucketHigh   ConfidenceBucket = "High"
	BucketMedium ConfidenceBucket = "Medium"
	BucketLow    ConfidenceBucket = "Low"
	BucketReject ConfidenceBucket = "Reject"
)

// Review statuses carried on match candidates.
const (
	ReviewAutoApproved  = "auto_approved"
	ReviewPendingReview = "pending_review"
	ReviewApproved      = "approved"
	ReviewRejected      = "rejected"
)

// Match methods recorded on output rows.
const (
	MethodTier1Deterministic = "tier1_deterministic"
	MethodTier2Fuzzy         = "tier2_fuzzy"
)

// OwnerRecord is a normalized property ownership record. Records are
// immutable once produced by the normalizer.
type OwnerRecord struct {
	OwnerID        string  `json:"owner_id"`
	Project        string  `json:"project"`
	BuildingClean  string  `json:"building_clean"`
	UnitNo         string  `json:"unit_no"`
	PlotNo         string  `json:"plot_no,omitempty"`
	AreaSqm        float64 `json:"area_sqm"`
	OwnerNameClean string  `json:"owner_name_clean"`
	CompositeKey   string  `json:"composite_key"`
}

// TransactionRecord is a normalized property sale transaction record.
type TransactionRecord struct {
	TxnID         string  `json:"txn_id"`
	Project       string  `json:"project"`
	BuildingClean string  `json:"building_clean"`
	UnitNo        string  `json:"unit_no"`
	PlotNo        string  `json:"plot_no,omitempty"`
	AreaSqm       float64 `json:"area_sqm"`
	CompositeKey  string  `json:"composite_key"`

	// UnitPlaceholder marks a unit number synthesised from the transaction
	// id because the source had no unit column. A placeholder unit must
	// never satisfy a fuzzy unit comparison.
	UnitPlaceholder bool `json:"unit_placeholder,omitempty"`
}

// MatchCandidate is a scored owner/transaction pairing produced by one of
// the matching tiers.
type MatchCandidate struct {
	OwnerID          string             `json:"owner_id"`
	TxnID            string             `json:"txn_id"`
	Method           string             `json:"match_method"`
	Score            float64            `json:"match_confidence"`
	ConfidenceBucket ConfidenceBucket   `json:"confidence_bucket"`
	ComponentScores  map[string]float64 `json:"component_scores,omitempty"`
	ReviewStatus     string             `json:"review_status"`
	PipelineRunID    string             `json:"pipeline_run_id"`
}

// Component score keys used in MatchCandidate.ComponentScores.
const (
	ComponentBuilding = "building_sim"
	ComponentUnit     = "unit_match"
	ComponentArea     = "area_score"
)

// ReviewDecision is an externally produced approve/reject judgment on a
// specific candidate pair.
type ReviewDecision struct {
	OwnerID      string    `json:"owner_id"`
	TxnID        string    `json:"txn_id"`
	ReviewStatus string    `json:"review_status"`
	Reviewer     string    `json:"reviewer"`
	Timestamp    time.Time `json:"timestamp"`
	Notes        string    `json:"notes"`
}

// Accepted reports whether the candidate belongs in the accepted match set:
// rejected and still-pending-review candidates are excluded.
func (c MatchCandidate) Accepted() bool {
	if c.ConfidenceBucket == BucketReject || c.ReviewStatus == ReviewRejected {
		return false
	}
	if c.ConfidenceBucket == BucketLow && c.ReviewStatus != ReviewApproved {
		return false
	}
	return true
}

// BucketForScore maps a fuzzy score onto a confidence bucket using the
// supplied thresholds.
func BucketForScore(score, high, medium, low float64) ConfidenceBucket {
	switch {
	case score >= high:
		return BucketHigh
	case score >= medium:
		return BucketMedium
	case score >= low:
		return BucketLow
	default:
		return BucketReject
	}
}
