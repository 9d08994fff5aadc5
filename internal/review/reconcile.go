// Package review exports low-confidence candidates for human inspection
// and merges the resulting approve/reject decisions back into the match
// set.
package review

import (
	"github.com/EmPi44/csv-matching/internal/model"
)

// ApprovedScore is the confidence assigned to a human-approved match.
const ApprovedScore = 0.95

// ReconcileResult carries the updated candidate set and the decision
// accounting surfaced in the QA report.
type ReconcileResult struct {
	Candidates []model.MatchCandidate

	Approved int
	Rejected int

	// Unknown counts decisions whose (owner_id, txn_id) pair matched no
	// candidate. They are ignored, not errors, but reported as
	// consistency warnings.
	Unknown int
}

// Reconcile applies a point-in-time snapshot of review decisions to the
// low-confidence candidate set. Approved candidates are promoted to the
// High bucket at the fixed approved score; rejected candidates are removed
// entirely; candidates without a decision stay pending_review.
//
// The operation is idempotent: it is a pure function of (candidates,
// decisions), applying the same decision set again reproduces the same
// output, and a superset of decisions yields exactly the union of effects.
func Reconcile(candidates []model.MatchCandidate, decisions []model.ReviewDecision) ReconcileResult {
	type pair struct{ owner, txn string }

	byPair := make(map[pair]model.ReviewDecision, len(decisions))
	for _, d := range decisions {
		byPair[pair{d.OwnerID, d.TxnID}] = d
	}

	matched := make(map[pair]bool, len(byPair))
	res := ReconcileResult{Candidates: make([]model.MatchCandidate, 0, len(candidates))}

	for _, c := range candidates {
		p := pair{c.OwnerID, c.TxnID}
		d, ok := byPair[p]
		if !ok {
			res.Candidates = append(res.Candidates, c)
			continue
		}
		matched[p] = true

		switch d.ReviewStatus {
		case model.ReviewApproved:
			c.Score = ApprovedScore
			c.ConfidenceBucket = model.BucketHigh
			c.ReviewStatus = model.ReviewApproved
			res.Candidates = append(res.Candidates, c)
			res.Approved++
		case model.ReviewRejected:
			res.Rejected++
		default:
			// Unrecognised status: leave the candidate untouched.
			res.Candidates = append(res.Candidates, c)
		}
	}

	for p := range byPair {
		if !matched[p] {
			res.Unknown++
		}
	}
	return res
}
