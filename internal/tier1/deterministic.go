// Package tier1 implements the deterministic matching tier: an exact
// composite-key join filtered by an area tolerance window.
package tier1

import (
	"math"

	"github.com/EmPi44/csv-matching/internal/model"
)

// Matcher performs the exact composite-key join.
type Matcher struct {
	// AreaTolerancePct is the maximum |area_owner - area_txn| / area_owner
	// a pair may show and still match.
	AreaTolerancePct float64

	// TieBreak decides which transaction wins when one owner's key joins
	// several: "first" keeps the earliest by stable input order,
	// "closest_area" the smallest area difference (ties again to input
	// order). Either choice is reproducible across reruns.
	TieBreak string
}

// New creates a Matcher with the default 1% tolerance and keep-first
// policy.
func New() *Matcher {
	return &Matcher{AreaTolerancePct: 0.01, TieBreak: "first"}
}

// Result carries the tier output and its residuals.
type Result struct {
	Matches               []model.MatchCandidate
	UnmatchedOwners       []model.OwnerRecord
	UnmatchedTransactions []model.TransactionRecord

	// AreaRejected counts key-equal pairs discarded by the tolerance
	// filter; MultiMatched counts owners whose key joined more than one
	// transaction.
	AreaRejected int
	MultiMatched int
}

// Match joins owners to transactions on exact composite-key equality,
// keeps pairs inside the area tolerance, and resolves multi-joins with the
// configured tie-break. Matched pairs score 1.0 in the High bucket.
// Residual sets are the complement by id in stable input order.
func (m *Matcher) Match(owners []model.OwnerRecord, txns []model.TransactionRecord, runID string) Result {
	var res Result

	byKey := make(map[string][]int, len(txns))
	for i, t := range txns {
		byKey[t.CompositeKey] = append(byKey[t.CompositeKey], i)
	}

	matchedOwners := make(map[string]bool, len(owners))
	matchedTxns := make(map[string]bool)

	for _, o := range owners {
		idxs := byKey[o.CompositeKey]
		if len(idxs) == 0 {
			continue
		}

		// The tolerance filter requires a known owner area.
		if o.AreaSqm <= 0 {
			res.AreaRejected += len(idxs)
			continue
		}

		best := -1
		bestDiff := math.MaxFloat64
		eligible := 0
		for _, i := range idxs {
			diff := math.Abs(o.AreaSqm-txns[i].AreaSqm) / o.AreaSqm
			if diff > m.AreaTolerancePct {
				res.AreaRejected++
				continue
			}
			eligible++
			switch {
			case best == -1:
				best, bestDiff = i, diff
			case m.TieBreak == "closest_area" && diff < bestDiff:
				best, bestDiff = i, diff
			}
		}
		if best == -1 {
			continue
		}
		if eligible > 1 {
			res.MultiMatched++
		}

		t := txns[best]
		res.Matches = append(res.Matches, model.MatchCandidate{
			OwnerID:          o.OwnerID,
			TxnID:            t.TxnID,
			Method:           model.MethodTier1Deterministic,
			Score:            1.0,
			ConfidenceBucket: model.BucketHigh,
			ComponentScores: map[string]float64{
				"area_diff_pct": round4(bestDiff),
			},
			ReviewStatus:  model.ReviewAutoApproved,
			PipelineRunID: runID,
		})
		matchedOwners[o.OwnerID] = true
		matchedTxns[t.TxnID] = true
	}

	for _, o := range owners {
		if !matchedOwners[o.OwnerID] {
			res.UnmatchedOwners = append(res.UnmatchedOwners, o)
		}
	}
	for _, t := range txns {
		if !matchedTxns[t.TxnID] {
			res.UnmatchedTransactions = append(res.UnmatchedTransactions, t)
		}
	}
	return res
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
