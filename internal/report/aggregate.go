// Package report unions the tier outputs into the final match set,
// enforces the one-accepted-match-per-owner invariant, and compiles the
// run summary and QA report. It contains no matching logic of its own.
package report

import (
	"fmt"
	"sort"

	"github.com/EmPi44/csv-matching/internal/model"
)

// Aggregate unions tier 1 matches with the reconciled tier 2 set, keeping
// only accepted candidates. An owner with more than one accepted match is
// a data-quality defect: the best-scoring candidate (ties to lowest txn
// id) is kept and every discarded duplicate is recorded as a warning, so
// nothing is dropped silently.
func Aggregate(tier1, tier2 []model.MatchCandidate) ([]model.MatchCandidate, []string) {
	var all []model.MatchCandidate
	for _, c := range tier1 {
		if c.Accepted() {
			all = append(all, c)
		}
	}
	for _, c := range tier2 {
		if c.Accepted() {
			all = append(all, c)
		}
	}

	perOwner := make(map[string][]model.MatchCandidate)
	var ownerIDs []string
	for _, c := range all {
		if _, seen := perOwner[c.OwnerID]; !seen {
			ownerIDs = append(ownerIDs, c.OwnerID)
		}
		perOwner[c.OwnerID] = append(perOwner[c.OwnerID], c)
	}
	sort.Strings(ownerIDs)

	var final []model.MatchCandidate
	var warnings []string
	for _, id := range ownerIDs {
		cands := perOwner[id]
		if len(cands) == 1 {
			final = append(final, cands[0])
			continue
		}

		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].Score != cands[j].Score {
				return cands[i].Score > cands[j].Score
			}
			return cands[i].TxnID < cands[j].TxnID
		})
		final = append(final, cands[0])
		for _, dup := range cands[1:] {
			warnings = append(warnings, fmt.Sprintf(
				"owner %s has multiple accepted matches: kept txn %s (%s, %.4f), dropped txn %s (%s, %.4f)",
				id, cands[0].TxnID, cands[0].Method, cands[0].Score,
				dup.TxnID, dup.Method, dup.Score))
		}
	}
	return final, warnings
}
