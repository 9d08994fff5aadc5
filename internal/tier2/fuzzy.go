// Package tier2 implements the fuzzy matching tier: blocked candidate
// generation, weighted multi-field scoring, confidence bucketing and
// per-owner top-K selection.
package tier2

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/EmPi44/csv-matching/internal/block"
	"github.com/EmPi44/csv-matching/internal/model"
)

// Matcher fans blocked owner chunks out over a fixed worker pool and
// merges the candidates back into a deterministic match set.
type Matcher struct {
	Scorer                *Scorer
	MinScore              float64
	MaxCandidatesPerOwner int

	// TieBreak orders equal-score candidates: "lowest_txn_id" or
	// "closest_area" (which prefers the higher area component).
	TieBreak string

	// Workers is the pool size; 0 means one per CPU. BatchSize is the
	// number of owners per work unit.
	Workers   int
	BatchSize int
}

// NewMatcher creates a Matcher with the documented defaults.
func NewMatcher(scorer *Scorer) *Matcher {
	return &Matcher{
		Scorer:                scorer,
		MinScore:              0.75,
		MaxCandidatesPerOwner: 5,
		TieBreak:              "lowest_txn_id",
		BatchSize:             200,
	}
}

// Result carries the fuzzy tier output.
type Result struct {
	// Accepted holds High and Medium bucket candidates, still
	// pending_review until the reconciler or an operator promotes them.
	Accepted []model.MatchCandidate

	// ReviewCandidates holds Low bucket candidates destined for human
	// review. They are not part of the accepted set until approved.
	ReviewCandidates []model.MatchCandidate

	UnmatchedOwners       []model.OwnerRecord
	UnmatchedTransactions []model.TransactionRecord

	// Comparisons is the number of scored pairs; FailedPartitions counts
	// work units that panicked and contributed zero candidates.
	Comparisons      int
	FailedPartitions int

	// OwnersOutsideBlocks and TransactionsOutsideBlocks count records
	// whose project had no counterpart records, an accepted recall loss.
	OwnersOutsideBlocks       int
	TransactionsOutsideBlocks int
}

// task is one unit of parallel work: a chunk of owners compared against a
// read-only transaction block.
type task struct {
	owners []model.OwnerRecord
	txns   []model.TransactionRecord
}

type taskResult struct {
	candidates []model.MatchCandidate
	compared   int
	failed     bool
}

// Match blocks the residual sets by project and scores every within-block
// owner x transaction pair. Candidates below MinScore or bucketed Reject
// are dropped at source. Per-owner truncation happens only after all
// workers report back, so chunk boundaries never affect the result.
func (m *Matcher) Match(owners []model.OwnerRecord, txns []model.TransactionRecord, runID string) Result {
	var res Result
	if len(owners) == 0 || len(txns) == 0 {
		res.UnmatchedOwners = owners
		res.UnmatchedTransactions = txns
		return res
	}

	ix := block.Build(owners, txns)
	res.OwnersOutsideBlocks = ix.OwnersWithoutBlock
	res.TransactionsOutsideBlocks = ix.TransactionsWithoutBlock

	tasks := m.makeTasks(ix.Blocks())

	workers := m.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(tasks) && len(tasks) > 0 {
		workers = len(tasks)
	}

	taskCh := make(chan task)
	resultCh := make(chan taskResult, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				resultCh <- m.runTask(t, runID)
			}
		}()
	}

	go func() {
		for _, t := range tasks {
			taskCh <- t
		}
		close(taskCh)
		wg.Wait()
		close(resultCh)
	}()

	perOwner := make(map[string][]model.MatchCandidate)
	for tr := range resultCh {
		if tr.failed {
			res.FailedPartitions++
			continue
		}
		res.Comparisons += tr.compared
		for _, c := range tr.candidates {
			perOwner[c.OwnerID] = append(perOwner[c.OwnerID], c)
		}
	}

	acceptedTxns := make(map[string]bool)
	acceptedOwners := make(map[string]bool)

	ownerIDs := make([]string, 0, len(perOwner))
	for id := range perOwner {
		ownerIDs = append(ownerIDs, id)
	}
	sort.Strings(ownerIDs)

	for _, ownerID := range ownerIDs {
		cands := perOwner[ownerID]
		m.sortCandidates(cands)
		if len(cands) > m.MaxCandidatesPerOwner {
			cands = cands[:m.MaxCandidatesPerOwner]
		}
		for _, c := range cands {
			switch c.ConfidenceBucket {
			case model.BucketHigh, model.BucketMedium:
				res.Accepted = append(res.Accepted, c)
				acceptedOwners[c.OwnerID] = true
				acceptedTxns[c.TxnID] = true
			case model.BucketLow:
				res.ReviewCandidates = append(res.ReviewCandidates, c)
			}
		}
	}

	for _, o := range owners {
		if !acceptedOwners[o.OwnerID] {
			res.UnmatchedOwners = append(res.UnmatchedOwners, o)
		}
	}
	for _, t := range txns {
		if !acceptedTxns[t.TxnID] {
			res.UnmatchedTransactions = append(res.UnmatchedTransactions, t)
		}
	}
	return res
}

// makeTasks splits each block's owners into chunks of BatchSize. Workers
// receive read-only views; nothing is mutated after this point.
func (m *Matcher) makeTasks(blocks []block.Block) []task {
	batch := m.BatchSize
	if batch <= 0 {
		batch = 200
	}
	var tasks []task
	for _, b := range blocks {
		for start := 0; start < len(b.Owners); start += batch {
			end := start + batch
			if end > len(b.Owners) {
				end = len(b.Owners)
			}
			tasks = append(tasks, task{owners: b.Owners[start:end], txns: b.Transactions})
		}
	}
	return tasks
}

// runTask scores one chunk. A panic inside scoring is contained to the
// chunk: it is logged and the partition contributes zero candidates.
func (m *Matcher) runTask(t task, runID string) (tr taskResult) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"owners": len(t.owners),
				"error":  fmt.Sprint(r),
			}).Warn("fuzzy partition failed")
			tr = taskResult{failed: true}
		}
	}()

	for _, o := range t.owners {
		for _, txn := range t.txns {
			tr.compared++
			score, comps := m.Scorer.Score(o, txn)
			if score < m.MinScore {
				continue
			}
			bucket := m.Scorer.Bucket(score)
			if bucket == model.BucketReject {
				continue
			}
			tr.candidates = append(tr.candidates, model.MatchCandidate{
				OwnerID:          o.OwnerID,
				TxnID:            txn.TxnID,
				Method:           model.MethodTier2Fuzzy,
				Score:            score,
				ConfidenceBucket: bucket,
				ComponentScores:  comps,
				ReviewStatus:     model.ReviewPendingReview,
				PipelineRunID:    runID,
			})
		}
	}
	return tr
}

// sortCandidates orders one owner's candidates score-descending with the
// configured deterministic tie-break.
func (m *Matcher) sortCandidates(cands []model.MatchCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if m.TieBreak == "closest_area" {
			ai := cands[i].ComponentScores[model.ComponentArea]
			aj := cands[j].ComponentScores[model.ComponentArea]
			if ai != aj {
				return ai > aj
			}
		}
		return cands[i].TxnID < cands[j].TxnID
	})
}
