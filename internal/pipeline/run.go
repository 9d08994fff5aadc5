// Package pipeline orchestrates the full matching run: load and normalize
// both sources, run the deterministic and fuzzy tiers, merge review
// decisions, aggregate the final match set and write every artifact.
// Data flows strictly forward; no stage reaches back into a previous one.
package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/EmPi44/csv-matching/internal/config"
	"github.com/EmPi44/csv-matching/internal/model"
	"github.com/EmPi44/csv-matching/internal/normalize"
	"github.com/EmPi44/csv-matching/internal/report"
	"github.com/EmPi44/csv-matching/internal/review"
	"github.com/EmPi44/csv-matching/internal/similarity"
	"github.com/EmPi44/csv-matching/internal/store"
	"github.com/EmPi44/csv-matching/internal/tabular"
	"github.com/EmPi44/csv-matching/internal/tier1"
	"github.com/EmPi44/csv-matching/internal/tier2"
)

// Options describes one pipeline run.
type Options struct {
	OwnersPath       string
	TransactionsPath string
	Config           *config.Config
	RunID            string

	// OutputDir and ReviewDir override the configured directories when
	// non-empty.
	OutputDir string
	ReviewDir string

	// DecisionsPath forces a specific decision file; otherwise the newest
	// decisions_*.csv in the review directory is used.
	DecisionsPath string

	// Store receives run/match/decision rows when non-nil.
	Store *store.Store
}

// Result carries the run summary and artifact locations.
type Result struct {
	Summary     report.Summary
	MatchesPath string
	ReportPath  string
}

// NewRunID generates a sortable, unique pipeline run identifier.
func NewRunID() string {
	return time.Now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// Run executes the full pipeline. Schema validation failures abort before
// any matching; every other failure class is contained and reported, and
// the QA report is written even for degraded runs.
func Run(opts Options) (*Result, error) {
	cfg := opts.Config
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID()
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = cfg.Pipeline.OutputDir
	}
	reviewDir := opts.ReviewDir
	if reviewDir == "" {
		reviewDir = cfg.Pipeline.ReviewDir
	}

	log := logrus.WithField("run_id", runID)
	log.WithFields(logrus.Fields{
		"owners":       opts.OwnersPath,
		"transactions": opts.TransactionsPath,
	}).Info("starting matching pipeline")

	// Load and normalize. A missing required column is fatal here, before
	// any matching begins.
	ownerRows, err := tabular.ReadSource(opts.OwnersPath, cfg.OwnerColumns(), config.RequiredOwnerFields)
	if err != nil {
		return nil, fmt.Errorf("owners source: %w", err)
	}
	txnRows, err := tabular.ReadSource(opts.TransactionsPath, cfg.TransactionColumns(), config.RequiredTransactionFields)
	if err != nil {
		return nil, fmt.Errorf("transactions source: %w", err)
	}

	norm := normalize.New(nil)
	norm.SqftThreshold = cfg.Matching.SqftThreshold

	ownerRes := norm.Owners(rawOwners(ownerRows), cfg.Matching.PropertyType)
	txnRes := norm.Transactions(rawTransactions(txnRows), cfg.Matching.PropertyType)

	ownerInfo := sourceInfoOwners("owners", len(ownerRows), ownerRes)
	txnInfo := sourceInfoTransactions("transactions", len(txnRows), txnRes)

	log.WithFields(logrus.Fields{
		"owners":       len(ownerRes.Records),
		"transactions": len(txnRes.Records),
	}).Info("normalization complete")

	if opts.Store != nil {
		if err := opts.Store.CreateRun(runID, ""); err != nil {
			log.WithError(err).Warn("failed to record run in store")
		}
	}

	// Tier 1.
	t1 := tier1.New()
	t1.AreaTolerancePct = cfg.Matching.AreaTolerancePct
	t1.TieBreak = cfg.Matching.Tier1TieBreak
	t1Res := t1.Match(ownerRes.Records, txnRes.Records, runID)
	log.WithFields(logrus.Fields{
		"matches":           len(t1Res.Matches),
		"unmatched_owners":  len(t1Res.UnmatchedOwners),
		"area_rejected":     t1Res.AreaRejected,
		"multi_key_matches": t1Res.MultiMatched,
	}).Info("tier 1 deterministic matching complete")

	// Tier 2 on the residuals.
	measure, err := similarity.ForName(cfg.Matching.Similarity)
	if err != nil {
		return nil, err
	}
	scorer := tier2.NewScorer(
		tier2.Weights(cfg.Matching.Weights),
		tier2.Thresholds(cfg.Matching.Thresholds),
		measure,
		cfg.Matching.AreaDecayPct,
	)
	t2 := tier2.NewMatcher(scorer)
	t2.MinScore = cfg.Matching.MinScore
	t2.MaxCandidatesPerOwner = cfg.Matching.MaxCandidatesPerOwner
	t2.TieBreak = cfg.Matching.Tier2TieBreak
	t2.Workers = cfg.Pipeline.Workers
	t2.BatchSize = cfg.Pipeline.BatchSize
	t2Res := t2.Match(t1Res.UnmatchedOwners, t1Res.UnmatchedTransactions, runID)
	log.WithFields(logrus.Fields{
		"accepted":          len(t2Res.Accepted),
		"review_candidates": len(t2Res.ReviewCandidates),
		"comparisons":       t2Res.Comparisons,
		"failed_partitions": t2Res.FailedPartitions,
	}).Info("tier 2 fuzzy matching complete")

	ownersByID := ownerMap(ownerRes.Records)
	txnsByID := txnMap(txnRes.Records)

	// Export Low bucket candidates for human review.
	pairsPath := filepath.Join(reviewDir, "pairs.csv")
	exported, err := review.ExportCandidates(t2Res.ReviewCandidates, ownersByID, txnsByID, pairsPath)
	if err != nil {
		return nil, err
	}
	if exported > 0 {
		log.WithFields(logrus.Fields{"count": exported, "path": pairsPath}).
			Info("exported review candidates")
	}

	// Merge review decisions as a point-in-time snapshot.
	var decisions []model.ReviewDecision
	decisionsPath := opts.DecisionsPath
	if decisionsPath != "" {
		decisions, err = review.LoadDecisions(decisionsPath)
		if err != nil {
			return nil, err
		}
	} else {
		decisionsPath, decisions, err = review.LatestDecisions(reviewDir)
		if err != nil {
			return nil, err
		}
	}
	if len(decisions) > 0 {
		log.WithFields(logrus.Fields{"count": len(decisions), "path": decisionsPath}).
			Info("applying review decisions")
	}
	recRes := review.Reconcile(t2Res.ReviewCandidates, decisions)

	// Aggregate and enforce the one-accepted-match-per-owner invariant.
	tier2Final := append(append([]model.MatchCandidate{}, t2Res.Accepted...), recRes.Candidates...)
	final, warnings := report.Aggregate(t1Res.Matches, tier2Final)
	if recRes.Unknown > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d review decisions referenced no known candidate and were ignored", recRes.Unknown))
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	unmatchedOwners, unmatchedTxns := residuals(ownerRes.Records, txnRes.Records, final)

	// Write artifacts.
	matchesPath := filepath.Join(outputDir, "matches.csv")
	if err := report.WriteMatches(matchesPath, final); err != nil {
		return nil, err
	}
	if err := report.WriteUnmatchedOwners(filepath.Join(outputDir, "owners_unmatched.csv"), unmatchedOwners); err != nil {
		return nil, err
	}
	if err := report.WriteUnmatchedTransactions(filepath.Join(outputDir, "transactions_unmatched.csv"), unmatchedTxns); err != nil {
		return nil, err
	}
	if exported > 0 || len(decisions) > 0 {
		if err := review.WriteSummary(filepath.Join(reviewDir, "summary.md"), exported, decisions); err != nil {
			return nil, err
		}
	}

	summary := report.BuildSummary(runID, final, ownerInfo, txnInfo)
	summary.UnmatchedOwners = len(unmatchedOwners)
	summary.UnmatchedTransactions = len(unmatchedTxns)
	summary.ReviewExported = exported
	summary.ReviewApproved = recRes.Approved
	summary.ReviewRejected = recRes.Rejected
	summary.ReviewUnknown = recRes.Unknown
	summary.ReviewDecisions = len(decisions)
	summary.Comparisons = t2Res.Comparisons
	summary.FailedPartitions = t2Res.FailedPartitions
	summary.ConsistencyWarnings = warnings

	reportPath := filepath.Join(outputDir, "qa_report.md")
	if err := report.WriteQAReport(reportPath, summary); err != nil {
		return nil, err
	}

	if opts.Store != nil {
		persistRun(log, opts.Store, runID, summary, tier2Final, t1Res.Matches, final, decisions)
	}

	log.WithFields(logrus.Fields{
		"matches":    summary.TotalMatches,
		"match_rate": fmt.Sprintf("%.1f%%", summary.OwnerMatchRate*100),
	}).Info("pipeline complete")

	return &Result{Summary: summary, MatchesPath: matchesPath, ReportPath: reportPath}, nil
}

// persistRun writes run artifacts to the store. Store failures degrade to
// warnings: the file outputs are already on disk and remain the source of
// truth.
func persistRun(
	log *logrus.Entry,
	st *store.Store,
	runID string,
	summary report.Summary,
	tier2Final, tier1Matches, final []model.MatchCandidate,
	decisions []model.ReviewDecision,
) {
	all := append(append([]model.MatchCandidate{}, tier1Matches...), tier2Final...)
	if err := st.SaveResults(runID, all); err != nil {
		log.WithError(err).Warn("failed to persist match results")
	}
	if err := st.SaveAccepted(runID, final); err != nil {
		log.WithError(err).Warn("failed to persist accepted matches")
	}
	if len(decisions) > 0 {
		if err := st.SaveDecisions(decisions); err != nil {
			log.WithError(err).Warn("failed to persist review decisions")
		}
	}
	if err := st.CompleteRun(runID, summary.Owners.Normalized, summary.Transactions.Normalized,
		summary.TotalMatches, summary.Tier1Matches, summary.Tier2Matches); err != nil {
		log.WithError(err).Warn("failed to complete run in store")
	}
}

// residuals computes the unmatched complements against the final match
// set: a record is unmatched exactly when it is absent from matches.csv.
func residuals(
	owners []model.OwnerRecord,
	txns []model.TransactionRecord,
	final []model.MatchCandidate,
) ([]model.OwnerRecord, []model.TransactionRecord) {
	matchedOwners := make(map[string]bool, len(final))
	matchedTxns := make(map[string]bool, len(final))
	for _, c := range final {
		matchedOwners[c.OwnerID] = true
		matchedTxns[c.TxnID] = true
	}

	var uo []model.OwnerRecord
	for _, o := range owners {
		if !matchedOwners[o.OwnerID] {
			uo = append(uo, o)
		}
	}
	var ut []model.TransactionRecord
	for _, t := range txns {
		if !matchedTxns[t.TxnID] {
			ut = append(ut, t)
		}
	}
	return uo, ut
}

func rawOwners(rows []tabular.Row) []normalize.RawOwner {
	raws := make([]normalize.RawOwner, 0, len(rows))
	for _, r := range rows {
		raws = append(raws, normalize.RawOwner{
			OwnerID:   r["owner_id"],
			Project:   r["project"],
			Building:  r["building"],
			Unit:      r["unit"],
			Plot:      r["plot"],
			Area:      r["area"],
			OwnerName: r["owner_name"],
			PartyType: r["party_type"],
		})
	}
	return raws
}

func rawTransactions(rows []tabular.Row) []normalize.RawTransaction {
	raws := make([]normalize.RawTransaction, 0, len(rows))
	for _, r := range rows {
		raws = append(raws, normalize.RawTransaction{
			TxnID:    r["txn_id"],
			Project:  r["project"],
			Building: r["building"],
			Unit:     r["unit"],
			Plot:     r["plot"],
			Area:     r["area"],
		})
	}
	return raws
}

func ownerMap(owners []model.OwnerRecord) map[string]model.OwnerRecord {
	m := make(map[string]model.OwnerRecord, len(owners))
	for _, o := range owners {
		m[o.OwnerID] = o
	}
	return m
}

func txnMap(txns []model.TransactionRecord) map[string]model.TransactionRecord {
	m := make(map[string]model.TransactionRecord, len(txns))
	for _, t := range txns {
		m[t.TxnID] = t
	}
	return m
}

func sourceInfoOwners(name string, rawRows int, res normalize.OwnerResult) report.SourceInfo {
	info := report.SourceInfo{
		Name:          name,
		RawRows:       rawRows,
		Normalized:    len(res.Records),
		Dropped:       res.Dropped,
		ValueWarnings: res.ValueWarnings,
	}
	areas := make([]float64, 0, len(res.Records))
	for _, r := range res.Records {
		areas = append(areas, r.AreaSqm)
	}
	info.AreaMin, info.AreaMax, info.AreaMean = areaStats(areas)
	return info
}

func sourceInfoTransactions(name string, rawRows int, res normalize.TransactionResult) report.SourceInfo {
	info := report.SourceInfo{
		Name:          name,
		RawRows:       rawRows,
		Normalized:    len(res.Records),
		Dropped:       res.Dropped,
		ValueWarnings: res.ValueWarnings,
	}
	areas := make([]float64, 0, len(res.Records))
	for _, r := range res.Records {
		areas = append(areas, r.AreaSqm)
	}
	info.AreaMin, info.AreaMax, info.AreaMean = areaStats(areas)
	return info
}

func areaStats(areas []float64) (min, max, mean float64) {
	if len(areas) == 0 {
		return 0, 0, 0
	}
	min, max = areas[0], areas[0]
	sum := 0.0
	for _, a := range areas {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
		sum += a
	}
	return min, max, sum / float64(len(areas))
}
