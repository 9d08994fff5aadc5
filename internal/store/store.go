// Package store persists pipeline runs, match candidates and review
// decisions to Postgres. Persistence is optional: the pipeline runs
// entirely from files when no DSN is configured.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/EmPi44/csv-matching/internal/model"
)

// Store wraps the database connection.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &Store{db: db}, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS match_run (
			run_id           text PRIMARY KEY,
			run_started_at   timestamptz NOT NULL,
			run_completed_at timestamptz,
			total_owners     integer NOT NULL DEFAULT 0,
			total_txns       integer NOT NULL DEFAULT 0,
			total_matches    integer NOT NULL DEFAULT 0,
			tier1_matches    integer NOT NULL DEFAULT 0,
			tier2_matches    integer NOT NULL DEFAULT 0,
			notes            text NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS match_result (
			result_id        bigserial PRIMARY KEY,
			run_id           text NOT NULL REFERENCES match_run(run_id),
			owner_id         text NOT NULL,
			txn_id           text NOT NULL,
			method           text NOT NULL,
			score            double precision NOT NULL,
			confidence_bucket text NOT NULL,
			component_scores jsonb,
			review_status    text NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS match_accepted (
			owner_id   text PRIMARY KEY,
			txn_id     text NOT NULL,
			method     text NOT NULL,
			score      double precision NOT NULL,
			run_id     text NOT NULL REFERENCES match_run(run_id),
			accepted_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS review_decision (
			owner_id      text NOT NULL,
			txn_id        text NOT NULL,
			review_status text NOT NULL,
			reviewer      text NOT NULL DEFAULT '',
			decided_at    timestamptz,
			notes         text NOT NULL DEFAULT '',
			PRIMARY KEY (owner_id, txn_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// CreateRun records a new pipeline run.
func (s *Store) CreateRun(runID, notes string) error {
	_, err := s.db.Exec(`
		INSERT INTO match_run (run_id, run_started_at, notes)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO NOTHING
	`, runID, time.Now(), notes)
	if err != nil {
		return fmt.Errorf("failed to create match run: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished with its headline statistics.
func (s *Store) CompleteRun(runID string, totalOwners, totalTxns, totalMatches, tier1, tier2 int) error {
	_, err := s.db.Exec(`
		UPDATE match_run
		SET run_completed_at = $1, total_owners = $2, total_txns = $3,
		    total_matches = $4, tier1_matches = $5, tier2_matches = $6
		WHERE run_id = $7
	`, time.Now(), totalOwners, totalTxns, totalMatches, tier1, tier2, runID)
	if err != nil {
		return fmt.Errorf("failed to complete match run: %w", err)
	}
	return nil
}

// SaveResults bulk-inserts candidate results for a run.
func (s *Store) SaveResults(runID string, candidates []model.MatchCandidate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO match_result (
			run_id, owner_id, txn_id, method, score, confidence_bucket,
			component_scores, review_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		comps, err := json.Marshal(c.ComponentScores)
		if err != nil {
			return fmt.Errorf("failed to marshal component scores: %w", err)
		}
		if _, err := stmt.Exec(runID, c.OwnerID, c.TxnID, c.Method, c.Score,
			string(c.ConfidenceBucket), comps, c.ReviewStatus); err != nil {
			return fmt.Errorf("failed to insert match result: %w", err)
		}
	}
	return tx.Commit()
}

// SaveAccepted upserts the final accepted match per owner. The primary key
// on owner_id enforces the one-accepted-match invariant at the storage
// layer too.
func (s *Store) SaveAccepted(runID string, matches []model.MatchCandidate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO match_accepted (owner_id, txn_id, method, score, run_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			txn_id = EXCLUDED.txn_id,
			method = EXCLUDED.method,
			score = EXCLUDED.score,
			run_id = EXCLUDED.run_id,
			accepted_at = now()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range matches {
		if _, err := stmt.Exec(c.OwnerID, c.TxnID, c.Method, c.Score, runID); err != nil {
			return fmt.Errorf("failed to upsert accepted match: %w", err)
		}
	}
	return tx.Commit()
}

// SaveDecisions upserts applied review decisions. Re-saving the same
// decision set is a no-op, matching the reconciler's idempotency.
func (s *Store) SaveDecisions(decisions []model.ReviewDecision) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO review_decision (owner_id, txn_id, review_status, reviewer, decided_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, txn_id) DO UPDATE SET
			review_status = EXCLUDED.review_status,
			reviewer = EXCLUDED.reviewer,
			decided_at = EXCLUDED.decided_at,
			notes = EXCLUDED.notes
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		var decidedAt *time.Time
		if !d.Timestamp.IsZero() {
			decidedAt = &d.Timestamp
		}
		if _, err := stmt.Exec(d.OwnerID, d.TxnID, d.ReviewStatus, d.Reviewer, decidedAt, d.Notes); err != nil {
			return fmt.Errorf("failed to upsert review decision: %w", err)
		}
	}
	return tx.Commit()
}
