// Package store keeps a Postgres log of call attempts and their transcripts.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rbright/parley/internal/interview"
	"github.com/rbright/parley/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS parley_calls (
	id           TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	candidate_id TEXT NOT NULL DEFAULT '',
	interview_id TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	failure_kind TEXT,
	failure      TEXT,
	feedback_id  TEXT,
	destination  TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS parley_utterances (
	call_id  TEXT NOT NULL REFERENCES parley_calls(id) ON DELETE CASCADE,
	sequence INT  NOT NULL,
	speaker  TEXT NOT NULL,
	text     TEXT NOT NULL,
	PRIMARY KEY (call_id, sequence)
);

CREATE TABLE IF NOT EXISTS parley_interviews (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	type       TEXT NOT NULL,
	level      TEXT NOT NULL,
	techstack  TEXT[] NOT NULL,
	questions  TEXT[] NOT NULL,
	finalized  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);
`

// ErrNotFound is returned for a missing row.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Open connects, pings, and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Record upserts the call row and replaces its utterances in one transaction.
func (s *Store) Record(ctx context.Context, rec session.Record) error {
	if rec.CallID == "" {
		return errors.New("record has no call id")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var failureKind, failureDetail *string
	if rec.Failure != nil {
		kind := string(rec.Failure.Kind)
		failureKind, failureDetail = &kind, &rec.Failure.Detail
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO parley_calls (id, mode, candidate_id, interview_id, state, failure_kind, failure, feedback_id, destination, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			failure_kind = EXCLUDED.failure_kind,
			failure = EXCLUDED.failure,
			feedback_id = EXCLUDED.feedback_id,
			destination = EXCLUDED.destination,
			ended_at = EXCLUDED.ended_at
	`, rec.CallID, string(rec.Mode), rec.CandidateID, rec.InterviewID, string(rec.State),
		failureKind, failureDetail, nullable(rec.FeedbackID), nullable(string(rec.Destination)),
		rec.StartedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("upsert call: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM parley_utterances WHERE call_id = $1`, rec.CallID)
	for i, entry := range rec.Transcript {
		batch.Queue(`
			INSERT INTO parley_utterances (call_id, sequence, speaker, text)
			VALUES ($1, $2, $3, $4)
		`, rec.CallID, i, string(entry.Speaker), entry.Text)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert utterances: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CallSummary is one row of the call log.
type CallSummary struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	CandidateID string    `json:"candidate_id,omitempty"`
	InterviewID string    `json:"interview_id,omitempty"`
	State       string    `json:"state"`
	FailureKind string    `json:"failure_kind,omitempty"`
	FeedbackID  string    `json:"feedback_id,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Utterances  int       `json:"utterances"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// RecentCalls lists the newest calls first.
func (s *Store) RecentCalls(ctx context.Context, limit int) ([]CallSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.mode, c.candidate_id, c.interview_id, c.state,
		       COALESCE(c.failure_kind, ''), COALESCE(c.feedback_id, ''), COALESCE(c.destination, ''),
		       (SELECT COUNT(*) FROM parley_utterances u WHERE u.call_id = c.id),
		       c.started_at, c.ended_at
		FROM parley_calls c
		ORDER BY c.started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	out := make([]CallSummary, 0, limit)
	for rows.Next() {
		var c CallSummary
		if err := rows.Scan(&c.ID, &c.Mode, &c.CandidateID, &c.InterviewID, &c.State,
			&c.FailureKind, &c.FeedbackID, &c.Destination, &c.Utterances, &c.StartedAt, &c.EndedAt); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveInterview stores a generated question set.
func (s *Store) SaveInterview(ctx context.Context, iv interview.Interview) error {
	if iv.ID == "" {
		return errors.New("interview has no id")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO parley_interviews (id, user_id, role, type, level, techstack, questions, finalized, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, iv.ID, iv.UserID, iv.Role, iv.Type, iv.Level, iv.Techstack, iv.Questions, iv.Finalized, iv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

// Interview loads one stored question set.
func (s *Store) Interview(ctx context.Context, id string) (interview.Interview, error) {
	var iv interview.Interview
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, role, type, level, techstack, questions, finalized, created_at
		FROM parley_interviews WHERE id = $1
	`, id).Scan(&iv.ID, &iv.UserID, &iv.Role, &iv.Type, &iv.Level, &iv.Techstack, &iv.Questions, &iv.Finalized, &iv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return interview.Interview{}, fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return interview.Interview{}, fmt.Errorf("load interview: %w", err)
	}
	return iv, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
