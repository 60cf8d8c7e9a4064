package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/interview"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/transcript"
)

// getTestDB skips when DATABASE_URL is not set.
func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, db.Ping(ctx))
	return db
}

func TestRecordUpsertsCallAndUtterances(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	started := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)
	rec := session.Record{
		CallID:      uuid.NewString(),
		Mode:        session.ModeInterview,
		CandidateID: "cand-1",
		InterviewID: "iv-1",
		State:       fsm.StateFailed,
		Failure:     &failure.Reason{Kind: failure.KindChannelError, Detail: "ejected"},
		Transcript: []transcript.Entry{
			{Speaker: transcript.SpeakerAgent, Text: "Hello"},
		},
		StartedAt: started,
		EndedAt:   started.Add(10 * time.Second),
	}
	require.NoError(t, s.Record(ctx, rec))

	rec.State = fsm.StateFinished
	rec.Failure = nil
	rec.FeedbackID = "fb-1"
	rec.Destination = session.DestinationFeedback
	rec.Transcript = append(rec.Transcript, transcript.Entry{Speaker: transcript.SpeakerCandidate, Text: "Hi"})
	require.NoError(t, s.Record(ctx, rec))

	calls, err := s.RecentCalls(ctx, 50)
	require.NoError(t, err)

	var got *CallSummary
	for i := range calls {
		if calls[i].ID == rec.CallID {
			got = &calls[i]
		}
	}
	require.NotNil(t, got)
	require.Equal(t, "finished", got.State)
	require.Empty(t, got.FailureKind)
	require.Equal(t, "fb-1", got.FeedbackID)
	require.Equal(t, "feedback", got.Destination)
	require.Equal(t, 2, got.Utterances)
}

func TestRecordRequiresCallID(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	err := New(db).Record(context.Background(), session.Record{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no call id")
}

func TestSaveAndLoadInterview(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	iv := interview.Interview{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		Role:      "Backend Engineer",
		Type:      "technical",
		Level:     "senior",
		Techstack: []string{"Go", "Postgres"},
		Questions: []string{"Why Go?", "How do you index a jsonb column?"},
		Finalized: true,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.SaveInterview(ctx, iv))

	got, err := s.Interview(ctx, iv.ID)
	require.NoError(t, err)
	require.Equal(t, iv.Questions, got.Questions)
	require.Equal(t, iv.Techstack, got.Techstack)
	require.True(t, got.CreatedAt.Equal(iv.CreatedAt))

	_, err = s.Interview(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	require.EqualError(t, s.SaveInterview(ctx, interview.Interview{}), "interview has no id")
}
