package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memorySaver struct {
	saved []Interview
	err   error
}

func (m *memorySaver) SaveInterview(_ context.Context, iv Interview) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, iv)
	return nil
}

func fixedReply(reply string, prompts *[]string) Generator {
	return GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		if prompts != nil {
			*prompts = append(*prompts, prompt)
		}
		return reply, nil
	})
}

func TestCreateSavesFinalizedInterview(t *testing.T) {
	var prompts []string
	saver := &memorySaver{}
	svc := NewService(fixedReply(`Here: ["Q one?", "Q two?"]`, &prompts), saver, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("X", 3600)) }

	iv, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	require.NotEmpty(t, iv.ID)
	require.Equal(t, "user-1", iv.UserID)
	require.Equal(t, []string{"Go", "Postgres", "gRPC"}, iv.Techstack)
	require.Equal(t, []string{"Q one?", "Q two?"}, iv.Questions)
	require.True(t, iv.Finalized)
	require.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), iv.CreatedAt)

	require.Len(t, prompts, 1)
	require.Equal(t, Prompt(validRequest()), prompts[0])
	require.Equal(t, []Interview{iv}, saver.saved)
}

func TestCreateFailures(t *testing.T) {
	boom := errors.New("quota exceeded")

	t.Run("missing fields never reach the generator", func(t *testing.T) {
		called := false
		svc := NewService(GeneratorFunc(func(context.Context, string) (string, error) {
			called = true
			return "", nil
		}), nil, nil)

		_, err := svc.Create(context.Background(), Request{Role: "SRE"})
		require.ErrorIs(t, err, ErrMissingFields)
		require.False(t, called)
	})

	t.Run("generator error", func(t *testing.T) {
		svc := NewService(GeneratorFunc(func(context.Context, string) (string, error) { return "", boom }), nil, nil)
		_, err := svc.Create(context.Background(), validRequest())
		require.ErrorIs(t, err, boom)
		require.NotErrorIs(t, err, ErrUnparseable)
	})

	t.Run("unparseable reply is not saved", func(t *testing.T) {
		saver := &memorySaver{}
		svc := NewService(fixedReply("I cannot help with that.", nil), saver, nil)

		_, err := svc.Create(context.Background(), validRequest())
		require.ErrorIs(t, err, ErrUnparseable)
		require.Empty(t, saver.saved)
	})

	t.Run("save error", func(t *testing.T) {
		svc := NewService(fixedReply(`["Q?"]`, nil), &memorySaver{err: boom}, nil)
		_, err := svc.Create(context.Background(), validRequest())
		require.ErrorIs(t, err, boom)
		require.Contains(t, err.Error(), "save interview")
	})
}
