package feedback

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rbright/parley/internal/transcript"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startGateway(t *testing.T, impl Submitter) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterServer(srv, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := NewClient(ClientConfig{
		Endpoint: "passthrough:///bufnet",
		Timeout:  2 * time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSubmitRoundTripsTranscript(t *testing.T) {
	var got Submission
	client := startGateway(t, SubmitFunc(func(_ context.Context, s Submission) (Result, error) {
		got = s
		return Result{Success: true, FeedbackID: "fb-9"}, nil
	}))

	want := Submission{
		InterviewID: "iv-1",
		CandidateID: "u-1",
		FeedbackID:  "fb-old",
		Transcript: []transcript.Entry{
			{Speaker: transcript.SpeakerAgent, Text: "Hi"},
			{Speaker: transcript.SpeakerCandidate, Text: "Hello"},
		},
	}
	result, err := client.Submit(context.Background(), want)
	require.NoError(t, err)
	require.Equal(t, Result{Success: true, FeedbackID: "fb-9"}, result)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("server submission mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitSuccessFalseIsRejected(t *testing.T) {
	client := startGateway(t, SubmitFunc(func(context.Context, Submission) (Result, error) {
		return Result{Success: false}, nil
	}))

	result, err := client.Submit(context.Background(), Submission{InterviewID: "iv", CandidateID: "u"})
	require.ErrorIs(t, err, ErrRejected)
	require.False(t, result.Success)
}

func TestSubmitPropagatesServerError(t *testing.T) {
	client := startGateway(t, SubmitFunc(func(context.Context, Submission) (Result, error) {
		return Result{}, status.Error(codes.Unavailable, "model offline")
	}))

	_, err := client.Submit(context.Background(), Submission{InterviewID: "iv", CandidateID: "u"})
	require.Error(t, err)
	require.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
	require.Contains(t, err.Error(), "model offline")
}

func TestWaitReadyAgainstBufconn(t *testing.T) {
	client := startGateway(t, Unavailable{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.WaitReady(ctx))
}

func TestNewClientRejectsEmptyEndpoint(t *testing.T) {
	_, err := NewClient(ClientConfig{Endpoint: "  "})
	require.ErrorContains(t, err, "endpoint is empty")
}
