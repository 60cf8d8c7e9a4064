// Package feedback is the client side of the feedback submission gateway.
package feedback

import (
	"context"
	"errors"

	"github.com/rbright/parley/internal/transcript"
)

// ErrRejected indicates the gateway answered but did not produce feedback.
var ErrRejected = errors.New("feedback gateway rejected submission")

// Submission is one finished interview handed to the gateway.
type Submission struct {
	InterviewID string
	CandidateID string
	Transcript  []transcript.Entry
	// FeedbackID is set when an earlier feedback document should be replaced.
	FeedbackID string
}

// Result is the gateway outcome.
type Result struct {
	Success    bool
	FeedbackID string
}

// Submitter accepts finished transcripts.
type Submitter interface {
	Submit(context.Context, Submission) (Result, error)
}

// SubmitFunc adapts a function to the Submitter interface.
type SubmitFunc func(context.Context, Submission) (Result, error)

func (f SubmitFunc) Submit(ctx context.Context, s Submission) (Result, error) {
	return f(ctx, s)
}

// Unavailable is the Submitter used when no gateway is configured.
type Unavailable struct{}

func (Unavailable) Submit(context.Context, Submission) (Result, error) {
	return Result{}, errors.New("feedback gateway not configured")
}
