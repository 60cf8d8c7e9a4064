package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/feedback"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/metrics"
	"github.com/rbright/parley/internal/transcript"
)

// Destination is where the host should go once a call finishes.
type Destination string

const (
	DestinationHome     Destination = "home"
	DestinationFeedback Destination = "feedback"
)

// Navigator receives the terminal navigation signal.
type Navigator interface {
	NavigateHome()
	NavigateToFeedback(feedbackID string)
}

type discardNavigator struct{}

func (discardNavigator) NavigateHome()             {}
func (discardNavigator) NavigateToFeedback(string) {}

// Record is the persisted outcome of one call attempt.
type Record struct {
	CallID      string
	Mode        Mode
	CandidateID string
	InterviewID string
	State       fsm.State
	Failure     *failure.Reason
	FeedbackID  string
	Destination Destination
	Transcript  []transcript.Entry
	StartedAt   time.Time
	EndedAt     time.Time
}

// Recorder persists call outcomes.
type Recorder interface {
	Record(context.Context, Record) error
}

// Reporter forwards faults to an error tracker.
type Reporter interface {
	Report(callID string, reason failure.Reason)
}

// settle runs the terminal action once, on the first loop pass that
// observes finished for the current call.
func (c *Controller) settle(ctx context.Context) {
	if c.State() != fsm.StateFinished {
		return
	}

	c.mu.Lock()
	cl := c.current
	if cl == nil || cl.settled {
		c.mu.Unlock()
		return
	}
	cl.settled = true
	entries, err := cl.acc.Drain()
	cl.final = entries
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("transcript drain failed", "call_id", cl.id, "error", err.Error())
		return
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.submitTimeout)
	defer cancel()

	dest, feedbackID := c.terminalAction(sctx, cl, entries)

	c.mu.Lock()
	cl.destination = dest
	cl.feedbackID = feedbackID
	c.mu.Unlock()

	metrics.IncTerminalAction(string(dest))
	c.logger.Info("call settled",
		"call_id", cl.id,
		"mode", string(cl.sc.Mode),
		"destination", string(dest),
		"feedback_id", feedbackID,
		"entries", len(entries),
	)

	switch dest {
	case DestinationFeedback:
		c.navigator.NavigateToFeedback(feedbackID)
	default:
		c.navigator.NavigateHome()
	}
	c.recordCall(sctx, cl, entries)
}

// terminalAction decides the destination and, for interviews, performs the
// single gateway submission.
func (c *Controller) terminalAction(ctx context.Context, cl *call, entries []transcript.Entry) (Destination, string) {
	if cl.diagnostic || cl.sc.Mode != ModeInterview {
		return DestinationHome, ""
	}

	if strings.TrimSpace(cl.sc.InterviewID) == "" || strings.TrimSpace(cl.sc.CandidateID) == "" {
		metrics.IncSubmission("skipped")
		c.logger.Warn("feedback not submitted: interview or candidate id missing", "call_id", cl.id)
		return DestinationHome, ""
	}

	result, err := c.gateway.Submit(ctx, feedback.Submission{
		InterviewID: cl.sc.InterviewID,
		CandidateID: cl.sc.CandidateID,
		Transcript:  entries,
		FeedbackID:  cl.sc.FeedbackID,
	})
	switch {
	case errors.Is(err, feedback.ErrRejected):
		metrics.IncSubmission("rejected")
		c.logger.Warn("feedback gateway rejected submission", "call_id", cl.id)
		return DestinationHome, ""
	case err != nil:
		metrics.IncSubmission("error")
		c.logger.Error("feedback submission failed", "call_id", cl.id, "error", err.Error())
		return DestinationHome, ""
	case !result.Success || strings.TrimSpace(result.FeedbackID) == "":
		metrics.IncSubmission("rejected")
		c.logger.Warn("feedback gateway returned no feedback id", "call_id", cl.id)
		return DestinationHome, ""
	}

	metrics.IncSubmission("success")
	return DestinationFeedback, result.FeedbackID
}

// record persists a failed attempt.
func (c *Controller) record(ctx context.Context) {
	c.mu.RLock()
	cl := c.current
	c.mu.RUnlock()
	if cl == nil {
		return
	}
	c.recordCall(ctx, cl, cl.acc.Entries())
}

func (c *Controller) recordCall(ctx context.Context, cl *call, entries []transcript.Entry) {
	if c.recorder == nil {
		return
	}

	c.mu.RLock()
	rec := Record{
		CallID:      cl.id,
		Mode:        cl.sc.Mode,
		CandidateID: cl.sc.CandidateID,
		InterviewID: cl.sc.InterviewID,
		State:       c.state,
		FeedbackID:  cl.feedbackID,
		Destination: cl.destination,
		Transcript:  entries,
		StartedAt:   cl.startedAt,
		EndedAt:     time.Now(),
	}
	if c.reason != nil {
		r := *c.reason
		rec.Failure = &r
	}
	c.mu.RUnlock()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.recorder.Record(rctx, rec); err != nil {
		c.logger.Warn("call record not stored", "call_id", cl.id, "error", err.Error())
	}
}
