package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/transcript"
)

// Snapshot is a point-in-time view for hosts and status queries.
type Snapshot struct {
	CallID      string
	Mode        Mode
	State       fsm.State
	Failure     *failure.Reason
	Latest      string
	Speaking    bool
	Entries     int
	FeedbackID  string
	Destination Destination
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{State: c.state}
	if c.reason != nil {
		r := *c.reason
		snap.Failure = &r
	}
	if cl := c.current; cl != nil {
		snap.CallID = cl.id
		snap.Mode = cl.sc.Mode
		snap.Speaking = cl.speaking && fsm.InCall(c.state)
		snap.Latest = cl.latest()
		snap.Entries = cl.count()
		snap.FeedbackID = cl.feedbackID
		snap.Destination = cl.destination
	}
	return snap
}

// Transcript returns a copy of the entries kept so far for the current call.
func (c *Controller) Transcript() []transcript.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	if c.current.acc.Drained() {
		return slices.Clone(c.current.final)
	}
	return c.current.acc.Entries()
}

// count and latest read the drained transcript once the call has settled.
func (cl *call) count() int {
	if cl.acc.Drained() {
		return len(cl.final)
	}
	return cl.acc.Len()
}

func (cl *call) latest() string {
	if !cl.acc.Drained() {
		return cl.acc.Latest()
	}
	if n := len(cl.final); n > 0 {
		return cl.final[n-1].Text
	}
	return ""
}

// Handle serves IPC commands from other parley invocations.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.respond(nil, "status")
	case ipc.CommandStop:
		if !fsm.InCall(c.State()) {
			return c.respond(fmt.Errorf("cannot stop from state %s", c.State()), "")
		}
		return c.respond(c.RequestStop(ctx), "stop requested")
	case ipc.CommandReset:
		return c.respond(c.Retry(ctx), "reset to idle")
	case ipc.CommandRetry:
		c.mu.RLock()
		last := c.lastSC
		c.mu.RUnlock()
		if last == nil {
			return c.respond(errors.New("no previous call to retry"), "")
		}
		if err := c.Retry(ctx); err != nil {
			return c.respond(err, "")
		}
		return c.respond(c.RequestStart(ctx, *last), "call restarted")
	default:
		return c.respond(fmt.Errorf("unknown command: %s", req.Command), "")
	}
}

func (c *Controller) respond(err error, message string) ipc.Response {
	snap := c.Snapshot()
	resp := ipc.Response{
		OK:    err == nil,
		State: string(snap.State),
		Call: &ipc.CallStatus{
			ID:         snap.CallID,
			Mode:       string(snap.Mode),
			Latest:     snap.Latest,
			Speaking:   snap.Speaking,
			Entries:    snap.Entries,
			FeedbackID: snap.FeedbackID,
		},
	}
	if snap.Failure != nil {
		resp.Call.FailureKind = string(snap.Failure.Kind)
		resp.Call.Failure = snap.Failure.Message()
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Message = message
	return resp
}
