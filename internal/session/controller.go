// Package session owns the lifecycle of one voice interview call: guards,
// channel commands, transcript accumulation, and the terminal action.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/feedback"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/metrics"
	"github.com/rbright/parley/internal/transcript"
	"github.com/rbright/parley/internal/voice"
)

var (
	// ErrNotIdle is returned when a start is requested outside idle.
	ErrNotIdle = errors.New("a call is already in progress")
	// ErrNotFailed is returned when a retry is requested outside failed.
	ErrNotFailed = errors.New("no failed call to retry")
	// ErrStopped is returned once Run has exited.
	ErrStopped = errors.New("session controller stopped")
	// ErrAlreadyRunning is returned by a second Run call.
	ErrAlreadyRunning = errors.New("session controller already running")
	// ErrChannelClosed is returned by Run when the channel closes the subscription.
	ErrChannelClosed = errors.New("voice channel closed")
)

const defaultSubmitTimeout = 30 * time.Second

// InputProbe checks audio input availability before a call starts.
type InputProbe interface {
	Check(context.Context) error
}

// InputProbeFunc adapts a function to InputProbe.
type InputProbeFunc func(context.Context) error

func (f InputProbeFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// Options wires a Controller. Channel is required; everything else has a
// usable default.
type Options struct {
	Logger      *slog.Logger
	Channel     voice.Channel
	Gateway     feedback.Submitter
	Input       InputProbe
	Navigator   Navigator
	Recorder    Recorder
	Reporter    Reporter
	Credentials Credentials

	// ConnectTimeout fails a call stuck in connecting. Zero disables it.
	ConnectTimeout time.Duration
	SubmitTimeout  time.Duration
}

type requestKind int

const (
	requestStart requestKind = iota + 1
	requestStop
	requestRetry
)

type request struct {
	kind  requestKind
	ctx   context.Context
	sc    Context
	start *voice.StartRequest
	reply chan error
}

// call is the per-attempt state. A retry starts a fresh call.
type call struct {
	id         string
	sc         Context
	diagnostic bool
	startedAt  time.Time

	acc      *transcript.Accumulator
	speaking bool
	settled  bool
	// final holds what the accumulator gave up at settle.
	final []transcript.Entry

	feedbackID  string
	destination Destination
}

// Controller serializes every transition on the goroutine running Run.
type Controller struct {
	logger    *slog.Logger
	channel   voice.Channel
	gateway   feedback.Submitter
	input     InputProbe
	navigator Navigator
	recorder  Recorder
	reporter  Reporter
	creds     Credentials

	connectTimeout time.Duration
	submitTimeout  time.Duration

	requests chan request
	done     chan struct{}
	runOnce  sync.Once

	mu      sync.RWMutex
	state   fsm.State
	reason  *failure.Reason
	current *call
	lastSC  *Context

	connectTimer *time.Timer
}

// NewController builds an idle controller.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Gateway == nil {
		opts.Gateway = feedback.Unavailable{}
	}
	if opts.Input == nil {
		opts.Input = InputProbeFunc(func(context.Context) error { return nil })
	}
	if opts.Navigator == nil {
		opts.Navigator = discardNavigator{}
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}

	return &Controller{
		logger:         opts.Logger,
		channel:        opts.Channel,
		gateway:        opts.Gateway,
		input:          opts.Input,
		navigator:      opts.Navigator,
		recorder:       opts.Recorder,
		reporter:       opts.Reporter,
		creds:          opts.Credentials,
		connectTimeout: opts.ConnectTimeout,
		submitTimeout:  opts.SubmitTimeout,
		requests:       make(chan request),
		done:           make(chan struct{}),
		state:          fsm.StateIdle,
	}
}

// State returns the current call state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Failure returns the failure reason. It is non-nil exactly when the state
// is failed.
func (c *Controller) Failure() *failure.Reason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.reason == nil {
		return nil
	}
	r := *c.reason
	return &r
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run owns the event loop until ctx ends or the channel closes. The
// subscription taken here is always released on return.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	sub := c.channel.Subscribe()
	defer sub.Close()
	defer c.stopConnectTimer()

	for {
		select {
		case <-ctx.Done():
			c.abandon()
			return nil
		case req := <-c.requests:
			req.reply <- c.handle(req)
			c.settle(ctx)
		case ev, ok := <-sub.Events():
			if !ok {
				c.abandon()
				return ErrChannelClosed
			}
			c.onEvent(ev)
			c.settle(ctx)
		case <-c.connectTimeoutC():
			c.onConnectTimeout()
		}
	}
}

// RequestStart starts a call for sc when idle. Guard failures move the
// controller to failed and return nil; the outcome is visible through
// State and Failure.
func (c *Controller) RequestStart(ctx context.Context, sc Context) error {
	return c.submit(ctx, request{kind: requestStart, sc: sc})
}

// RequestStartWith starts a diagnostic call with a caller-built profile and
// variables. Diagnostic calls never submit feedback.
func (c *Controller) RequestStartWith(ctx context.Context, req voice.StartRequest) error {
	return c.submit(ctx, request{kind: requestStart, sc: Context{Mode: ModeDiagnostic}, start: &req})
}

// RequestStop ends a connecting or active call. It is a no-op otherwise.
func (c *Controller) RequestStop(ctx context.Context) error {
	return c.submit(ctx, request{kind: requestStop})
}

// Retry clears a failure and returns to idle.
func (c *Controller) Retry(ctx context.Context) error {
	return c.submit(ctx, request{kind: requestRetry})
}

func (c *Controller) submit(ctx context.Context, req request) error {
	req.ctx = ctx
	req.reply = make(chan error, 1)

	select {
	case c.requests <- req:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handle(req request) error {
	switch req.kind {
	case requestStart:
		return c.handleStart(req)
	case requestStop:
		return c.handleStop(req.ctx)
	case requestRetry:
		return c.handleRetry()
	default:
		return errors.New("unknown request")
	}
}

func (c *Controller) handleStart(req request) error {
	if state := c.State(); state != fsm.StateIdle {
		c.ignored("start", state)
		return ErrNotIdle
	}

	cl := &call{
		id:         uuid.NewString(),
		sc:         req.sc,
		diagnostic: req.start != nil,
		startedAt:  time.Now(),
		acc:        transcript.NewAccumulator(),
	}
	c.mu.Lock()
	c.current = cl
	if !cl.diagnostic {
		sc := req.sc
		c.lastSC = &sc
	}
	c.mu.Unlock()

	var (
		startReq voice.StartRequest
		err      error
	)
	if cl.diagnostic {
		startReq = *req.start
		err = c.creds.checkDiagnostic(startReq)
	} else {
		startReq, err = c.creds.startRequest(req.sc)
	}
	if err != nil {
		c.fail(req.ctx, fsm.EventReject, "start rejected", failure.Classify(err))
		return nil
	}

	if err := c.input.Check(req.ctx); err != nil {
		reason := failure.Classify(err)
		if reason.Kind != failure.KindPermissionDenied {
			reason = failure.Reason{Kind: failure.KindPermissionDenied, Detail: reason.Detail}
		}
		c.fail(req.ctx, fsm.EventReject, "start rejected", reason)
		return nil
	}

	if !c.apply(fsm.EventStart, "start requested") {
		return ErrNotIdle
	}
	c.armConnectTimer()

	if err := c.channel.Start(req.ctx, startReq); err != nil {
		c.fail(req.ctx, fsm.EventError, "start command failed", channelReason(err))
		return nil
	}
	return nil
}

// handleStop marks the call finished before telling the channel, so a stop
// that never completes cannot hold the call open.
func (c *Controller) handleStop(ctx context.Context) error {
	state := c.State()
	if !fsm.InCall(state) {
		c.ignored("stop", state)
		return nil
	}
	if !c.apply(fsm.EventStop, "stop requested") {
		return nil
	}

	if err := c.channel.Stop(ctx); err != nil {
		c.logger.Warn("voice channel stop failed", "call_id", c.callID(), "error", err.Error())
	}
	return nil
}

func (c *Controller) handleRetry() error {
	state := c.State()
	if state != fsm.StateFailed {
		c.ignored("retry", state)
		return ErrNotFailed
	}
	if !c.apply(fsm.EventRetry, "retry requested") {
		return ErrNotFailed
	}

	c.mu.Lock()
	c.reason = nil
	c.current = nil
	c.mu.Unlock()
	return nil
}

func (c *Controller) onEvent(ev voice.Event) {
	state := c.State()

	switch ev.Type {
	case voice.EventStarted:
		if c.apply(fsm.EventStarted, "channel started") {
			c.stopConnectTimer()
		}
		return
	case voice.EventEnded:
		c.apply(fsm.EventEnded, "channel ended")
		return
	case voice.EventError:
		if fsm.InCall(state) {
			var payload any
			if ev.Error != nil {
				payload = ev.Error
			}
			c.fail(context.Background(), fsm.EventError, "channel error", channelReason(payload))
			return
		}
	case voice.EventMessage:
		if fsm.InCall(state) {
			c.onMessage(ev.Message)
			return
		}
	case voice.EventSpeechStarted, voice.EventSpeechEnded:
		if fsm.InCall(state) {
			c.mu.Lock()
			c.current.speaking = ev.Type == voice.EventSpeechStarted
			c.mu.Unlock()
			return
		}
	}
	c.ignored(string(ev.Type), state)
}

// channelReason classifies a fault raised by the voice channel. Anything
// not otherwise recognised is a channel error.
func channelReason(raw any) failure.Reason {
	if raw == nil {
		return failure.Reason{Kind: failure.KindChannelError, Detail: "voice channel reported an error"}
	}
	reason := failure.Classify(raw)
	if reason.Kind == failure.KindUnknown {
		reason.Kind = failure.KindChannelError
	}
	return reason
}

func (c *Controller) onMessage(msg *voice.Message) {
	if msg == nil || msg.Type != voice.MessageTypeTranscript {
		return
	}
	speaker, ok := transcript.SpeakerFromRole(msg.Role)
	if !ok {
		c.logger.Debug("dropping transcript with unknown role", "call_id", c.callID(), "role", msg.Role)
		return
	}

	c.mu.Lock()
	kept := c.current.acc.Append(
		transcript.Entry{Speaker: speaker, Text: msg.Transcript},
		transcript.Finality(msg.TranscriptType),
	)
	c.mu.Unlock()

	if kept {
		metrics.IncTranscriptEntry(string(speaker))
	}
}

func (c *Controller) onConnectTimeout() {
	c.connectTimer = nil
	if c.State() != fsm.StateConnecting {
		return
	}
	c.fail(context.Background(), fsm.EventError, "connect timeout", failure.Reason{
		Kind:   failure.KindChannelError,
		Detail: "timed out waiting for the call to start",
	})
}

// apply runs one FSM event. Illegal pairs leave the state unchanged and
// report false.
func (c *Controller) apply(event fsm.Event, trigger string) bool {
	c.mu.Lock()
	from := c.state
	next, err := fsm.Transition(from, event)
	if err != nil {
		c.mu.Unlock()
		c.ignored(trigger, from)
		return false
	}
	c.state = next
	c.mu.Unlock()

	metrics.IncTransition(string(from), string(next))
	metrics.SetActiveCall(fsm.InCall(next))
	c.logger.Info("call transition",
		"call_id", c.callID(),
		"from", string(from),
		"to", string(next),
		"trigger", trigger,
	)
	return true
}

func (c *Controller) fail(ctx context.Context, event fsm.Event, trigger string, reason failure.Reason) {
	if !c.apply(event, trigger) {
		return
	}
	c.stopConnectTimer()

	c.mu.Lock()
	c.reason = &reason
	c.mu.Unlock()

	metrics.IncFailure(string(reason.Kind))
	c.logger.Warn("call failed",
		"call_id", c.callID(),
		"kind", string(reason.Kind),
		"detail", reason.Detail,
	)
	if c.reporter != nil && reason.Reportable() {
		c.reporter.Report(c.callID(), reason)
	}
	c.record(ctx)
}

// abandon tells the channel to hang up when the loop exits mid-call. No
// transition is applied, so no terminal action runs.
func (c *Controller) abandon() {
	if !fsm.InCall(c.State()) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.channel.Stop(ctx); err != nil {
		c.logger.Debug("voice channel stop on shutdown failed", "error", err.Error())
	}
	metrics.SetActiveCall(false)
}

func (c *Controller) ignored(trigger string, state fsm.State) {
	metrics.IncIgnored(string(state), trigger)
	c.logger.Debug("ignored in current state", "call_id", c.callID(), "state", string(state), "trigger", trigger)
}

func (c *Controller) callID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

func (c *Controller) armConnectTimer() {
	if c.connectTimeout <= 0 {
		return
	}
	c.stopConnectTimer()
	c.connectTimer = time.NewTimer(c.connectTimeout)
}

func (c *Controller) stopConnectTimer() {
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
}

func (c *Controller) connectTimeoutC() <-chan time.Time {
	if c.connectTimer == nil {
		return nil
	}
	return c.connectTimer.C
}
