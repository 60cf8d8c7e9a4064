package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/bridge"
	"github.com/rbright/parley/internal/cli"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/feedback"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/httpapi"
	"github.com/rbright/parley/internal/interview"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/store"
	"github.com/rbright/parley/internal/transcript"
	"github.com/rbright/parley/internal/voice"
)

var diagnosticQuestions = []string{
	"Tell me about yourself.",
	"Describe a project you are proud of.",
}

// starter issues the first start request once the controller is running.
type starter func(context.Context, *session.Controller) error

func (r Runner) commandCall(ctx context.Context, cfg config.Config, logger *slog.Logger, opts cli.CallOptions) int {
	sc := session.Context{
		Mode:                 session.Mode(opts.Mode),
		CandidateDisplayName: opts.Name,
		CandidateID:          opts.CandidateID,
		InterviewID:          opts.InterviewID,
		FeedbackID:           opts.FeedbackID,
		Questions:            opts.Questions,
	}
	return r.runCall(ctx, cfg, logger, opts.ExitOnFailure, func(ctx context.Context, c *session.Controller) error {
		return c.RequestStart(ctx, sc)
	})
}

func (r Runner) commandDiagnose(ctx context.Context, cfg config.Config, logger *slog.Logger, opts cli.CallOptions) int {
	req := diagnosticRequest(cfg, opts)
	return r.runCall(ctx, cfg, logger, true, func(ctx context.Context, c *session.Controller) error {
		return c.RequestStartWith(ctx, req)
	})
}

func diagnosticRequest(cfg config.Config, opts cli.CallOptions) voice.StartRequest {
	if opts.Profile == cli.ProfileWorkflow {
		return voice.OnboardingStart(cfg.Voice.WorkflowID, "Diagnostic Candidate", "diagnostic")
	}
	questions := opts.Questions
	if len(questions) == 0 {
		questions = diagnosticQuestions
	}
	return voice.InterviewStart(questions)
}

// runCall owns the socket, runs the controller with its IPC and HTTP
// surfaces, and stays attached until the call settles.
func (r Runner) runCall(ctx context.Context, cfg config.Config, logger *slog.Logger, exitOnFailure bool, start starter) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus); handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v (state %s)\n", ipc.ErrAlreadyRunning, resp.State)
		return 1
	}

	lock := ipc.Lock{
		Path:         socketPath,
		ProbeTimeout: 180 * time.Millisecond,
		Attempts:     8,
		OnStale: func(path string) {
			logger.Warn("removed stale call socket", "path", path)
		},
	}
	listener, err := lock.Acquire(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	reporter, flush := newReporter(cfg.Sentry, logger)
	defer flush()

	host := newCallHost()
	var (
		calls    httpapi.CallLog
		saver    interview.Saver
		interLog httpapi.InterviewLog
	)
	if strings.TrimSpace(cfg.Store.DatabaseURL) != "" {
		openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		s, err := store.Open(openCtx, cfg.Store.DatabaseURL)
		cancel()
		if err != nil {
			fmt.Fprintf(r.Stderr, "warning: call log disabled: %v\n", err)
			logger.Warn("call log disabled", "error", err.Error())
		} else {
			defer s.Close()
			host.next = s
			calls = s
			saver = s
			interLog = s
		}
	}
	interviews := r.interviewService(ctx, cfg.Generator, saver, logger)

	gateway, err := feedback.NewClient(feedback.ClientConfig{
		Endpoint: cfg.Gateway.GRPC,
		Timeout:  cfg.Gateway.Timeout(),
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = gateway.Close() }()

	mic := audio.Microphone{
		Input:    cfg.Audio.Input,
		Fallback: cfg.Audio.Fallback,
		Required: cfg.Audio.RequireInput,
	}
	var source bridge.AudioSource
	if cfg.Voice.StreamAudio {
		source = captureSource(mic)
	}
	channel := bridge.New(bridge.Config{
		URL:         cfg.Voice.URL,
		Token:       cfg.Voice.Token,
		DialTimeout: cfg.Voice.DialTimeout(),
		Audio:       source,
		Logger:      logger,
	})
	defer func() { _ = channel.Close() }()

	controller := session.NewController(session.Options{
		Logger:    logger,
		Channel:   channel,
		Gateway:   gateway,
		Input:     mic,
		Navigator: host,
		Recorder:  host,
		Reporter:  reporter,
		Credentials: session.Credentials{
			Token:      cfg.Voice.Token,
			WorkflowID: cfg.Voice.WorkflowID,
		},
		ConnectTimeout: cfg.Voice.ConnectTimeout(),
		SubmitTimeout:  cfg.Gateway.Timeout(),
	})

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error { return controller.Run(runCtx) })
	g.Go(func() error { return ipc.Serve(runCtx, listener, controller) })
	if listen := strings.TrimSpace(cfg.HTTP.Listen); listen != "" {
		api := httpapi.New(controller, calls, logger).WithInterviews(interviews, interLog)
		g.Go(func() error { return api.ListenAndServe(runCtx, listen) })
	}

	outcome := r.supervise(runCtx, controller, host, exitOnFailure, start)
	cancelRun()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("call runtime failed", "error", err.Error())
		if outcome.err == nil && outcome.destination == "" {
			return 1
		}
	}

	outcome.record = host.lastRecord()
	logSessionResult(logger, outcome)
	return r.report(cfg, outcome)
}

// interviewService returns nil when no generator key is configured.
func (r Runner) interviewService(ctx context.Context, cfg config.GeneratorConfig, saver interview.Saver, logger *slog.Logger) httpapi.Interviews {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	gen, err := interview.NewGemini(ctx, interview.GeminiConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: interview generation disabled: %v\n", err)
		logger.Warn("interview generation disabled", "error", err.Error())
		return nil
	}
	return interview.NewService(gen, saver, logger)
}

// callOutcome is how supervise ended.
type callOutcome struct {
	destination session.Destination
	feedbackID  string
	failure     *failure.Reason
	cancelled   bool
	err         error
	record      *session.Record
}

func (r Runner) supervise(ctx context.Context, c *session.Controller, host *callHost, exitOnFailure bool, start starter) callOutcome {
	if err := start(ctx, c); err != nil {
		if ctx.Err() != nil {
			return callOutcome{cancelled: true}
		}
		return callOutcome{err: err}
	}

	for {
		select {
		case <-ctx.Done():
			return callOutcome{cancelled: true}
		case s := <-host.settled:
			return callOutcome{destination: s.destination, feedbackID: s.feedbackID}
		case reason := <-host.failed:
			fmt.Fprintf(r.Stderr, "call failed: %s\n", reason.Message())
			if exitOnFailure {
				return callOutcome{failure: &reason}
			}
			fmt.Fprintln(r.Stderr, "run `parley retry` to try again, or interrupt to exit")
		}
	}
}

func (r Runner) report(cfg config.Config, outcome callOutcome) int {
	switch {
	case outcome.cancelled:
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	case outcome.err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", outcome.err)
		return 1
	case outcome.failure != nil:
		return 1
	}

	if rec := outcome.record; rec != nil && len(rec.Transcript) > 0 {
		fmt.Fprintln(r.Stdout, transcript.Render(rec.Transcript, transcript.Options{SpeakerLabels: cfg.Transcript.SpeakerLabels}))
	}
	if outcome.destination == session.DestinationFeedback {
		fmt.Fprintf(r.Stdout, "feedback: %s\n", outcome.feedbackID)
	} else {
		fmt.Fprintln(r.Stdout, "home")
	}
	return 0
}

func logSessionResult(logger *slog.Logger, outcome callOutcome) {
	if logger == nil {
		return
	}
	fields := []any{
		"destination", string(outcome.destination),
		"feedback_id", outcome.feedbackID,
		"cancelled", outcome.cancelled,
	}
	if rec := outcome.record; rec != nil {
		fields = append(fields,
			"call_id", rec.CallID,
			"mode", string(rec.Mode),
			"state", string(rec.State),
			"started_at", rec.StartedAt.Format(time.RFC3339Nano),
			"ended_at", rec.EndedAt.Format(time.RFC3339Nano),
			"duration_ms", rec.EndedAt.Sub(rec.StartedAt).Milliseconds(),
			"transcript_entries", len(rec.Transcript),
		)
	}

	switch {
	case outcome.err != nil:
		logger.Error("session failed", append(fields, "error", outcome.err.Error())...)
	case outcome.failure != nil:
		logger.Error("session failed", append(fields, "kind", string(outcome.failure.Kind), "error", outcome.failure.Detail)...)
	default:
		logger.Info("session complete", fields...)
	}
}

func captureSource(mic audio.Microphone) bridge.AudioSource {
	return bridge.AudioSourceFunc(func(ctx context.Context) (bridge.AudioStream, error) {
		selection, err := mic.Select(ctx)
		if err != nil {
			return nil, err
		}
		// Capture outlives the start request; the bridge stops it with the link.
		capture, err := audio.StartCapture(context.WithoutCancel(ctx), selection.Device)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrPermissionDenied, err)
		}
		return capture, nil
	})
}

type settlement struct {
	destination session.Destination
	feedbackID  string
}

// callHost receives the controller's terminal signals and call records on
// the controller goroutine and hands them to supervise.
type callHost struct {
	next session.Recorder

	settled chan settlement
	failed  chan failure.Reason
	last    chan session.Record
}

func newCallHost() *callHost {
	return &callHost{
		settled: make(chan settlement, 1),
		failed:  make(chan failure.Reason, 1),
		last:    make(chan session.Record, 1),
	}
}

func (h *callHost) NavigateHome() {
	h.settle(settlement{destination: session.DestinationHome})
}

func (h *callHost) NavigateToFeedback(feedbackID string) {
	h.settle(settlement{destination: session.DestinationFeedback, feedbackID: feedbackID})
}

func (h *callHost) settle(s settlement) {
	select {
	case h.settled <- s:
	default:
	}
}

func (h *callHost) Record(ctx context.Context, rec session.Record) error {
	select {
	case <-h.last:
	default:
	}
	h.last <- rec

	if rec.State == fsm.StateFailed && rec.Failure != nil {
		select {
		case <-h.failed:
		default:
		}
		h.failed <- *rec.Failure
	}

	if h.next == nil {
		return nil
	}
	return h.next.Record(ctx, rec)
}

func (h *callHost) lastRecord() *session.Record {
	select {
	case rec := <-h.last:
		return &rec
	default:
		return nil
	}
}
