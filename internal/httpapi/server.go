// Package httpapi exposes health, metrics, and the live session view over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/interview"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/store"
	"github.com/rbright/parley/internal/transcript"
)

// Session is the controller surface the API reads from.
type Session interface {
	Snapshot() session.Snapshot
	Transcript() []transcript.Entry
	RequestStop(context.Context) error
}

// CallLog lists stored calls. Nil disables /v1/calls.
type CallLog interface {
	RecentCalls(ctx context.Context, limit int) ([]store.CallSummary, error)
}

// Interviews creates question sets. Nil disables interview generation.
type Interviews interface {
	Create(ctx context.Context, req interview.Request) (interview.Interview, error)
}

// InterviewLog reads stored question sets. Nil disables the lookup.
type InterviewLog interface {
	Interview(ctx context.Context, id string) (interview.Interview, error)
}

type Server struct {
	session      Session
	calls        CallLog
	interviews   Interviews
	interviewLog InterviewLog
	logger       *slog.Logger
}

func New(sess Session, calls CallLog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{session: sess, calls: calls, logger: logger}
}

// WithInterviews enables the interview endpoints. Either argument may be nil.
func (s *Server) WithInterviews(create Interviews, log InterviewLog) *Server {
	s.interviews = create
	s.interviewLog = log
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", s.getSession)
		r.Get("/session/transcript", s.getTranscript)
		r.Post("/session/stop", s.postStop)
		r.Get("/calls", s.getCalls)
		r.Post("/interviews/generate", s.postGenerate)
		r.Get("/interviews/generate", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, generateResponse{Success: true, Data: "ready"})
		})
		r.Get("/interviews/{id}", s.getInterview)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type sessionView struct {
	CallID      string `json:"call_id,omitempty"`
	Mode        string `json:"mode,omitempty"`
	State       string `json:"state"`
	FailureKind string `json:"failure_kind,omitempty"`
	Failure     string `json:"failure,omitempty"`
	Latest      string `json:"latest,omitempty"`
	Speaking    bool   `json:"speaking"`
	Entries     int    `json:"entries"`
	FeedbackID  string `json:"feedback_id,omitempty"`
	Destination string `json:"destination,omitempty"`
}

func (s *Server) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.session.Snapshot()))
}

func viewOf(snap session.Snapshot) sessionView {
	v := sessionView{
		CallID:      snap.CallID,
		Mode:        string(snap.Mode),
		State:       string(snap.State),
		Latest:      snap.Latest,
		Speaking:    snap.Speaking,
		Entries:     snap.Entries,
		FeedbackID:  snap.FeedbackID,
		Destination: string(snap.Destination),
	}
	if snap.Failure != nil {
		v.FailureKind = string(snap.Failure.Kind)
		v.Failure = snap.Failure.Message()
	}
	return v
}

type entryView struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

func (s *Server) getTranscript(w http.ResponseWriter, _ *http.Request) {
	entries := s.session.Transcript()
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryView{Speaker: string(e.Speaker), Text: e.Text})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) postStop(w http.ResponseWriter, r *http.Request) {
	if !fsm.InCall(s.session.Snapshot().State) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no call in progress"})
		return
	}
	if err := s.session.RequestStop(r.Context()); err != nil {
		s.logger.Warn("http stop failed", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, viewOf(s.session.Snapshot()))
}

func (s *Server) getCalls(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "call log is disabled"})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	calls, err := s.calls.RecentCalls(r.Context(), limit)
	if err != nil {
		s.logger.Error("list calls failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list calls failed"})
		return
	}
	writeJSON(w, http.StatusOK, calls)
}

const maxGenerateBody = 64 << 10

// generateResponse keeps the success/error envelope workflow tools expect.
type generateResponse struct {
	Success   bool                 `json:"success"`
	Error     string               `json:"error,omitempty"`
	Data      string               `json:"data,omitempty"`
	Interview *interview.Interview `json:"interview,omitempty"`
}

func (s *Server) postGenerate(w http.ResponseWriter, r *http.Request) {
	if s.interviews == nil {
		writeJSON(w, http.StatusNotFound, generateResponse{Error: "interview generation is disabled"})
		return
	}

	var req interview.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, generateResponse{Error: "Invalid JSON"})
		return
	}

	iv, err := s.interviews.Create(r.Context(), req)
	switch {
	case errors.Is(err, interview.ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, generateResponse{Error: "Missing required fields."})
	case errors.Is(err, interview.ErrUnparseable):
		writeJSON(w, http.StatusInternalServerError, generateResponse{Error: "Failed to process generated questions."})
	case err != nil:
		s.logger.Error("interview generation failed", "user_id", req.UserID, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, generateResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, generateResponse{Success: true, Interview: &iv})
	}
}

func (s *Server) getInterview(w http.ResponseWriter, r *http.Request) {
	if s.interviewLog == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "interview log is disabled"})
		return
	}
	iv, err := s.interviewLog.Interview(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "interview not found"})
	case err != nil:
		s.logger.Error("load interview failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load interview failed"})
	default:
		writeJSON(w, http.StatusOK, iv)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
