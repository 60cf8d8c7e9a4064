package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/interview"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/store"
	"github.com/rbright/parley/internal/transcript"
)

type fakeSession struct {
	snap    session.Snapshot
	entries []transcript.Entry
	stopErr error
	stops   int
}

func (f *fakeSession) Snapshot() session.Snapshot      { return f.snap }
func (f *fakeSession) Transcript() []transcript.Entry { return f.entries }
func (f *fakeSession) RequestStop(context.Context) error {
	f.stops++
	if f.stopErr == nil {
		f.snap.State = fsm.StateFinished
	}
	return f.stopErr
}

type fakeCalls struct {
	limit int
	err   error
}

func (f *fakeCalls) RecentCalls(_ context.Context, limit int) ([]store.CallSummary, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []store.CallSummary{{ID: "call-1", Mode: "interview", State: "finished", Utterances: 4}}, nil
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	h := New(&fakeSession{}, nil, logging.Discard()).Router()

	rec := do(t, h, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpointServesParleyMetrics(t *testing.T) {
	h := New(&fakeSession{}, nil, logging.Discard()).Router()

	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestGetSessionRendersSnapshot(t *testing.T) {
	sess := &fakeSession{snap: session.Snapshot{
		CallID:   "call-1",
		Mode:     session.ModeInterview,
		State:    fsm.StateFailed,
		Failure:  &failure.Reason{Kind: failure.KindPermissionDenied, Detail: "no mic"},
		Latest:   "Hello",
		Speaking: true,
		Entries:  3,
	}}
	h := New(sess, nil, logging.Discard()).Router()

	rec := do(t, h, http.MethodGet, "/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)

	var got sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "call-1", got.CallID)
	require.Equal(t, "failed", got.State)
	require.Equal(t, "permission_denied", got.FailureKind)
	require.Equal(t, failure.Reason{Kind: failure.KindPermissionDenied}.Message(), got.Failure)
	require.Equal(t, 3, got.Entries)
	require.True(t, got.Speaking)
}

func TestGetTranscript(t *testing.T) {
	sess := &fakeSession{entries: []transcript.Entry{
		{Speaker: transcript.SpeakerAgent, Text: "Hello"},
		{Speaker: transcript.SpeakerCandidate, Text: "Hi"},
	}}
	h := New(sess, nil, logging.Discard()).Router()

	rec := do(t, h, http.MethodGet, "/v1/session/transcript")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"speaker":"agent","text":"Hello"},{"speaker":"candidate","text":"Hi"}]`, rec.Body.String())

	empty := do(t, New(&fakeSession{}, nil, logging.Discard()).Router(), http.MethodGet, "/v1/session/transcript")
	require.JSONEq(t, `[]`, empty.Body.String())
}

func TestPostStop(t *testing.T) {
	idle := &fakeSession{snap: session.Snapshot{State: fsm.StateIdle}}
	rec := do(t, New(idle, nil, logging.Discard()).Router(), http.MethodPost, "/v1/session/stop")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Zero(t, idle.stops)

	active := &fakeSession{snap: session.Snapshot{State: fsm.StateActive}}
	rec = do(t, New(active, nil, logging.Discard()).Router(), http.MethodPost, "/v1/session/stop")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, active.stops)
	require.Contains(t, rec.Body.String(), `"state":"finished"`)

	broken := &fakeSession{snap: session.Snapshot{State: fsm.StateConnecting}, stopErr: errors.New("controller stopped")}
	rec = do(t, New(broken, nil, logging.Discard()).Router(), http.MethodPost, "/v1/session/stop")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetCalls(t *testing.T) {
	rec := do(t, New(&fakeSession{}, nil, logging.Discard()).Router(), http.MethodGet, "/v1/calls")
	require.Equal(t, http.StatusNotFound, rec.Code)

	calls := &fakeCalls{}
	h := New(&fakeSession{}, calls, logging.Discard()).Router()

	rec = do(t, h, http.MethodGet, "/v1/calls?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, calls.limit)
	require.Contains(t, rec.Body.String(), `"id":"call-1"`)

	rec = do(t, h, http.MethodGet, "/v1/calls?limit=nope")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	calls.err = errors.New("db down")
	rec = do(t, h, http.MethodGet, "/v1/calls")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 20, calls.limit)
}

type fakeInterviews struct {
	got interview.Request
	err error
}

func (f *fakeInterviews) Create(_ context.Context, req interview.Request) (interview.Interview, error) {
	f.got = req
	if f.err != nil {
		return interview.Interview{}, f.err
	}
	if err := req.Validate(); err != nil {
		return interview.Interview{}, err
	}
	return interview.Interview{
		ID:        "iv-1",
		UserID:    req.UserID,
		Role:      req.Role,
		Type:      req.Type,
		Level:     req.Level,
		Techstack: req.Stack(),
		Questions: []string{"Why Go?"},
		Finalized: true,
	}, nil
}

type fakeInterviewLog map[string]interview.Interview

func (f fakeInterviewLog) Interview(_ context.Context, id string) (interview.Interview, error) {
	iv, ok := f[id]
	if !ok {
		return interview.Interview{}, store.ErrNotFound
	}
	return iv, nil
}

func post(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostGenerate(t *testing.T) {
	const full = `{"type":"technical","role":"Backend Engineer","level":"senior","techstack":"go, postgres","amount":"3","userid":"u-1"}`

	cases := []struct {
		name   string
		body   string
		err    error
		code   int
		expect string
	}{
		{
			name:   "created",
			body:   full,
			code:   http.StatusOK,
			expect: `{"success":true,"interview":{"id":"iv-1","user_id":"u-1","role":"Backend Engineer","type":"technical","level":"senior","techstack":["go","postgres"],"questions":["Why Go?"],"finalized":true,"created_at":"0001-01-01T00:00:00Z"}}`,
		},
		{name: "invalid json", body: `{"type":`, code: http.StatusBadRequest, expect: `{"success":false,"error":"Invalid JSON"}`},
		{name: "missing role", body: `{"type":"technical","level":"senior","techstack":"go","amount":3,"userid":"u-1"}`, code: http.StatusBadRequest, expect: `{"success":false,"error":"Missing required fields."}`},
		{name: "missing user", body: `{"type":"technical","role":"r","level":"senior","techstack":"go","amount":3}`, code: http.StatusBadRequest, expect: `{"success":false,"error":"Missing required fields."}`},
		{name: "zero amount", body: `{"type":"technical","role":"r","level":"senior","techstack":"go","amount":0,"userid":"u-1"}`, code: http.StatusBadRequest, expect: `{"success":false,"error":"Missing required fields."}`},
		{name: "unparseable reply", body: full, err: interview.ErrUnparseable, code: http.StatusInternalServerError, expect: `{"success":false,"error":"Failed to process generated questions."}`},
		{name: "generator failure", body: full, err: errors.New("generate questions: quota exceeded"), code: http.StatusInternalServerError, expect: `{"success":false,"error":"generate questions: quota exceeded"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(&fakeSession{}, nil, logging.Discard()).WithInterviews(&fakeInterviews{err: tc.err}, nil).Router()

			rec := post(t, h, "/v1/interviews/generate", tc.body)
			require.Equal(t, tc.code, rec.Code)
			require.JSONEq(t, tc.expect, rec.Body.String())
		})
	}
}

func TestPostGenerateDisabled(t *testing.T) {
	h := New(&fakeSession{}, nil, logging.Discard()).Router()

	rec := post(t, h, "/v1/interviews/generate", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostGenerateRejectsOversizedBody(t *testing.T) {
	gen := &fakeInterviews{}
	h := New(&fakeSession{}, nil, logging.Discard()).WithInterviews(gen, nil).Router()

	body := `{"role":"` + strings.Repeat("x", 70<<10) + `"}`
	rec := post(t, h, "/v1/interviews/generate", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, gen.got.Role)
}

func TestGetGenerateReportsReady(t *testing.T) {
	h := New(&fakeSession{}, nil, logging.Discard()).Router()

	rec := do(t, h, http.MethodGet, "/v1/interviews/generate")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"data":"ready"}`, rec.Body.String())
}

func TestGetInterview(t *testing.T) {
	log := fakeInterviewLog{"iv-1": {ID: "iv-1", Role: "SRE", Questions: []string{"q"}}}
	h := New(&fakeSession{}, nil, logging.Discard()).WithInterviews(nil, log).Router()

	rec := do(t, h, http.MethodGet, "/v1/interviews/iv-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var got interview.Interview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "SRE", got.Role)

	rec = do(t, h, http.MethodGet, "/v1/interviews/iv-9")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
