// Package metrics holds the process-wide Prometheus collectors for calls.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_call_transitions_total",
		Help: "Call state transitions by source and target state",
	}, []string{"from", "to"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_call_failures_total",
		Help: "Calls that reached the failed state, by failure kind",
	}, []string{"kind"}) // kind=permission_denied|missing_credential|channel_error|unknown

	terminalActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_terminal_actions_total",
		Help: "Terminal actions dispatched on call completion",
	}, []string{"action"}) // action=home|feedback

	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_feedback_submissions_total",
		Help: "Feedback gateway submissions by outcome",
	}, []string{"outcome"}) // outcome=success|rejected|error|skipped

	transcriptEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_transcript_entries_total",
		Help: "Final transcript entries accumulated, by speaker",
	}, []string{"speaker"})

	ignoredEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_ignored_events_total",
		Help: "Channel events and requests ignored in the current state",
	}, []string{"state", "trigger"})

	activeCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_active_calls",
		Help: "Calls currently connecting or active",
	})
)

func IncTransition(from, to string) { transitionsTotal.WithLabelValues(from, to).Inc() }
func IncFailure(kind string)        { failuresTotal.WithLabelValues(kind).Inc() }
func IncTerminalAction(action string) {
	terminalActionsTotal.WithLabelValues(action).Inc()
}
func IncSubmission(outcome string)      { submissionsTotal.WithLabelValues(outcome).Inc() }
func IncTranscriptEntry(speaker string) { transcriptEntriesTotal.WithLabelValues(speaker).Inc() }
func IncIgnored(state, trigger string)  { ignoredEventsTotal.WithLabelValues(state, trigger).Inc() }

// SetActiveCall records whether the process has a live call.
func SetActiveCall(live bool) {
	if live {
		activeCalls.Set(1)
		return
	}
	activeCalls.Set(0)
}

var ipcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "parley_ipc_requests_total",
	Help: "Commands received on the call socket",
}, []string{"command", "ok"})

func IncIPCRequest(command string, ok bool) {
	ipcRequestsTotal.WithLabelValues(command, strconv.FormatBool(ok)).Inc()
}

var interviewsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "parley_interviews_generated_total",
	Help: "Interview question generation requests by outcome",
}, []string{"outcome"})

func IncInterviewGenerated(outcome string) {
	interviewsGeneratedTotal.WithLabelValues(outcome).Inc()
}
