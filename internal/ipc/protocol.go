package ipc

// Commands understood by the process that owns the call.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
	CommandRetry  = "retry"
	CommandReset  = "reset"
)

type Request struct {
	Command string `json:"command"`
}

// Response is one reply line. Call carries the owner's session snapshot.
type Response struct {
	OK      bool        `json:"ok"`
	State   string      `json:"state,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Call    *CallStatus `json:"call,omitempty"`
}

// CallStatus is the wire form of a session snapshot.
type CallStatus struct {
	ID          string `json:"id,omitempty"`
	Mode        string `json:"mode,omitempty"`
	FailureKind string `json:"failure_kind,omitempty"`
	Failure     string `json:"failure,omitempty"`
	Latest      string `json:"latest,omitempty"`
	Speaking    bool   `json:"speaking,omitempty"`
	Entries     int    `json:"entries"`
	FeedbackID  string `json:"feedback_id,omitempty"`
}
