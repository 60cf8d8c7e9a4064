// Package voice defines the voice channel contract consumed by sessions.
package voice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EventType names one inbound voice channel event.
type EventType string

const (
	EventStarted       EventType = "call-start"
	EventEnded         EventType = "call-end"
	EventMessage       EventType = "message"
	EventSpeechStarted EventType = "speech-start"
	EventSpeechEnded   EventType = "speech-end"
	EventError         EventType = "error"
)

// MessageTypeTranscript is the message type carrying spoken text.
const MessageTypeTranscript = "transcript"

// Event is one inbound notification from the voice channel.
type Event struct {
	Type    EventType     `json:"type"`
	Message *Message      `json:"message,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// Message is the content carried by an EventMessage.
type Message struct {
	Type           string `json:"type"`
	Role           string `json:"role"`
	Transcript     string `json:"transcript"`
	TranscriptType string `json:"transcriptType"`
}

// ErrorPayload is the loosely shaped vendor error. Cause holds the nested
// error some vendors wrap around the outer one.
type ErrorPayload struct {
	Type    string        `json:"type,omitempty"`
	Message string        `json:"message,omitempty"`
	Cause   *ErrorPayload `json:"error,omitempty"`
}

// UnmarshalJSON accepts the shapes vendors send for an error: a bare
// string, an object, or an object wrapping another error. A "message" or
// "error" that is itself an object becomes the Cause.
func (p *ErrorPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var msg string
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		*p = ErrorPayload{Message: msg}
		return nil
	case '{':
		var wire struct {
			Type    json.RawMessage `json:"type"`
			Message json.RawMessage `json:"message"`
			Error   json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return err
		}

		out := ErrorPayload{Type: scalarText(wire.Type)}
		for _, raw := range []json.RawMessage{wire.Error, wire.Message} {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
				continue
			}
			if raw[0] == '{' && out.Cause == nil {
				cause := &ErrorPayload{}
				if err := cause.UnmarshalJSON(raw); err != nil {
					return err
				}
				out.Cause = cause
				continue
			}
			if out.Message == "" {
				out.Message = scalarText(raw)
			}
		}
		*p = out
		return nil
	default:
		*p = ErrorPayload{Message: scalarText(data)}
		return nil
	}
}

// scalarText renders a JSON scalar as plain text; strings lose their quotes.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Error implements error so payloads can travel through error returns.
func (p *ErrorPayload) Error() string {
	if p == nil {
		return "voice channel error"
	}
	return p.Detail()
}

// Detail renders the innermost type/message pair that carries information.
func (p *ErrorPayload) Detail() string {
	if p == nil {
		return ""
	}
	if p.Cause != nil {
		if inner := p.Cause.Detail(); inner != "" {
			return inner
		}
	}
	typ := strings.TrimSpace(p.Type)
	msg := strings.TrimSpace(p.Message)
	switch {
	case typ != "" && msg != "":
		return fmt.Sprintf("%s: %s", typ, msg)
	case msg != "":
		return msg
	default:
		return typ
	}
}
