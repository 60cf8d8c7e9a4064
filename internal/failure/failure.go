// Package failure classifies why a call could not proceed or ended abnormally.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/parley/internal/voice"
)

// Kind is the failure taxonomy surfaced to the hosting UI.
type Kind string

const (
	KindPermissionDenied  Kind = "permission_denied"
	KindMissingCredential Kind = "missing_credential"
	KindChannelError      Kind = "channel_error"
	KindUnknown           Kind = "unknown"
)

var (
	// ErrPermissionDenied marks refusal or absence of the audio input capability.
	ErrPermissionDenied = errors.New("audio input permission denied")
	// ErrMissingCredential marks absent configuration or session context fields.
	ErrMissingCredential = errors.New("required credential missing")
)

// Reason is the tagged failure value carried by a failed call.
type Reason struct {
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

// Classify maps a raw failure value onto exactly one Kind.
func Classify(raw any) Reason {
	switch v := raw.(type) {
	case nil:
		return Reason{Kind: KindUnknown, Detail: "unknown error"}
	case Reason:
		return v
	case *Reason:
		if v == nil {
			return Classify(nil)
		}
		return *v
	case *voice.ErrorPayload:
		if v == nil {
			return Classify(nil)
		}
		return Reason{Kind: KindChannelError, Detail: detailOr(v.Detail(), "voice channel error")}
	case voice.ErrorPayload:
		return Classify(&v)
	case error:
		return classifyError(v)
	case string:
		return Reason{Kind: KindUnknown, Detail: detailOr(v, "unknown error")}
	default:
		return Reason{Kind: KindUnknown, Detail: fmt.Sprintf("%v", v)}
	}
}

func classifyError(err error) Reason {
	var payload *voice.ErrorPayload
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return Reason{Kind: KindPermissionDenied, Detail: err.Error()}
	case errors.Is(err, ErrMissingCredential):
		return Reason{Kind: KindMissingCredential, Detail: err.Error()}
	case errors.As(err, &payload):
		return Reason{Kind: KindChannelError, Detail: detailOr(payload.Detail(), err.Error())}
	case errors.Is(err, context.DeadlineExceeded):
		return Reason{Kind: KindChannelError, Detail: err.Error()}
	default:
		return Reason{Kind: KindUnknown, Detail: detailOr(err.Error(), "unknown error")}
	}
}

// Message renders the user-facing text for a failed call.
func (r Reason) Message() string {
	var base string
	switch r.Kind {
	case KindPermissionDenied:
		base = "Microphone access is unavailable. Allow audio input and try again."
	case KindMissingCredential:
		base = "The call is not configured correctly."
	case KindChannelError:
		base = "The voice connection failed."
	default:
		base = "Something went wrong with the call."
	}
	if detail := strings.TrimSpace(r.Detail); detail != "" {
		return base + " (" + detail + ")"
	}
	return base
}

// String implements fmt.Stringer for logs.
func (r Reason) String() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Detail
}

// Reportable reports whether the failure indicates a fault worth alerting on.
func (r Reason) Reportable() bool {
	return r.Kind == KindChannelError || r.Kind == KindUnknown
}

func detailOr(detail, fallback string) string {
	if strings.TrimSpace(detail) == "" {
		return fallback
	}
	return detail
}
