package session

import (
	"fmt"
	"strings"

	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/voice"
)

// Mode selects the purpose of a call.
type Mode string

const (
	// ModeOnboarding runs the vendor workflow that collects interview setup.
	ModeOnboarding Mode = "onboarding"
	// ModeInterview runs the interviewer assistant over a question list.
	ModeInterview Mode = "interview"
	// ModeDiagnostic marks calls started through RequestStartWith.
	ModeDiagnostic Mode = "diagnostic"
)

// Context describes who the call is for and what it should do. It is
// immutable for the lifetime of a call.
type Context struct {
	Mode                 Mode
	CandidateDisplayName string
	CandidateID          string
	InterviewID          string
	// FeedbackID names an earlier feedback document to replace.
	FeedbackID string
	Questions  []string
}

// Credentials are the voice channel secrets, captured once at construction.
type Credentials struct {
	Token      string
	WorkflowID string
}

// startRequest checks credentials and context fields and builds the start
// command for sc. Every failure wraps failure.ErrMissingCredential.
func (cr Credentials) startRequest(sc Context) (voice.StartRequest, error) {
	if strings.TrimSpace(cr.Token) == "" {
		return voice.StartRequest{}, missing("voice token is not configured")
	}

	switch sc.Mode {
	case ModeOnboarding:
		if strings.TrimSpace(cr.WorkflowID) == "" {
			return voice.StartRequest{}, missing("workflow id is not configured")
		}
		if strings.TrimSpace(sc.CandidateID) == "" {
			return voice.StartRequest{}, missing("candidate id is required for onboarding")
		}
		return voice.OnboardingStart(cr.WorkflowID, sc.CandidateDisplayName, sc.CandidateID), nil
	case ModeInterview:
		if voice.FormatQuestions(sc.Questions) == "" {
			return voice.StartRequest{}, missing("interview has no questions")
		}
		return voice.InterviewStart(sc.Questions), nil
	default:
		return voice.StartRequest{}, missing(fmt.Sprintf("unsupported session mode %q", sc.Mode))
	}
}

// checkDiagnostic validates a caller-built start request.
func (cr Credentials) checkDiagnostic(req voice.StartRequest) error {
	if strings.TrimSpace(cr.Token) == "" {
		return missing("voice token is not configured")
	}
	switch req.Profile.Kind {
	case voice.ProfileWorkflow:
		if strings.TrimSpace(req.Profile.WorkflowID) == "" {
			return missing("diagnostic profile has no workflow id")
		}
	case voice.ProfileAssistant:
		if req.Profile.Assistant == nil {
			return missing("diagnostic profile has no assistant")
		}
	default:
		return missing(fmt.Sprintf("unsupported profile kind %q", req.Profile.Kind))
	}
	return nil
}

func missing(detail string) error {
	return fmt.Errorf("%w: %s", failure.ErrMissingCredential, detail)
}
