package voice

import (
	"strings"
)

// ProfileKind selects how the voice agent is configured for a call.
type ProfileKind string

const (
	// ProfileWorkflow runs a vendor-hosted workflow referenced by id.
	ProfileWorkflow ProfileKind = "workflow"
	// ProfileAssistant runs an inline assistant definition.
	ProfileAssistant ProfileKind = "assistant"
)

// Profile is the agent configuration sent with a start command.
type Profile struct {
	Kind       ProfileKind `json:"kind"`
	WorkflowID string      `json:"workflowId,omitempty"`
	Assistant  *Assistant  `json:"assistant,omitempty"`
}

// Assistant is an inline agent definition.
type Assistant struct {
	Name         string            `json:"name"`
	FirstMessage string            `json:"firstMessage"`
	SystemPrompt string            `json:"systemPrompt"`
	Transcriber  ProviderSelection `json:"transcriber"`
	Voice        ProviderSelection `json:"voice"`
	Model        ProviderSelection `json:"model"`
}

// ProviderSelection names a vendor-side provider and model or voice id.
type ProviderSelection struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

const interviewerPrompt = `You are a professional job interviewer conducting a real-time voice interview with a candidate.
Assess their qualifications, motivation, and fit for the role.

Follow this question flow:
{{questions}}

Listen actively and acknowledge answers before moving on. Ask a brief follow-up when an answer is vague.
Keep every response short and conversational because it will be spoken aloud.
Answer questions about the role or company politely; redirect to HR when you do not know.
Close the interview by thanking the candidate and telling them the company will reach out soon.`

// Interviewer returns the fixed assistant used for interview-mode calls.
// The questions variable is substituted vendor-side into the system prompt.
func Interviewer() *Assistant {
	return &Assistant{
		Name:         "Interviewer",
		FirstMessage: "Hello! Thank you for taking the time to speak with me today. I'm looking forward to learning more about you and your experience.",
		SystemPrompt: interviewerPrompt,
		Transcriber:  ProviderSelection{Provider: "deepgram", ID: "nova-2"},
		Voice:        ProviderSelection{Provider: "11labs", ID: "sarah"},
		Model:        ProviderSelection{Provider: "openai", ID: "gpt-4"},
	}
}

// OnboardingStart builds the start request for the onboarding workflow.
func OnboardingStart(workflowID, displayName, candidateID string) StartRequest {
	return StartRequest{
		Profile: Profile{Kind: ProfileWorkflow, WorkflowID: workflowID},
		Variables: map[string]string{
			"username": displayName,
			"userid":   candidateID,
		},
	}
}

// InterviewStart builds the start request for the interviewer assistant.
func InterviewStart(questions []string) StartRequest {
	return StartRequest{
		Profile:   Profile{Kind: ProfileAssistant, Assistant: Interviewer()},
		Variables: map[string]string{"questions": FormatQuestions(questions)},
	}
}

// FormatQuestions renders questions as "- " prefixed lines in order.
func FormatQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		lines = append(lines, "- "+q)
	}
	return strings.Join(lines, "\n")
}
