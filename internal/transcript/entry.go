// Package transcript accumulates finalized call utterances in emission order.
package transcript

import "strings"

// Speaker identifies who produced an utterance.
type Speaker string

const (
	SpeakerCandidate Speaker = "candidate"
	SpeakerAgent     Speaker = "agent"
	SpeakerSystem    Speaker = "system"
)

// SpeakerFromRole maps a voice channel role onto a Speaker.
func SpeakerFromRole(role string) (Speaker, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "candidate":
		return SpeakerCandidate, true
	case "assistant", "agent", "bot":
		return SpeakerAgent, true
	case "system":
		return SpeakerSystem, true
	default:
		return "", false
	}
}

// Role returns the conversational role name used on external wires.
func (s Speaker) Role() string {
	switch s {
	case SpeakerCandidate:
		return "user"
	case SpeakerAgent:
		return "assistant"
	default:
		return "system"
	}
}

// Entry is one finalized utterance.
type Entry struct {
	Speaker Speaker
	Text    string
}

// cleanText collapses internal whitespace runs.
func cleanText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
