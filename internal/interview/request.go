// Package interview generates interview question sets for candidates.
package interview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingFields rejects a request without every required field.
var ErrMissingFields = errors.New("missing required fields")

// Request describes the interview to prepare. Field names follow the
// onboarding workflow's tool payload.
type Request struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Level     string `json:"level"`
	Techstack string `json:"techstack"`
	Amount    Amount `json:"amount"`
	UserID    string `json:"userid"`
}

// Amount is a question count. Workflow tools send it as a number or as a
// numeric string.
type Amount int

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*a = Amount(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount must be a number: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*a = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("amount must be a number, got %q", s)
	}
	*a = Amount(n)
	return nil
}

// Validate reports every blank field, wrapped in ErrMissingFields.
func (r Request) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"type", r.Type},
		{"role", r.Role},
		{"level", r.Level},
		{"techstack", r.Techstack},
		{"userid", r.UserID},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if r.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return nil
}

// Stack splits the comma separated tech stack.
func (r Request) Stack() []string {
	var out []string
	for _, part := range strings.Split(r.Techstack, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Prompt is the instruction sent to the question generator. The questions
// are read aloud, so the model is told to avoid symbols.
func Prompt(r Request) string {
	var b strings.Builder
	b.WriteString("Prepare questions for a job interview.\n")
	fmt.Fprintf(&b, "The job role is %s.\n", strings.TrimSpace(r.Role))
	fmt.Fprintf(&b, "The job experience level is %s.\n", strings.TrimSpace(r.Level))
	fmt.Fprintf(&b, "The tech stack used in the job is: %s.\n", strings.Join(r.Stack(), ", "))
	fmt.Fprintf(&b, "The focus between behavioural and technical questions should lean towards: %s.\n", strings.TrimSpace(r.Type))
	fmt.Fprintf(&b, "The amount of questions required is: %d.\n", r.Amount)
	b.WriteString("Return only the questions, without any additional text.\n")
	b.WriteString(`The questions will be read by a voice assistant, so do not use "/" or "*" or any other special characters.` + "\n")
	b.WriteString(`Return the questions formatted like this: ["Question 1", "Question 2", "Question 3"]`)
	return b.String()
}
