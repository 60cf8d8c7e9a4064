package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseable means the generator reply held no usable question list.
var ErrUnparseable = errors.New("failed to process generated questions")

// questionList spans from the first '[' to the last ']' across lines.
var questionList = regexp.MustCompile(`(?s)\[.*\]`)

// ExtractQuestions pulls the JSON string array out of a model reply that
// may wrap it in prose or a code fence.
func ExtractQuestions(reply string) ([]string, error) {
	match := questionList.FindString(reply)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON array in reply", ErrUnparseable)
	}

	var raw []string
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	questions := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.Join(strings.Fields(q), " "); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: reply held no questions", ErrUnparseable)
	}
	return questions, nil
}
