package interview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return Request{
		Type:      "technical",
		Role:      "Backend Engineer",
		Level:     "senior",
		Techstack: "Go, Postgres , ,gRPC",
		Amount:    3,
		UserID:    "user-1",
	}
}

func TestRequestValidate(t *testing.T) {
	require.NoError(t, validRequest().Validate())

	tests := []struct {
		name    string
		mutate  func(*Request)
		missing string
	}{
		{name: "type", mutate: func(r *Request) { r.Type = "" }, missing: "type"},
		{name: "role", mutate: func(r *Request) { r.Role = "  " }, missing: "role"},
		{name: "level", mutate: func(r *Request) { r.Level = "" }, missing: "level"},
		{name: "techstack", mutate: func(r *Request) { r.Techstack = "" }, missing: "techstack"},
		{name: "amount zero", mutate: func(r *Request) { r.Amount = 0 }, missing: "amount"},
		{name: "amount negative", mutate: func(r *Request) { r.Amount = -2 }, missing: "amount"},
		{name: "userid", mutate: func(r *Request) { r.UserID = "" }, missing: "userid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			err := req.Validate()
			require.ErrorIs(t, err, ErrMissingFields)
			require.Contains(t, err.Error(), tc.missing)
		})
	}

	err := Request{}.Validate()
	require.EqualError(t, err, "missing required fields: type, role, level, techstack, userid, amount")
}

func TestAmountDecoding(t *testing.T) {
	tests := []struct {
		raw     string
		want    Amount
		wantErr bool
	}{
		{raw: `{"amount":5}`, want: 5},
		{raw: `{"amount":"7"}`, want: 7},
		{raw: `{"amount":" 4 "}`, want: 4},
		{raw: `{"amount":""}`, want: 0},
		{raw: `{"amount":null}`, want: 0},
		{raw: `{"amount":"five"}`, wantErr: true},
		{raw: `{"amount":true}`, wantErr: true},
	}
	for _, tc := range tests {
		var req Request
		err := json.Unmarshal([]byte(tc.raw), &req)
		if tc.wantErr {
			require.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, req.Amount, tc.raw)
	}
}

func TestStackAndPrompt(t *testing.T) {
	req := validRequest()
	require.Equal(t, []string{"Go", "Postgres", "gRPC"}, req.Stack())

	prompt := Prompt(req)
	require.Contains(t, prompt, "The job role is Backend Engineer.")
	require.Contains(t, prompt, "The tech stack used in the job is: Go, Postgres, gRPC.")
	require.Contains(t, prompt, "should lean towards: technical.")
	require.Contains(t, prompt, "The amount of questions required is: 3.")
	require.Contains(t, prompt, `["Question 1", "Question 2", "Question 3"]`)
}
