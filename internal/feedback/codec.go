package feedback

import (
	"errors"
	"fmt"

	"github.com/rbright/parley/internal/transcript"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldInterviewID = "interviewId"
	fieldCandidateID = "userId"
	fieldTranscript  = "transcript"
	fieldFeedbackID  = "feedbackId"
	fieldSuccess     = "success"
	fieldRole        = "role"
	fieldContent     = "content"
)

// encodeSubmission renders s as the gateway request document.
func encodeSubmission(s Submission) (*structpb.Struct, error) {
	entries := make([]any, 0, len(s.Transcript))
	for _, entry := range s.Transcript {
		entries = append(entries, map[string]any{
			fieldRole:    entry.Speaker.Role(),
			fieldContent: entry.Text,
		})
	}

	fields := map[string]any{
		fieldInterviewID: s.InterviewID,
		fieldCandidateID: s.CandidateID,
		fieldTranscript:  entries,
	}
	if s.FeedbackID != "" {
		fields[fieldFeedbackID] = s.FeedbackID
	}

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	return req, nil
}

// decodeSubmission parses a gateway request document.
func decodeSubmission(req *structpb.Struct) (Submission, error) {
	if req == nil {
		return Submission{}, errors.New("empty submission")
	}
	fields := req.GetFields()

	s := Submission{
		InterviewID: fields[fieldInterviewID].GetStringValue(),
		CandidateID: fields[fieldCandidateID].GetStringValue(),
		FeedbackID:  fields[fieldFeedbackID].GetStringValue(),
	}
	for i, v := range fields[fieldTranscript].GetListValue().GetValues() {
		entry := v.GetStructValue().GetFields()
		speaker, ok := transcript.SpeakerFromRole(entry[fieldRole].GetStringValue())
		if !ok {
			return Submission{}, fmt.Errorf("transcript[%d]: unknown role %q", i, entry[fieldRole].GetStringValue())
		}
		s.Transcript = append(s.Transcript, transcript.Entry{
			Speaker: speaker,
			Text:    entry[fieldContent].GetStringValue(),
		})
	}
	return s, nil
}

func encodeResult(r Result) (*structpb.Struct, error) {
	fields := map[string]any{fieldSuccess: r.Success}
	if r.FeedbackID != "" {
		fields[fieldFeedbackID] = r.FeedbackID
	}
	return structpb.NewStruct(fields)
}

func decodeResult(resp *structpb.Struct) Result {
	fields := resp.GetFields()
	return Result{
		Success:    fields[fieldSuccess].GetBoolValue(),
		FeedbackID: fields[fieldFeedbackID].GetStringValue(),
	}
}
