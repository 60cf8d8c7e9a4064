package interview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/metrics"
)

// Interview is a finalized question set for one candidate.
type Interview struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Type      string    `json:"type"`
	Level     string    `json:"level"`
	Techstack []string  `json:"techstack"`
	Questions []string  `json:"questions"`
	Finalized bool      `json:"finalized"`
	CreatedAt time.Time `json:"created_at"`
}

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Saver persists generated interviews.
type Saver interface {
	SaveInterview(ctx context.Context, iv Interview) error
}

type Service struct {
	gen    Generator
	saver  Saver
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a generator and an optional saver.
func NewService(gen Generator, saver Saver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{gen: gen, saver: saver, logger: logger, now: time.Now}
}

// Create validates req, asks the generator for questions, and saves the
// result. Errors wrap ErrMissingFields or ErrUnparseable where they apply.
func (s *Service) Create(ctx context.Context, req Request) (Interview, error) {
	if err := req.Validate(); err != nil {
		metrics.IncInterviewGenerated("invalid")
		return Interview{}, err
	}

	reply, err := s.gen.Generate(ctx, Prompt(req))
	if err != nil {
		metrics.IncInterviewGenerated("error")
		return Interview{}, fmt.Errorf("generate questions: %w", err)
	}

	questions, err := ExtractQuestions(reply)
	if err != nil {
		metrics.IncInterviewGenerated("unparseable")
		s.logger.Warn("generated questions not usable", "user_id", req.UserID, "error", err.Error(), "reply", reply)
		return Interview{}, err
	}

	iv := Interview{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Role:      req.Role,
		Type:      req.Type,
		Level:     req.Level,
		Techstack: req.Stack(),
		Questions: questions,
		Finalized: true,
		CreatedAt: s.now().UTC(),
	}
	if s.saver != nil {
		if err := s.saver.SaveInterview(ctx, iv); err != nil {
			metrics.IncInterviewGenerated("error")
			return Interview{}, fmt.Errorf("save interview: %w", err)
		}
	}

	metrics.IncInterviewGenerated("created")
	s.logger.Info("interview generated", "interview_id", iv.ID, "user_id", iv.UserID, "questions", len(iv.Questions))
	return iv, nil
}
