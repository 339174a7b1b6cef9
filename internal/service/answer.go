package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/telemetry"
)

// Retriever finds the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error)
}

// Generator writes an answer grounded on the assembled passages.
type Generator interface {
	Generate(ctx context.Context, query, passages string) (string, error)
}

// AnswerService runs the retrieve, assemble, generate pipeline. It is
// immutable after construction and safe for concurrent use.
type AnswerService struct {
	retriever Retriever
	generator Generator
	topK      int
	logs      AnswerLogRepository
	log       *slog.Logger
	now       func() time.Time
}

// AnswerOption configures an AnswerService.
type AnswerOption func(*AnswerService)

// WithAnswerLog records every answer in repo.
func WithAnswerLog(repo AnswerLogRepository) AnswerOption {
	return func(s *AnswerService) {
		s.logs = repo
	}
}

// WithServiceLogger sets the logger used for pipeline records.
func WithServiceLogger(l *slog.Logger) AnswerOption {
	return func(s *AnswerService) {
		s.log = l
	}
}

// NewAnswerService creates an AnswerService. topK must be positive.
func NewAnswerService(retriever Retriever, generator Generator, topK int, opts ...AnswerOption) (*AnswerService, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	s := &AnswerService{
		retriever: retriever,
		generator: generator,
		topK:      topK,
		log:       logger.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TopK returns the number of chunks retrieved per question.
func (s *AnswerService) TopK() int { return s.topK }

// Answer answers one question. A blank question fails with EmptyQuery before
// any retrieval. Abstention is a normal result with Abstained set.
func (s *AnswerService) Answer(ctx context.Context, query string) (*domain.AnswerResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	start := s.now()
	ctx, span := telemetry.StartSpan(ctx, "answer", telemetry.SpanAttributes{
		Operation: "answer",
		TopK:      s.topK,
	})
	defer span.End()

	results, err := telemetry.Trace(ctx, "answer.retrieve", telemetry.SpanAttributes{Operation: "retrieve", TopK: s.topK},
		func(ctx context.Context) ([]domain.RetrievalResult, error) {
			return s.retriever.Retrieve(ctx, query, s.topK)
		})
	if err != nil {
		err = asCode(err, domain.ErrCodeRetrievalFailure, domain.ErrRetrievalFailure)
		s.record(ctx, query, nil, nil, err, start)
		span.SetError(err)
		return nil, err
	}

	passages := FormatContext(results)

	answer, err := telemetry.Trace(ctx, "answer.generate", telemetry.SpanAttributes{Operation: "generate"},
		func(ctx context.Context) (string, error) {
			return s.generator.Generate(ctx, query, passages)
		})
	if err != nil {
		err = asCode(err, domain.ErrCodeGenerationFailure, domain.ErrGenerationFailure)
		s.record(ctx, query, results, nil, err, start)
		span.SetError(err)
		return nil, err
	}

	sources := make([]domain.Source, len(results))
	for i, r := range results {
		sources[i] = domain.NewSource(r)
	}

	result := &domain.AnswerResult{
		Query:              query,
		Answer:             answer,
		Sources:            sources,
		NumChunksRetrieved: len(results),
		Abstained:          domain.IsAbstention(answer),
	}

	span.SetData("num_chunks", len(results))
	span.SetData("abstained", result.Abstained)
	s.record(ctx, query, results, result, nil, start)

	return result, nil
}

// Search retrieves ranked chunks without generating an answer. A
// non-positive limit uses the service's topK.
func (s *AnswerService) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.topK
	}

	results, err := s.retriever.Retrieve(ctx, query, limit)
	if err != nil {
		return nil, asCode(err, domain.ErrCodeRetrievalFailure, domain.ErrRetrievalFailure)
	}
	return results, nil
}

// record writes the answer log. Failures are logged and never surface.
func (s *AnswerService) record(ctx context.Context, query string, results []domain.RetrievalResult, result *domain.AnswerResult, answerErr error, start time.Time) {
	duration := s.now().Sub(start)
	log := logger.FromContext(ctx)
	if log == logger.Default() {
		log = s.log
	}

	if answerErr != nil {
		log.Warn("answer failed", "error", answerErr, "code", domain.CodeOf(answerErr), "duration_ms", duration.Milliseconds())
	} else {
		log.Info("answer served",
			"chunks", result.NumChunksRetrieved,
			"abstained", result.Abstained,
			"duration_ms", duration.Milliseconds(),
		)
	}

	if s.logs == nil {
		return
	}

	entry := AnswerLogEntry{
		Query:      query,
		TopK:       s.topK,
		DurationMs: int(duration.Milliseconds()),
		Sources:    make([]AnswerLogSource, 0, len(results)),
	}
	for _, r := range results {
		entry.Sources = append(entry.Sources, AnswerLogSource{ID: r.ID, Rank: r.Rank, Score: r.Score})
	}
	if result != nil {
		entry.Answer = result.Answer
		entry.Abstained = result.Abstained
	}
	if answerErr != nil {
		entry.ErrorCode = domain.CodeOf(answerErr)
	}

	if _, err := s.logs.CreateAnswerLog(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn("failed to record answer log", "error", err)
	}
}

// asCode returns err unchanged when it already carries code, and wraps it in
// fallback otherwise.
func asCode(err error, code string, fallback *domain.DomainError) error {
	if domain.IsCode(err, code) {
		return err
	}
	return fallback.WithCause(err)
}
