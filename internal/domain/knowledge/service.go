package knowledge

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

// Service exposes bank management on top of the Resolver.
type Service struct {
	repo      Repository
	resolver  *Resolver
	generator *Generator
	embedder  embedding.Provider
	logger    *slog.Logger
}

// NewService constructs a Service. generator may be nil when no LLM is set up.
func NewService(repo Repository, resolver *Resolver, generator *Generator, embedder embedding.Provider, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		generator: generator,
		embedder:  embedder,
		logger:    logger.With("component", "knowledge.service"),
	}
}

// Create adds a new entry to the bank with its reference embedding.
func (s *Service) Create(ctx context.Context, actor auth.Actor, draft Draft) (Question, error) {
	if err := requireEditor(actor); err != nil {
		return Question{}, err
	}
	return s.create(ctx, draft, nil)
}

// Revise stores an edited copy of an existing entry. The original is kept so
// interview questions that copied it are unaffected.
func (s *Service) Revise(ctx context.Context, actor auth.Actor, id int64, draft Draft) (Question, error) {
	if err := requireEditor(actor); err != nil {
		return Question{}, err
	}
	prev, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return Question{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load bank question", err)
	}
	if !found {
		return Question{}, notFound(id)
	}
	if strings.TrimSpace(draft.Technology) == "" {
		draft.Technology = prev.Technology
	}
	if strings.TrimSpace(draft.ReferenceAnswer) == "" {
		draft.ReferenceAnswer = prev.ReferenceAnswer
	}
	if len(draft.Keywords) == 0 {
		draft.Keywords = prev.Keywords
	}
	return s.create(ctx, draft, &prev.ID)
}

// Delete removes a bank entry; interview questions keep their copy and lose
// only the back-reference.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	if err := requireEditor(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(id)
		}
		return apperrors.Wrap(apperrors.CodeStorage, "failed to delete bank question", err)
	}
	s.logger.Info("bank question deleted", "knowledge_id", id, "actor_id", actor.UserID)
	return nil
}

// Get returns a single bank entry.
func (s *Service) Get(ctx context.Context, id int64) (Question, error) {
	q, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return Question{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load bank question", err)
	}
	if !found {
		return Question{}, notFound(id)
	}
	return q, nil
}

// Feedback records a manager's verdict. Negative feedback removes the
// question from future resolution.
func (s *Service) Feedback(ctx context.Context, actor auth.Actor, id int64, isGood bool, comment string) error {
	if !actor.Is(auth.RoleManager) {
		return apperrors.Wrap(apperrors.CodeForbidden, "only managers can rate questions", nil)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	fb := Feedback{
		QuestionID: id,
		ManagerID:  actor.UserID,
		IsGood:     isGood,
		Comment:    strings.TrimSpace(comment),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.AddFeedback(ctx, fb); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to store feedback", err)
	}
	return nil
}

// Generate asks the LLM for n new questions and stores them.
func (s *Service) Generate(ctx context.Context, actor auth.Actor, technology string, n int) ([]Question, error) {
	if err := requireEditor(actor); err != nil {
		return nil, err
	}
	if s.generator == nil {
		return nil, apperrors.Wrap(apperrors.CodeScoringUnavailable, "bank generation is not configured", nil)
	}
	if NormalizeTechnology(technology) == "" || n <= 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "technology and a positive count are required", nil)
	}
	drafts, err := s.generator.Generate(ctx, technology, n)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeScoringUnavailable, "bank generation failed", err)
	}
	created := make([]Question, 0, len(drafts))
	for _, d := range drafts {
		q, err := s.create(ctx, d, nil)
		if err != nil {
			s.logger.Warn("skipping generated question", "error", err)
			continue
		}
		created = append(created, q)
	}
	s.logger.Info("bank questions generated", "technology", technology, "requested", n, "created", len(created))
	return created, nil
}

// Resolve delegates to the Resolver.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) ([]Question, error) {
	return s.resolver.Resolve(ctx, req)
}

func (s *Service) create(ctx context.Context, draft Draft, revisionOf *int64) (Question, error) {
	tech := NormalizeTechnology(draft.Technology)
	text := strings.TrimSpace(draft.Text)
	if tech == "" || text == "" {
		return Question{}, apperrors.Wrap(apperrors.CodeInvalidInput, "technology and text are required", nil)
	}
	q := Question{
		Technology:      tech,
		Text:            text,
		ReferenceAnswer: strings.TrimSpace(draft.ReferenceAnswer),
		Keywords:        NormalizeKeywords(draft.Keywords),
		RevisionOf:      revisionOf,
		CreatedAt:       time.Now().UTC(),
	}
	if s.embedder != nil && q.ReferenceAnswer != "" {
		vec, err := embedding.EmbedOne(ctx, s.embedder, q.ReferenceAnswer)
		if err != nil {
			// The interview assembler embeds on demand when the bank copy is missing.
			s.logger.Warn("reference embedding failed, storing without vector", "error", err)
		} else {
			q.Embedding = &vec
		}
	}
	saved, err := s.repo.Create(ctx, q)
	if err != nil {
		return Question{}, apperrors.Wrap(apperrors.CodeStorage, "failed to store bank question", err)
	}
	return saved, nil
}

func requireEditor(actor auth.Actor) error {
	if !actor.Is(auth.RoleManager, auth.RoleAdmin) {
		return apperrors.Wrap(apperrors.CodeForbidden, "only managers or admins can edit the question bank", nil)
	}
	return nil
}

func notFound(id int64) error {
	return apperrors.WrapContext(apperrors.CodeNotFound, "bank question not found", nil, "knowledge_id", strconv.FormatInt(id, 10))
}
