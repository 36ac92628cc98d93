package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

// Assembler attaches questions to interviews.
type Assembler struct {
	interviews InterviewRepository
	questions  QuestionRepository
	directory  Directory
	resolver   *knowledge.Resolver
	embedder   embedding.Provider
	logger     *slog.Logger
}

// NewAssembler constructs an Assembler. resolver may be nil when bank
// assembly is not offered.
func NewAssembler(interviews InterviewRepository, questions QuestionRepository, directory Directory, resolver *knowledge.Resolver, embedder embedding.Provider, logger *slog.Logger) *Assembler {
	return &Assembler{
		interviews: interviews,
		questions:  questions,
		directory:  directory,
		resolver:   resolver,
		embedder:   embedder,
		logger:     logger.With("component", "evaluation.assembler"),
	}
}

// Assemble copies inputs onto the interview. Inputs that reference a bank
// question already attached are skipped, so retries do not duplicate.
// Reference embeddings are computed before anything is written.
func (a *Assembler) Assemble(ctx context.Context, interviewID int64, inputs []QuestionInput) ([]Question, error) {
	iv, err := a.loadInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if !acceptsQuestions(iv.Status) {
		return nil, invalidState(iv.ID, "questions cannot be added to a "+string(iv.Status)+" interview")
	}
	if len(inputs) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "at least one question is required", nil)
	}
	drafts := make([]Question, 0, len(inputs))
	for i, in := range inputs {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, apperrors.WrapContext(apperrors.CodeInvalidInput, "question text cannot be empty", nil,
				"interview_id", strconv.FormatInt(interviewID, 10), "index", strconv.Itoa(i))
		}
		q := Question{
			InterviewID:       interviewID,
			SourceKnowledgeID: in.SourceKnowledgeID,
			Text:              text,
			ReferenceAnswer:   strings.TrimSpace(in.ReferenceAnswer),
			Keywords:          knowledge.NormalizeKeywords(in.Keywords),
			Approved:          in.Approved,
		}
		if in.Embedding != nil && in.Embedding.Model == a.embedder.Model() && !in.Embedding.IsZero() {
			q.ReferenceEmbedding = in.Embedding.Clone()
		}
		drafts = append(drafts, q)
	}
	if err := a.embedMissing(ctx, drafts); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stored := make([]Question, 0, len(drafts))
	for _, q := range drafts {
		q.CreatedAt = now
		saved, created, err := a.questions.Insert(ctx, q)
		if err != nil {
			if errors.Is(err, ErrParentGone) {
				return stored, interviewNotFound(interviewID)
			}
			return stored, apperrors.Wrap(apperrors.CodeStorage, "failed to store interview question", err)
		}
		if !created {
			a.logger.Debug("bank question already attached", "interview_id", interviewID, "question_id", saved.ID)
		}
		stored = append(stored, saved)
	}
	a.logger.Info("questions assembled", "interview_id", interviewID, "count", len(stored))
	return stored, nil
}

// AssembleFromBank resolves count questions for the job technology and
// attaches them unapproved. A short bank fails with not_found unless
// allowShort is set.
func (a *Assembler) AssembleFromBank(ctx context.Context, interviewID int64, count int, allowShort bool) ([]Question, error) {
	if a.resolver == nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidState, "question bank is not configured", nil)
	}
	iv, err := a.loadInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if !acceptsQuestions(iv.Status) {
		return nil, invalidState(iv.ID, "questions cannot be added to a "+string(iv.Status)+" interview")
	}
	job, found, err := a.directory.Job(ctx, iv.JobID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to load job", err)
	}
	if !found {
		return nil, apperrors.WrapContext(apperrors.CodeNotFound, "job not found", nil, "job_id", strconv.FormatInt(iv.JobID, 10))
	}
	bank, err := a.resolver.Resolve(ctx, knowledge.ResolveRequest{
		Technology:  job.Technology,
		Count:       count,
		CandidateID: iv.CandidateID,
	})
	if err != nil && !(allowShort && apperrors.IsCode(err, apperrors.CodeNotFound) && len(bank) > 0) {
		return nil, err
	}
	inputs := make([]QuestionInput, 0, len(bank))
	for _, kq := range bank {
		inputs = append(inputs, FromKnowledge(kq, false))
	}
	return a.Assemble(ctx, interviewID, inputs)
}

// Approve marks a question as visible to the candidate and expected in
// aggregation.
func (a *Assembler) Approve(ctx context.Context, questionID int64) (Question, error) {
	q, err := a.loadQuestion(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	iv, err := a.loadInterview(ctx, q.InterviewID)
	if err != nil {
		return Question{}, err
	}
	if !acceptsQuestions(iv.Status) {
		return Question{}, invalidState(iv.ID, "questions of a "+string(iv.Status)+" interview cannot be approved")
	}
	if q.Approved {
		return q, nil
	}
	if err := a.questions.SetApproved(ctx, questionID, true); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Question{}, questionNotFound(questionID)
		}
		return Question{}, apperrors.Wrap(apperrors.CodeStorage, "failed to approve question", err)
	}
	q.Approved = true
	return q, nil
}

// Reembed recomputes a question's reference embedding with the current
// model. It is the only path that changes a stored reference vector.
func (a *Assembler) Reembed(ctx context.Context, questionID int64) (Question, error) {
	q, err := a.loadQuestion(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	vec, err := embedding.EmbedOne(ctx, a.embedder, referenceText(q))
	if err != nil {
		return Question{}, apperrors.WrapContext(apperrors.CodeScoringUnavailable, "failed to embed reference answer", err,
			"question_id", strconv.FormatInt(questionID, 10))
	}
	q.ReferenceEmbedding = vec
	if err := a.questions.UpdateReferenceEmbedding(ctx, q); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Question{}, questionNotFound(questionID)
		}
		return Question{}, apperrors.Wrap(apperrors.CodeStorage, "failed to store reference embedding", err)
	}
	a.logger.Info("reference embedding refreshed", "question_id", questionID, "model", vec.Model)
	return q, nil
}

// Edit rewrites an unapproved question and recomputes its reference
// embedding. Approved questions are fixed.
func (a *Assembler) Edit(ctx context.Context, questionID int64, edit QuestionEdit) (Question, error) {
	q, iv, err := a.loadDraft(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	if edit.Text != nil {
		text := strings.TrimSpace(*edit.Text)
		if text == "" {
			return Question{}, apperrors.WrapContext(apperrors.CodeInvalidInput, "question text cannot be empty", nil,
				"interview_id", strconv.FormatInt(iv.ID, 10), "question_id", strconv.FormatInt(questionID, 10))
		}
		q.Text = text
	}
	if edit.ReferenceAnswer != nil {
		q.ReferenceAnswer = strings.TrimSpace(*edit.ReferenceAnswer)
	}
	if edit.Keywords != nil {
		q.Keywords = knowledge.NormalizeKeywords(edit.Keywords)
	}
	vec, err := embedding.EmbedOne(ctx, a.embedder, referenceText(q))
	if err != nil {
		return Question{}, apperrors.WrapContext(apperrors.CodeScoringUnavailable, "failed to embed reference answer", err,
			"question_id", strconv.FormatInt(questionID, 10))
	}
	q.ReferenceEmbedding = vec
	if err := a.questions.UpdateDraft(ctx, q); err != nil {
		return Question{}, draftWriteError(questionID, err)
	}
	a.logger.Info("draft question edited", "interview_id", iv.ID, "question_id", questionID)
	return q, nil
}

// Remove deletes an unapproved question from its interview.
func (a *Assembler) Remove(ctx context.Context, questionID int64) error {
	_, iv, err := a.loadDraft(ctx, questionID)
	if err != nil {
		return err
	}
	if err := a.questions.DeleteDraft(ctx, questionID); err != nil {
		return draftWriteError(questionID, err)
	}
	a.logger.Info("draft question removed", "interview_id", iv.ID, "question_id", questionID)
	return nil
}

func (a *Assembler) loadDraft(ctx context.Context, questionID int64) (Question, Interview, error) {
	q, err := a.loadQuestion(ctx, questionID)
	if err != nil {
		return Question{}, Interview{}, err
	}
	iv, err := a.loadInterview(ctx, q.InterviewID)
	if err != nil {
		return Question{}, Interview{}, err
	}
	if !acceptsQuestions(iv.Status) {
		return Question{}, Interview{}, invalidState(iv.ID, "questions of a "+string(iv.Status)+" interview cannot be changed")
	}
	if q.Approved {
		return Question{}, Interview{}, invalidState(iv.ID, "approved questions cannot be changed")
	}
	return q, iv, nil
}

func draftWriteError(questionID int64, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return questionNotFound(questionID)
	case errors.Is(err, ErrVersionConflict):
		return apperrors.WrapContext(apperrors.CodeConflict, "question was approved concurrently", err,
			"question_id", strconv.FormatInt(questionID, 10))
	default:
		return apperrors.Wrap(apperrors.CodeStorage, "failed to update question", err)
	}
}

func (a *Assembler) embedMissing(ctx context.Context, drafts []Question) error {
	var (
		idx   []int
		texts []string
	)
	for i, q := range drafts {
		if q.ReferenceEmbedding.IsZero() {
			idx = append(idx, i)
			texts = append(texts, referenceText(q))
		}
	}
	if len(texts) == 0 {
		return nil
	}
	vecs, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeScoringUnavailable, "failed to embed reference answers", err)
	}
	if len(vecs) != len(texts) {
		return apperrors.Wrap(apperrors.CodeScoringUnavailable, "embedding provider returned a short batch", nil)
	}
	for n, i := range idx {
		drafts[i].ReferenceEmbedding = vecs[n]
	}
	return nil
}

func (a *Assembler) loadInterview(ctx context.Context, id int64) (Interview, error) {
	iv, found, err := a.interviews.Get(ctx, id)
	if err != nil {
		return Interview{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load interview", err)
	}
	if !found {
		return Interview{}, interviewNotFound(id)
	}
	return iv, nil
}

func (a *Assembler) loadQuestion(ctx context.Context, id int64) (Question, error) {
	q, found, err := a.questions.Get(ctx, id)
	if err != nil {
		return Question{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load question", err)
	}
	if !found {
		return Question{}, questionNotFound(id)
	}
	return q, nil
}

// referenceText is what a question's answers are compared against. Manager
// authored questions without a reference answer fall back to the prompt.
func referenceText(q Question) string {
	if q.ReferenceAnswer != "" {
		return q.ReferenceAnswer
	}
	return q.Text
}

func questionNotFound(id int64) error {
	return apperrors.WrapContext(apperrors.CodeNotFound, "question not found", nil, "question_id", strconv.FormatInt(id, 10))
}
