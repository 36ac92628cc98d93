package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
	"github.com/yanqian/interview-evaluator/pkg/util"
)

// JobScoreAnswer is the queue job that scores one answer.
const JobScoreAnswer = "score_answer"

// Config tunes the evaluation service.
type Config struct {
	ClaimTTL         time.Duration
	AggregateRetries int
	// Workers bounds concurrent scoring in ScoreInterview.
	Workers int
}

// Dependencies groups the collaborators of Service.
type Dependencies struct {
	Interviews InterviewRepository
	Questions  QuestionRepository
	Answers    AnswerRepository
	Directory  Directory
	Assembler  *Assembler
	Scorer     *Scorer
	Aggregator *Aggregator
	Claims     ClaimStore
	Queue      JobQueue
	// Archive is optional.
	Archive ReportArchive
}

// Service is the entry point of the evaluation engine.
type Service struct {
	cfg        Config
	interviews InterviewRepository
	questions  QuestionRepository
	answers    AnswerRepository
	directory  Directory
	assembler  *Assembler
	scorer     *Scorer
	aggregator *Aggregator
	claims     ClaimStore
	queue      JobQueue
	archive    ReportArchive
	logger     *slog.Logger
}

// NewService wires the evaluation service.
func NewService(cfg Config, deps Dependencies, logger *slog.Logger) *Service {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 2 * time.Minute
	}
	if cfg.AggregateRetries <= 0 {
		cfg.AggregateRetries = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Service{
		cfg:        cfg,
		interviews: deps.Interviews,
		questions:  deps.Questions,
		answers:    deps.Answers,
		directory:  deps.Directory,
		assembler:  deps.Assembler,
		scorer:     deps.Scorer,
		aggregator: deps.Aggregator,
		claims:     deps.Claims,
		queue:      deps.Queue,
		archive:    deps.Archive,
		logger:     logger.With("component", "evaluation.service"),
	}
}

// CreateInterviewInput identifies the job and candidate of a new interview.
type CreateInterviewInput struct {
	JobID       int64 `json:"jobId"`
	CandidateID int64 `json:"candidateId"`
}

// CreateInterview opens a Pending, NotEvaluated interview.
func (s *Service) CreateInterview(ctx context.Context, actor auth.Actor, in CreateInterviewInput) (Interview, error) {
	if err := requireManager(actor); err != nil {
		return Interview{}, err
	}
	if _, found, err := s.directory.Job(ctx, in.JobID); err != nil {
		return Interview{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load job", err)
	} else if !found {
		return Interview{}, apperrors.WrapContext(apperrors.CodeNotFound, "job not found", nil, "job_id", strconv.FormatInt(in.JobID, 10))
	}
	if _, found, err := s.directory.Candidate(ctx, in.CandidateID); err != nil {
		return Interview{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load candidate", err)
	} else if !found {
		return Interview{}, apperrors.WrapContext(apperrors.CodeNotFound, "candidate not found", nil, "candidate_id", strconv.FormatInt(in.CandidateID, 10))
	}
	now := util.NowUTC()
	iv, err := s.interviews.Create(ctx, Interview{
		JobID:            in.JobID,
		CandidateID:      in.CandidateID,
		Status:           StatusPending,
		EvaluationStatus: EvaluationNotEvaluated,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return Interview{}, apperrors.Wrap(apperrors.CodeStorage, "failed to create interview", err)
	}
	s.logger.Info("interview created", "interview_id", iv.ID, "job_id", iv.JobID, "candidate_id", iv.CandidateID)
	return iv, nil
}

// GetInterview returns an interview visible to actor.
func (s *Service) GetInterview(ctx context.Context, actor auth.Actor, id int64) (Interview, error) {
	iv, err := s.loadInterview(ctx, id)
	if err != nil {
		return Interview{}, err
	}
	if err := canView(actor, iv); err != nil {
		return Interview{}, err
	}
	return iv, nil
}

// Schedule moves a Pending interview to Scheduled, or reschedules it.
func (s *Service) Schedule(ctx context.Context, actor auth.Actor, id int64, at time.Time) (Interview, error) {
	if err := requireManager(actor); err != nil {
		return Interview{}, err
	}
	if at.IsZero() {
		return Interview{}, apperrors.Wrap(apperrors.CodeInvalidInput, "scheduled time is required", nil)
	}
	at = at.UTC()
	return s.transition(ctx, id, func(iv Interview) (InterviewUpdate, bool, error) {
		if err := checkStatusTransition(iv, StatusScheduled); err != nil {
			return InterviewUpdate{}, false, err
		}
		return InterviewUpdate{
			Status:           StatusScheduled,
			EvaluationStatus: iv.EvaluationStatus,
			FinalScore:       iv.FinalScore,
			ScheduledAt:      &at,
		}, true, nil
	})
}

// DeleteInterview removes an interview with its questions and answers.
// In-flight scoring for it discards its result.
func (s *Service) DeleteInterview(ctx context.Context, actor auth.Actor, id int64) error {
	if err := requireManager(actor); err != nil {
		return err
	}
	if err := s.interviews.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return interviewNotFound(id)
		}
		return apperrors.Wrap(apperrors.CodeStorage, "failed to delete interview", err)
	}
	s.logger.Info("interview deleted", "interview_id", id, "actor_id", actor.UserID)
	return nil
}

// AddQuestions attaches manager authored or bank copied questions.
func (s *Service) AddQuestions(ctx context.Context, actor auth.Actor, interviewID int64, inputs []QuestionInput) ([]Question, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	return s.assembler.Assemble(ctx, interviewID, inputs)
}

// AddQuestionsFromBank resolves and attaches bank questions.
func (s *Service) AddQuestionsFromBank(ctx context.Context, actor auth.Actor, interviewID int64, count int, allowShort bool) ([]Question, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	return s.assembler.AssembleFromBank(ctx, interviewID, count, allowShort)
}

// ApproveQuestion makes a question visible to the candidate.
func (s *Service) ApproveQuestion(ctx context.Context, actor auth.Actor, questionID int64) (Question, error) {
	if err := requireManager(actor); err != nil {
		return Question{}, err
	}
	return s.assembler.Approve(ctx, questionID)
}

// EditQuestion changes a question that is not approved yet.
func (s *Service) EditQuestion(ctx context.Context, actor auth.Actor, questionID int64, edit QuestionEdit) (Question, error) {
	if err := requireManager(actor); err != nil {
		return Question{}, err
	}
	return s.assembler.Edit(ctx, questionID, edit)
}

// RemoveQuestion drops a question that is not approved yet.
func (s *Service) RemoveQuestion(ctx context.Context, actor auth.Actor, questionID int64) error {
	if err := requireManager(actor); err != nil {
		return err
	}
	return s.assembler.Remove(ctx, questionID)
}

// ReembedQuestion refreshes a reference embedding after a model change.
func (s *Service) ReembedQuestion(ctx context.Context, actor auth.Actor, questionID int64) (Question, error) {
	if err := requireManager(actor); err != nil {
		return Question{}, err
	}
	return s.assembler.Reembed(ctx, questionID)
}

// ListQuestions returns the interview questions. Candidates see approved
// questions only, without reference material.
func (s *Service) ListQuestions(ctx context.Context, actor auth.Actor, interviewID int64) ([]Question, error) {
	iv, err := s.loadInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, iv); err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to list interview questions", err)
	}
	if !actor.Is(auth.RoleCandidate) {
		return questions, nil
	}
	visible := make([]Question, 0, len(questions))
	for _, q := range questions {
		if !q.Approved {
			continue
		}
		q.ReferenceAnswer = ""
		q.Keywords = nil
		visible = append(visible, q)
	}
	return visible, nil
}

// SubmitAnswerInput is a candidate answer submission.
type SubmitAnswerInput struct {
	InterviewID int64  `json:"interviewId"`
	QuestionID  int64  `json:"questionId"`
	Text        string `json:"text"`
}

// SubmitAnswer stores a pending answer and enqueues its scoring. The last
// expected answer completes the interview.
func (s *Service) SubmitAnswer(ctx context.Context, actor auth.Actor, in SubmitAnswerInput) (Answer, error) {
	if !actor.Is(auth.RoleCandidate) {
		return Answer{}, apperrors.Wrap(apperrors.CodeForbidden, "only candidates can submit answers", nil)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Answer{}, apperrors.Wrap(apperrors.CodeInvalidInput, "answer text cannot be empty", nil)
	}
	iv, err := s.loadInterview(ctx, in.InterviewID)
	if err != nil {
		return Answer{}, err
	}
	if iv.CandidateID != actor.UserID {
		return Answer{}, apperrors.Wrap(apperrors.CodeForbidden, "interview belongs to another candidate", nil)
	}
	if iv.Status != StatusScheduled {
		return Answer{}, invalidState(iv.ID, "answers are only accepted while the interview is Scheduled")
	}
	q, found, err := s.questions.Get(ctx, in.QuestionID)
	if err != nil {
		return Answer{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load question", err)
	}
	if !found || q.InterviewID != iv.ID || !q.Approved {
		return Answer{}, questionNotFound(in.QuestionID)
	}

	ans, err := s.answers.Insert(ctx, Answer{
		InterviewID: iv.ID,
		QuestionID:  q.ID,
		CandidateID: actor.UserID,
		Text:        text,
		Status:      ScoringPending,
		CreatedAt:   util.NowUTC(),
	})
	switch {
	case errors.Is(err, ErrDuplicateAnswer):
		return Answer{}, apperrors.WrapContext(apperrors.CodeConflict, "question already answered", err,
			"interview_id", strconv.FormatInt(iv.ID, 10), "question_id", strconv.FormatInt(q.ID, 10))
	case errors.Is(err, ErrParentGone):
		return Answer{}, interviewNotFound(iv.ID)
	case err != nil:
		return Answer{}, apperrors.Wrap(apperrors.CodeStorage, "failed to store answer", err)
	}
	s.logger.Info("answer submitted", "interview_id", iv.ID, "question_id", q.ID, "answer_id", ans.ID)

	if err := s.completeIfAnswered(ctx, iv.ID); err != nil {
		s.logger.Warn("completion check failed", "interview_id", iv.ID, "error", err)
	}
	if err := s.queue.Enqueue(ctx, JobScoreAnswer, map[string]any{"answer_id": ans.ID}); err != nil {
		// The answer stays pending and is picked up by ScoreInterview.
		s.logger.Warn("failed to enqueue scoring", "answer_id", ans.ID, "error", err)
	}
	return ans, nil
}

// ScoreAnswer scores one answer under its claim and re-aggregates the
// interview. Already scored answers are returned unchanged.
func (s *Service) ScoreAnswer(ctx context.Context, answerID int64) (Answer, error) {
	return s.scoreAnswer(ctx, answerID, false)
}

// Rescore forces a new scoring pass on an answer. Answers of Evaluated
// interviews are frozen.
func (s *Service) Rescore(ctx context.Context, actor auth.Actor, answerID int64) (Answer, error) {
	if err := requireManager(actor); err != nil {
		return Answer{}, err
	}
	ans, err := s.loadAnswer(ctx, answerID)
	if err != nil {
		return Answer{}, err
	}
	iv, err := s.loadInterview(ctx, ans.InterviewID)
	if err != nil {
		return Answer{}, err
	}
	if iv.EvaluationStatus == EvaluationEvaluated {
		return Answer{}, invalidState(iv.ID, "answers of an Evaluated interview cannot be rescored")
	}
	return s.scoreAnswer(ctx, answerID, true)
}

func (s *Service) scoreAnswer(ctx context.Context, answerID int64, force bool) (Answer, error) {
	ans, err := s.loadAnswer(ctx, answerID)
	if err != nil {
		return Answer{}, err
	}
	if !force && ans.Status == ScoringScored {
		return ans, nil
	}

	key := claimKey(ans)
	token, ok, err := s.claims.Acquire(ctx, key, s.cfg.ClaimTTL)
	if err != nil {
		return Answer{}, apperrors.Wrap(apperrors.CodeStorage, "failed to claim answer", err)
	}
	if !ok {
		return Answer{}, apperrors.WrapContext(apperrors.CodeConflict, "answer is already being scored", nil,
			"answer_id", strconv.FormatInt(answerID, 10))
	}
	defer func() {
		if err := s.claims.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("failed to release answer claim", "answer_id", answerID, "error", err)
		}
	}()

	// Reload under the claim; a previous holder may have finished.
	ans, err = s.loadAnswer(ctx, answerID)
	if err != nil {
		return Answer{}, err
	}
	if !force && ans.Status == ScoringScored {
		return ans, nil
	}
	q, found, err := s.questions.Get(ctx, ans.QuestionID)
	if err != nil {
		return Answer{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load question", err)
	}
	if !found {
		return Answer{}, questionNotFound(ans.QuestionID)
	}

	res := s.scorer.Score(ctx, q, ans.Text)
	now := util.NowUTC()
	ans.Embedding = res.Embedding
	ans.Similarity = res.Similarity
	ans.Judgment = res.Judgment
	ans.Score = res.Score
	ans.Feedback = res.Feedback
	ans.Status = res.Status
	ans.Attempts += res.Attempts
	ans.ScoringError = ""
	if res.Err != nil {
		ans.ScoringError = res.Err.Error()
	}
	ans.ScoredAt = &now

	if err := s.answers.SaveScore(ctx, ans); err != nil {
		if errors.Is(err, ErrParentGone) || errors.Is(err, ErrNotFound) {
			s.logger.Info("interview deleted while scoring, result discarded", "interview_id", ans.InterviewID, "answer_id", ans.ID)
			return Answer{}, interviewNotFound(ans.InterviewID)
		}
		return Answer{}, apperrors.Wrap(apperrors.CodeStorage, "failed to store score", err)
	}
	s.logger.Info("answer scored",
		"interview_id", ans.InterviewID,
		"answer_id", ans.ID,
		"status", ans.Status,
		"attempts", res.Attempts,
		"total_tokens", res.Usage.TotalTokens,
	)

	if _, err := s.aggregate(ctx, ans.InterviewID); err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
		s.logger.Warn("aggregation after scoring failed", "interview_id", ans.InterviewID, "error", err)
	}
	if ans.Status == ScoringFailed {
		return ans, apperrors.WrapContext(apperrors.CodeScoringUnavailable, "answer could not be scored", res.Err,
			"interview_id", strconv.FormatInt(ans.InterviewID, 10), "answer_id", strconv.FormatInt(ans.ID, 10))
	}
	return ans, nil
}

// ScoreRun summarizes a ScoreInterview pass.
type ScoreRun struct {
	Attempted int     `json:"attempted"`
	Scored    int     `json:"scored"`
	Partial   int     `json:"partial"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Outcome   Outcome `json:"outcome"`
}

// ScoreInterview scores every answer that is not fully scored yet, with
// bounded concurrency, then aggregates once more.
func (s *Service) ScoreInterview(ctx context.Context, actor auth.Actor, interviewID int64) (ScoreRun, error) {
	if err := requireManager(actor); err != nil {
		return ScoreRun{}, err
	}
	if _, err := s.loadInterview(ctx, interviewID); err != nil {
		return ScoreRun{}, err
	}
	answers, err := s.answers.ListByInterview(ctx, interviewID)
	if err != nil {
		return ScoreRun{}, apperrors.Wrap(apperrors.CodeStorage, "failed to list answers", err)
	}

	var (
		mu  sync.Mutex
		run ScoreRun
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, a := range answers {
		if a.Status == ScoringScored {
			continue
		}
		id := a.ID
		run.Attempted++
		g.Go(func() error {
			scored, err := s.ScoreAnswer(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case apperrors.IsCode(err, apperrors.CodeConflict), apperrors.IsCode(err, apperrors.CodeNotFound):
				run.Skipped++
			case err != nil && !apperrors.IsCode(err, apperrors.CodeScoringUnavailable):
				return err
			case scored.Status == ScoringScored:
				run.Scored++
			case scored.Status == ScoringPartiallyScored:
				run.Partial++
			default:
				run.Failed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return run, err
	}
	out, err := s.aggregate(ctx, interviewID)
	if err != nil {
		return run, err
	}
	run.Outcome = out
	return run, nil
}

// Aggregate recomputes the evaluation status of an interview.
func (s *Service) Aggregate(ctx context.Context, actor auth.Actor, interviewID int64) (Outcome, error) {
	if err := requireManager(actor); err != nil {
		return Outcome{}, err
	}
	return s.aggregate(ctx, interviewID)
}

// AggregateSystem is Aggregate for trusted callers such as the CLI.
func (s *Service) AggregateSystem(ctx context.Context, interviewID int64) (Outcome, error) {
	return s.aggregate(ctx, interviewID)
}

func (s *Service) aggregate(ctx context.Context, interviewID int64) (Outcome, error) {
	out, err := s.aggregator.AggregateWithRetry(ctx, interviewID)
	if err != nil {
		return Outcome{}, err
	}
	if out.Changed && out.Interview.EvaluationStatus == EvaluationEvaluated {
		s.archiveReport(ctx, out.Interview)
	}
	return out, nil
}

// Report builds the per-question breakdown of an interview.
func (s *Service) Report(ctx context.Context, actor auth.Actor, interviewID int64) (Report, error) {
	iv, err := s.loadInterview(ctx, interviewID)
	if err != nil {
		return Report{}, err
	}
	if err := canView(actor, iv); err != nil {
		return Report{}, err
	}
	return s.buildReport(ctx, iv)
}

// HandleJob runs queued jobs. It matches the queue handler signature.
func (s *Service) HandleJob(ctx context.Context, name string, payload map[string]any) error {
	switch name {
	case JobScoreAnswer:
		id, err := int64From(payload["answer_id"])
		if err != nil {
			return fmt.Errorf("score job payload: %w", err)
		}
		_, err = s.ScoreAnswer(ctx, id)
		if apperrors.IsCode(err, apperrors.CodeConflict) || apperrors.IsCode(err, apperrors.CodeNotFound) {
			s.logger.Info("score job skipped", "answer_id", id, "reason", apperrors.CodeOf(err))
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

func (s *Service) buildReport(ctx context.Context, iv Interview) (Report, error) {
	questions, err := s.questions.ListByInterview(ctx, iv.ID)
	if err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeStorage, "failed to list interview questions", err)
	}
	answers, err := s.answers.ListByInterview(ctx, iv.ID)
	if err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeStorage, "failed to list interview answers", err)
	}
	job, _, err := s.directory.Job(ctx, iv.JobID)
	if err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load job", err)
	}
	cand, _, err := s.directory.Candidate(ctx, iv.CandidateID)
	if err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load candidate", err)
	}
	return buildReport(iv, job, cand, questions, answers, util.NowUTC()), nil
}

func (s *Service) archiveReport(ctx context.Context, iv Interview) {
	if s.archive == nil {
		return
	}
	report, err := s.buildReport(ctx, iv)
	if err == nil {
		err = s.archive.Save(ctx, report)
	}
	if err != nil {
		s.logger.Warn("failed to archive evaluation report", "interview_id", iv.ID, "error", err)
		return
	}
	s.logger.Info("evaluation report archived", "interview_id", iv.ID)
}

// completeIfAnswered moves a Scheduled interview to Completed once every
// approved question has an answer.
func (s *Service) completeIfAnswered(ctx context.Context, interviewID int64) error {
	_, err := s.transition(ctx, interviewID, func(iv Interview) (InterviewUpdate, bool, error) {
		if iv.Status != StatusScheduled {
			return InterviewUpdate{}, false, nil
		}
		questions, err := s.questions.ListByInterview(ctx, interviewID)
		if err != nil {
			return InterviewUpdate{}, false, apperrors.Wrap(apperrors.CodeStorage, "failed to list interview questions", err)
		}
		answers, err := s.answers.ListByInterview(ctx, interviewID)
		if err != nil {
			return InterviewUpdate{}, false, apperrors.Wrap(apperrors.CodeStorage, "failed to list interview answers", err)
		}
		answered := make(map[int64]struct{}, len(answers))
		for _, a := range answers {
			answered[a.QuestionID] = struct{}{}
		}
		expected := 0
		for _, q := range questions {
			if !q.Approved {
				continue
			}
			expected++
			if _, ok := answered[q.ID]; !ok {
				return InterviewUpdate{}, false, nil
			}
		}
		if expected == 0 {
			return InterviewUpdate{}, false, nil
		}
		return InterviewUpdate{
			Status:           StatusCompleted,
			EvaluationStatus: iv.EvaluationStatus,
			FinalScore:       iv.FinalScore,
			ScheduledAt:      iv.ScheduledAt,
		}, true, nil
	})
	return err
}

// transition applies a status change through compare-and-swap, retrying
// when another writer wins. decide returns write=false to leave the
// interview untouched.
func (s *Service) transition(ctx context.Context, id int64, decide func(Interview) (InterviewUpdate, bool, error)) (Interview, error) {
	for attempt := 0; attempt < s.cfg.AggregateRetries; attempt++ {
		iv, err := s.loadInterview(ctx, id)
		if err != nil {
			return Interview{}, err
		}
		update, write, err := decide(iv)
		if err != nil || !write {
			return iv, err
		}
		updated, err := s.interviews.CompareAndSwap(ctx, id, iv.Version, update)
		switch {
		case err == nil:
			if updated.Status != iv.Status {
				s.logger.Info("interview status changed", "interview_id", id, "from", iv.Status, "to", updated.Status)
			}
			return updated, nil
		case errors.Is(err, ErrVersionConflict):
			continue
		case errors.Is(err, ErrNotFound):
			return Interview{}, interviewNotFound(id)
		default:
			return Interview{}, apperrors.Wrap(apperrors.CodeStorage, "failed to update interview", err)
		}
	}
	return Interview{}, apperrors.WrapContext(apperrors.CodeConflict, "interview is being modified concurrently", nil,
		"interview_id", strconv.FormatInt(id, 10))
}

func (s *Service) loadInterview(ctx context.Context, id int64) (Interview, error) {
	iv, found, err := s.interviews.Get(ctx, id)
	if err != nil {
		return Interview{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load interview", err)
	}
	if !found {
		return Interview{}, interviewNotFound(id)
	}
	return iv, nil
}

func (s *Service) loadAnswer(ctx context.Context, id int64) (Answer, error) {
	a, found, err := s.answers.Get(ctx, id)
	if err != nil {
		return Answer{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load answer", err)
	}
	if !found {
		return Answer{}, apperrors.WrapContext(apperrors.CodeNotFound, "answer not found", nil, "answer_id", strconv.FormatInt(id, 10))
	}
	return a, nil
}

func claimKey(a Answer) string {
	return fmt.Sprintf("score:interview:%d:question:%d:candidate:%d", a.InterviewID, a.QuestionID, a.CandidateID)
}

func requireManager(actor auth.Actor) error {
	if !actor.Is(auth.RoleManager, auth.RoleAdmin) {
		return apperrors.Wrap(apperrors.CodeForbidden, "manager role required", nil)
	}
	return nil
}

func canView(actor auth.Actor, iv Interview) error {
	if actor.Is(auth.RoleManager, auth.RoleAdmin) {
		return nil
	}
	if actor.Is(auth.RoleCandidate) && actor.UserID == iv.CandidateID {
		return nil
	}
	return apperrors.Wrap(apperrors.CodeForbidden, "interview is not visible to this user", nil)
}

func int64From(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected id type %T", v)
	}
}
