package evaluation_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

// slowJudge never answers for one text and defers to a table otherwise.
type slowJudge struct {
	slow  string
	table *tableJudge
}

func (j slowJudge) Judge(ctx context.Context, req evaluation.JudgeRequest) (evaluation.Judgment, error) {
	if req.Answer == j.slow {
		<-ctx.Done()
		return evaluation.Judgment{}, ctx.Err()
	}
	return j.table.Judge(ctx, req)
}

func TestPartialThenFullEvaluation(t *testing.T) {
	judge := &tableJudge{scores: map[string]float64{"a1": 1, "a2": 0.5, "a3": 0}}
	f := newFixture(t, judge, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 3)

	a1 := f.submit(t, iv, qs[0], "a1")
	a2 := f.submit(t, iv, qs[1], "a2")
	a3 := f.submit(t, iv, qs[2], "a3")
	require.Len(t, f.queue.jobs, 3)
	require.Equal(t, evaluation.StatusCompleted, f.interview(t, iv.ID).Status)

	scored, err := f.svc.ScoreAnswer(ctx, a1.ID)
	require.NoError(t, err)
	require.Equal(t, evaluation.ScoringScored, scored.Status)
	require.InDelta(t, 10.0, *scored.Score, 1e-9)
	_, err = f.svc.ScoreAnswer(ctx, a2.ID)
	require.NoError(t, err)

	got := f.interview(t, iv.ID)
	require.Equal(t, evaluation.EvaluationPartiallyEvaluated, got.EvaluationStatus)
	require.Nil(t, got.FinalScore)

	last, err := f.svc.ScoreAnswer(ctx, a3.ID)
	require.NoError(t, err)
	require.InDelta(t, 4.6, *last.Score, 1e-9)

	got = f.interview(t, iv.ID)
	require.Equal(t, evaluation.EvaluationEvaluated, got.EvaluationStatus)
	require.NotNil(t, got.FinalScore)
	require.InDelta(t, 7.3, *got.FinalScore, 1e-9)
	require.GreaterOrEqual(t, *got.FinalScore, 1.0)
	require.LessOrEqual(t, *got.FinalScore, 10.0)
	require.Len(t, f.archive.reports, 1)
	require.Len(t, f.archive.reports[0].Items, 3)
}

func TestJudgeTimeoutLeavesAnswerPartiallyScored(t *testing.T) {
	judge := slowJudge{slow: "slow", table: &tableJudge{scores: map[string]float64{"fast": 0.8}}}
	f := newFixture(t, judge, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 2)

	fast := f.submit(t, iv, qs[0], "fast")
	slow := f.submit(t, iv, qs[1], "slow")

	_, err := f.svc.ScoreAnswer(ctx, fast.ID)
	require.NoError(t, err)
	partial, err := f.svc.ScoreAnswer(ctx, slow.ID)
	require.NoError(t, err)
	require.Equal(t, evaluation.ScoringPartiallyScored, partial.Status)
	require.Nil(t, partial.Judgment)
	require.NotNil(t, partial.Similarity)
	require.InDelta(t, 10.0, *partial.Score, 1e-9)
	require.NotEmpty(t, partial.ScoringError)
	require.Equal(t, 3, partial.Attempts)

	got := f.interview(t, iv.ID)
	require.Equal(t, evaluation.EvaluationPartiallyEvaluated, got.EvaluationStatus)
	require.Nil(t, got.FinalScore)
}

func TestAssembleOnCompletedInterviewFails(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 1)
	f.submit(t, iv, qs[0], "answer")
	require.Equal(t, evaluation.StatusCompleted, f.interview(t, iv.ID).Status)

	_, err := f.svc.AddQuestions(ctx, manager, iv.ID, []evaluation.QuestionInput{{Text: "late question", Approved: true}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
	require.Equal(t, strconv.FormatInt(iv.ID, 10), apperrors.ContextOf(err)["interview_id"])

	listed, err := f.svc.ListQuestions(ctx, manager, iv.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestAssembleRejectsEmptyQuestionText(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()
	iv, err := f.svc.CreateInterview(ctx, manager, evaluation.CreateInterviewInput{JobID: 10, CandidateID: candidate.UserID})
	require.NoError(t, err)

	_, err = f.svc.AddQuestions(ctx, manager, iv.ID, []evaluation.QuestionInput{{Text: "ok"}, {Text: "  "}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	listed, err := f.svc.ListQuestions(ctx, manager, iv.ID)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestDeleteInterviewCascades(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 2)
	ans := f.submit(t, iv, qs[0], "answer")

	require.NoError(t, f.svc.DeleteInterview(ctx, manager, iv.ID))

	_, err := f.svc.GetInterview(ctx, manager, iv.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	remaining, err := f.store.Questions().ListByInterview(ctx, iv.ID)
	require.NoError(t, err)
	require.Empty(t, remaining)
	_, found, err := f.store.Answers().Get(ctx, ans.ID)
	require.NoError(t, err)
	require.False(t, found)

	err = f.svc.DeleteInterview(ctx, manager, iv.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestDeletingBankQuestionNullifiesBackReference(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()
	kq, err := f.bank.Create(ctx, manager, knowledge.Draft{Technology: "go", Text: "What is a goroutine?", ReferenceAnswer: "A lightweight thread."})
	require.NoError(t, err)
	require.NotNil(t, kq.Embedding)

	iv, err := f.svc.CreateInterview(ctx, manager, evaluation.CreateInterviewInput{JobID: 10, CandidateID: candidate.UserID})
	require.NoError(t, err)
	attached, err := f.svc.AddQuestionsFromBank(ctx, manager, iv.ID, 1, false)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	require.Equal(t, kq.ID, *attached[0].SourceKnowledgeID)
	require.False(t, attached[0].Approved)

	require.NoError(t, f.bank.Delete(ctx, manager, kq.ID))

	kept, err := f.svc.ListQuestions(ctx, manager, iv.ID)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	require.Nil(t, kept[0].SourceKnowledgeID)
	require.Equal(t, "What is a goroutine?", kept[0].Text)
}

func TestAssembleFromBankIsIdempotentPerSource(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()
	kq, err := f.bank.Create(ctx, manager, knowledge.Draft{Technology: "go", Text: "Explain channels.", ReferenceAnswer: "Typed pipes."})
	require.NoError(t, err)
	iv, err := f.svc.CreateInterview(ctx, manager, evaluation.CreateInterviewInput{JobID: 10, CandidateID: candidate.UserID})
	require.NoError(t, err)

	in := evaluation.FromKnowledge(kq, true)
	first, err := f.svc.AddQuestions(ctx, manager, iv.ID, []evaluation.QuestionInput{in})
	require.NoError(t, err)
	second, err := f.svc.AddQuestions(ctx, manager, iv.ID, []evaluation.QuestionInput{in})
	require.NoError(t, err)
	require.Equal(t, first[0].ID, second[0].ID)

	listed, err := f.svc.ListQuestions(ctx, manager, iv.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = f.svc.AddQuestionsFromBank(ctx, manager, iv.ID, 3, false)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestConcurrentScoringStoresOneScore(t *testing.T) {
	judge := newBlockingJudge()
	cfg := fastScoring()
	cfg.JudgeTimeout = 5 * time.Second
	f := newFixture(t, judge, cfg)
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 1)
	ans := f.submit(t, iv, qs[0], "answer")

	var (
		wg     sync.WaitGroup
		first  evaluation.Answer
		errOne error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, errOne = f.svc.ScoreAnswer(ctx, ans.ID)
	}()
	<-judge.entered

	_, err := f.svc.ScoreAnswer(ctx, ans.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	close(judge.release)
	wg.Wait()
	require.NoError(t, errOne)
	require.Equal(t, evaluation.ScoringScored, first.Status)

	again, err := f.svc.ScoreAnswer(ctx, ans.ID)
	require.NoError(t, err)
	require.Equal(t, *first.Score, *again.Score)
	require.Equal(t, 1, judge.Calls())
}

func TestDeleteDuringScoringDiscardsResult(t *testing.T) {
	judge := newBlockingJudge()
	cfg := fastScoring()
	cfg.JudgeTimeout = 5 * time.Second
	f := newFixture(t, judge, cfg)
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 1)
	ans := f.submit(t, iv, qs[0], "answer")

	errCh := make(chan error, 1)
	go func() {
		_, err := f.svc.ScoreAnswer(ctx, ans.ID)
		errCh <- err
	}()
	<-judge.entered
	require.NoError(t, f.svc.DeleteInterview(ctx, manager, iv.ID))
	close(judge.release)

	err := <-errCh
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	_, found, err := f.store.Answers().Get(ctx, ans.ID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestAggregationIsIdempotent(t *testing.T) {
	judge := &tableJudge{scores: map[string]float64{"a": 0.9, "b": 0.7}}
	f := newFixture(t, judge, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 2)
	f.submit(t, iv, qs[0], "a")
	f.submit(t, iv, qs[1], "b")

	run, err := f.svc.ScoreInterview(ctx, manager, iv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, run.Attempted)
	require.Equal(t, 2, run.Scored)
	require.Equal(t, evaluation.EvaluationEvaluated, run.Outcome.Interview.EvaluationStatus)

	before := f.interview(t, iv.ID)
	out, err := f.svc.Aggregate(ctx, manager, iv.ID)
	require.NoError(t, err)
	require.False(t, out.Changed)
	out, err = f.svc.Aggregate(ctx, manager, iv.ID)
	require.NoError(t, err)
	require.False(t, out.Changed)

	after := f.interview(t, iv.ID)
	require.Equal(t, before.Version, after.Version)
	require.Equal(t, *before.FinalScore, *after.FinalScore)
	require.Len(t, f.archive.reports, 1)
}

func TestSubmitAnswerRules(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()

	pending, err := f.svc.CreateInterview(ctx, manager, evaluation.CreateInterviewInput{JobID: 10, CandidateID: candidate.UserID})
	require.NoError(t, err)
	pq, err := f.svc.AddQuestions(ctx, manager, pending.ID, []evaluation.QuestionInput{{Text: "q", Approved: true}})
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(ctx, candidate, evaluation.SubmitAnswerInput{InterviewID: pending.ID, QuestionID: pq[0].ID, Text: "x"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))

	iv, qs := f.scheduledInterview(t, 2)
	hidden, err := f.svc.AddQuestions(ctx, manager, iv.ID, []evaluation.QuestionInput{{Text: "draft"}})
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, candidate, evaluation.SubmitAnswerInput{InterviewID: iv.ID, QuestionID: hidden[0].ID, Text: "x"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = f.svc.SubmitAnswer(ctx, candidate, evaluation.SubmitAnswerInput{InterviewID: iv.ID, QuestionID: qs[0].ID, Text: "   "})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	other := auth.Actor{UserID: 999, Role: auth.RoleCandidate}
	_, err = f.svc.SubmitAnswer(ctx, other, evaluation.SubmitAnswerInput{InterviewID: iv.ID, QuestionID: qs[0].ID, Text: "x"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	f.submit(t, iv, qs[0], "first")
	_, err = f.svc.SubmitAnswer(ctx, candidate, evaluation.SubmitAnswerInput{InterviewID: iv.ID, QuestionID: qs[0].ID, Text: "second"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	require.Equal(t, evaluation.StatusScheduled, f.interview(t, iv.ID).Status)
}

func TestCandidateSeesApprovedQuestionsOnly(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()
	iv, _ := f.scheduledInterview(t, 1)
	_, err := f.svc.AddQuestions(ctx, manager, iv.ID, []evaluation.QuestionInput{{Text: "unapproved"}})
	require.NoError(t, err)

	listed, err := f.svc.ListQuestions(ctx, candidate, iv.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Empty(t, listed[0].ReferenceAnswer)

	_, err = f.svc.ListQuestions(ctx, auth.Actor{UserID: 5, Role: auth.RoleCandidate}, iv.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestRescore(t *testing.T) {
	judge := &tableJudge{scores: map[string]float64{}}
	f := newFixture(t, judge, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 1)
	ans := f.submit(t, iv, qs[0], "answer")

	partial, err := f.svc.ScoreAnswer(ctx, ans.ID)
	require.NoError(t, err)
	require.Equal(t, evaluation.ScoringPartiallyScored, partial.Status)
	require.Equal(t, evaluation.EvaluationNotEvaluated, f.interview(t, iv.ID).EvaluationStatus)

	judge.mu.Lock()
	judge.scores["answer"] = 0.5
	judge.mu.Unlock()

	_, err = f.svc.Rescore(ctx, candidate, ans.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	rescored, err := f.svc.Rescore(ctx, manager, ans.ID)
	require.NoError(t, err)
	require.Equal(t, evaluation.ScoringScored, rescored.Status)
	require.Empty(t, rescored.ScoringError)
	require.Equal(t, evaluation.EvaluationEvaluated, f.interview(t, iv.ID).EvaluationStatus)

	_, err = f.svc.Rescore(ctx, manager, ans.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestModelChangeRequiresReembed(t *testing.T) {
	judge := &tableJudge{scores: map[string]float64{"answer": 1}}
	f := newFixture(t, judge, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 1)
	ans := f.submit(t, iv, qs[0], "answer")

	f.embedder.mu.Lock()
	f.embedder.model = "unit-embed-v2"
	f.embedder.mu.Unlock()

	failed, err := f.svc.ScoreAnswer(ctx, ans.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeScoringUnavailable))
	require.Equal(t, evaluation.ScoringFailed, failed.Status)
	require.Nil(t, failed.Score)
	require.Contains(t, failed.ScoringError, "re-embed")

	q, err := f.svc.ReembedQuestion(ctx, manager, qs[0].ID)
	require.NoError(t, err)
	require.Equal(t, "unit-embed-v2", q.ReferenceEmbedding.Model)

	scored, err := f.svc.ScoreAnswer(ctx, ans.ID)
	require.NoError(t, err)
	require.Equal(t, evaluation.ScoringScored, scored.Status)
	require.Equal(t, "unit-embed-v2", scored.Embedding.Model)
}

func TestHandleJobScoresQueuedAnswer(t *testing.T) {
	judge := &tableJudge{scores: map[string]float64{"answer": 0.5}}
	f := newFixture(t, judge, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 1)
	ans := f.submit(t, iv, qs[0], "answer")

	require.NoError(t, f.svc.HandleJob(ctx, evaluation.JobScoreAnswer, map[string]any{"answer_id": float64(ans.ID)}))
	report, err := f.svc.Report(ctx, candidate, iv.ID)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	require.Equal(t, evaluation.ScoringScored, report.Items[0].Status)
	require.Equal(t, evaluation.EvaluationEvaluated, report.Summary.Status)

	require.NoError(t, f.svc.HandleJob(ctx, evaluation.JobScoreAnswer, map[string]any{"answer_id": float64(424242)}))
	require.Error(t, f.svc.HandleJob(ctx, "unknown", nil))
	require.Error(t, f.svc.HandleJob(ctx, evaluation.JobScoreAnswer, map[string]any{}))
}

func TestScheduleTransitions(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()
	iv, qs := f.scheduledInterview(t, 1)
	require.Equal(t, evaluation.StatusScheduled, iv.Status)
	require.NotNil(t, iv.ScheduledAt)

	_, err := f.svc.Schedule(ctx, manager, iv.ID, time.Time{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	f.submit(t, iv, qs[0], "answer")
	_, err = f.svc.Schedule(ctx, manager, iv.ID, time.Now())
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))

	_, err = f.svc.CreateInterview(ctx, manager, evaluation.CreateInterviewInput{JobID: 404, CandidateID: candidate.UserID})
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestManagerEditsAndRemovesDraftQuestions(t *testing.T) {
	f := newFixture(t, &tableJudge{}, fastScoring())
	ctx := context.Background()
	iv, err := f.svc.CreateInterview(ctx, manager, evaluation.CreateInterviewInput{JobID: 10, CandidateID: candidate.UserID})
	require.NoError(t, err)
	added, err := f.svc.AddQuestions(ctx, manager, iv.ID, []evaluation.QuestionInput{
		{Text: "Explain maps", ReferenceAnswer: "hash tables", Approved: true},
		{Text: "Explain slices", ReferenceAnswer: "views over arrays", Keywords: []string{"array"}},
		{Text: "Explain interfaces", ReferenceAnswer: "method sets"},
	})
	require.NoError(t, err)
	approved, draft, spare := added[0], added[1], added[2]

	f.embedder.mu.Lock()
	f.embedder.vectors["length, capacity and a backing array"] = []float32{0, 1}
	f.embedder.mu.Unlock()
	text := " Describe slice headers "
	ref := "length, capacity and a backing array"
	edited, err := f.svc.EditQuestion(ctx, manager, draft.ID, evaluation.QuestionEdit{Text: &text, ReferenceAnswer: &ref})
	require.NoError(t, err)
	require.Equal(t, "Describe slice headers", edited.Text)
	require.Equal(t, []string{"array"}, edited.Keywords)
	require.Equal(t, []float32{0, 1}, edited.ReferenceEmbedding.Values)

	stored, found, err := f.store.Questions().Get(ctx, draft.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ref, stored.ReferenceAnswer)
	require.Equal(t, []float32{0, 1}, stored.ReferenceEmbedding.Values)

	empty := "  "
	_, err = f.svc.EditQuestion(ctx, manager, draft.ID, evaluation.QuestionEdit{Text: &empty})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = f.svc.EditQuestion(ctx, manager, approved.ID, evaluation.QuestionEdit{Text: &text})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
	require.True(t, apperrors.IsCode(f.svc.RemoveQuestion(ctx, manager, approved.ID), apperrors.CodeInvalidState))
	require.True(t, apperrors.IsCode(f.svc.RemoveQuestion(ctx, candidate, spare.ID), apperrors.CodeForbidden))

	require.NoError(t, f.svc.RemoveQuestion(ctx, manager, spare.ID))
	require.True(t, apperrors.IsCode(f.svc.RemoveQuestion(ctx, manager, spare.ID), apperrors.CodeNotFound))

	listed, err := f.svc.ListQuestions(ctx, manager, iv.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}
