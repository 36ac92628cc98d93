package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
	"github.com/yanqian/interview-evaluator/pkg/util"
)

// Summary is the pure result of folding answers over expected questions.
type Summary struct {
	Status     EvaluationStatus `json:"status"`
	FinalScore *float64         `json:"finalScore"`
	Expected   int              `json:"expected"`
	Scored     int              `json:"scored"`
	Partial    int              `json:"partial"`
}

// Outcome reports an aggregation run.
type Outcome struct {
	Interview Interview `json:"interview"`
	Summary   Summary   `json:"summary"`
	// Changed is set when this run wrote the interview.
	Changed bool `json:"changed"`
}

// Summarize computes the evaluation status of an interview. Expected
// questions are the approved ones; each counts once using its best fully
// scored answer. Partial and failed answers never contribute to the mean.
func Summarize(questions []Question, answers []Answer) Summary {
	best := make(map[int64]float64)
	partial := make(map[int64]struct{})
	for _, a := range answers {
		switch {
		case a.Status == ScoringScored && a.Score != nil:
			if cur, ok := best[a.QuestionID]; !ok || *a.Score > cur {
				best[a.QuestionID] = *a.Score
			}
		case a.Status == ScoringPartiallyScored:
			partial[a.QuestionID] = struct{}{}
		}
	}

	var sum Summary
	var total float64
	for _, q := range questions {
		if !q.Approved {
			continue
		}
		sum.Expected++
		if score, ok := best[q.ID]; ok {
			sum.Scored++
			total += score
			continue
		}
		if _, ok := partial[q.ID]; ok {
			sum.Partial++
		}
	}

	switch {
	case sum.Expected == 0 || sum.Scored == 0:
		sum.Status = EvaluationNotEvaluated
	case sum.Scored < sum.Expected:
		sum.Status = EvaluationPartiallyEvaluated
	default:
		sum.Status = EvaluationEvaluated
		final := util.Clamp(util.Round2(total/float64(sum.Scored)), 1, 10)
		sum.FinalScore = &final
	}
	return sum
}

// Aggregator recomputes interview evaluation status. Runs are idempotent and
// serialized per interview through the version compare-and-swap.
type Aggregator struct {
	interviews InterviewRepository
	questions  QuestionRepository
	answers    AnswerRepository
	maxRetries int
	logger     *slog.Logger
}

// NewAggregator constructs an Aggregator.
func NewAggregator(interviews InterviewRepository, questions QuestionRepository, answers AnswerRepository, maxRetries int, logger *slog.Logger) *Aggregator {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Aggregator{
		interviews: interviews,
		questions:  questions,
		answers:    answers,
		maxRetries: maxRetries,
		logger:     logger.With("component", "evaluation.aggregator"),
	}
}

// Aggregate performs one read-compute-swap pass. A concurrent writer makes
// it fail with a conflict error.
func (a *Aggregator) Aggregate(ctx context.Context, interviewID int64) (Outcome, error) {
	iv, found, err := a.interviews.Get(ctx, interviewID)
	if err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load interview", err)
	}
	if !found {
		return Outcome{}, interviewNotFound(interviewID)
	}
	questions, err := a.questions.ListByInterview(ctx, interviewID)
	if err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.CodeStorage, "failed to list interview questions", err)
	}
	answers, err := a.answers.ListByInterview(ctx, interviewID)
	if err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.CodeStorage, "failed to list interview answers", err)
	}

	sum := Summarize(questions, answers)
	if iv.EvaluationStatus == EvaluationEvaluated {
		return Outcome{Interview: iv, Summary: sum}, nil
	}
	next := nextEvaluationStatus(iv.EvaluationStatus, sum.Status)
	var final *float64
	if next == EvaluationEvaluated {
		final = sum.FinalScore
	}
	if next == iv.EvaluationStatus && sameScore(iv.FinalScore, final) {
		return Outcome{Interview: iv, Summary: sum}, nil
	}

	updated, err := a.interviews.CompareAndSwap(ctx, iv.ID, iv.Version, InterviewUpdate{
		Status:           iv.Status,
		EvaluationStatus: next,
		FinalScore:       final,
		ScheduledAt:      iv.ScheduledAt,
	})
	switch {
	case errors.Is(err, ErrVersionConflict):
		return Outcome{}, apperrors.WrapContext(apperrors.CodeConflict, "interview changed during aggregation", err,
			"interview_id", strconv.FormatInt(interviewID, 10))
	case errors.Is(err, ErrNotFound):
		return Outcome{}, interviewNotFound(interviewID)
	case err != nil:
		return Outcome{}, apperrors.Wrap(apperrors.CodeStorage, "failed to update interview", err)
	}
	a.logger.Info("interview aggregated",
		"interview_id", interviewID,
		"evaluation_status", next,
		"scored", sum.Scored,
		"expected", sum.Expected,
		"partial", sum.Partial,
	)
	return Outcome{Interview: updated, Summary: sum, Changed: true}, nil
}

// AggregateWithRetry repeats Aggregate while it loses compare-and-swap races.
func (a *Aggregator) AggregateWithRetry(ctx context.Context, interviewID int64) (Outcome, error) {
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		out, err := a.Aggregate(ctx, interviewID)
		if err == nil {
			return out, nil
		}
		if !apperrors.IsCode(err, apperrors.CodeConflict) {
			return Outcome{}, err
		}
		lastErr = err
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
	}
	return Outcome{}, lastErr
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func interviewNotFound(id int64) error {
	return apperrors.WrapContext(apperrors.CodeNotFound, "interview not found", nil, "interview_id", strconv.FormatInt(id, 10))
}
