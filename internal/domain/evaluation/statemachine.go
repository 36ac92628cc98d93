package evaluation

import (
	"fmt"
	"strconv"

	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

var statusTransitions = map[InterviewStatus][]InterviewStatus{
	StatusPending:   {StatusScheduled},
	StatusScheduled: {StatusScheduled, StatusCompleted},
}

var evaluationRank = map[EvaluationStatus]int{
	EvaluationNotEvaluated:       0,
	EvaluationPartiallyEvaluated: 1,
	EvaluationEvaluated:          2,
}

// acceptsQuestions reports whether questions may still be assembled.
func acceptsQuestions(s InterviewStatus) bool {
	return s == StatusPending || s == StatusScheduled
}

func checkStatusTransition(iv Interview, to InterviewStatus) error {
	for _, allowed := range statusTransitions[iv.Status] {
		if allowed == to {
			return nil
		}
	}
	return invalidState(iv.ID, fmt.Sprintf("interview cannot move from %s to %s", iv.Status, to))
}

// nextEvaluationStatus keeps evaluation status monotonic: it never moves
// backwards and Evaluated is terminal.
func nextEvaluationStatus(current, target EvaluationStatus) EvaluationStatus {
	if evaluationRank[target] > evaluationRank[current] {
		return target
	}
	return current
}

func invalidState(interviewID int64, message string) error {
	return apperrors.WrapContext(apperrors.CodeInvalidState, message, nil, "interview_id", strconv.FormatInt(interviewID, 10))
}
