package evaluation

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

func TestCheckStatusTransition(t *testing.T) {
	tests := []struct {
		from InterviewStatus
		to   InterviewStatus
		ok   bool
	}{
		{StatusPending, StatusScheduled, true},
		{StatusPending, StatusCompleted, false},
		{StatusScheduled, StatusScheduled, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusPending, false},
	}
	for _, tc := range tests {
		err := checkStatusTransition(Interview{ID: 1, Status: tc.from}, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
			continue
		}
		require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState), "%s -> %s", tc.from, tc.to)
	}
}

func TestNextEvaluationStatusIsMonotonic(t *testing.T) {
	require.Equal(t, EvaluationPartiallyEvaluated, nextEvaluationStatus(EvaluationNotEvaluated, EvaluationPartiallyEvaluated))
	require.Equal(t, EvaluationEvaluated, nextEvaluationStatus(EvaluationNotEvaluated, EvaluationEvaluated))
	require.Equal(t, EvaluationPartiallyEvaluated, nextEvaluationStatus(EvaluationPartiallyEvaluated, EvaluationNotEvaluated))
	require.Equal(t, EvaluationEvaluated, nextEvaluationStatus(EvaluationEvaluated, EvaluationPartiallyEvaluated))
}

func TestAcceptsQuestions(t *testing.T) {
	require.True(t, acceptsQuestions(StatusPending))
	require.True(t, acceptsQuestions(StatusScheduled))
	require.False(t, acceptsQuestions(StatusCompleted))
}
