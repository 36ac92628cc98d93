package evaluation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
)

type staticEmbedder struct {
	model string
	vec   []float32
	err   error
}

func (e staticEmbedder) Model() string { return e.model }

func (e staticEmbedder) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([]embedding.Vector, len(texts))
	for i := range texts {
		out[i] = embedding.Vector{Model: e.model, Values: e.vec}
	}
	return out, nil
}

type funcJudge func(ctx context.Context, req JudgeRequest) (Judgment, error)

func (f funcJudge) Judge(ctx context.Context, req JudgeRequest) (Judgment, error) { return f(ctx, req) }

func newTestScorer(emb embedding.Provider, judge Judge) *Scorer {
	cfg := DefaultScoringConfig()
	cfg.MaxAttempts = 3
	s := NewScorer(cfg, emb, judge, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func question(model string, values ...float32) Question {
	return Question{ID: 1, InterviewID: 1, Text: "q", ReferenceAnswer: "r", ReferenceEmbedding: embedding.Vector{Model: model, Values: values}}
}

func TestBlendAndRescale(t *testing.T) {
	require.InDelta(t, 1.0, Rescale(0), 1e-9)
	require.InDelta(t, 10.0, Rescale(1), 1e-9)
	require.InDelta(t, 1.0, Rescale(-3), 1e-9)
	require.InDelta(t, 10.0, Rescale(7), 1e-9)
	require.InDelta(t, 5.5, Rescale(0.5), 1e-9)

	require.InDelta(t, 7.3, Blend(1, 0.5, 0.4, 0.6), 1e-9)
	require.InDelta(t, 1.0, Blend(0, 0, 0.4, 0.6), 1e-9)
	require.InDelta(t, 10.0, Blend(1.2, 1, 0.4, 0.6), 1e-9)
}

func TestScoringConfigNormalizesWeights(t *testing.T) {
	cfg := ScoringConfig{SimilarityWeight: 2, JudgmentWeight: 3}.normalized()
	require.InDelta(t, 0.4, cfg.SimilarityWeight, 1e-9)
	require.InDelta(t, 0.6, cfg.JudgmentWeight, 1e-9)
	require.Equal(t, 3, cfg.MaxAttempts)

	cfg = ScoringConfig{SimilarityWeight: -1, JudgmentWeight: 1}.normalized()
	require.InDelta(t, 0.4, cfg.SimilarityWeight, 1e-9)
}

func TestScoreRetriesJudgeThenSucceeds(t *testing.T) {
	calls := 0
	judge := funcJudge(func(context.Context, JudgeRequest) (Judgment, error) {
		calls++
		if calls < 3 {
			return Judgment{}, errors.New("503")
		}
		return Judgment{Score: 0.5, Feedback: " ok "}, nil
	})
	s := newTestScorer(staticEmbedder{model: "m", vec: []float32{1, 0}}, judge)

	res := s.Score(context.Background(), question("m", 1, 0), "answer")
	require.NoError(t, res.Err)
	require.Equal(t, ScoringScored, res.Status)
	require.Equal(t, 3, calls)
	require.Equal(t, 4, res.Attempts)
	require.InDelta(t, 7.3, *res.Score, 1e-9)
	require.Equal(t, "ok", res.Feedback)
}

func TestScoreDoesNotRetryOutOfRangeJudgment(t *testing.T) {
	calls := 0
	judge := funcJudge(func(context.Context, JudgeRequest) (Judgment, error) {
		calls++
		return Judgment{Score: 7}, nil
	})
	s := newTestScorer(staticEmbedder{model: "m", vec: []float32{1, 0}}, judge)

	res := s.Score(context.Background(), question("m", 0, 1), "answer")
	require.Equal(t, ScoringPartiallyScored, res.Status)
	require.ErrorIs(t, res.Err, ErrInvalidJudgment)
	require.Equal(t, 1, calls)
	require.InDelta(t, 0.0, *res.Similarity, 1e-9)
	require.InDelta(t, 1.0, *res.Score, 1e-9)
}

func TestScoreEmbeddingFailureFails(t *testing.T) {
	s := newTestScorer(staticEmbedder{model: "m", err: errors.New("down")}, nil)

	res := s.Score(context.Background(), question("m", 1, 0), "answer")
	require.Equal(t, ScoringFailed, res.Status)
	require.Nil(t, res.Score)
	require.Equal(t, 3, res.Attempts)
	require.ErrorContains(t, res.Err, "down")
}

func TestScoreRejectsMissingOrForeignReference(t *testing.T) {
	s := newTestScorer(staticEmbedder{model: "m", vec: []float32{1, 0}}, nil)

	res := s.Score(context.Background(), question("m"), "answer")
	require.Equal(t, ScoringFailed, res.Status)

	res = s.Score(context.Background(), question("other", 1, 0), "answer")
	require.Equal(t, ScoringFailed, res.Status)
	require.ErrorIs(t, res.Err, embedding.ErrModelMismatch)
}

func TestScoreWithoutJudgeIsPartial(t *testing.T) {
	s := newTestScorer(staticEmbedder{model: "m", vec: []float32{1, 1}}, nil)

	res := s.Score(context.Background(), question("m", 1, 0), "answer")
	require.Equal(t, ScoringPartiallyScored, res.Status)
	require.InDelta(t, 0.7071, *res.Similarity, 1e-4)
	require.InDelta(t, 7.36, *res.Score, 1e-9)
}
