package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/pkg/metrics"
	"github.com/yanqian/interview-evaluator/pkg/util"
)

// ErrInvalidJudgment marks judge output that is outside [0, 1]. It is not retried.
var ErrInvalidJudgment = errors.New("judgment out of range")

// ScoringConfig controls blending and provider retries.
type ScoringConfig struct {
	SimilarityWeight float64
	JudgmentWeight   float64
	MaxAttempts      int
	BaseBackoff      time.Duration
	EmbedTimeout     time.Duration
	JudgeTimeout     time.Duration
}

// DefaultScoringConfig returns the 0.4/0.6 blend with three attempts.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		SimilarityWeight: 0.4,
		JudgmentWeight:   0.6,
		MaxAttempts:      3,
		BaseBackoff:      200 * time.Millisecond,
		EmbedTimeout:     10 * time.Second,
		JudgeTimeout:     20 * time.Second,
	}
}

func (c ScoringConfig) normalized() ScoringConfig {
	def := DefaultScoringConfig()
	if c.SimilarityWeight < 0 || c.JudgmentWeight < 0 || c.SimilarityWeight+c.JudgmentWeight == 0 {
		c.SimilarityWeight, c.JudgmentWeight = def.SimilarityWeight, def.JudgmentWeight
	}
	sum := c.SimilarityWeight + c.JudgmentWeight
	c.SimilarityWeight /= sum
	c.JudgmentWeight /= sum
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = def.EmbedTimeout
	}
	if c.JudgeTimeout <= 0 {
		c.JudgeTimeout = def.JudgeTimeout
	}
	return c
}

// ScoreResult is the outcome of scoring one answer. Status is always set;
// Err explains a failed or partial result.
type ScoreResult struct {
	Embedding  embedding.Vector
	Similarity *float64
	Judgment   *float64
	Score      *float64
	Feedback   string
	Status     ScoringStatus
	Err        error
	Attempts   int
	Usage      metrics.TokenUsage
}

// Scorer blends semantic similarity with an external judgment.
type Scorer struct {
	cfg      ScoringConfig
	embedder embedding.Provider
	judge    Judge
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewScorer constructs a Scorer. judge may be nil, which yields
// similarity-only partial scores.
func NewScorer(cfg ScoringConfig, embedder embedding.Provider, judge Judge, logger *slog.Logger) *Scorer {
	return &Scorer{
		cfg:      cfg.normalized(),
		embedder: embedder,
		judge:    judge,
		logger:   logger.With("component", "evaluation.scorer"),
		sleep:    sleepCtx,
	}
}

// Rescale maps a unit value onto the 1-10 score range.
func Rescale(x float64) float64 {
	return 1 + 9*util.Clamp(x, 0, 1)
}

// Blend combines similarity and judgment with the given weights and
// rescales the result to [1, 10].
func Blend(similarity, judgment, wSim, wJudge float64) float64 {
	sim := util.Clamp(similarity, 0, 1)
	j := util.Clamp(judgment, 0, 1)
	return Rescale((wSim*sim + wJudge*j) / (wSim + wJudge))
}

// Score evaluates answer text against q. It never panics on provider
// failures: an embedding failure yields ScoringFailed, a judgment failure
// yields a similarity-only ScoringPartiallyScored result.
func (s *Scorer) Score(ctx context.Context, q Question, answer string) ScoreResult {
	var res ScoreResult
	logger := s.logger.With("interview_id", q.InterviewID, "question_id", q.ID)

	if q.ReferenceEmbedding.IsZero() {
		res.Status = ScoringFailed
		res.Err = errors.New("question has no reference embedding")
		return res
	}
	if q.ReferenceEmbedding.Model != s.embedder.Model() {
		res.Status = ScoringFailed
		res.Err = fmt.Errorf("%w: reference %q, scorer %q; re-embed the question",
			embedding.ErrModelMismatch, q.ReferenceEmbedding.Model, s.embedder.Model())
		return res
	}

	var vec embedding.Vector
	attempts, err := s.retry(ctx, "embed", s.cfg.EmbedTimeout, func(callCtx context.Context) error {
		out, err := embedding.EmbedOne(callCtx, s.embedder, answer)
		if err != nil {
			return err
		}
		vec = out
		return nil
	})
	res.Attempts += attempts
	if err != nil {
		logger.Warn("answer embedding failed", "attempts", attempts, "error", err)
		res.Status = ScoringFailed
		res.Err = fmt.Errorf("embed answer: %w", err)
		return res
	}
	res.Embedding = vec

	cos, err := embedding.Cosine(vec, q.ReferenceEmbedding)
	if err != nil {
		res.Status = ScoringFailed
		res.Err = err
		return res
	}
	sim := util.Clamp(cos, 0, 1)
	res.Similarity = &sim

	judgment, attempts, err := s.judgeWithRetry(ctx, q, answer)
	res.Attempts += attempts
	res.Usage = judgment.Usage
	if err != nil {
		logger.Warn("judgment unavailable, storing similarity-only score", "attempts", attempts, "error", err)
		partial := util.Round2(Rescale(sim))
		res.Score = &partial
		res.Status = ScoringPartiallyScored
		res.Err = err
		res.Feedback = fmt.Sprintf("Semantic similarity %.2f. Judgment unavailable.", sim)
		return res
	}

	j := judgment.Score
	res.Judgment = &j
	score := util.Round2(Blend(sim, j, s.cfg.SimilarityWeight, s.cfg.JudgmentWeight))
	res.Score = &score
	res.Status = ScoringScored
	res.Feedback = strings.TrimSpace(judgment.Feedback)
	return res
}

func (s *Scorer) judgeWithRetry(ctx context.Context, q Question, answer string) (Judgment, int, error) {
	if s.judge == nil {
		return Judgment{}, 0, errors.New("no judge configured")
	}
	req := JudgeRequest{
		Question:        q.Text,
		ReferenceAnswer: q.ReferenceAnswer,
		Keywords:        q.Keywords,
		Answer:          answer,
	}
	var (
		out   Judgment
		usage metrics.TokenUsage
	)
	attempts, err := s.retry(ctx, "judge", s.cfg.JudgeTimeout, func(callCtx context.Context) error {
		j, err := s.judge.Judge(callCtx, req)
		usage = usage.Add(j.Usage)
		if err != nil {
			return err
		}
		if j.Score < 0 || j.Score > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidJudgment, j.Score)
		}
		out = j
		return nil
	})
	out.Usage = usage
	return out, attempts, err
}

// retry runs fn up to MaxAttempts times with exponential backoff, giving
// each attempt its own timeout. Invalid judgments and parent cancellation
// stop immediately.
func (s *Scorer) retry(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.cfg.BaseBackoff*time.Duration(1<<(attempt-2))); err != nil {
				return attempt - 1, err
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidJudgment) || ctx.Err() != nil {
			return attempt, err
		}
		s.logger.Debug("provider call failed", "op", op, "attempt", attempt, "error", err)
	}
	return s.cfg.MaxAttempts, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
