package judge

import (
	"context"
	"log/slog"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
)

// JSONGenerator is satisfied by the Gemini generator.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
}

// GeminiJudge asks a Gemini model for a JSON judgment.
type GeminiJudge struct {
	generator JSONGenerator
	logger    *slog.Logger
}

// NewGeminiJudge constructs the judge.
func NewGeminiJudge(generator JSONGenerator, logger *slog.Logger) *GeminiJudge {
	return &GeminiJudge{generator: generator, logger: logger.With("component", "judge.gemini")}
}

// Judge implements evaluation.Judge. Gemini usage counts are not reported.
func (j *GeminiJudge) Judge(ctx context.Context, req evaluation.JudgeRequest) (evaluation.Judgment, error) {
	text, err := j.generator.GenerateJSON(ctx, systemPrompt, buildPrompt(req))
	if err != nil {
		return evaluation.Judgment{}, err
	}
	out, err := parseReply(text)
	if err != nil {
		j.logger.Warn("judge reply rejected", "error", err)
		return evaluation.Judgment{}, err
	}
	return out, nil
}

var _ evaluation.Judge = (*GeminiJudge)(nil)
