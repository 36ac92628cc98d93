package judge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/infra/llm/chatgpt"
	"github.com/yanqian/interview-evaluator/internal/infra/tokenizer"
	"github.com/yanqian/interview-evaluator/pkg/metrics"
)

// maxAnswerTokens bounds the candidate answer included in the prompt.
const maxAnswerTokens = 2000

// ChatClient is the subset of the ChatGPT client used for judging.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// ChatGPTJudge asks a chat model for a JSON judgment.
type ChatGPTJudge struct {
	client      ChatClient
	model       string
	temperature float32
	tokens      *tokenizer.Counter
	logger      *slog.Logger
}

// NewChatGPTJudge constructs the judge.
func NewChatGPTJudge(client ChatClient, model string, temperature float32, logger *slog.Logger) *ChatGPTJudge {
	return &ChatGPTJudge{
		client:      client,
		model:       model,
		temperature: temperature,
		tokens:      tokenizer.New(model),
		logger:      logger.With("component", "judge.chatgpt"),
	}
}

// Judge implements evaluation.Judge.
func (j *ChatGPTJudge) Judge(ctx context.Context, req evaluation.JudgeRequest) (evaluation.Judgment, error) {
	req.Answer = j.tokens.Truncate(req.Answer, maxAnswerTokens)
	resp, err := j.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       j.model,
		Temperature: j.temperature,
		Messages: []chatgpt.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		ResponseFormat: &chatgpt.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return evaluation.Judgment{}, err
	}
	usage := metrics.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if len(resp.Choices) == 0 {
		return evaluation.Judgment{Usage: usage}, errors.New("chatgpt returned no choices")
	}
	out, err := parseReply(resp.Choices[0].Message.Content)
	out.Usage = usage
	if err != nil {
		j.logger.Warn("judge reply rejected", "error", err)
		return out, err
	}
	return out, nil
}

var _ evaluation.Judge = (*ChatGPTJudge)(nil)
