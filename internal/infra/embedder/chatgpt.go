package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/internal/infra/llm/chatgpt"
	"github.com/yanqian/interview-evaluator/internal/infra/tokenizer"
)

const (
	// maxInputTokens is the per-input cap of the OpenAI embedding models.
	maxInputTokens = 8191
	// maxBatchTokens stays well below the provider's per-request cap.
	maxBatchTokens = 200_000
)

// EmbeddingClient is the subset of the ChatGPT client used for embeddings.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, req chatgpt.EmbeddingRequest) (chatgpt.EmbeddingResponse, error)
}

// ChatGPTEmbedder calls an OpenAI-compatible embeddings API.
type ChatGPTEmbedder struct {
	client EmbeddingClient
	model  string
	tokens *tokenizer.Counter
	logger *slog.Logger
}

// NewChatGPTEmbedder constructs an embedder backed by the ChatGPT client.
func NewChatGPTEmbedder(client EmbeddingClient, model string, logger *slog.Logger) *ChatGPTEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	model = strings.TrimSpace(model)
	return &ChatGPTEmbedder{
		client: client,
		model:  model,
		tokens: tokenizer.New(model),
		logger: logger.With("component", "embedder.chatgpt"),
	}
}

// Model returns the embedding model tag stored alongside every vector.
func (e *ChatGPTEmbedder) Model() string {
	return e.model
}

// Embed requests embeddings for the given texts, batching by token count.
// Inputs above the model limit are truncated.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out         = make([]embedding.Vector, 0, len(texts))
		batch       []string
		batchTokens int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{Model: e.model, Input: batch})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("embedding result count mismatch: expected %d got %d", len(batch), len(resp.Data))
		}
		for _, item := range resp.Data {
			values := make([]float32, len(item.Embedding))
			copy(values, item.Embedding)
			out = append(out, embedding.Vector{Model: e.model, Values: values})
		}
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := e.tokens.Count(text)
		if tokens > maxInputTokens {
			e.logger.Warn("truncating embedding input", "tokens", tokens, "limit", maxInputTokens)
			text = e.tokens.Truncate(text, maxInputTokens)
			tokens = maxInputTokens
		}
		if batchTokens+tokens > maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ embedding.Provider = (*ChatGPTEmbedder)(nil)
