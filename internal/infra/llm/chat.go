// Package llm adapts the model clients to the knowledge bank generator.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	"github.com/yanqian/interview-evaluator/internal/infra/llm/chatgpt"
)

// ChatClient is the subset of the ChatGPT client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// ChatGPTLLM adapts the ChatGPT client to knowledge.LLM.
type ChatGPTLLM struct {
	client      ChatClient
	model       string
	temperature float32
}

// NewChatGPTLLM constructs the adapter.
func NewChatGPTLLM(client ChatClient, model string, temperature float32) *ChatGPTLLM {
	return &ChatGPTLLM{client: client, model: model, temperature: temperature}
}

// Chat sends a chat completion request.
func (l *ChatGPTLLM) Chat(ctx context.Context, messages []knowledge.LLMMessage) (string, error) {
	req := chatgpt.ChatCompletionRequest{
		Model:       l.model,
		Temperature: l.temperature,
		Messages:    make([]chatgpt.Message, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, chatgpt.Message{Role: msg.Role, Content: msg.Content})
	}
	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chatgpt returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// JSONGenerator is satisfied by the Gemini generator.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
}

// GeminiLLM adapts a Gemini generator to knowledge.LLM. System messages
// become the system instruction and the rest are joined into one prompt.
type GeminiLLM struct {
	generator JSONGenerator
}

// NewGeminiLLM constructs the adapter.
func NewGeminiLLM(generator JSONGenerator) *GeminiLLM {
	return &GeminiLLM{generator: generator}
}

// Chat implements knowledge.LLM.
func (l *GeminiLLM) Chat(ctx context.Context, messages []knowledge.LLMMessage) (string, error) {
	var system, prompt []string
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		prompt = append(prompt, msg.Content)
	}
	return l.generator.GenerateJSON(ctx, strings.Join(system, "\n\n"), strings.Join(prompt, "\n\n"))
}

var (
	_ knowledge.LLM = (*ChatGPTLLM)(nil)
	_ knowledge.LLM = (*GeminiLLM)(nil)
)
