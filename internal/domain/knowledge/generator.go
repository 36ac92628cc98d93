package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const generationSystemPrompt = "You are an expert technical interviewer and content generator. " +
	"Produce high-quality interview questions and reference answers for the specified technology. " +
	"Output MUST be valid JSON: an array of objects. Each object must contain keys " +
	"'prompt' (string), 'reference_answer' (string), 'keywords' (array of short strings). " +
	"Do NOT include any other keys or explanatory text outside the JSON array."

// GeneratorConfig bounds bank generation calls.
type GeneratorConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// Generator asks an LLM for new bank questions.
type Generator struct {
	cfg    GeneratorConfig
	llm    LLM
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGenerator constructs a Generator.
func NewGenerator(cfg GeneratorConfig, llm LLM, logger *slog.Logger) *Generator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Generator{cfg: cfg, llm: llm, logger: logger.With("component", "knowledge.generator"), sleep: sleepCtx}
}

// Generate returns up to n drafts for the technology. Fewer items than
// requested are accepted.
func (g *Generator) Generate(ctx context.Context, technology string, n int) ([]Draft, error) {
	if g.llm == nil {
		return nil, errors.New("no llm configured for bank generation")
	}
	messages := []LLMMessage{
		{Role: "system", Content: generationSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(
			"Generate %d interview question items for the technology '%s'. "+
				"Make questions varied (theory, practical, debugging, short coding concept). "+
				"Reference answers should be concise (1-4 short paragraphs). "+
				"Keywords should be 2-6 important keywords for automatic matching. "+
				"Return only the JSON array.", n, technology)},
	}
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := g.sleep(ctx, g.cfg.BaseBackoff*time.Duration(1<<(attempt-2))); err != nil {
				return nil, err
			}
		}
		raw, err := g.llm.Chat(ctx, messages)
		if err != nil {
			lastErr = err
			g.logger.Warn("bank generation call failed", "attempt", attempt, "error", err)
			continue
		}
		drafts, err := ParseDrafts(raw, technology)
		if err != nil {
			lastErr = err
			g.logger.Warn("bank generation output unusable", "attempt", attempt, "error", err)
			continue
		}
		if len(drafts) > n {
			drafts = drafts[:n]
		}
		return drafts, nil
	}
	return nil, fmt.Errorf("bank generation failed after %d attempts: %w", g.cfg.MaxAttempts, lastErr)
}

type generatedItem struct {
	Prompt          string          `json:"prompt"`
	Question        string          `json:"question"`
	ReferenceAnswer string          `json:"reference_answer"`
	Answer          string          `json:"answer"`
	Keywords        json.RawMessage `json:"keywords"`
}

// ParseDrafts extracts drafts from model output, tolerating text around the
// JSON array and the "question"/"answer" key aliases.
func ParseDrafts(raw, technology string) ([]Draft, error) {
	payload := ExtractJSON(raw)
	if payload == "" {
		return nil, errors.New("no json found in model output")
	}
	var items []generatedItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("decode generated items: %w", err)
	}
	drafts := make([]Draft, 0, len(items))
	for _, it := range items {
		text := firstNonEmpty(it.Prompt, it.Question)
		if text == "" {
			continue
		}
		drafts = append(drafts, Draft{
			Technology:      technology,
			Text:            text,
			ReferenceAnswer: firstNonEmpty(it.ReferenceAnswer, it.Answer),
			Keywords:        decodeKeywords(it.Keywords),
		})
	}
	if len(drafts) == 0 {
		return nil, errors.New("model output contained no usable items")
	}
	return drafts, nil
}

// ExtractJSON returns the JSON object or array embedded in text, or "".
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text
	}
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return ""
	}
	sub := text[start : end+1]
	if !json.Valid([]byte(sub)) {
		return ""
	}
	return sub
}

func decodeKeywords(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return NormalizeKeywords(list)
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return NormalizeKeywords(strings.Split(joined, ","))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
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
