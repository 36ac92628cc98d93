// Package judge provides evaluation.Judge implementations.
package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
)

const systemPrompt = `You are a strict technical interviewer grading a candidate answer.
Compare the answer with the reference answer and the expected keywords.
Reply with JSON only: {"score": <number between 0 and 1>, "feedback": "<one or two sentences>"}.
A score of 1 means fully correct and complete; 0 means wrong or empty.`

// ErrMalformedReply marks a judge reply that could not be parsed.
var ErrMalformedReply = errors.New("malformed judge reply")

func buildPrompt(req evaluation.JudgeRequest) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(strings.TrimSpace(req.Question))
	b.WriteString("\n\nReference answer:\n")
	b.WriteString(strings.TrimSpace(req.ReferenceAnswer))
	if len(req.Keywords) > 0 {
		b.WriteString("\n\nExpected keywords: ")
		b.WriteString(strings.Join(req.Keywords, ", "))
	}
	b.WriteString("\n\nCandidate answer:\n")
	b.WriteString(strings.TrimSpace(req.Answer))
	return b.String()
}

type reply struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

// parseReply reads the JSON object out of a model reply. Range checks are
// left to the scorer.
func parseReply(text string) (evaluation.Judgment, error) {
	raw := knowledge.ExtractJSON(text)
	if raw == "" {
		return evaluation.Judgment{}, fmt.Errorf("%w: no json object", ErrMalformedReply)
	}
	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return evaluation.Judgment{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if r.Score == nil {
		return evaluation.Judgment{}, fmt.Errorf("%w: missing score", ErrMalformedReply)
	}
	return evaluation.Judgment{Score: *r.Score, Feedback: strings.TrimSpace(r.Feedback)}, nil
}
