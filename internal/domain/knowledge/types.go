package knowledge

import (
	"strings"
	"time"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
)

// Question is a reusable, technology tagged entry of the master bank.
// Entries are append-only once created; revisions produce new entries.
type Question struct {
	ID              int64             `json:"id"`
	Technology      string            `json:"technology"`
	Text            string            `json:"text"`
	ReferenceAnswer string            `json:"referenceAnswer"`
	Keywords        []string          `json:"keywords"`
	Embedding       *embedding.Vector `json:"-"`
	RevisionOf      *int64            `json:"revisionOf,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// Feedback is a manager's verdict on a bank question.
type Feedback struct {
	QuestionID int64     `json:"questionId"`
	ManagerID  int64     `json:"managerId"`
	IsGood     bool      `json:"isGood"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Usage describes how a bank question has been used so far.
type Usage struct {
	// InCycle is set when the question already appears in one of the
	// candidate's interviews.
	InCycle    bool
	LastUsedAt time.Time
}

// Draft is the payload used to create or revise a bank entry.
type Draft struct {
	Technology      string   `json:"technology"`
	Text            string   `json:"text"`
	ReferenceAnswer string   `json:"referenceAnswer"`
	Keywords        []string `json:"keywords"`
}

// NormalizeTechnology canonicalizes a technology tag for comparisons.
func NormalizeTechnology(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeKeywords trims, drops empties and de-duplicates keywords while
// keeping their first-seen order.
func NormalizeKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, kw := range raw {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}
