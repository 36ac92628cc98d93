package knowledge

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories for missing bank entries.
var ErrNotFound = errors.New("knowledge question not found")

// Repository persists bank questions and manager feedback.
type Repository interface {
	Create(ctx context.Context, q Question) (Question, error)
	Get(ctx context.Context, id int64) (Question, bool, error)
	// ListByTechnology returns the current entries of a technology: an entry
	// replaced by a revision is left out.
	ListByTechnology(ctx context.Context, technology string) ([]Question, error)
	// Delete removes the entry and clears back-references held by interview
	// questions. It never deletes interview questions.
	Delete(ctx context.Context, id int64) error
	AddFeedback(ctx context.Context, fb Feedback) error
	NegativeFeedbackIDs(ctx context.Context) (map[int64]struct{}, error)
}

// UsageLookup reports how bank questions were used by interviews.
type UsageLookup interface {
	KnowledgeUsage(ctx context.Context, candidateID int64) (map[int64]Usage, error)
}

// LLM generates text for bank generation prompts.
type LLM interface {
	Chat(ctx context.Context, messages []LLMMessage) (string, error)
}

// LLMMessage mirrors a simplified chat payload.
type LLMMessage struct {
	Role    string
	Content string
}
