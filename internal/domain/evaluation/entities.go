package evaluation

import (
	"time"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
)

// InterviewStatus tracks scheduling progress.
type InterviewStatus string

const (
	StatusPending   InterviewStatus = "Pending"
	StatusScheduled InterviewStatus = "Scheduled"
	StatusCompleted InterviewStatus = "Completed"
)

// EvaluationStatus tracks how much of an interview has been scored.
type EvaluationStatus string

const (
	EvaluationNotEvaluated       EvaluationStatus = "NotEvaluated"
	EvaluationPartiallyEvaluated EvaluationStatus = "PartiallyEvaluated"
	EvaluationEvaluated          EvaluationStatus = "Evaluated"
)

// ScoringStatus tracks the scoring state of a single answer.
type ScoringStatus string

const (
	ScoringPending         ScoringStatus = "pending"
	ScoringScored          ScoringStatus = "scored"
	ScoringPartiallyScored ScoringStatus = "partially_scored"
	ScoringFailed          ScoringStatus = "failed"
)

// Interview joins one job and one candidate and owns its questions and answers.
type Interview struct {
	ID               int64            `json:"id"`
	JobID            int64            `json:"jobId"`
	CandidateID      int64            `json:"candidateId"`
	Status           InterviewStatus  `json:"status"`
	EvaluationStatus EvaluationStatus `json:"evaluationStatus"`
	FinalScore       *float64         `json:"finalScore"`
	ScheduledAt      *time.Time       `json:"scheduledAt,omitempty"`
	// Version is bumped on every write and used for compare-and-swap.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Question is an interview-specific copy of a question. Its reference
// embedding is fixed at creation and only changes through Reembed.
type Question struct {
	ID                 int64            `json:"id"`
	InterviewID        int64            `json:"interviewId"`
	SourceKnowledgeID  *int64           `json:"sourceKnowledgeId,omitempty"`
	Text               string           `json:"text"`
	ReferenceAnswer    string           `json:"referenceAnswer,omitempty"`
	Keywords           []string         `json:"keywords,omitempty"`
	ReferenceEmbedding embedding.Vector `json:"-"`
	Approved           bool             `json:"approved"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// Answer is a candidate's response to one interview question.
type Answer struct {
	ID           int64            `json:"id"`
	InterviewID  int64            `json:"interviewId"`
	QuestionID   int64            `json:"questionId"`
	CandidateID  int64            `json:"candidateId"`
	Text         string           `json:"text"`
	Embedding    embedding.Vector `json:"-"`
	Similarity   *float64         `json:"similarity"`
	Judgment     *float64         `json:"judgment"`
	Score        *float64         `json:"score"`
	Feedback     string           `json:"feedback,omitempty"`
	Status       ScoringStatus    `json:"status"`
	ScoringError string           `json:"scoringError,omitempty"`
	Attempts     int              `json:"attempts"`
	CreatedAt    time.Time        `json:"createdAt"`
	ScoredAt     *time.Time       `json:"scoredAt,omitempty"`
}

// JobRef is the part of a job the engine reads.
type JobRef struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Technology string `json:"technology"`
}

// CandidateRef is the part of a candidate the engine reads.
type CandidateRef struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Technology string `json:"technology"`
}

// QuestionInput is the assembler payload for one question, either copied
// from the bank or authored by a manager.
type QuestionInput struct {
	SourceKnowledgeID *int64            `json:"sourceKnowledgeId,omitempty"`
	Text              string            `json:"text"`
	ReferenceAnswer   string            `json:"referenceAnswer"`
	Keywords          []string          `json:"keywords"`
	Embedding         *embedding.Vector `json:"-"`
	Approved          bool              `json:"approved"`
}

// QuestionEdit changes a draft question. Nil fields keep their value.
type QuestionEdit struct {
	Text            *string  `json:"text"`
	ReferenceAnswer *string  `json:"referenceAnswer"`
	Keywords        []string `json:"keywords"`
}

// FromKnowledge builds an assembler input from a bank entry.
func FromKnowledge(q knowledge.Question, approved bool) QuestionInput {
	id := q.ID
	in := QuestionInput{
		SourceKnowledgeID: &id,
		Text:              q.Text,
		ReferenceAnswer:   q.ReferenceAnswer,
		Keywords:          append([]string(nil), q.Keywords...),
		Approved:          approved,
	}
	if q.Embedding != nil {
		vec := q.Embedding.Clone()
		in.Embedding = &vec
	}
	return in
}
