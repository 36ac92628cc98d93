package evaluation

import (
	"context"
	"errors"
	"time"

	"github.com/yanqian/interview-evaluator/pkg/metrics"
)

// Repository level sentinel errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("interview version changed")
	ErrDuplicateAnswer = errors.New("answer already submitted for question")
	// ErrParentGone is returned when a write targets a deleted interview.
	ErrParentGone = errors.New("interview no longer exists")
)

// InterviewUpdate is applied atomically by CompareAndSwap.
type InterviewUpdate struct {
	Status           InterviewStatus
	EvaluationStatus EvaluationStatus
	FinalScore       *float64
	ScheduledAt      *time.Time
}

// InterviewRepository persists interviews.
type InterviewRepository interface {
	Create(ctx context.Context, iv Interview) (Interview, error)
	Get(ctx context.Context, id int64) (Interview, bool, error)
	// CompareAndSwap applies update only when the stored version equals
	// expectedVersion and returns the stored row with a bumped version.
	CompareAndSwap(ctx context.Context, id, expectedVersion int64, update InterviewUpdate) (Interview, error)
	// Delete removes the interview with its questions and answers.
	Delete(ctx context.Context, id int64) error
}

// QuestionRepository persists interview questions.
type QuestionRepository interface {
	// Insert stores q. When q has a SourceKnowledgeID already attached to the
	// same interview the existing row is returned with created=false.
	Insert(ctx context.Context, q Question) (stored Question, created bool, err error)
	Get(ctx context.Context, id int64) (Question, bool, error)
	ListByInterview(ctx context.Context, interviewID int64) ([]Question, error)
	SetApproved(ctx context.Context, id int64, approved bool) error
	UpdateReferenceEmbedding(ctx context.Context, q Question) error
	// UpdateDraft rewrites text, reference answer, keywords and reference
	// embedding of an unapproved question. DeleteDraft removes one. Both
	// return ErrVersionConflict when the question was approved meanwhile.
	UpdateDraft(ctx context.Context, q Question) error
	DeleteDraft(ctx context.Context, id int64) error
}

// AnswerRepository persists candidate answers.
type AnswerRepository interface {
	Insert(ctx context.Context, a Answer) (Answer, error)
	Get(ctx context.Context, id int64) (Answer, bool, error)
	ListByInterview(ctx context.Context, interviewID int64) ([]Answer, error)
	// SaveScore writes the scoring fields of a. The parent interview is
	// checked at write time; ErrParentGone means the result was discarded.
	SaveScore(ctx context.Context, a Answer) error
}

// Directory exposes the external job and candidate store.
type Directory interface {
	Job(ctx context.Context, id int64) (JobRef, bool, error)
	Candidate(ctx context.Context, id int64) (CandidateRef, bool, error)
}

// JudgeRequest carries the inputs of a holistic judgment.
type JudgeRequest struct {
	Question        string
	ReferenceAnswer string
	Keywords        []string
	Answer          string
}

// Judgment is the judge output. Score must lie in [0, 1].
type Judgment struct {
	Score    float64
	Feedback string
	Usage    metrics.TokenUsage
}

// Judge is the opaque judgment provider.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (Judgment, error)
}

// ClaimStore grants short-lived exclusive claims used to keep a single
// scoring attempt in flight per answer.
type ClaimStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// JobQueue enqueues background work.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// ReportArchive stores finished evaluation reports.
type ReportArchive interface {
	Save(ctx context.Context, report Report) error
}
