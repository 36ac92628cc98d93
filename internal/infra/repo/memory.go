package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
)

// MemoryStore keeps every table in process memory behind one lock, which
// gives the cross-table guarantees (cascade, parent checks) Postgres gives
// through foreign keys.
type MemoryStore struct {
	mu sync.RWMutex

	seq        int64
	interviews map[int64]evaluation.Interview
	questions  map[int64]evaluation.Question
	answers    map[int64]evaluation.Answer
	bank       map[int64]knowledge.Question
	feedback   []knowledge.Feedback
	jobs       map[int64]evaluation.JobRef
	candidates map[int64]evaluation.CandidateRef
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		interviews: make(map[int64]evaluation.Interview),
		questions:  make(map[int64]evaluation.Question),
		answers:    make(map[int64]evaluation.Answer),
		bank:       make(map[int64]knowledge.Question),
		jobs:       make(map[int64]evaluation.JobRef),
		candidates: make(map[int64]evaluation.CandidateRef),
	}
}

func (s *MemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

// Interviews returns the interview repository view.
func (s *MemoryStore) Interviews() *MemoryInterviewRepository { return &MemoryInterviewRepository{s: s} }

// Questions returns the interview question repository view.
func (s *MemoryStore) Questions() *MemoryQuestionRepository { return &MemoryQuestionRepository{s: s} }

// Answers returns the answer repository view.
func (s *MemoryStore) Answers() *MemoryAnswerRepository { return &MemoryAnswerRepository{s: s} }

// Knowledge returns the bank repository view.
func (s *MemoryStore) Knowledge() *MemoryKnowledgeRepository { return &MemoryKnowledgeRepository{s: s} }

// Directory returns the job and candidate view.
func (s *MemoryStore) Directory() *MemoryDirectory { return &MemoryDirectory{s: s} }

// MemoryInterviewRepository implements evaluation.InterviewRepository.
type MemoryInterviewRepository struct{ s *MemoryStore }

func (r *MemoryInterviewRepository) Create(_ context.Context, iv evaluation.Interview) (evaluation.Interview, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	iv.ID = r.s.nextID()
	iv.Version = 1
	r.s.interviews[iv.ID] = iv
	return iv, nil
}

func (r *MemoryInterviewRepository) Get(_ context.Context, id int64) (evaluation.Interview, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	iv, ok := r.s.interviews[id]
	return iv, ok, nil
}

func (r *MemoryInterviewRepository) CompareAndSwap(_ context.Context, id, expectedVersion int64, update evaluation.InterviewUpdate) (evaluation.Interview, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	iv, ok := r.s.interviews[id]
	if !ok {
		return evaluation.Interview{}, evaluation.ErrNotFound
	}
	if iv.Version != expectedVersion {
		return evaluation.Interview{}, evaluation.ErrVersionConflict
	}
	iv.Status = update.Status
	iv.EvaluationStatus = update.EvaluationStatus
	iv.FinalScore = update.FinalScore
	iv.ScheduledAt = update.ScheduledAt
	iv.Version++
	iv.UpdatedAt = time.Now().UTC()
	r.s.interviews[id] = iv
	return iv, nil
}

func (r *MemoryInterviewRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.interviews[id]; !ok {
		return evaluation.ErrNotFound
	}
	delete(r.s.interviews, id)
	for qid, q := range r.s.questions {
		if q.InterviewID == id {
			delete(r.s.questions, qid)
		}
	}
	for aid, a := range r.s.answers {
		if a.InterviewID == id {
			delete(r.s.answers, aid)
		}
	}
	return nil
}

var _ evaluation.InterviewRepository = (*MemoryInterviewRepository)(nil)

// MemoryQuestionRepository implements evaluation.QuestionRepository.
type MemoryQuestionRepository struct{ s *MemoryStore }

func (r *MemoryQuestionRepository) Insert(_ context.Context, q evaluation.Question) (evaluation.Question, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.interviews[q.InterviewID]; !ok {
		return evaluation.Question{}, false, evaluation.ErrParentGone
	}
	if q.SourceKnowledgeID != nil {
		for _, existing := range r.s.questions {
			if existing.InterviewID == q.InterviewID && existing.SourceKnowledgeID != nil && *existing.SourceKnowledgeID == *q.SourceKnowledgeID {
				return cloneQuestion(existing), false, nil
			}
		}
	}
	q = cloneQuestion(q)
	q.ID = r.s.nextID()
	r.s.questions[q.ID] = q
	return cloneQuestion(q), true, nil
}

func (r *MemoryQuestionRepository) Get(_ context.Context, id int64) (evaluation.Question, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.questions[id]
	if !ok {
		return evaluation.Question{}, false, nil
	}
	return cloneQuestion(q), true, nil
}

func (r *MemoryQuestionRepository) ListByInterview(_ context.Context, interviewID int64) ([]evaluation.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]evaluation.Question, 0)
	for _, q := range r.s.questions {
		if q.InterviewID == interviewID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryQuestionRepository) SetApproved(_ context.Context, id int64, approved bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.questions[id]
	if !ok {
		return evaluation.ErrNotFound
	}
	q.Approved = approved
	r.s.questions[id] = q
	return nil
}

func (r *MemoryQuestionRepository) UpdateReferenceEmbedding(_ context.Context, q evaluation.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.questions[q.ID]
	if !ok {
		return evaluation.ErrNotFound
	}
	stored.ReferenceEmbedding = q.ReferenceEmbedding.Clone()
	r.s.questions[q.ID] = stored
	return nil
}

func (r *MemoryQuestionRepository) UpdateDraft(_ context.Context, q evaluation.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.questions[q.ID]
	if !ok {
		return evaluation.ErrNotFound
	}
	if stored.Approved {
		return evaluation.ErrVersionConflict
	}
	stored.Text = q.Text
	stored.ReferenceAnswer = q.ReferenceAnswer
	stored.Keywords = append([]string(nil), q.Keywords...)
	stored.ReferenceEmbedding = q.ReferenceEmbedding.Clone()
	r.s.questions[q.ID] = stored
	return nil
}

func (r *MemoryQuestionRepository) DeleteDraft(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.questions[id]
	if !ok {
		return evaluation.ErrNotFound
	}
	if stored.Approved {
		return evaluation.ErrVersionConflict
	}
	delete(r.s.questions, id)
	for aid, a := range r.s.answers {
		if a.QuestionID == id {
			delete(r.s.answers, aid)
		}
	}
	return nil
}

var _ evaluation.QuestionRepository = (*MemoryQuestionRepository)(nil)

// MemoryAnswerRepository implements evaluation.AnswerRepository.
type MemoryAnswerRepository struct{ s *MemoryStore }

func (r *MemoryAnswerRepository) Insert(_ context.Context, a evaluation.Answer) (evaluation.Answer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.interviews[a.InterviewID]; !ok {
		return evaluation.Answer{}, evaluation.ErrParentGone
	}
	if q, ok := r.s.questions[a.QuestionID]; !ok || q.InterviewID != a.InterviewID {
		return evaluation.Answer{}, evaluation.ErrParentGone
	}
	for _, existing := range r.s.answers {
		if existing.QuestionID == a.QuestionID && existing.CandidateID == a.CandidateID {
			return evaluation.Answer{}, evaluation.ErrDuplicateAnswer
		}
	}
	a.ID = r.s.nextID()
	r.s.answers[a.ID] = cloneAnswer(a)
	return cloneAnswer(a), nil
}

func (r *MemoryAnswerRepository) Get(_ context.Context, id int64) (evaluation.Answer, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.answers[id]
	if !ok {
		return evaluation.Answer{}, false, nil
	}
	return cloneAnswer(a), true, nil
}

func (r *MemoryAnswerRepository) ListByInterview(_ context.Context, interviewID int64) ([]evaluation.Answer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]evaluation.Answer, 0)
	for _, a := range r.s.answers {
		if a.InterviewID == interviewID {
			out = append(out, cloneAnswer(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryAnswerRepository) SaveScore(_ context.Context, a evaluation.Answer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.interviews[a.InterviewID]; !ok {
		return evaluation.ErrParentGone
	}
	stored, ok := r.s.answers[a.ID]
	if !ok {
		return evaluation.ErrParentGone
	}
	stored.Embedding = a.Embedding.Clone()
	stored.Similarity = a.Similarity
	stored.Judgment = a.Judgment
	stored.Score = a.Score
	stored.Feedback = a.Feedback
	stored.Status = a.Status
	stored.ScoringError = a.ScoringError
	stored.Attempts = a.Attempts
	stored.ScoredAt = a.ScoredAt
	r.s.answers[a.ID] = stored
	return nil
}

var _ evaluation.AnswerRepository = (*MemoryAnswerRepository)(nil)

// MemoryKnowledgeRepository implements knowledge.Repository and
// knowledge.UsageLookup.
type MemoryKnowledgeRepository struct{ s *MemoryStore }

func (r *MemoryKnowledgeRepository) Create(_ context.Context, q knowledge.Question) (knowledge.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q.ID = r.s.nextID()
	q = cloneKnowledge(q)
	r.s.bank[q.ID] = q
	return cloneKnowledge(q), nil
}

func (r *MemoryKnowledgeRepository) Get(_ context.Context, id int64) (knowledge.Question, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.bank[id]
	if !ok {
		return knowledge.Question{}, false, nil
	}
	return cloneKnowledge(q), true, nil
}

func (r *MemoryKnowledgeRepository) ListByTechnology(_ context.Context, technology string) ([]knowledge.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	revised := make(map[int64]struct{})
	for _, q := range r.s.bank {
		if q.RevisionOf != nil {
			revised[*q.RevisionOf] = struct{}{}
		}
	}
	out := make([]knowledge.Question, 0)
	for _, q := range r.s.bank {
		if _, old := revised[q.ID]; old || q.Technology != technology {
			continue
		}
		out = append(out, cloneKnowledge(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryKnowledgeRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bank[id]; !ok {
		return knowledge.ErrNotFound
	}
	delete(r.s.bank, id)
	for kid, k := range r.s.bank {
		if k.RevisionOf != nil && *k.RevisionOf == id {
			k.RevisionOf = nil
			r.s.bank[kid] = k
		}
	}
	for qid, q := range r.s.questions {
		if q.SourceKnowledgeID != nil && *q.SourceKnowledgeID == id {
			q.SourceKnowledgeID = nil
			r.s.questions[qid] = q
		}
	}
	kept := r.s.feedback[:0]
	for _, fb := range r.s.feedback {
		if fb.QuestionID != id {
			kept = append(kept, fb)
		}
	}
	r.s.feedback = kept
	return nil
}

func (r *MemoryKnowledgeRepository) AddFeedback(_ context.Context, fb knowledge.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bank[fb.QuestionID]; !ok {
		return knowledge.ErrNotFound
	}
	r.s.feedback = append(r.s.feedback, fb)
	return nil
}

func (r *MemoryKnowledgeRepository) NegativeFeedbackIDs(context.Context) (map[int64]struct{}, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64]struct{})
	for _, fb := range r.s.feedback {
		if !fb.IsGood {
			out[fb.QuestionID] = struct{}{}
		}
	}
	return out, nil
}

// KnowledgeUsage marks bank questions already used in the candidate's
// interviews and reports the latest use across all interviews.
func (r *MemoryKnowledgeRepository) KnowledgeUsage(_ context.Context, candidateID int64) (map[int64]knowledge.Usage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64]knowledge.Usage)
	for _, q := range r.s.questions {
		if q.SourceKnowledgeID == nil {
			continue
		}
		u := out[*q.SourceKnowledgeID]
		if q.CreatedAt.After(u.LastUsedAt) {
			u.LastUsedAt = q.CreatedAt
		}
		if iv, ok := r.s.interviews[q.InterviewID]; ok && iv.CandidateID == candidateID {
			u.InCycle = true
		}
		out[*q.SourceKnowledgeID] = u
	}
	return out, nil
}

var (
	_ knowledge.Repository  = (*MemoryKnowledgeRepository)(nil)
	_ knowledge.UsageLookup = (*MemoryKnowledgeRepository)(nil)
)

// MemoryDirectory implements evaluation.Directory with seedable records.
type MemoryDirectory struct{ s *MemoryStore }

// PutJob stores or replaces a job.
func (d *MemoryDirectory) PutJob(job evaluation.JobRef) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	job.Technology = knowledge.NormalizeTechnology(job.Technology)
	d.s.jobs[job.ID] = job
}

// PutCandidate stores or replaces a candidate.
func (d *MemoryDirectory) PutCandidate(c evaluation.CandidateRef) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	d.s.candidates[c.ID] = c
}

func (d *MemoryDirectory) Job(_ context.Context, id int64) (evaluation.JobRef, bool, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	job, ok := d.s.jobs[id]
	return job, ok, nil
}

func (d *MemoryDirectory) Candidate(_ context.Context, id int64) (evaluation.CandidateRef, bool, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	c, ok := d.s.candidates[id]
	return c, ok, nil
}

var _ evaluation.Directory = (*MemoryDirectory)(nil)

func cloneKnowledge(q knowledge.Question) knowledge.Question {
	q.Keywords = append([]string(nil), q.Keywords...)
	if q.Embedding != nil {
		vec := q.Embedding.Clone()
		q.Embedding = &vec
	}
	if q.RevisionOf != nil {
		id := *q.RevisionOf
		q.RevisionOf = &id
	}
	return q
}

func cloneQuestion(q evaluation.Question) evaluation.Question {
	q.Keywords = append([]string(nil), q.Keywords...)
	q.ReferenceEmbedding = cloneVector(q.ReferenceEmbedding)
	if q.SourceKnowledgeID != nil {
		id := *q.SourceKnowledgeID
		q.SourceKnowledgeID = &id
	}
	return q
}

func cloneAnswer(a evaluation.Answer) evaluation.Answer {
	a.Embedding = cloneVector(a.Embedding)
	return a
}

func cloneVector(v embedding.Vector) embedding.Vector {
	if v.IsZero() {
		return embedding.Vector{Model: v.Model}
	}
	return v.Clone()
}
