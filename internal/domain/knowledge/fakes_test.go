package knowledge

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRepo struct {
	mu        sync.Mutex
	nextID    int64
	questions map[int64]Question
	negative  map[int64]struct{}
	feedback  []Feedback
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{questions: map[int64]Question{}, negative: map[int64]struct{}{}}
}

func (r *fakeRepo) Create(_ context.Context, q Question) (Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	q.ID = r.nextID
	r.questions[q.ID] = q
	return q, nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (Question, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	return q, ok, nil
}

func (r *fakeRepo) ListByTechnology(_ context.Context, technology string) ([]Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Question
	for id := int64(1); id <= r.nextID; id++ {
		if q, ok := r.questions[id]; ok && q.Technology == technology {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[id]; !ok {
		return ErrNotFound
	}
	delete(r.questions, id)
	return nil
}

func (r *fakeRepo) AddFeedback(_ context.Context, fb Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, fb)
	if !fb.IsGood {
		r.negative[fb.QuestionID] = struct{}{}
	}
	return nil
}

func (r *fakeRepo) NegativeFeedbackIDs(context.Context) (map[int64]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]struct{}, len(r.negative))
	for id := range r.negative {
		out[id] = struct{}{}
	}
	return out, nil
}

type fakeUsage map[int64]Usage

func (u fakeUsage) KnowledgeUsage(context.Context, int64) (map[int64]Usage, error) {
	return u, nil
}

type scriptedLLM struct {
	replies []string
	errs    []error
	calls   int
}

func (l *scriptedLLM) Chat(context.Context, []LLMMessage) (string, error) {
	i := l.calls
	l.calls++
	var err error
	if i < len(l.errs) {
		err = l.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(l.replies) {
		return l.replies[i], nil
	}
	return "", nil
}
