package evaluation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	"github.com/yanqian/interview-evaluator/internal/infra/claim"
	"github.com/yanqian/interview-evaluator/internal/infra/repo"
)

const testModel = "unit-embed-v1"

var (
	manager   = auth.Actor{UserID: 1, Role: auth.RoleManager}
	candidate = auth.Actor{UserID: 100, Role: auth.RoleCandidate}
)

// unitEmbedder maps every text onto the same direction unless overridden.
type unitEmbedder struct {
	mu      sync.Mutex
	model   string
	vectors map[string][]float32
	err     error
	calls   int
}

func newUnitEmbedder() *unitEmbedder {
	return &unitEmbedder{model: testModel, vectors: map[string][]float32{}}
}

func (e *unitEmbedder) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

func (e *unitEmbedder) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		values, ok := e.vectors[text]
		if !ok {
			values = []float32{1, 0}
		}
		out[i] = embedding.Vector{Model: e.model, Values: append([]float32(nil), values...)}
	}
	return out, nil
}

// tableJudge scores answers by their text.
type tableJudge struct {
	mu     sync.Mutex
	scores map[string]float64
	calls  int
}

func (j *tableJudge) Judge(_ context.Context, req evaluation.JudgeRequest) (evaluation.Judgment, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	score, ok := j.scores[req.Answer]
	if !ok {
		return evaluation.Judgment{}, errors.New("no verdict")
	}
	return evaluation.Judgment{Score: score, Feedback: "verdict for " + req.Answer}, nil
}

// blockingJudge holds every call until release is closed or the call
// context ends.
type blockingJudge struct {
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func newBlockingJudge() *blockingJudge {
	return &blockingJudge{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (j *blockingJudge) Judge(ctx context.Context, _ evaluation.JudgeRequest) (evaluation.Judgment, error) {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	j.entered <- struct{}{}
	select {
	case <-j.release:
		return evaluation.Judgment{Score: 1, Feedback: "released"}, nil
	case <-ctx.Done():
		return evaluation.Judgment{}, ctx.Err()
	}
}

func (j *blockingJudge) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []map[string]any
}

func (q *recordingQueue) Enqueue(_ context.Context, name string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, map[string]any{"name": name, "payload": payload})
	return nil
}

type memoryArchive struct {
	mu      sync.Mutex
	reports []evaluation.Report
}

func (a *memoryArchive) Save(_ context.Context, r evaluation.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, r)
	return nil
}

type fixture struct {
	store    *repo.MemoryStore
	embedder *unitEmbedder
	queue    *recordingQueue
	archive  *memoryArchive
	bank     *knowledge.Service
	svc      *evaluation.Service
}

func newFixture(t *testing.T, judge evaluation.Judge, scoring evaluation.ScoringConfig) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repo.NewMemoryStore()
	dir := store.Directory()
	dir.PutJob(evaluation.JobRef{ID: 10, Title: "Backend Engineer", Technology: "Go"})
	dir.PutCandidate(evaluation.CandidateRef{ID: candidate.UserID, Name: "Ada", Technology: "go"})

	embedder := newUnitEmbedder()
	bankRepo := store.Knowledge()
	resolver := knowledge.NewResolver(bankRepo, bankRepo, logger)
	bank := knowledge.NewService(bankRepo, resolver, nil, embedder, logger)

	interviews, questions, answers := store.Interviews(), store.Questions(), store.Answers()
	queue := &recordingQueue{}
	archive := &memoryArchive{}
	svc := evaluation.NewService(evaluation.Config{ClaimTTL: time.Minute, Workers: 2}, evaluation.Dependencies{
		Interviews: interviews,
		Questions:  questions,
		Answers:    answers,
		Directory:  dir,
		Assembler:  evaluation.NewAssembler(interviews, questions, dir, resolver, embedder, logger),
		Scorer:     evaluation.NewScorer(scoring, embedder, judge, logger),
		Aggregator: evaluation.NewAggregator(interviews, questions, answers, 5, logger),
		Claims:     claim.NewMemoryStore(),
		Queue:      queue,
		Archive:    archive,
	}, logger)
	return &fixture{store: store, embedder: embedder, queue: queue, archive: archive, bank: bank, svc: svc}
}

func fastScoring() evaluation.ScoringConfig {
	cfg := evaluation.DefaultScoringConfig()
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxAttempts = 2
	cfg.JudgeTimeout = 50 * time.Millisecond
	return cfg
}

// scheduledInterview creates a Scheduled interview with n approved questions.
func (f *fixture) scheduledInterview(t *testing.T, n int) (evaluation.Interview, []evaluation.Question) {
	t.Helper()
	ctx := context.Background()
	iv, err := f.svc.CreateInterview(ctx, manager, evaluation.CreateInterviewInput{JobID: 10, CandidateID: candidate.UserID})
	require.NoError(t, err)
	inputs := make([]evaluation.QuestionInput, n)
	for i := range inputs {
		inputs[i] = evaluation.QuestionInput{Text: "question", ReferenceAnswer: "reference", Approved: true}
	}
	qs, err := f.svc.AddQuestions(ctx, manager, iv.ID, inputs)
	require.NoError(t, err)
	iv, err = f.svc.Schedule(ctx, manager, iv.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return iv, qs
}

func (f *fixture) submit(t *testing.T, iv evaluation.Interview, q evaluation.Question, text string) evaluation.Answer {
	t.Helper()
	ans, err := f.svc.SubmitAnswer(context.Background(), candidate, evaluation.SubmitAnswerInput{
		InterviewID: iv.ID,
		QuestionID:  q.ID,
		Text:        text,
	})
	require.NoError(t, err)
	return ans
}

func (f *fixture) interview(t *testing.T, id int64) evaluation.Interview {
	t.Helper()
	iv, err := f.svc.GetInterview(context.Background(), manager, id)
	require.NoError(t, err)
	return iv
}
