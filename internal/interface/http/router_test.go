package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	"github.com/yanqian/interview-evaluator/internal/infra/claim"
	"github.com/yanqian/interview-evaluator/internal/infra/config"
	"github.com/yanqian/interview-evaluator/internal/infra/embedder"
	"github.com/yanqian/interview-evaluator/internal/infra/judge"
	"github.com/yanqian/interview-evaluator/internal/infra/repo"
)

var (
	managerActor   = auth.Actor{UserID: 1, Role: auth.RoleManager}
	candidateActor = auth.Actor{UserID: 100, Role: auth.RoleCandidate}
)

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, string, any) error { return nil }

type testServer struct {
	server    *http.Server
	manager   string
	candidate string
}

func newServerUnderTest(t *testing.T) *testServer {
	t.Helper()
	return newServerWith(t, embedder.NewDeterministicEmbedder(32), evaluation.DefaultScoringConfig(), config.RetryConfig{})
}

func newServerWith(t *testing.T, emb embedding.Provider, scoring evaluation.ScoringConfig, retry config.RetryConfig) *testServer {
	t.Helper()
	logger := newTestLogger()
	store := repo.NewMemoryStore()
	dir := store.Directory()
	dir.PutJob(evaluation.JobRef{ID: 10, Title: "Backend Engineer", Technology: "go"})
	dir.PutCandidate(evaluation.CandidateRef{ID: candidateActor.UserID, Name: "Ada", Technology: "go"})

	bankRepo := store.Knowledge()
	resolver := knowledge.NewResolver(bankRepo, bankRepo, logger)
	bank := knowledge.NewService(bankRepo, resolver, nil, emb, logger)

	interviews, questions, answers := store.Interviews(), store.Questions(), store.Answers()
	svc := evaluation.NewService(evaluation.Config{ClaimTTL: time.Minute, Workers: 2}, evaluation.Dependencies{
		Interviews: interviews,
		Questions:  questions,
		Answers:    answers,
		Directory:  dir,
		Assembler:  evaluation.NewAssembler(interviews, questions, dir, resolver, emb, logger),
		Scorer:     evaluation.NewScorer(scoring, emb, judge.KeywordJudge{}, logger),
		Aggregator: evaluation.NewAggregator(interviews, questions, answers, 5, logger),
		Claims:     claim.NewMemoryStore(),
		Queue:      noopQueue{},
	}, logger)

	tokens := auth.NewService(auth.Config{Secret: "router-test", TokenTTL: time.Hour}, logger)
	managerToken, err := tokens.Issue(context.Background(), managerActor)
	require.NoError(t, err)
	candidateToken, err := tokens.Issue(context.Background(), candidateActor)
	require.NoError(t, err)

	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			Retry:        retry,
		},
	}
	return &testServer{
		server:    NewRouter(cfg, NewHandler(svc, bank, logger), tokens),
		manager:   managerToken,
		candidate: candidateToken,
	}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	s := newServerUnderTest(t)
	rec := s.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	s := newServerUnderTest(t)

	rec := s.do(http.MethodGet, "/api/v1/interviews/1", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decodeErrorBody(t, rec.Body.Bytes())["code"])

	rec = s.do(http.MethodGet, "/api/v1/interviews/1", "not-a-jwt", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newServerUnderTest(t)

	rec := s.do(http.MethodGet, "/api/v1/interviews/999", s.manager, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeErrorBody(t, rec.Body.Bytes())["code"])

	rec = s.do(http.MethodPost, "/api/v1/interviews", s.candidate, `{"jobId":10,"candidateId":100}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/interviews/abc", s.manager, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/bank/questions", s.candidate, `{}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/interviews", s.manager, `{"jobId":"ten"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_input", decodeErrorBody(t, rec.Body.Bytes())["code"])
}

func TestRouter_InterviewLifecycle(t *testing.T) {
	s := newServerUnderTest(t)

	rec := s.do(http.MethodPost, "/api/v1/interviews", s.manager, `{"jobId":10,"candidateId":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var iv evaluation.Interview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &iv))
	base := "/api/v1/interviews/" + strconv.FormatInt(iv.ID, 10)

	rec = s.do(http.MethodPost, base+"/questions", s.manager, `{"questions":[
		{"text":"Explain goroutines","referenceAnswer":"Goroutines are lightweight threads managed by the Go runtime scheduler","keywords":["lightweight","runtime"],"approved":true},
		{"text":"Draft question","referenceAnswer":"hidden","approved":false}
	]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var added struct {
		Questions []evaluation.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Len(t, added.Questions, 2)

	rec = s.do(http.MethodPost, base+"/schedule", s.manager, `{"scheduledAt":"2030-01-02T15:04:05Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, base+"/questions", s.candidate, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var visible struct {
		Questions []evaluation.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	require.Len(t, visible.Questions, 1)
	require.Empty(t, visible.Questions[0].ReferenceAnswer)

	answer := `{"questionId":` + strconv.FormatInt(visible.Questions[0].ID, 10) +
		`,"text":"Goroutines are lightweight threads managed by the Go runtime scheduler"}`
	rec = s.do(http.MethodPost, base+"/answers", s.candidate, answer)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(http.MethodPost, base+"/answers", s.candidate, answer)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, base+"/score", s.manager, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run evaluation.ScoreRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, 1, run.Scored)
	require.Equal(t, evaluation.EvaluationEvaluated, run.Outcome.Interview.EvaluationStatus)
	require.NotNil(t, run.Outcome.Interview.FinalScore)
	require.InDelta(t, 10.0, *run.Outcome.Interview.FinalScore, 0.01)

	rec = s.do(http.MethodGet, base+"/report", s.candidate, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report evaluation.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Items, 1)
	require.Equal(t, evaluation.ScoringScored, report.Items[0].Status)

	rec = s.do(http.MethodDelete, base, s.manager, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, base, s.manager, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_BankResolveShort(t *testing.T) {
	s := newServerUnderTest(t)

	rec := s.do(http.MethodPost, "/api/v1/bank/questions", s.manager,
		`{"technology":"Go","text":"What is a channel?","referenceAnswer":"A typed conduit","keywords":["conduit"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/bank/resolve?technology=go&count=3", s.manager, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Questions []knowledge.Question `json:"questions"`
		Short     bool                 `json:"short"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Short)
	require.Len(t, body.Questions, 1)

	rec = s.do(http.MethodGet, "/api/v1/bank/resolve?technology=rust&count=1", s.manager, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// flakyEmbedder counts calls and fails once broken is set.
type flakyEmbedder struct {
	embedding.Provider
	broken atomic.Bool
	calls  atomic.Int32
}

func (e *flakyEmbedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	e.calls.Add(1)
	if e.broken.Load() {
		return nil, errors.New("embedding backend down")
	}
	return e.Provider.Embed(ctx, texts)
}

func TestRouter_RescoreIsNotRetriedOverScorerAttempts(t *testing.T) {
	emb := &flakyEmbedder{Provider: embedder.NewDeterministicEmbedder(32)}
	scoring := evaluation.DefaultScoringConfig()
	scoring.BaseBackoff = time.Millisecond
	s := newServerWith(t, emb, scoring, config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond})

	rec := s.do(http.MethodPost, "/api/v1/interviews", s.manager, `{"jobId":10,"candidateId":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var iv evaluation.Interview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &iv))
	base := "/api/v1/interviews/" + strconv.FormatInt(iv.ID, 10)

	rec = s.do(http.MethodPost, base+"/questions", s.manager,
		`{"questions":[{"text":"Explain select","referenceAnswer":"select waits on channel operations","approved":true}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var added struct {
		Questions []evaluation.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	rec = s.do(http.MethodPost, base+"/schedule", s.manager, `{"scheduledAt":"2030-01-02T15:04:05Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, base+"/answers", s.candidate,
		`{"questionId":`+strconv.FormatInt(added.Questions[0].ID, 10)+`,"text":"select blocks until a case can run"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var ans evaluation.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))

	emb.broken.Store(true)
	emb.calls.Store(0)
	rec = s.do(http.MethodPost, "/api/v1/answers/"+strconv.FormatInt(ans.ID, 10)+"/rescore", s.manager, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "scoring_unavailable", decodeErrorBody(t, rec.Body.Bytes())["code"])
	require.Equal(t, int32(scoring.MaxAttempts), emb.calls.Load())
}

func TestRetryExclusionPatterns(t *testing.T) {
	patterns := retryConfig(config.RetryConfig{Exclude: []string{"/custom"}}).Exclude
	require.True(t, excluded(patterns, "/custom"))
	require.True(t, excluded(patterns, "/api/v1/answers/42/rescore"))
	require.True(t, excluded(patterns, "/api/v1/interviews/7/score/"))
	require.True(t, excluded(patterns, "/api/v1/bank/generate"))
	require.False(t, excluded(patterns, "/api/v1/interviews"))
	require.False(t, excluded(patterns, "/api/v1/interviews/7/schedule"))
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body["error"]
}
