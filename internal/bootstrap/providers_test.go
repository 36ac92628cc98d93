package bootstrap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/interview-evaluator/internal/infra/claim"
	"github.com/yanqian/interview-evaluator/internal/infra/config"
	"github.com/yanqian/interview-evaluator/internal/infra/embedder"
	"github.com/yanqian/interview-evaluator/internal/infra/judge"
	"github.com/yanqian/interview-evaluator/internal/infra/queue"
	"github.com/yanqian/interview-evaluator/internal/infra/repo"
)

func testConfig() *config.Config {
	return &config.Config{
		Embedding: config.EmbeddingConfig{Provider: "deterministic", Dimensions: 16},
		Judge:     config.JudgeConfig{Provider: "chatgpt"},
		Queue:     config.QueueConfig{Kind: "valkey"},
	}
}

func TestOfflineFallbacks(t *testing.T) {
	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	storage, cleanup, err := ProvideStorage(cfg, logger)
	require.NoError(t, err)
	defer cleanup()
	require.IsType(t, &repo.MemoryInterviewRepository{}, storage.Interviews)

	client, closeClient, err := ProvideValkeyClient(cfg, logger)
	require.NoError(t, err)
	defer closeClient()
	require.Nil(t, client)

	require.IsType(t, &claim.MemoryStore{}, ProvideClaimStore(cfg, client))

	jobs, err := ProvideJobQueue(cfg, client, logger)
	require.NoError(t, err)
	require.IsType(t, &queue.ImmediateQueue{}, jobs)

	gpt, err := ProvideChatGPTClient(cfg)
	require.NoError(t, err)
	require.Nil(t, gpt)

	require.IsType(t, &embedder.DeterministicEmbedder{}, ProvideEmbedder(cfg, gpt, logger))
	require.Equal(t, judge.KeywordJudge{}, ProvideJudge(cfg, gpt, nil, logger))
	require.Nil(t, ProvideLLM(cfg, gpt, nil))
	require.Nil(t, ProvideGenerator(cfg, nil, logger))

	archive, err := ProvideReportArchive(cfg, logger)
	require.NoError(t, err)
	require.Nil(t, archive)
}

func TestValkeyOptions(t *testing.T) {
	opt, err := buildValkeyOptions("localhost:6379")
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:6379"}, opt.InitAddress)

	opt, err = buildValkeyOptions("redis://localhost:6380/0")
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:6380"}, opt.InitAddress)
}
