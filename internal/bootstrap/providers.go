package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	"github.com/yanqian/interview-evaluator/internal/infra/claim"
	"github.com/yanqian/interview-evaluator/internal/infra/config"
	"github.com/yanqian/interview-evaluator/internal/infra/embedder"
	"github.com/yanqian/interview-evaluator/internal/infra/judge"
	"github.com/yanqian/interview-evaluator/internal/infra/llm"
	"github.com/yanqian/interview-evaluator/internal/infra/llm/chatgpt"
	"github.com/yanqian/interview-evaluator/internal/infra/llm/gemini"
	"github.com/yanqian/interview-evaluator/internal/infra/queue"
	"github.com/yanqian/interview-evaluator/internal/infra/repo"
	"github.com/yanqian/interview-evaluator/internal/infra/reports"
)

// ProviderSet builds the domain services shared by the server and the CLI.
var ProviderSet = wire.NewSet(
	ProvideStorage,
	ProvideInterviewRepository,
	ProvideQuestionRepository,
	ProvideAnswerRepository,
	ProvideKnowledgeRepository,
	ProvideUsageLookup,
	ProvideDirectory,
	ProvideValkeyClient,
	ProvideClaimStore,
	ProvideJobQueue,
	ProvideEvaluationQueue,
	ProvideReportArchive,
	ProvideChatGPTClient,
	ProvideGeminiGenerator,
	ProvideEmbedder,
	ProvideJudge,
	ProvideLLM,
	ProvideGenerator,
	ProvideAuthConfig,
	ProvideScoringConfig,
	ProvideEvaluationConfig,
	ProvideAggregator,
	ProvideDependencies,
	auth.NewService,
	knowledge.NewResolver,
	knowledge.NewService,
	evaluation.NewAssembler,
	evaluation.NewScorer,
	evaluation.NewService,
)

// Storage groups the repositories of one backend.
type Storage struct {
	Interviews evaluation.InterviewRepository
	Questions  evaluation.QuestionRepository
	Answers    evaluation.AnswerRepository
	Bank       knowledge.Repository
	Usage      knowledge.UsageLookup
	Directory  evaluation.Directory
}

// ProvideStorage connects to Postgres and migrates it, falling back to the
// in-memory store when no DSN is set or the database is unreachable.
func ProvideStorage(cfg *config.Config, logger *slog.Logger) (Storage, func(), error) {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory store")
		return memoryStorage(), func() {}, nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory store", "error", err)
		return memoryStorage(), func() {}, nil
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory store", "error", err)
		return memoryStorage(), func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory store", "error", err)
		pool.Close()
		return memoryStorage(), func() {}, nil
	}
	if err := repo.Migrate(ctx, pool); err != nil {
		pool.Close()
		return Storage{}, nil, fmt.Errorf("migrate postgres: %w", err)
	}
	logger.Info("postgres store enabled")
	bank := repo.NewPostgresKnowledgeRepository(pool)
	return Storage{
		Interviews: repo.NewPostgresInterviewRepository(pool),
		Questions:  repo.NewPostgresQuestionRepository(pool),
		Answers:    repo.NewPostgresAnswerRepository(pool),
		Bank:       bank,
		Usage:      bank,
		Directory:  repo.NewPostgresDirectory(pool),
	}, pool.Close, nil
}

func memoryStorage() Storage {
	store := repo.NewMemoryStore()
	bank := store.Knowledge()
	return Storage{
		Interviews: store.Interviews(),
		Questions:  store.Questions(),
		Answers:    store.Answers(),
		Bank:       bank,
		Usage:      bank,
		Directory:  store.Directory(),
	}
}

func ProvideInterviewRepository(s Storage) evaluation.InterviewRepository { return s.Interviews }

func ProvideQuestionRepository(s Storage) evaluation.QuestionRepository { return s.Questions }

func ProvideAnswerRepository(s Storage) evaluation.AnswerRepository { return s.Answers }

func ProvideKnowledgeRepository(s Storage) knowledge.Repository { return s.Bank }

func ProvideUsageLookup(s Storage) knowledge.UsageLookup { return s.Usage }

func ProvideDirectory(s Storage) evaluation.Directory { return s.Directory }

// ProvideValkeyClient returns nil when Valkey is disabled or unreachable.
func ProvideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, func(), error) {
	if !cfg.Valkey.Enabled {
		return nil, func() {}, nil
	}
	opt, err := buildValkeyOptions(cfg.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory", "error", err)
		return nil, func() {}, nil
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory", "error", err)
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory", "error", err)
		client.Close()
		return nil, func() {}, nil
	}
	logger.Info("valkey enabled", "addr", cfg.Valkey.Addr)
	return client, client.Close, nil
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// ProvideClaimStore shares claims through Valkey when available.
func ProvideClaimStore(cfg *config.Config, client valkey.Client) evaluation.ClaimStore {
	if client == nil {
		return claim.NewMemoryStore()
	}
	return claim.NewValkeyStore(client, cfg.Valkey.Prefix+":claim")
}

// ProvideJobQueue selects the scoring job transport.
func ProvideJobQueue(cfg *config.Config, client valkey.Client, logger *slog.Logger) (queue.HandlerQueue, error) {
	switch cfg.Queue.Kind {
	case "rabbitmq":
		return queue.NewRabbitQueue(queue.RabbitConfig{
			URL:         cfg.Queue.RabbitURL,
			Queue:       cfg.Queue.RabbitQueue,
			MaxConsumer: cfg.Queue.MaxConsumer,
		}, logger)
	case "valkey":
		if client != nil {
			return queue.NewValkeyQueue(client, cfg.Queue.ValkeyKey, logger), nil
		}
		logger.Warn("valkey unavailable, running scoring jobs in process")
	}
	return queue.NewImmediateQueue(logger), nil
}

func ProvideEvaluationQueue(q queue.HandlerQueue) evaluation.JobQueue { return q }

// ProvideReportArchive returns nil when archiving is disabled.
func ProvideReportArchive(cfg *config.Config, logger *slog.Logger) (evaluation.ReportArchive, error) {
	if !cfg.Reports.Enabled {
		return nil, nil
	}
	return reports.NewS3Archive(reports.S3Config{
		Endpoint:  cfg.Reports.Endpoint,
		AccessKey: cfg.Reports.AccessKey,
		SecretKey: cfg.Reports.SecretKey,
		Bucket:    cfg.Reports.Bucket,
		Region:    cfg.Reports.Region,
	}, logger)
}

// ProvideChatGPTClient returns nil without an API key.
func ProvideChatGPTClient(cfg *config.Config) (*chatgpt.Client, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil, nil
	}
	return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

// ProvideGeminiGenerator returns nil without an API key.
func ProvideGeminiGenerator(cfg *config.Config) (*gemini.Generator, error) {
	if strings.TrimSpace(cfg.LLM.GeminiAPIKey) == "" {
		return nil, nil
	}
	return gemini.NewGenerator(context.Background(), cfg.LLM.GeminiAPIKey, cfg.LLM.GeminiModel)
}

// ProvideEmbedder selects the embedding provider.
func ProvideEmbedder(cfg *config.Config, client *chatgpt.Client, logger *slog.Logger) embedding.Provider {
	if cfg.Embedding.Provider == "chatgpt" && client != nil {
		return embedder.NewChatGPTEmbedder(client, cfg.Embedding.Model, logger)
	}
	return embedder.NewDeterministicEmbedder(cfg.Embedding.Dimensions)
}

// ProvideJudge selects the judgment provider.
func ProvideJudge(cfg *config.Config, client *chatgpt.Client, generator *gemini.Generator, logger *slog.Logger) evaluation.Judge {
	switch {
	case cfg.Judge.Provider == "chatgpt" && client != nil:
		return judge.NewChatGPTJudge(client, cfg.LLM.Model, cfg.LLM.Temperature, logger)
	case cfg.Judge.Provider == "gemini" && generator != nil:
		return judge.NewGeminiJudge(generator, logger)
	}
	return judge.KeywordJudge{}
}

// ProvideLLM returns the bank generation model, or nil when none is set up.
func ProvideLLM(cfg *config.Config, client *chatgpt.Client, generator *gemini.Generator) knowledge.LLM {
	switch {
	case client != nil:
		return llm.NewChatGPTLLM(client, cfg.LLM.Model, cfg.LLM.Temperature)
	case generator != nil:
		return llm.NewGeminiLLM(generator)
	}
	return nil
}

// ProvideGenerator returns nil when no LLM is configured.
func ProvideGenerator(cfg *config.Config, model knowledge.LLM, logger *slog.Logger) *knowledge.Generator {
	if model == nil {
		return nil
	}
	return knowledge.NewGenerator(knowledge.GeneratorConfig{
		MaxAttempts: cfg.Bank.GenerateAttempts,
		BaseBackoff: cfg.Bank.GenerateBackoff,
	}, model, logger)
}

func ProvideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{Secret: cfg.Auth.Secret, TokenTTL: cfg.Auth.TokenTTL}
}

func ProvideScoringConfig(cfg *config.Config) evaluation.ScoringConfig {
	return evaluation.ScoringConfig{
		SimilarityWeight: cfg.Scoring.SimilarityWeight,
		JudgmentWeight:   cfg.Scoring.JudgmentWeight,
		MaxAttempts:      cfg.Scoring.MaxAttempts,
		BaseBackoff:      cfg.Scoring.BaseBackoff,
		EmbedTimeout:     cfg.Scoring.EmbedTimeout,
		JudgeTimeout:     cfg.Scoring.JudgeTimeout,
	}
}

func ProvideEvaluationConfig(cfg *config.Config) evaluation.Config {
	return evaluation.Config{
		ClaimTTL:         cfg.Scoring.ClaimTTL,
		AggregateRetries: cfg.Scoring.AggregateRetries,
		Workers:          cfg.Scoring.Workers,
	}
}

func ProvideAggregator(cfg *config.Config, interviews evaluation.InterviewRepository, questions evaluation.QuestionRepository, answers evaluation.AnswerRepository, logger *slog.Logger) *evaluation.Aggregator {
	return evaluation.NewAggregator(interviews, questions, answers, cfg.Scoring.AggregateRetries, logger)
}

func ProvideDependencies(
	s Storage,
	assembler *evaluation.Assembler,
	scorer *evaluation.Scorer,
	aggregator *evaluation.Aggregator,
	claims evaluation.ClaimStore,
	jobs evaluation.JobQueue,
	archive evaluation.ReportArchive,
) evaluation.Dependencies {
	return evaluation.Dependencies{
		Interviews: s.Interviews,
		Questions:  s.Questions,
		Answers:    s.Answers,
		Directory:  s.Directory,
		Assembler:  assembler,
		Scorer:     scorer,
		Aggregator: aggregator,
		Claims:     claims,
		Queue:      jobs,
		Archive:    archive,
	}
}
