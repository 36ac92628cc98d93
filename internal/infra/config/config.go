package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Judge     JudgeConfig     `yaml:"judge"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Auth      AuthConfig      `yaml:"auth"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Valkey    ValkeyConfig    `yaml:"valkey"`
	Queue     QueueConfig     `yaml:"queue"`
	Reports   ReportsConfig   `yaml:"reports"`
	Bank      BankConfig      `yaml:"bank"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	// ScoringWriteTimeout replaces WriteTimeout on the synchronous scoring
	// routes. It must cover one answer's worst case scoring time.
	ScoringWriteTimeout time.Duration   `yaml:"scoringWriteTimeout"`
	AllowOrigins        []string        `yaml:"allowOrigins"`
	RateLimit           RateLimitConfig `yaml:"rateLimit"`
	Retry               RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains ChatGPT/OpenAI and Gemini settings.
type LLMConfig struct {
	APIKey       string  `yaml:"apiKey"`
	BaseURL      string  `yaml:"baseUrl"`
	Model        string  `yaml:"model"`
	Temperature  float32 `yaml:"temperature"`
	GeminiAPIKey string  `yaml:"geminiApiKey"`
	GeminiModel  string  `yaml:"geminiModel"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	// Provider is chatgpt or deterministic.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// JudgeConfig selects the judgment provider.
type JudgeConfig struct {
	// Provider is chatgpt, gemini or keyword.
	Provider string `yaml:"provider"`
}

// ScoringConfig tunes the answer scorer and the scoring workers.
type ScoringConfig struct {
	SimilarityWeight float64       `yaml:"similarityWeight"`
	JudgmentWeight   float64       `yaml:"judgmentWeight"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	BaseBackoff      time.Duration `yaml:"baseBackoff"`
	EmbedTimeout     time.Duration `yaml:"embedTimeout"`
	JudgeTimeout     time.Duration `yaml:"judgeTimeout"`
	ClaimTTL         time.Duration `yaml:"claimTtl"`
	AggregateRetries int           `yaml:"aggregateRetries"`
	Workers          int           `yaml:"workers"`
}

// Budget is the longest one answer can take to score: every embed and
// judge attempt timing out, plus the backoff between attempts.
func (c ScoringConfig) Budget() time.Duration {
	var total time.Duration
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		total += c.EmbedTimeout + c.JudgeTimeout
		if attempt > 1 {
			total += 2 * c.BaseBackoff * time.Duration(1<<(attempt-2))
		}
	}
	return total
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTtl"`
}

// PostgresConfig contains DSN and pooling settings. An empty DSN selects
// the in-memory store.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig contains connection information for claims and the queue.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// QueueConfig selects where scoring jobs run.
type QueueConfig struct {
	// Kind is immediate, valkey or rabbitmq.
	Kind        string `yaml:"kind"`
	ValkeyKey   string `yaml:"valkeyKey"`
	RabbitURL   string `yaml:"rabbitUrl"`
	RabbitQueue string `yaml:"rabbitQueue"`
	MaxConsumer int    `yaml:"maxConsumer"`
}

// ReportsConfig points at the S3-compatible report archive.
type ReportsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// BankConfig controls question bank generation.
type BankConfig struct {
	GenerateAttempts int           `yaml:"generateAttempts"`
	GenerateBackoff  time.Duration `yaml:"generateBackoff"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	setBool(&cfg.HTTP.Retry.Enabled, "HTTP_RETRY_ENABLED")
	setInt(&cfg.HTTP.Retry.MaxAttempts, "HTTP_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.HTTP.Retry.BaseBackoff, "HTTP_RETRY_BASE_BACKOFF")
	setDuration(&cfg.HTTP.ScoringWriteTimeout, "HTTP_SCORING_WRITE_TIMEOUT")
	if v := os.Getenv("HTTP_ALLOW_ORIGINS"); v != "" {
		cfg.HTTP.AllowOrigins = splitList(v)
	}

	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	setString(&cfg.LLM.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.LLM.GeminiModel, "GEMINI_MODEL")

	setString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setInt(&cfg.Embedding.Dimensions, "EMBEDDING_DIMENSIONS")
	setString(&cfg.Judge.Provider, "JUDGE_PROVIDER")

	setFloat(&cfg.Scoring.SimilarityWeight, "SCORING_SIMILARITY_WEIGHT")
	setFloat(&cfg.Scoring.JudgmentWeight, "SCORING_JUDGMENT_WEIGHT")
	setInt(&cfg.Scoring.MaxAttempts, "SCORING_MAX_ATTEMPTS")
	setDuration(&cfg.Scoring.BaseBackoff, "SCORING_BASE_BACKOFF")
	setDuration(&cfg.Scoring.EmbedTimeout, "SCORING_EMBED_TIMEOUT")
	setDuration(&cfg.Scoring.JudgeTimeout, "SCORING_JUDGE_TIMEOUT")
	setDuration(&cfg.Scoring.ClaimTTL, "SCORING_CLAIM_TTL")
	setInt(&cfg.Scoring.Workers, "SCORING_WORKERS")

	setString(&cfg.Auth.Secret, "AUTH_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "AUTH_TOKEN_TTL")

	setString(&cfg.Postgres.DSN, "POSTGRES_DSN")
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}

	setBool(&cfg.Valkey.Enabled, "VALKEY_ENABLED")
	setString(&cfg.Valkey.Addr, "VALKEY_ADDR")

	setString(&cfg.Queue.Kind, "QUEUE_KIND")
	setString(&cfg.Queue.RabbitURL, "RABBITMQ_URL")
	setString(&cfg.Queue.RabbitQueue, "RABBITMQ_QUEUE")
	setInt(&cfg.Queue.MaxConsumer, "QUEUE_MAX_CONSUMER")

	setBool(&cfg.Reports.Enabled, "REPORTS_ENABLED")
	setString(&cfg.Reports.Endpoint, "REPORTS_ENDPOINT")
	setString(&cfg.Reports.AccessKey, "REPORTS_ACCESS_KEY")
	setString(&cfg.Reports.SecretKey, "REPORTS_SECRET_KEY")
	setString(&cfg.Reports.Bucket, "REPORTS_BUCKET")
	setString(&cfg.Reports.Region, "REPORTS_REGION")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:             ":8080",
			ReadTimeout:         5 * time.Second,
			WriteTimeout:        30 * time.Second,
			ScoringWriteTimeout: 5 * time.Minute,
			AllowOrigins:        []string{"http://localhost:5173"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/bank/generate",
				},
			},
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			GeminiModel: "gemini-2.5-flash",
		},
		Embedding: EmbeddingConfig{
			Provider:   "deterministic",
			Model:      "text-embedding-3-small",
			Dimensions: 64,
		},
		Judge: JudgeConfig{Provider: "keyword"},
		Scoring: ScoringConfig{
			SimilarityWeight: 0.4,
			JudgmentWeight:   0.6,
			MaxAttempts:      3,
			BaseBackoff:      200 * time.Millisecond,
			EmbedTimeout:     10 * time.Second,
			JudgeTimeout:     20 * time.Second,
			ClaimTTL:         2 * time.Minute,
			AggregateRetries: 5,
			Workers:          4,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
		},
		Valkey: ValkeyConfig{
			Prefix: "evaluator",
		},
		Queue: QueueConfig{
			Kind:        "immediate",
			ValkeyKey:   "evaluator:jobs",
			RabbitQueue: "evaluator.scoring",
			MaxConsumer: 4,
		},
		Reports: ReportsConfig{
			Bucket: "interview-reports",
			Region: "auto",
		},
		Bank: BankConfig{
			GenerateAttempts: 3,
			GenerateBackoff:  time.Second,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	switch c.Embedding.Provider {
	case "deterministic":
		if c.Embedding.Dimensions <= 0 {
			return errors.New("embedding.dimensions must be positive")
		}
	case "chatgpt":
		if strings.TrimSpace(c.Embedding.Model) == "" {
			return errors.New("embedding.model cannot be empty")
		}
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return errors.New("llm.apiKey is required for chatgpt embeddings")
		}
	default:
		return fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider)
	}
	switch c.Judge.Provider {
	case "keyword":
	case "chatgpt":
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return errors.New("llm.apiKey is required for the chatgpt judge")
		}
	case "gemini":
		if strings.TrimSpace(c.LLM.GeminiAPIKey) == "" {
			return errors.New("llm.geminiApiKey is required for the gemini judge")
		}
	default:
		return fmt.Errorf("judge.provider %q is not supported", c.Judge.Provider)
	}
	if c.Scoring.SimilarityWeight < 0 || c.Scoring.JudgmentWeight < 0 {
		return errors.New("scoring weights cannot be negative")
	}
	if c.Scoring.SimilarityWeight+c.Scoring.JudgmentWeight <= 0 {
		return errors.New("scoring weights must not both be zero")
	}
	if c.Scoring.MaxAttempts <= 0 {
		return errors.New("scoring.maxAttempts must be positive")
	}
	if c.Scoring.ClaimTTL <= 0 {
		return errors.New("scoring.claimTtl must be positive")
	}
	if budget := c.Scoring.Budget(); c.HTTP.ScoringWriteTimeout < budget {
		return fmt.Errorf("http.scoringWriteTimeout must be at least %s to cover scoring retries", budget)
	}
	if c.Scoring.Workers <= 0 {
		return errors.New("scoring.workers must be positive")
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret cannot be empty")
	}
	if c.Valkey.Enabled && strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty when valkey is enabled")
	}
	switch c.Queue.Kind {
	case "immediate":
	case "valkey":
		if !c.Valkey.Enabled {
			return errors.New("queue.kind valkey requires valkey.enabled")
		}
	case "rabbitmq":
		if strings.TrimSpace(c.Queue.RabbitURL) == "" {
			return errors.New("queue.rabbitUrl cannot be empty for rabbitmq")
		}
	default:
		return fmt.Errorf("queue.kind %q is not supported", c.Queue.Kind)
	}
	if c.Reports.Enabled {
		if strings.TrimSpace(c.Reports.Endpoint) == "" || strings.TrimSpace(c.Reports.Bucket) == "" {
			return errors.New("reports.endpoint and reports.bucket are required when reports are enabled")
		}
	}
	if c.Bank.GenerateAttempts <= 0 {
		return errors.New("bank.generateAttempts must be positive")
	}
	return nil
}
