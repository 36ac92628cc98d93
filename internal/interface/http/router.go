package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	"github.com/yanqian/interview-evaluator/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, tokens auth.TokenService) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowOrigins),
		errorHandlingMiddleware(handler.logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	router.GET("/healthz", handler.Health)

	api := router.Group("/api/v1", authMiddleware(tokens))
	{
		bank := api.Group("/bank", requireRoles(auth.RoleManager, auth.RoleAdmin))
		bank.POST("/questions", handler.CreateBankQuestion)
		bank.GET("/questions/:id", handler.GetBankQuestion)
		bank.POST("/questions/:id/revise", handler.ReviseBankQuestion)
		bank.DELETE("/questions/:id", handler.DeleteBankQuestion)
		bank.POST("/questions/:id/feedback", handler.BankFeedback)
		bank.POST("/generate", handler.GenerateBank)
		bank.GET("/resolve", handler.ResolveBank)

		api.POST("/interviews", handler.CreateInterview)
		api.GET("/interviews/:id", handler.GetInterview)
		api.DELETE("/interviews/:id", handler.DeleteInterview)
		api.POST("/interviews/:id/schedule", handler.ScheduleInterview)
		api.POST("/interviews/:id/questions", handler.AddQuestions)
		api.POST("/interviews/:id/questions/from-bank", handler.AddQuestionsFromBank)
		api.GET("/interviews/:id/questions", handler.ListQuestions)
		api.POST("/interviews/:id/answers", handler.SubmitAnswer)
		api.POST("/interviews/:id/score", extendWriteDeadline(cfg.HTTP.ScoringWriteTimeout, handler.logger), handler.ScoreInterview)
		api.POST("/interviews/:id/aggregate", handler.AggregateInterview)
		api.GET("/interviews/:id/report", handler.Report)

		api.PUT("/questions/:id", handler.EditQuestion)
		api.DELETE("/questions/:id", handler.RemoveQuestion)
		api.POST("/questions/:id/approve", handler.ApproveQuestion)
		api.POST("/questions/:id/reembed", handler.ReembedQuestion)
		api.POST("/answers/:id/rescore", extendWriteDeadline(cfg.HTTP.ScoringWriteTimeout, handler.logger), handler.RescoreAnswer)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, retryConfig(cfg.HTTP.Retry), handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

// providerRoutes call the embedder, judge or LLM, which already retry with
// their own bounds, or run the aggregation CAS loop. A request level retry
// would multiply those attempts.
var providerRoutes = []string{
	"/api/v1/answers/*/rescore",
	"/api/v1/interviews/*/score",
	"/api/v1/interviews/*/aggregate",
	"/api/v1/interviews/*/questions",
	"/api/v1/interviews/*/questions/from-bank",
	"/api/v1/questions/*/reembed",
	"/api/v1/bank/questions",
	"/api/v1/bank/questions/*/revise",
	"/api/v1/bank/generate",
}

func retryConfig(cfg config.RetryConfig) config.RetryConfig {
	cfg.Exclude = append(append([]string(nil), cfg.Exclude...), providerRoutes...)
	return cfg
}

// extendWriteDeadline lets synchronous scoring outlive the server-wide write
// timeout.
func extendWriteDeadline(d time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d > 0 {
			rc := http.NewResponseController(c.Writer)
			if err := rc.SetWriteDeadline(time.Now().Add(d)); err != nil && !errors.Is(err, http.ErrNotSupported) {
				logger.Debug("write deadline not extended", "path", c.Request.URL.Path, "error", err)
			}
		}
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
