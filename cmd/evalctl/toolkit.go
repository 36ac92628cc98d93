package main

import (
	"log/slog"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	"github.com/yanqian/interview-evaluator/internal/infra/queue"
)

// toolkit is the service graph the commands operate on.
type toolkit struct {
	evaluation *evaluation.Service
	bank       *knowledge.Service
	tokens     auth.TokenService
	jobs       queue.HandlerQueue
	logger     *slog.Logger
}

func newToolkit(evaluationSvc *evaluation.Service, bankSvc *knowledge.Service, tokens auth.TokenService, jobs queue.HandlerQueue, logger *slog.Logger) *toolkit {
	// Jobs queued while a command runs are handled in this process.
	jobs.SetHandler(evaluationSvc.HandleJob)
	return &toolkit{
		evaluation: evaluationSvc,
		bank:       bankSvc,
		tokens:     tokens,
		jobs:       jobs,
		logger:     logger.With("component", "evalctl"),
	}
}
