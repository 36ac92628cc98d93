package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/infra/config"
	"github.com/yanqian/interview-evaluator/internal/infra/queue"
)

// App encapsulates the HTTP server and scoring worker lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	jobs   queue.HandlerQueue
	svc    *evaluation.Service
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, jobs queue.HandlerQueue, svc *evaluation.Service) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, jobs: jobs, svc: svc}
}

// Run starts the scoring worker and the HTTP server and blocks until
// shutdown. Queued jobs are drained after the server stops.
func (a *App) Run(ctx context.Context) error {
	a.jobs.SetHandler(a.svc.HandleJob)
	defer func() {
		if err := a.jobs.Close(); err != nil {
			a.logger.Warn("job queue close failed", "error", err)
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
