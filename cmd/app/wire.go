//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/interview-evaluator/internal/bootstrap"
	"github.com/yanqian/interview-evaluator/internal/infra/config"
	httpiface "github.com/yanqian/interview-evaluator/internal/interface/http"
	"github.com/yanqian/interview-evaluator/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		bootstrap.ProviderSet,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
