//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/interview-evaluator/internal/bootstrap"
	"github.com/yanqian/interview-evaluator/internal/infra/config"
	"github.com/yanqian/interview-evaluator/pkg/logger"
)

func initializeToolkit() (*toolkit, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		bootstrap.ProviderSet,
		newToolkit,
	)
	return nil, nil, nil
}
