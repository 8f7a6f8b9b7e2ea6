//go:build wireinject
// +build wireinject

package main

import (
	"database/sql"
	"net/http"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	"github.com/courseflow/courseflow/internal/config"
	"github.com/courseflow/courseflow/internal/handler"
	"github.com/courseflow/courseflow/internal/pkg/logger"
	"github.com/courseflow/courseflow/internal/repository"
	"github.com/courseflow/courseflow/internal/server"
	"github.com/courseflow/courseflow/internal/service"
)

// Application bundles everything main needs to run and tear down the process.
type Application struct {
	Config  *config.Config
	DB      *sql.DB
	Server  *http.Server
	Workers *service.WorkerManager
	Cleanup func()
}

func initializeApplication() (*Application, error) {
	wire.Build(
		config.ProviderSet,
		repository.ProviderSet,
		service.ProviderSet,
		handler.ProviderSet,
		server.ProviderSet,
		provideCleanup,
		wire.Struct(new(Application), "Config", "DB", "Server", "Workers", "Cleanup"),
	)
	return nil, nil
}

func provideCleanup(sqlDB *sql.DB, rdb *redis.Client) func() {
	return func() {
		if err := rdb.Close(); err != nil {
			logger.S().Warnf("close redis client: %v", err)
		}
		if err := sqlDB.Close(); err != nil {
			logger.S().Warnf("close database: %v", err)
		}
		logger.Sync()
	}
}
