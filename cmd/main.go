package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/dkotelnikov/authd/internal/api"
	"github.com/dkotelnikov/authd/internal/controller"
	"github.com/dkotelnikov/authd/internal/migrations"
	"github.com/dkotelnikov/authd/internal/service"
	"github.com/dkotelnikov/authd/internal/storage/postgres"
	"github.com/dkotelnikov/authd/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	if err := migrations.RunMigrations(db, logger); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	passwordVerifier, err := service.NewBcryptVerifier()
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	storage := postgres.NewStorage(db)
	tokenService := service.NewTokenService(util.NewTokenConfig())
	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())
	authService := service.NewAuthService(tokenService, passwordVerifier, storage, webhookService, logger)
	limiter := service.NewRateLimiterService(redisClient, logger, util.NewRateLimiterConfig())

	controller := controller.NewController(logger, authService)

	apiServer := api.NewAPI(controller, limiter, util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
