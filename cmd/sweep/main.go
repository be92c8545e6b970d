package main

import (
	"context"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/config"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/database"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/repository"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/services"
	"github.com/abdallahabusidu/coach-app-be-sub001/pkg/logger"
)

// Expires overdue pending message requests. Run it from cron; the sweep is
// idempotent, so overlapping runs are harmless.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("production")
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.AppEnv)

	if cfg.DBUrl == "" {
		logger.Fatal().Msg("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.CloseDB()

	db := database.DB
	requestService := services.NewRequestService(
		db,
		repository.NewMessageRequestRepository(db),
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		repository.NewUserRepository(db),
		services.NewPermissionService(repository.NewSubscriptionRepository(db)),
	)

	expired, err := requestService.SweepExpiredRequests(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("Sweep failed")
	}
	logger.Info().Int64("expired", expired).Msg("Expired overdue message requests")
}
