package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/config"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/database"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/routes"
	"github.com/abdallahabusidu/coach-app-be-sub001/pkg/logger"
)

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

	// Presence falls back to the in-memory registry when Redis is not
	// configured; fine for a single instance.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisClient.Close()
	}

	app := fiber.New()

	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, database.DB, redisClient)

	logger.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}
