package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/config"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/handlers"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/middleware"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/repository"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/services"
	chatws "github.com/abdallahabusidu/coach-app-be-sub001/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, redisClient *redis.Client) {
	userRepo := repository.NewUserRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	requestRepo := repository.NewMessageRequestRepository(db)

	permissionService := services.NewPermissionService(subscriptionRepo)
	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo, permissionService)
	requestService := services.NewRequestService(db, requestRepo, conversationRepo, messageRepo, userRepo, permissionService)

	var presence chatws.PresenceRegistry
	if redisClient != nil {
		presence = chatws.NewRedisPresence(redisClient)
	} else {
		presence = chatws.NewMemoryPresence()
	}

	hub := chatws.NewHub()
	go hub.Run()
	gateway := chatws.NewGateway(hub, presence, chatService, requestService)

	chatHandler := handlers.NewChatHandler(chatService, gateway, cfg.JWTSecret)
	requestHandler := handlers.NewRequestHandler(requestService)

	api := app.Group("/api")
	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/stats", chatHandler.GetStats)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)
	conversations.Patch("/:id/settings", chatHandler.UpdateSettings)

	requests := authProtected.Group("/message-requests")
	requests.Post("", requestHandler.CreateRequest)
	requests.Get("", requestHandler.ListRequests)
	requests.Get("/:id", requestHandler.GetRequest)
	requests.Post("/:id/respond", requestHandler.RespondRequest)
	requests.Delete("/:id", requestHandler.CancelRequest)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}
