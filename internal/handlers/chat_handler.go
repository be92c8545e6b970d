package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/repository"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/services"
	chatws "github.com/abdallahabusidu/coach-app-be-sub001/internal/websocket"
	"github.com/abdallahabusidu/coach-app-be-sub001/pkg/utils"
)

type chatApplicationService interface {
	StartConversation(ctx context.Context, actorID int64, actorRole models.Role, traineeID, coachID int64) (*models.Conversation, error)
	ListConversations(ctx context.Context, actorID int64, filter repository.ConversationListFilter) ([]models.Conversation, int, error)
	ListMessages(ctx context.Context, actorID int64, conversationID int64, filter repository.MessageListFilter) ([]models.Message, int, error)
	SendMessage(ctx context.Context, actorID int64, input services.SendMessageInput) (*services.MessageDelivery, error)
	MarkConversationRead(ctx context.Context, actorID int64, conversationID int64) (*services.ReadReceipt, error)
	MarkMessagesRead(ctx context.Context, actorID int64, conversationID int64, messageIDs []int64) (*services.ReadReceipt, error)
	UpdateSettings(ctx context.Context, actorID int64, conversationID int64, update repository.ConversationSettingsUpdate) (*models.Conversation, error)
	GetStats(ctx context.Context, actorID int64) (*models.ConversationStats, error)
}

type ChatHandler struct {
	service   chatApplicationService
	gateway   *chatws.Gateway
	jwtSecret string
}

func NewChatHandler(service chatApplicationService, gateway *chatws.Gateway, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		service:   service,
		gateway:   gateway,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page, limit := parsePageQuery(c)
	filter := repository.ConversationListFilter{
		Status:     models.ConversationStatus(strings.TrimSpace(c.Query("status"))),
		UnreadOnly: c.QueryBool("unread"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}
	if archived := strings.TrimSpace(c.Query("archived")); archived != "" {
		value := archived == "true" || archived == "1"
		filter.Archived = &value
	}

	conversations, total, err := h.service.ListConversations(c.Context(), actorID, filter)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(paginatedResponse(conversations, page, limit, total))
}

type createConversationRequest struct {
	TraineeID int64 `json:"trainee_id"`
	CoachID   int64 `json:"coach_id"`
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	actorID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	// Non-admin callers are always their own end of the pair.
	switch role {
	case models.RoleTrainee:
		req.TraineeID = actorID
	case models.RoleCoach:
		req.CoachID = actorID
	}

	conversation, err := h.service.StartConversation(c.Context(), actorID, role, req.TraineeID, req.CoachID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetStats(c *fiber.Ctx) error {
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	stats, err := h.service.GetStats(c.Context(), actorID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	conversationID, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	page, limit := parsePageQuery(c)
	filter := repository.MessageListFilter{
		Type:       models.MessageType(strings.TrimSpace(c.Query("type"))),
		Search:     c.Query("search"),
		UnreadOnly: c.QueryBool("unread"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}

	messages, total, err := h.service.ListMessages(c.Context(), actorID, conversationID, filter)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(paginatedResponse(messages, page, limit, total))
}

type sendMessageRequest struct {
	Content  string             `json:"content"`
	Type     models.MessageType `json:"type"`
	Metadata json.RawMessage    `json:"metadata"`
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	conversationID, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	delivery, err := h.service.SendMessage(c.Context(), actorID, services.SendMessageInput{
		ConversationID: conversationID,
		Content:        req.Content,
		Type:           req.Type,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(delivery)
}

type markReadRequest struct {
	MessageIDs []int64 `json:"message_ids"`
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	conversationID, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req markReadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var receipt *services.ReadReceipt
	if len(req.MessageIDs) == 0 {
		receipt, err = h.service.MarkConversationRead(c.Context(), actorID, conversationID)
	} else {
		receipt, err = h.service.MarkMessagesRead(c.Context(), actorID, conversationID, req.MessageIDs)
	}
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"receipt": receipt})
}

type updateSettingsRequest struct {
	Status   *models.ConversationStatus `json:"status"`
	Archived *bool                      `json:"archived"`
}

func (h *ChatHandler) UpdateSettings(c *fiber.Ctx) error {
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	conversationID, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req updateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	conversation, err := h.service.UpdateSettings(c.Context(), actorID, conversationID, repository.ConversationSettingsUpdate{
		Status:   req.Status,
		Archived: req.Archived,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conversation})
}

// WebSocketAuth authenticates the upgrade request before the connection is
// handed to the gateway. A bad credential closes the exchange here; the
// gateway never sees the connection.
func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	role, ok := models.ParseRole(claims.Role)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	c.Locals("user_id", userID)
	c.Locals("role", role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(int64)
	role, _ := conn.Locals("role").(models.Role)
	if userID <= 0 || !role.Valid() {
		_ = conn.Close()
		return
	}
	h.gateway.HandleConnection(conn, userID, role)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}
	if tokenString == "" {
		return nil, errors.New("missing token")
	}
	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func parseIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
