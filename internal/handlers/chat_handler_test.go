package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/repository"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/services"
)

type stubChatService struct {
	conversationsResult []models.Conversation
	conversationsTotal  int
	conversationsErr    error
	startResult         *models.Conversation
	startErr            error
	messagesResult      []models.Message
	messagesTotal       int
	messagesErr         error
	sendResult          *services.MessageDelivery
	sendErr             error
	receiptResult       *services.ReadReceipt
	receiptErr          error
	settingsResult      *models.Conversation
	settingsErr         error
	statsResult         *models.ConversationStats
	statsErr            error

	lastActorID        int64
	lastRole           models.Role
	lastTraineeID      int64
	lastCoachID        int64
	lastConversationID int64
	lastConvFilter     repository.ConversationListFilter
	lastMsgFilter      repository.MessageListFilter
	lastSendInput      services.SendMessageInput
	lastMessageIDs     []int64
	lastSettingsUpdate repository.ConversationSettingsUpdate
	markedWhole        bool
}

func (s *stubChatService) StartConversation(_ context.Context, actorID int64, actorRole models.Role, traineeID, coachID int64) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastRole = actorRole
	s.lastTraineeID = traineeID
	s.lastCoachID = coachID
	return s.startResult, s.startErr
}

func (s *stubChatService) ListConversations(_ context.Context, actorID int64, filter repository.ConversationListFilter) ([]models.Conversation, int, error) {
	s.lastActorID = actorID
	s.lastConvFilter = filter
	return s.conversationsResult, s.conversationsTotal, s.conversationsErr
}

func (s *stubChatService) ListMessages(_ context.Context, actorID int64, conversationID int64, filter repository.MessageListFilter) ([]models.Message, int, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastMsgFilter = filter
	return s.messagesResult, s.messagesTotal, s.messagesErr
}

func (s *stubChatService) SendMessage(_ context.Context, actorID int64, input services.SendMessageInput) (*services.MessageDelivery, error) {
	s.lastActorID = actorID
	s.lastSendInput = input
	return s.sendResult, s.sendErr
}

func (s *stubChatService) MarkConversationRead(_ context.Context, actorID int64, conversationID int64) (*services.ReadReceipt, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.markedWhole = true
	return s.receiptResult, s.receiptErr
}

func (s *stubChatService) MarkMessagesRead(_ context.Context, actorID int64, conversationID int64, messageIDs []int64) (*services.ReadReceipt, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastMessageIDs = messageIDs
	return s.receiptResult, s.receiptErr
}

func (s *stubChatService) UpdateSettings(_ context.Context, actorID int64, conversationID int64, update repository.ConversationSettingsUpdate) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastSettingsUpdate = update
	return s.settingsResult, s.settingsErr
}

func (s *stubChatService) GetStats(_ context.Context, actorID int64) (*models.ConversationStats, error) {
	s.lastActorID = actorID
	return s.statsResult, s.statsErr
}

func newChatTestApp(service *stubChatService, role models.Role, userID int64) (*fiber.App, *ChatHandler) {
	handler := NewChatHandler(service, nil, "secret")
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	})
	return app, handler
}

func TestListConversationsReturnsEnvelope(t *testing.T) {
	last := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	preview := "See you tomorrow"
	service := &stubChatService{
		conversationsResult: []models.Conversation{
			{ID: 17, TraineeID: 42, CoachID: 8, Status: models.ConversationActive, LastMessagePreview: &preview, LastMessageAt: &last, TraineeUnread: 2},
		},
		conversationsTotal: 41,
	}
	app, handler := newChatTestApp(service, models.RoleTrainee, 42)
	app.Get("/api/v1/conversations", handler.ListConversations)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations?page=2&limit=20&unread=true&status=active", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("expected actor 42, got %d", service.lastActorID)
	}
	filter := service.lastConvFilter
	if filter.Status != models.ConversationActive || !filter.UnreadOnly || filter.Limit != 20 || filter.Offset != 20 {
		t.Fatalf("unexpected forwarded filter: %+v", filter)
	}

	var body struct {
		Items       []models.Conversation `json:"items"`
		Total       int                   `json:"total"`
		Page        int                   `json:"page"`
		Limit       int                   `json:"limit"`
		HasNext     bool                  `json:"hasNext"`
		HasPrevious bool                  `json:"hasPrevious"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Items) != 1 || body.Total != 41 || body.Page != 2 {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if !body.HasNext || !body.HasPrevious {
		t.Fatalf("expected both pagination flags set: %+v", body)
	}
}

func TestCreateConversationPinsActorToOwnSide(t *testing.T) {
	service := &stubChatService{
		startResult: &models.Conversation{ID: 9, TraineeID: 42, CoachID: 7, Status: models.ConversationActive},
	}
	app, handler := newChatTestApp(service, models.RoleTrainee, 42)
	app.Post("/api/v1/conversations", handler.CreateConversation)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations",
		strings.NewReader(`{"trainee_id":999,"coach_id":7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastTraineeID != 42 {
		t.Fatalf("trainee caller must be pinned to own id, got %d", service.lastTraineeID)
	}
	if service.lastCoachID != 7 {
		t.Fatalf("expected coach id 7, got %d", service.lastCoachID)
	}
}

func TestSendMessageMapsInactiveConversationToConflict(t *testing.T) {
	service := &stubChatService{sendErr: services.ErrConversationInactive}
	app, handler := newChatTestApp(service, models.RoleCoach, 7)
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/11/messages",
		strings.NewReader(`{"content":"hello","type":"text"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if service.lastSendInput.ConversationID != 11 || service.lastSendInput.Content != "hello" {
		t.Fatalf("unexpected forwarded input: %+v", service.lastSendInput)
	}
}

func TestGetMessagesForbiddenForOutsider(t *testing.T) {
	service := &stubChatService{messagesErr: services.ErrForbidden}
	app, handler := newChatTestApp(service, models.RoleCoach, 7)
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/99/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestMarkReadDistinguishesWholeAndPartial(t *testing.T) {
	service := &stubChatService{
		receiptResult: &services.ReadReceipt{ConversationID: 11, ReaderID: 7, MessageIDs: []int64{3, 4}},
	}
	app, handler := newChatTestApp(service, models.RoleCoach, 7)
	app.Post("/api/v1/conversations/:id/read", handler.MarkRead)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/11/read",
		strings.NewReader(`{"message_ids":[3,4]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.markedWhole || len(service.lastMessageIDs) != 2 {
		t.Fatalf("expected partial mark-read with 2 ids, got whole=%v ids=%v", service.markedWhole, service.lastMessageIDs)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/conversations/11/read", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !service.markedWhole {
		t.Fatal("empty message_ids should mark the whole conversation")
	}
}

func TestUpdateSettingsForwardsPartialUpdate(t *testing.T) {
	archived := true
	service := &stubChatService{
		settingsResult: &models.Conversation{ID: 11, TraineeID: 42, CoachID: 7, CoachArchived: true},
	}
	app, handler := newChatTestApp(service, models.RoleCoach, 7)
	app.Patch("/api/v1/conversations/:id/settings", handler.UpdateSettings)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/conversations/11/settings",
		strings.NewReader(`{"archived":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	update := service.lastSettingsUpdate
	if update.Status != nil {
		t.Fatalf("status was not in the payload, got %v", *update.Status)
	}
	if update.Archived == nil || *update.Archived != archived {
		t.Fatalf("expected archived=true forwarded, got %v", update.Archived)
	}
}

func TestGetStatsReturnsStats(t *testing.T) {
	service := &stubChatService{
		statsResult: &models.ConversationStats{Total: 5, Active: 3, UnreadMessages: 9, UnreadConversations: 2},
	}
	app, handler := newChatTestApp(service, models.RoleTrainee, 42)
	app.Get("/api/v1/conversations/stats", handler.GetStats)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/stats", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Stats models.ConversationStats `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Stats.UnreadMessages != 9 {
		t.Fatalf("unexpected stats: %+v", body.Stats)
	}
}
