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

type stubRequestService struct {
	createResult  *models.MessageRequest
	createErr     error
	respondResult *services.RequestOutcome
	respondErr    error
	cancelErr     error
	getResult     *models.MessageRequest
	getErr        error
	listResult    []models.MessageRequest
	listTotal     int
	listErr       error

	lastTraineeID   int64
	lastCoachID     int64
	lastActorID     int64
	lastRequestID   int64
	lastCreateInput services.CreateRequestInput
	lastAction      services.RequestAction
	lastFilter      repository.RequestListFilter
}

func (s *stubRequestService) CreateRequest(_ context.Context, traineeID int64, input services.CreateRequestInput) (*models.MessageRequest, error) {
	s.lastTraineeID = traineeID
	s.lastCreateInput = input
	return s.createResult, s.createErr
}

func (s *stubRequestService) Respond(_ context.Context, requestID, coachID int64, action services.RequestAction, _ *string) (*services.RequestOutcome, error) {
	s.lastRequestID = requestID
	s.lastCoachID = coachID
	s.lastAction = action
	return s.respondResult, s.respondErr
}

func (s *stubRequestService) Cancel(_ context.Context, requestID, traineeID int64) error {
	s.lastRequestID = requestID
	s.lastTraineeID = traineeID
	return s.cancelErr
}

func (s *stubRequestService) Get(_ context.Context, actorID, requestID int64) (*models.MessageRequest, error) {
	s.lastActorID = actorID
	s.lastRequestID = requestID
	return s.getResult, s.getErr
}

func (s *stubRequestService) List(_ context.Context, actorID int64, filter repository.RequestListFilter) ([]models.MessageRequest, int, error) {
	s.lastActorID = actorID
	s.lastFilter = filter
	return s.listResult, s.listTotal, s.listErr
}

func newRequestTestApp(service *stubRequestService, role models.Role, userID int64) (*fiber.App, *RequestHandler) {
	handler := NewRequestHandler(service)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	})
	return app, handler
}

func TestCreateRequestForwardsTraineePayload(t *testing.T) {
	urgency := "high"
	service := &stubRequestService{
		createResult: &models.MessageRequest{
			ID: 4, TraineeID: 42, CoachID: 7,
			Message: "Need a program review", Status: models.RequestPending,
			ExpiresAt: time.Now().UTC().Add(models.RequestTTL),
		},
	}
	app, handler := newRequestTestApp(service, models.RoleTrainee, 42)
	app.Post("/api/v1/message-requests", handler.CreateRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message-requests",
		strings.NewReader(`{"coach_id":7,"message":"Need a program review","urgency":"high"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastTraineeID != 42 || service.lastCreateInput.CoachID != 7 {
		t.Fatalf("unexpected forwarded pair: trainee=%d input=%+v", service.lastTraineeID, service.lastCreateInput)
	}
	if service.lastCreateInput.Urgency == nil || *service.lastCreateInput.Urgency != urgency {
		t.Fatalf("expected urgency forwarded, got %v", service.lastCreateInput.Urgency)
	}
}

func TestCreateRequestRejectsCoachCaller(t *testing.T) {
	service := &stubRequestService{}
	app, handler := newRequestTestApp(service, models.RoleCoach, 7)
	app.Post("/api/v1/message-requests", handler.CreateRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message-requests",
		strings.NewReader(`{"coach_id":8,"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestCreateRequestDuplicateMapsToConflict(t *testing.T) {
	service := &stubRequestService{createErr: services.ErrConflict}
	app, handler := newRequestTestApp(service, models.RoleTrainee, 42)
	app.Post("/api/v1/message-requests", handler.CreateRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message-requests",
		strings.NewReader(`{"coach_id":7,"message":"again"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestRespondRequestAcceptReturnsOutcome(t *testing.T) {
	service := &stubRequestService{
		respondResult: &services.RequestOutcome{
			Request:      &models.MessageRequest{ID: 4, TraineeID: 42, CoachID: 7, Status: models.RequestAccepted},
			Conversation: &models.Conversation{ID: 11, TraineeID: 42, CoachID: 7, Status: models.ConversationActive},
		},
	}
	app, handler := newRequestTestApp(service, models.RoleCoach, 7)
	app.Post("/api/v1/message-requests/:id/respond", handler.RespondRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message-requests/4/respond",
		strings.NewReader(`{"action":"accept","response":"Welcome aboard"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRequestID != 4 || service.lastCoachID != 7 || service.lastAction != services.RequestActionAccept {
		t.Fatalf("unexpected forwarded response: id=%d coach=%d action=%q", service.lastRequestID, service.lastCoachID, service.lastAction)
	}

	var body services.RequestOutcome
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Conversation == nil || body.Conversation.ID != 11 {
		t.Fatalf("expected conversation in accept outcome, got %+v", body.Conversation)
	}
}

func TestRespondRequestRejectsUnknownAction(t *testing.T) {
	service := &stubRequestService{}
	app, handler := newRequestTestApp(service, models.RoleCoach, 7)
	app.Post("/api/v1/message-requests/:id/respond", handler.RespondRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message-requests/4/respond",
		strings.NewReader(`{"action":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRespondRequestLostRaceMapsToConflict(t *testing.T) {
	service := &stubRequestService{respondErr: services.ErrConflict}
	app, handler := newRequestTestApp(service, models.RoleCoach, 7)
	app.Post("/api/v1/message-requests/:id/respond", handler.RespondRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message-requests/4/respond",
		strings.NewReader(`{"action":"reject"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListRequestsForwardsStatusFilter(t *testing.T) {
	service := &stubRequestService{
		listResult: []models.MessageRequest{{ID: 4, TraineeID: 42, CoachID: 7, Status: models.RequestPending}},
		listTotal:  1,
	}
	app, handler := newRequestTestApp(service, models.RoleCoach, 7)
	app.Get("/api/v1/message-requests", handler.ListRequests)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/message-requests?status=pending", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 7 || service.lastFilter.Status != models.RequestPending {
		t.Fatalf("unexpected forwarded filter: actor=%d %+v", service.lastActorID, service.lastFilter)
	}
}

func TestCancelRequestOnlyForTrainee(t *testing.T) {
	service := &stubRequestService{}
	app, handler := newRequestTestApp(service, models.RoleCoach, 7)
	app.Delete("/api/v1/message-requests/:id", handler.CancelRequest)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/message-requests/4", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
