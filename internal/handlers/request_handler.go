package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/repository"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/services"
)

type requestApplicationService interface {
	CreateRequest(ctx context.Context, traineeID int64, input services.CreateRequestInput) (*models.MessageRequest, error)
	Respond(ctx context.Context, requestID, coachID int64, action services.RequestAction, responseMessage *string) (*services.RequestOutcome, error)
	Cancel(ctx context.Context, requestID, traineeID int64) error
	Get(ctx context.Context, actorID, requestID int64) (*models.MessageRequest, error)
	List(ctx context.Context, actorID int64, filter repository.RequestListFilter) ([]models.MessageRequest, int, error)
}

type RequestHandler struct {
	service requestApplicationService
}

func NewRequestHandler(service requestApplicationService) *RequestHandler {
	return &RequestHandler{service: service}
}

type createRequestRequest struct {
	CoachID       int64   `json:"coach_id"`
	Message       string  `json:"message"`
	Reason        *string `json:"reason"`
	Urgency       *string `json:"urgency"`
	PreferredTime *string `json:"preferred_time"`
}

func (h *RequestHandler) CreateRequest(c *fiber.Ctx) error {
	actorID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleTrainee {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only trainees can send message requests"})
	}

	var req createRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	request, err := h.service.CreateRequest(c.Context(), actorID, services.CreateRequestInput{
		CoachID:       req.CoachID,
		Message:       req.Message,
		Reason:        req.Reason,
		Urgency:       req.Urgency,
		PreferredTime: req.PreferredTime,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"request": request})
}

func (h *RequestHandler) ListRequests(c *fiber.Ctx) error {
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page, limit := parsePageQuery(c)
	filter := repository.RequestListFilter{
		Status: models.RequestStatus(strings.TrimSpace(c.Query("status"))),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	requests, total, err := h.service.List(c.Context(), actorID, filter)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(paginatedResponse(requests, page, limit, total))
}

func (h *RequestHandler) GetRequest(c *fiber.Ctx) error {
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	requestID, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request id"})
	}

	request, err := h.service.Get(c.Context(), actorID, requestID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"request": request})
}

type respondRequestRequest struct {
	Action   string  `json:"action"`
	Response *string `json:"response"`
}

func (h *RequestHandler) RespondRequest(c *fiber.Ctx) error {
	actorID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleCoach {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only coaches can respond to message requests"})
	}
	requestID, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request id"})
	}

	var req respondRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	action, ok := services.ParseRequestAction(req.Action)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Action must be accept or reject"})
	}

	outcome, err := h.service.Respond(c.Context(), requestID, actorID, action, req.Response)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(outcome)
}

func (h *RequestHandler) CancelRequest(c *fiber.Ctx) error {
	actorID, role, ok := actorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleTrainee {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only trainees can cancel message requests"})
	}
	requestID, err := parseIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request id"})
	}

	if err := h.service.Cancel(c.Context(), requestID, actorID); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Request cancelled"})
}
