package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/services"
)

// actorFromContext pulls the authenticated identity the middleware stored.
func actorFromContext(c *fiber.Ctx) (int64, models.Role, bool) {
	userID, ok := c.Locals("user_id").(int64)
	if !ok || userID <= 0 {
		return 0, "", false
	}
	role, ok := c.Locals("role").(models.Role)
	if !ok || !role.Valid() {
		return 0, "", false
	}
	return userID, role, true
}

func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Conflict"})
	case errors.Is(err, services.ErrConversationInactive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Conversation is not active"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process request"})
	}
}
