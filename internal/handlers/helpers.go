package handlers

import (
	"errors"
	"strings"

	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// parseOptionalUUID treats an absent or blank value as "root level".
func parseOptionalUUID(value string) (*uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// serviceError maps the service error taxonomy onto the response envelope.
// Storage failures are logged with full detail and surfaced as a stable
// generic message.
func serviceError(c *fiber.Ctx, err error, action string) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, "item not found")
	case errors.Is(err, services.ErrCycle):
		return utils.Error(c, fiber.StatusBadRequest, "cannot move a folder into itself or its descendants")
	case errors.Is(err, services.ErrInvalidInput):
		return utils.Error(c, fiber.StatusBadRequest, "invalid input")
	default:
		logger.Error(action, err, map[string]interface{}{
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}
}
