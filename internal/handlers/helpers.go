package handlers

import (
	"errors"

	"document-access-service/internal/models"

	"github.com/gofiber/fiber/v3"
)

// respondError maps the error taxonomy to HTTP statuses. Unknown errors
// become opaque 500s so storage details never reach clients.
func respondError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, models.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": models.ErrForbidden.Error(),
		})
	case errors.Is(err, models.ErrAdminExcluded),
		errors.Is(err, models.ErrDuplicateActiveGrant),
		errors.Is(err, models.ErrNoActiveGrant),
		errors.Is(err, models.ErrDuplicatePendingRequest),
		errors.Is(err, models.ErrRequestNotPending),
		errors.Is(err, models.ErrMissingTargetSubject),
		errors.Is(err, models.ErrManagerAlreadyAssigned),
		errors.Is(err, models.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
