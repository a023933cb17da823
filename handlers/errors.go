package handlers

import (
	"errors"

	"habit-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps service errors onto HTTP statuses. Expected outcomes map to
// 4xx; InvalidQuestConfig is a data integrity bug and stays a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrQuestNotFound),
		errors.Is(err, services.ErrSkillNotFound),
		errors.Is(err, services.ErrProfileNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyCompleted):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrManualCompletionNotAllowed),
		errors.Is(err, services.ErrQuestLocked):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidExternalActivity),
		errors.Is(err, services.ErrNegativeXP):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error, msg string) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
