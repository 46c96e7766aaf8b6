package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusBadRequest, message)
}

// serverError logs err and answers 500 with a fixed message.
func serverError(c *fiber.Ctx, message string, err error) error {
	slog.Error(message, "error", err, "method", c.Method(), "path", c.Path(), "request_id", requestID(c))
	return errorJSON(c, fiber.StatusInternalServerError, message)
}

// storeError maps storage sentinels to statuses; anything else is a 500.
func storeError(c *fiber.Ctx, err error, notFound, failed string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, notFound)
	case errors.Is(err, storage.ErrDuplicate):
		return errorJSON(c, fiber.StatusConflict, "Resource already exists")
	case errors.Is(err, storage.ErrInvalidTransition):
		return errorJSON(c, fiber.StatusConflict, "Buddy request can no longer change to that status")
	}
	return serverError(c, failed, err)
}

// createError maps a failed insert: a uniqueness clash is a 409 with
// conflict, anything else a 500.
func createError(c *fiber.Ctx, err error, conflict, failed string) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return errorJSON(c, fiber.StatusConflict, conflict)
	}
	return serverError(c, failed, err)
}

func paramID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
