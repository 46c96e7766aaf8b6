package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

type HealthHandler struct {
	store   storage.Storage
	backend string
}

func NewHealthHandler(store storage.Storage, backend string) *HealthHandler {
	return &HealthHandler{store: store, backend: backend}
}

// Check is a static liveness probe.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{Status: "healthy"})
}

// Ready pings the active storage backend.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	resp := dto.ReadinessResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Storage:   "ok",
		Backend:   h.backend,
	}
	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Storage = "unreachable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
