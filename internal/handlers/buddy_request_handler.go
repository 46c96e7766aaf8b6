package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

type BuddyRequestHandler struct {
	store storage.Storage
}

func NewBuddyRequestHandler(store storage.Storage) *BuddyRequestHandler {
	return &BuddyRequestHandler{store: store}
}

func (h *BuddyRequestHandler) Create(c *fiber.Ctx) error {
	var req models.InsertBuddyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RequesterID <= 0 || req.ReceiverID <= 0 || req.EventID <= 0 {
		return badRequest(c, "requesterId, receiverId and eventId are required")
	}

	created, err := h.store.CreateBuddyRequest(c.UserContext(), req)
	if err != nil {
		return serverError(c, "Failed to create buddy request", err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ListForUser returns the requests the user has received.
func (h *BuddyRequestHandler) ListForUser(c *fiber.Ctx) error {
	userID, ok := paramID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	requests, err := h.store.GetBuddyRequests(c.UserContext(), userID)
	if err != nil {
		return serverError(c, "Failed to fetch buddy requests", err)
	}
	return c.JSON(requests)
}

// UpdateStatus rejects unknown status values before touching storage.
func (h *BuddyRequestHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid buddy request id")
	}
	var req dto.UpdateBuddyRequestStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	status := models.BuddyRequestStatus(req.Status)
	if !status.Valid() {
		return badRequest(c, "Invalid status value")
	}

	updated, err := h.store.UpdateBuddyRequestStatus(c.UserContext(), id, status)
	if err != nil {
		return storeError(c, err, "Buddy request not found", "Failed to update buddy request")
	}
	return c.JSON(updated)
}
