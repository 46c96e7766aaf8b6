package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

type MessageHandler struct {
	store storage.Storage
}

func NewMessageHandler(store storage.Storage) *MessageHandler {
	return &MessageHandler{store: store}
}

func (h *MessageHandler) Create(c *fiber.Ctx) error {
	var req models.InsertMessage
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.SenderID <= 0 || req.ReceiverID <= 0 || strings.TrimSpace(req.Content) == "" {
		return badRequest(c, "senderId, receiverId and content are required")
	}

	msg, err := h.store.CreateMessage(c.UserContext(), req)
	if err != nil {
		return serverError(c, "Failed to create message", err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *MessageHandler) Conversation(c *fiber.Ctx) error {
	a, ok := paramID(c, "user1Id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	b, ok := paramID(c, "user2Id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	msgs, err := h.store.GetMessages(c.UserContext(), a, b)
	if err != nil {
		return serverError(c, "Failed to fetch messages", err)
	}
	return c.JSON(msgs)
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	var req dto.MarkMessagesReadRequest
	if err := c.BodyParser(&req); err != nil || req.MessageIDs == nil {
		return badRequest(c, "Message IDs must be an array")
	}
	if err := h.store.MarkMessagesAsRead(c.UserContext(), *req.MessageIDs); err != nil {
		return serverError(c, "Failed to mark messages as read", err)
	}
	return c.JSON(dto.MessageResponse{Message: "Messages marked as read"})
}
