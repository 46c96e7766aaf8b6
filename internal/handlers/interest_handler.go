package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

type InterestHandler struct {
	store storage.Storage
}

func NewInterestHandler(store storage.Storage) *InterestHandler {
	return &InterestHandler{store: store}
}

func (h *InterestHandler) List(c *fiber.Ctx) error {
	interests, err := h.store.GetInterests(c.UserContext())
	if err != nil {
		return serverError(c, "Failed to fetch interests", err)
	}
	return c.JSON(interests)
}

func (h *InterestHandler) Create(c *fiber.Ctx) error {
	var req models.InsertInterest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return badRequest(c, "name is required")
	}
	interest, err := h.store.CreateInterest(c.UserContext(), req)
	if err != nil {
		return createError(c, err, "Interest already exists", "Failed to create interest")
	}
	return c.Status(fiber.StatusCreated).JSON(interest)
}

func (h *InterestHandler) ListForUser(c *fiber.Ctx) error {
	userID, ok := paramID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	interests, err := h.store.GetUserInterests(c.UserContext(), userID)
	if err != nil {
		return serverError(c, "Failed to fetch user interests", err)
	}
	return c.JSON(interests)
}

func (h *InterestHandler) AddForUser(c *fiber.Ctx) error {
	var req dto.UserInterestRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID <= 0 || req.InterestID <= 0 {
		return badRequest(c, "userId and interestId are required")
	}
	if err := h.store.AddUserInterest(c.UserContext(), req.UserID, req.InterestID); err != nil {
		return serverError(c, "Failed to add user interest", err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MessageResponse{Message: "User interest added successfully"})
}

func (h *InterestHandler) RemoveForUser(c *fiber.Ctx) error {
	userID, ok := paramID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	interestID, ok := paramID(c, "interestId")
	if !ok {
		return badRequest(c, "Invalid interest id")
	}
	if err := h.store.RemoveUserInterest(c.UserContext(), userID, interestID); err != nil {
		return serverError(c, "Failed to remove user interest", err)
	}
	return c.JSON(dto.MessageResponse{Message: "User interest removed successfully"})
}
