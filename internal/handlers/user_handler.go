package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

type UserHandler struct {
	store storage.Storage
}

func NewUserHandler(store storage.Storage) *UserHandler {
	return &UserHandler{store: store}
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	user, err := h.store.GetUser(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "User not found", "Failed to fetch user")
	}
	return c.JSON(user)
}

func (h *UserHandler) GetByUsername(c *fiber.Ctx) error {
	user, err := h.store.GetUserByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return storeError(c, err, "User not found", "Failed to fetch user")
	}
	return c.JSON(user)
}

func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req models.InsertUser
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" {
		return badRequest(c, "username and email are required")
	}

	user, err := h.store.CreateUser(c.UserContext(), req)
	if err != nil {
		return createError(c, err, "Username or email already taken", "Failed to create user")
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	var patch models.UserPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if (patch.Username != nil && strings.TrimSpace(*patch.Username) == "") ||
		(patch.Email != nil && strings.TrimSpace(*patch.Email) == "") {
		return badRequest(c, "username and email cannot be empty")
	}

	user, err := h.store.UpdateUser(c.UserContext(), id, patch)
	if err != nil {
		return storeError(c, err, "User not found", "Failed to update user")
	}
	return c.JSON(user)
}
