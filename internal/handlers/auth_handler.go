package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

type AuthHandler struct {
	profiles *services.ProfileService
}

func NewAuthHandler(profiles *services.ProfileService) *AuthHandler {
	return &AuthHandler{profiles: profiles}
}

// Sync mirrors the caller's provider profile on first sign-in. A verified
// token identity wins over the request body; body fields only fill the
// profile details the token does not carry.
func (h *AuthHandler) Sync(c *fiber.Ctx) error {
	var req dto.SyncProfileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	id := services.Identity{
		UID:         req.UID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Username:    req.Username,
		PhotoURL:    req.PhotoURL,
		Location:    req.Location,
	}
	if verified, ok := middleware.CurrentIdentity(c); ok {
		id.UID = verified.UID
		if verified.Email != "" {
			id.Email = verified.Email
		}
		if verified.DisplayName != "" {
			id.DisplayName = verified.DisplayName
		}
		if verified.PhotoURL != "" {
			id.PhotoURL = verified.PhotoURL
		}
	}

	user, created, err := h.profiles.Sync(c.UserContext(), id)
	switch {
	case errors.Is(err, services.ErrIncompleteIdentity):
		return badRequest(c, err.Error())
	case errors.Is(err, storage.ErrDuplicate):
		return errorJSON(c, fiber.StatusConflict, "A profile with that email already exists")
	case err != nil:
		return serverError(c, "Failed to sync profile", err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.SyncProfileResponse{User: user, Created: created})
}
