package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

// EventFeed is the open-data source behind ?source=chicago.
type EventFeed interface {
	FetchEvents(ctx context.Context, category string, limit int) []models.InsertEvent
	FetchFeaturedEvents(ctx context.Context, limit int) []models.InsertEvent
	FindEventByTitle(ctx context.Context, title string) (*models.InsertEvent, error)
}

const sourceChicago = "chicago"

type EventHandler struct {
	store storage.Storage
	feed  EventFeed
}

func NewEventHandler(store storage.Storage, feed EventFeed) *EventHandler {
	return &EventHandler{store: store, feed: feed}
}

func (h *EventHandler) List(c *fiber.Ctx) error {
	category := storage.NormalizeCategory(c.Query("category"))
	if c.Query("source") == sourceChicago {
		return c.JSON(h.feed.FetchEvents(c.UserContext(), category, services.DefaultChicagoLimit))
	}

	events, err := h.store.GetEvents(c.UserContext(), category)
	if err != nil {
		return serverError(c, "Failed to fetch events", err)
	}
	return c.JSON(events)
}

func (h *EventHandler) Featured(c *fiber.Ctx) error {
	if c.Query("source") == sourceChicago {
		return c.JSON(h.feed.FetchFeaturedEvents(c.UserContext(), services.DefaultFeaturedLimit))
	}

	events, err := h.store.GetFeaturedEvents(c.UserContext())
	if err != nil {
		return serverError(c, "Failed to fetch featured events", err)
	}
	return c.JSON(events)
}

func (h *EventHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event id")
	}
	event, err := h.store.GetEvent(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, "Event not found", "Failed to fetch event")
	}
	return c.JSON(event)
}

func (h *EventHandler) Create(c *fiber.Ctx) error {
	var req models.InsertEvent
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Category) == "" {
		return badRequest(c, "title and category are required")
	}

	event, err := h.store.CreateEvent(c.UserContext(), req)
	if err != nil {
		return serverError(c, "Failed to create event", err)
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

// Chicago serves the open-data feed directly. It never fails; an unreachable
// feed yields an empty list.
func (h *EventHandler) Chicago(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", services.DefaultChicagoLimit)
	category := storage.NormalizeCategory(c.Query("category"))
	return c.JSON(h.feed.FetchEvents(c.UserContext(), category, limit))
}

func (h *EventHandler) SearchChicago(c *fiber.Ctx) error {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		return badRequest(c, "title query parameter is required")
	}
	event, err := h.feed.FindEventByTitle(c.UserContext(), title)
	if errors.Is(err, services.ErrChicagoEventNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "Event not found")
	}
	if err != nil {
		return serverError(c, "Failed to search Chicago events", err)
	}
	return c.JSON(event)
}
