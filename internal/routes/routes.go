package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/middleware"
)

type Handlers struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Events        *handlers.EventHandler
	Users         *handlers.UserHandler
	Interests     *handlers.InterestHandler
	BuddyRequests *handlers.BuddyRequestHandler
	Messages      *handlers.MessageHandler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers, m *metrics.Metrics) {
	if m != nil {
		app.Get("/metrics", m.Handler())
	}

	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)
	api.Get("/ready", h.Health.Ready)

	// Pass-through unless AUTH_JWT_SECRET is set
	protect := middleware.Protect(cfg)

	api.Post("/auth/sync", protect, h.Auth.Sync)

	// Static segments before :id
	api.Get("/events", h.Events.List)
	api.Get("/events/featured", h.Events.Featured)
	api.Get("/events/:id", h.Events.Get)
	api.Post("/events", protect, h.Events.Create)

	api.Get("/chicago-events/search", h.Events.SearchChicago)
	api.Get("/chicago-events", h.Events.Chicago)

	api.Get("/users/by-username/:username", h.Users.GetByUsername)
	api.Get("/users/:id", h.Users.Get)
	api.Post("/users", protect, h.Users.Create)
	api.Patch("/users/:id", protect, h.Users.Update)

	api.Get("/interests", h.Interests.List)
	api.Post("/interests", protect, h.Interests.Create)
	api.Get("/user-interests/:userId", h.Interests.ListForUser)
	api.Post("/user-interests", protect, h.Interests.AddForUser)
	api.Delete("/user-interests/:userId/:interestId", protect, h.Interests.RemoveForUser)

	api.Post("/buddy-requests", protect, h.BuddyRequests.Create)
	api.Get("/buddy-requests/:userId", h.BuddyRequests.ListForUser)
	api.Patch("/buddy-requests/:id", protect, h.BuddyRequests.UpdateStatus)

	// /messages/read must precede the two-segment conversation route
	api.Patch("/messages/read", protect, h.Messages.MarkRead)
	api.Post("/messages", protect, h.Messages.Create)
	api.Get("/messages/:user1Id/:user2Id", h.Messages.Conversation)
}
