package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/fixtures"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage/docstore"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage/memory"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage/redisstore"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.AppEnv)

	if cfg.FirebaseServiceAccountKey != "" {
		slog.Info("external auth service credentials configured")
	}
	switch {
	case !cfg.AuthEnabled():
		slog.Warn("neither AUTH_JWT_SECRET nor FIREBASE_PROJECT_ID set; mutating routes are unauthenticated")
	case cfg.UsesProviderKeys():
		slog.Info("verifying provider ID tokens", "project", cfg.FirebaseProjectID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, pgLogHandler, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		slog.Error("storage initialization failed", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	slog.Info("storage ready", "backend", cfg.StorageBackend)

	// Log cleanup (document backend only)
	cleanupDone := make(chan struct{})
	if pgLogHandler != nil {
		slog.SetDefault(slog.New(logging.NewMultiHandler(logging.StdoutHandler(cfg.AppEnv), pgLogHandler)))
		logging.StartCleanup(pgLogHandler.DB(), cfg.LogRetentionDays, cleanupDone)
	}

	m := metrics.New()

	// Services
	chicago := services.NewChicagoEventsService(cfg.ChicagoEventsURL, cfg.ChicagoTimeout, services.WithFetchRecorder(m))
	profiles := services.NewProfileService(store)

	// Handlers
	h := routes.Handlers{
		Health:        handlers.NewHealthHandler(store, cfg.StorageBackend),
		Auth:          handlers.NewAuthHandler(profiles),
		Events:        handlers.NewEventHandler(store, chicago),
		Users:         handlers.NewUserHandler(store),
		Interests:     handlers.NewInterestHandler(store),
		BuddyRequests: handlers.NewBuddyRequestHandler(store),
		Messages:      handlers.NewMessageHandler(store),
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())
	app.Use(m.Middleware())

	routes.Setup(app, cfg, h, m)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	if pgLogHandler != nil {
		pgLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if err := store.Close(); err != nil {
		slog.Error("storage close error", "error", err)
	}

	slog.Info("server stopped")
}

// openStore builds the configured backend. The PG log handler is only
// returned for the document backend, whose database also holds system_logs.
func openStore(ctx context.Context, cfg *config.Config) (storage.Storage, *logging.PGHandler, error) {
	var (
		store     storage.Storage
		pgHandler *logging.PGHandler
		seed      = cfg.SeedFixtures
	)

	switch cfg.StorageBackend {
	case config.BackendMemory:
		store = memory.New()
		seed = true

	case config.BackendDocument:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the %s backend", config.BackendDocument)
		}
		client := database.NewPostgresClient(cfg.DatabaseURL)
		doc, err := docstore.New(ctx, client)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Migrate(&models.SystemLog{}); err != nil {
			_ = doc.Close()
			return nil, nil, fmt.Errorf("system_logs migration: %w", err)
		}
		store = doc
		pgHandler = logging.NewPGHandler(client.DB())

	case config.BackendCloud:
		rdb, err := redisstore.Dial(ctx, redisstore.Connection{
			URL:      cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		store = redisstore.New(rdb)

	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if seed {
		if err := fixtures.Load(ctx, store); err != nil {
			if pgHandler != nil {
				pgHandler.Stop()
			}
			_ = store.Close()
			return nil, nil, fmt.Errorf("loading fixtures: %w", err)
		}
		slog.Info("fixtures ready", "users", len(fixtures.Users), "events", len(fixtures.Events))
	}
	return store, pgHandler, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{Error: true, Message: message})
}
