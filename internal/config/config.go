package config

import (
	"os"
	"strconv"
	"time"
)

const (
	DefaultChicagoEventsURL = "https://data.cityofchicago.org/api/views/pk66-w54g/rows.json?accessType=DOWNLOAD"
	DefaultFirebaseKeysURL  = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendDocument = "document"
	BackendCloud    = "cloud"
)

type Config struct {
	// Storage
	StorageBackend string
	DatabaseURL    string
	SeedFixtures   bool

	// Cloud-managed store
	RedisURL      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// External identity provider
	FirebaseProjectID         string
	FirebaseServiceAccountKey string
	FirebaseKeysURL           string
	AuthJWTSecret             string

	// Open-data feed
	ChicagoEventsURL string
	ChicagoTimeout   time.Duration

	// Observability
	SentryDSN        string
	LogRetentionDays int

	// Server
	Port        string
	AppEnv      string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		StorageBackend: getEnv("STORAGE_BACKEND", BackendMemory),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SeedFixtures:   parseBool(getEnv("SEED_FIXTURES", "false")),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),

		FirebaseProjectID:         getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountKey: getEnv("FIREBASE_SERVICE_ACCOUNT_KEY", ""),
		FirebaseKeysURL:           getEnv("FIREBASE_KEYS_URL", DefaultFirebaseKeysURL),
		AuthJWTSecret:             getEnv("AUTH_JWT_SECRET", ""),

		ChicagoEventsURL: getEnv("CHICAGO_EVENTS_URL", DefaultChicagoEventsURL),
		ChicagoTimeout:   parseDuration(getEnv("CHICAGO_TIMEOUT", "30s")),

		SentryDSN:        getEnv("SENTRY_DSN", ""),
		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),

		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

// AuthEnabled reports whether mutating routes require a bearer token. A
// shared secret selects HS256; otherwise a project id selects the provider's
// RS256 ID tokens.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != "" || c.FirebaseProjectID != ""
}

// UsesProviderKeys reports whether tokens are verified against the identity
// provider's published keys rather than a shared secret.
func (c *Config) UsesProviderKeys() bool {
	return c.AuthJWTSecret == "" && c.FirebaseProjectID != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
