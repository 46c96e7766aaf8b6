package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/config"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newProtectedApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/me", Protect(cfg), func(c *fiber.Ctx) error {
		id, ok := CurrentIdentity(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(id.UID + "|" + id.Email)
	})
	return app
}

func get(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestProtectDisabledPassesThrough(t *testing.T) {
	app := newProtectedApp(&config.Config{})

	status, body := get(t, app, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "anonymous", body)
}

func TestProtectRequiresValidToken(t *testing.T) {
	app := newProtectedApp(&config.Config{AuthJWTSecret: testSecret})

	status, _ := get(t, app, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = get(t, app, "not-a-jwt")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	expired := signed(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()})
	status, _ = get(t, app, expired)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := get(t, app, signed(t, jwt.MapClaims{
		"user_id": "firebase-uid",
		"email":   "alex@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "firebase-uid|alex@example.com", body)
}

func TestProtectFallsBackToSubject(t *testing.T) {
	app := newProtectedApp(&config.Config{AuthJWTSecret: testSecret})

	status, body := get(t, app, signed(t, jwt.MapClaims{"sub": "subject-uid"}))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "subject-uid|", body)

	status, _ = get(t, app, signed(t, jwt.MapClaims{"email": "nobody@example.com"}))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestProtectChecksAudience(t *testing.T) {
	app := newProtectedApp(&config.Config{AuthJWTSecret: testSecret, FirebaseProjectID: "eventbuddy"})

	status, _ := get(t, app, signed(t, jwt.MapClaims{"sub": "u1", "aud": "another-project"}))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = get(t, app, signed(t, jwt.MapClaims{"sub": "u1", "aud": "eventbuddy"}))
	assert.Equal(t, fiber.StatusOK, status)
}

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestProtectVerifiesProviderTokens(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(priv.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.PublicKey.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(keys.Close)

	app := newProtectedApp(&config.Config{FirebaseProjectID: "eventbuddy", FirebaseKeysURL: keys.URL})
	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = "k1"
		s, err := token.SignedString(priv)
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	status, body := get(t, app, sign(jwt.MapClaims{
		"iss":     "https://securetoken.google.com/eventbuddy",
		"aud":     "eventbuddy",
		"user_id": "fb-1",
		"email":   "alex@example.com",
		"exp":     exp,
	}))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "fb-1|alex@example.com", body)

	status, _ = get(t, app, sign(jwt.MapClaims{
		"iss": "https://securetoken.google.com/other",
		"aud": "eventbuddy",
		"sub": "fb-1",
		"exp": exp,
	}))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	// A shared-secret token is not accepted in provider mode
	status, _ = get(t, app, signed(t, jwt.MapClaims{
		"iss": "https://securetoken.google.com/eventbuddy",
		"aud": "eventbuddy",
		"sub": "fb-1",
	}))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
