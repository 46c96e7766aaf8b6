package middleware

import (
	"slices"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/services"
)

const (
	tokenKey    = "token"
	identityKey = "identity"
)

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: invalid or expired token",
	})
}

// JWTProtected verifies the bearer token and stores the caller's identity on
// the context. When FIREBASE_PROJECT_ID is set the token audience must match
// it; provider-signed tokens must also carry the project's issuer.
func JWTProtected(cfg *config.Config) fiber.Handler {
	jwtCfg := jwtware.Config{
		ContextKey: tokenKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c)
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(tokenKey).(*jwt.Token)
			if !ok {
				return unauthorized(c)
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c)
			}
			if cfg.FirebaseProjectID != "" {
				aud, err := claims.GetAudience()
				if err != nil || !slices.Contains(aud, cfg.FirebaseProjectID) {
					return unauthorized(c)
				}
			}
			if cfg.UsesProviderKeys() {
				if iss, _ := claims.GetIssuer(); iss != providerIssuer(cfg.FirebaseProjectID) {
					return unauthorized(c)
				}
			}
			id := identityFromClaims(claims)
			if id.UID == "" {
				return unauthorized(c)
			}
			c.Locals(identityKey, id)
			return c.Next()
		},
	}
	if cfg.UsesProviderKeys() {
		jwtCfg.KeyFunc = services.NewFirebaseKeySet(cfg.FirebaseKeysURL).Keyfunc
	} else {
		jwtCfg.SigningKey = jwtware.SigningKey{Key: []byte(cfg.AuthJWTSecret)}
	}
	return jwtware.New(jwtCfg)
}

func providerIssuer(projectID string) string {
	return "https://securetoken.google.com/" + projectID
}

// Protect returns JWTProtected when auth is configured and a pass-through
// handler otherwise.
func Protect(cfg *config.Config) fiber.Handler {
	if !cfg.AuthEnabled() {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return JWTProtected(cfg)
}

// CurrentIdentity returns the verified caller, if the request carried one.
func CurrentIdentity(c *fiber.Ctx) (services.Identity, bool) {
	id, ok := c.Locals(identityKey).(services.Identity)
	return id, ok
}

func identityFromClaims(claims jwt.MapClaims) services.Identity {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	uid := str("user_id")
	if uid == "" {
		uid, _ = claims.GetSubject()
	}
	return services.Identity{
		UID:         uid,
		Email:       str("email"),
		DisplayName: str("name"),
		PhotoURL:    str("picture"),
	}
}
