package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tandir/internal/config"
	"github.com/example/tandir/internal/utils"
)

const (
	userContextKey = "currentUserID"
	roleContextKey = "currentUserRole"
)

// AuthMiddleware validates JWT tokens and loads the acting staff member into
// context. Orders trust this identity for attribution; authorization beyond
// that lives upstream.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		userID, role, err := utils.ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(userContextKey, userID)
		c.Locals(roleContextKey, role)
		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated staff id from context.
func GetCurrentUserID(c *fiber.Ctx) (uint, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return 0, false
	}

	if id, ok := value.(uint); ok {
		return id, true
	}

	return 0, false
}

// GetCurrentUserRole extracts the authenticated staff role from context.
func GetCurrentUserRole(c *fiber.Ctx) (string, bool) {
	value := c.Locals(roleContextKey)
	if value == nil {
		return "", false
	}

	if role, ok := value.(string); ok {
		return role, true
	}

	return "", false
}
