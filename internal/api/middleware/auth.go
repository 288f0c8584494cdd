package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/auth"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/services"
)

// UserContextKey is the fiber local holding the caller's services.Identity
const UserContextKey = "user_context"

// TokenValidator verifies bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.JWTClaims, error)
}

// AuthRequired rejects requests without a valid bearer token and stores the
// caller identity for handlers.
func AuthRequired(validator TokenValidator, logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.ExtractTokenFromBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			// Browsers cannot set headers on websocket upgrades.
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			logger.WithError(err).WithField("path", c.Path()).Debug("Rejected token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		userID, email := claims.Identity()
		storeUserContext(c, services.Identity{UserID: userID, Email: email})
		return c.Next()
	}
}

func storeUserContext(c *fiber.Ctx, identity services.Identity) {
	c.Locals("user_id", identity.UserID)
	c.Locals(UserContextKey, identity)
}

// GetUserContext retrieves the caller identity from the fiber context
func GetUserContext(c *fiber.Ctx) (services.Identity, bool) {
	identity, ok := c.Locals(UserContextKey).(services.Identity)
	return identity, ok && identity.UserID != ""
}
