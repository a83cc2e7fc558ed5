package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bozorly/bozorly_api/internal/auth"
)

// SessionAuth validates opaque bearer tokens against the session manager and
// stashes the resolved identity in request locals.
func SessionAuth(sessions *auth.SessionManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		sess, err := sessions.Validate(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid session")
		}

		c.Locals("identity_id", sess.IdentityID)
		c.Locals("role", sess.Role)
		return c.Next()
	}
}
