package middleware

import (
	"log/slog"
	"net/url"

	"echo/internal/models"

	"github.com/gofiber/fiber/v2"
)

const identityLocal = "identity"

// IdentityResolver loads the signed-in user for a request. A nil identity means anonymous.
type IdentityResolver interface {
	Identify(c *fiber.Ctx) (*models.UserIdentity, error)
}

// LoadIdentity resolves the session once per request and stores the identity in locals.
// Resolution failures are logged and the request continues anonymously.
func LoadIdentity(r IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := r.Identify(c)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "session resolution failed", slog.String("error", err.Error()))
			return c.Next()
		}
		if identity != nil {
			c.Locals(identityLocal, identity)
			c.Locals("userID", identity.ID)
			c.SetUserContext(WithUserID(c.UserContext(), identity.ID))
		}
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by LoadIdentity, or nil.
func CurrentIdentity(c *fiber.Ctx) *models.UserIdentity {
	identity, _ := c.Locals(identityLocal).(*models.UserIdentity)
	return identity
}

// RequireLogin redirects anonymous page requests to the login page with a return target.
func RequireLogin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentIdentity(c) != nil {
			return c.Next()
		}
		return c.Redirect("/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
	}
}

// RequireAPIAuth rejects anonymous API requests with 401.
func RequireAPIAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentIdentity(c) != nil {
			return c.Next()
		}
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("authentication required"))
	}
}
