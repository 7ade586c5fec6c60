package server

import (
	"errors"

	"echo/internal/models"
	"echo/internal/repository"
	"echo/internal/session"

	"github.com/gofiber/fiber/v2"
)

// sessionIdentity resolves the session cookie to an active user.
type sessionIdentity struct {
	sessions *session.Store
	users    repository.UserRepository
}

func (r *sessionIdentity) Identify(c *fiber.Ctx) (*models.UserIdentity, error) {
	sess, err := r.sessions.FromRequest(c)
	if errors.Is(err, session.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	identity, err := r.users.LoadIdentity(c.UserContext(), sess.UserID)
	if err != nil {
		return nil, err
	}
	if identity == nil || !identity.IsActive() {
		// banned or deactivated since login
		return nil, r.sessions.End(c)
	}
	return identity, nil
}
