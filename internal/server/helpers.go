package server

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"echo/internal/middleware"
	"echo/internal/models"
	"echo/internal/session"
	"echo/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// mapServiceError picks the HTTP status for an error from the service layer.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation, models.CodeInvalidImage:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized, models.CodeAuthentication:
		return fiber.StatusUnauthorized
	case models.CodeDuplicateCredential:
		return fiber.StatusConflict
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodePayloadTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case models.CodeUnsupportedFormat:
		return fiber.StatusUnsupportedMediaType
	default:
		return fiber.StatusInternalServerError
	}
}

func respondServiceError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return models.RespondWithError(c, status, err)
}

// respondBadBody answers 400 for a body that could not be decoded.
func respondBadBody(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewDetailedValidationError("", "Invalid request body", validation.ToDetails(err)))
}

// userMessage is the text to flash for err. Server-side failures get fallback.
func userMessage(err error, fallback string) string {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || mapServiceError(err) >= fiber.StatusInternalServerError {
		return fallback
	}
	return appErr.Message
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// isSafeURL accepts a same-host http(s) URL or a local path.
func isSafeURL(c *fiber.Ctx, target string) bool {
	if target == "" || strings.ContainsAny(target, "\\\r\n") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(target, "//")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, c.Hostname())
}

// wantsJSON reports whether the caller sent or asked for JSON.
func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		return true
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}

func (s *Server) flash(c *fiber.Ctx, category, message string) {
	if err := s.sessions.AddFlash(c, category, message); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "flash failed", slog.String("error", err.Error()))
	}
}

func (s *Server) flashAndRedirect(c *fiber.Ctx, category, message, location string) error {
	s.flash(c, category, message)
	return c.Redirect(location, fiber.StatusFound)
}

// render fills in the signed-in identity and pending flashes. extra
// messages are shown after the queued ones.
func (s *Server) render(c *fiber.Ctx, name string, data fiber.Map, extra ...session.Flash) error {
	if data == nil {
		data = fiber.Map{}
	}
	flashes, err := s.sessions.PopFlashes(c)
	if err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "loading flashes failed", slog.String("error", err.Error()))
	}
	data["Flashes"] = append(flashes, extra...)
	data["User"] = middleware.CurrentIdentity(c)
	return c.Render(name, data)
}

// renderWithError shows a form page again with an inline error.
func (s *Server) renderWithError(c *fiber.Ctx, name, message string, data fiber.Map) error {
	return s.render(c, name, data, session.Flash{Category: session.FlashError, Message: message})
}
