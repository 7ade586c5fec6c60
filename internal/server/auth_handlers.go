package server

import (
	"echo/internal/middleware"
	"echo/internal/service"
	"echo/internal/session"

	"github.com/gofiber/fiber/v2"
)

const (
	msgLoginFailed        = "Invalid username or password."
	msgRegistrationFailed = "Registration failed. Please try again."
	msgLoggedOut          = "You have been logged out."
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

type registerForm struct {
	Username    string `form:"username"`
	Email       string `form:"email"`
	Password    string `form:"password"`
	DisplayName string `form:"display_name"`
}

// LoginPage handles GET /login
func (s *Server) LoginPage(c *fiber.Ctx) error {
	if middleware.CurrentIdentity(c) != nil {
		return c.Redirect("/dashboard", fiber.StatusFound)
	}
	return s.render(c, "login", fiber.Map{"Title": "Log in", "Next": c.Query("next")})
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	if middleware.CurrentIdentity(c) != nil {
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	var form loginForm
	_ = c.BodyParser(&form)
	next := c.Query("next", form.Next)

	identity, err := s.authService.Login(c.UserContext(), form.Username, form.Password)
	if err != nil {
		return s.renderWithError(c, "login", userMessage(err, msgLoginFailed), fiber.Map{
			"Title":    "Log in",
			"Next":     next,
			"Username": form.Username,
		})
	}

	if _, err := s.sessions.Start(c, identity.ID); err != nil {
		return err
	}

	if isSafeURL(c, next) {
		return c.Redirect(next, fiber.StatusFound)
	}
	return c.Redirect("/dashboard", fiber.StatusFound)
}

// RegisterPage handles GET /register
func (s *Server) RegisterPage(c *fiber.Ctx) error {
	if middleware.CurrentIdentity(c) != nil {
		return c.Redirect("/dashboard", fiber.StatusFound)
	}
	return s.render(c, "register", fiber.Map{"Title": "Register"})
}

// Register handles POST /register and signs the new account in.
func (s *Server) Register(c *fiber.Ctx) error {
	if middleware.CurrentIdentity(c) != nil {
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	var form registerForm
	_ = c.BodyParser(&form)

	identity, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Username:    form.Username,
		Email:       form.Email,
		Password:    form.Password,
		DisplayName: form.DisplayName,
	})
	if err != nil {
		form.Password = ""
		return s.renderWithError(c, "register", userMessage(err, msgRegistrationFailed), fiber.Map{
			"Title": "Register",
			"Form":  form,
		})
	}

	if _, err := s.sessions.Start(c, identity.ID); err != nil {
		return err
	}
	return c.Redirect("/dashboard", fiber.StatusFound)
}

// Logout handles POST /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.sessions.End(c); err != nil {
		return err
	}
	return s.flashAndRedirect(c, session.FlashInfo, msgLoggedOut, "/dashboard")
}
