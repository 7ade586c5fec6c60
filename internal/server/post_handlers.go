package server

import (
	"strings"

	"echo/internal/middleware"
	"echo/internal/models"
	"echo/internal/repository"
	"echo/internal/session"

	"github.com/gofiber/fiber/v2"
)

const (
	msgEchoPosted  = "Echo posted."
	msgEchoUpdated = "Echo updated."
	msgEchoDeleted = "Echo deleted."
	msgEchoFailed  = "Could not save echo."

	defaultAPIPostLimit = 20
)

type contentRequest struct {
	Content string `json:"content" form:"content"`
}

// Dashboard handles GET /dashboard
func (s *Server) Dashboard(c *fiber.Ctx) error {
	posts, err := s.postService.ListRecent(c.UserContext(), repository.MaxListLimit, repository.PostFilter{})
	if err != nil {
		return err
	}
	return s.render(c, "dashboard", fiber.Map{"Title": "Echo", "Posts": posts})
}

// CreateEcho handles POST /create_echo (form field "echo")
func (s *Server) CreateEcho(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)

	if _, err := s.postService.CreatePost(c.UserContext(), identity.ID, c.FormValue("echo")); err != nil {
		return s.flashAndRedirect(c, session.FlashError, userMessage(err, msgEchoFailed), "/dashboard")
	}
	return s.flashAndRedirect(c, session.FlashSuccess, msgEchoPosted, "/dashboard")
}

// EditEcho handles POST /edit_echo/:id for form and JSON callers.
func (s *Server) EditEcho(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req contentRequest
	if err := c.BodyParser(&req); err != nil && wantsJSON(c) {
		return respondBadBody(c, err)
	}

	err = s.postService.EditPost(c.UserContext(), id, identity.ID, req.Content)
	if wantsJSON(c) {
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	}
	if err != nil {
		return s.flashAndRedirect(c, session.FlashError, userMessage(err, msgEchoFailed), "/dashboard")
	}
	return s.flashAndRedirect(c, session.FlashSuccess, msgEchoUpdated, "/dashboard")
}

// DeleteEcho handles POST /delete_echo/:id
func (s *Server) DeleteEcho(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	err = s.postService.DeletePost(c.UserContext(), id, identity.ID)
	if wantsJSON(c) {
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	}
	if err != nil {
		return s.flashAndRedirect(c, session.FlashError, userMessage(err, msgEchoFailed), "/dashboard")
	}
	return s.flashAndRedirect(c, session.FlashSuccess, msgEchoDeleted, "/dashboard")
}

// ListPostsAPI handles GET /api/posts?limit=&username=
func (s *Server) ListPostsAPI(c *fiber.Ctx) error {
	filter := repository.PostFilter{Username: strings.TrimSpace(c.Query("username"))}
	posts, err := s.postService.ListRecent(c.UserContext(), c.QueryInt("limit", defaultAPIPostLimit), filter)
	if err != nil {
		return respondServiceError(c, err)
	}
	if posts == nil {
		posts = []models.PostView{}
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// CreatePostAPI handles POST /api/posts
func (s *Server) CreatePostAPI(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)

	var req contentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondBadBody(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), identity.ID, req.Content)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"post": post})
}
