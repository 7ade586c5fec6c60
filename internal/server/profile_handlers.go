package server

import (
	"errors"
	"io"
	"net/url"

	"echo/internal/middleware"
	"echo/internal/models"
	"echo/internal/service"
	"echo/internal/session"

	"github.com/gofiber/fiber/v2"
)

const (
	msgProfileNotFound      = "Profile not found."
	msgProfileUpdated       = "Profile updated."
	msgProfileUpdateFailed  = "Could not update profile."
	msgProfileDeleteFailed  = "Could not delete profile."
	msgAccountDeactivated   = "Your account has been deactivated."
	msgChooseImage          = "Choose an image to upload."
	msgPictureUpdated       = "Profile picture updated."
	msgPictureUpdateFailed  = "Could not update profile picture."
	profilePictureFormField = "profile_picture"
)

func profilePath(username string) string {
	return "/profile/" + url.PathEscape(username)
}

// MyProfile handles GET /profile
func (s *Server) MyProfile(c *fiber.Ctx) error {
	return c.Redirect(profilePath(middleware.CurrentIdentity(c).Username), fiber.StatusFound)
}

// UserProfile handles GET /profile/:username
func (s *Server) UserProfile(c *fiber.Ctx) error {
	username, err := url.PathUnescape(c.Params("username"))
	if err != nil {
		username = c.Params("username")
	}

	page, err := s.profileService.GetPage(c.UserContext(), username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.flashAndRedirect(c, session.FlashError, msgProfileNotFound, "/dashboard")
		}
		return err
	}

	identity := middleware.CurrentIdentity(c)
	return s.render(c, "profile", fiber.Map{
		"Title":       page.Profile.Name(),
		"Profile":     page.Profile,
		"RecentPosts": page.RecentPosts,
		"IsOwner":     identity != nil && identity.ID == page.Profile.UserID,
	})
}

// UpdateProfile handles POST /profile
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)

	in := service.ProfileInput{}
	if v := c.FormValue("display_name"); v != "" {
		in.DisplayName = &v
	}
	if v := c.FormValue("bio"); v != "" {
		in.Bio = &v
	}

	if err := s.profileService.Update(c.UserContext(), identity.ID, in); err != nil {
		return s.flashAndRedirect(c, session.FlashError, userMessage(err, msgProfileUpdateFailed), "/profile")
	}
	return s.flashAndRedirect(c, session.FlashSuccess, msgProfileUpdated, "/profile")
}

// readUpload pulls the profile picture out of a multipart request, bounded
// by the avatar ceiling.
func (s *Server) readUpload(c *fiber.Ctx) (service.AvatarInput, error) {
	identity := middleware.CurrentIdentity(c)
	in := service.AvatarInput{UserID: identity.ID}

	fh, err := c.FormFile(profilePictureFormField)
	if err != nil || fh.Filename == "" {
		return in, models.NewFieldValidationError(profilePictureFormField, msgChooseImage)
	}
	in.Filename = fh.Filename
	if fh.Size > s.avatarService.MaxBytes() {
		return in, models.NewPayloadTooLargeError(s.avatarService.TooLargeMessage())
	}

	f, err := fh.Open()
	if err != nil {
		return in, models.NewInternalError(err)
	}
	defer f.Close()

	// the service rejects anything past the ceiling, so one extra byte is enough
	in.Content, err = io.ReadAll(io.LimitReader(f, s.avatarService.MaxBytes()+1))
	if err != nil {
		return in, models.NewInternalError(err)
	}
	return in, nil
}

// UpdateProfilePicture handles POST /profile/picture
func (s *Server) UpdateProfilePicture(c *fiber.Ctx) error {
	in, err := s.readUpload(c)
	if err == nil {
		_, err = s.avatarService.Upload(c.UserContext(), in)
	}
	if err != nil {
		return s.flashAndRedirect(c, session.FlashError, userMessage(err, msgPictureUpdateFailed), "/profile")
	}
	return s.flashAndRedirect(c, session.FlashSuccess, msgPictureUpdated, "/profile")
}

// DeleteProfile handles POST /profile/delete
func (s *Server) DeleteProfile(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)

	if err := s.profileService.Delete(c.UserContext(), identity.ID); err != nil {
		return s.flashAndRedirect(c, session.FlashError, userMessage(err, msgProfileDeleteFailed), "/profile")
	}
	if err := s.sessions.End(c); err != nil {
		return err
	}
	return s.flashAndRedirect(c, session.FlashInfo, msgAccountDeactivated, "/dashboard")
}

// GetProfileAPI handles GET /api/profile/:username
func (s *Server) GetProfileAPI(c *fiber.Ctx) error {
	view, err := s.profileService.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// GetMyProfileAPI handles GET /api/profile
func (s *Server) GetMyProfileAPI(c *fiber.Ctx) error {
	view, err := s.profileService.GetByUserID(c.UserContext(), middleware.CurrentIdentity(c).ID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

func (s *Server) writeProfileAPI(c *fiber.Ctx, successStatus int, failure string) error {
	var in service.ProfileInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return respondBadBody(c, err)
		}
	}

	err := s.profileService.Update(c.UserContext(), middleware.CurrentIdentity(c).ID, in)
	switch {
	case errors.Is(err, service.ErrProfileUnchanged):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": failure})
	case err != nil:
		return respondServiceError(c, err)
	}
	return c.Status(successStatus).JSON(fiber.Map{"success": true})
}

// CreateProfileAPI handles POST /api/profile
func (s *Server) CreateProfileAPI(c *fiber.Ctx) error {
	return s.writeProfileAPI(c, fiber.StatusCreated, "Failed to create profile")
}

// UpdateProfileAPI handles PUT /api/profile
func (s *Server) UpdateProfileAPI(c *fiber.Ctx) error {
	return s.writeProfileAPI(c, fiber.StatusOK, "Failed to update profile")
}

// DeleteProfileAPI handles DELETE /api/profile
func (s *Server) DeleteProfileAPI(c *fiber.Ctx) error {
	err := s.profileService.Delete(c.UserContext(), middleware.CurrentIdentity(c).ID)
	switch {
	case errors.Is(err, service.ErrProfileUnchanged):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete profile"})
	case err != nil:
		return respondServiceError(c, err)
	}

	if err := s.sessions.End(c); err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"success": true})
}

// UpdateProfilePictureAPI handles POST /api/profile/picture
func (s *Server) UpdateProfilePictureAPI(c *fiber.Ctx) error {
	in, err := s.readUpload(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	res, err := s.avatarService.Upload(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "profile_image_url": res.URL})
}
