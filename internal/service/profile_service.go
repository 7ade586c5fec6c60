package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"echo/internal/models"
	"echo/internal/observability"
	"echo/internal/repository"
	"echo/internal/validation"
)

const (
	profilePostsLimit = 20

	msgProfileNotFound = "Profile not found."
	msgBioTooLong      = "Bio can be at most 500 characters."
)

// ErrProfileUnchanged means the update matched no live user row.
var ErrProfileUnchanged = errors.New("profile not updated")

// ProfileInput carries the editable profile fields as submitted.
type ProfileInput struct {
	DisplayName *string `json:"display_name" form:"display_name"`
	Bio         *string `json:"bio" form:"bio"`
}

// ProfilePage is a profile with its recent posts.
type ProfilePage struct {
	Profile     *models.ProfileView
	RecentPosts []models.PostView
}

type ProfileService struct {
	profiles repository.ProfileRepository
	posts    repository.PostRepository
	log      *observability.ServiceLogger
}

func NewProfileService(profiles repository.ProfileRepository, posts repository.PostRepository) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		posts:    posts,
		log:      observability.NewServiceLogger("profiles"),
	}
}

// normalizeOptional turns blank input into nil.
func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// profileFields holds the trimmed values; nil means unset.
type profileFields struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	Bio         *string `json:"bio" validate:"omitempty,max=500"`
}

// NormalizeProfileInput trims both fields and enforces their length limits.
func NormalizeProfileInput(in ProfileInput) (displayName, bio *string, err error) {
	fields := profileFields{
		DisplayName: normalizeOptional(in.DisplayName),
		Bio:         normalizeOptional(in.Bio),
	}
	if err := validation.Struct(fields); err != nil {
		field, msg := "bio", msgBioTooLong
		if _, bad := validation.Tags(err)["display_name"]; bad {
			field, msg = "display_name", msgDisplayNameTooLong
		}
		return nil, nil, models.NewDetailedValidationError(field, msg, validation.ToDetails(err))
	}
	return fields.DisplayName, fields.Bio, nil
}

func profileNotFound() error {
	return &models.AppError{Code: models.CodeNotFound, Message: msgProfileNotFound}
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*models.ProfileView, error) {
	view, err := s.profiles.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, profileNotFound()
	}
	return view, nil
}

func (s *ProfileService) GetByUserID(ctx context.Context, userID string) (*models.ProfileView, error) {
	view, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, profileNotFound()
	}
	return view, nil
}

// GetPage loads the profile and its most recent posts.
func (s *ProfileService) GetPage(ctx context.Context, username string) (*ProfilePage, error) {
	view, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListRecent(ctx, profilePostsLimit, repository.PostFilter{UserID: view.UserID})
	if err != nil {
		return nil, err
	}
	return &ProfilePage{Profile: view, RecentPosts: posts}, nil
}

// Update overwrites display name and bio. Omitted or blank fields are cleared.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileInput) error {
	if userID == "" {
		return models.NewUnauthorizedError("authentication required")
	}
	displayName, bio, err := NormalizeProfileInput(in)
	if err != nil {
		return err
	}

	ok, err := s.profiles.Update(ctx, userID, displayName, bio)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProfileUnchanged
	}
	return nil
}

// Delete soft-deletes the account. Posts stay in place.
func (s *ProfileService) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return models.NewUnauthorizedError("authentication required")
	}

	ok, err := s.profiles.SoftDelete(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProfileUnchanged
	}

	s.log.Info(ctx, "account deactivated", slog.String("user_id", userID))
	return nil
}
