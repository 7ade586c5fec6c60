package service

import (
	"context"
	"log/slog"
	"strings"

	"echo/internal/models"
	"echo/internal/observability"
	"echo/internal/repository"
	"echo/internal/validation"
)

const (
	msgEchoEmpty    = "Echo cannot be empty."
	msgEchoTooLong  = "Echo can be at most 500 characters."
	msgEchoNotFound = "Echo not found."
)

type PostService struct {
	posts repository.PostRepository
	log   *observability.ServiceLogger
}

func NewPostService(posts repository.PostRepository) *PostService {
	return &PostService{
		posts: posts,
		log:   observability.NewServiceLogger("posts"),
	}
}

// echoContent mirrors models.MaxPostLength; max counts runes.
type echoContent struct {
	Content string `json:"content" validate:"required,max=500"`
}

// normalizeContent trims and enforces 1..MaxPostLength runes. Create and edit share it.
func normalizeContent(content string) (string, error) {
	in := echoContent{Content: strings.TrimSpace(content)}
	if err := validation.Struct(in); err != nil {
		msg := msgEchoTooLong
		if validation.Tags(err)["content"] == "required" {
			msg = msgEchoEmpty
		}
		return "", models.NewDetailedValidationError("content", msg, validation.ToDetails(err))
	}
	return in.Content, nil
}

func (s *PostService) CreatePost(ctx context.Context, userID, content string) (*models.Post, error) {
	if userID == "" {
		return nil, models.NewUnauthorizedError("authentication required")
	}
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	post := &models.Post{UserID: userID, Content: content}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	observability.PostsWritten.WithLabelValues("create").Inc()
	s.log.Info(ctx, "echo created", slog.Uint64("post_id", uint64(post.ID)))
	return post, nil
}

// EditPost reports NOT_FOUND for missing, deleted and foreign posts alike.
func (s *PostService) EditPost(ctx context.Context, postID uint, userID, content string) error {
	if userID == "" {
		return models.NewUnauthorizedError("authentication required")
	}
	content, err := normalizeContent(content)
	if err != nil {
		return err
	}

	ok, err := s.posts.Update(ctx, postID, userID, content)
	if err != nil {
		return err
	}
	if !ok {
		return &models.AppError{Code: models.CodeNotFound, Message: msgEchoNotFound}
	}

	observability.PostsWritten.WithLabelValues("edit").Inc()
	return nil
}

func (s *PostService) DeletePost(ctx context.Context, postID uint, userID string) error {
	if userID == "" {
		return models.NewUnauthorizedError("authentication required")
	}

	ok, err := s.posts.SoftDelete(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return &models.AppError{Code: models.CodeNotFound, Message: msgEchoNotFound}
	}

	observability.PostsWritten.WithLabelValues("delete").Inc()
	s.log.Info(ctx, "echo deleted", slog.Uint64("post_id", uint64(postID)))
	return nil
}

// ListRecent returns live posts newest first; limit is clamped to [1, 50].
func (s *PostService) ListRecent(ctx context.Context, limit int, filter repository.PostFilter) ([]models.PostView, error) {
	return s.posts.ListRecent(ctx, repository.ClampLimit(limit), filter)
}
