package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"echo/internal/models"
	"echo/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreatePostValidation(t *testing.T) {
	repo := noopPostRepo()
	called := false
	repo.createFn = func(_ context.Context, _ *models.Post) error {
		called = true
		return nil
	}
	svc := NewPostService(repo)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, "u-1", "   \n\t ")
	assertValidationError(t, err, msgEchoEmpty)

	_, err = svc.CreatePost(ctx, "u-1", strings.Repeat("x", models.MaxPostLength+1))
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, msgEchoTooLong, appErr.Message)
	assert.Equal(t, "content", appErr.Field)
	assert.Equal(t, map[string]string{"content": "must be at most 500 characters long"}, appErr.Details)

	_, err = svc.CreatePost(ctx, "", "hello")
	assertAppError(t, err, models.CodeUnauthorized)

	assert.False(t, called, "invalid input must not reach the store")
}

func TestPostService_CreatePostTrimsAndCountsRunes(t *testing.T) {
	repo := noopPostRepo()
	var stored *models.Post
	repo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 7
		stored = p
		return nil
	}
	svc := NewPostService(repo)

	// 500 multibyte runes is more than 500 bytes but still allowed
	content := strings.Repeat("é", models.MaxPostLength)
	post, err := svc.CreatePost(context.Background(), "u-1", "  "+content+"  ")
	require.NoError(t, err)
	assert.Equal(t, uint(7), post.ID)
	assert.Equal(t, content, stored.Content)
	assert.Equal(t, "u-1", stored.UserID)
}

func TestPostService_EditPost(t *testing.T) {
	ctx := context.Background()

	repo := noopPostRepo()
	repo.updateFn = func(_ context.Context, _ uint, _, _ string) (bool, error) { return false, nil }
	err := NewPostService(repo).EditPost(ctx, 1, "u-2", "edited")
	appErr := assertAppError(t, err, models.CodeNotFound)
	assert.Equal(t, msgEchoNotFound, appErr.Message)

	repo = noopPostRepo()
	var gotContent string
	repo.updateFn = func(_ context.Context, id uint, userID, content string) (bool, error) {
		gotContent = content
		return id == 1 && userID == "u-1", nil
	}
	require.NoError(t, NewPostService(repo).EditPost(ctx, 1, "u-1", " edited "))
	assert.Equal(t, "edited", gotContent)

	err = NewPostService(repo).EditPost(ctx, 1, "u-1", strings.Repeat("x", 501))
	assertValidationError(t, err, msgEchoTooLong)
}

func TestPostService_DeletePost(t *testing.T) {
	ctx := context.Background()

	repo := noopPostRepo()
	repo.softDeleteFn = func(_ context.Context, _ uint, _ string) (bool, error) { return false, nil }
	assertAppError(t, NewPostService(repo).DeletePost(ctx, 1, "u-1"), models.CodeNotFound)

	repo.softDeleteFn = func(_ context.Context, _ uint, _ string) (bool, error) {
		return false, models.NewInternalError(errors.New("db down"))
	}
	assertAppError(t, NewPostService(repo).DeletePost(ctx, 1, "u-1"), models.CodeInternal)

	require.NoError(t, NewPostService(noopPostRepo()).DeletePost(ctx, 1, "u-1"))
}

func TestPostService_ListRecentClamps(t *testing.T) {
	repo := noopPostRepo()
	var limits []int
	repo.listRecentFn = func(_ context.Context, limit int, _ repository.PostFilter) ([]models.PostView, error) {
		limits = append(limits, limit)
		return nil, nil
	}
	svc := NewPostService(repo)

	for _, in := range []int{-1, 0, 20, 99} {
		_, err := svc.ListRecent(context.Background(), in, repository.PostFilter{})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 1, 20, 50}, limits)
}
