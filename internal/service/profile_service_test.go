package service

import (
	"context"
	"strings"
	"testing"

	"echo/internal/models"
	"echo/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProfileInput(t *testing.T) {
	tests := []struct {
		name        string
		in          ProfileInput
		wantDisplay *string
		wantBio     *string
		wantMessage string
	}{
		{"both nil", ProfileInput{}, nil, nil, ""},
		{"blank becomes unset", ProfileInput{DisplayName: strPtr("   "), Bio: strPtr("\n")}, nil, nil, ""},
		{"trimmed", ProfileInput{DisplayName: strPtr(" Alice "), Bio: strPtr(" hi ")}, strPtr("Alice"), strPtr("hi"), ""},
		{"display name at limit", ProfileInput{DisplayName: strPtr(strings.Repeat("a", 255))}, strPtr(strings.Repeat("a", 255)), nil, ""},
		{"display name too long", ProfileInput{DisplayName: strPtr(strings.Repeat("a", 256))}, nil, nil, msgDisplayNameTooLong},
		{"bio too long", ProfileInput{Bio: strPtr(strings.Repeat("b", 501))}, nil, nil, msgBioTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display, bio, err := NormalizeProfileInput(tt.in)
			if tt.wantMessage != "" {
				assertValidationError(t, err, tt.wantMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDisplay, display)
			assert.Equal(t, tt.wantBio, bio)
		})
	}
}

func TestProfileService_GetByUsername(t *testing.T) {
	repo := noopProfileRepo()
	svc := NewProfileService(repo, noopPostRepo())

	_, err := svc.GetByUsername(context.Background(), "ghost")
	appErr := assertAppError(t, err, models.CodeNotFound)
	assert.Equal(t, msgProfileNotFound, appErr.Message)

	repo.getByUsernameFn = func(_ context.Context, username string) (*models.ProfileView, error) {
		return &models.ProfileView{UserID: "u-1", Username: username}, nil
	}
	view, err := svc.GetByUsername(context.Background(), " alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", view.Username)
}

func TestProfileService_GetPage(t *testing.T) {
	profiles := noopProfileRepo()
	profiles.getByUsernameFn = func(_ context.Context, _ string) (*models.ProfileView, error) {
		return &models.ProfileView{UserID: "u-1", Username: "alice"}, nil
	}
	posts := noopPostRepo()
	var gotLimit int
	var gotFilter repository.PostFilter
	posts.listRecentFn = func(_ context.Context, limit int, filter repository.PostFilter) ([]models.PostView, error) {
		gotLimit, gotFilter = limit, filter
		return []models.PostView{{ID: 1}}, nil
	}

	page, err := NewProfileService(profiles, posts).GetPage(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, page.RecentPosts, 1)
	assert.Equal(t, 20, gotLimit)
	assert.Equal(t, "u-1", gotFilter.UserID)
}

func TestProfileService_Update(t *testing.T) {
	repo := noopProfileRepo()
	var gotDisplay, gotBio *string
	repo.updateFn = func(_ context.Context, _ string, display, bio *string) (bool, error) {
		gotDisplay, gotBio = display, bio
		return true, nil
	}
	svc := NewProfileService(repo, noopPostRepo())
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, "u-1", ProfileInput{DisplayName: strPtr(" Alice "), Bio: strPtr("")}))
	require.NotNil(t, gotDisplay)
	assert.Equal(t, "Alice", *gotDisplay)
	assert.Nil(t, gotBio)

	repo.updateFn = func(_ context.Context, _ string, _, _ *string) (bool, error) { return false, nil }
	assert.ErrorIs(t, svc.Update(ctx, "u-1", ProfileInput{}), ErrProfileUnchanged)

	assertAppError(t, svc.Update(ctx, "", ProfileInput{}), models.CodeUnauthorized)
}

func TestProfileService_Delete(t *testing.T) {
	repo := noopProfileRepo()
	svc := NewProfileService(repo, noopPostRepo())

	require.NoError(t, svc.Delete(context.Background(), "u-1"))

	repo.softDeleteFn = func(_ context.Context, _ string) (bool, error) { return false, nil }
	assert.ErrorIs(t, svc.Delete(context.Background(), "u-1"), ErrProfileUnchanged)
}
