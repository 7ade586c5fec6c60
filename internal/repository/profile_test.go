package repository

import (
	"context"
	"testing"
	"time"

	"echo/internal/models"
	"echo/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestProfileRepository_Counts(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.InsertUser(t, db, "alice")
	bob := testutil.InsertUser(t, db, "bob")
	carol := testutil.InsertUser(t, db, "carol")

	testutil.InsertPost(t, db, alice.ID, "one", time.Now().UTC())
	gone := testutil.InsertPost(t, db, alice.ID, "two", time.Now().UTC())
	_, err := posts.SoftDelete(ctx, gone.ID, alice.ID)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Follower{FollowerID: bob.ID, FollowedID: alice.ID}).Error)
	require.NoError(t, db.Create(&models.Follower{FollowerID: carol.ID, FollowedID: alice.ID}).Error)
	require.NoError(t, db.Create(&models.Follower{FollowerID: alice.ID, FollowedID: bob.ID}).Error)

	view, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, alice.ID, view.UserID)
	assert.Equal(t, int64(1), view.PostsCount)
	assert.Equal(t, int64(2), view.FollowersCount)
	assert.Equal(t, int64(1), view.FollowingCount)
	assert.Nil(t, view.ProfileImageURL)

	byID, err := repo.GetByUserID(ctx, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "bob", byID.Username)
	assert.Equal(t, int64(1), byID.FollowersCount)

	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProfileRepository_Update(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	alice := testutil.InsertUser(t, db, "alice")

	ok, err := repo.Update(ctx, alice.ID, strPtr("Alice A."), strPtr("hi there"))
	require.NoError(t, err)
	assert.True(t, ok)

	view, err := repo.GetByUserID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, view.DisplayName)
	assert.Equal(t, "Alice A.", *view.DisplayName)
	assert.Equal(t, "Alice A.", view.Name())

	ok, err = repo.Update(ctx, alice.ID, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	view, err = repo.GetByUserID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, view.DisplayName)
	assert.Nil(t, view.Bio)
	assert.Equal(t, "alice", view.Name())

	ok, err = repo.Update(ctx, "missing", strPtr("x"), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfileRepository_SoftDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	media := NewMediaRepository(db)
	ctx := context.Background()

	alice := testutil.InsertUser(t, db, "alice")
	post := testutil.InsertPost(t, db, alice.ID, "still here", time.Now().UTC())
	_, err := media.UpsertProfileImage(ctx, alice.ID, "/static/a.webp", models.MediaTypeWebP)
	require.NoError(t, err)

	ok, err := repo.SoftDelete(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SoftDelete(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	view, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, view)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", alice.ID).Error)
	assert.Equal(t, models.StatusDeleted, user.Status)
	assert.NotNil(t, user.DeletedAt)

	var avatar models.Media
	require.NoError(t, db.First(&avatar, "id = ?", *user.ProfileMediaID).Error)
	assert.Equal(t, models.StatusDeleted, avatar.Status)
	require.NotNil(t, avatar.DeletedBy)
	assert.Equal(t, alice.ID, *avatar.DeletedBy)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, models.StatusActive, stored.Status)
}
