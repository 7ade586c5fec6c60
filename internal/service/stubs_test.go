package service

import (
	"context"
	"errors"
	"testing"

	"echo/internal/models"
	"echo/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn        func(context.Context, *models.User, string) error
	getByIDFn       func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	loadIdentityFn  func(context.Context, string) (*models.UserIdentity, error)
	assignRoleFn    func(context.Context, string, string) (bool, error)
	hasRoleFn       func(context.Context, string, string) (bool, error)
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User, role string) error {
	return s.createFn(ctx, user, role)
}
func (s *userRepoStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) LoadIdentity(ctx context.Context, id string) (*models.UserIdentity, error) {
	return s.loadIdentityFn(ctx, id)
}
func (s *userRepoStub) AssignRole(ctx context.Context, userID, role string) (bool, error) {
	return s.assignRoleFn(ctx, userID, role)
}
func (s *userRepoStub) HasRole(ctx context.Context, userID, role string) (bool, error) {
	return s.hasRoleFn(ctx, userID, role)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createFn:        func(_ context.Context, _ *models.User, _ string) error { return nil },
		getByIDFn:       func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByEmailFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		loadIdentityFn:  func(_ context.Context, _ string) (*models.UserIdentity, error) { return nil, nil },
		assignRoleFn:    func(_ context.Context, _, _ string) (bool, error) { return true, nil },
		hasRoleFn:       func(_ context.Context, _, _ string) (bool, error) { return false, nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn     func(context.Context, *models.Post) error
	updateFn     func(context.Context, uint, string, string) (bool, error)
	softDeleteFn func(context.Context, uint, string) (bool, error)
	listRecentFn func(context.Context, int, repository.PostFilter) ([]models.PostView, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) Update(ctx context.Context, id uint, userID, content string) (bool, error) {
	return s.updateFn(ctx, id, userID, content)
}
func (s *postRepoStub) SoftDelete(ctx context.Context, id uint, userID string) (bool, error) {
	return s.softDeleteFn(ctx, id, userID)
}
func (s *postRepoStub) ListRecent(ctx context.Context, limit int, filter repository.PostFilter) ([]models.PostView, error) {
	return s.listRecentFn(ctx, limit, filter)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:     func(_ context.Context, _ *models.Post) error { return nil },
		updateFn:     func(_ context.Context, _ uint, _, _ string) (bool, error) { return true, nil },
		softDeleteFn: func(_ context.Context, _ uint, _ string) (bool, error) { return true, nil },
		listRecentFn: func(_ context.Context, _ int, _ repository.PostFilter) ([]models.PostView, error) { return nil, nil },
	}
}

// profileRepoStub is a stub for repository.ProfileRepository.
type profileRepoStub struct {
	getByUserIDFn   func(context.Context, string) (*models.ProfileView, error)
	getByUsernameFn func(context.Context, string) (*models.ProfileView, error)
	updateFn        func(context.Context, string, *string, *string) (bool, error)
	softDeleteFn    func(context.Context, string) (bool, error)
}

func (s *profileRepoStub) GetByUserID(ctx context.Context, userID string) (*models.ProfileView, error) {
	return s.getByUserIDFn(ctx, userID)
}
func (s *profileRepoStub) GetByUsername(ctx context.Context, username string) (*models.ProfileView, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *profileRepoStub) Update(ctx context.Context, userID string, displayName, bio *string) (bool, error) {
	return s.updateFn(ctx, userID, displayName, bio)
}
func (s *profileRepoStub) SoftDelete(ctx context.Context, userID string) (bool, error) {
	return s.softDeleteFn(ctx, userID)
}

func noopProfileRepo() *profileRepoStub {
	return &profileRepoStub{
		getByUserIDFn:   func(_ context.Context, _ string) (*models.ProfileView, error) { return nil, nil },
		getByUsernameFn: func(_ context.Context, _ string) (*models.ProfileView, error) { return nil, nil },
		updateFn:        func(_ context.Context, _ string, _, _ *string) (bool, error) { return true, nil },
		softDeleteFn:    func(_ context.Context, _ string) (bool, error) { return true, nil },
	}
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR and the given message.
func assertValidationError(t *testing.T, err error, message string) {
	t.Helper()
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, message, appErr.Message)
}

func strPtr(s string) *string { return &s }
