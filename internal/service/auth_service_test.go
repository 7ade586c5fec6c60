package service

import (
	"context"
	"strings"
	"testing"

	"echo/internal/models"
	"echo/internal/repository"
	"echo/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegisterInput {
	return RegisterInput{Username: "alice", Email: "alice@example.com", Password: "long enough secret"}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := NewAuthService(noopUserRepo(), fastHasher())
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(in *RegisterInput)
		message string
	}{
		{"missing username", func(in *RegisterInput) { in.Username = "   " }, msgCredentialsRequired},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, msgCredentialsRequired},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, msgCredentialsRequired},
		{"short password", func(in *RegisterInput) { in.Password = "123456789" }, msgPasswordTooShort},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, msgInvalidEmail},
		{"long username", func(in *RegisterInput) { in.Username = strings.Repeat("a", 51) }, msgUsernameTooLong},
		{"long display name", func(in *RegisterInput) { in.DisplayName = strings.Repeat("d", 256) }, msgDisplayNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)
			_, err := svc.Register(ctx, in)
			assertValidationError(t, err, tt.message)
		})
	}
}

func TestAuthService_RegisterAcceptsLongPassword(t *testing.T) {
	svc := NewAuthService(noopUserRepo(), fastHasher())
	in := validRegistration()
	in.Password = strings.Repeat("p", 300)

	_, err := svc.Register(context.Background(), in)
	require.NoError(t, err)

	in.Password = "123456789"
	_, err = svc.Register(context.Background(), in)
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, map[string]string{"password": "must be at least 10 characters long"}, appErr.Details)
}

func TestAuthService_RegisterRejectsTakenCredentials(t *testing.T) {
	ctx := context.Background()

	repo := noopUserRepo()
	repo.getByUsernameFn = func(_ context.Context, _ string) (*models.User, error) {
		return &models.User{ID: "u-1"}, nil
	}
	_, err := NewAuthService(repo, fastHasher()).Register(ctx, validRegistration())
	appErr := assertAppError(t, err, models.CodeDuplicateCredential)
	assert.Equal(t, "Username is already taken.", appErr.Message)

	repo = noopUserRepo()
	repo.getByEmailFn = func(_ context.Context, _ string) (*models.User, error) {
		return &models.User{ID: "u-1"}, nil
	}
	_, err = NewAuthService(repo, fastHasher()).Register(ctx, validRegistration())
	appErr = assertAppError(t, err, models.CodeDuplicateCredential)
	assert.Equal(t, "Email is already registered.", appErr.Message)
}

func TestAuthService_RegisterHashesAndAssignsRole(t *testing.T) {
	repo := noopUserRepo()
	var created *models.User
	var role string
	repo.createFn = func(_ context.Context, u *models.User, r string) error {
		created, role = u, r
		return nil
	}

	svc := NewAuthService(repo, fastHasher())
	in := validRegistration()
	in.DisplayName = "  Alice  "
	identity, err := svc.Register(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, models.RoleUser, role)
	assert.NotEqual(t, in.Password, created.PasswordHash)
	assert.True(t, svc.hasher.Verify(created.PasswordHash, in.Password))
	assert.Equal(t, created.ID, identity.ID)
	require.NotNil(t, identity.DisplayName)
	assert.Equal(t, "Alice", *identity.DisplayName)
}

func TestAuthService_LoginOutcomes(t *testing.T) {
	h := fastHasher()
	hash, err := h.Hash("long enough secret")
	require.NoError(t, err)

	users := map[string]*models.User{
		"alice":  {ID: "u-1", Username: "alice", PasswordHash: hash, Status: models.StatusActive},
		"gone":   {ID: "u-2", Username: "gone", PasswordHash: hash, Status: models.StatusDeleted},
		"banned": {ID: "u-3", Username: "banned", PasswordHash: hash, Status: models.StatusActive, IsBanned: true},
	}
	repo := noopUserRepo()
	repo.getByUsernameFn = func(_ context.Context, username string) (*models.User, error) {
		return users[username], nil
	}
	repo.loadIdentityFn = func(_ context.Context, id string) (*models.UserIdentity, error) {
		return &models.UserIdentity{ID: id, Username: "alice"}, nil
	}
	svc := NewAuthService(repo, h)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		code     string
		message  string
	}{
		{"blank", "", "x", models.CodeValidation, msgLoginFieldsRequired},
		{"unknown user", "nobody", "long enough secret", models.CodeAuthentication, msgInvalidCredentials},
		{"wrong password", "alice", "wrong", models.CodeAuthentication, msgInvalidCredentials},
		{"deactivated", "gone", "long enough secret", models.CodeAuthentication, msgAccountDeactivated},
		{"banned", "banned", "long enough secret", models.CodeAuthentication, msgAccountBanned},
		{"deactivated wrong password", "gone", "wrong", models.CodeAuthentication, msgInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.username, tt.password)
			appErr := assertAppError(t, err, tt.code)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}

	identity, err := svc.Login(ctx, " alice ", "long enough secret")
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.ID)
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAuthService(repository.NewUserRepository(db), fastHasher())
	ctx := context.Background()

	registered, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	identity, err := svc.Login(ctx, "alice", "long enough secret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, identity.ID)
	assert.True(t, identity.IsActive())

	_, err = svc.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, models.ErrDuplicateCredential)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
