package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"echo/internal/models"
	"echo/internal/observability"
	"echo/internal/repository"
	"echo/internal/validation"

	"github.com/google/uuid"
)

const (
	msgCredentialsRequired  = "Username, email, and password are required."
	msgPasswordTooShort     = "Password must be at least 10 characters."
	msgInvalidEmail         = "Enter a valid email address."
	msgUsernameTooLong      = "Username can be at most 50 characters."
	msgDisplayNameTooLong   = "Display name can be at most 255 characters."
	msgLoginFieldsRequired  = "Username and password are required."
	msgInvalidCredentials   = "Invalid username or password."
	msgAccountDeactivated   = "This account is deactivated."
	msgAccountBanned        = "This account is banned."
	dummyPasswordForTimings = "echo-timing-equalizer"
)

// RegisterInput is the registration form.
type RegisterInput struct {
	Username    string `form:"username" json:"username" validate:"required,max=50"`
	Email       string `form:"email" json:"email" validate:"required,email,max=255"`
	Password    string `form:"password" json:"password" validate:"required,password"`
	DisplayName string `form:"display_name" json:"display_name" validate:"omitempty,max=255"`
}

// AuthService registers accounts and checks credentials.
type AuthService struct {
	users  repository.UserRepository
	hasher *PasswordHasher
	log    *observability.ServiceLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users repository.UserRepository, hasher *PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		log:    observability.NewServiceLogger("auth"),
	}
}

// Register creates the account with the default role and returns its identity.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.UserIdentity, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError(msgCredentialsRequired)
	}
	if err := validation.Struct(in); err != nil {
		return nil, registerValidationError(err)
	}

	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewDuplicateCredentialError("username", nil)
	}
	existing, err = s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewDuplicateCredentialError("email", nil)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Status:       models.StatusActive,
	}
	if in.DisplayName != "" {
		user.DisplayName = &in.DisplayName
	}

	// the uniqueness constraint still catches a concurrent registration
	if err := s.users.Create(ctx, user, models.RoleUser); err != nil {
		observability.AuthAttempts.WithLabelValues("register_failed").Inc()
		return nil, err
	}

	observability.AuthAttempts.WithLabelValues("registered").Inc()
	s.log.Info(ctx, "user registered", slog.String("user_id", user.ID))

	return &models.UserIdentity{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, nil
}

func registerValidationError(err error) error {
	tags := validation.Tags(err)
	details := validation.ToDetails(err)
	switch {
	case tags["password"] != "":
		return models.NewDetailedValidationError("password", msgPasswordTooShort, details)
	case tags["email"] != "":
		return models.NewDetailedValidationError("email", msgInvalidEmail, details)
	case tags["username"] != "":
		return models.NewDetailedValidationError("username", msgUsernameTooLong, details)
	case tags["display_name"] != "":
		return models.NewDetailedValidationError("display_name", msgDisplayNameTooLong, details)
	default:
		return models.NewDetailedValidationError("", msgCredentialsRequired, details)
	}
}

// Login checks credentials and account state. The failure reason is logged
// and counted; only the message is meant for the user.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.UserIdentity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, models.NewValidationError(msgLoginFieldsRequired)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if user == nil {
		// keep unknown-user latency close to a real verification
		s.hasher.Verify(s.timingHash(), password)
		return nil, s.rejectLogin(ctx, username, msgInvalidCredentials, "unknown_user")
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, s.rejectLogin(ctx, username, msgInvalidCredentials, "bad_password")
	}
	if user.Status == models.StatusDeleted {
		return nil, s.rejectLogin(ctx, username, msgAccountDeactivated, "deactivated")
	}
	if user.IsBanned {
		return nil, s.rejectLogin(ctx, username, msgAccountBanned, "banned")
	}

	identity, err := s.users.LoadIdentity(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, s.rejectLogin(ctx, username, msgInvalidCredentials, "vanished")
	}

	observability.AuthAttempts.WithLabelValues("success").Inc()
	s.log.Info(ctx, "login succeeded", slog.String("user_id", user.ID))
	return identity, nil
}

func (s *AuthService) rejectLogin(ctx context.Context, username, message, reason string) error {
	observability.AuthAttempts.WithLabelValues(reason).Inc()
	s.log.Warn(ctx, "login rejected",
		slog.String("username", username),
		slog.String("reason", reason),
	)
	return models.NewAuthenticationError(message, reason)
}

func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPasswordForTimings)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
