package repository

import (
	"context"
	"errors"

	"echo/internal/models"
	"echo/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository is the credential store: accounts, password hashes and role membership.
type UserRepository interface {
	// Create inserts the user and, when roleName is set, assigns it in the same transaction.
	Create(ctx context.Context, user *models.User, roleName string) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	LoadIdentity(ctx context.Context, id string) (*models.UserIdentity, error)
	AssignRole(ctx context.Context, userID, roleName string) (bool, error)
	HasRole(ctx context.Context, userID, roleName string) (bool, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) Create(ctx context.Context, user *models.User, roleName string) error {
	defer observability.TrackQuery("create", "users")()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if roleName == "" {
			return nil
		}
		assigned, err := assignRole(tx, user.ID, roleName)
		if err != nil {
			return err
		}
		if !assigned {
			r.log.LogWrite(ctx, "assign_role_skipped", "role", roleName)
		}
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewDuplicateCredentialError(r.collidingField(ctx, user, err), err)
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}

	r.log.LogWrite(ctx, "create", "user_id", user.ID)
	return nil
}

// collidingField re-reads after the rolled back insert; username wins when both collide.
func (r *userRepository) collidingField(ctx context.Context, user *models.User, cause error) string {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err == nil && count > 0 {
		return "username"
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err == nil && count > 0 {
		return "email"
	}
	return duplicateField(cause)
}

func (r *userRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.LogError(ctx, err, "get_by_"+column)
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByID returns nil, nil when no row exists. Soft-deleted rows are returned.
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUsername returns nil, nil when no row exists. Soft-deleted rows are returned.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

// GetByEmail returns nil, nil when no row exists. Soft-deleted rows are returned.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

type identityRow struct {
	ID          string
	Username    string
	Email       string
	DisplayName *string
	IsBanned    bool
	Status      models.LifecycleStatus
	AvatarURL   *string
}

func (r *userRepository) LoadIdentity(ctx context.Context, id string) (*models.UserIdentity, error) {
	defer observability.TrackQuery("identity", "users")()
	span, ctx := observability.StartRepositorySpan(ctx, dbSystem(r.db), "LoadIdentity", "users")
	defer span.End()

	var rows []identityRow
	err := r.db.WithContext(ctx).
		Table("users AS u").
		Select("u.id, u.username, u.email, u.display_name, u.is_banned, u.status, m.url AS avatar_url").
		Joins("LEFT JOIN media m ON m.id = u.profile_media_id AND m.status = ?", models.StatusActive).
		Where("u.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		span.SetError(err)
		r.log.LogError(ctx, err, "load_identity")
		return nil, models.NewInternalError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &models.UserIdentity{
		ID:          row.ID,
		Username:    row.Username,
		Email:       row.Email,
		DisplayName: row.DisplayName,
		AvatarURL:   row.AvatarURL,
		IsBanned:    row.IsBanned,
		IsDeleted:   row.Status == models.StatusDeleted,
	}, nil
}

// assignRole is false for unknown role names; duplicate assignment is a no-op.
func assignRole(tx *gorm.DB, userID, roleName string) (bool, error) {
	var role models.Role
	if err := tx.Where("name = ?", roleName).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	link := models.UserRole{UserID: userID, RoleID: role.ID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *userRepository) AssignRole(ctx context.Context, userID, roleName string) (bool, error) {
	ok, err := assignRole(r.db.WithContext(ctx), userID, roleName)
	if err != nil {
		r.log.LogError(ctx, err, "assign_role")
		return false, models.NewInternalError(err)
	}
	return ok, nil
}

func (r *userRepository) HasRole(ctx context.Context, userID, roleName string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_roles AS ur").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where("ur.user_id = ? AND r.name = ?", userID, roleName).
		Count(&count).Error
	if err != nil {
		r.log.LogError(ctx, err, "has_role")
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
