package repository

import (
	"context"
	"time"

	"echo/internal/models"
	"echo/internal/observability"

	"gorm.io/gorm"
)

// ProfileRepository reads and mutates the public side of a user row.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.ProfileView, error)
	GetByUsername(ctx context.Context, username string) (*models.ProfileView, error)
	// Update overwrites display name and bio; nil clears the column.
	Update(ctx context.Context, userID string, displayName, bio *string) (bool, error)
	SoftDelete(ctx context.Context, userID string) (bool, error)
}

type profileRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db, log: observability.NewRepoLogger("users")}
}

const profileColumns = "u.id AS user_id, u.username, u.display_name, u.bio, u.created_at, " +
	"m.url AS profile_image_url, " +
	"(SELECT COUNT(*) FROM posts p WHERE p.user_id = u.id AND p.status = ?) AS posts_count, " +
	"(SELECT COUNT(*) FROM followers f WHERE f.followed_id = u.id) AS followers_count, " +
	"(SELECT COUNT(*) FROM followers g WHERE g.follower_id = u.id) AS following_count"

func (r *profileRepository) find(ctx context.Context, column, value string) (*models.ProfileView, error) {
	defer observability.TrackQuery("profile", "users")()
	span, ctx := observability.StartRepositorySpan(ctx, dbSystem(r.db), "GetProfile", "users")
	defer span.End()

	var rows []models.ProfileView
	err := r.db.WithContext(ctx).
		Table("users AS u").
		Select(profileColumns, models.StatusActive).
		Joins("LEFT JOIN media m ON m.id = u.profile_media_id AND m.status = ?", models.StatusActive).
		Where("u."+column+" = ? AND u.status = ?", value, models.StatusActive).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		span.SetError(err)
		r.log.LogError(ctx, err, "get_profile_by_"+column)
		return nil, models.NewInternalError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetByUserID returns nil, nil for missing or deleted users.
func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*models.ProfileView, error) {
	if userID == "" {
		return nil, nil
	}
	return r.find(ctx, "id", userID)
}

// GetByUsername returns nil, nil for missing or deleted users.
func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.ProfileView, error) {
	if username == "" {
		return nil, nil
	}
	return r.find(ctx, "username", username)
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (r *profileRepository) Update(ctx context.Context, userID string, displayName, bio *string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	defer observability.TrackQuery("update_profile", "users")()

	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND status = ?", userID, models.StatusActive).
		Updates(map[string]any{
			"display_name": nullable(displayName),
			"bio":          nullable(bio),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update_profile")
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	r.log.LogWrite(ctx, "update_profile", "user_id", userID)
	return true, nil
}

// SoftDelete marks the user deleted and retires its avatar row. Posts are left alone.
func (r *profileRepository) SoftDelete(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	defer observability.TrackQuery("soft_delete", "users")()

	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		res := tx.Select("id", "profile_media_id").
			Where("id = ? AND status = ?", userID, models.StatusActive).
			Limit(1).
			Find(&user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"status":     models.StatusDeleted,
				"deleted_at": now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		if user.ProfileMediaID != nil {
			if err := tx.Model(&models.Media{}).
				Where("id = ? AND status = ?", *user.ProfileMediaID, models.StatusActive).
				Updates(map[string]any{
					"status":     models.StatusDeleted,
					"deleted_at": now,
					"deleted_by": userID,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
		}

		deleted = true
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, err, "soft_delete")
		return false, models.NewInternalError(err)
	}
	if deleted {
		r.log.LogWrite(ctx, "soft_delete", "user_id", userID)
	}
	return deleted, nil
}
