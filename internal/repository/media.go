package repository

import (
	"context"
	"time"

	"echo/internal/models"
	"echo/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MediaRepository persists references to uploaded assets.
type MediaRepository interface {
	// UpsertProfileImage points the user's avatar at url, reusing the existing
	// media row when there is one. False means the user is missing or deleted.
	UpsertProfileImage(ctx context.Context, userID, url, mediaType string) (bool, error)
}

type mediaRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db, log: observability.NewRepoLogger("media")}
}

func (r *mediaRepository) UpsertProfileImage(ctx context.Context, userID, url, mediaType string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	defer observability.TrackQuery("upsert_profile_image", "media")()
	span, ctx := observability.StartRepositorySpan(ctx, dbSystem(r.db), "UpsertProfileImage", "media")
	defer span.End()

	updated := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "profile_media_id").
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
		if user.ProfileMediaID != nil {
			res := tx.Model(&models.Media{}).
				Where("id = ?", *user.ProfileMediaID).
				Updates(map[string]any{
					"url":        url,
					"media_type": mediaType,
					"status":     models.StatusActive,
					"deleted_at": nil,
					"deleted_by": nil,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				updated = true
				return nil
			}
			// dangling reference: fall through and attach a fresh row
		}

		media := models.Media{
			ID:        uuid.NewString(),
			URL:       url,
			MediaType: mediaType,
			Status:    models.StatusActive,
		}
		if err := tx.Create(&media).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"profile_media_id": media.ID,
				"updated_at":       now,
			}).Error; err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		span.SetError(err)
		r.log.LogError(ctx, err, "upsert_profile_image")
		return false, models.NewInternalError(err)
	}
	if updated {
		r.log.LogWrite(ctx, "upsert_profile_image", "user_id", userID)
	}
	return updated, nil
}
