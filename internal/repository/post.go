package repository

import (
	"context"
	"time"

	"echo/internal/models"
	"echo/internal/observability"

	"gorm.io/gorm"
)

// PostFilter narrows ListRecent to one author. Empty fields are ignored.
type PostFilter struct {
	UserID   string
	Username string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// Update replaces content on a live post owned by userID.
	// It reports false for missing, deleted and foreign posts alike.
	Update(ctx context.Context, id uint, userID, content string) (bool, error)
	SoftDelete(ctx context.Context, id uint, userID string) (bool, error)
	ListRecent(ctx context.Context, limit int, filter PostFilter) ([]models.PostView, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	post.Status = models.StatusActive
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogWrite(ctx, "create", "post_id", post.ID)
	return nil
}

func (r *postRepository) ownedLive(ctx context.Context, id uint, userID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.StatusActive)
}

func (r *postRepository) Update(ctx context.Context, id uint, userID, content string) (bool, error) {
	defer observability.TrackQuery("update", "posts")()

	res := r.ownedLive(ctx, id, userID).Updates(map[string]any{
		"content":    content,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	r.log.LogWrite(ctx, "update", "post_id", id)
	return true, nil
}

func (r *postRepository) SoftDelete(ctx context.Context, id uint, userID string) (bool, error) {
	defer observability.TrackQuery("soft_delete", "posts")()

	now := time.Now().UTC()
	res := r.ownedLive(ctx, id, userID).Updates(map[string]any{
		"status":     models.StatusDeleted,
		"deleted_at": now,
		"updated_at": now,
	})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "soft_delete")
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	r.log.LogWrite(ctx, "soft_delete", "post_id", id)
	return true, nil
}

// ListRecent returns live posts newest first with author details. Limit is clamped.
func (r *postRepository) ListRecent(ctx context.Context, limit int, filter PostFilter) ([]models.PostView, error) {
	defer observability.TrackQuery("list_recent", "posts")()
	span, ctx := observability.StartRepositorySpan(ctx, dbSystem(r.db), "ListRecent", "posts")
	defer span.End()

	q := r.db.WithContext(ctx).
		Table("posts AS p").
		Select("p.id, p.user_id, p.content, p.created_at, p.updated_at, " +
			"u.username, u.display_name, m.url AS author_profile_image_url").
		Joins("JOIN users u ON u.id = p.user_id").
		Joins("LEFT JOIN media m ON m.id = u.profile_media_id AND m.status = ?", models.StatusActive).
		Where("p.status = ?", models.StatusActive)

	if filter.UserID != "" {
		q = q.Where("p.user_id = ?", filter.UserID)
	}
	if filter.Username != "" {
		q = q.Where("u.username = ?", filter.Username)
	}

	posts := make([]models.PostView, 0)
	err := q.Order("p.created_at DESC").
		Order("p.id DESC").
		Limit(ClampLimit(limit)).
		Scan(&posts).Error
	if err != nil {
		span.SetError(err)
		r.log.LogError(ctx, err, "list_recent")
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}
