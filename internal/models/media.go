package models

import (
	"time"
)

// MediaTypeWebP is the tag stored for transcoded avatars.
const MediaTypeWebP = "image/webp"

// Media is an uploaded asset attached to a post, reply or profile.
type Media struct {
	ID        string          `gorm:"primaryKey;size:36" json:"media_id"`
	PostID    *uint           `gorm:"index" json:"post_id,omitempty"`
	ReplyID   *uint           `gorm:"index" json:"reply_id,omitempty"`
	URL       string          `gorm:"size:512;not null" json:"url"`
	MediaType string          `gorm:"size:64;not null" json:"media_type"`
	Status    LifecycleStatus `gorm:"size:16;not null;default:active" json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"-"`
	DeletedBy *string         `gorm:"size:36" json:"-"`
}

// TableName returns the database table name for Media.
func (Media) TableName() string {
	return "media"
}
