package models

import (
	"time"
)

// MaxPostLength bounds echo content on both create and edit.
const MaxPostLength = 500

// Post represents an echo.
type Post struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"size:36;not null;index" json:"user_id"`
	User      *User           `gorm:"foreignKey:UserID" json:"-"`
	Content   string          `gorm:"size:500;not null" json:"content"`
	Status    LifecycleStatus `gorm:"size:16;not null;default:active;index" json:"-"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"-"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string {
	return "posts"
}

// PostView is a post joined with its author for feeds.
type PostView struct {
	ID                    uint      `json:"id"`
	UserID                string    `json:"user_id"`
	Content               string    `json:"content"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	Username              string    `json:"username"`
	DisplayName           *string   `json:"display_name"`
	AuthorProfileImageURL *string   `json:"profile_image_url"`
}

// AuthorName returns the display name, falling back to the username.
func (p PostView) AuthorName() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Username
}
