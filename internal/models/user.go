// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an account row. PasswordHash never leaves the login flow.
type User struct {
	ID             string          `gorm:"primaryKey;size:36" json:"user_id"`
	Username       string          `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email          string          `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   string          `gorm:"size:255;not null" json:"-"`
	DisplayName    *string         `gorm:"size:255" json:"display_name"`
	Bio            *string         `gorm:"size:500" json:"bio"`
	ProfileMediaID *string         `gorm:"size:36;index" json:"-"`
	ProfileMedia   *Media          `gorm:"foreignKey:ProfileMediaID" json:"-"`
	IsBanned       bool            `gorm:"not null;default:false" json:"-"`
	Status         LifecycleStatus `gorm:"size:16;not null;default:active;index" json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive && !u.IsBanned
}

// UserIdentity is the session-facing view of a user.
type UserIdentity struct {
	ID          string  `json:"user_id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"profile_image_url"`
	IsBanned    bool    `json:"-"`
	IsDeleted   bool    `json:"-"`
}

// IsActive is false for banned or soft-deleted accounts.
func (u *UserIdentity) IsActive() bool {
	return !u.IsBanned && !u.IsDeleted
}

// Name returns the display name, falling back to the username.
func (u *UserIdentity) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}

// Role is a named permission group.
type Role struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Role.
func (Role) TableName() string {
	return "roles"
}

// UserRole joins users to roles.
type UserRole struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"user_id"`
	RoleID    uint      `gorm:"primaryKey" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for UserRole.
func (UserRole) TableName() string {
	return "user_roles"
}

// Follower records that FollowerID follows FollowedID.
type Follower struct {
	FollowerID string    `gorm:"primaryKey;size:36" json:"follower_id"`
	FollowedID string    `gorm:"primaryKey;size:36;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Follower.
func (Follower) TableName() string {
	return "followers"
}

// Default role names seeded at startup.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
