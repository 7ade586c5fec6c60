package models

import "time"

// ProfileView aggregates a user with avatar and follow/post counts.
type ProfileView struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	DisplayName     *string   `json:"display_name"`
	Bio             *string   `json:"bio"`
	ProfileImageURL *string   `json:"profile_image_url"`
	CreatedAt       time.Time `json:"created_at"`
	PostsCount      int64     `json:"posts_count"`
	FollowersCount  int64     `json:"followers_count"`
	FollowingCount  int64     `json:"following_count"`
}

// Name returns the display name, falling back to the username.
func (p *ProfileView) Name() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Username
}
