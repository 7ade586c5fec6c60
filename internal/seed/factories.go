// Package seed creates demo data for development databases. It is not
// used by the server.
package seed

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"echo/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Factory builds domain entities with fake content. It never touches the
// database; the Seeder persists what it builds.
type Factory struct {
	faker        *gofakeit.Faker
	passwordHash string
	maxDays      int
	now          func() time.Time
}

// NewFactory returns a Factory whose output is reproducible for a given seed.
// Every built user shares passwordHash.
func NewFactory(seed int64, passwordHash string, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 90
	}
	return &Factory{
		faker:        gofakeit.New(seed),
		passwordHash: passwordHash,
		maxDays:      maxDays,
		now:          time.Now,
	}
}

// BuildUser returns an active user with a unique username. n keeps
// usernames distinct across a run.
func (f *Factory) BuildUser(n int, overrides ...func(*models.User)) *models.User {
	base := strings.ToLower(f.faker.Username())
	base = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return -1
	}, base)
	if base == "" {
		base = "echoer"
	}
	if len(base) > 40 {
		base = base[:40]
	}
	username := fmt.Sprintf("%s%d", base, n)

	displayName := f.faker.Name()
	bio := truncateRunes(f.faker.HipsterSentence(12), 500)

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: f.passwordHash,
		DisplayName:  &displayName,
		Bio:          &bio,
		Status:       models.StatusActive,
		CreatedAt:    f.pastTime(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// BuildPost returns a live post by user with content at most MaxPostLength runes.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	var content string
	switch f.faker.Number(0, 3) {
	case 0:
		content = f.faker.HackerPhrase()
	case 1:
		content = f.faker.Quote()
	default:
		content = f.faker.Paragraph(1, f.faker.Number(1, 4), f.faker.Number(4, 14), " ")
	}

	created := f.pastTime()
	if created.Before(user.CreatedAt) {
		created = user.CreatedAt
	}
	post := &models.Post{
		UserID:    user.ID,
		Content:   truncateRunes(strings.TrimSpace(content), models.MaxPostLength),
		Status:    models.StatusActive,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// BuildFollows picks up to perUser distinct accounts for each user to follow.
func (f *Factory) BuildFollows(users []*models.User, perUser int) []models.Follower {
	if len(users) < 2 || perUser <= 0 {
		return nil
	}
	if perUser > len(users)-1 {
		perUser = len(users) - 1
	}

	follows := make([]models.Follower, 0, len(users)*perUser)
	for i, follower := range users {
		picked := make(map[int]bool, perUser)
		for len(picked) < perUser {
			j := f.faker.Number(0, len(users)-1)
			if j == i || picked[j] {
				continue
			}
			picked[j] = true
			follows = append(follows, models.Follower{
				FollowerID: follower.ID,
				FollowedID: users[j].ID,
				CreatedAt:  f.now(),
			})
		}
	}
	return follows
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return f.now().Add(-back).UTC().Truncate(time.Second)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
