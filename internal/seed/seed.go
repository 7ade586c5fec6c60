package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"echo/internal/middleware"
	"echo/internal/models"
	"echo/internal/repository"
	"echo/internal/service"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "password1234"

// Options configuration for the seeder
type Options struct {
	NumUsers       int
	NumPosts       int
	FollowsPerUser int
	ShouldClean    bool
	MaxDays        int
	BatchSize      int
	// Seed makes the generated content reproducible. Zero uses the clock.
	Seed     int64
	Password string
}

// Summary counts what a run inserted.
type Summary struct {
	Users   int
	Follows int
	Posts   int
}

// Seeder persists Factory output.
type Seeder struct {
	db      *gorm.DB
	users   repository.UserRepository
	opts    Options
	factory *Factory
}

// NewSeeder hashes the shared password once and returns a ready Seeder.
func NewSeeder(db *gorm.DB, hasher *service.PasswordHasher, opts Options) (*Seeder, error) {
	if db == nil {
		return nil, errors.New("seed: nil database")
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	hash, err := hasher.Hash(opts.Password)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	return &Seeder{
		db:      db,
		users:   repository.NewUserRepository(db),
		opts:    opts,
		factory: NewFactory(opts.Seed, hash, opts.MaxDays),
	}, nil
}

// Run clears (when asked) and populates the database.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log := middleware.Logger
	log.InfoContext(ctx, "seeding database",
		slog.Int("users", s.opts.NumUsers),
		slog.Int("posts", s.opts.NumPosts),
		slog.Int("follows_per_user", s.opts.FollowsPerUser),
		slog.Int64("seed", s.opts.Seed),
	)

	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("clear: %w", err)
		}
	}

	users, err := s.SeedUsers(ctx, s.opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	follows, err := s.SeedFollows(ctx, users, s.opts.FollowsPerUser)
	if err != nil {
		return nil, fmt.Errorf("failed to create follows: %w", err)
	}
	posts, err := s.SeedPosts(ctx, users, s.opts.NumPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}

	summary := &Summary{Users: len(users), Follows: follows, Posts: posts}
	log.InfoContext(ctx, "seeding complete",
		slog.Int("users", summary.Users),
		slog.Int("follows", summary.Follows),
		slog.Int("posts", summary.Posts),
	)
	return summary, nil
}

// ClearAll removes every account and its content. Roles are kept.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&models.Follower{}).Error; err != nil {
			return err
		}
		if err := all.Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := all.Model(&models.User{}).Update("profile_media_id", nil).Error; err != nil {
			return err
		}
		if err := all.Delete(&models.Media{}).Error; err != nil {
			return err
		}
		if err := all.Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		return all.Delete(&models.User{}).Error
	})
}

// SeedUsers creates count accounts through the user repository so each
// one gets the default role. Collisions with existing rows are skipped.
func (s *Seeder) SeedUsers(ctx context.Context, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		user := s.factory.BuildUser(i + 1)
		if err := s.users.Create(ctx, user, models.RoleUser); err != nil {
			if errors.Is(err, models.ErrDuplicateCredential) {
				middleware.Logger.WarnContext(ctx, "seed user skipped", slog.String("username", user.Username))
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// SeedFollows links users into a follow graph and returns the edge count.
func (s *Seeder) SeedFollows(ctx context.Context, users []*models.User, perUser int) (int, error) {
	follows := s.factory.BuildFollows(users, perUser)
	if len(follows) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(follows, s.opts.BatchSize).Error
	if err != nil {
		return 0, err
	}
	return len(follows), nil
}

// SeedPosts spreads count posts across users.
func (s *Seeder) SeedPosts(ctx context.Context, users []*models.User, count int) (int, error) {
	if len(users) == 0 || count <= 0 {
		return 0, nil
	}
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[s.factory.faker.Number(0, len(users)-1)]
		posts = append(posts, s.factory.BuildPost(author))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(posts, s.opts.BatchSize).Error; err != nil {
		return 0, err
	}
	return len(posts), nil
}
