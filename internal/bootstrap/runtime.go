package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"echo/internal/cache"
	"echo/internal/config"
	"echo/internal/database"
	"echo/internal/middleware"
	"echo/internal/models"
	"echo/internal/repository"
	"echo/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipRedis is for tools that only need the database.
	SkipRedis bool
}

// InitRuntime connects to the database and Redis. The database pool and
// Redis are both required; either failing aborts startup.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := ensureDevAdmin(ctx, cfg, db); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	if opts.SkipRedis {
		return db, nil, nil
	}

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return db, rdb, nil
}

// ensureDevAdmin creates or promotes the configured admin account in development.
func ensureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || !cfg.DevBootstrapAdmin {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") {
		return nil
	}
	if cfg.DevAdminPassword == "" {
		return fmt.Errorf("DEV_ADMIN_PASSWORD must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}

	users := repository.NewUserRepository(db)
	username := strings.TrimSpace(cfg.DevAdminUsername)

	existing, err := users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing == nil {
		hash, err := service.NewPasswordHasher(service.PasswordParamsFromConfig(cfg)).Hash(cfg.DevAdminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		existing = &models.User{
			ID:           uuid.NewString(),
			Username:     username,
			Email:        strings.ToLower(strings.TrimSpace(cfg.DevAdminEmail)),
			PasswordHash: hash,
		}
		if err := users.Create(ctx, existing, models.RoleAdmin); err != nil {
			return err
		}
	} else if _, err := users.AssignRole(ctx, existing.ID, models.RoleAdmin); err != nil {
		return err
	}

	middleware.Logger.Info("development admin ensured", slog.String("username", username))
	return nil
}
