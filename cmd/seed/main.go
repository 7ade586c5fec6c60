// Command main fills a development database with demo accounts and echoes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"echo/internal/bootstrap"
	"echo/internal/config"
	"echo/internal/database"
	"echo/internal/middleware"
	"echo/internal/seed"
	"echo/internal/service"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	follows := flag.Int("follows", 5, "Accounts each seeded user follows")
	shouldClean := flag.Bool("clean", false, "Remove existing accounts and content first")
	maxDays := flag.Int("days", 90, "Spread creation times over this many days")
	seedValue := flag.Int64("seed", 0, "Random seed for reproducible content (0 = clock)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	if cfg.IsProduction() {
		return fmt.Errorf("refusing to seed a %s database", cfg.Env)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipRedis: true})
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	s, err := seed.NewSeeder(db, service.NewPasswordHasher(service.PasswordParamsFromConfig(cfg)), seed.Options{
		NumUsers:       *numUsers,
		NumPosts:       *numPosts,
		FollowsPerUser: *follows,
		ShouldClean:    *shouldClean,
		MaxDays:        *maxDays,
		Seed:           *seedValue,
	})
	if err != nil {
		return err
	}

	if _, err := s.Run(ctx); err != nil {
		return err
	}
	middleware.Logger.Info("seeded accounts share one password", slog.String("password", seed.DefaultPassword))
	return nil
}
