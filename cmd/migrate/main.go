// Command migrate applies, reverts and reports Echo schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"echo/internal/config"
	"echo/internal/database"
	"echo/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate <up|auto|status|down> [version]")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	log := middleware.Logger
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		mg, err := database.NewMigrator(db, cfg.DBDriver)
		if err != nil {
			return err
		}
		n, err := mg.Up(ctx)
		if err != nil {
			return err
		}
		if err := database.SeedRoles(ctx, db); err != nil {
			return err
		}
		log.Info("migrations applied", slog.String("driver", cfg.DBDriver), slog.Int("count", n))
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Info("models auto-migrated", slog.String("driver", cfg.DBDriver))
	case "status":
		plan, err := database.PlanSchema(cfg)
		if err != nil {
			return err
		}
		attrs := []any{
			slog.String("mode", plan.Mode),
			slog.String("driver", cfg.DBDriver),
			slog.Bool("sql", plan.SQL),
			slog.Bool("auto", plan.Auto),
		}
		if !plan.SQL {
			log.Info("schema status", attrs...)
			break
		}
		mg, err := database.NewMigrator(db, cfg.DBDriver)
		if err != nil {
			return err
		}
		pending, err := mg.Pending(ctx)
		if err != nil {
			return err
		}
		log.Info("schema status", append(attrs, slog.Int("pending", len(pending)))...)
		for _, m := range pending {
			log.Info("pending migration", slog.String("migration", m.String()))
		}
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		mg, err := database.NewMigrator(db, cfg.DBDriver)
		if err != nil {
			return err
		}
		if err := mg.Down(ctx, version); err != nil {
			return err
		}
		log.Info("migration reverted", slog.Int("version", version))
	default:
		return usage()
	}

	return nil
}
