package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"echo/internal/config"
	"echo/internal/middleware"
	"echo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// Models lists every table gorm manages, parents first.
func Models() []any {
	return []any{
		&models.Media{},
		&models.User{},
		&models.Post{},
		&models.Role{},
		&models.UserRole{},
		&models.Follower{},
	}
}

// SchemaPlan says which schema mechanisms run for a configuration.
type SchemaPlan struct {
	Mode string
	SQL  bool
	Auto bool
}

// PlanSchema resolves DB_SCHEMA_MODE against the driver and environment.
// Drivers without scripts always AutoMigrate; production never does when
// scripts exist.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}

	scripts, err := Migrations(cfg.DBDriver)
	if err != nil {
		return plan, err
	}
	hasSQL := len(scripts) > 0
	strict := cfg.IsProduction() || cfg.Env == "staging"

	switch plan.Mode {
	case SchemaModeSQL:
		if !hasSQL {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=sql has no scripts for %q", cfg.DBDriver)
		}
		plan.SQL = true
	case SchemaModeAuto:
		if strict && hasSQL {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed for %s in %s", cfg.DBDriver, cfg.Env)
		}
		plan.Auto = true
	case SchemaModeHybrid:
		plan.SQL = hasSQL
		plan.Auto = !hasSQL || !strict
	default:
		return plan, fmt.Errorf("unknown DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema runs the planned mechanisms and then seeds the role rows.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		mg, err := NewMigrator(db, cfg.DBDriver)
		if err != nil {
			return err
		}
		if _, err := mg.Up(ctx); err != nil {
			return err
		}
	}
	if plan.Auto {
		middleware.Logger.InfoContext(ctx, "auto-migrating models",
			slog.String("driver", cfg.DBDriver), slog.String("mode", plan.Mode))
		if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return SeedRoles(ctx, db)
}

// SeedRoles inserts the built-in roles. Existing rows are left alone.
func SeedRoles(ctx context.Context, db *gorm.DB) error {
	roles := []models.Role{{Name: models.RoleUser}, {Name: models.RoleAdmin}}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&roles).Error; err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}
