package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"echo/internal/middleware"

	"gorm.io/gorm"
)

// appliedMigration is the bookkeeping row written once a script has run.
type appliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (appliedMigration) TableName() string { return "schema_migrations" }

// Migrator applies and reverts the versioned SQL scripts for one driver.
type Migrator struct {
	db      *gorm.DB
	driver  string
	scripts []Migration
}

// NewMigrator loads the scripts for driver. It fails when the driver has none.
func NewMigrator(db *gorm.DB, driver string) (*Migrator, error) {
	scripts, err := Migrations(driver)
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no SQL migrations for driver %q", driver)
	}
	return &Migrator{db: db, driver: driver, scripts: scripts}, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&appliedMigration{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// Applied lists recorded versions in ascending order. A missing table means none.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(&appliedMigration{}) {
		return nil, nil
	}
	var versions []int
	if err := db.Model(&appliedMigration{}).Order("version").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the scripts not yet recorded. A recorded version that no
// script knows about is reported as an error.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	return pendingScripts(m.scripts, applied)
}

func pendingScripts(scripts []Migration, applied []int) ([]Migration, error) {
	known := make(map[int]bool, len(scripts))
	for _, s := range scripts {
		known[s.Version] = true
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		if !known[v] {
			return nil, fmt.Errorf("schema_migrations has version %06d which no script defines", v)
		}
		done[v] = true
	}

	var pending []Migration
	for _, s := range scripts {
		if !done[s.Version] {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

// Up runs every pending script and returns how many were applied.
// Each script and its bookkeeping row share a transaction; on mysql the DDL
// commits implicitly so the row is what keeps reruns idempotent.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, s := range pending {
		middleware.Logger.InfoContext(ctx, "applying migration",
			slog.String("driver", m.driver), slog.String("migration", s.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, stmt := range statements(s.Up) {
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return tx.Create(&appliedMigration{Version: s.Version, Name: s.Name}).Error
		})
		if err != nil {
			return i, fmt.Errorf("migration %s: %w", s, err)
		}
	}
	return len(pending), nil
}

// Down reverts one applied version.
func (m *Migrator) Down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(m.scripts, func(s Migration) bool { return s.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration %d not found", version)
	}
	s := m.scripts[idx]

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s is not applied", s)
	}

	middleware.Logger.InfoContext(ctx, "reverting migration",
		slog.String("driver", m.driver), slog.String("migration", s.String()))
	for _, stmt := range statements(s.Down) {
		if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("revert %s: %w", s, err)
		}
	}
	return m.db.WithContext(ctx).Delete(&appliedMigration{}, "version = ?", version).Error
}
