// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"echo/internal/config"
	"echo/internal/database"
	"echo/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Config returns a sqlite-backed test configuration rooted in t.TempDir().
func Config(t testing.TB) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Env:                      "test",
		Port:                     "0",
		LogLevel:                 "error",
		DBDriver:                 "sqlite",
		DBSQLitePath:             filepath.Join(root, "echo.db"),
		DBMaxOpenConns:           4,
		DBMaxIdleConns:           2,
		DBPoolTimeoutSeconds:     5,
		DBConnMaxLifetimeMinutes: 5,
		DBSchemaMode:             database.SchemaModeAuto,
		SessionSecret:            "test-session-secret-with-enough-length",
		SessionLifetimeDays:      7,
		SessionCookieName:        "echo_session",
		SessionCookieHTTPOnly:    true,
		SessionCookieSameSite:    "Lax",
		PasswordHashTime:         1,
		PasswordHashMemoryKB:     8 * 1024,
		PasswordHashThreads:      1,
		ProfileImageMaxBytes:     5 * 1024 * 1024,
		ProfileImageMaxDimension: 512,
		ProfileImageQuality:      85,
		ProfileImageUploadSubdir: "uploads/profile",
		StaticDir:                filepath.Join(root, "static"),
		AvatarStorage:            "local",
	}
}

// NewDB opens a migrated sqlite database for cfg, closed on test cleanup.
func NewDB(t testing.TB, cfg *config.Config) *gorm.DB {
	t.Helper()
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewTestDB is NewDB with a fresh Config.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	return NewDB(t, Config(t))
}

// InsertUser writes an active user row directly, bypassing hashing.
func InsertUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: "not-a-real-hash",
		Status:       models.StatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// InsertPost writes a live post with an explicit creation time.
func InsertPost(t testing.TB, db *gorm.DB, userID, content string, createdAt time.Time) *models.Post {
	t.Helper()
	post := &models.Post{
		UserID:    userID,
		Content:   content,
		Status:    models.StatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}
