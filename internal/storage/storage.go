// Package storage writes avatar blobs to the configured backend.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"echo/internal/config"
)

// Store persists an object under key, overwriting any previous version,
// and returns the public URL it is served from.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// New builds the backend selected by AVATAR_STORAGE.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.AvatarStorage {
	case "", "local":
		return NewLocalStore(cfg.StaticDir, "/static"), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported AVATAR_STORAGE %q", cfg.AvatarStorage)
	}
}

// ObjectKey joins a subdirectory and file name into a slash-separated key.
func ObjectKey(subdir, name string) string {
	subdir = strings.Trim(subdir, "/")
	if subdir == "" {
		return name
	}
	return path.Join(subdir, name)
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}
