// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

// LogWrite logs a successful mutating repository operation at debug level.
func (l *RepoLogger) LogWrite(ctx context.Context, operation string, attrs ...any) {
	base := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}
	slog.Default().DebugContext(ctx, "repository write", append(base, attrs...)...)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	slog.Default().ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// ServiceLogger tags log lines with the owning service.
type ServiceLogger struct {
	service string
}

// NewServiceLogger creates a logger for the named service.
func NewServiceLogger(service string) *ServiceLogger {
	return &ServiceLogger{service: service}
}

// Info logs an informational service event.
func (l *ServiceLogger) Info(ctx context.Context, msg string, attrs ...any) {
	slog.Default().InfoContext(ctx, msg, append([]any{slog.String("service", l.service)}, attrs...)...)
}

// Warn logs a recoverable service event.
func (l *ServiceLogger) Warn(ctx context.Context, msg string, attrs ...any) {
	slog.Default().WarnContext(ctx, msg, append([]any{slog.String("service", l.service)}, attrs...)...)
}

// Error logs a failed service operation.
func (l *ServiceLogger) Error(ctx context.Context, msg string, err error, attrs ...any) {
	base := []any{slog.String("service", l.service), slog.String("error", err.Error())}
	slog.Default().ErrorContext(ctx, msg, append(base, attrs...)...)
}
