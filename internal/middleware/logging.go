package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger.
var Logger *slog.Logger

// requestFields are the per-request values stamped onto every log record.
type requestFields struct {
	RequestID string
	TraceID   string
	UserID    string
}

type fieldsKey struct{}

func fieldsFrom(ctx context.Context) requestFields {
	f, _ := ctx.Value(fieldsKey{}).(requestFields)
	return f
}

func withFields(ctx context.Context, update func(*requestFields)) context.Context {
	f := fieldsFrom(ctx)
	update(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithUserID tags ctx so later log records carry the signed-in user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.UserID = userID })
}

// requestHandler decorates records with the request fields found in ctx.
type requestHandler struct {
	slog.Handler
}

func (h requestHandler) Handle(ctx context.Context, r slog.Record) error {
	f := fieldsFrom(ctx)
	for _, kv := range [...][2]string{
		{"request_id", f.RequestID},
		{"trace_id", f.TraceID},
		{"user_id", f.UserID},
	} {
		if kv[1] != "" {
			r.AddAttrs(slog.String(kv[0], kv[1]))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h requestHandler) WithGroup(name string) slog.Handler {
	return requestHandler{h.Handler.WithGroup(name)}
}

func init() {
	ConfigureLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

// ConfigureLogger replaces Logger. Production gets JSON, everything else text.
func ConfigureLogger(env, level string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var base slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		base = slog.NewJSONHandler(os.Stdout, opts)
	}

	Logger = slog.New(requestHandler{base})
	slog.SetDefault(Logger)
}

// ParseLevel maps LOG_LEVEL onto a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// RequestContext copies the request id set by the requestid middleware into
// the user context. Trace and user ids are added by Tracing and LoadIdentity.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok {
			c.SetUserContext(withFields(c.UserContext(), func(f *requestFields) { f.RequestID = rid }))
		}
		return c.Next()
	}
}

// AccessLog writes one record per request once the handler chain returns.
// Health and scrape endpoints are only logged at debug.
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		ctx := c.UserContext()
		switch {
		case err != nil:
			Logger.ErrorContext(ctx, "request failed", append(attrs, slog.String("error", err.Error()))...)
		case isQuietPath(c.Path()):
			Logger.DebugContext(ctx, "request", attrs...)
		default:
			Logger.InfoContext(ctx, "request", attrs...)
		}
		return err
	}
}

func isQuietPath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health/") || strings.HasPrefix(path, "/static/")
}

// Deadline bounds the request context so a blocked pool checkout or query
// gives up after d.
func Deadline(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
