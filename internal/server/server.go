// Package server wires the fiber app: pages, JSON API, sessions and health.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"echo/internal/config"
	"echo/internal/database"
	"echo/internal/middleware"
	"echo/internal/models"
	"echo/internal/repository"
	"echo/internal/service"
	"echo/internal/session"
	"echo/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

//go:embed views
var viewsFS embed.FS

const layout = "layouts/main"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	sessions       *session.Store
	rateLimiter    *middleware.RateLimiter
	userRepo       repository.UserRepository
	authService    *service.AuthService
	postService    *service.PostService
	profileService *service.ProfileService
	avatarService  *service.AvatarService
}

// NewServer builds a server on an open database and Redis client, choosing
// the avatar backend from cfg.
func NewServer(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("avatar storage: %w", err)
	}
	return NewServerWithDeps(cfg, db, rdb, store)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, rdb *redis.Client, store storage.Store) (*Server, error) {
	if db == nil || rdb == nil {
		return nil, errors.New("database and redis are required")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	hasher := service.NewPasswordHasher(service.PasswordParamsFromConfig(cfg))

	return &Server{
		config:         cfg,
		db:             db,
		redis:          rdb,
		promMiddleware: middleware.InitMetrics("echo"),
		sessions:       session.NewStore(rdb, session.OptionsFromConfig(cfg)),
		rateLimiter:    middleware.NewRateLimiter(rdb, cfg.RateLimitEnabled),
		userRepo:       userRepo,
		authService:    service.NewAuthService(userRepo, hasher),
		postService:    service.NewPostService(postRepo),
		profileService: service.NewProfileService(profileRepo, postRepo),
		avatarService:  service.NewAvatarService(mediaRepo, store, cfg),
	}, nil
}

// App builds the fiber application with middleware and routes.
func (s *Server) App() (*fiber.App, error) {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(views), ".html")

	app := fiber.New(fiber.Config{
		AppName:      "Echo",
		Views:        engine,
		ViewsLayout:  layout,
		BodyLimit:    int(s.avatarService.MaxBytes()) + 1<<20,
		ErrorHandler: s.handleError,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.Tracing())
	app.Use(middleware.RequestContext())
	app.Use(middleware.Deadline(s.config.PoolTimeout()))

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.AccessLog())

	// credentials cannot be combined with a wildcard origin
	origins := s.config.AllowedOrigins
	if origins == "" || origins == "*" {
		origins = "http://localhost:" + s.config.Port
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static("/static", s.config.StaticDir)

	app.Use(middleware.LoadIdentity(&sessionIdentity{sessions: s.sessions, users: s.userRepo}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/dashboard", fiber.StatusFound)
	})
	app.Get("/dashboard", s.Dashboard)
	app.Post("/create_echo", middleware.RequireLogin(), s.rateLimiter.Limit("posts", 30, time.Minute), s.CreateEcho)
	app.Post("/edit_echo/:id", middleware.RequireLogin(), s.EditEcho)
	app.Post("/delete_echo/:id", middleware.RequireLogin(), s.DeleteEcho)

	app.Get("/login", s.LoginPage)
	// a login cannot create its session without redis either
	credentials := s.rateLimiter.WithPolicy(middleware.FailClosed)
	app.Post("/login", credentials.Limit("login", 10, time.Minute), s.Login)
	app.Get("/register", s.RegisterPage)
	app.Post("/register", credentials.Limit("register", 5, time.Minute), s.Register)
	app.Post("/logout", s.Logout)

	app.Get("/profile", middleware.RequireLogin(), s.MyProfile)
	app.Post("/profile", middleware.RequireLogin(), s.UpdateProfile)
	app.Post("/profile/picture", middleware.RequireLogin(), s.UpdateProfilePicture)
	app.Post("/profile/delete", middleware.RequireLogin(), s.DeleteProfile)
	app.Get("/profile/:username", s.UserProfile)

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	api.Get("/posts", s.ListPostsAPI)
	api.Post("/posts", middleware.RequireAPIAuth(), s.rateLimiter.Limit("posts", 30, time.Minute), s.CreatePostAPI)

	api.Get("/profile", middleware.RequireAPIAuth(), s.GetMyProfileAPI)
	api.Post("/profile", middleware.RequireAPIAuth(), s.CreateProfileAPI)
	api.Put("/profile", middleware.RequireAPIAuth(), s.UpdateProfileAPI)
	api.Delete("/profile", middleware.RequireAPIAuth(), s.DeleteProfileAPI)
	api.Post("/profile/picture", middleware.RequireAPIAuth(), s.UpdateProfilePictureAPI)
	api.Get("/profile/:username", s.GetProfileAPI)
}

// handleError answers anything a handler returned unhandled: JSON under
// /api, the error page elsewhere.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	isAPI := strings.HasPrefix(c.Path(), "/api")

	var fe *fiber.Error
	if errors.As(err, &fe) {
		if isAPI {
			return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
		}
		return c.Status(fe.Code).Render("error", fiber.Map{"Title": fe.Message, "Status": fe.Code})
	}

	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	if isAPI {
		return models.RespondWithError(c, status, err)
	}
	return c.Status(status).Render("error", fiber.Map{"Title": "Something went wrong", "Status": status})
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app, err := s.App()
	if err != nil {
		return err
	}
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := database.Close(s.db); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	if err := s.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
