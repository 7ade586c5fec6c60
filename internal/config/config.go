// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultSessionSecret = "echo-dev-session-secret-change-me"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBSQLitePath             string `mapstructure:"DB_SQLITE_PATH"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBPoolTimeoutSeconds     int    `mapstructure:"DB_POOL_TIMEOUT_SECONDS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	SessionSecret         string `mapstructure:"SESSION_SECRET"`
	SessionLifetimeDays   int    `mapstructure:"SESSION_LIFETIME_DAYS"`
	SessionCookieName     string `mapstructure:"SESSION_COOKIE_NAME"`
	SessionCookieSecure   bool   `mapstructure:"SESSION_COOKIE_SECURE"`
	SessionCookieHTTPOnly bool   `mapstructure:"SESSION_COOKIE_HTTPONLY"`
	SessionCookieSameSite string `mapstructure:"SESSION_COOKIE_SAMESITE"`

	PasswordHashTime     uint32 `mapstructure:"PASSWORD_HASH_TIME"`
	PasswordHashMemoryKB uint32 `mapstructure:"PASSWORD_HASH_MEMORY_KB"`
	PasswordHashThreads  uint8  `mapstructure:"PASSWORD_HASH_THREADS"`

	ProfileImageMaxBytes     int64  `mapstructure:"PROFILE_IMAGE_MAX_BYTES"`
	ProfileImageMaxDimension int    `mapstructure:"PROFILE_IMAGE_MAX_DIMENSION"`
	ProfileImageQuality      int    `mapstructure:"PROFILE_IMAGE_QUALITY"`
	ProfileImageUploadSubdir string `mapstructure:"PROFILE_IMAGE_UPLOAD_SUBDIR"`
	StaticDir                string `mapstructure:"STATIC_DIR"`

	AvatarStorage     string `mapstructure:"AVATAR_STORAGE"`
	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3Bucket          string `mapstructure:"S3_BUCKET"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `mapstructure:"S3_USE_PATH_STYLE"`
	S3PublicBaseURL   string `mapstructure:"S3_PUBLIC_BASE_URL"`

	AllowedOrigins   string `mapstructure:"ALLOWED_ORIGINS"`
	RateLimitEnabled bool   `mapstructure:"RATE_LIMIT_ENABLED"`

	DevBootstrapAdmin bool   `mapstructure:"DEV_BOOTSTRAP_ADMIN"`
	DevAdminUsername  string `mapstructure:"DEV_ADMIN_USERNAME"`
	DevAdminEmail     string `mapstructure:"DEV_ADMIN_EMAIL"`
	DevAdminPassword  string `mapstructure:"DEV_ADMIN_PASSWORD"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read profile config 'config.%s.yml': %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	setDefaults(env)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(env string) {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("DB_DRIVER", "mysql")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_USER", "root")
	viper.SetDefault("DB_PASSWORD", "")
	viper.SetDefault("DB_NAME", "EchoDB")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "echo.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 15)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_POOL_TIMEOUT_SECONDS", 30)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	viper.SetDefault("DB_SCHEMA_MODE", "")

	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")

	viper.SetDefault("SESSION_SECRET", defaultSessionSecret)
	viper.SetDefault("SESSION_LIFETIME_DAYS", 7)
	viper.SetDefault("SESSION_COOKIE_NAME", "echo_session")
	viper.SetDefault("SESSION_COOKIE_SECURE", false)
	viper.SetDefault("SESSION_COOKIE_HTTPONLY", true)
	viper.SetDefault("SESSION_COOKIE_SAMESITE", "Lax")

	viper.SetDefault("PASSWORD_HASH_TIME", 3)
	viper.SetDefault("PASSWORD_HASH_MEMORY_KB", 64*1024)
	viper.SetDefault("PASSWORD_HASH_THREADS", 4)

	viper.SetDefault("PROFILE_IMAGE_MAX_BYTES", 5*1024*1024)
	viper.SetDefault("PROFILE_IMAGE_MAX_DIMENSION", 512)
	viper.SetDefault("PROFILE_IMAGE_QUALITY", 85)
	viper.SetDefault("PROFILE_IMAGE_UPLOAD_SUBDIR", "uploads/profile")
	viper.SetDefault("STATIC_DIR", "static")

	viper.SetDefault("AVATAR_STORAGE", "local")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_USE_PATH_STYLE", false)

	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")
	// local runs hammer the login form
	viper.SetDefault("RATE_LIMIT_ENABLED", env != "development" && env != "test")

	viper.SetDefault("DEV_BOOTSTRAP_ADMIN", false)
	viper.SetDefault("DEV_ADMIN_USERNAME", "echo_admin")
	viper.SetDefault("DEV_ADMIN_EMAIL", "admin@echo.local")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = "development"
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.AvatarStorage = strings.ToLower(strings.TrimSpace(c.AvatarStorage))
	c.ProfileImageUploadSubdir = strings.Trim(strings.TrimSpace(c.ProfileImageUploadSubdir), "/")

	if c.IsProduction() {
		c.SessionCookieSecure = true
		c.SessionCookieSameSite = "Strict"
	}
}

// IsProduction reports whether the app runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// SessionLifetime is the server-side session TTL and cookie max age.
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.SessionLifetimeDays) * 24 * time.Hour
}

// PoolTimeout bounds how long a request waits for a pooled connection.
func (c *Config) PoolTimeout() time.Duration {
	return time.Duration(c.DBPoolTimeoutSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.SessionLifetimeDays <= 0 {
		return errors.New("SESSION_LIFETIME_DAYS must be positive")
	}

	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported (mysql, postgres, sqlite)", c.DBDriver)
	}
	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 {
		return errors.New("DB_MAX_OPEN_CONNS must be positive and DB_MAX_IDLE_CONNS non-negative")
	}
	if c.DBPoolTimeoutSeconds <= 0 {
		return errors.New("DB_POOL_TIMEOUT_SECONDS must be positive")
	}

	if c.ProfileImageMaxBytes <= 0 {
		return errors.New("PROFILE_IMAGE_MAX_BYTES must be positive")
	}
	if c.ProfileImageMaxDimension <= 0 {
		return errors.New("PROFILE_IMAGE_MAX_DIMENSION must be positive")
	}
	if c.ProfileImageQuality <= 0 || c.ProfileImageQuality > 100 {
		return errors.New("PROFILE_IMAGE_QUALITY must be between 1 and 100")
	}

	switch c.AvatarStorage {
	case "local", "s3":
	default:
		return fmt.Errorf("AVATAR_STORAGE %q is not supported (local, s3)", c.AvatarStorage)
	}

	if c.IsProduction() {
		if c.DBDriver != "sqlite" && (c.DBHost == "" || c.DBUser == "" || c.DBPassword == "") {
			return errors.New("DB_HOST, DB_USER and DB_PASSWORD are required in production")
		}
		if c.SessionSecret == defaultSessionSecret {
			return errors.New("SESSION_SECRET must be changed from the default value in production")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("SESSION_SECRET must be at least 32 characters in production")
		}
		if c.AvatarStorage == "s3" && c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when AVATAR_STORAGE=s3")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.SessionSecret) < 32 {
		log.Println("WARNING: SESSION_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
