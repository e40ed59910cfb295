package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Server    ServerConfig
	Flow      FlowConfig
	Directory DirectoryConfig
	Log       LogConfig
}

// DatabaseConfig holds PostgreSQL connection settings. An empty DSN runs
// every store in memory.
type DatabaseConfig struct {
	DSN      string //nolint:gosec // G117: DB connection config
	MaxConns int
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// event streams and keeps thread ownership in memory.
type RedisConfig struct {
	Addr         string
	Password     string //nolint:gosec // G117: Redis connection config
	DB           int
	OwnershipTTL time.Duration
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret    string //nolint:gosec // G117: JWT signing secret config
	AccessTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       float64
	RateBurst       int
}

// FlowConfig holds per-document flow settings.
type FlowConfig struct {
	ValidationTimeout time.Duration
	RequestTimeout    time.Duration
	InboxLimit        int // 0 = unbounded
}

// DirectoryConfig holds acquaintance directory settings.
type DirectoryConfig struct {
	CacheTTL time.Duration // 0 disables the cache
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string // json or text
}

// Memory reports whether the stores run in memory.
func (c *Config) Memory() bool {
	return c.Database.DSN == ""
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// the JWT secret must be set explicitly.
func Load() (*Config, error) {
	var errs []error
	intVar := func(key string, fallback int) int {
		n, err := getEnvInt(key, fallback)
		errs = append(errs, err)
		return n
	}
	floatVar := func(key string, fallback float64) float64 {
		f, err := getEnvFloat(key, fallback)
		errs = append(errs, err)
		return f
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		d, err := getEnvDuration(key, fallback)
		errs = append(errs, err)
		return d
	}

	cfg := &Config{
		Database: DatabaseConfig{
			DSN:      getEnv("ATTORNEY_DATABASE_DSN", ""),
			MaxConns: intVar("ATTORNEY_DATABASE_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:         getEnv("ATTORNEY_REDIS_ADDR", ""),
			Password:     getEnv("ATTORNEY_REDIS_PASSWORD", ""),
			DB:           intVar("ATTORNEY_REDIS_DB", 0),
			OwnershipTTL: durationVar("ATTORNEY_REDIS_OWNERSHIP_TTL", 30*24*time.Hour),
		},
		JWT: JWTConfig{
			Secret:    getEnv("ATTORNEY_JWT_SECRET", ""),
			AccessTTL: durationVar("ATTORNEY_JWT_ACCESS_TTL", time.Hour),
		},
		Server: ServerConfig{
			Addr:            getEnv("ATTORNEY_SERVER_ADDR", ":8080"),
			ReadTimeout:     durationVar("ATTORNEY_SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    durationVar("ATTORNEY_SERVER_WRITE_TIMEOUT", 3*time.Minute),
			ShutdownTimeout: durationVar("ATTORNEY_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:     getEnvList("ATTORNEY_CORS_ORIGINS", []string{"http://localhost:5173"}),
			RateLimit:       floatVar("ATTORNEY_RATE_LIMIT", 20),
			RateBurst:       intVar("ATTORNEY_RATE_BURST", 40),
		},
		Flow: FlowConfig{
			ValidationTimeout: durationVar("ATTORNEY_FLOW_VALIDATION_TIMEOUT", 2*time.Minute),
			RequestTimeout:    durationVar("ATTORNEY_FLOW_REQUEST_TIMEOUT", 150*time.Second),
			InboxLimit:        intVar("ATTORNEY_FLOW_INBOX_LIMIT", 0),
		},
		Directory: DirectoryConfig{
			CacheTTL: durationVar("ATTORNEY_DIRECTORY_CACHE_TTL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("ATTORNEY_LOG_LEVEL", "info"),
			Format: getEnv("ATTORNEY_LOG_FORMAT", "json"),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("ATTORNEY_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("ATTORNEY_JWT_SECRET must be at least 32 characters")
	}

	if c.Memory() {
		log.Warn().Msg("ATTORNEY_DATABASE_DSN is not set; documents are kept in memory and lost on restart")
	}

	// Bounds checks.
	if c.Database.MaxConns < 1 || c.Database.MaxConns > 1000 {
		return fmt.Errorf("ATTORNEY_DATABASE_MAX_CONNS must be 1-1000, got %d", c.Database.MaxConns)
	}
	if c.Redis.OwnershipTTL < 0 {
		return fmt.Errorf("ATTORNEY_REDIS_OWNERSHIP_TTL must not be negative, got %s", c.Redis.OwnershipTTL)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("ATTORNEY_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("ATTORNEY_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("ATTORNEY_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("ATTORNEY_SERVER_SHUTDOWN_TIMEOUT must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("ATTORNEY_RATE_LIMIT must be positive, got %g", c.Server.RateLimit)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("ATTORNEY_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Flow.ValidationTimeout <= 0 {
		return fmt.Errorf("ATTORNEY_FLOW_VALIDATION_TIMEOUT must be positive, got %s", c.Flow.ValidationTimeout)
	}
	if c.Flow.RequestTimeout < 0 {
		return fmt.Errorf("ATTORNEY_FLOW_REQUEST_TIMEOUT must not be negative, got %s", c.Flow.RequestTimeout)
	}
	if c.Flow.InboxLimit < 0 {
		return fmt.Errorf("ATTORNEY_FLOW_INBOX_LIMIT must be >= 0, got %d", c.Flow.InboxLimit)
	}
	if c.Directory.CacheTTL < 0 {
		return fmt.Errorf("ATTORNEY_DIRECTORY_CACHE_TTL must not be negative, got %s", c.Directory.CacheTTL)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("ATTORNEY_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
