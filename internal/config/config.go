// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	CORSOrigins []string
	LogLevel    slog.Level
	Timeout     TimeoutConfig

	Database DatabaseConfig
	Auth     AuthConfig
	Oracle   OracleConfig
	Lock     LockConfig
}

// TimeoutConfig holds HTTP and health-check timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Shutdown    time.Duration
}

// DatabaseConfig selects and locates the store.
type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	Path   string // SQLite file
	URL    string // PostgreSQL DSN
}

// AuthConfig controls bearer-token verification.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// OracleConfig controls the generation backend.
type OracleConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxRetries     int
	RecordAttempts bool
}

// LockConfig selects the advisory lock backend.
type LockConfig struct {
	Backend   string // "memory" or "redis"
	RedisAddr string
	TTL       time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:    parseLevel(getEnv("LOG_LEVEL", "info")),
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Shutdown:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:   getEnv("DB_PATH", "./data/tutor.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			JWTIssuer:   getEnv("JWT_ISSUER", ""),
			JWTAudience: getEnv("JWT_AUDIENCE", ""),
		},
		Oracle: OracleConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:        getEnvDuration("ORACLE_TIMEOUT", 45*time.Second),
			MaxRetries:     getEnvInt("ORACLE_MAX_RETRIES", 2),
			RecordAttempts: getEnvBool("ORACLE_RECORD_ATTEMPTS", false),
		},
		Lock: LockConfig{
			Backend:   strings.ToLower(getEnv("LOCK_BACKEND", "memory")),
			RedisAddr: getEnv("REDIS_ADDR", ""),
			TTL:       getEnvDuration("LOCK_TTL", 0),
		},
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = cfg.StageBudget()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY cannot be empty")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be > 0")
	}
	if c.Oracle.MaxRetries < 0 {
		return fmt.Errorf("ORACLE_MAX_RETRIES must be >= 0")
	}
	switch c.Lock.Backend {
	case "memory":
	case "redis":
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when LOCK_BACKEND=redis")
		}
	default:
		return fmt.Errorf("LOCK_BACKEND must be memory or redis, got %q", c.Lock.Backend)
	}
	if budget := c.StageBudget(); c.Lock.TTL < budget {
		return fmt.Errorf("LOCK_TTL must cover the oracle budget of %s, got %s", budget, c.Lock.TTL)
	}
	return nil
}

// stageSlack covers retry backoff and the store writes around oracle calls.
const stageSlack = 30 * time.Second

// StageBudget is the longest a single stage run may take: every oracle
// attempt at its full timeout plus slack.
func (c *Config) StageBudget() time.Duration {
	return c.Oracle.Timeout*time.Duration(c.Oracle.MaxRetries+1) + stageSlack
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
