package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Workflow     WorkflowConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
	Service     string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	BootstrapLogin        string
	BootstrapPassword     string
	BootstrapFullName     string
}

// WorkflowConfig tunes ticket lifecycle rules.
type WorkflowConfig struct {
	OverdueThresholdDays int
	OverdueDigestMinutes int
}

// NotificationConfig controls inbox delivery.
type NotificationConfig struct {
	// FallbackRole receives ticket notifications when no master is assigned.
	// Empty means nobody does.
	FallbackRole          string
	InboxLimit            int
	UnreadCacheTTLSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold := getEnvAsInt("WORKFLOW_OVERDUE_THRESHOLD_DAYS", 7)
	if threshold <= 0 {
		return nil, fmt.Errorf("invalid WORKFLOW_OVERDUE_THRESHOLD_DAYS: %d", threshold)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appName := getEnv("APP_NAME", "repair-service")
	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: appEnv == "development",
			Service:     appName,
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapLogin:        os.Getenv("AUTH_BOOTSTRAP_LOGIN"),
			BootstrapPassword:     os.Getenv("AUTH_BOOTSTRAP_PASSWORD"),
			BootstrapFullName:     getEnv("AUTH_BOOTSTRAP_FULL_NAME", "Администратор"),
		},
		Workflow: WorkflowConfig{
			OverdueThresholdDays: threshold,
			OverdueDigestMinutes: getEnvAsInt("WORKFLOW_OVERDUE_DIGEST_MINUTES", 0),
		},
		Notification: NotificationConfig{
			FallbackRole:          fallbackRole(getEnv("NOTIFY_FALLBACK_ROLE", "Менеджер")),
			InboxLimit:            getEnvAsInt("NOTIFY_INBOX_LIMIT", 50),
			UnreadCacheTTLSeconds: getEnvAsInt("NOTIFY_UNREAD_CACHE_TTL_SECONDS", 300),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// UnreadCacheTTL returns how long cached unread counters live.
func (n NotificationConfig) UnreadCacheTTL() time.Duration {
	if n.UnreadCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(n.UnreadCacheTTLSeconds) * time.Second
}

// DigestInterval returns the overdue digest period, zero when disabled.
func (w WorkflowConfig) DigestInterval() time.Duration {
	if w.OverdueDigestMinutes <= 0 {
		return 0
	}
	return time.Duration(w.OverdueDigestMinutes) * time.Minute
}

func fallbackRole(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), "none") {
		return ""
	}
	return strings.TrimSpace(value)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
