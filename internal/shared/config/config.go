package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Events   EventsConfig
	Legacy   LegacyConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// IsProduction reports whether the service runs in production mode.
// Development-only surfaces (role switching) are registered only when false.
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	// JWTSecret signs session tokens (HS256).
	JWTSecret string
	// SessionTTL bounds how long a persisted session stays valid.
	SessionTTL time.Duration
	// LoginRateLimit is the per-IP requests/second budget on the login endpoint.
	LoginRateLimit int
	LoginRateBurst int
	// BootstrapPassword is the initial Super Admin password when running
	// without a database.
	BootstrapPassword string
}

// EventsConfig holds configuration for the EventStoreDB-backed event bus.
type EventsConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
	Enabled  bool
}

// LegacyConfig points at the legacy CRM's SQL Server instance used by the
// lead import adapter.
type LegacyConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	LeadTable    string
	PollInterval time.Duration
}

func Load() (*Config, error) {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "orbit"),
			Password: getEnv("DB_PASSWORD", "orbit"),
			Database: getEnv("DB_NAME", "orbit"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			SessionTTL:        time.Duration(getEnvInt("SESSION_TTL_HOURS", 12)) * time.Hour,
			LoginRateLimit:    getEnvInt("LOGIN_RATE_LIMIT", 5),
			LoginRateBurst:    getEnvInt("LOGIN_RATE_BURST", 10),
			BootstrapPassword: getEnv("BOOTSTRAP_PASSWORD", "change-me-on-first-login"),
		},
		Events: EventsConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
			Enabled:  getEnvBool("EVENTS_ENABLED", false),
		},
		Legacy: LegacyConfig{
			Enabled:      getEnvBool("LEGACY_IMPORT_ENABLED", false),
			Host:         getEnv("LEGACY_DB_HOST", "localhost"),
			Port:         getEnvInt("LEGACY_DB_PORT", 1433),
			User:         getEnv("LEGACY_DB_USER", ""),
			Password:     getEnv("LEGACY_DB_PASSWORD", ""),
			Database:     getEnv("LEGACY_DB_NAME", "legacy_crm"),
			LeadTable:    getEnv("LEGACY_LEAD_TABLE", "dbo.Leads"),
			PollInterval: time.Duration(getEnvInt("LEGACY_POLL_MINUTES", 15)) * time.Minute,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
