package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the booking backend
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Voucher  VoucherConfig
	Outbox   OutboxConfig
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	Driver             string // "pgx" (default) or "postgres" (lib/pq)
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds the shared secret used to verify admin console access tokens
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RedisConfig holds the notification transport configuration
type RedisConfig struct {
	URL                string
	NotificationStream string
}

// ProviderConfig holds the hotel provider client configuration
type ProviderConfig struct {
	APIURL           string
	APIKey           string
	RetryTimeout     time.Duration // Upper bound for a single reconciliation retry call
	MaxRetryFailures int           // Failed retries allowed per booking within RetryWindow
	RetryWindow      time.Duration
}

// VoucherConfig holds the voucher document store configuration
type VoucherConfig struct {
	StoreURL string
	Timeout  time.Duration
}

// OutboxConfig controls the side-effect outbox drainer
type OutboxConfig struct {
	DrainSchedule string // cron spec with seconds, e.g. "*/15 * * * * *"
	BatchSize     int
	MaxAttempts   int
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRequestLog bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Driver:             getEnv("DATABASE_DRIVER", "pgx"),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "voyago-admin-auth"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Redis: RedisConfig{
			URL:                getEnv("REDIS_URL", ""),
			NotificationStream: getEnv("NOTIFICATION_STREAM", "booking-notifications"),
		},
		Provider: ProviderConfig{
			APIURL:           getEnv("HOTEL_PROVIDER_API_URL", ""),
			APIKey:           getEnv("HOTEL_PROVIDER_API_KEY", ""),
			RetryTimeout:     time.Duration(getEnvAsInt("PROVIDER_RETRY_TIMEOUT_SECONDS", 20)) * time.Second,
			MaxRetryFailures: getEnvAsInt("PROVIDER_RETRY_MAX_FAILURES", 5),
			RetryWindow:      time.Duration(getEnvAsInt("PROVIDER_RETRY_WINDOW_MINUTES", 15)) * time.Minute,
		},
		Voucher: VoucherConfig{
			StoreURL: getEnv("VOUCHER_STORE_URL", ""),
			Timeout:  time.Duration(getEnvAsInt("VOUCHER_STORE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Outbox: OutboxConfig{
			DrainSchedule: getEnv("OUTBOX_DRAIN_SCHEDULE", "*/15 * * * * *"),
			BatchSize:     getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
			MaxAttempts:   getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 10),
		},
		Security: SecurityConfig{
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Database.Driver != "pgx" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'pgx' or 'postgres')", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Provider.RetryTimeout <= 0 {
		return fmt.Errorf("PROVIDER_RETRY_TIMEOUT_SECONDS must be positive")
	}

	if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE and OUTBOX_MAX_ATTEMPTS must be positive")
	}

	// Production needs real collaborators behind reconciliation and notifications
	if c.Server.Environment == "production" {
		if c.Provider.APIURL == "" {
			return fmt.Errorf("HOTEL_PROVIDER_API_URL is required in production")
		}
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required in production")
		}
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
