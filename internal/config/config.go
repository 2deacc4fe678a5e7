// Package config loads service configuration from flags and environment variables
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenValidity is how long an issued content token stays valid
const DefaultTokenValidity = 24 * time.Hour

// DefaultStoreTimeout bounds every rule store and access log call
const DefaultStoreTimeout = 5 * time.Second

const minSecretLength = 32

// Config holds all configuration for the access API
type Config struct {
	Environment string
	Version     string
	Service     ServiceConfig
	Logging     LoggingConfig
	Security    SecurityConfig
	Token       TokenConfig
	DB          DBConfig
	Redis       RedisConfig
	Content     ContentConfig
	Metrics     MetricsConfig
}

// ServiceConfig holds service-specific configuration
type ServiceConfig struct {
	Name           string
	Port           string
	Host           string
	AllowedOrigins string
	CORSMaxAge     int

	// TrustProxyHeaders takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// SecurityConfig holds admin and hashing configuration
type SecurityConfig struct {
	AdminAPIKey string
	BcryptCost  int
}

// TokenConfig holds content token configuration
type TokenConfig struct {
	Secret   string
	Issuer   string
	Validity time.Duration
}

// DBConfig holds database configuration
type DBConfig struct {
	Driver       string
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	Path         string
	RunMigration bool
	StoreTimeout time.Duration
}

// RedisConfig holds the optional access log stream mirror configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// Enabled reports whether the Redis mirror is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ContentConfig holds the protected content location and known content types
type ContentConfig struct {
	Dir       string
	TypesFile string
}

// MetricsConfig holds metrics exporter configuration
type MetricsConfig struct {
	Exporter     string
	OTLPEndpoint string
}

// LoadConfig loads configuration from the given command line arguments and environment variables
func LoadConfig(serviceName string, args []string) (*Config, error) {
	env := GetEnvOrDefault("ENVIRONMENT", "local")

	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	envFlag := fs.String("env", env, "Environment: local or production")
	port := fs.String("port", GetEnvOrDefault("PORT", "8787"), "Service port")
	host := fs.String("host", GetEnvOrDefault("HOST", "0.0.0.0"), "Host address")
	logLevel := fs.String("log-level", GetEnvOrDefault("LOG_LEVEL", getDefaultLogLevel(env)), "Log level")
	logFormat := fs.String("log-format", GetEnvOrDefault("LOG_FORMAT", getDefaultLogFormat(env)), "Log format")
	migrate := fs.Bool("migrate", GetEnvBoolOrDefault("RUN_MIGRATION", env != "production"), "Run database migrations on startup")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	finalEnv := *envFlag

	storeTimeout, err := GetEnvDurationOrDefault("STORE_TIMEOUT", DefaultStoreTimeout)
	if err != nil {
		return nil, err
	}
	validity, err := GetEnvDurationOrDefault("ACCESS_TOKEN_TTL", DefaultTokenValidity)
	if err != nil {
		return nil, err
	}
	if validity <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", validity)
	}
	bcryptCost, err := GetEnvIntOrDefault("BCRYPT_COST", 10)
	if err != nil {
		return nil, err
	}
	redisDB, err := GetEnvIntOrDefault("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	corsMaxAge, err := GetEnvIntOrDefault("CORS_MAX_AGE", 86400)
	if err != nil {
		return nil, err
	}

	secret, err := resolveTokenSecret(finalEnv, os.Getenv("ACCESS_TOKEN_SECRET"))
	if err != nil {
		return nil, err
	}

	adminKey := os.Getenv("ADMIN_API_KEY")
	if adminKey == "" && finalEnv == "production" {
		return nil, errors.New("ADMIN_API_KEY is required in production")
	}

	cfg := &Config{
		Environment: finalEnv,
		Version:     GetEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Service: ServiceConfig{
			Name:              serviceName,
			Port:              *port,
			Host:              *host,
			AllowedOrigins:    GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			CORSMaxAge:        corsMaxAge,
			TrustProxyHeaders: GetEnvBoolOrDefault("TRUST_PROXY_HEADERS", false),
		},
		Logging: LoggingConfig{
			Level:  *logLevel,
			Format: *logFormat,
		},
		Security: SecurityConfig{
			AdminAPIKey: adminKey,
			BcryptCost:  bcryptCost,
		},
		Token: TokenConfig{
			Secret:   secret,
			Issuer:   GetEnvOrDefault("ACCESS_TOKEN_ISSUER", serviceName),
			Validity: validity,
		},
		DB: DBConfig{
			Driver:       GetEnvOrDefault("DB_DRIVER", getDefaultDBDriver(finalEnv)),
			Host:         GetEnvOrDefault("DB_HOST", "localhost"),
			Port:         GetEnvOrDefault("DB_PORT", "5432"),
			Username:     GetEnvOrDefault("DB_USERNAME", "postgres"),
			Password:     GetEnvOrDefault("DB_PASSWORD", ""),
			Database:     GetEnvOrDefault("DB_NAME", "access_api"),
			SSLMode:      GetEnvOrDefault("DB_SSLMODE", "require"),
			Path:         GetEnvOrDefault("DB_PATH", "access.db"),
			RunMigration: *migrate,
			StoreTimeout: storeTimeout,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Stream:   GetEnvOrDefault("ACCESS_LOG_STREAM", "access-logs"),
		},
		Content: ContentConfig{
			Dir:       GetEnvOrDefault("CONTENT_DIR", "content"),
			TypesFile: GetEnvOrDefault("CONTENT_TYPES_FILE", "config/content_types.yaml"),
		},
		Metrics: MetricsConfig{
			Exporter:     GetEnvOrDefault("METRICS_EXPORTER", "prometheus"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	return cfg, nil
}

// resolveTokenSecret returns the configured signing secret. Outside production a
// random secret is generated when none is set, so tokens do not survive a restart.
func resolveTokenSecret(env, secret string) (string, error) {
	if secret != "" {
		if env == "production" && len(secret) < minSecretLength {
			return "", fmt.Errorf("ACCESS_TOKEN_SECRET must be at least %d bytes in production", minSecretLength)
		}
		return secret, nil
	}
	if env == "production" {
		return "", errors.New("ACCESS_TOKEN_SECRET is required in production")
	}

	buf := make([]byte, minSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	slog.Warn("ACCESS_TOKEN_SECRET not set, using a random secret", "environment", env)
	return hex.EncodeToString(buf), nil
}

// GetEnvOrDefault returns the environment variable value or a default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvBoolOrDefault parses a boolean environment variable
func GetEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// GetEnvIntOrDefault parses an integer environment variable
func GetEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// GetEnvDurationOrDefault parses a duration environment variable such as "24h" or "5s"
func GetEnvDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getDefaultLogLevel(env string) string {
	if env == "production" {
		return "warn"
	}
	return "debug"
}

func getDefaultLogFormat(env string) string {
	if env == "production" {
		return "json"
	}
	return "text"
}

func getDefaultDBDriver(env string) string {
	if env == "production" {
		return "postgres"
	}
	return "sqlite"
}
