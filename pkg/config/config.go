package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/storage"
)

// Permission cache backends
const (
	CacheBackendNone  = "none"
	CacheBackendLRU   = "lru"
	CacheBackendRedis = "redis"
)

// Config holds all application configuration
type Config struct {
	Database      storage.Config
	Redis         storage.RedisConfig
	Authorization AuthorizationConfig
	Observability ObservabilityConfig
}

// AuthorizationConfig holds role/permission catalog settings
type AuthorizationConfig struct {
	// DefaultGuard is the guard name given to roles and permissions that do
	// not name one.
	DefaultGuard string

	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int

	BcryptCost int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool
	MetricsAddr    string

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Authorization: loadAuthorizationConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadDatabaseConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Driver = getEnv("TENANTRY_DB_DRIVER", cfg.Driver)
	cfg.URL = getEnv("TENANTRY_DB_URL", cfg.URL)
	cfg.MaxConns = getEnvInt("TENANTRY_DB_MAX_CONNS", cfg.MaxConns)
	cfg.MinConns = getEnvInt("TENANTRY_DB_MIN_CONNS", cfg.MinConns)
	cfg.Timeout = getEnvDuration("TENANTRY_DB_TIMEOUT", cfg.Timeout)
	cfg.MaxLifetime = getEnvDuration("TENANTRY_DB_MAX_LIFETIME", cfg.MaxLifetime)
	cfg.MaxIdleTime = getEnvDuration("TENANTRY_DB_MAX_IDLE_TIME", cfg.MaxIdleTime)
	return cfg
}

func loadRedisConfig() storage.RedisConfig {
	return storage.RedisConfig{
		URL:        getEnv("TENANTRY_REDIS_URL", ""),
		Password:   getEnv("TENANTRY_REDIS_PASSWORD", ""),
		DB:         getEnvInt("TENANTRY_REDIS_DB", 0),
		MaxRetries: getEnvInt("TENANTRY_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("TENANTRY_REDIS_POOL_SIZE", 10),
	}
}

func loadAuthorizationConfig() AuthorizationConfig {
	return AuthorizationConfig{
		DefaultGuard: getEnv("TENANTRY_DEFAULT_GUARD", "web"),
		CacheBackend: strings.ToLower(getEnv("TENANTRY_PERMISSION_CACHE", CacheBackendLRU)),
		CacheTTL:     getEnvDuration("TENANTRY_PERMISSION_CACHE_TTL", 5*time.Minute),
		CacheSize:    getEnvInt("TENANTRY_PERMISSION_CACHE_SIZE", 1024),
		BcryptCost:   getEnvInt("TENANTRY_BCRYPT_COST", 12),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("TENANTRY_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("TENANTRY_METRICS_ENABLED", true),
		MetricsAddr:        getEnv("TENANTRY_METRICS_ADDR", ":9090"),
		OTelEnabled:        getEnvBool("TENANTRY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("TENANTRY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("TENANTRY_OTEL_SERVICE_NAME", "tenantry"),
		OTelServiceVersion: getEnv("TENANTRY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("TENANTRY_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch storage.Dialect(c.Database.Driver) {
	case storage.DialectPostgres, storage.DialectSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Authorization.DefaultGuard == "" {
		return fmt.Errorf("default guard name is required")
	}
	switch c.Authorization.CacheBackend {
	case CacheBackendNone:
	case CacheBackendLRU:
		if c.Authorization.CacheSize <= 0 {
			return fmt.Errorf("permission cache size must be positive")
		}
	case CacheBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis permission cache")
		}
	default:
		return fmt.Errorf("invalid permission cache backend: %s (must be none, lru, or redis)", c.Authorization.CacheBackend)
	}
	if c.Authorization.BcryptCost < 4 || c.Authorization.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// OTel returns the OpenTelemetry settings in the form InitOTel expects
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
