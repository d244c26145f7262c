package config

import (
	"testing"
	"time"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_UNSET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_BOOL_UNSET", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Second))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "web", cfg.Authorization.DefaultGuard)
	assert.Equal(t, CacheBackendLRU, cfg.Authorization.CacheBackend)
	assert.Equal(t, 5*time.Minute, cfg.Authorization.CacheTTL)
	assert.Equal(t, 12, cfg.Authorization.BcryptCost)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.OTel().Enabled)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("TENANTRY_DB_DRIVER", "postgres")
	t.Setenv("TENANTRY_DB_URL", "postgres://localhost/tenantry?sslmode=disable")
	t.Setenv("TENANTRY_PERMISSION_CACHE", "REDIS")
	t.Setenv("TENANTRY_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TENANTRY_LOG_LEVEL", "debug")
	t.Setenv("TENANTRY_DEFAULT_GUARD", "api")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, CacheBackendRedis, cfg.Authorization.CacheBackend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "api", cfg.Authorization.DefaultGuard)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: loadDatabaseConfig(),
			Authorization: AuthorizationConfig{
				DefaultGuard: "web",
				CacheBackend: CacheBackendLRU,
				CacheSize:    10,
				BcryptCost:   10,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "invalid database driver"},
		{name: "missing url", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: "database URL is required"},
		{name: "missing guard", mutate: func(c *Config) { c.Authorization.DefaultGuard = "" }, wantErr: "default guard"},
		{name: "lru without size", mutate: func(c *Config) { c.Authorization.CacheSize = 0 }, wantErr: "cache size"},
		{name: "redis without url", mutate: func(c *Config) { c.Authorization.CacheBackend = CacheBackendRedis }, wantErr: "redis URL is required"},
		{name: "unknown cache", mutate: func(c *Config) { c.Authorization.CacheBackend = "memcached" }, wantErr: "invalid permission cache backend"},
		{name: "no cache", mutate: func(c *Config) { c.Authorization.CacheBackend = CacheBackendNone }},
		{name: "bcrypt too low", mutate: func(c *Config) { c.Authorization.BcryptCost = 2 }, wantErr: "bcrypt cost"},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "x"
			},
			wantErr: "OpenTelemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
