// Package config loads tenantry configuration from environment variables.
//
// # Configuration Structure
//
// Database:
//
//	TENANTRY_DB_DRIVER="postgres"   # postgres or sqlite3
//	TENANTRY_DB_URL="postgres://localhost/tenantry?sslmode=disable"
//	TENANTRY_DB_MAX_CONNS="10"
//	TENANTRY_DB_TIMEOUT="10s"
//
// Authorization:
//
//	TENANTRY_DEFAULT_GUARD="web"
//	TENANTRY_PERMISSION_CACHE="lru"   # none, lru, redis
//	TENANTRY_PERMISSION_CACHE_TTL="5m"
//	TENANTRY_PERMISSION_CACHE_SIZE="1024"
//	TENANTRY_REDIS_URL="redis://localhost:6379/0"
//	TENANTRY_BCRYPT_COST="12"
//
// Observability:
//
//	TENANTRY_LOG_LEVEL="info"
//	TENANTRY_METRICS_ADDR=":9090"
//	TENANTRY_OTEL_ENABLED="false"
//	TENANTRY_OTEL_ENDPOINT="localhost:4317"
//
// LoadConfig validates the result and returns the first invalid setting.
package config
