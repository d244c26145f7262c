package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/platinummonkey/tenantry/pkg/accounts"
	"github.com/platinummonkey/tenantry/pkg/audit"
	"github.com/platinummonkey/tenantry/pkg/authz"
	"github.com/platinummonkey/tenantry/pkg/config"
	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/rbac"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/teams"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
	"github.com/platinummonkey/tenantry/pkg/users"
)

// Migrations lists every schema the commands operate on, in dependency order
var Migrations = [][]storage.Migration{
	tenancy.Migrations,
	users.Migrations,
	teams.Migrations,
	rbac.Migrations,
	audit.Migrations,
}

// App holds the services the commands share
type App struct {
	DB       *storage.DB
	Redis    *redis.Client
	Users    *users.Service
	Tenants  *tenancy.Store
	Teams    *teams.Service
	Current  *teams.CurrentTeam
	Catalog  *rbac.Catalog
	Accounts *accounts.Registrar
	Authz    *authz.Authorizer
	Audit    *audit.DBLogger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Logger   *observability.Logger
	Log      *logrus.Logger
	Out      io.Writer
	Version  string
}

// Opener builds the App for a command run
type Opener func(ctx context.Context) (*App, error)

// NewApp wires the services over an open database. redisClient may be nil
// unless auth selects the Redis permission cache.
func NewApp(db *storage.DB, redisClient *redis.Client, auth config.AuthorizationConfig, log *logrus.Logger) (*App, error) {
	if log == nil {
		log = logrus.New()
	}
	logger := observability.NewLogger(observability.ParseLogLevel(log.GetLevel().String()), os.Stderr)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	otelMetrics, err := observability.NewOTelMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	auditLog, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}

	opts := []rbac.Option{rbac.WithLogger(logger)}
	if auth.DefaultGuard != "" {
		opts = append(opts, rbac.WithGuard(auth.DefaultGuard))
	}
	switch auth.CacheBackend {
	case config.CacheBackendLRU:
		opts = append(opts, rbac.WithCache(rbac.NewLRUCache(auth.CacheSize, auth.CacheTTL, metrics)))
	case config.CacheBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis permission cache requires a redis client")
		}
		opts = append(opts, rbac.WithCache(rbac.NewRedisCache(redisClient, auth.CacheTTL, logger, metrics)))
	}
	catalog := rbac.NewCatalog(db, opts...)

	auditLogger := audit.NewMultiLogger(auditLog, audit.NewStructuredLogger(logger))
	resolver := teams.NewResolver(db, catalog, logger)
	scope := tenancy.NewScopeEnforcer(logger, metrics)

	userService := users.NewService(users.NewStore(db), scope)
	tenants := tenancy.NewStore(db, logger)
	teamService := teams.NewService(db, teams.WithLogger(logger), teams.WithMetrics(metrics), teams.WithOTelMetrics(otelMetrics), teams.WithAuditLogger(auditLogger), teams.WithCatalog(catalog))
	current := teams.NewCurrentTeam(db, resolver, logger, metrics, otelMetrics)

	return &App{
		DB:      db,
		Redis:   redisClient,
		Users:   userService,
		Tenants: tenants,
		Teams:   teamService,
		Current: current,
		Catalog: catalog,
		Accounts: accounts.NewRegistrar(accounts.Config{
			DB:      db,
			Users:   userService,
			Tenants: tenants,
			Teams:   teamService,
			Catalog: catalog,
			Audit:   auditLogger,
			Logger:  logger,
		}),
		Authz: authz.NewAuthorizer(scope, resolver,
			authz.WithTenantAccess(tenants),
			authz.WithCatalog(catalog),
			authz.WithLogger(logger),
			authz.WithMetrics(metrics),
			authz.WithOTelMetrics(otelMetrics),
		),
		Audit:    auditLog,
		Registry: registry,
		Metrics:  metrics,
		Logger:   logger,
		Log:      log,
		Out:      os.Stdout,
	}, nil
}

// OpenFromConfig connects to the configured database and Redis
func OpenFromConfig(cfg *config.Config, log *logrus.Logger) Opener {
	return func(ctx context.Context) (*App, error) {
		db, err := storage.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}

		var client *redis.Client
		if cfg.Redis.URL != "" {
			client, err = storage.OpenRedis(ctx, cfg.Redis)
			if err != nil {
				db.Close()
				return nil, err
			}
		}

		app, err := NewApp(db, client, cfg.Authorization, log)
		if err != nil {
			if client != nil {
				client.Close()
			}
			db.Close()
			return nil, err
		}
		return app, nil
	}
}

// Close releases the database and Redis connections
func (a *App) Close() error {
	if a.Redis != nil {
		a.Redis.Close()
	}
	return a.DB.Close()
}
