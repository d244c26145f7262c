package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/tenantry/pkg/observability"
)

// SweepResult counts what one maintenance sweep removed
type SweepResult struct {
	StaleCurrentTeams int64
	AuditEvents       int64
}

// Sweep clears current team references that no longer resolve and drops
// audit events older than retention. A zero retention keeps all events.
func (a *App) Sweep(ctx context.Context, retention time.Duration) (SweepResult, error) {
	var result SweepResult

	n, err := a.Teams.ClearStaleCurrentTeams(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to clear stale current teams: %w", err)
	}
	result.StaleCurrentTeams = n

	if retention > 0 {
		removed, err := a.Audit.Cleanup(ctx, time.Now().Add(-retention))
		if err != nil {
			return result, err
		}
		result.AuditEvents = removed
	}
	return result, nil
}

func newMaintainCommand() *Command {
	return &Command{
		Name:        "maintain",
		Description: "Run scheduled maintenance with a metrics and health endpoint",
		Run:         runMaintain,
	}
}

func runMaintain(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("maintain")
	schedule := fs.String("schedule", "@hourly", "Cron schedule for the maintenance sweep")
	retention := fs.Duration("audit-retention", 90*24*time.Hour, "Audit events older than this are deleted (0 keeps all)")
	addr := fs.String("addr", ":9090", "Listen address for /metrics and /health (empty disables)")
	runOnce := fs.Bool("run-once", false, "Run a single sweep and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sweep := func() {
		defer observability.RecoverPanic(app.Logger, "maintenance sweep")

		result, err := app.Sweep(ctx, *retention)
		if err != nil {
			app.Log.WithError(err).Error("Maintenance sweep failed")
			return
		}
		app.Log.WithField("stale_current_teams", result.StaleCurrentTeams).
			WithField("audit_events", result.AuditEvents).
			Info("Maintenance sweep complete")
	}

	if *runOnce {
		result, err := app.Sweep(ctx, *retention)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Cleared %d stale current team(s), deleted %d audit event(s)\n", result.StaleCurrentTeams, result.AuditEvents)
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, sweep); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", *schedule, err)
	}
	if _, err := c.AddFunc("@every 30s", func() { app.Metrics.UpdateDBStats(app.DB.Stats()) }); err != nil {
		return err
	}

	var server *http.Server
	if *addr != "" {
		server = newMaintenanceServer(app, *addr)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.Log.WithError(err).Error("Maintenance server failed")
			}
		}()
		app.Log.WithField("addr", *addr).Info("Serving metrics and health checks")
	}

	c.Start()
	app.Log.WithField("schedule", *schedule).Info("Maintenance scheduler started")

	shutdown := observability.NewShutdownManager(app.Logger, server, 30*time.Second)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		<-c.Stop().Done()
		return nil
	})
	return shutdown.Wait(ctx)
}

func newMaintenanceServer(app *App, addr string) *http.Server {
	mux := http.NewServeMux()
	observability.RegisterMetricsEndpoint(mux, app.Registry)
	observability.RegisterHealthRoutes(mux, observability.NewHealthChecker(app.DB.DB, app.Redis, app.Version))
	return &http.Server{
		Addr:              addr,
		Handler:           observability.HTTPMetricsMiddleware(app.Metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
