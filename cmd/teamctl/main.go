package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/tenantry/pkg/cli"
	"github.com/platinummonkey/tenantry/pkg/config"
	"github.com/platinummonkey/tenantry/pkg/observability"
)

var version = "dev"

var logLevel = flag.String("log-level", getEnv("TENANTRY_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

func main() {
	flag.Parse()
	logger := setupLogger(*logLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, cfg.OTel(), observability.NewLogger(cfg.Observability.LogLevel, os.Stderr))
	if err != nil {
		logger.WithError(err).Warn("OpenTelemetry disabled")
	} else {
		defer observability.ShutdownOTel(context.Background(), providers, observability.NopLogger())
	}

	open := cli.OpenFromConfig(cfg, logger)
	root := cli.NewRootCommand(func(ctx context.Context) (*cli.App, error) {
		app, err := open(ctx)
		if err != nil {
			return nil, err
		}
		app.Version = version
		return app, nil
	})

	if err := root.Execute(ctx, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
