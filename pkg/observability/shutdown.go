package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager stops a server and runs cleanup hooks once ctx is done.
type ShutdownManager struct {
	logger        *Logger
	server        *http.Server
	shutdownFuncs []ShutdownFunc
	timeout       time.Duration
}

// NewShutdownManager creates a new shutdown manager. server may be nil.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{logger: logger, server: server, timeout: timeout}
}

// RegisterShutdownFunc registers a function to call during shutdown.
// Hooks run in registration order.
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.shutdownFuncs = append(sm.shutdownFuncs, fn)
}

// Wait blocks until ctx is cancelled (typically by signal.NotifyContext) and
// then shuts everything down within the configured timeout.
func (sm *ShutdownManager) Wait(ctx context.Context) error {
	<-ctx.Done()
	sm.logger.Info("Starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	var errs []error
	if sm.server != nil {
		if err := sm.server.Shutdown(shutdownCtx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			errs = append(errs, fmt.Errorf("HTTP server shutdown failed: %w", err))
		}
	}

	for i, fn := range sm.shutdownFuncs {
		if err := fn(shutdownCtx); err != nil {
			sm.logger.WithError(err).Errorf("Shutdown function %d failed", i)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	sm.logger.Info("Graceful shutdown complete")
	return nil
}
