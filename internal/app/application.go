// Package app assembles the process lifecycle: load config, build the DI
// container, start the HTTP server and background scheduler, then wait for
// a signal to shut everything down in reverse order.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/api/routes"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/config"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/di"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/workers"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/tracing"
)

type Application struct {
	cfg             *config.Config
	logger          *zap.Logger
	server          *http.Server
	container       *di.Container
	scheduler       *workers.Scheduler
	tracingShutdown func(context.Context) error
}

func NewApplication() *Application {
	return &Application{}
}

// Initialize loads configuration, builds the dependency graph, and wires
// the HTTP server — everything that can fail before the process is ready
// to accept traffic.
func (app *Application) Initialize() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app.cfg = cfg

	logger, err := zap.NewProduction()
	if cfg.Env != "production" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	app.logger = logger

	tracingShutdown, err := tracing.Init(context.Background(), tracing.Config{
		Enabled:      cfg.Env == "production",
		CollectorURL: cfg.OTELCollectorURL,
		Environment:  cfg.Env,
		SampleRate:   0.1,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	app.tracingShutdown = tracingShutdown

	container, err := di.Build(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("build dependency graph: %w", err)
	}
	app.container = container

	app.scheduler = workers.NewScheduler(container.Idempotency, container.Sessions, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := routes.New(container)

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return nil
}

// Start begins serving HTTP traffic and the background maintenance
// schedule. Server failures other than a clean shutdown are fatal.
func (app *Application) Start() error {
	go func() {
		app.logger.Info("starting server", zap.Int("port", app.cfg.HTTPPort), zap.String("env", app.cfg.Env))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("server failed", zap.Error(err))
		}
	}()

	if err := app.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	return nil
}

// WaitForShutdown blocks until the process receives SIGINT or SIGTERM.
func (app *Application) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// Shutdown drains in-flight requests, stops the scheduler, and releases
// the store pool and Redis client, in that order so no request is cut off
// mid-transaction.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("server forced to shutdown", zap.Error(err))
	}

	app.scheduler.Stop()

	if app.tracingShutdown != nil {
		if err := app.tracingShutdown(context.Background()); err != nil {
			app.logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}

	if err := app.container.Close(); err != nil {
		app.logger.Error("error closing dependency graph", zap.Error(err))
		return err
	}

	app.logger.Info("shutdown complete")
	return nil
}
