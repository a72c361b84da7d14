package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hiroki-koketsu/go-tasklist/internal/config"
	"github.com/hiroki-koketsu/go-tasklist/internal/handler"
	"github.com/hiroki-koketsu/go-tasklist/internal/repository"
	"github.com/hiroki-koketsu/go-tasklist/internal/settings"
	"github.com/hiroki-koketsu/go-tasklist/internal/storage"
	"github.com/hiroki-koketsu/go-tasklist/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

func main() {
	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(startupLogger); err != nil {
		startupLogger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// run owns every deferred shutdown; main only turns its error into an
// exit code.
func run(startupLogger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	startupLogger.Info("starting application",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("db_path", cfg.DBPath),
		slog.Bool("telemetry", cfg.TelemetryEnabled),
	)

	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, cfg.TelemetryEnabled, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(ctx); err != nil {
			startupLogger.Error("failed to shutdown telemetry", slog.Any("error", err))
		}
	}()
	logger := providers.Logger

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open storage", slog.Any("error", err))
		return err
	}
	defer store.Close()

	// A corrupt record is not fatal: start from defaults and let the next
	// save overwrite it.
	tasks, err := store.LoadTasks(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrMalformed) {
			logger.Error("failed to load tasks", slog.Any("error", err))
			return err
		}
		logger.Warn("stored tasks unreadable, starting empty", slog.Any("error", err))
	}

	prefs, err := store.LoadSettings(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrMalformed) {
			logger.Error("failed to load settings", slog.Any("error", err))
			return err
		}
		logger.Warn("stored settings unreadable, using defaults", slog.Any("error", err))
		prefs = settings.Default()
	}

	taskRepo := repository.NewTaskRepository(store, tasks)
	settingsRepo := repository.NewSettingsRepository(store, prefs)
	logger.Info("state loaded", slog.Int64("tasks", taskRepo.Count()), slog.Int64("open", taskRepo.OpenCount()))

	// Create metrics instruments
	meter := otel.Meter(cfg.ServiceName)
	metrics, err := telemetry.NewMetrics(meter, taskRepo)
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		return err
	}

	taskHandler := handler.NewTaskHandler(taskRepo, settingsRepo, logger, metrics)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (excluded from tracing)
	r.Get("/health", taskHandler.Health)

	r.Mount("/api/v1", taskHandler.APIRoutes())

	otelHandler := otelhttp.NewHandler(r, "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
		return err
	case <-quit:
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
	return nil
}
