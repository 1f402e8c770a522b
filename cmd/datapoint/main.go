package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/telemetrydev/datapoint/internal/api"
	"github.com/telemetrydev/datapoint/internal/cache"
	"github.com/telemetrydev/datapoint/internal/circuitbreaker"
	"github.com/telemetrydev/datapoint/internal/config"
	"github.com/telemetrydev/datapoint/internal/metrics"
	"github.com/telemetrydev/datapoint/internal/schema"
	"github.com/telemetrydev/datapoint/internal/service"
	"github.com/telemetrydev/datapoint/internal/storage"
)

func main() {
	cfg := config.Load()

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Run migrations
	if err := storage.RunMigrations(ctx, pool); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete")

	prometheus.MustRegister(metrics.NewPoolCollector(pool))

	// Redis-backed cache behind a circuit breaker. A down cache degrades
	// reads to store lookups instead of failing them.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	breaker := circuitbreaker.NewBreaker(cfg.CacheBreakerThreshold, cfg.CacheBreakerCooldown)
	tiered := cache.NewTiered(cache.NewRedisCache(rdb, breaker))

	devices := storage.NewPostgresDeviceStore(pool, cfg.QueryTimeout)
	developers := storage.NewPostgresDeveloperStore(pool, cfg.QueryTimeout)
	platforms := storage.NewPostgresPlatformStore(pool, cfg.QueryTimeout)

	definitions := service.NewDefinitions(devices, developers, tiered, schema.Validate, logger)
	platform := service.NewPlatform(platforms, tiered, schema.Validate, logger)

	warmer := service.NewWarmer(platform, cfg.PlatformWarmInterval, logger)
	go warmer.Run(ctx)
	logger.Info("platform catalog warmer started", "interval", cfg.PlatformWarmInterval)

	// Start HTTP server
	handler := api.NewServer(logger, definitions, platform)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down...")

	// Cancel context to stop the warmer
	cancel()

	// Graceful HTTP shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
