// Package main provides the entry point for the scamshield server, a
// threat scoring and reputation engine for URLs, emails, and phone numbers.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lvonguyen/scamshield/internal/api"
	"github.com/lvonguyen/scamshield/internal/classifier"
	"github.com/lvonguyen/scamshield/internal/config"
	"github.com/lvonguyen/scamshield/internal/indicator"
	"github.com/lvonguyen/scamshield/internal/observability"
	"github.com/lvonguyen/scamshield/internal/reports"
	"github.com/lvonguyen/scamshield/internal/reputation"
)

// Version information (injected at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("scamshield %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	// Local development secrets; absence is fine in production.
	_ = godotenv.Load()

	cfg := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	cfg.Telemetry.ServiceVersion = Version
	telemetry, err := observability.New(cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
		os.Exit(1)
	}
	logger := telemetry.Logger()
	logger.Info("starting scamshield",
		zap.String("version", Version),
		zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	telemetry.StartSystemMetricsCollector(ctx)

	refs, err := reputation.NewService(cfg.Reputation, logger)
	if err != nil {
		logger.Fatal("reference data load failed", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password(),
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", zap.Error(err))
		}
		pingCancel()
	}

	var store reports.Store
	var readiness api.Pinger
	if cfg.Reports.Backend == "redis" {
		redisStore := reports.NewRedisStore(redisClient, cfg.Reports.KeyPrefix, logger)
		store = redisStore
		readiness = redisStore
	} else {
		store = reports.NewMemoryStore()
	}

	analyzer := classifier.NewAnalyzer(refs, logger, telemetry.Metrics())
	reportSvc := reports.NewService(store, indicator.NewNormalizer(refs), logger, telemetry.Metrics())

	var limiter *api.RateLimiter
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter = api.NewRateLimiter(redisClient, cfg.RateLimit, logger)
	}

	server := api.NewServer(analyzer, reportSvc, limiter, telemetry, readiness, Version)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if redisClient != nil {
		redisClient.Close()
	}
	telemetry.Shutdown(shutdownCtx)

	logger.Info("server stopped")
}
