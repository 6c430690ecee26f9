package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/auditdbio/eventgate/internal/auth"
	"github.com/auditdbio/eventgate/internal/broker"
	"github.com/auditdbio/eventgate/internal/httpserver"
	"github.com/auditdbio/eventgate/internal/metrics"
	"github.com/auditdbio/eventgate/internal/platform/config"
	"github.com/auditdbio/eventgate/internal/platform/logging"
	"github.com/auditdbio/eventgate/internal/platform/version"
	"github.com/auditdbio/eventgate/internal/redisfeed"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, redisURL string) *goredis.Client {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		slog.Error("Invalid REDIS_URL", "error", err)
		os.Exit(1)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, registry *broker.Registry, stopFeed context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		stopFeed()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		registry.CloseAll("Server shutting down")

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	info := version.Get()
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.BuildTime, runtime.Version()).Set(1)

	verifier := auth.NewTokenVerifier(cfg.JWTSecret)
	registry := broker.NewRegistry()
	dispatcher := broker.NewDispatcher(registry)

	opts := broker.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		SendBufferSize:    cfg.SendBufferSize,
	}
	gateway := broker.NewGateway(registry, verifier, opts, clock)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()

	var healthChecks []httpserver.HealthCheck
	if cfg.RedisURL != "" {
		redisClient := setupRedis(context.Background(), cfg.RedisURL)
		defer func() { _ = redisClient.Close() }()

		feed := redisfeed.New(redisClient, cfg.EventChannel, dispatcher)
		go feed.Run(feedCtx)

		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	srv := httpserver.NewServer(cfg, dispatcher, gateway, healthChecks)

	done := runGracefulShutdown(srv, registry, stopFeed)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
