package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/platform/config"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/platform/logging"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/realtime"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/redis"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, manager *realtime.Manager, redisClient *redis.Client) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		manager.Shutdown()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				slog.Error("Failed to close Redis connection", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	// Presence persistence is optional: without Redis, heartbeat state is
	// held in memory only and lost across restarts.
	var redisClient *redis.Client
	var presenceStore realtime.PresenceStore
	if cfg.RedisURL != "" {
		redisClient = setupRedis(context.Background(), cfg)
		presenceStore = redis.NewPresenceStore(redisClient)
	}

	presence := realtime.NewPresenceTracker(clock, cfg.DefaultHeartbeatInterval, presenceStore)
	if presenceStore != nil {
		loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := presence.Load(loadCtx); err != nil {
			slog.Warn("Failed to load persisted presence state", "error", err)
		}
		cancel()
	}

	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry, clock)
	manager := realtime.NewManager(registry, broadcaster, clock, cfg.PingInterval, cfg.OutboundBufferSize)
	reporter := realtime.NewReporter(registry, presence, clock)

	// Pass nil explicitly to avoid a typed-nil interface in the readiness probe.
	var srv *server.Server
	if redisClient != nil {
		srv = server.NewServer(cfg, manager, broadcaster, presence, reporter, redisClient, clock)
	} else {
		srv = server.NewServer(cfg, manager, broadcaster, presence, reporter, nil, clock)
	}

	done := runGracefulShutdown(srv, manager, redisClient)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
