// QUIC chat server.
//
// The process wires together the credential store, the persistence
// gateway, the domain services, and the QUIC session layer:
//
//  1. Load configuration from environment variables (.env supported)
//  2. Initialize structured logging with environment-appropriate levels
//  3. Create worker pools for push fan-out and background work
//  4. Establish the Redis cache connection with memory fallback
//  5. Connect to PostgreSQL and apply the schema
//  6. Construct token issuer, services, dispatcher, and registry
//  7. Listen for QUIC connections and serve until shutdown
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"quic-chat-system/internal/auth"
	"quic-chat-system/internal/cache"
	"quic-chat-system/internal/config"
	"quic-chat-system/internal/database"
	"quic-chat-system/internal/server"
	"quic-chat-system/internal/service"
	"quic-chat-system/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Server.Environment == "development" {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	poolManager := workers.NewPoolManager(workers.PoolConfig{
		NotifyWorkers:  8,
		GeneralWorkers: 4,
	})

	cacheService := newCache(cfg)

	// The memory cache has no server-side TTL; sweep expired entries
	// periodically on the general pool.
	if memCache, isMemory := cacheService.(*cache.MemoryCache); isMemory {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				poolManager.SubmitTask(func() {
					if removed := memCache.Sweep(); removed > 0 {
						slog.Debug("Swept expired cache entries", "removed", removed)
					}
				})
			}
		}()
	}

	slog.Info("Connecting to PostgreSQL database")
	db, err := database.NewConnection(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		log.Fatal("Database connection required: ", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		log.Fatal(err)
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTL)*time.Hour)

	authService := service.NewAuthService(db, tokens)
	friendService := service.NewFriendService(db, tokens)
	chatService := service.NewChatService(db, tokens, cacheService)

	registry := server.NewRegistry()
	dispatcher := server.NewDispatcher(authService, friendService, chatService, tokens, registry)
	srv := server.New(cfg, dispatcher, registry, poolManager)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		slog.Info("Shutting down server...")
		cancel()
		poolManager.Shutdown()
		if err := cacheService.Close(); err != nil {
			slog.Error("Cache close error", "error", err)
		}
		if err := db.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		poolManager.Shutdown()
		log.Fatal(err)
	}

	slog.Info("Server shutdown complete")
}

// newCache connects to Redis when REDIS_URL is set and reachable, and
// falls back to the in-memory cache otherwise.
func newCache(cfg *config.Config) cache.Service {
	if cfg.Redis.URL == "" {
		slog.Info("No Redis configured, using memory cache")
		return cache.NewMemoryCache()
	}

	addr := strings.TrimPrefix(cfg.Redis.URL, "redis://")
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis connection failed, falling back to memory cache", "error", err)
		client.Close()
		return cache.NewMemoryCache()
	}

	slog.Info("Redis connection established", "addr", addr)
	return cache.NewRedisCache(client)
}
