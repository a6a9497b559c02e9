package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-voting/internal/auth"
	"ms-voting/internal/config"
	"ms-voting/internal/database"
	"ms-voting/internal/kafka"
	"ms-voting/internal/lock"
	"ms-voting/internal/logger"
	"ms-voting/internal/maintenance"
	"ms-voting/internal/sse"
	voting_db "ms-voting/internal/voting/db"
	"ms-voting/internal/voting/service"
	"ms-voting/internal/voting/voting_api"
)

// connectRedis returns nil when REDIS_ADDR is unset so stand locks stay in
// process.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("REDIS", "REDIS_ADDR not set, using in-process stand locks")
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", cfg.Addr, err))
	}
	logger.Info("REDIS", fmt.Sprintf("Redis connection successful (%s)", cfg.Addr))
	return client
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", "No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}

	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to open %s database: %v", cfg.Database.Driver, err))
	}
	defer bunDB.Close()

	if err := database.Prepare(ctx, bunDB, cfg, logger); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to prepare schema: %v", err))
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if redisClient := connectRedis(ctx, cfg.Redis, logger); redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.StandLockTTL, logger)
	}

	var publisher service.EventPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		requiredTopics := []string{cfg.Kafka.Topics.VoteEvents, cfg.Kafka.Topics.AdminEvents, cfg.Kafka.Topics.IntegrityAlerts}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}

		producer := kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		publisher = producer
	} else {
		logger.Info("KAFKA", "KAFKA_ENABLED is false, events are not published")
	}

	emitter := sse.NewResultsEmitter()
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	store := voting_db.New(bunDB, cfg.Database.StorageTimeout, cfg.Database.ReadRetryBackoff)
	votingService := service.NewVotingService(store, service.Options{
		Gate:      maintenance.New(),
		Locker:    locker,
		Publisher: publisher,
		Notifier:  emitter,
		Tokens:    tokens,
		Logger:    logger,
	})

	logger.Info("HTTP", "Setting up router and middleware")
	handler := voting_api.NewHandler(votingService, emitter, tokens, cfg.RateLimit, logger)

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     handler.Routes(),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// WriteTimeout stays unset: /results/stream holds its response open.
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Voting Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Voting Service shutdown complete")
	}
}
