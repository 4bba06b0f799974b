/**
 * @description
 * Entry point for the listing-service. It loads configuration, connects to PostgreSQL,
 * Redis and RabbitMQ, wires the listing engine, and serves the HTTP API until SIGINT/SIGTERM.
 *
 * @dependencies
 * - github.com/joho/godotenv: loads .env files during local development.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/IVSOLOV/car-connect-sub000/internal/api"
	"github.com/IVSOLOV/car-connect-sub000/internal/app"
	"github.com/IVSOLOV/car-connect-sub000/internal/config"
	"github.com/IVSOLOV/car-connect-sub000/internal/store"
	"github.com/IVSOLOV/car-connect-sub000/pkg/billingclient"
	"github.com/IVSOLOV/car-connect-sub000/pkg/rabbitmq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Simple protocol keeps the pool usable behind PgBouncer transaction pooling.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	if err := store.EnsureSchema(ctx, dbpool); err != nil {
		logger.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	redisClient := connectRedis(cfg.RedisURL, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var producer rabbitmq.Publisher
	if p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		logger.Warn("RabbitMQ unavailable; falling back to logging publisher", "error", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		producer = p
		logger.Info("RabbitMQ producer connected")
	}
	defer producer.Close()

	repository := store.NewPostgresRepository(dbpool, cfg.ListingEventsExchange)
	billing := billingclient.NewClient(cfg.BillingAPIBaseURL, cfg.BillingAPIKey)
	photos := app.PhotoBounds{Min: cfg.MinListingPhotos, Max: cfg.MaxListingPhotos}

	var (
		searchCache app.SearchCache
		limiter     app.RateLimiter
	)
	if redisClient != nil {
		searchCache = app.NewRedisSearchCache(redisClient, cfg.RedisKeyPrefix, time.Duration(cfg.SearchCacheTTLSeconds)*time.Second)
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisKeyPrefix)
	}

	subscriptionSync := app.NewSubscriptionSync(billing, repository, cfg.SubscriptionTrialDays, logger)
	listingService := app.NewListingService(repository, repository, searchCache, photos, logger)
	gate := app.NewCreationGate(repository, repository, billing, subscriptionSync, limiter, app.GateConfig{
		Photos:               photos,
		StagingTTL:           time.Duration(cfg.StagingTTLMinutes) * time.Minute,
		CheckoutSuccessURL:   cfg.CheckoutSuccessURL,
		CheckoutCancelURL:    cfg.CheckoutCancelURL,
		CreateLimitPerMinute: cfg.CreateRateLimitPerMinute,
	}, logger)

	dispatcher := app.NewOutboxDispatcher(repository, producer, logger)
	go dispatcher.Run(ctx)

	billingConsumer := app.NewBillingSyncConsumer(subscriptionSync, logger)
	if consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL); err != nil {
		logger.Warn("RabbitMQ consumer unavailable; billing sync disabled", "error", err)
	} else {
		defer consumer.Close()
		if err := consumer.ConsumeWithBindings(cfg.ListingEventsExchange, cfg.BillingSyncQueue, billingConsumer.Bindings()); err != nil {
			logger.Error("failed to start billing sync consumer", "error", err)
		} else {
			logger.Info("billing sync consumer started", "queue", cfg.BillingSyncQueue)
		}
	}

	jobs := app.NewJobs(gate, repository, time.Duration(cfg.OutboxRetentionHours)*time.Hour, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg)
	scheduler.Start()

	if strings.TrimSpace(cfg.BillingWebhookSecret) == "" {
		logger.Warn("BILLING_WEBHOOK_SECRET not set; payment callbacks will be rejected")
	}
	handler := api.NewHandler(listingService, gate, logger)
	webhook := api.NewBillingWebhookHandler(gate, cfg.BillingWebhookSecret, logger)
	router := api.NewRouter(handler, webhook, api.NewClerkAuthenticator(cfg.ClerkJWKSURL, cfg.ModeratorRole))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	<-scheduler.Stop().Done()

	logger.Info("server stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable; search caching and
// create rate limiting are disabled in that case.
func connectRedis(redisURL string, logger *slog.Logger) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		logger.Warn("REDIS_URL not set; search cache and create rate limiting disabled")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed; search cache and create rate limiting disabled", "error", err)
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; search cache and create rate limiting disabled", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}
