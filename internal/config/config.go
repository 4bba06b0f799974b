/**
 * @description
 * Configuration for the listing-service. Values come from environment variables, with an
 * optional .env file in the working directory, loaded through Viper.
 *
 * @dependencies
 * - github.com/spf13/viper
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the listing-service.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix           string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	ListingEventsExchange    string `mapstructure:"LISTING_EVENTS_EXCHANGE"`
	BillingSyncQueue         string `mapstructure:"BILLING_SYNC_QUEUE"`
	ClerkJWKSURL             string `mapstructure:"CLERK_JWKS_URL"`
	ModeratorRole            string `mapstructure:"MODERATOR_ROLE"`
	BillingAPIBaseURL        string `mapstructure:"BILLING_API_BASE_URL"`
	BillingAPIKey            string `mapstructure:"BILLING_API_KEY"`
	BillingWebhookSecret     string `mapstructure:"BILLING_WEBHOOK_SECRET"`
	CheckoutSuccessURL       string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL        string `mapstructure:"CHECKOUT_CANCEL_URL"`
	SubscriptionTrialDays    int    `mapstructure:"SUBSCRIPTION_TRIAL_DAYS"`
	StagingTTLMinutes        int    `mapstructure:"STAGING_TTL_MINUTES"`
	StagingExpirySchedule    string `mapstructure:"STAGING_EXPIRY_SCHEDULE"`
	OutboxPurgeSchedule      string `mapstructure:"OUTBOX_PURGE_SCHEDULE"`
	OutboxRetentionHours     int    `mapstructure:"OUTBOX_RETENTION_HOURS"`
	SearchCacheTTLSeconds    int    `mapstructure:"SEARCH_CACHE_TTL_SECONDS"`
	CreateRateLimitPerMinute int    `mapstructure:"CREATE_RATE_LIMIT_PER_MINUTE"`
	MinListingPhotos         int    `mapstructure:"MIN_LISTING_PHOTOS"`
	MaxListingPhotos         int    `mapstructure:"MAX_LISTING_PHOTOS"`
}

const (
	defaultServerPort            = "8080"
	defaultRedisKeyPrefix        = "carconnect"
	defaultListingEventsExchange = "listing_events"
	defaultBillingSyncQueue      = "listing_service.billing_sync"
	defaultModeratorRole         = "moderator"
	defaultTrialDays             = 7
	defaultStagingTTLMinutes     = 1440
	defaultStagingExpiry         = "*/15 * * * *"
	defaultOutboxPurge           = "0 3 * * *"
	defaultOutboxRetentionHours  = 72
	defaultSearchCacheTTLSeconds = 60
	defaultCreateRateLimit       = 10
	defaultMinPhotos             = 5
	defaultMaxPhotos             = 10
)

var envKeys = []string{
	"SERVER_PORT",
	"DATABASE_URL",
	"REDIS_URL",
	"REDIS_KEY_PREFIX",
	"RABBITMQ_URL",
	"LISTING_EVENTS_EXCHANGE",
	"BILLING_SYNC_QUEUE",
	"CLERK_JWKS_URL",
	"MODERATOR_ROLE",
	"BILLING_API_BASE_URL",
	"BILLING_API_KEY",
	"BILLING_WEBHOOK_SECRET",
	"CHECKOUT_SUCCESS_URL",
	"CHECKOUT_CANCEL_URL",
	"SUBSCRIPTION_TRIAL_DAYS",
	"STAGING_TTL_MINUTES",
	"STAGING_EXPIRY_SCHEDULE",
	"OUTBOX_PURGE_SCHEDULE",
	"OUTBOX_RETENTION_HOURS",
	"SEARCH_CACHE_TTL_SECONDS",
	"CREATE_RATE_LIMIT_PER_MINUTE",
	"MIN_LISTING_PHOTOS",
	"MAX_LISTING_PHOTOS",
}

// LoadConfig reads configuration from the environment and an optional .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("REDIS_KEY_PREFIX", defaultRedisKeyPrefix)
	viper.SetDefault("LISTING_EVENTS_EXCHANGE", defaultListingEventsExchange)
	viper.SetDefault("BILLING_SYNC_QUEUE", defaultBillingSyncQueue)
	viper.SetDefault("MODERATOR_ROLE", defaultModeratorRole)
	viper.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:3000/listings/checkout/success")
	viper.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:3000/listings/checkout/cancel")
	viper.SetDefault("SUBSCRIPTION_TRIAL_DAYS", defaultTrialDays)
	viper.SetDefault("STAGING_TTL_MINUTES", defaultStagingTTLMinutes)
	viper.SetDefault("STAGING_EXPIRY_SCHEDULE", defaultStagingExpiry)
	viper.SetDefault("OUTBOX_PURGE_SCHEDULE", defaultOutboxPurge)
	viper.SetDefault("OUTBOX_RETENTION_HOURS", defaultOutboxRetentionHours)
	viper.SetDefault("SEARCH_CACHE_TTL_SECONDS", defaultSearchCacheTTLSeconds)
	viper.SetDefault("CREATE_RATE_LIMIT_PER_MINUTE", defaultCreateRateLimit)
	viper.SetDefault("MIN_LISTING_PHOTOS", defaultMinPhotos)
	viper.SetDefault("MAX_LISTING_PHOTOS", defaultMaxPhotos)

	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("PORT")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.ModeratorRole = strings.TrimSpace(config.ModeratorRole)
	if config.ModeratorRole == "" {
		config.ModeratorRole = defaultModeratorRole
	}
	config.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(config.RedisKeyPrefix), ":")
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = defaultRedisKeyPrefix
	}

	config.SubscriptionTrialDays = nonNegative("SUBSCRIPTION_TRIAL_DAYS", config.SubscriptionTrialDays, defaultTrialDays)
	config.StagingTTLMinutes = positive("STAGING_TTL_MINUTES", config.StagingTTLMinutes, defaultStagingTTLMinutes)
	config.OutboxRetentionHours = positive("OUTBOX_RETENTION_HOURS", config.OutboxRetentionHours, defaultOutboxRetentionHours)
	config.SearchCacheTTLSeconds = positive("SEARCH_CACHE_TTL_SECONDS", config.SearchCacheTTLSeconds, defaultSearchCacheTTLSeconds)
	config.CreateRateLimitPerMinute = positive("CREATE_RATE_LIMIT_PER_MINUTE", config.CreateRateLimitPerMinute, defaultCreateRateLimit)
	config.MinListingPhotos = positive("MIN_LISTING_PHOTOS", config.MinListingPhotos, defaultMinPhotos)
	config.MaxListingPhotos = positive("MAX_LISTING_PHOTOS", config.MaxListingPhotos, defaultMaxPhotos)
	if config.MaxListingPhotos < config.MinListingPhotos {
		log.Printf("level=warn component=config msg=\"MAX_LISTING_PHOTOS below MIN_LISTING_PHOTOS; raising\" min=%d max=%d", config.MinListingPhotos, config.MaxListingPhotos)
		config.MaxListingPhotos = config.MinListingPhotos
	}

	if strings.TrimSpace(config.StagingExpirySchedule) == "" {
		config.StagingExpirySchedule = defaultStagingExpiry
	}
	if strings.TrimSpace(config.OutboxPurgeSchedule) == "" {
		config.OutboxPurgeSchedule = defaultOutboxPurge
	}

	return
}

func positive(key string, value, fallback int) int {
	if value > 0 {
		return value
	}
	log.Printf("level=warn component=config msg=\"non-positive value configured; using default\" key=%s value=%d default=%d", key, value, fallback)
	return fallback
}

func nonNegative(key string, value, fallback int) int {
	if value >= 0 {
		return value
	}
	log.Printf("level=warn component=config msg=\"negative value configured; using default\" key=%s value=%d default=%d", key, value, fallback)
	return fallback
}
