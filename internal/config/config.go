// Package config loads environment-first configuration for both
// processes. A .env file in the working directory seeds the environment
// without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the settings of both processes. Each process validates
// only the fields it needs.
type Config struct {
	// Telegram side.
	TelegramBotToken string
	TelegramGroupID  int64
	AdminChatID      int64

	// Asset indexer side.
	HeliusAPIKey   string
	HeliusEndpoint string

	// Verification policy.
	CollectionID        string
	MinNFTRequired      int
	VerificationTimeout time.Duration
	CacheTTL            time.Duration

	// Cross-process plumbing.
	WebhookURL        string
	VerifyBaseURL     string
	RelayCapacity     int
	RelayPollInterval time.Duration
	SweepInterval     time.Duration

	// Serving.
	APIListenAddr string
	BotListenAddr string

	// Persistence.
	StorageBackend string
	PostgresDSN    string
	AuditLogPath   string
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

var envBindings = map[string]string{
	"telegram_bot_token":   "TELEGRAM_BOT_TOKEN",
	"telegram_group_id":    "TELEGRAM_GROUP_ID",
	"admin_chat_id":        "ADMIN_CHAT_ID",
	"helius_api_key":       "HELIUS_API_KEY",
	"helius_endpoint":      "HELIUS_RPC_ENDPOINT",
	"collection_id":        "COLLECTION_ID",
	"min_nft_required":     "MIN_NFT_REQUIRED",
	"verification_timeout": "VERIFICATION_TIMEOUT",
	"cache_ttl":            "CACHE_TTL",
	"webhook_url":          "WEBHOOK_URL",
	"verify_base_url":      "VERIFY_BASE_URL",
	"relay_capacity":       "RELAY_CAPACITY",
	"relay_poll_interval":  "RELAY_POLL_INTERVAL",
	"sweep_interval":       "SWEEP_INTERVAL",
	"api_listen_addr":      "API_LISTEN_ADDR",
	"bot_listen_addr":      "BOT_LISTEN_ADDR",
	"storage_backend":      "STORAGE_BACKEND",
	"postgres_dsn":         "POSTGRES_DSN",
	"audit_log_path":       "AUDIT_LOG_PATH",
}

// Load reads configuration from the environment, seeded by .env when
// present.
func Load() (*Config, error) {
	// Missing .env is fine; the environment stands on its own.
	_ = godotenv.Load()

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetDefault("helius_endpoint", "https://mainnet.helius-rpc.com")
	v.SetDefault("min_nft_required", 1)
	v.SetDefault("verification_timeout", "5m")
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("relay_capacity", 16)
	v.SetDefault("relay_poll_interval", "2s")
	v.SetDefault("sweep_interval", "30s")
	v.SetDefault("api_listen_addr", ":8080")
	v.SetDefault("bot_listen_addr", ":8081")
	v.SetDefault("storage_backend", BackendMemory)
	v.SetDefault("audit_log_path", "analytics.json")

	cfg := &Config{
		TelegramBotToken:    v.GetString("telegram_bot_token"),
		TelegramGroupID:     v.GetInt64("telegram_group_id"),
		AdminChatID:         v.GetInt64("admin_chat_id"),
		HeliusAPIKey:        v.GetString("helius_api_key"),
		HeliusEndpoint:      v.GetString("helius_endpoint"),
		CollectionID:        v.GetString("collection_id"),
		MinNFTRequired:      v.GetInt("min_nft_required"),
		VerificationTimeout: v.GetDuration("verification_timeout"),
		CacheTTL:            v.GetDuration("cache_ttl"),
		WebhookURL:          v.GetString("webhook_url"),
		VerifyBaseURL:       v.GetString("verify_base_url"),
		RelayCapacity:       v.GetInt("relay_capacity"),
		RelayPollInterval:   v.GetDuration("relay_poll_interval"),
		SweepInterval:       v.GetDuration("sweep_interval"),
		APIListenAddr:       v.GetString("api_listen_addr"),
		BotListenAddr:       v.GetString("bot_listen_addr"),
		StorageBackend:      v.GetString("storage_backend"),
		PostgresDSN:         v.GetString("postgres_dsn"),
		AuditLogPath:        v.GetString("audit_log_path"),
	}
	return cfg, nil
}

// ValidateAPI checks the fields the verification API process requires.
func (c *Config) ValidateAPI() error {
	if c.HeliusAPIKey == "" {
		return errors.New("HELIUS_API_KEY is required")
	}
	if c.MinNFTRequired < 1 {
		return errors.New("MIN_NFT_REQUIRED must be at least 1")
	}
	return nil
}

// ValidateBot checks the fields the group-admin process requires.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramGroupID == 0 {
		return errors.New("TELEGRAM_GROUP_ID is required")
	}
	if c.VerifyBaseURL == "" {
		return errors.New("VERIFY_BASE_URL is required")
	}
	if c.StorageBackend == BackendPostgres && c.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required with the postgres backend")
	}
	if c.StorageBackend != BackendMemory && c.StorageBackend != BackendPostgres {
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}
