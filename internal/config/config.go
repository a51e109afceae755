package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backend names accepted by RATE_LIMIT_BACKEND and SESSION_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// text or json
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	HTTPListenAddr string `env:"HTTP_LISTEN_ADDR" envDefault:":8080"`
	PublicBasePath string `env:"PUBLIC_BASE_PATH"`
	AdminToken     string `env:"ADMIN_TOKEN"`

	TelegramBotToken   string `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramWebhookURL string `env:"TELEGRAM_WEBHOOK_URL"`
	// 1-256 chars of A-Z a-z 0-9 _ -; generated per process when empty
	TelegramWebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`
	TelegramDebug         bool   `env:"TELEGRAM_DEBUG" envDefault:"false"`

	// postgres:// URL or a SQLite file path
	DatabaseURL string `env:"DATABASE_URL" envDefault:"data/bot.db"`
	// 64 hex chars; empty disables sealing of stored API credentials
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisTLS      bool   `env:"REDIS_TLS" envDefault:"false"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"woo_export_bot"`

	WooTimeout          time.Duration `env:"WOO_TIMEOUT" envDefault:"30s"`
	WooPageSize         int           `env:"WOO_PAGE_SIZE" envDefault:"100"`
	WooMaxProducts      int           `env:"WOO_MAX_PRODUCTS" envDefault:"1000"`
	WooVerifyConnection bool          `env:"WOO_VERIFY_CONNECTION" envDefault:"true"`

	TorobBaseURL string        `env:"TOROB_BASE_URL" envDefault:"https://api.torob.com"`
	TorobTimeout time.Duration `env:"TOROB_TIMEOUT" envDefault:"15s"`

	ExportTimeout    time.Duration `env:"EXPORT_TIMEOUT" envDefault:"5m"`
	CatalogMirrorTTL time.Duration `env:"CATALOG_MIRROR_TTL" envDefault:"1h"`

	RateLimitBackend  string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"30"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	SupportContact string `env:"SUPPORT_CONTACT" envDefault:"@woo_export_support"`
}

// Load parses the environment into Config and validates it. Callers load
// .env files beforehand.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is empty")
	}
	if c.WooPageSize <= 0 || c.WooPageSize > 100 {
		return fmt.Errorf("invalid WOO_PAGE_SIZE %d: must be between 1 and 100", c.WooPageSize)
	}
	if c.WooMaxProducts <= 0 {
		return fmt.Errorf("invalid WOO_MAX_PRODUCTS %d", c.WooMaxProducts)
	}
	if c.WooTimeout <= 0 {
		return fmt.Errorf("invalid WOO_TIMEOUT %s", c.WooTimeout)
	}
	if err := checkWebhookSecret(c.TelegramWebhookSecret); err != nil {
		return err
	}
	if err := checkBackend("RATE_LIMIT_BACKEND", c.RateLimitBackend); err != nil {
		return err
	}
	if err := checkBackend("SESSION_BACKEND", c.SessionBackend); err != nil {
		return err
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}
	return nil
}

// EncryptionKeyBytes decodes ENCRYPTION_KEY. A nil slice means sealing is off.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	raw := strings.TrimSpace(c.EncryptionKey)
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// UsesRedis reports whether any component is configured with the redis backend.
func (c *Config) UsesRedis() bool {
	return c.RateLimitBackend == BackendRedis || c.SessionBackend == BackendRedis
}

func checkBackend(name, value string) error {
	switch value {
	case BackendMemory, BackendRedis:
		return nil
	default:
		return fmt.Errorf("invalid %s %q: want %q or %q", name, value, BackendMemory, BackendRedis)
	}
}

// checkWebhookSecret applies the Bot API's secret_token rules.
func checkWebhookSecret(secret string) error {
	if secret == "" {
		return nil
	}
	if len(secret) > 256 {
		return errors.New("invalid TELEGRAM_WEBHOOK_SECRET: longer than 256 characters")
	}
	for _, r := range secret {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("invalid TELEGRAM_WEBHOOK_SECRET: character %q not allowed", r)
		}
	}
	return nil
}
