package config

import (
	"fmt"

	pkgconfig "github.com/martincharlesFajIT/fajtradingllc/pkg/config"
)

// Storage backend names accepted by CART_STORAGE_BACKEND.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CART_HTTP_PORT" envDefault:"8080"`

	// Cart persistence
	StorageBackend string `env:"CART_STORAGE_BACKEND" envDefault:"file"`
	StorageKey     string `env:"CART_STORAGE_KEY,notEmpty" envDefault:"shopping_cart"`
	FileDir        string `env:"CART_FILE_DIR" envDefault:"./data"`

	// Redis (used when CART_STORAGE_BACKEND=redis)
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours for the redis backend; 0 keeps the cart forever.
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"0"`

	// Kafka cart events
	EventsEnabled bool     `env:"CART_EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StorageBackend != BackendFile && c.StorageBackend != BackendRedis {
		return fmt.Errorf("invalid storage backend: %q", c.StorageBackend)
	}
	if c.StorageKey == "" {
		return fmt.Errorf("storage key must not be empty")
	}
	if c.CartTTL < 0 {
		return fmt.Errorf("invalid cart TTL: %d", c.CartTTL)
	}
	return nil
}
