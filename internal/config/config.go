package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort      string `envconfig:"HTTP_PORT" default:"8080"`
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	RedisAddr     string `envconfig:"REDIS_ADDR" required:"true"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	APIKey        string `envconfig:"API_KEY"`
	WebhookURL    string `envconfig:"WEBHOOK_URL"`

	WorkerInterval   time.Duration `envconfig:"WORKER_INTERVAL" default:"1s"`
	GeohashPrecision int           `envconfig:"GEOHASH_PRECISION" default:"9"`
	BroadcastChannel string        `envconfig:"BROADCAST_CHANNEL" default:"tracking"`
	PresenceChannel  string        `envconfig:"PRESENCE_CHANNEL" default:"presence"`
	IngestRate       float64       `envconfig:"INGEST_RATE" default:"20"`
	IngestBurst      int           `envconfig:"INGEST_BURST" default:"40"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}
	if cfg.GeohashPrecision < 2 || cfg.GeohashPrecision > 12 {
		return nil, fmt.Errorf("GEOHASH_PRECISION must be between 2 and 12, got %d", cfg.GeohashPrecision)
	}
	if cfg.WorkerInterval <= 0 {
		return nil, fmt.Errorf("WORKER_INTERVAL must be positive, got %s", cfg.WorkerInterval)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return ":" + c.HTTPPort
}
