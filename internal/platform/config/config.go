package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"3010"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Heartbeat tuning. The interval is how often each session pings its
	// client; the timeout is how long pong silence is tolerated before the
	// session is force-closed.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"5s"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT" default:"10s"`

	SendBufferSize          int `env:"SEND_BUFFER_SIZE" default:"16"`
	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int `env:"MAX_CONNECTIONS_PER_IP" default:"32"`

	// Optional Redis ingestion feed. Producers may publish events to
	// EventChannel instead of POSTing them; empty RedisURL disables the feed.
	RedisURL     string `env:"REDIS_URL"`
	EventChannel string `env:"EVENT_CHANNEL" default:"eventgate:events"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive, got %v", cfg.HeartbeatInterval)
	}
	if cfg.HeartbeatTimeout <= cfg.HeartbeatInterval {
		return fmt.Errorf("HEARTBEAT_TIMEOUT (%v) must exceed HEARTBEAT_INTERVAL (%v)", cfg.HeartbeatTimeout, cfg.HeartbeatInterval)
	}
	if cfg.SendBufferSize <= 0 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", cfg.SendBufferSize)
	}
	return nil
}
