// Package config loads server and client settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by LEADERBOARD_STORE.
const (
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultClientOrigin is the browser origin allowed when CLIENT_ORIGIN is empty.
const DefaultClientOrigin = "http://localhost:5173"

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Survival SurvivalConfig
	Auth     AuthConfig
	Words    WordsConfig
}

type ServerConfig struct {
	Port         string `env:"PORT" envDefault:"5175"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
}

// Origin returns the browser origin accepted by CORS and the events websocket.
func (s ServerConfig) Origin() string {
	if s.ClientOrigin == "" {
		return DefaultClientOrigin
	}
	return s.ClientOrigin
}

type StoreConfig struct {
	Driver        string `env:"LEADERBOARD_STORE" envDefault:"sqlite"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"./data/app.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
}

type SurvivalConfig struct {
	InitialSeconds int           `env:"SURVIVAL_SECONDS" envDefault:"15"`
	BonusSeconds   int           `env:"SURVIVAL_BONUS_SECONDS" envDefault:"3"`
	TickInterval   time.Duration `env:"SURVIVAL_TICK" envDefault:"1s"`
}

type AuthConfig struct {
	JWTSecret    string        `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	ReapInterval time.Duration `env:"SESSION_REAP_INTERVAL" envDefault:"1m"`
}

type WordsConfig struct {
	File      string `env:"WORDS_FILE"`
	DailySalt string `env:"DAILY_SALT" envDefault:"local_dev_salt"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.Server.ClientOrigin = cfg.Server.Origin()
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreSQLite, StoreRedis, StoreMemory:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("config: POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown LEADERBOARD_STORE %q", c.Store.Driver)
	}
	if c.Survival.InitialSeconds <= 0 {
		return fmt.Errorf("config: SURVIVAL_SECONDS must be positive, got %d", c.Survival.InitialSeconds)
	}
	if c.Survival.BonusSeconds < 0 {
		return fmt.Errorf("config: SURVIVAL_BONUS_SECONDS must not be negative, got %d", c.Survival.BonusSeconds)
	}
	if c.Survival.TickInterval <= 0 {
		return fmt.Errorf("config: SURVIVAL_TICK must be positive, got %s", c.Survival.TickInterval)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.Auth.ReapInterval <= 0 {
		return fmt.Errorf("config: SESSION_REAP_INTERVAL must be positive, got %s", c.Auth.ReapInterval)
	}
	return nil
}
