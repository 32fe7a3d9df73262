package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	PostgresDSN    string        `env:"POSTGRES_DSN"`
	JWTSecret      string        `env:"JWT_SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses configuration from the environment and validates it. The
// signing secret and database DSN have no defaults on purpose.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}
	return &cfg, nil
}
