package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port              string        `env:"PORT" envDefault:":8080"`
	MongoURI          string        `env:"MONGODB_URI,required,notEmpty"`
	MongoDB           string        `env:"MONGODB_DB" envDefault:"vau"`
	RedisAddr         string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	JWTSecret         string        `env:"JWT_SECRET,required,notEmpty"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	MapboxToken       string        `env:"MAPBOX_PUBLIC_TOKEN"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
	POISeedFile       string        `env:"POI_SEED_FILE" envDefault:"./data/pois.json"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	MaxSessions       int           `env:"MAX_SESSIONS" envDefault:"10000"`
	SessionRateLimit  int64         `env:"SESSION_RATE_LIMIT" envDefault:"10"`
	HitRateLimit      int64         `env:"HIT_RATE_LIMIT" envDefault:"60"`
	HitLogTimeout     time.Duration `env:"HIT_LOG_TIMEOUT" envDefault:"5s"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment only")
	}
	return Parse()
}

// Parse reads the configuration from environment variables only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.HitRateLimit <= 0 {
		return Config{}, fmt.Errorf("parse env: HIT_RATE_LIMIT must be positive, got %d", cfg.HitRateLimit)
	}
	if cfg.SessionRateLimit <= 0 {
		return Config{}, fmt.Errorf("parse env: SESSION_RATE_LIMIT must be positive, got %d", cfg.SessionRateLimit)
	}
	return cfg, nil
}
