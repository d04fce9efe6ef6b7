// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/discochess/coach/internal/engine"
)

// ErrInvalid is returned when the loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds application configuration.
type Config struct {
	// Engine configuration
	StockfishPath   string `validate:"required"`
	EngineDepth     int    `validate:"gte=0"`
	EngineTimeMS    int    `validate:"gte=0"`
	EngineMultiPV   int    `validate:"gte=0"`
	EngineTimeoutMS int    `validate:"gte=0"`

	// Database configuration
	DatabaseDriver string `validate:"oneof=sqlite postgres"`
	DatabaseURL    string `validate:"required"`

	// Position cache configuration
	RedisURL          string
	PositionCacheSize int `validate:"gte=0"`

	SnapshotDir string
	MetricsAddr string
	LogLevel    string `validate:"oneof=debug info warn error"`
	Verbose     bool
}

var validate = validator.New()

// Load reads a .env file when present, then the environment, and validates
// the result.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	cfg := &Config{
		StockfishPath:   getEnvOrDefault("STOCKFISH_PATH", "stockfish"),
		EngineDepth:     getEnvInt("ENGINE_DEPTH", 12),
		EngineTimeMS:    getEnvInt("ENGINE_TIME_MS", 1000),
		EngineMultiPV:   getEnvInt("ENGINE_MULTIPV", 1),
		EngineTimeoutMS: getEnvInt("ENGINE_TIMEOUT_MS", 30000),

		DatabaseDriver: getEnvOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnvOrDefault("DATABASE_URL", "coach.db"),

		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
		PositionCacheSize: getEnvInt("POSITION_CACHE_SIZE", 4096),

		SnapshotDir: getEnvOrDefault("SNAPSHOT_DIR", "./snapshot"),
		MetricsAddr: getEnvOrDefault("METRICS_ADDR", ""),
		LogLevel:    strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Verbose:     getEnvBool("VERBOSE", false),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the engine search limits.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Engine().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Engine returns the normalized evaluator config.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Path:    c.StockfishPath,
		Depth:   c.EngineDepth,
		TimeMS:  c.EngineTimeMS,
		MultiPV: c.EngineMultiPV,
		Timeout: time.Duration(c.EngineTimeoutMS) * time.Millisecond,
	}.Normalize()
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvBool gets environment variable as bool or returns default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
