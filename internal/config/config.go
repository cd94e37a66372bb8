// Package config loads service settings from defaults, an optional YAML
// file, a .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/passbi/transit_router/internal/cache"
	"github.com/passbi/transit_router/internal/db"
	"github.com/passbi/transit_router/internal/middleware"
	"github.com/passbi/transit_router/internal/routing"
)

// DefaultPath is read when neither an explicit path nor CONFIG_PATH is set
const DefaultPath = "config.yml"

// Config is the full service configuration
type Config struct {
	Server    ServerConfig               `yaml:"server"`
	Graph     GraphConfig                `yaml:"graph"`
	Database  db.Config                  `yaml:"database"`
	Redis     cache.Config               `yaml:"redis"`
	Routing   RoutingConfig              `yaml:"routing"`
	RateLimit middleware.RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Port          int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SearchTimeout time.Duration `yaml:"search_timeout"`
}

// GraphConfig selects where snapshots are loaded from
type GraphConfig struct {
	Source         string        `yaml:"source" validate:"oneof=postgres sqlite"`
	SQLitePath     string        `yaml:"sqlite_path" validate:"required_if=Source sqlite"`
	ReloadInterval time.Duration `yaml:"reload_interval"` // 0 disables reloading
}

// RoutingConfig tunes the search engine and response rendering
type RoutingConfig struct {
	MaxExpansions       int                     `yaml:"max_expansions" validate:"min=0"`
	Heuristic           routing.HeuristicConfig `yaml:"heuristic"`
	SlopePenalty        bool                    `yaml:"slope_penalty"`
	WalkMetersPerMinute float64                 `yaml:"walk_meters_per_minute" validate:"gt=0"`
	Traffic             routing.TrafficTable    `yaml:"traffic"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:          8080,
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			SearchTimeout: 2 * time.Second,
		},
		Graph: GraphConfig{
			Source:         "postgres",
			SQLitePath:     "data/graph.db",
			ReloadInterval: 0,
		},
		Database: db.DefaultConfig(),
		Redis:    cache.DefaultConfig(),
		Routing: RoutingConfig{
			MaxExpansions:       routing.DefaultMaxExpansions,
			Heuristic:           routing.HeuristicConfig{Name: "great_circle", MaxSpeedKmh: routing.DefaultMaxSpeedKmh},
			WalkMetersPerMinute: 80,
			Traffic:             routing.DefaultTrafficTable(),
		},
		RateLimit: middleware.DefaultRateLimitConfig(),
	}
}

// Load builds the configuration. path may be empty, in which case CONFIG_PATH
// or DefaultPath is tried and a missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = getEnv("CONFIG_PATH", DefaultPath)
		explicit = os.Getenv("CONFIG_PATH") != ""
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the traffic table
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Routing.Traffic.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv lets deployment environment variables override file values
func applyEnv(cfg *Config) {
	cfg.Server.Port = envInt("API_PORT", cfg.Server.Port)
	cfg.Server.SearchTimeout = envDuration("SEARCH_TIMEOUT", cfg.Server.SearchTimeout)

	cfg.Graph.Source = strings.ToLower(getEnv("GRAPH_SOURCE", cfg.Graph.Source))
	cfg.Graph.SQLitePath = getEnv("GRAPH_SQLITE_PATH", cfg.Graph.SQLitePath)
	cfg.Graph.ReloadInterval = envDuration("GRAPH_RELOAD_INTERVAL", cfg.Graph.ReloadInterval)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = envInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MinConns = int32(envInt("DB_MIN_CONNS", int(cfg.Database.MinConns)))
	cfg.Database.MaxConns = int32(envInt("DB_MAX_CONNS", int(cfg.Database.MaxConns)))

	cfg.Redis.Enabled = envBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = envInt("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TLS = envBool("REDIS_TLS_ENABLED", cfg.Redis.TLS)
	cfg.Redis.TTL = envDuration("CACHE_TTL", cfg.Redis.TTL)
	cfg.Redis.MutexTTL = envDuration("CACHE_MUTEX_TTL", cfg.Redis.MutexTTL)

	cfg.Routing.MaxExpansions = envInt("ROUTING_MAX_EXPANSIONS", cfg.Routing.MaxExpansions)
	cfg.Routing.Heuristic.Name = strings.ToLower(getEnv("ROUTING_HEURISTIC", cfg.Routing.Heuristic.Name))
	cfg.Routing.SlopePenalty = envBool("ROUTING_SLOPE_PENALTY", cfg.Routing.SlopePenalty)

	cfg.RateLimit.Enabled = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return n
}

func envBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return b
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return d
}
