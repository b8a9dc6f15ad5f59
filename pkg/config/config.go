package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

// Config holds all quoteai configuration.
type Config struct {
	Listen  string        `yaml:"listen"`
	DBPath  string        `yaml:"db_path"`
	Store   StoreConfig   `yaml:"store"`
	Model   ModelConfig   `yaml:"model"`
	Engine  EngineConfig  `yaml:"engine"`
	Cache   CacheConfig   `yaml:"cache"`
	Usage   UsageConfig   `yaml:"usage"`
	Tracing TracingConfig `yaml:"tracing"`
}

// StoreConfig selects the suggestion cache backend. The sqlite backend
// stores its table in DBPath.
type StoreConfig struct {
	Backend       string `yaml:"backend"`
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// ModelConfig defines the OpenAI-compatible generation endpoint.
type ModelConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Name        string        `yaml:"name"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// EngineConfig tunes request validation.
type EngineConfig struct {
	MinDescriptionLength int `yaml:"min_description_length"`
}

// CacheConfig controls cache administration defaults.
type CacheConfig struct {
	CostPerCall float64       `yaml:"cost_per_call"`
	PurgeAfter  time.Duration `yaml:"purge_after"`
}

// UsageConfig controls the per-call usage tracker, stored in DBPath.
type UsageConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
	ServiceName string  `yaml:"service_name"`
}

// Default returns a Config with sensible defaults. The model key falls back
// to OPENAI_API_KEY.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "quoteai.db",
		Store: StoreConfig{
			Backend:     BackendSQLite,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "quoteai:suggest",
		},
		Model: ModelConfig{
			BaseURL:     "https://api.openai.com",
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Name:        "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   800,
			Timeout:     30 * time.Second,
			MaxRetries:  2,
		},
		Engine: EngineConfig{
			MinDescriptionLength: 20,
		},
		Cache: CacheConfig{
			CostPerCall: 0.001,
			PurgeAfter:  30 * 24 * time.Hour,
		},
		Usage: UsageConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
			ServiceName: "quoteai",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with. A missing model key
// is not an error here; the generator reports it when built.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("config: db_path is required for the sqlite store")
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for the postgres store")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("config: store.redis_addr is required for the redis store")
		}
	case BackendNone:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	if c.Engine.MinDescriptionLength <= 0 {
		return fmt.Errorf("config: engine.min_description_length must be positive, got %d", c.Engine.MinDescriptionLength)
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("config: model.max_retries must not be negative")
	}
	if c.Cache.CostPerCall < 0 {
		return fmt.Errorf("config: cache.cost_per_call must not be negative")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("config: tracing.sample_rate must be within [0, 1]")
	}
	return nil
}
