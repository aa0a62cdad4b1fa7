// Package config loads and validates the query runner configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeout is the default HTTP read timeout
	DefaultReadTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default HTTP write timeout
	DefaultWriteTimeout = 30 * time.Second
	// DefaultPollInterval is the scheduler idle wait between queue polls
	DefaultPollInterval = 5 * time.Second
	// DefaultErrorBackoff is the scheduler wait after an unexpected loop error
	DefaultErrorBackoff = 10 * time.Second
	// DefaultParallelism bounds concurrent (model, run) attempts per query
	DefaultParallelism = 4
	// DefaultTemperature is the sampling temperature sent to model clients
	DefaultTemperature = 0.7
	// DefaultQueryTimeout is the per-call ceiling on one model request
	DefaultQueryTimeout = 60 * time.Second
	// DefaultMarketTimeout bounds one market-context analysis
	DefaultMarketTimeout = 30 * time.Second
	// DefaultMarketMaxResults caps search results fetched per query
	DefaultMarketMaxResults = 20
)

// Config is the root configuration for both the worker and API binaries.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Market    MarketConfig    `yaml:"market"`
	Retry     RetryConfig     `yaml:"retry"`
	Models    []ModelConfig   `yaml:"models"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g., ":8001"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 30s
}

// RedisConfig configures the priority queue connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig configures the PostgreSQL session store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// SchedulerConfig configures the session polling loop.
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // Idle wait when queue is empty
	ErrorBackoff time.Duration `yaml:"error_backoff"` // Wait after an unexpected loop error
}

// ExecutorConfig configures the fan-out executor.
type ExecutorConfig struct {
	Parallelism int `yaml:"parallelism"` // Max concurrent (model, run) attempts per query
}

// MarketConfig configures the market-context provider.
type MarketConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RetryConfig is the default retry policy injected into model clients.
// Individual models may override it.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// ModelConfig declares one model the runner can be asked to query.
// APIKeyEnv names the environment variable holding the provider key; when
// empty it defaults per provider (e.g. OPENAI_API_KEY).
type ModelConfig struct {
	Name        string        `yaml:"name"`     // Model identifier, e.g. "gpt-4"
	Provider    string        `yaml:"provider"` // openai | anthropic | gemini | perplexity
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url"` // Optional provider endpoint override
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"` // Per-call ceiling
	Retry       *RetryConfig  `yaml:"retry"`   // Optional per-model override
}

// APIKey resolves the provider API key from the environment.
func (m *ModelConfig) APIKey() string {
	envVar := m.APIKeyEnv
	if envVar == "" {
		envVar = defaultKeyEnv(m.Provider)
	}
	return os.Getenv(envVar)
}

func defaultKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GOOGLE_AI_API_KEY"
	case "perplexity":
		return "PERPLEXITY_API_KEY"
	default:
		return ""
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be positive, got %v", c.Scheduler.PollInterval)
	}
	if c.Executor.Parallelism <= 0 {
		return fmt.Errorf("executor.parallelism must be positive, got %d", c.Executor.Parallelism)
	}
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d].name is required", i)
		}
		if m.Provider == "" {
			return fmt.Errorf("models[%d].provider is required", i)
		}
	}
	return nil
}

// setDefaults sets default values for configuration fields
func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8001"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Scheduler.PollInterval == 0 {
		cfg.Scheduler.PollInterval = DefaultPollInterval
	}
	if cfg.Scheduler.ErrorBackoff == 0 {
		cfg.Scheduler.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.Executor.Parallelism == 0 {
		cfg.Executor.Parallelism = DefaultParallelism
	}
	if cfg.Market.MaxResults == 0 {
		cfg.Market.MaxResults = DefaultMarketMaxResults
	}
	if cfg.Market.Timeout == 0 {
		cfg.Market.Timeout = DefaultMarketTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}
	for i := range cfg.Models {
		if cfg.Models[i].Temperature == 0 {
			cfg.Models[i].Temperature = DefaultTemperature
		}
		if cfg.Models[i].Timeout == 0 {
			cfg.Models[i].Timeout = DefaultQueryTimeout
		}
	}
}

// overrideWithEnvVars overrides configuration with environment variables
func overrideWithEnvVars(cfg *Config) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("POSTGRES_PORT"); port != "" {
		cfg.Database.Port = port
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("POSTGRES_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if dbname := os.Getenv("POSTGRES_DB"); dbname != "" {
		cfg.Database.DBName = dbname
	}
	if sslmode := os.Getenv("POSTGRES_SSLMODE"); sslmode != "" {
		cfg.Database.SSLMode = sslmode
	}
	if port := os.Getenv("RUNNER_PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}
	if appDebug := os.Getenv("APP_DEBUG"); appDebug != "" {
		cfg.Debug = parseBool(appDebug)
	}
	if parallelism := os.Getenv("EXECUTOR_PARALLELISM"); parallelism != "" {
		if n, err := strconv.Atoi(parallelism); err == nil && n > 0 {
			cfg.Executor.Parallelism = n
		}
	}
}

// Load reads, defaults, env-overrides, and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool parses a string value as a boolean.
// Returns true for "true", "1", "yes" (case-insensitive), false otherwise.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
