// Package config loads and exposes trust engine configuration, with
// environment-variable overrides layered on top of an optional YAML
// file.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Providers ProvidersConfig `yaml:"providers"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig configures the Postgres-backed identity graph
// hydrator.
type DatabaseConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// CacheConfig configures the result cache backend.
type CacheConfig struct {
	Backend       string `yaml:"backend"` // "memory" or "redis"
	DefaultTTLSec int    `yaml:"default_ttl_sec"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// ScoringConfig configures the evolutionary-stability adjustment and
// the per-provider dispatch timeout.
type ScoringConfig struct {
	StabilityLambda    float64 `yaml:"stability_lambda"`
	ProviderTimeoutSec int     `yaml:"provider_timeout_sec"`
}

// ProvidersConfig carries per-provider base URLs and credentials.
type ProvidersConfig struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Twitter  TwitterConfig  `yaml:"twitter"`
	ERC8004  ERC8004Config  `yaml:"erc8004"`
	ClawHub  ClawHubConfig  `yaml:"clawhub"`
	Moltbook MoltbookConfig `yaml:"moltbook"`
}

type GitHubConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type TwitterConfig struct {
	BaseURL     string `yaml:"base_url"`
	BearerToken string `yaml:"bearer_token"`
}

type ERC8004Config struct {
	BaseURL string `yaml:"base_url"`
}

type ClawHubConfig struct {
	BaseURL string `yaml:"base_url"`
}

type MoltbookConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance, loading it from
// CONFIG_PATH (default "config.yaml") on first use.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("TRUSTENGINE_ENV", c.Server.Env)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}

	c.Database.PostgresDSN = getEnv("POSTGRES_DSN", c.Database.PostgresDSN)

	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	if v := getEnvInt("CACHE_DEFAULT_TTL_SEC", 0); v > 0 {
		c.Cache.DefaultTTLSec = v
	}
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	if v := getEnvInt("REDIS_DB", -1); v >= 0 {
		c.Cache.RedisDB = v
	}

	if v := getEnvFloat("STABILITY_LAMBDA", 0); v > 0 {
		c.Scoring.StabilityLambda = v
	}
	if v := getEnvInt("PROVIDER_TIMEOUT_SEC", 0); v > 0 {
		c.Scoring.ProviderTimeoutSec = v
	}

	c.Providers.GitHub.BaseURL = getEnv("GITHUB_API_BASE_URL", c.Providers.GitHub.BaseURL)
	c.Providers.GitHub.Token = getEnv("GITHUB_TOKEN", c.Providers.GitHub.Token)
	c.Providers.Twitter.BaseURL = getEnv("TWITTER_API_BASE_URL", c.Providers.Twitter.BaseURL)
	c.Providers.Twitter.BearerToken = getEnv("TWITTER_BEARER_TOKEN", c.Providers.Twitter.BearerToken)
	c.Providers.ERC8004.BaseURL = getEnv("ERC8004_REGISTRY_BASE_URL", c.Providers.ERC8004.BaseURL)
	c.Providers.ClawHub.BaseURL = getEnv("CLAWHUB_BASE_URL", c.Providers.ClawHub.BaseURL)
	c.Providers.Moltbook.BaseURL = getEnv("MOLTBOOK_BASE_URL", c.Providers.Moltbook.BaseURL)
	c.Providers.Moltbook.APIKey = getEnv("MOLTBOOK_API_KEY", c.Providers.Moltbook.APIKey)

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.DefaultTTLSec == 0 {
		c.Cache.DefaultTTLSec = 300
	}
	if c.Scoring.StabilityLambda == 0 {
		c.Scoring.StabilityLambda = 0.15
	}
	if c.Scoring.ProviderTimeoutSec == 0 {
		c.Scoring.ProviderTimeoutSec = 10
	}
	if c.Providers.GitHub.BaseURL == "" {
		c.Providers.GitHub.BaseURL = "https://api.github.com"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
