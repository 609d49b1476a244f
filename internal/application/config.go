// Package application wires configuration and request-facing services around
// the backtest engine.
package application

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, one section per subsystem.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Market   MarketConfig   `yaml:"market_data"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
}

type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
}

type EngineConfig struct {
	EvalTimeoutMillis int `yaml:"eval_timeout_ms"`
}

func (c EngineConfig) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutMillis) * time.Millisecond
}

type MarketConfig struct {
	BaseURL               string  `yaml:"base_url"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	RequestsPerSecond     float64 `yaml:"requests_per_second"`
	Burst                 int     `yaml:"burst"`
	BreakerFailures       uint32  `yaml:"breaker_consecutive_failures"`
	BreakerTimeoutSeconds int     `yaml:"breaker_timeout_seconds"`
}

func (c MarketConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c MarketConfig) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutSeconds) * time.Second
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type DatabaseConfig struct {
	Enabled             bool   `yaml:"enabled"`
	DSN                 string `yaml:"dsn"`
	QueryTimeoutSeconds int    `yaml:"query_timeout_seconds"`
}

func (c DatabaseConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

type LLMConfig struct {
	Enabled               bool     `yaml:"enabled"`
	BaseURL               string   `yaml:"base_url"`
	Model                 string   `yaml:"model"`
	APIKeys               []string `yaml:"api_keys"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
}

func (c LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Keys returns the configured API keys, with the GEMINI_API_KEY environment
// variable (comma-separated) taking precedence when set.
func (c LLMConfig) Keys() []string {
	if raw := os.Getenv("GEMINI_API_KEY"); raw != "" {
		var keys []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			return keys
		}
	}
	return c.APIKeys
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "127.0.0.1",
			Port:                3001,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 30,
			IdleTimeoutSeconds:  60,
		},
		Engine: EngineConfig{EvalTimeoutMillis: 5000},
		Market: MarketConfig{
			BaseURL:               "https://query1.finance.yahoo.com",
			RequestTimeoutSeconds: 15,
			RequestsPerSecond:     2,
			Burst:                 4,
			BreakerFailures:       5,
			BreakerTimeoutSeconds: 60,
		},
		Cache: CacheConfig{
			Addr:       "localhost:6379",
			TTLSeconds: 900,
		},
		LLM: LLMConfig{
			BaseURL:               "https://generativelanguage.googleapis.com",
			Model:                 "gemini-3-flash-preview",
			RequestTimeoutSeconds: 30,
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
