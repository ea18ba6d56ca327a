package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address   string        `yaml:"address"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	ReplayTTL time.Duration `yaml:"replay_ttl"`
}

type WebConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	SessionSecret string   `yaml:"session_secret"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	JaegerEndpoint string  `yaml:"jaeger_endpoint"`
	SampleRatio    float64 `yaml:"sample_ratio"`
}

// RateLimitConfig values use the ulule/limiter formatted rate syntax, e.g. "10-M".
type RateLimitConfig struct {
	Login  string `yaml:"login"`
	Writes string `yaml:"writes"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "wmscore.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "wmscore",
				User:     "wmscore",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			Password:  "",
			DB:        0,
			ReplayTTL: 24 * time.Hour,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8090,
			SessionSecret: "change-me-in-production",
			CORSOrigins:   []string{"*"},
		},
		Log: LogConfig{
			Level:       "info",
			Development: false,
		},
		Tracing: TracingConfig{
			Enabled:        false,
			JaegerEndpoint: "http://localhost:14268/api/traces",
			SampleRatio:    1.0,
		},
		RateLimit: RateLimitConfig{
			Login:  "10-M",
			Writes: "600-M",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }
