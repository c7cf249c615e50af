// Package config loads the setforge configuration tree. One immutable
// Config value is built at startup and handed down through every layer;
// nothing reads process-wide state after that. Secrets are taken from
// SETFORGE_* environment variables so they never live in the file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantonic/setforge/internal/backtest"
	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/setup"
)

type Config struct {
	LogLevel string   `yaml:"log_level"`
	Symbols  []string `yaml:"symbols"`
	Interval string   `yaml:"interval"`
	// LookbackBars is how much history each evaluation fetches.
	LookbackBars int `yaml:"lookback_bars"`

	Detector setup.Config     `yaml:"detector"`
	Backtest backtest.Options `yaml:"backtest"`

	Screener ScreenerConfig `yaml:"screener"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Journal  JournalConfig  `yaml:"journal"`
	Notify   NotifyConfig   `yaml:"notify"`
	Server   ServerConfig   `yaml:"server"`
}

type ScreenerConfig struct {
	Workers int `yaml:"workers"`
	Top     int `yaml:"top"`
}

type MonitorConfig struct {
	Timeframes       []string `yaml:"timeframes"`
	AlertThreshold   float64  `yaml:"alert_threshold"`
	PollSeconds      int      `yaml:"poll_seconds"`
	CooldownMinutes  int      `yaml:"cooldown_minutes"`
	DedupHours       int      `yaml:"dedup_hours"`
	MaxAlertsPerHour int      `yaml:"max_alerts_per_hour"`
	ThrottleRedis    string   `yaml:"throttle_redis"`
	ThrottleRedisDB  int      `yaml:"throttle_redis_db"`
}

func (m MonitorConfig) Poll() time.Duration {
	return time.Duration(m.PollSeconds) * time.Second
}

func (m MonitorConfig) Cooldown() time.Duration {
	return time.Duration(m.CooldownMinutes) * time.Minute
}

func (m MonitorConfig) DedupTTL() time.Duration {
	return time.Duration(m.DedupHours) * time.Hour
}

type ProviderConfig struct {
	BaseURL        string  `yaml:"base_url"`
	WSURL          string  `yaml:"ws_url"`
	Category       string  `yaml:"category"`
	RPS            float64 `yaml:"rps"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
}

func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type CacheConfig struct {
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type JournalConfig struct {
	DSN            string `yaml:"dsn"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (j JournalConfig) Timeout() time.Duration {
	return time.Duration(j.TimeoutSeconds) * time.Second
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		Symbols:      []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		Interval:     "1h",
		LookbackBars: 500,
		Detector:     setup.DefaultConfig(),
		Backtest:     backtest.DefaultOptions(),
		Screener:     ScreenerConfig{Workers: 4, Top: 10},
		Monitor: MonitorConfig{
			Timeframes:       []string{"15m", "1h", "4h"},
			AlertThreshold:   60,
			PollSeconds:      300,
			CooldownMinutes:  120,
			DedupHours:       24,
			MaxAlertsPerHour: 10,
		},
		Provider: ProviderConfig{
			BaseURL:        "https://api.bybit.com",
			WSURL:          "wss://stream.bybit.com/v5/public/linear",
			Category:       "linear",
			RPS:            5,
			Burst:          10,
			TimeoutSeconds: 10,
			MaxRetries:     2,
		},
		Cache:   CacheConfig{TTLSeconds: 60},
		Journal: JournalConfig{TimeoutSeconds: 5},
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
		},
	}
}

// Load reads a YAML file over the defaults, then applies environment
// overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SETFORGE_TELEGRAM_TOKEN"); v != "" {
		c.Notify.Telegram.Token = v
	}
	if v := os.Getenv("SETFORGE_TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.Telegram.ChatID = v
	}
	if v := os.Getenv("SETFORGE_PG_DSN"); v != "" {
		c.Journal.DSN = v
	}
	if v := os.Getenv("SETFORGE_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
		if c.Monitor.ThrottleRedis == "" {
			c.Monitor.ThrottleRedis = v
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol required")
	}
	if _, err := domain.ParseTimeframe(c.Interval); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, tf := range c.Monitor.Timeframes {
		if _, err := domain.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("config: monitor %w", err)
		}
	}
	if c.LookbackBars < 2 {
		return fmt.Errorf("config: lookback_bars %d too small", c.LookbackBars)
	}
	if c.Screener.Workers <= 0 {
		return fmt.Errorf("config: screener workers must be positive")
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("config: detector: %w", err)
	}
	return nil
}

// Interval returns the validated primary timeframe. Call after Validate.
func (c *Config) Timeframe() domain.Timeframe {
	return domain.Timeframe(strings.TrimSpace(c.Interval))
}
