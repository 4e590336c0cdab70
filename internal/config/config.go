// Package config loads and validates the analytics daemon's configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Alerting AlertingConfig `mapstructure:"alerting"`
	Paper    PaperConfig    `mapstructure:"paper"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
}

// AlertingConfig governs the alert dispatcher's gates.
type AlertingConfig struct {
	MinSeverity          float64       `mapstructure:"min_severity"`
	DeduplicationMinutes int           `mapstructure:"deduplication_minutes"`
	MaxAlertsPerMinute   int           `mapstructure:"max_alerts_per_minute"`
	MaxAlertsPerDay      int           `mapstructure:"max_alerts_per_day"`
	MinSignalGapMinutes  int           `mapstructure:"min_signal_gap_minutes"`
	RateLimitFile        string        `mapstructure:"rate_limit_file"`
	DedupEvictAbove      int           `mapstructure:"dedup_evict_above"`
	ThrottleWindow       time.Duration `mapstructure:"throttle_window"`
}

// PaperConfig governs the paper-trading engine.
type PaperConfig struct {
	StartingBalance float64 `mapstructure:"starting_balance"`
	TradesFile      string  `mapstructure:"trades_file"`
}

// SourcesConfig holds connection details for out-of-scope external collaborators,
// consumed only through the interfaces in internal/market, internal/transport.
type SourcesConfig struct {
	BrokerHost       string        `mapstructure:"broker_host"`
	GammaAPIURL      string        `mapstructure:"gamma_api_url"`
	CLOBAPIURL       string        `mapstructure:"clob_api_url"`
	CryptoWSURL      string        `mapstructure:"crypto_ws_url"`
	NewsFeedURLs     []string      `mapstructure:"news_feed_urls"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	RateLimitPerSec  float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
	WSReconnectMinMs int           `mapstructure:"ws_reconnect_min_ms"`
	WSReconnectMaxMs int           `mapstructure:"ws_reconnect_max_ms"`
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
	TelegramChatID   string        `mapstructure:"telegram_chat_id"`
}

// LoggingConfig governs the leveled logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig governs the status/metrics HTTP surface.
type ServerConfig struct {
	StatusAddr  string `mapstructure:"status_addr"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// Load reads configuration from path, applies defaults, then overlays
// MARKETANALYTICS_-prefixed environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("MARKETANALYTICS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("alerting.min_severity", 0.0)
	v.SetDefault("alerting.deduplication_minutes", 15)
	v.SetDefault("alerting.max_alerts_per_minute", 10)
	v.SetDefault("alerting.max_alerts_per_day", 5)
	v.SetDefault("alerting.min_signal_gap_minutes", 30)
	v.SetDefault("alerting.rate_limit_file", "./data/rate_limit.json")
	v.SetDefault("alerting.dedup_evict_above", 500)
	v.SetDefault("alerting.throttle_window", "60s")

	v.SetDefault("paper.starting_balance", 1000.0)
	v.SetDefault("paper.trades_file", "./data/paper_trades.json")

	v.SetDefault("sources.broker_host", "localhost:9092")
	v.SetDefault("sources.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("sources.clob_api_url", "https://clob.polymarket.com")
	v.SetDefault("sources.crypto_ws_url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("sources.news_feed_urls", []string{})
	v.SetDefault("sources.http_timeout", "20s")
	v.SetDefault("sources.rate_limit_per_sec", 5.0)
	v.SetDefault("sources.rate_limit_burst", 10)
	v.SetDefault("sources.ws_reconnect_min_ms", 5000)
	v.SetDefault("sources.ws_reconnect_max_ms", 10000)
	v.SetDefault("sources.telegram_bot_token", "")
	v.SetDefault("sources.telegram_chat_id", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.status_addr", ":8090")
	v.SetDefault("server.metrics_path", "/metrics")
}

// Validate checks that all configuration values are within the ranges the
// core components require.
func (c *Config) Validate() error {
	if c.Alerting.MinSeverity < 0 || c.Alerting.MinSeverity > 1 {
		return fmt.Errorf("alerting.min_severity must be between 0.0 and 1.0")
	}
	if c.Alerting.DeduplicationMinutes < 1 {
		return fmt.Errorf("alerting.deduplication_minutes must be at least 1")
	}
	if c.Alerting.MaxAlertsPerMinute < 1 {
		return fmt.Errorf("alerting.max_alerts_per_minute must be at least 1")
	}
	if c.Alerting.MaxAlertsPerDay < 1 {
		return fmt.Errorf("alerting.max_alerts_per_day must be at least 1")
	}
	if c.Alerting.MinSignalGapMinutes < 1 {
		return fmt.Errorf("alerting.min_signal_gap_minutes must be at least 1")
	}
	if c.Alerting.RateLimitFile == "" {
		return fmt.Errorf("alerting.rate_limit_file is required")
	}
	if c.Alerting.DedupEvictAbove < 1 {
		return fmt.Errorf("alerting.dedup_evict_above must be at least 1")
	}

	if c.Paper.StartingBalance <= 0 {
		return fmt.Errorf("paper.starting_balance must be positive")
	}
	if c.Paper.TradesFile == "" {
		return fmt.Errorf("paper.trades_file is required")
	}

	if c.Sources.GammaAPIURL == "" {
		return fmt.Errorf("sources.gamma_api_url is required")
	}
	if c.Sources.CLOBAPIURL == "" {
		return fmt.Errorf("sources.clob_api_url is required")
	}
	if c.Sources.HTTPTimeout < time.Second {
		return fmt.Errorf("sources.http_timeout must be at least 1s")
	}
	if c.Sources.RateLimitPerSec <= 0 {
		return fmt.Errorf("sources.rate_limit_per_sec must be positive")
	}
	if c.Sources.WSReconnectMinMs < 1000 || c.Sources.WSReconnectMaxMs < c.Sources.WSReconnectMinMs {
		return fmt.Errorf("sources.ws_reconnect_min_ms/max_ms must be sane (min >= 1000, max >= min)")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Server.StatusAddr == "" {
		return fmt.Errorf("server.status_addr is required")
	}

	return nil
}
