// Package config loads and validates the application configuration from a
// YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Detect     DetectConfig     `mapstructure:"detect"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds Gamma API configuration.
type PolymarketConfig struct {
	GammaAPIURL         string `mapstructure:"gamma_api_url"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	MaxEventsPerCycle   int    `mapstructure:"max_events_per_cycle"`
	PageSize            int    `mapstructure:"page_size"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	MaxRetries          int    `mapstructure:"max_retries"`
	RetryDelaySeconds   int    `mapstructure:"retry_delay_seconds"`
}

// DetectConfig holds the detection thresholds.
type DetectConfig struct {
	OddsShiftThreshold    float64 `mapstructure:"odds_shift_threshold"`
	VolumeSpikeMultiplier float64 `mapstructure:"volume_spike_multiplier"`
	MinVolume24h          float64 `mapstructure:"min_volume_24h"`
	ClosingSoonHours      int     `mapstructure:"closing_soon_hours"`
	ClosingEdgeMin        float64 `mapstructure:"closing_edge_min"`
	ClosingEdgeMax        float64 `mapstructure:"closing_edge_max"`
	NewMarketHours        int     `mapstructure:"new_market_hours"`
	NewMarketMinLiquidity float64 `mapstructure:"new_market_min_liquidity"`
	MispriceSumDeviation  float64 `mapstructure:"misprice_sum_deviation"`
	MispriceMinLiquidity  float64 `mapstructure:"misprice_min_liquidity"`
	TopicKeywords         string  `mapstructure:"topic_keywords"`
}

// AlertsConfig holds the alert-arbitration settings.
type AlertsConfig struct {
	MinConfidence   string `mapstructure:"min_confidence"`
	AllowedActions  string `mapstructure:"allowed_actions"`
	MaxPerDay       int    `mapstructure:"max_per_day"`
	CooldownSeconds int    `mapstructure:"cooldown_seconds"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	BotToken          string `mapstructure:"bot_token"`
	ChatID            string `mapstructure:"chat_id"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"`
}

// StorageConfig holds the dispatch audit log configuration.
type StorageConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DBPath        string `mapstructure:"db_path"`
	MaxDispatches int    `mapstructure:"max_dispatches"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys onto the flat environment variables the bot
// has historically recognized, so plain env deployment works without a
// config file.
var envBindings = map[string]string{
	"polymarket.poll_interval_seconds": "POLL_INTERVAL_SECONDS",
	"polymarket.max_events_per_cycle":  "MAX_EVENTS_PER_CYCLE",
	"polymarket.timeout_seconds":       "REQUEST_TIMEOUT",
	"polymarket.max_retries":           "MAX_RETRIES",
	"detect.odds_shift_threshold":      "ODDS_SHIFT_THRESHOLD",
	"detect.volume_spike_multiplier":   "VOLUME_SPIKE_MULTIPLIER",
	"detect.min_volume_24h":            "MIN_VOLUME_24H",
	"detect.closing_soon_hours":        "CLOSING_SOON_HOURS",
	"detect.closing_edge_min":          "CLOSING_EDGE_MIN",
	"detect.closing_edge_max":          "CLOSING_EDGE_MAX",
	"detect.new_market_hours":          "NEW_MARKET_HOURS",
	"detect.new_market_min_liquidity":  "NEW_MARKET_MIN_LIQUIDITY",
	"detect.misprice_sum_deviation":    "MISPRICE_SUM_DEVIATION",
	"detect.misprice_min_liquidity":    "MISPRICE_MIN_LIQUIDITY",
	"detect.topic_keywords":            "TOPIC_KEYWORDS",
	"alerts.min_confidence":            "MIN_CONFIDENCE",
	"alerts.allowed_actions":           "ALLOWED_ACTIONS",
	"alerts.max_per_day":               "MAX_ALERTS_PER_DAY",
	"alerts.cooldown_seconds":          "ALERT_COOLDOWN_SECONDS",
	"telegram.bot_token":               "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":                 "TELEGRAM_CHAT_ID",
	"logging.level":                    "LOG_LEVEL",
}

// Load reads configuration from the given file and environment variables.
// A missing config file is not an error; defaults and env vars apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("POLYALERT")
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("polymarket.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.poll_interval_seconds", 45)
	v.SetDefault("polymarket.max_events_per_cycle", 500)
	v.SetDefault("polymarket.page_size", 100) // Gamma API max per request
	v.SetDefault("polymarket.timeout_seconds", 30)
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.retry_delay_seconds", 1)

	v.SetDefault("detect.odds_shift_threshold", 0.10)
	v.SetDefault("detect.volume_spike_multiplier", 3.0)
	v.SetDefault("detect.min_volume_24h", 5000.0)
	v.SetDefault("detect.closing_soon_hours", 48)
	v.SetDefault("detect.closing_edge_min", 0.10)
	v.SetDefault("detect.closing_edge_max", 0.90)
	v.SetDefault("detect.new_market_hours", 24)
	v.SetDefault("detect.new_market_min_liquidity", 1000.0)
	v.SetDefault("detect.misprice_sum_deviation", 0.05)
	v.SetDefault("detect.misprice_min_liquidity", 5000.0)
	v.SetDefault("detect.topic_keywords", "")

	v.SetDefault("alerts.min_confidence", "HIGH")
	v.SetDefault("alerts.allowed_actions", "BUY_YES,BUY_NO")
	v.SetDefault("alerts.max_per_day", 5) // 0 = unlimited
	v.SetDefault("alerts.cooldown_seconds", 3600)

	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_seconds", 1)

	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.db_path", "./data/polyalert.db")
	v.SetDefault("storage.max_dispatches", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Polymarket.GammaAPIURL == "" {
		return fmt.Errorf("polymarket.gamma_api_url is required")
	}
	if c.Polymarket.PollIntervalSeconds < 1 {
		return fmt.Errorf("polymarket.poll_interval_seconds must be at least 1")
	}
	if c.Polymarket.MaxEventsPerCycle < 1 {
		return fmt.Errorf("polymarket.max_events_per_cycle must be at least 1")
	}
	if c.Polymarket.PageSize < 1 || c.Polymarket.PageSize > 100 {
		return fmt.Errorf("polymarket.page_size must be between 1 and 100")
	}

	if c.Detect.OddsShiftThreshold <= 0 || c.Detect.OddsShiftThreshold > 1 {
		return fmt.Errorf("detect.odds_shift_threshold must be in (0, 1]")
	}
	if c.Detect.VolumeSpikeMultiplier <= 1 {
		return fmt.Errorf("detect.volume_spike_multiplier must be greater than 1")
	}
	if c.Detect.ClosingSoonHours < 1 {
		return fmt.Errorf("detect.closing_soon_hours must be at least 1")
	}
	if c.Detect.ClosingEdgeMin < 0 || c.Detect.ClosingEdgeMax > 1 ||
		c.Detect.ClosingEdgeMin >= c.Detect.ClosingEdgeMax {
		return fmt.Errorf("detect.closing_edge_min/max must satisfy 0 <= min < max <= 1")
	}
	if c.Detect.NewMarketHours < 1 {
		return fmt.Errorf("detect.new_market_hours must be at least 1")
	}
	if c.Detect.MispriceSumDeviation <= 0 || c.Detect.MispriceSumDeviation > 1 {
		return fmt.Errorf("detect.misprice_sum_deviation must be in (0, 1]")
	}

	switch strings.ToUpper(strings.TrimSpace(c.Alerts.MinConfidence)) {
	case "HIGH", "MEDIUM", "LOW":
	default:
		return fmt.Errorf("alerts.min_confidence must be one of: HIGH, MEDIUM, LOW")
	}
	if c.Alerts.AllowedActions == "" {
		return fmt.Errorf("alerts.allowed_actions must not be empty")
	}
	if c.Alerts.CooldownSeconds < 0 {
		return fmt.Errorf("alerts.cooldown_seconds must not be negative")
	}

	if c.Telegram.Enabled && c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when a bot token is set")
	}

	if c.Storage.Enabled && c.Storage.MaxDispatches < 1 {
		return fmt.Errorf("storage.max_dispatches must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// PollInterval returns the polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polymarket.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Polymarket.TimeoutSeconds) * time.Second
}

// Cooldown returns the per-key alert cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Alerts.CooldownSeconds) * time.Second
}

// TopicKeywords splits the comma-separated keyword list, dropping blanks.
func (c *Config) TopicKeywords() []string {
	return splitCSV(c.Detect.TopicKeywords)
}

// AllowedActions splits the comma-separated action list, dropping blanks.
func (c *Config) AllowedActions() []string {
	return splitCSV(c.Alerts.AllowedActions)
}

// TelegramConfigured reports whether a usable Telegram channel is set up.
func (c *Config) TelegramConfigured() bool {
	return c.Telegram.Enabled && c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
