package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	content := `
polymarket:
  poll_interval_seconds: 300
  max_events_per_cycle: 200

detect:
  odds_shift_threshold: 0.15
  volume_spike_multiplier: 4.0
  topic_keywords: "election, bitcoin"

alerts:
  min_confidence: "MEDIUM"
  allowed_actions: "BUY_YES,BUY_NO,WATCH"
  max_per_day: 10
  cooldown_seconds: 1800

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

storage:
  max_dispatches: 500
  db_path: "./data/test.db"

logging:
  level: "info"
  format: "json"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.PollInterval() != 5*time.Minute {
		t.Errorf("Unexpected poll interval: %v", cfg.PollInterval())
	}
	if cfg.Detect.OddsShiftThreshold != 0.15 {
		t.Errorf("Unexpected odds shift threshold: %f", cfg.Detect.OddsShiftThreshold)
	}
	if cfg.Alerts.MaxPerDay != 10 {
		t.Errorf("Unexpected daily cap: %d", cfg.Alerts.MaxPerDay)
	}
	if cfg.Cooldown() != 30*time.Minute {
		t.Errorf("Unexpected cooldown: %v", cfg.Cooldown())
	}
	if got := cfg.TopicKeywords(); len(got) != 2 || got[0] != "election" || got[1] != "bitcoin" {
		t.Errorf("Unexpected topic keywords: %v", got)
	}
	if got := cfg.AllowedActions(); len(got) != 3 {
		t.Errorf("Expected 3 allowed actions, got %v", got)
	}
	if !cfg.TelegramConfigured() {
		t.Error("Expected Telegram to be configured")
	}

	// Unset fields fall back to defaults.
	if cfg.Polymarket.GammaAPIURL != "https://gamma-api.polymarket.com" {
		t.Errorf("Unexpected Gamma API URL: %s", cfg.Polymarket.GammaAPIURL)
	}
	if cfg.Detect.MinVolume24h != 5000 {
		t.Errorf("Unexpected min volume default: %f", cfg.Detect.MinVolume24h)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load failed on missing file: %v", err)
	}
	if cfg.Alerts.MaxPerDay != 5 {
		t.Errorf("Unexpected default daily cap: %d", cfg.Alerts.MaxPerDay)
	}
	if cfg.Alerts.MinConfidence != "HIGH" {
		t.Errorf("Unexpected default min confidence: %s", cfg.Alerts.MinConfidence)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults should validate: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_ALERTS_PER_DAY", "9")
	t.Setenv("ALERT_COOLDOWN_SECONDS", "120")
	t.Setenv("MIN_CONFIDENCE", "LOW")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env_token")

	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Alerts.MaxPerDay != 9 {
		t.Errorf("Env daily cap not applied: %d", cfg.Alerts.MaxPerDay)
	}
	if cfg.Cooldown() != 2*time.Minute {
		t.Errorf("Env cooldown not applied: %v", cfg.Cooldown())
	}
	if cfg.Alerts.MinConfidence != "LOW" {
		t.Errorf("Env min confidence not applied: %s", cfg.Alerts.MinConfidence)
	}
	if cfg.Telegram.BotToken != "env_token" {
		t.Errorf("Env bot token not applied: %s", cfg.Telegram.BotToken)
	}
}

func validConfig() *Config {
	return &Config{
		Polymarket: PolymarketConfig{
			GammaAPIURL:         "https://example.com",
			PollIntervalSeconds: 45,
			MaxEventsPerCycle:   500,
			PageSize:            100,
			TimeoutSeconds:      30,
		},
		Detect: DetectConfig{
			OddsShiftThreshold:    0.10,
			VolumeSpikeMultiplier: 3.0,
			MinVolume24h:          5000,
			ClosingSoonHours:      48,
			ClosingEdgeMin:        0.10,
			ClosingEdgeMax:        0.90,
			NewMarketHours:        24,
			NewMarketMinLiquidity: 1000,
			MispriceSumDeviation:  0.05,
			MispriceMinLiquidity:  5000,
		},
		Alerts: AlertsConfig{
			MinConfidence:   "HIGH",
			AllowedActions:  "BUY_YES,BUY_NO",
			MaxPerDay:       5,
			CooldownSeconds: 3600,
		},
		Telegram: TelegramConfig{
			Enabled:  true,
			BotToken: "token",
			ChatID:   "chat",
		},
		Storage: StorageConfig{
			Enabled:       true,
			MaxDispatches: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing gamma api url",
			mutate:  func(c *Config) { c.Polymarket.GammaAPIURL = "" },
			wantErr: true,
		},
		{
			name:    "poll interval too small",
			mutate:  func(c *Config) { c.Polymarket.PollIntervalSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "page size over API limit",
			mutate:  func(c *Config) { c.Polymarket.PageSize = 200 },
			wantErr: true,
		},
		{
			name:    "odds shift threshold above 1",
			mutate:  func(c *Config) { c.Detect.OddsShiftThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "volume multiplier not above 1",
			mutate:  func(c *Config) { c.Detect.VolumeSpikeMultiplier = 1.0 },
			wantErr: true,
		},
		{
			name:    "closing edge min above max",
			mutate:  func(c *Config) { c.Detect.ClosingEdgeMin = 0.95 },
			wantErr: true,
		},
		{
			name:    "unknown min confidence",
			mutate:  func(c *Config) { c.Alerts.MinConfidence = "EXTREME" },
			wantErr: true,
		},
		{
			name:    "empty allowed actions",
			mutate:  func(c *Config) { c.Alerts.AllowedActions = "" },
			wantErr: true,
		},
		{
			name:    "negative cooldown",
			mutate:  func(c *Config) { c.Alerts.CooldownSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "zero daily cap means unlimited",
			mutate:  func(c *Config) { c.Alerts.MaxPerDay = 0 },
			wantErr: false,
		},
		{
			name:    "token without chat id",
			mutate:  func(c *Config) { c.Telegram.ChatID = "" },
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "uppercase log level is accepted",
			mutate:  func(c *Config) { c.Logging.Level = "INFO" },
			wantErr: false,
		},
		{
			name:    "uppercase log format is accepted",
			mutate:  func(c *Config) { c.Logging.Format = "TEXT" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
