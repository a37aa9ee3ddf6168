package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"PORT", "ENV", "API_BASE_URL", "POLL_INTERVAL_ACTIVE_SESSION", "MQTT_BROKER_URL", "DATABASE_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != "4000" || cfg.APIBaseURL != "http://localhost:3001" {
		t.Errorf("server defaults = %q %q", cfg.ServerPort, cfg.APIBaseURL)
	}
	if cfg.PollIntervalActiveSession != 15*time.Second || cfg.PollIntervalHealth != 10*time.Second {
		t.Errorf("poll defaults = %v %v", cfg.PollIntervalActiveSession, cfg.PollIntervalHealth)
	}
	if cfg.SessionVerifyDelay != 2*time.Second || cfg.SessionVerifyRetry != 5*time.Second {
		t.Errorf("verify defaults = %v %v", cfg.SessionVerifyDelay, cfg.SessionVerifyRetry)
	}
	if cfg.MQTTStartTopic != "carshare/inel00/session/start" || cfg.MQTTBrokerURL != "" {
		t.Errorf("mqtt defaults = %q %q", cfg.MQTTStartTopic, cfg.MQTTBrokerURL)
	}
	if cfg.IsProduction() {
		t.Error("default env should not be production")
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("ENV", "production")
	t.Setenv("POLL_BACKOFF_FACTOR", "3")
	t.Setenv("POLL_INTERVAL_ACTIVE_SESSION", "bogus")
	t.Setenv("BREAKER_MIN_REQUESTS", "-4")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Errorf("trailing slash not trimmed: %q", cfg.APIBaseURL)
	}
	if !cfg.IsProduction() || cfg.PollBackoffFactor != 3 {
		t.Errorf("overrides = %+v", cfg)
	}
	if cfg.PollIntervalActiveSession != 15*time.Second {
		t.Errorf("invalid duration should keep default, got %v", cfg.PollIntervalActiveSession)
	}
	if cfg.BreakerMinRequests != 10 {
		t.Errorf("negative int should keep default, got %d", cfg.BreakerMinRequests)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad url", func(c *Config) { c.APIBaseURL = "localhost" }},
		{"zero interval", func(c *Config) { c.PollIntervalHealth = 0 }},
		{"factor below one", func(c *Config) { c.PollBackoffFactor = 0.5 }},
		{"max below interval", func(c *Config) { c.PollBackoffMax = time.Second }},
		{"ratio out of range", func(c *Config) { c.BreakerFailureRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		APIBaseURL:                "http://localhost:3001",
		PollIntervalActiveSession: 15 * time.Second,
		PollIntervalHealth:        10 * time.Second,
		PollBackoffFactor:         2,
		PollBackoffMax:            2 * time.Minute,
		BreakerFailureRatio:       0.6,
	}
}

// chdir 切换工作目录，测试结束时恢复（等价于 Go 1.24 的 t.Chdir）
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
