package cliconfig

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.PingTimeout != 60*time.Second {
		t.Errorf("PingTimeout = %v, want 60s", cfg.PingTimeout)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("CheckInterval = %v, want 5s", cfg.CheckInterval)
	}
	if cfg.StartupDelay != 15*time.Second {
		t.Errorf("StartupDelay = %v, want 15s", cfg.StartupDelay)
	}
	if cfg.RequiredMisses != 3 {
		t.Errorf("RequiredMisses = %v, want 3", cfg.RequiredMisses)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %v, want %v", cfg.Store, StoreSQLite)
	}
	if cfg.Timezone != DefaultTimezone {
		t.Errorf("Timezone = %v, want %v", cfg.Timezone, DefaultTimezone)
	}
	if !cfg.Metrics {
		t.Error("Metrics should default to true")
	}
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	cfg.StorePath = "/tmp/powerwatch.db"
	cfg.Timezone = "UTC"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.APIKey = "  " }, wantErr: "api-key"},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "redis" }, wantErr: "store must be"},
		{name: "zero timeout", mutate: func(c *Config) { c.PingTimeout = 0 }, wantErr: "ping timeout"},
		{name: "zero interval", mutate: func(c *Config) { c.CheckInterval = 0 }, wantErr: "check interval"},
		{name: "negative startup delay", mutate: func(c *Config) { c.StartupDelay = -time.Second }, wantErr: "startup delay"},
		{name: "zero startup delay", mutate: func(c *Config) { c.StartupDelay = 0 }},
		{name: "zero misses", mutate: func(c *Config) { c.RequiredMisses = 0 }, wantErr: "required misses"},
		{name: "zero concurrency", mutate: func(c *Config) { c.DeliveryConcurrency = 0 }, wantErr: "concurrency"},
		{name: "zero delivery timeout", mutate: func(c *Config) { c.DeliveryTimeout = 0 }, wantErr: "delivery timeout"},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_DerivesStorePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := validConfig()
	cfg.StorePath = ""
	cfg.Store = " SQLite "
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %q, want normalised %q", cfg.Store, StoreSQLite)
	}
	if want := filepath.Join(home, ".powerwatch", "powerwatch.db"); cfg.StorePath != want {
		t.Errorf("StorePath = %v, want %v", cfg.StorePath, want)
	}

	cfg = validConfig()
	cfg.StorePath = ""
	cfg.Store = StoreFile
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if want := filepath.Join(home, ".powerwatch", "state.json"); cfg.StorePath != want {
		t.Errorf("StorePath = %v, want %v", cfg.StorePath, want)
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := validConfig()
	cfg.DiscordToken = "token"

	r := cfg.Redacted()
	if r.APIKey != "*****" || r.DiscordToken != "*****" {
		t.Errorf("Redacted() leaked secrets: %+v", r)
	}
	if cfg.APIKey != "secret" {
		t.Error("Redacted() modified the receiver")
	}
}
