package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ListenAddr          string `toml:"listen_addr"`
	APIKey              string `toml:"api_key"`
	DiscordToken        string `toml:"discord_token"`
	DiscordGuildID      string `toml:"discord_guild_id"`
	Store               string `toml:"store"`
	StorePath           string `toml:"store_path"`
	PingTimeout         string `toml:"ping_timeout"`
	CheckInterval       string `toml:"check_interval"`
	StartupDelay        string `toml:"startup_delay"`
	RequiredMisses      int    `toml:"required_misses"`
	Timezone            string `toml:"timezone"`
	DeliveryConcurrency int    `toml:"delivery_concurrency"`
	DeliveryTimeout     string `toml:"delivery_timeout"`
	Metrics             *bool  `toml:"metrics"`
	PersistHeartbeats   *bool  `toml:"persist_heartbeats"`
	LogLevel            string `toml:"log_level"`
	LogFormat           string `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.powerwatch/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if dir := DefaultStateDir(); dir != "" {
		return filepath.Join(dir, "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen-addr", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("api-key", fc.APIKey, &cfg.APIKey)
	s.setString("discord-token", fc.DiscordToken, &cfg.DiscordToken)
	s.setString("discord-guild-id", fc.DiscordGuildID, &cfg.DiscordGuildID)
	s.setString("store", fc.Store, &cfg.Store)
	s.setString("store-path", fc.StorePath, &cfg.StorePath)
	s.setString("timezone", fc.Timezone, &cfg.Timezone)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("ping-timeout", fc.PingTimeout, &cfg.PingTimeout); err != nil {
		return err
	}
	if err := s.setDuration("check-interval", fc.CheckInterval, &cfg.CheckInterval); err != nil {
		return err
	}
	if err := s.setDuration("startup-delay", fc.StartupDelay, &cfg.StartupDelay); err != nil {
		return err
	}
	if err := s.setDuration("delivery-timeout", fc.DeliveryTimeout, &cfg.DeliveryTimeout); err != nil {
		return err
	}

	s.setInt("required-misses", fc.RequiredMisses, &cfg.RequiredMisses)
	s.setInt("delivery-concurrency", fc.DeliveryConcurrency, &cfg.DeliveryConcurrency)

	s.setBool("metrics", fc.Metrics, &cfg.Metrics)
	s.setBool("persist-heartbeats", fc.PersistHeartbeats, &cfg.PersistHeartbeats)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
