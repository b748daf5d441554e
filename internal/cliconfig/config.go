package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

// Defaults for values that are not plain durations.
const (
	DefaultListenAddr = ":8080"
	DefaultTimezone   = "Europe/Kyiv"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"

	sqliteFileName = "powerwatch.db"
	stateFileName  = "state.json"
)

// Config holds CLI configuration for powerwatch.
type Config struct {
	ListenAddr string
	APIKey     string

	DiscordToken   string
	DiscordGuildID string

	Store     string
	StorePath string

	PingTimeout    time.Duration
	CheckInterval  time.Duration
	StartupDelay   time.Duration
	RequiredMisses int

	Timezone string

	DeliveryConcurrency int
	DeliveryTimeout     time.Duration

	Metrics           bool
	PersistHeartbeats bool

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:          DefaultListenAddr,
		Store:               StoreSQLite,
		StorePath:           "", // Derived from Store during Validate
		PingTimeout:         60 * time.Second,
		CheckInterval:       5 * time.Second,
		StartupDelay:        15 * time.Second,
		RequiredMisses:      3,
		Timezone:            DefaultTimezone,
		DeliveryConcurrency: 8,
		DeliveryTimeout:     10 * time.Second,
		Metrics:             true,
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
	}
}

// DefaultStateDir returns ~/.powerwatch, or "" if the home directory is unknown.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".powerwatch")
	}
	return ""
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" {
		return fmt.Errorf("api-key is required")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case "":
		c.Store = StoreSQLite
	case StoreSQLite, StoreFile:
	default:
		return fmt.Errorf("store must be %q or %q, got %q", StoreSQLite, StoreFile, c.Store)
	}

	if c.StorePath == "" {
		dir := DefaultStateDir()
		if dir == "" {
			return fmt.Errorf("store-path is required (home directory unavailable)")
		}
		name := sqliteFileName
		if c.Store == StoreFile {
			name = stateFileName
		}
		c.StorePath = filepath.Join(dir, name)
	}

	if c.PingTimeout <= 0 {
		return fmt.Errorf("ping timeout must be positive")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive")
	}
	if c.StartupDelay < 0 {
		return fmt.Errorf("startup delay must not be negative")
	}
	if c.RequiredMisses < 1 {
		return fmt.Errorf("required misses must be at least 1")
	}
	if c.DeliveryConcurrency < 1 {
		return fmt.Errorf("delivery concurrency must be at least 1")
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("delivery timeout must be positive")
	}

	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}

	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("log format must be console or json, got %q", c.LogFormat)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	c.DiscordToken = strings.TrimSpace(c.DiscordToken)
	c.DiscordGuildID = strings.TrimSpace(c.DiscordGuildID)
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "*****"
	}
	if c.DiscordToken != "" {
		c.DiscordToken = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
