package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "POWERWATCH_"

// ApplyEnvConfig applies configuration from environment variables (POWERWATCH_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen-addr", env("LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("api-key", env("API_KEY"), &cfg.APIKey)
	s.setString("discord-token", env("DISCORD_TOKEN"), &cfg.DiscordToken)
	s.setString("discord-guild-id", env("DISCORD_GUILD_ID"), &cfg.DiscordGuildID)
	s.setString("store", env("STORE"), &cfg.Store)
	s.setString("store-path", env("STORE_PATH"), &cfg.StorePath)
	s.setString("timezone", env("TIMEZONE"), &cfg.Timezone)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("ping-timeout", env("PING_TIMEOUT"), &cfg.PingTimeout); err != nil {
		return err
	}
	if err := s.setDuration("check-interval", env("CHECK_INTERVAL"), &cfg.CheckInterval); err != nil {
		return err
	}
	if err := s.setDuration("startup-delay", env("STARTUP_DELAY"), &cfg.StartupDelay); err != nil {
		return err
	}
	if err := s.setDuration("delivery-timeout", env("DELIVERY_TIMEOUT"), &cfg.DeliveryTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("required-misses", env("REQUIRED_MISSES"), &cfg.RequiredMisses); err != nil {
		return err
	}
	if err := s.setIntFromString("delivery-concurrency", env("DELIVERY_CONCURRENCY"), &cfg.DeliveryConcurrency); err != nil {
		return err
	}

	s.setBoolFromString("metrics", env("METRICS"), &cfg.Metrics)
	s.setBoolFromString("persist-heartbeats", env("PERSIST_HEARTBEATS"), &cfg.PersistHeartbeats)

	return nil
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// Load resolves the configuration from base (flag values), the TOML file at
// path (if it exists) and the environment, then validates it.
// Precedence: changed flags > environment > file > base.
func Load(base Config, path string, changed map[string]bool) (Config, error) {
	cfg := base
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return cfg, err
		}
		if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
