package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/powerwatch"
)

const helpBanner = `
 ____                        __        __    _       _
|  _ \ _____      _____ _ __ \ \      / /_ _| |_ ___| |__
| |_) / _ \ \ /\ / / _ \ '__| \ \ /\ / / _' | __/ __| '_ \
|  __/ (_) \ V  V /  __/ |     \ V  V / (_| | || (__| | | |
|_|   \___/ \_/\_/ \___|_|      \_/\_/ \__,_|\__\___|_| |_|
`

const helpDescription = `
Know when the lights go out. A small board on mains power pings powerwatch;
when the pings stop, every subscriber gets a direct message.

Highlights:
  - Debounced detection: three missed checks before declaring an outage.
  - Survives restarts: state lives in SQLite (or a JSON file).
  - Discord slash commands: /start, /stop, /status, /details.
  - Prometheus metrics on /metrics; config file changes apply live.

Point the board at: GET /ping?api_key=<api-key>
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  powerwatch --api-key <api-key> --discord-token <bot-token>
  powerwatch --config $HOME/.powerwatch/config.toml --store file
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := powerwatch.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "powerwatch",
		Short:         "Notify subscribers when a heartbeat sensor reports a power outage",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = powerwatch.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			flagCfg := cfg
			resolved, err := powerwatch.LoadConfig(flagCfg, cfgFile, changed)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log := powerwatch.Logger(resolved)
			log.Info().Interface("config", resolved.Redacted()).Msg("configuration")

			// Setup signal handling for graceful shutdown
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return powerwatch.Run(ctx, resolved,
				powerwatch.WithLogger(log),
				powerwatch.WithConfigWatch(cfgFile, func() (powerwatch.Config, error) {
					return powerwatch.LoadConfig(flagCfg, cfgFile, changed)
				}),
			)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.powerwatch/config.toml)")
	f.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "HTTP listen address")
	f.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key the sensor must send with every ping")
	f.StringVar(&cfg.DiscordToken, "discord-token", cfg.DiscordToken, "Discord bot token (messages are only logged when empty)")
	f.StringVar(&cfg.DiscordGuildID, "discord-guild-id", cfg.DiscordGuildID, "register slash commands in this guild only")

	f.StringVar(&cfg.Store, "store", cfg.Store, "state backend: sqlite or file")
	f.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "state database or file path (default: $HOME/.powerwatch/...)")

	f.DurationVar(&cfg.PingTimeout, "ping-timeout", cfg.PingTimeout, "silence after which a check counts as a miss")
	f.DurationVar(&cfg.CheckInterval, "check-interval", cfg.CheckInterval, "interval between liveness checks")
	f.DurationVar(&cfg.StartupDelay, "startup-delay", cfg.StartupDelay, "delay before the first check")
	f.IntVar(&cfg.RequiredMisses, "required-misses", cfg.RequiredMisses, "consecutive misses before declaring an outage")

	f.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "IANA timezone for rendered times")
	f.IntVar(&cfg.DeliveryConcurrency, "delivery-concurrency", cfg.DeliveryConcurrency, "parallel notification deliveries")
	f.DurationVar(&cfg.DeliveryTimeout, "delivery-timeout", cfg.DeliveryTimeout, "timeout for a single notification delivery")

	f.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "serve Prometheus metrics on /metrics")
	f.BoolVar(&cfg.PersistHeartbeats, "persist-heartbeats", cfg.PersistHeartbeats, "persist state after every ping")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console or json)")

	if err := root.Execute(); err != nil {
		powerwatch.Logger(cfg).Error().Err(err).Msg("powerwatch")
		os.Exit(1)
	}
}
