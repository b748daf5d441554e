// Package powerwatch runs a heartbeat liveness monitor that tells subscribers
// when a mains-powered sensor stops (or resumes) pinging.
//
// Example usage:
//
//	cfg := powerwatch.DefaultConfig()
//	cfg.APIKey = "your-api-key"
//	cfg.DiscordToken = "bot-token"
//	cfg, err := powerwatch.LoadConfig(cfg, "", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := powerwatch.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
package powerwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/powerwatch/internal/adapters/discord"
	"github.com/bft-labs/powerwatch/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/powerwatch/internal/adapters/http"
	logAdapter "github.com/bft-labs/powerwatch/internal/adapters/log"
	"github.com/bft-labs/powerwatch/internal/adapters/metrics"
	"github.com/bft-labs/powerwatch/internal/adapters/sqlite"
	"github.com/bft-labs/powerwatch/internal/app"
	"github.com/bft-labs/powerwatch/internal/cliconfig"
	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// Config holds the configuration for the monitor.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Storage backends accepted in Config.Store.
const (
	StoreSQLite = cliconfig.StoreSQLite
	StoreFile   = cliconfig.StoreFile
)

const (
	discordOpenAttempts = 5
	shutdownTimeout     = 10 * time.Second
)

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set APIKey before calling Run.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// DefaultConfigPath returns ~/.powerwatch/config.toml.
func DefaultConfigPath() string {
	return cliconfig.DefaultConfigPath()
}

// LoadConfig layers the TOML file at path and POWERWATCH_* environment
// variables over base, skipping keys named in changed, and validates the
// result.
func LoadConfig(base Config, path string, changed map[string]bool) (Config, error) {
	return cliconfig.Load(base, path, changed)
}

// Logger builds the zerolog logger described by cfg's log settings.
func Logger(cfg Config) zerolog.Logger {
	return logAdapter.NewZerolog(logAdapter.Options{Format: cfg.LogFormat, Level: cfg.LogLevel})
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger     ports.Logger
	configPath string
	reload     func() (Config, error)
}

// WithLogger sets the logger. Defaults to Logger(cfg).
func WithLogger(logger zerolog.Logger) Option {
	return func(o *runOptions) {
		o.logger = logAdapter.NewZerologAdapterWithLogger(logger)
	}
}

// WithConfigWatch watches path and applies the ping timeout and API key of
// every configuration reload returns while running.
func WithConfigWatch(path string, reload func() (Config, error)) Option {
	return func(o *runOptions) {
		o.configPath = path
		o.reload = reload
	}
}

// Run starts the monitor, the HTTP server and (when a Discord token is set)
// the Discord bot. It blocks until ctx is cancelled, then shuts everything
// down and persists the liveness state.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logAdapter.NewZerologAdapterWithLogger(Logger(cfg))
	}
	logger := o.logger

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", ports.Err(err))
		}
	}()

	loc, err := app.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	var collector ports.MetricsCollector = metrics.NewNop()
	var prom *metrics.PrometheusCollector
	if cfg.Metrics {
		prom = metrics.NewPrometheus(nil, metrics.DefaultNamespace)
		collector = prom
	}

	var (
		deliverer ports.Deliverer
		transport *discord.Transport
	)
	if cfg.DiscordToken != "" {
		transport, err = discord.New(cfg.DiscordToken, cfg.DiscordGuildID, logger)
		if err != nil {
			return fmt.Errorf("create discord transport: %w", err)
		}
		deliverer = transport
	} else {
		logger.Warn("no discord token configured, notifications will only be logged")
		deliverer = discord.NewLogDeliverer(logger)
	}

	svc, err := app.New(app.Config{
		Monitor: app.MonitorConfig{
			Timeout:        cfg.PingTimeout,
			CheckInterval:  cfg.CheckInterval,
			StartupDelay:   cfg.StartupDelay,
			RequiredMisses: cfg.RequiredMisses,
		},
		DeliveryConcurrency: cfg.DeliveryConcurrency,
		DeliveryTimeout:     cfg.DeliveryTimeout,
		Location:            loc,
		PersistHeartbeats:   cfg.PersistHeartbeats,
	}, store, deliverer,
		app.WithLogger(logger),
		app.WithMetrics(collector),
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		if err := svc.Stop(); err != nil {
			logger.Error("stop service", ports.Err(err))
		}
	}()

	if transport != nil {
		err := app.Retry(ctx, logger, "discord open", discordOpenAttempts, time.Second, func() error {
			return transport.Open(ctx, svc)
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := transport.Close(); err != nil {
				logger.Warn("close discord transport", ports.Err(err))
			}
		}()
	}

	httpOpts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
	if prom != nil {
		httpOpts = append(httpOpts, httpAdapter.WithMetricsHandler(prom.Handler()))
	}
	server := httpAdapter.NewServer(cfg.ListenAddr, cfg.APIKey, svc, httpOpts...)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", ports.Err(err))
		}
	}()

	if o.configPath != "" && o.reload != nil {
		watcher := cliconfig.NewWatcher(o.configPath, o.reload, func(next Config) {
			svc.SetTimeout(next.PingTimeout)
			server.SetAPIKey(next.APIKey)
		}, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher disabled", ports.String("path", o.configPath), ports.Err(err))
		} else {
			defer watcher.Stop()
		}
	}

	logger.Info("powerwatch running",
		ports.String("listen_addr", server.Addr()),
		ports.String("store", cfg.Store),
		ports.String("store_path", cfg.StorePath),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func openStore(cfg Config) (ports.Gateway, error) {
	switch cfg.Store {
	case StoreSQLite:
		return sqlite.Open(cfg.StorePath)
	case StoreFile:
		return fs.NewStateFile(cfg.StorePath), nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", domain.ErrInvalidConfig, cfg.Store)
	}
}
