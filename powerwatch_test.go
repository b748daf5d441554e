package powerwatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/powerwatch/internal/domain"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Store = StoreFile
	cfg.StorePath = filepath.Join(t.TempDir(), "state.json")
	cfg.Timezone = "UTC"
	cfg.Metrics = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestOpenStore(t *testing.T) {
	cfg := testConfig(t)
	store, err := openStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	cfg.Store = StoreSQLite
	cfg.StorePath = filepath.Join(t.TempDir(), "powerwatch.db")
	store, err = openStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	cfg.Store = "redis"
	_, err = openStore(cfg)
	require.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

func TestRun_PersistsStateOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartupDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, WithLogger(zerolog.Nop()))
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.FileExists(t, cfg.StorePath)
}

func TestRun_BadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timezone = "Nowhere/Special"
	require.Error(t, Run(context.Background(), cfg, WithLogger(zerolog.Nop())))
}
