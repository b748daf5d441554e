package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// DefaultRestoreAttempts is how many times Restore tries to read the store
// before falling back to in-memory defaults.
const DefaultRestoreAttempts = 3

// Liveness is the in-memory liveness record.
//
// The heartbeat timestamp is written only by RecordHeartbeat and is stored
// atomically; mu guards the transition fields, which only the Monitor writes.
type Liveness struct {
	repo    ports.LivenessRepository
	logger  ports.Logger
	metrics ports.MetricsCollector
	now     func() time.Time

	restoreAttempts int
	restoreBackoff  time.Duration

	lastHeartbeat atomic.Int64 // unix nanoseconds

	// persistMu orders saves so the store never receives an older snapshot
	// after a newer one.
	persistMu sync.Mutex

	mu         sync.Mutex
	present    bool
	lostAt     time.Time
	restoredAt time.Time
}

// NewLiveness creates a Liveness holding the first-run defaults.
// Call Restore before sharing it with the monitor and request handlers.
func NewLiveness(repo ports.LivenessRepository, logger ports.Logger, metrics ports.MetricsCollector, now func() time.Time) *Liveness {
	if now == nil {
		now = time.Now
	}
	l := &Liveness{
		repo:            repo,
		logger:          logger,
		metrics:         metrics,
		now:             now,
		restoreAttempts: DefaultRestoreAttempts,
		restoreBackoff:  DefaultBackoffInitial,
	}
	l.apply(domain.DefaultLivenessRecord(now()))
	return l
}

// RecordHeartbeat marks the signal as seen now and returns the recorded time.
// It never changes SignalPresent and never moves the timestamp backwards.
func (l *Liveness) RecordHeartbeat() time.Time {
	now := l.now()
	n := now.UnixNano()
	for {
		cur := l.lastHeartbeat.Load()
		if n <= cur {
			break
		}
		if l.lastHeartbeat.CompareAndSwap(cur, n) {
			break
		}
	}
	l.metrics.HeartbeatReceived()
	return now
}

// LastHeartbeat returns the last recorded heartbeat time.
func (l *Liveness) LastHeartbeat() time.Time {
	return time.Unix(0, l.lastHeartbeat.Load())
}

// Snapshot returns a consistent copy of the record.
func (l *Liveness) Snapshot() domain.LivenessRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.LivenessRecord{
		SignalPresent:    l.present,
		LastHeartbeatAt:  l.LastHeartbeat(),
		SignalLostAt:     l.lostAt,
		SignalRestoredAt: l.restoredAt,
	}
}

// Present reports the current inferred state.
func (l *Liveness) Present() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.present
}

// Persist writes the current record to the store.
// Failures are logged and returned; the in-memory state stays authoritative.
func (l *Liveness) Persist(ctx context.Context) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	rec := l.Snapshot()
	if err := l.repo.SaveLiveness(ctx, rec); err != nil {
		l.metrics.PersistFailed("save_liveness")
		l.logger.Error("failed to persist liveness state", ports.Err(err))
		return fmt.Errorf("persist liveness: %w", err)
	}
	return nil
}

// Restore loads the persisted record.
//
// A missing or malformed record bootstraps defaults and persists them. When
// the persisted signal was present the heartbeat clock restarts at now, so
// the device gets a full timeout window; when it was absent the persisted
// heartbeat time is kept so the outage keeps counting across the restart.
//
// If the store stays unreadable after all attempts, defaults are used in
// memory only and the load error is returned.
func (l *Liveness) Restore(ctx context.Context) error {
	rec, ok, err := l.load(ctx)
	now := l.now()

	switch {
	case errors.Is(err, domain.ErrMalformedRecord):
		l.logger.Warn("persisted liveness record is malformed, bootstrapping defaults", ports.Err(err))
		ok = false
	case err != nil:
		l.metrics.PersistFailed("load_liveness")
		l.logger.Error("failed to restore liveness state, using in-memory defaults", ports.Err(err))
		l.apply(domain.DefaultLivenessRecord(now))
		return fmt.Errorf("restore liveness: %w", err)
	}

	if !ok {
		l.apply(domain.DefaultLivenessRecord(now))
		l.logger.Info("no persisted liveness state, saved defaults")
		// Persist logs its own failure; the next transition retries.
		_ = l.Persist(ctx)
		return nil
	}

	if rec.SignalPresent || rec.LastHeartbeatAt.IsZero() {
		rec.LastHeartbeatAt = now
	}
	l.apply(rec)
	l.logger.Info("restored liveness state",
		ports.Bool("signal_present", rec.SignalPresent),
		ports.Time("last_heartbeat_at", rec.LastHeartbeatAt),
	)
	return nil
}

// load reads the record, retrying transient errors with backoff.
func (l *Liveness) load(ctx context.Context) (domain.LivenessRecord, bool, error) {
	b := newBackoff(l.restoreBackoff, DefaultBackoffMax)
	var lastErr error
	for attempt := 1; attempt <= l.restoreAttempts; attempt++ {
		rec, ok, err := l.repo.LoadLiveness(ctx)
		if err == nil || errors.Is(err, domain.ErrMalformedRecord) {
			return rec, ok, err
		}
		lastErr = err
		l.logger.Warn("load liveness state failed",
			ports.Int("attempt", attempt),
			ports.Err(err),
		)
		if attempt == l.restoreAttempts {
			break
		}
		if werr := b.Wait(ctx); werr != nil {
			return domain.LivenessRecord{}, false, werr
		}
	}
	return domain.LivenessRecord{}, false, lastErr
}

// apply replaces the whole in-memory record. Only used before the monitor
// starts.
func (l *Liveness) apply(rec domain.LivenessRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.present = rec.SignalPresent
	l.lostAt = rec.SignalLostAt
	l.restoredAt = rec.SignalRestoredAt
	l.lastHeartbeat.Store(rec.LastHeartbeatAt.UnixNano())
	l.metrics.SignalState(rec.SignalPresent)
}
