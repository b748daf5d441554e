package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/powerwatch/internal/domain"
)

func newTestLiveness(store *memStore, clock *fakeClock) *Liveness {
	l := NewLiveness(store, mockLogger{}, noopMetrics{}, clock.Now)
	l.restoreBackoff = time.Millisecond
	return l
}

func TestLiveness_RecordHeartbeat(t *testing.T) {
	clock := newFakeClock()
	l := newTestLiveness(newMemStore(), clock)

	at := clock.Advance(30 * time.Second)
	got := l.RecordHeartbeat()

	require.True(t, got.Equal(at))
	require.True(t, l.LastHeartbeat().Equal(at))
	require.True(t, l.Present(), "heartbeat must not change signal state")
}

func TestLiveness_RecordHeartbeat_NeverMovesBackwards(t *testing.T) {
	clock := newFakeClock()
	l := newTestLiveness(newMemStore(), clock)

	later := clock.Advance(time.Minute)
	l.RecordHeartbeat()

	clock.Set(later.Add(-10 * time.Second))
	l.RecordHeartbeat()

	require.True(t, l.LastHeartbeat().Equal(later))
}

func TestLiveness_RecordHeartbeat_ConcurrentLatestWins(t *testing.T) {
	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}
	l := NewLiveness(newMemStore(), mockLogger{}, noopMetrics{}, clock)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var latest time.Time
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := l.RecordHeartbeat()
			_ = l.LastHeartbeat()
			mu.Lock()
			if at.After(latest) {
				latest = at
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.True(t, l.LastHeartbeat().Equal(latest))
}

func TestLiveness_Restore_FirstRunPersistsDefaults(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	l := newTestLiveness(store, clock)

	now := clock.Advance(time.Hour)
	require.NoError(t, l.Restore(context.Background()))

	rec, ok, saves := store.saved()
	require.True(t, ok)
	require.Equal(t, 1, saves)
	require.True(t, rec.SignalPresent)
	require.True(t, rec.LastHeartbeatAt.Equal(now))
}

func TestLiveness_Restore_PresentResetsHeartbeat(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	old := clock.Now().Add(-3 * time.Hour)
	restored := clock.Now().Add(-5 * time.Hour)
	store.rec = domain.LivenessRecord{SignalPresent: true, LastHeartbeatAt: old, SignalRestoredAt: restored}
	store.hasRec = true

	l := newTestLiveness(store, clock)
	now := clock.Advance(time.Minute)
	require.NoError(t, l.Restore(context.Background()))

	snap := l.Snapshot()
	require.True(t, snap.SignalPresent)
	require.True(t, snap.LastHeartbeatAt.Equal(now), "present state gets a fresh grace window")
	require.True(t, snap.SignalRestoredAt.Equal(restored))
}

func TestLiveness_Restore_AbsentKeepsHeartbeat(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	t0 := clock.Now().Add(-2 * time.Hour)
	lost := t0.Add(75 * time.Second)
	store.rec = domain.LivenessRecord{SignalPresent: false, LastHeartbeatAt: t0, SignalLostAt: lost}
	store.hasRec = true

	l := newTestLiveness(store, clock)
	clock.Advance(time.Minute)
	require.NoError(t, l.Restore(context.Background()))

	snap := l.Snapshot()
	require.False(t, snap.SignalPresent)
	require.True(t, snap.LastHeartbeatAt.Equal(t0))
	require.True(t, snap.SignalLostAt.Equal(lost))
}

func TestLiveness_Restore_MalformedBootstrapsDefaults(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	store.loadErr = errors.Join(domain.ErrMalformedRecord, errors.New("bad json"))
	store.loadFailures = -1

	l := newTestLiveness(store, clock)
	require.NoError(t, l.Restore(context.Background()))

	rec, ok, _ := store.saved()
	require.True(t, ok)
	require.True(t, rec.SignalPresent)
	require.Equal(t, 1, store.loadCalls, "malformed data is not retried")
}

func TestLiveness_Restore_RetriesTransientErrors(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	t0 := clock.Now().Add(-time.Hour)
	store.rec = domain.LivenessRecord{SignalPresent: false, LastHeartbeatAt: t0, SignalLostAt: t0}
	store.hasRec = true
	store.loadErr = errStoreDown
	store.loadFailures = 2

	l := newTestLiveness(store, clock)
	require.NoError(t, l.Restore(context.Background()))

	require.Equal(t, 3, store.loadCalls)
	require.False(t, l.Present())
	require.True(t, l.LastHeartbeat().Equal(t0))
}

func TestLiveness_Restore_UnreadableStoreDoesNotOverwrite(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	store.loadErr = errStoreDown
	store.loadFailures = -1

	l := newTestLiveness(store, clock)
	err := l.Restore(context.Background())

	require.ErrorIs(t, err, errStoreDown)
	_, _, saves := store.saved()
	require.Zero(t, saves, "defaults must not clobber an unreadable record")
	require.True(t, l.Present())
	require.Equal(t, DefaultRestoreAttempts, store.loadCalls)
}

func TestLiveness_PersistFailureIsReturned(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	store.saveErr = errStoreDown
	l := newTestLiveness(store, clock)

	err := l.Persist(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	require.True(t, l.Present())
}

func TestLiveness_PersistKeepsSnapshotOrder(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemStore()
	m, l := newTestMonitor(t, store, clock)

	t0 := clock.Now()
	l.RecordHeartbeat()

	gate := make(chan struct{})
	entered := make(chan struct{})
	store.mu.Lock()
	store.saveGate, store.saveEntered = gate, entered
	store.mu.Unlock()

	// A heartbeat-path save snapshots present=true and stalls in the store.
	stale := make(chan error, 1)
	go func() { stale <- l.Persist(ctx) }()
	<-entered

	for _, sec := range []int{65, 70} {
		ev, err := m.Tick(ctx, t0.Add(time.Duration(sec)*time.Second))
		require.NoError(t, err)
		require.Nil(t, ev)
	}

	lostAt := t0.Add(75 * time.Second)
	type tickResult struct {
		ev  *domain.Event
		err error
	}
	loss := make(chan tickResult, 1)
	go func() {
		ev, err := m.Tick(ctx, lostAt)
		loss <- tickResult{ev, err}
	}()

	require.Eventually(t, func() bool { return !l.Present() }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)

	require.NoError(t, <-stale)
	res := <-loss
	require.NoError(t, res.err)
	require.NotNil(t, res.ev)
	require.Equal(t, domain.SignalLost, res.ev.Kind)

	rec, has, saves := store.saved()
	require.True(t, has)
	require.Equal(t, 2, saves)
	require.False(t, rec.SignalPresent, "the committed outage must be the last record stored")
	require.True(t, rec.SignalLostAt.Equal(lostAt))
}
