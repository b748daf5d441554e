package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// Default monitor timings.
const (
	DefaultTimeout        = 60 * time.Second
	DefaultCheckInterval  = 5 * time.Second
	DefaultStartupDelay   = 15 * time.Second
	DefaultRequiredMisses = 3
)

// MonitorConfig contains configuration for the monitor loop.
type MonitorConfig struct {
	// Timeout is the heartbeat gap after which a tick counts as a miss.
	Timeout time.Duration

	// CheckInterval is the tick period.
	CheckInterval time.Duration

	// StartupDelay lets the first heartbeat arrive before the first tick.
	StartupDelay time.Duration

	// RequiredMisses is the number of consecutive missed ticks needed
	// to declare the signal lost.
	RequiredMisses int
}

func (c *MonitorConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.StartupDelay < 0 {
		c.StartupDelay = 0
	}
	if c.RequiredMisses <= 0 {
		c.RequiredMisses = DefaultRequiredMisses
	}
}

// Monitor periodically compares the time since the last heartbeat against the
// timeout and commits debounced transitions on the Liveness record.
//
// Loss requires RequiredMisses consecutive missed ticks. Recovery is committed
// on the first tick that sees a fresh heartbeat.
type Monitor struct {
	cfg      MonitorConfig
	timeout  atomic.Int64
	liveness *Liveness
	logger   ports.Logger
	metrics  ports.MetricsCollector
	now      func() time.Time

	// misses is guarded by liveness.mu.
	misses int

	events chan domain.Event
}

// NewMonitor creates a monitor over liveness.
func NewMonitor(cfg MonitorConfig, liveness *Liveness, logger ports.Logger, metrics ports.MetricsCollector, now func() time.Time) *Monitor {
	cfg.setDefaults()
	if now == nil {
		now = time.Now
	}
	m := &Monitor{
		cfg:      cfg,
		liveness: liveness,
		logger:   logger,
		metrics:  metrics,
		now:      now,
		events:   make(chan domain.Event, 16),
	}
	m.timeout.Store(int64(cfg.Timeout))
	return m
}

// Events returns the channel of confirmed transitions. It has a single
// consumer (the Dispatcher).
func (m *Monitor) Events() <-chan domain.Event {
	return m.events
}

// Timeout returns the current timeout threshold.
func (m *Monitor) Timeout() time.Duration {
	return time.Duration(m.timeout.Load())
}

// SetTimeout changes the timeout threshold for subsequent ticks.
// Non-positive values are ignored.
func (m *Monitor) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	if old := time.Duration(m.timeout.Swap(int64(d))); old != d {
		m.logger.Info("heartbeat timeout changed",
			ports.Duration("from", old),
			ports.Duration("to", d),
		)
	}
}

// Misses returns the current consecutive miss count.
func (m *Monitor) Misses() int {
	m.liveness.mu.Lock()
	defer m.liveness.mu.Unlock()
	return m.misses
}

// Tick evaluates the state machine once at now.
//
// It returns the committed event, if any. A non-nil error means the
// transition was committed in memory but could not be persisted; the event
// is still returned and must still be dispatched.
func (m *Monitor) Tick(ctx context.Context, now time.Time) (*domain.Event, error) {
	l := m.liveness
	elapsed := now.Sub(l.LastHeartbeat())
	timeout := m.Timeout()

	var ev *domain.Event

	l.mu.Lock()
	switch {
	case elapsed > timeout && l.present:
		m.misses++
		if m.misses >= m.cfg.RequiredMisses {
			m.misses = 0
			l.present = false
			l.lostAt = now
			e := domain.NewSignalLost(now)
			ev = &e
		}
	case elapsed <= timeout && !l.present:
		m.misses = 0
		l.present = true
		l.restoredAt = now
		var outage time.Duration
		if !l.lostAt.IsZero() {
			outage = l.restoredAt.Sub(l.lostAt)
		}
		e := domain.NewSignalRestored(now, outage)
		ev = &e
	case elapsed <= timeout:
		m.misses = 0
	}
	misses := m.misses
	l.mu.Unlock()

	m.metrics.TickEvaluated(misses, elapsed)

	if ev == nil {
		if misses > 0 {
			m.logger.Debug("heartbeat missed",
				ports.Int("misses", misses),
				ports.Int("required", m.cfg.RequiredMisses),
				ports.Duration("elapsed", elapsed),
			)
		}
		return nil, nil
	}

	m.metrics.Transition(ev.Kind)
	m.metrics.SignalState(ev.Kind == domain.SignalRestored)
	m.logger.Info("signal transition",
		ports.String("event", ev.Kind.String()),
		ports.String("event_id", ev.ID),
		ports.Duration("elapsed", elapsed),
		ports.Duration("outage", ev.OutageDuration),
	)

	if err := l.Persist(ctx); err != nil {
		return ev, err
	}
	return ev, nil
}

// Run waits for the startup delay and then ticks every CheckInterval until
// ctx is cancelled. A failed or panicking tick never stops the loop.
func (m *Monitor) Run(ctx context.Context) error {
	if m.cfg.StartupDelay > 0 {
		delay := time.NewTimer(m.cfg.StartupDelay)
		select {
		case <-ctx.Done():
			delay.Stop()
			return ctx.Err()
		case <-delay.C:
		}
	}

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.logger.Info("monitor started",
		ports.Duration("timeout", m.Timeout()),
		ports.Duration("interval", m.cfg.CheckInterval),
		ports.Int("required_misses", m.cfg.RequiredMisses),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.safeTick(ctx)
		}
	}
}

// safeTick runs one tick and forwards its event, recovering from panics.
func (m *Monitor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.TickFailed()
			m.logger.Error("monitor tick panicked", ports.Err(fmt.Errorf("panic: %v", r)))
		}
	}()

	ev, err := m.Tick(ctx, m.now())
	if err != nil {
		m.metrics.TickFailed()
		m.logger.Error("monitor tick failed", ports.Err(err))
	}
	if ev == nil {
		return
	}

	if ctx.Err() != nil {
		m.dropEvent(*ev)
		return
	}
	select {
	case m.events <- *ev:
	case <-ctx.Done():
		m.dropEvent(*ev)
	}
}

func (m *Monitor) dropEvent(ev domain.Event) {
	m.logger.Warn("dropping event on shutdown",
		ports.String("event", ev.Kind.String()),
		ports.String("event_id", ev.ID),
	)
}
