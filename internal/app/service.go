package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// finalPersistTimeout bounds the last save on Stop.
const finalPersistTimeout = 5 * time.Second

// Config contains configuration for the service.
type Config struct {
	Monitor MonitorConfig

	DeliveryConcurrency int
	DeliveryTimeout     time.Duration

	// Location is used to render clock times. UTC if nil.
	Location *time.Location

	// PersistHeartbeats saves the record after every heartbeat instead of
	// only on transitions and shutdown.
	PersistHeartbeats bool
}

// Service wires the liveness record, monitor loop, event dispatch and
// notification fan-out, and exposes the operations used by the transport
// adapters.
type Service struct {
	cfg       Config
	store     ports.Gateway
	logger    ports.Logger
	metrics   ports.MetricsCollector
	lifecycle *Lifecycle

	liveness      *Liveness
	monitor       *Monitor
	broadcaster   *Broadcaster
	dispatcher    *Dispatcher
	status        *Status
	subscriptions *Subscriptions

	mu sync.Mutex
}

// New creates a Service in PhaseStopped. Call Start to restore state and
// begin monitoring.
func New(cfg Config, store ports.Gateway, deliverer ports.Deliverer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", domain.ErrInvalidConfig)
	}
	if deliverer == nil {
		return nil, fmt.Errorf("%w: deliverer is required", domain.ErrInvalidConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	renderer := NewRenderer(cfg.Location)
	liveness := NewLiveness(store, o.logger, o.metrics, o.now)
	monitor := NewMonitor(cfg.Monitor, liveness, o.logger, o.metrics, o.now)
	broadcaster := NewBroadcaster(store, deliverer, renderer, o.logger, o.metrics,
		cfg.DeliveryConcurrency, cfg.DeliveryTimeout)

	handlers := append([]EventHandler{broadcaster}, o.handlers...)

	return &Service{
		cfg:           cfg,
		store:         store,
		logger:        o.logger,
		metrics:       o.metrics,
		lifecycle:     NewLifecycle(o.logger, o.phaseObserver),
		liveness:      liveness,
		monitor:       monitor,
		broadcaster:   broadcaster,
		dispatcher:    NewDispatcher(monitor.Events(), o.logger, handlers...),
		status:        NewStatus(liveness, monitor, store, renderer, o.logger, o.now),
		subscriptions: NewSubscriptions(store, o.logger),
	}, nil
}

// Start restores the liveness record and starts the monitor and dispatcher
// in the background. It returns once they are running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(PhaseStarting, "Start() called"); err != nil {
		return err
	}

	if err := s.liveness.Restore(ctx); err != nil {
		// Restore already fell back to defaults; keep monitoring.
		s.logger.Warn("starting with unrestored state", ports.Err(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.lifecycle.SetCancel(cancel)

	s.lifecycle.Go(func() {
		s.dispatcher.Run(runCtx)
	})
	s.lifecycle.Go(func() {
		if err := s.monitor.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("monitor stopped", ports.Err(err))
			_ = s.lifecycle.TransitionTo(PhaseCrashed, err.Error())
		}
	})

	return s.lifecycle.TransitionTo(PhaseRunning, "monitor started")
}

// Stop cancels the background workers, waits for them and persists the
// liveness record one final time.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(PhaseStopping, "Stop() called"); err != nil {
		return err
	}

	s.lifecycle.Cancel()
	waitErr := s.lifecycle.WaitWithTimeout(ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), finalPersistTimeout)
	defer cancel()
	persistErr := s.liveness.Persist(ctx)

	if waitErr != nil {
		_ = s.lifecycle.TransitionTo(PhaseCrashed, "shutdown timeout")
		return waitErr
	}
	_ = s.lifecycle.TransitionTo(PhaseStopped, "graceful shutdown")
	return persistErr
}

// Phase returns the current service phase.
func (s *Service) Phase() Phase {
	return s.lifecycle.Phase()
}

// RecordHeartbeat records a heartbeat from the monitored device.
func (s *Service) RecordHeartbeat(ctx context.Context) {
	at := s.liveness.RecordHeartbeat()
	s.logger.Debug("heartbeat received", ports.Time("at", at))
	if s.cfg.PersistHeartbeats {
		_ = s.liveness.Persist(ctx)
	}
}

// CurrentStatus returns the machine-readable status.
func (s *Service) CurrentStatus(ctx context.Context) domain.Status {
	return s.status.CurrentStatus(ctx)
}

// SummaryText renders the short human-readable status.
func (s *Service) SummaryText(ctx context.Context) string {
	return s.status.SummaryText()
}

// DetailText renders the detailed human-readable status.
func (s *Service) DetailText(ctx context.Context) string {
	return s.status.DetailText(ctx)
}

// Subscribe adds a recipient. isNew is false if it was already subscribed.
func (s *Service) Subscribe(ctx context.Context, id domain.RecipientID) (bool, error) {
	return s.subscriptions.Subscribe(ctx, id)
}

// Unsubscribe removes a recipient.
func (s *Service) Unsubscribe(ctx context.Context, id domain.RecipientID) error {
	return s.subscriptions.Unsubscribe(ctx, id)
}

// SetTimeout changes the heartbeat timeout at runtime.
func (s *Service) SetTimeout(d time.Duration) {
	s.monitor.SetTimeout(d)
}

// Snapshot returns the current liveness record.
func (s *Service) Snapshot() domain.LivenessRecord {
	return s.liveness.Snapshot()
}
