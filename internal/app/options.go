package app

import (
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// Option configures optional behavior of a Service.
type Option func(*options)

// options holds the optional configuration for a Service instance.
type options struct {
	logger        ports.Logger
	metrics       ports.MetricsCollector
	now           func() time.Time
	handlers      []EventHandler
	phaseObserver PhaseObserver
}

func defaultOptions() options {
	return options{
		logger:  ports.NopLogger{},
		metrics: noopMetrics{},
		now:     time.Now,
	}
}

// WithLogger sets a custom logger. If not provided, nothing is logged.
func WithLogger(logger ports.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets a metrics collector. If not provided, metrics are discarded.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEventHandler registers an additional consumer of transition events.
// Handlers run after the broadcast, in registration order, on the dispatcher
// goroutine.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		o.handlers = append(o.handlers, h)
	}
}

// WithPhaseObserver sets an observer for service phase changes.
func WithPhaseObserver(obs PhaseObserver) Option {
	return func(o *options) {
		o.phaseObserver = obs
	}
}

// noopMetrics discards all metrics.
type noopMetrics struct{}

func (noopMetrics) HeartbeatReceived()                 {}
func (noopMetrics) TickEvaluated(int, time.Duration)   {}
func (noopMetrics) TickFailed()                        {}
func (noopMetrics) SignalState(bool)                   {}
func (noopMetrics) Transition(domain.EventKind)        {}
func (noopMetrics) DeliveryResult(bool, time.Duration) {}
func (noopMetrics) RecipientsPruned(int)               {}
func (noopMetrics) PersistFailed(string)               {}
