// Package metrics provides ports.MetricsCollector implementations.
package metrics

import (
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// NopMetrics discards every measurement.
type NopMetrics struct{}

var _ ports.MetricsCollector = (*NopMetrics)(nil)

// NewNop returns a collector that records nothing.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (*NopMetrics) HeartbeatReceived()                 {}
func (*NopMetrics) TickEvaluated(int, time.Duration)   {}
func (*NopMetrics) TickFailed()                        {}
func (*NopMetrics) SignalState(bool)                   {}
func (*NopMetrics) Transition(domain.EventKind)        {}
func (*NopMetrics) DeliveryResult(bool, time.Duration) {}
func (*NopMetrics) RecipientsPruned(int)               {}
func (*NopMetrics) PersistFailed(string)               {}
