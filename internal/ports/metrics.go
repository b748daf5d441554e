package ports

import (
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
)

// MetricsCollector receives operational signals from the application layer.
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// HeartbeatReceived is called for every recorded heartbeat.
	HeartbeatReceived()

	// TickEvaluated is called after every monitor tick with the current
	// consecutive miss count and the elapsed time since the last heartbeat.
	TickEvaluated(misses int, elapsed time.Duration)

	// TickFailed is called when a tick panicked or failed to persist.
	TickFailed()

	// SignalState records the current inferred state.
	SignalState(present bool)

	// Transition is called once per confirmed transition.
	Transition(kind domain.EventKind)

	// DeliveryResult is called once per attempted delivery.
	DeliveryResult(ok bool, duration time.Duration)

	// RecipientsPruned is called with the number of pruned recipients.
	RecipientsPruned(n int)

	// PersistFailed is called when a store operation fails; op names the operation.
	PersistFailed(op string)
}
