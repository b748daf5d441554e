package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a confirmed liveness transition.
type EventKind int

const (
	// SignalLost is emitted on the present -> absent transition.
	SignalLost EventKind = iota + 1
	// SignalRestored is emitted on the absent -> present transition.
	SignalRestored
)

// String returns a human-readable representation of the kind.
func (k EventKind) String() string {
	switch k {
	case SignalLost:
		return "SignalLost"
	case SignalRestored:
		return "SignalRestored"
	default:
		return "Unknown"
	}
}

// Event is a domain event produced by the monitor loop on every confirmed
// transition.
type Event struct {
	// ID correlates log lines and deliveries belonging to one transition.
	ID string

	Kind EventKind

	// At is the evaluation time that committed the transition.
	At time.Time

	// OutageDuration is SignalRestoredAt - SignalLostAt. Only set for SignalRestored.
	OutageDuration time.Duration
}

// NewSignalLost creates a SignalLost event committed at at.
func NewSignalLost(at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: SignalLost, At: at}
}

// NewSignalRestored creates a SignalRestored event committed at at.
func NewSignalRestored(at time.Time, outage time.Duration) Event {
	if outage < 0 {
		outage = 0
	}
	return Event{ID: uuid.NewString(), Kind: SignalRestored, At: at, OutageDuration: outage}
}
