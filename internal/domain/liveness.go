package domain

import "time"

// LivenessRecord is the singleton state of the monitored signal.
//
// SignalLostAt is only meaningful while SignalPresent is false. It is kept
// after recovery until the next loss overwrites it.
type LivenessRecord struct {
	// SignalPresent is the current inferred state.
	SignalPresent bool

	// LastHeartbeatAt is the last time a heartbeat was recorded.
	LastHeartbeatAt time.Time

	// SignalLostAt is set on the present -> absent transition. Zero if never lost.
	SignalLostAt time.Time

	// SignalRestoredAt is set on the absent -> present transition. Zero if never restored.
	SignalRestoredAt time.Time
}

// DefaultLivenessRecord returns the first-run record: signal present, last
// heartbeat at now.
func DefaultLivenessRecord(now time.Time) LivenessRecord {
	return LivenessRecord{
		SignalPresent:   true,
		LastHeartbeatAt: now,
	}
}

// SinceLastHeartbeat returns now - LastHeartbeatAt, never negative.
func (r LivenessRecord) SinceLastHeartbeat(now time.Time) time.Duration {
	d := now.Sub(r.LastHeartbeatAt)
	if d < 0 {
		return 0
	}
	return d
}

// AbsentFor returns how long the signal has been absent at now.
// Returns 0 while the signal is present or the loss time is unknown.
func (r LivenessRecord) AbsentFor(now time.Time) time.Duration {
	if r.SignalPresent || r.SignalLostAt.IsZero() {
		return 0
	}
	d := now.Sub(r.SignalLostAt)
	if d < 0 {
		return 0
	}
	return d
}

// Equal reports whether two records carry the same instants in every field.
func (r LivenessRecord) Equal(o LivenessRecord) bool {
	return r.SignalPresent == o.SignalPresent &&
		r.LastHeartbeatAt.Equal(o.LastHeartbeatAt) &&
		r.SignalLostAt.Equal(o.SignalLostAt) &&
		r.SignalRestoredAt.Equal(o.SignalRestoredAt)
}
