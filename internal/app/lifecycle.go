package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// ShutdownTimeout is the maximum time to wait for background workers on Stop.
const ShutdownTimeout = 30 * time.Second

// Phase is the run phase of the service (not the monitored signal state).
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
	PhaseCrashed
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "Stopped"
	case PhaseStarting:
		return "Starting"
	case PhaseRunning:
		return "Running"
	case PhaseStopping:
		return "Stopping"
	case PhaseCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// PhaseObserver is called when the service phase changes.
type PhaseObserver interface {
	OnPhaseChange(previous, current Phase, reason string)
}

// Lifecycle guards the service phase and tracks its background workers.
type Lifecycle struct {
	mu       sync.RWMutex
	phase    Phase
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   ports.Logger
	observer PhaseObserver
}

// NewLifecycle creates a lifecycle in PhaseStopped.
func NewLifecycle(logger ports.Logger, observer PhaseObserver) *Lifecycle {
	return &Lifecycle{
		phase:    PhaseStopped,
		logger:   logger,
		observer: observer,
	}
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase
}

// TransitionTo moves to next, or returns an error if that move is not allowed
// from the current phase.
func (l *Lifecycle) TransitionTo(next Phase, reason string) error {
	l.mu.Lock()
	prev := l.phase

	if err := validTransition(prev, next); err != nil {
		l.mu.Unlock()
		return err
	}

	l.phase = next
	l.mu.Unlock()

	// Notify outside of lock
	if l.observer != nil {
		l.observer.OnPhaseChange(prev, next, reason)
	}

	l.logger.Info("phase transition",
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("reason", reason),
	)

	return nil
}

func validTransition(from, to Phase) error {
	switch from {
	case PhaseStopped:
		if to != PhaseStarting {
			return domain.ErrNotRunning
		}
	case PhaseStarting:
		if to != PhaseRunning && to != PhaseStopping && to != PhaseCrashed {
			return domain.ErrAlreadyRunning
		}
	case PhaseRunning:
		if to != PhaseStopping && to != PhaseCrashed {
			return domain.ErrAlreadyRunning
		}
	case PhaseStopping:
		if to != PhaseStopped && to != PhaseCrashed {
			return domain.ErrAlreadyRunning
		}
	case PhaseCrashed:
		if to != PhaseStarting {
			return domain.ErrNotRunning
		}
	}
	return nil
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase == PhaseStopped || l.phase == PhaseCrashed
}

// CanStop returns true if Stop() can be called.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase == PhaseRunning || l.phase == PhaseStarting
}

// SetCancel stores the cancel function of the run context.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel cancels the run context, if any.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Go runs fn as a tracked worker.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// WaitWithTimeout waits for all workers to finish.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
