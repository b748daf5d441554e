package app

import (
	"context"
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// drainTimeout bounds how long pending events are handled after shutdown.
const drainTimeout = 15 * time.Second

// EventHandler consumes domain events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev domain.Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, ev domain.Event) error

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, ev domain.Event) error {
	return f(ctx, ev)
}

// Dispatcher is the single consumer of monitor events. It hands each event to
// its handlers in registration order.
type Dispatcher struct {
	events   <-chan domain.Event
	handlers []EventHandler
	logger   ports.Logger
}

// NewDispatcher creates a dispatcher reading from events.
func NewDispatcher(events <-chan domain.Event, logger ports.Logger, handlers ...EventHandler) *Dispatcher {
	return &Dispatcher{events: events, handlers: handlers, logger: logger}
}

// Run dispatches events until ctx is cancelled, then drains any events
// already queued using a fresh bounded context.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case ev := <-d.events:
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-d.events:
			d.dispatch(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev domain.Event) {
	for _, h := range d.handlers {
		if err := h.HandleEvent(ctx, ev); err != nil {
			d.logger.Error("event handler failed",
				ports.String("event", ev.Kind.String()),
				ports.String("event_id", ev.ID),
				ports.Err(err),
			)
		}
	}
}
