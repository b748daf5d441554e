package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// Default fan-out limits.
const (
	DefaultDeliveryConcurrency = 8
	DefaultDeliveryTimeout     = 10 * time.Second
)

// BroadcastResult summarises one fan-out.
type BroadcastResult struct {
	Attempted int
	Delivered int
	Pruned    []domain.RecipientID
}

// Broadcaster delivers a message to every subscribed recipient and
// unsubscribes recipients whose delivery failed.
type Broadcaster struct {
	recipients  ports.RecipientRepository
	deliverer   ports.Deliverer
	renderer    *Renderer
	logger      ports.Logger
	metrics     ports.MetricsCollector
	concurrency int
	timeout     time.Duration
}

// NewBroadcaster creates a Broadcaster. Non-positive limits use the defaults.
func NewBroadcaster(
	recipients ports.RecipientRepository,
	deliverer ports.Deliverer,
	renderer *Renderer,
	logger ports.Logger,
	metrics ports.MetricsCollector,
	concurrency int,
	timeout time.Duration,
) *Broadcaster {
	if concurrency <= 0 {
		concurrency = DefaultDeliveryConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Broadcaster{
		recipients:  recipients,
		deliverer:   deliverer,
		renderer:    renderer,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// HandleEvent renders ev and broadcasts it.
func (b *Broadcaster) HandleEvent(ctx context.Context, ev domain.Event) error {
	msg := b.renderer.EventMessage(ev)
	if msg == "" {
		return nil
	}
	res, err := b.Broadcast(ctx, msg)
	b.logger.Info("broadcast finished",
		ports.String("event", ev.Kind.String()),
		ports.String("event_id", ev.ID),
		ports.Int("attempted", res.Attempted),
		ports.Int("delivered", res.Delivered),
		ports.Int("pruned", len(res.Pruned)),
	)
	return err
}

// Broadcast sends message to the recipients currently in the store.
//
// Each recipient is attempted independently. Recipients whose delivery fails
// are treated as unreachable and removed with a single bulk write; they are
// not retried. Deliveries cut short by ctx cancellation are not pruned.
func (b *Broadcaster) Broadcast(ctx context.Context, message string) (BroadcastResult, error) {
	var res BroadcastResult

	ids, err := b.recipients.LoadRecipients(ctx)
	if err != nil {
		b.metrics.PersistFailed("load_recipients")
		return res, fmt.Errorf("load recipients: %w", err)
	}
	if len(ids) == 0 {
		return res, nil
	}

	var (
		mu     sync.Mutex
		failed []domain.RecipientID
	)
	swg := sizedwaitgroup.New(b.concurrency)
	for _, id := range ids {
		if err := swg.AddWithContext(ctx); err != nil {
			break
		}
		res.Attempted++
		go func(id domain.RecipientID) {
			defer swg.Done()
			ok := b.deliver(ctx, id, message)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case ok:
				res.Delivered++
			case ctx.Err() == nil:
				failed = append(failed, id)
			}
		}(id)
	}
	swg.Wait()

	if len(failed) == 0 {
		return res, ctx.Err()
	}

	if err := b.recipients.RemoveRecipients(ctx, failed); err != nil {
		b.metrics.PersistFailed("remove_recipients")
		b.logger.Error("failed to prune unreachable recipients",
			ports.Int("count", len(failed)),
			ports.Err(err),
		)
		return res, fmt.Errorf("prune recipients: %w", err)
	}
	res.Pruned = failed
	b.metrics.RecipientsPruned(len(failed))
	return res, nil
}

func (b *Broadcaster) deliver(ctx context.Context, id domain.RecipientID, message string) bool {
	dctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	err := b.deliverer.Deliver(dctx, id, message)
	b.metrics.DeliveryResult(err == nil, time.Since(start))
	if err == nil {
		return true
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		b.logger.Debug("delivery cancelled", ports.String("recipient", string(id)))
		return false
	}
	b.logger.Warn("delivery failed, recipient will be unsubscribed",
		ports.String("recipient", string(id)),
		ports.Err(err),
	)
	return false
}
