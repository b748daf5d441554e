package ports

import (
	"context"

	"github.com/bft-labs/powerwatch/internal/domain"
)

// Deliverer sends one rendered message to one recipient.
// A non-nil error means the recipient is unreachable; callers do not retry.
type Deliverer interface {
	Deliver(ctx context.Context, to domain.RecipientID, message string) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, to domain.RecipientID, message string) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, to domain.RecipientID, message string) error {
	return f(ctx, to, message)
}
