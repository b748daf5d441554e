package discord

import (
	"context"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// LogDeliverer writes notifications to the log instead of sending them.
// It is used when no bot token is configured.
type LogDeliverer struct {
	logger ports.Logger
}

var _ ports.Deliverer = (*LogDeliverer)(nil)

// NewLogDeliverer creates a LogDeliverer.
func NewLogDeliverer(logger ports.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

// Deliver logs message. It only fails when ctx is already done.
func (d *LogDeliverer) Deliver(ctx context.Context, to domain.RecipientID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.Info("notification",
		ports.String("recipient", string(to)),
		ports.String("message", message),
	)
	return nil
}
