package app

import (
	"context"
	"fmt"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// Subscriptions manages the recipient set on behalf of the chat layer.
type Subscriptions struct {
	repo   ports.RecipientRepository
	logger ports.Logger
}

// NewSubscriptions creates a subscription manager.
func NewSubscriptions(repo ports.RecipientRepository, logger ports.Logger) *Subscriptions {
	return &Subscriptions{repo: repo, logger: logger}
}

// Subscribe adds id. isNew is false when id was already subscribed.
func (s *Subscriptions) Subscribe(ctx context.Context, id domain.RecipientID) (bool, error) {
	id, err := domain.NormalizeRecipient(id)
	if err != nil {
		return false, err
	}
	isNew, err := s.repo.AddRecipient(ctx, id)
	if err != nil {
		return false, fmt.Errorf("subscribe %s: %w", id, err)
	}
	if isNew {
		s.logger.Info("recipient subscribed", ports.String("recipient", string(id)))
	}
	return isNew, nil
}

// Unsubscribe removes id. Unknown ids are not an error.
func (s *Subscriptions) Unsubscribe(ctx context.Context, id domain.RecipientID) error {
	id, err := domain.NormalizeRecipient(id)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveRecipient(ctx, id); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", id, err)
	}
	s.logger.Info("recipient unsubscribed", ports.String("recipient", string(id)))
	return nil
}

// Count returns the number of subscribed recipients.
func (s *Subscriptions) Count(ctx context.Context) (int, error) {
	ids, err := s.repo.LoadRecipients(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
