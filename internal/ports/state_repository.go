package ports

import (
	"context"

	"github.com/bft-labs/powerwatch/internal/domain"
)

// LivenessRepository handles persistence of the singleton liveness record.
type LivenessRepository interface {
	// LoadLiveness retrieves the persisted record.
	// Returns ok=false and nil error if no record exists.
	// Returns domain.ErrMalformedRecord (wrapped) if a record exists but
	// cannot be decoded.
	LoadLiveness(ctx context.Context) (rec domain.LivenessRecord, ok bool, err error)

	// SaveLiveness persists rec, replacing any previous record.
	SaveLiveness(ctx context.Context, rec domain.LivenessRecord) error
}

// RecipientRepository persists the notification recipient set.
// Implementations serialise conflicting add/remove calls on the same id.
type RecipientRepository interface {
	// LoadRecipients returns all subscribed recipients in unspecified order.
	LoadRecipients(ctx context.Context) ([]domain.RecipientID, error)

	// AddRecipient adds id and reports whether it was not already present.
	AddRecipient(ctx context.Context, id domain.RecipientID) (isNew bool, err error)

	// RemoveRecipient removes id. Removing a non-member is not an error.
	RemoveRecipient(ctx context.Context, id domain.RecipientID) error

	// RemoveRecipients removes all ids in a single write.
	RemoveRecipients(ctx context.Context, ids []domain.RecipientID) error
}

// Gateway is a store that backs both repositories.
type Gateway interface {
	LivenessRepository
	RecipientRepository

	// Close releases the underlying resources.
	Close() error
}
