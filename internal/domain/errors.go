package domain

import "errors"

// Domain errors represent error conditions in the powerwatch domain.
// These errors can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("powerwatch: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("powerwatch: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("powerwatch: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("powerwatch: invalid configuration")

	// ErrMalformedRecord is returned by a store when the persisted liveness
	// record exists but cannot be decoded.
	ErrMalformedRecord = errors.New("powerwatch: malformed liveness record")

	// ErrInvalidRecipient is returned for empty recipient identifiers.
	ErrInvalidRecipient = errors.New("powerwatch: invalid recipient id")

	// ErrDeliveryFailed is returned by a deliverer when the recipient cannot
	// be reached.
	ErrDeliveryFailed = errors.New("powerwatch: delivery failed")
)
