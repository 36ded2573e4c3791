package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrDuplicateSlot surfaces the storage uniqueness constraint on
	// (service_id, start_at) among non-canceled bookings.
	ErrDuplicateSlot = errors.New("slot already has an active booking")

	// ErrStatusMismatch means the conditional update matched nothing: the
	// booking's current status differs from the expected prior status.
	ErrStatusMismatch = errors.New("booking status changed concurrently")
)
