package errors

import "errors"

var (
	ErrNotConfigured = errors.New("availability is not configured")

	ErrInvalidDate = errors.New("invalid date format")

	ErrInvalidWindow = errors.New("window start must be before end")
)
