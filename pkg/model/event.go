package model

import "time"

// Event types emitted on successful lifecycle transitions.
const (
	EventBookingCreated   = "bookings.created"
	EventBookingConfirmed = "bookings.confirmed"
	EventBookingCompleted = "bookings.completed"
	EventBookingCanceled  = "bookings.canceled"
	EventBookingNoShow    = "bookings.no_show"
	EventBookingReminded  = "bookings.reminded"
	EventOrderExpired     = "orders.expired"
)

// Event is the envelope handed to the ingestion collaborator. Emission is
// best-effort; a failed emit never fails the transition that produced it.
type Event struct {
	Type string            `json:"type"`
	At   time.Time         `json:"timestamp"`
	Meta map[string]string `json:"meta,omitempty"`
}
