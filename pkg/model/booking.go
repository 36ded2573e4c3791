package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingRequested BookingStatus = "requested"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCanceled  BookingStatus = "canceled"
	BookingNoShow    BookingStatus = "no_show"
)

// Terminal reports whether no further transition may leave this status.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCompleted, BookingCanceled, BookingNoShow:
		return true
	}
	return false
}

// CanTransition encodes the lifecycle state machine:
// requested -> confirmed -> completed, requested|confirmed -> canceled,
// confirmed -> no_show.
func CanTransition(from, to BookingStatus) bool {
	switch from {
	case BookingRequested:
		return to == BookingConfirmed || to == BookingCanceled
	case BookingConfirmed:
		return to == BookingCompleted || to == BookingCanceled || to == BookingNoShow
	}
	return false
}

// PolicySnapshot is copied from the service catalog onto each booking at
// creation, so later catalog edits never retroactively change existing
// bookings.
type PolicySnapshot struct {
	CancelBeforeHours int `json:"cancel_before_hours" bson:"cancel_before_hours" validate:"min=0"`
	ChangeBeforeHours int `json:"change_before_hours" bson:"change_before_hours" validate:"min=0"`
	NoShowAfterMin    int `json:"no_show_after_min" bson:"no_show_after_min" validate:"min=0"`
}

// HistoryEntry is append-only; entries are never rewritten.
type HistoryEntry struct {
	At     time.Time     `json:"at" bson:"at"`
	By     Actor         `json:"by" bson:"by"`
	From   BookingStatus `json:"from" bson:"from"`
	To     BookingStatus `json:"to" bson:"to"`
	Reason string        `json:"reason,omitempty" bson:"reason,omitempty"`
}

// ReminderMark records that the reminder for this booking was sent.
// Set at most once; the reminder job skips bookings carrying it.
type ReminderMark struct {
	SentAt time.Time `json:"sent_at" bson:"sent_at"`
}

type Booking struct {
	ID         string        `json:"id,omitempty" bson:"_id,omitempty"`
	Code       string        `json:"code" bson:"code"`
	ServiceID  string        `json:"service_id" bson:"service_id" validate:"required"`
	CustomerID string        `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	StartAt    time.Time     `json:"start_at" bson:"start_at" validate:"required"`
	EndAt      time.Time     `json:"end_at" bson:"end_at" validate:"required,gtfield=StartAt"`
	Status     BookingStatus `json:"status" bson:"status" validate:"required,oneof=requested confirmed completed canceled no_show"`

	Policy PolicySnapshot `json:"policy" bson:"policy"`

	NoteCustomer string `json:"note_customer,omitempty" bson:"note_customer,omitempty" validate:"omitempty,max=500"`
	NoteInternal string `json:"note_internal,omitempty" bson:"note_internal,omitempty" validate:"omitempty,max=500"`
	Source       string `json:"source,omitempty" bson:"source,omitempty" validate:"omitempty,oneof=web admin system"`

	// RescheduleOf references the booking this one replaced. Relation only,
	// not ownership: the original keeps its own document and history.
	RescheduleOf string `json:"reschedule_of,omitempty" bson:"reschedule_of,omitempty"`

	Reminder *ReminderMark  `json:"reminder,omitempty" bson:"reminder,omitempty"`
	History  []HistoryEntry `json:"history" bson:"history"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (b *Booking) Duration() time.Duration {
	return b.EndAt.Sub(b.StartAt)
}

const bookingCodePrefix = "BKG-"

// NewBookingCode returns a short public booking reference, e.g. "BKG-9F3KQ2".
func NewBookingCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return bookingCodePrefix + raw[:6]
}
